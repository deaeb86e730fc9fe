// Package voice keeps the set of members currently connected to voice.
package voice

import (
	"sort"
	"sync"
	"time"
)

type Session struct {
	UserID      string
	DisplayName string
	ChannelID   string
	Roles       []string
	JoinedAt    time.Time
}

type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]Session)}
}

// Join records a connection. It reports false when the member was already
// connected, in which case only the channel and roles are updated.
func (t *Tracker) Join(s Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.sessions[s.UserID]; ok {
		cur.ChannelID = s.ChannelID
		cur.Roles = s.Roles
		t.sessions[s.UserID] = cur
		return false
	}
	t.sessions[s.UserID] = s
	return true
}

// Leave removes the member and returns the closed session.
func (t *Tracker) Leave(userID string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[userID]
	if ok {
		delete(t.sessions, userID)
	}
	return s, ok
}

func (t *Tracker) Get(userID string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[userID]
	return s, ok
}

// Connected returns the ids of every connected member in a stable order.
func (t *Tracker) Connected() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
