package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
)

type configRepo struct {
	mu     sync.Mutex
	values map[string]string
}

func NewConfigRepository() repositories.ConfigRepository {
	return &configRepo{values: make(map[string]string)}
}

func (r *configRepo) Get(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	if !ok {
		return "", repositories.ErrNotFound
	}
	return v, nil
}

func (r *configRepo) Set(_ context.Context, key string, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

type markerRepo struct {
	mu   sync.Mutex
	days map[string]string
}

func NewSchedulerMarkerRepository() repositories.SchedulerMarkerRepository {
	return &markerRepo{days: make(map[string]string)}
}

func (r *markerRepo) Get(_ context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.days[name], nil
}

func (r *markerRepo) Set(_ context.Context, name, day string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.days[name] = day
	return nil
}

type levelRoleKey struct {
	kind  models.LevelRoleKind
	level int
}

type levelRoleRepo struct {
	mu    sync.Mutex
	roles map[levelRoleKey]string
}

func NewLevelRoleRepository() repositories.LevelRoleRepository {
	return &levelRoleRepo{roles: make(map[levelRoleKey]string)}
}

func (r *levelRoleRepo) Set(_ context.Context, kind models.LevelRoleKind, level int, roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[levelRoleKey{kind, level}] = roleID
	return nil
}

func (r *levelRoleRepo) Get(_ context.Context, kind models.LevelRoleKind, level int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.roles[levelRoleKey{kind, level}]
	if !ok {
		return "", repositories.ErrNotFound
	}
	return id, nil
}

func (r *levelRoleRepo) filter(kind models.LevelRoleKind, keep func(level int) bool) []*models.LevelRole {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.LevelRole
	for k, id := range r.roles {
		if k.kind == kind && keep(k.level) {
			out = append(out, &models.LevelRole{Kind: k.kind, Level: k.level, RoleID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

func (r *levelRoleRepo) List(_ context.Context, kind models.LevelRoleKind) ([]*models.LevelRole, error) {
	return r.filter(kind, func(int) bool { return true }), nil
}

func (r *levelRoleRepo) UpTo(_ context.Context, kind models.LevelRoleKind, level int) ([]*models.LevelRole, error) {
	return r.filter(kind, func(l int) bool { return l <= level }), nil
}

func (r *levelRoleRepo) Delete(_ context.Context, kind models.LevelRoleKind, level int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := levelRoleKey{kind, level}
	if _, ok := r.roles[key]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.roles, key)
	return nil
}

type multiplierKey struct {
	scope  models.MultiplierScope
	target string
}

type multiplierRepo struct {
	mu     sync.Mutex
	values map[multiplierKey]float64
}

func NewMultiplierRepository() repositories.MultiplierRepository {
	return &multiplierRepo{values: make(map[multiplierKey]float64)}
}

func (r *multiplierRepo) Set(_ context.Context, scope models.MultiplierScope, targetID string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[multiplierKey{scope, targetID}] = value
	return nil
}

func (r *multiplierRepo) Get(_ context.Context, scope models.MultiplierScope, targetID string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[multiplierKey{scope, targetID}]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	return v, nil
}

func (r *multiplierRepo) ForTargets(_ context.Context, scope models.MultiplierScope, targetIDs []string) ([]*models.Multiplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{}, len(targetIDs))
	var out []*models.Multiplier
	for _, id := range targetIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if v, ok := r.values[multiplierKey{scope, id}]; ok {
			out = append(out, &models.Multiplier{Scope: scope, TargetID: id, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out, nil
}

func (r *multiplierRepo) List(_ context.Context, scope models.MultiplierScope) ([]*models.Multiplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Multiplier
	for k, v := range r.values {
		if k.scope == scope {
			out = append(out, &models.Multiplier{Scope: k.scope, TargetID: k.target, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out, nil
}

func (r *multiplierRepo) Delete(_ context.Context, scope models.MultiplierScope, targetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := multiplierKey{scope, targetID}
	if _, ok := r.values[key]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.values, key)
	return nil
}

type blacklistRepo struct {
	mu       sync.Mutex
	channels map[string]time.Time
}

func NewBlacklistRepository() repositories.BlacklistRepository {
	return &blacklistRepo{channels: make(map[string]time.Time)}
}

func (r *blacklistRepo) Add(_ context.Context, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[channelID]; !ok {
		r.channels[channelID] = time.Now()
	}
	return nil
}

func (r *blacklistRepo) Remove(_ context.Context, channelID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.channels[channelID]
	delete(r.channels, channelID)
	return ok, nil
}

func (r *blacklistRepo) Contains(_ context.Context, channelID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.channels[channelID]
	return ok, nil
}

func (r *blacklistRepo) List(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := r.channels[ids[i]], r.channels[ids[j]]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ids[i] < ids[j]
	})
	return ids, nil
}

type birthdayRepo struct {
	mu        sync.Mutex
	birthdays map[string]models.Birthday
}

func NewBirthdayRepository() repositories.BirthdayRepository {
	return &birthdayRepo{birthdays: make(map[string]models.Birthday)}
}

func (r *birthdayRepo) Set(_ context.Context, birthday *models.Birthday) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.birthdays[birthday.UserID] = *birthday
	return nil
}

func (r *birthdayRepo) Get(_ context.Context, userID string) (*models.Birthday, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.birthdays[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &b, nil
}

type mentorRepo struct {
	mu      sync.Mutex
	mentors []models.Mentor
}

func NewMentorRepository() repositories.MentorRepository {
	return &mentorRepo{}
}

func (r *mentorRepo) Add(_ context.Context, mentor *models.Mentor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.mentors {
		if r.mentors[i].MentorID == mentor.MentorID && r.mentors[i].MenteeID == mentor.MenteeID {
			r.mentors[i].Bonus = mentor.Bonus
			return nil
		}
	}
	m := *mentor
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.mentors = append(r.mentors, m)
	return nil
}

func (r *mentorRepo) Remove(_ context.Context, mentorID, menteeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.mentors {
		if r.mentors[i].MentorID == mentorID && r.mentors[i].MenteeID == menteeID {
			r.mentors = append(r.mentors[:i], r.mentors[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *mentorRepo) match(keep func(m models.Mentor) bool) []*models.Mentor {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Mentor
	for _, m := range r.mentors {
		if keep(m) {
			m := m
			out = append(out, &m)
		}
	}
	return out
}

func (r *mentorRepo) MentorsOf(_ context.Context, menteeID string) ([]*models.Mentor, error) {
	return r.match(func(m models.Mentor) bool { return m.MenteeID == menteeID }), nil
}

func (r *mentorRepo) MenteesOf(_ context.Context, mentorID string) ([]*models.Mentor, error) {
	return r.match(func(m models.Mentor) bool { return m.MentorID == mentorID }), nil
}
