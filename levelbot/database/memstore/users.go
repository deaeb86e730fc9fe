// Package memstore keeps every repository in process memory. It backs the
// "memory" backend and the package tests.
package memstore

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
)

// New returns a fresh set of empty in-memory repositories.
func New() *repositories.Stores {
	return &repositories.Stores{
		Users:       NewUserRepository(),
		Config:      NewConfigRepository(),
		LevelRoles:  NewLevelRoleRepository(),
		Multipliers: NewMultiplierRepository(),
		Blacklist:   NewBlacklistRepository(),
		Events:      NewEventRepository(),
		Birthdays:   NewBirthdayRepository(),
		Mentors:     NewMentorRepository(),
		Challenges:  NewChallengeRepository(),
		Markers:     NewSchedulerMarkerRepository(),
	}
}

type userRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewUserRepository() repositories.UserRepository {
	return &userRepo{users: make(map[string]*models.User)}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.VIPUntil != nil {
		t := *u.VIPUntil
		c.VIPUntil = &t
	}
	if u.JoinedAt != nil {
		t := *u.JoinedAt
		c.JoinedAt = &t
	}
	return &c
}

func (r *userRepo) Get(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *userRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return repositories.ErrConflict
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *userRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *userRepo) ApplyAward(_ context.Context, id string, a models.AwardUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.DisplayName = a.DisplayName
	u.XP = a.XP
	u.Level = a.Level
	u.TotalXPEarned += a.Granted
	u.LastSeenAt = a.SeenAt
	u.UpdatedAt = time.Now()
	if a.Period {
		u.WeeklyXP += a.Granted
		u.MonthlyXP += a.Granted
		if u.TodayDate == a.Today {
			u.TodayXP += a.Granted
		} else {
			u.TodayXP = a.Granted
		}
		u.TodayDate = a.Today
	}
	if a.LastMessageTime != nil {
		u.LastMessageTime = *a.LastMessageTime
	}
	if a.Streak != nil {
		u.Streak = *a.Streak
		u.LastActiveDate = a.LastActiveDate
	}
	return nil
}

func (r *userRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *userRepo) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.users))
	r.users = make(map[string]*models.User)
	return n, nil
}

func periodValue(u *models.User, period repositories.Period) int64 {
	switch period {
	case repositories.PeriodWeekly:
		return u.WeeklyXP
	case repositories.PeriodMonthly:
		return u.MonthlyXP
	default:
		return u.TotalXPEarned
	}
}

func (r *userRepo) Top(_ context.Context, period repositories.Period, limit int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		vi, vj := periodValue(users[i], period), periodValue(users[j], period)
		if vi != vj {
			return vi > vj
		}
		return users[i].ID < users[j].ID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *userRepo) Rank(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.users[id]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	rank := int64(1)
	for _, u := range r.users {
		if u.TotalXPEarned > target.TotalXPEarned {
			rank++
		}
	}
	return rank, nil
}

func (r *userRepo) Stats(_ context.Context) (*models.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &models.UserStats{Users: int64(len(r.users))}
	var levels int
	for _, u := range r.users {
		stats.TotalXP += u.TotalXPEarned
		stats.WeeklyXP += u.WeeklyXP
		levels += u.Level
		if u.Level > stats.TopLevel {
			stats.TopLevel = u.Level
		}
	}
	if stats.Users > 0 {
		stats.AvgLevel = float64(levels) / float64(stats.Users)
	}
	return stats, nil
}

func (r *userRepo) ListJoined(_ context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []*models.User
	for _, u := range r.users {
		if u.JoinedAt != nil {
			users = append(users, cloneUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *userRepo) update(fn func(u *models.User) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if fn(u) {
			n++
		}
	}
	return n
}

func (r *userRepo) ResetWeekly(_ context.Context) (int64, error) {
	return r.update(func(u *models.User) bool {
		if u.WeeklyXP == 0 {
			return false
		}
		u.WeeklyXP = 0
		return true
	}), nil
}

func (r *userRepo) ResetMonthly(_ context.Context) (int64, error) {
	return r.update(func(u *models.User) bool {
		if u.MonthlyXP == 0 && u.TodayXP == 0 {
			return false
		}
		u.MonthlyXP = 0
		u.TodayXP = 0
		return true
	}), nil
}

func (r *userRepo) ResetDaily(_ context.Context) (int64, error) {
	return r.update(func(u *models.User) bool {
		if u.TodayXP == 0 {
			return false
		}
		u.TodayXP = 0
		return true
	}), nil
}

func (r *userRepo) ApplyDecay(_ context.Context, inactiveSince time.Time, factor float64) (int64, error) {
	return r.update(func(u *models.User) bool {
		if u.XP <= 0 || !u.LastSeenAt.Before(inactiveSince) {
			return false
		}
		u.XP = int64(math.Floor(float64(u.XP) * factor))
		return true
	}), nil
}

func (r *userRepo) IncrementVoiceTime(_ context.Context, ids []string, minutes int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			u.VoiceTime += minutes
		}
	}
	return nil
}

func (r *userRepo) SetVoiceTime(_ context.Context, id string, minutes int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.VoiceTime = minutes
	}
	return nil
}

func (r *userRepo) AddInvites(_ context.Context, id string, n int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.Invites += n
	return nil
}

func (r *userRepo) ClaimDailyBonus(_ context.Context, id string, day string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.LastDailyBonusDate == day {
		return false, nil
	}
	u.LastDailyBonusDate = day
	return true, nil
}

func (r *userRepo) SetJoinedAt(_ context.Context, id string, joinedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.JoinedAt != nil {
		return false, nil
	}
	u.JoinedAt = &joinedAt
	u.UpdatedAt = time.Now()
	return true, nil
}
