// Package activity turns platform signals into awards and their follow-up
// effects. Errors are logged here and never reach the gateway loop.
package activity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/disgoorg/levelbot/levelbot/challenges"
	"github.com/disgoorg/levelbot/levelbot/database/models"
	"github.com/disgoorg/levelbot/levelbot/database/repositories"
	"github.com/disgoorg/levelbot/levelbot/leaderboard"
	"github.com/disgoorg/levelbot/levelbot/leveling"
	"github.com/disgoorg/levelbot/levelbot/logger"
	"github.com/disgoorg/levelbot/levelbot/notify"
	"github.com/disgoorg/levelbot/levelbot/settings"
	"github.com/disgoorg/levelbot/levelbot/streak"
	"github.com/disgoorg/levelbot/levelbot/voice"
)

// Member identifies who acted and where.
type Member struct {
	UserID      string
	DisplayName string
	AvatarURL   string
	ChannelID   string
	Roles       []string
	Bot         bool
}

type LevelUpNotifier interface {
	LevelUp(ctx context.Context, lu notify.LevelUp) error
}

type Pipeline struct {
	engine     *leveling.Service
	stores     *repositories.Stores
	settings   *settings.Settings
	challenges *challenges.Tracker
	voice      *voice.Tracker
	board      *leaderboard.Board
	notifier   LevelUpNotifier
	loc        *time.Location

	// Now is replaced by tests.
	Now func() time.Time
}

func NewPipeline(
	engine *leveling.Service,
	stores *repositories.Stores,
	s *settings.Settings,
	tracker *challenges.Tracker,
	presence *voice.Tracker,
	board *leaderboard.Board,
	notifier LevelUpNotifier,
	loc *time.Location,
) *Pipeline {
	if loc == nil {
		loc = time.UTC
	}
	return &Pipeline{
		engine:     engine,
		stores:     stores,
		settings:   s,
		challenges: tracker,
		voice:      presence,
		board:      board,
		notifier:   notifier,
		loc:        loc,
		Now:        time.Now,
	}
}

func (p *Pipeline) Voice() *voice.Tracker {
	return p.voice
}

func (p *Pipeline) today() string {
	return p.Now().In(p.loc).Format(streak.DayLayout)
}

// OnMessage awards a chat message, then the daily bonus and challenge
// progress it unlocks.
func (p *Pipeline) OnMessage(ctx context.Context, m Member, content string) {
	if m.Bot {
		return
	}
	res, ok := p.award(ctx, m, leveling.Activity{
		Source:    leveling.SourceMessage,
		ChannelID: m.ChannelID,
		Roles:     m.Roles,
		Content:   content,
	})
	if !ok || !res.Applied() {
		return
	}

	if err := p.dailyBonus(ctx, m); err != nil {
		logger.LogError("Failed to grant daily bonus", err, "user_id", m.UserID)
	}
	p.progress(ctx, m, models.ChallengeMessages, 1)
}

func (p *Pipeline) dailyBonus(ctx context.Context, m Member) error {
	amount, err := p.settings.DailyBonus(ctx)
	if err != nil || amount <= 0 {
		return err
	}
	claimed, err := p.stores.Users.ClaimDailyBonus(ctx, m.UserID, p.today())
	if err != nil || !claimed {
		return err
	}
	p.award(ctx, m, leveling.Activity{Source: leveling.SourceDaily, Amount: amount})
	return nil
}

// OnVoiceJoin starts or moves a voice session. A fresh session starts the
// voice minute counter from zero.
func (p *Pipeline) OnVoiceJoin(ctx context.Context, m Member) {
	if m.Bot {
		return
	}
	fresh := p.voice.Join(voice.Session{
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		ChannelID:   m.ChannelID,
		Roles:       m.Roles,
		JoinedAt:    p.Now(),
	})
	if !fresh {
		return
	}
	if err := p.ensureUser(ctx, m); err != nil {
		logger.LogError("Failed to register voice member", err, "user_id", m.UserID)
		return
	}
	if err := p.stores.Users.SetVoiceTime(ctx, m.UserID, 0); err != nil {
		logger.LogError("Failed to reset voice time", err, "user_id", m.UserID)
	}
}

// OnVoiceLeave closes the session and awards the minutes counted by the
// voice tick.
func (p *Pipeline) OnVoiceLeave(ctx context.Context, userID string) {
	session, ok := p.voice.Leave(userID)
	if !ok {
		return
	}
	user, err := p.stores.Users.Get(ctx, userID)
	if err != nil {
		logger.LogError("Failed to load voice member", err, "user_id", userID)
		return
	}
	if user.VoiceTime <= 0 {
		return
	}

	m := Member{
		UserID:      userID,
		DisplayName: session.DisplayName,
		ChannelID:   session.ChannelID,
		Roles:       session.Roles,
	}
	p.award(ctx, m, leveling.Activity{
		Source:       leveling.SourceVoice,
		ChannelID:    session.ChannelID,
		Roles:        session.Roles,
		VoiceMinutes: user.VoiceTime,
	})
	p.progress(ctx, m, models.ChallengeVoiceMinutes, user.VoiceTime)
}

func (p *Pipeline) OnReaction(ctx context.Context, m Member) {
	if m.Bot {
		return
	}
	res, ok := p.award(ctx, m, leveling.Activity{
		Source:    leveling.SourceReaction,
		ChannelID: m.ChannelID,
		Roles:     m.Roles,
	})
	if !ok || !res.Applied() {
		return
	}
	p.progress(ctx, m, models.ChallengeReactions, 1)
}

// OnMemberJoin records the join date and grants the welcome bonus on a
// member's first arrival. An existing record only gets a join date when it
// has none yet.
func (p *Pipeline) OnMemberJoin(ctx context.Context, m Member, joinedAt time.Time) {
	if m.Bot {
		return
	}
	err := p.stores.Users.Create(ctx, &models.User{
		ID:          m.UserID,
		DisplayName: m.DisplayName,
		Level:       1,
		JoinedAt:    &joinedAt,
		LastSeenAt:  p.Now(),
	})
	if errors.Is(err, repositories.ErrConflict) {
		var recorded bool
		recorded, err = p.stores.Users.SetJoinedAt(ctx, m.UserID, joinedAt)
		if err == nil && !recorded {
			return
		}
	}
	if err != nil {
		logger.LogError("Failed to record member join", err, "user_id", m.UserID)
		return
	}
	p.award(ctx, m, leveling.Activity{Source: leveling.SourceWelcome, Roles: m.Roles})
}

// OnInvite credits the inviter of a new member.
func (p *Pipeline) OnInvite(ctx context.Context, inviter Member) {
	if inviter.Bot {
		return
	}
	if _, ok := p.award(ctx, inviter, leveling.Activity{Source: leveling.SourceInvite, Roles: inviter.Roles}); !ok {
		return
	}
	if err := p.stores.Users.AddInvites(ctx, inviter.UserID, 1); err != nil {
		logger.LogError("Failed to count invite", err, "user_id", inviter.UserID)
	}
}

// Anniversary grants the yearly join anniversary bonus.
func (p *Pipeline) Anniversary(ctx context.Context, user *models.User) error {
	_, err := p.Award(ctx, Member{UserID: user.ID, DisplayName: user.DisplayName}, leveling.Activity{Source: leveling.SourceAnniversary})
	return err
}

// Grant applies an operator adjustment.
func (p *Pipeline) Grant(ctx context.Context, m Member, amount int64) (*leveling.Result, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %d", amount)
	}
	return p.Award(ctx, m, leveling.Activity{Source: leveling.SourceAdmin, Amount: amount})
}

// Award runs one activity through the engine and applies its follow-up
// effects.
func (p *Pipeline) Award(ctx context.Context, m Member, a leveling.Activity) (*leveling.Result, error) {
	res, err := p.engine.Award(ctx, m.UserID, m.DisplayName, a)
	if err != nil {
		return nil, err
	}
	if !res.Applied() {
		return res, nil
	}

	p.board.Record(ctx, m.UserID, res.GrantedXP, leveling.Rules[a.Source].Period)

	if res.LeveledUp && p.notifier != nil {
		err = p.notifier.LevelUp(ctx, notify.LevelUp{
			UserID:        m.UserID,
			DisplayName:   m.DisplayName,
			AvatarURL:     m.AvatarURL,
			ChannelID:     m.ChannelID,
			Roles:         m.Roles,
			NewLevel:      res.NewLevel,
			TotalXPEarned: res.TotalXPEarned,
		})
		if err != nil {
			logger.LogError("Failed to announce level up", err, "user_id", m.UserID, "level", res.NewLevel)
		}
	}

	if sharesWithMentors(a.Source) {
		p.shareWithMentors(ctx, m, res.GrantedXP)
	}
	return res, nil
}

func (p *Pipeline) award(ctx context.Context, m Member, a leveling.Activity) (*leveling.Result, bool) {
	res, err := p.Award(ctx, m, a)
	if err != nil {
		logger.LogError("Failed to award XP", err, "user_id", m.UserID, "source", string(a.Source))
		return nil, false
	}
	return res, true
}

func sharesWithMentors(source leveling.Source) bool {
	switch source {
	case leveling.SourceMessage, leveling.SourceVoice, leveling.SourceReaction:
		return true
	}
	return false
}

// shareWithMentors grants each mentor floor(granted*bonus). Mentor awards do
// not share further.
func (p *Pipeline) shareWithMentors(ctx context.Context, mentee Member, granted int64) {
	mentors, err := p.stores.Mentors.MentorsOf(ctx, mentee.UserID)
	if err != nil {
		logger.LogError("Failed to load mentors", err, "user_id", mentee.UserID)
		return
	}
	for _, mt := range mentors {
		share := int64(math.Floor(float64(granted) * mt.Bonus))
		if share <= 0 {
			continue
		}
		p.award(ctx, Member{UserID: mt.MentorID, ChannelID: mentee.ChannelID}, leveling.Activity{
			Source: leveling.SourceMentor,
			Amount: share,
		})
	}
}

func (p *Pipeline) progress(ctx context.Context, m Member, kind models.ChallengeKind, amount int64) {
	claimed, err := p.challenges.Record(ctx, m.UserID, kind, amount)
	if err != nil {
		logger.LogError("Failed to record challenge progress", err, "user_id", m.UserID, "kind", string(kind))
	}
	for _, c := range claimed {
		p.award(ctx, m, leveling.Activity{Source: leveling.SourceChallenge, Amount: c.RewardXP})
	}
}

func (p *Pipeline) ensureUser(ctx context.Context, m Member) error {
	err := p.stores.Users.Create(ctx, &models.User{
		ID:          m.UserID,
		DisplayName: m.DisplayName,
		Level:       1,
		LastSeenAt:  p.Now(),
	})
	if errors.Is(err, repositories.ErrConflict) {
		return nil
	}
	return err
}
