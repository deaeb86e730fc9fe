package leveling

type Source string

const (
	SourceMessage     Source = "message"
	SourceVoice       Source = "voice"
	SourceReaction    Source = "reaction"
	SourceInvite      Source = "invite"
	SourceWelcome     Source = "welcome"
	SourceAnniversary Source = "anniversary"
	SourceDaily       Source = "daily"
	SourceMentor      Source = "mentor"
	SourceChallenge   Source = "challenge"
	SourceAdmin       Source = "admin"
)

// Rule selects which pipeline stages apply to a source.
type Rule struct {
	// ChannelGated sources are rejected in blacklisted channels.
	ChannelGated bool
	Cooldown     bool
	// Content enables link bonuses, the length factor and the first
	// message in channel bonus.
	Content    bool
	Streak     bool
	Multiplied bool
	Capped     bool
	// Period awards also count toward weekly, monthly and daily totals.
	Period bool
}

var Rules = map[Source]Rule{
	SourceMessage:     {ChannelGated: true, Cooldown: true, Content: true, Streak: true, Multiplied: true, Capped: true, Period: true},
	SourceVoice:       {ChannelGated: true, Streak: true, Multiplied: true, Capped: true, Period: true},
	SourceReaction:    {ChannelGated: true, Multiplied: true, Capped: true, Period: true},
	SourceInvite:      {Multiplied: true, Capped: true, Period: true},
	SourceWelcome:     {Multiplied: true},
	SourceAnniversary: {Multiplied: true},
	SourceDaily:       {Capped: true, Period: true},
	SourceMentor:      {Capped: true, Period: true},
	SourceChallenge:   {Period: true},
	SourceAdmin:       {},
}

// Activity is one XP-earning signal. Amount is used by sources without a
// computed base.
type Activity struct {
	Source       Source
	ChannelID    string
	Roles        []string
	Content      string
	VoiceMinutes int64
	Amount       int64
}

type SkipReason string

const (
	SkipBlacklisted SkipReason = "blacklisted"
	SkipCooldown    SkipReason = "cooldown"
)

type Result struct {
	NewXP         int64
	NewLevel      int
	PreviousLevel int
	LeveledUp     bool
	TotalXPEarned int64
	GrantedXP     int64
	// Capped is set when the daily cap clipped or swallowed the award.
	Capped  bool
	Skipped SkipReason
	Created bool
	Streak  int
}

// Applied reports whether the award reached the store.
func (r *Result) Applied() bool {
	return r.Skipped == "" && !(r.Capped && r.GrantedXP == 0)
}
