package leveling

type LengthTier struct {
	MinChars int
	Factor   float64
}

type Config struct {
	// Message base XP is drawn uniformly from [MinMessageXP, MaxMessageXP].
	MinMessageXP int64
	MaxMessageXP int64

	LinkBonus         int64
	ImageBonus        int64
	FirstMessageBonus int64

	VoiceMinutesPerXP int64

	// Ordered from the longest threshold down.
	LengthTiers []LengthTier

	// Size of the first-message-in-channel tracker.
	FirstMessageCacheSize int
}

func NewDefaultConfig() *Config {
	return &Config{
		MinMessageXP:      10,
		MaxMessageXP:      25,
		LinkBonus:         3,
		ImageBonus:        5,
		FirstMessageBonus: 5,
		VoiceMinutesPerXP: 5,
		LengthTiers: []LengthTier{
			{MinChars: 100, Factor: 2.0},
			{MinChars: 50, Factor: 1.5},
			{MinChars: 25, Factor: 1.2},
		},
		FirstMessageCacheSize: 10000,
	}
}
