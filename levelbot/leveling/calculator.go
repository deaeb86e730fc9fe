package leveling

import (
	"math/big"
	"regexp"
	"unicode/utf8"
)

var (
	urlRegex   = regexp.MustCompile(`https?://[^\s]+`)
	imageRegex = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|avif)$`)
)

// RequiredXP is floor(level * 100 * 1.1^(level-1)), computed exactly.
func RequiredXP(level int) int64 {
	if level < 1 {
		return 0
	}
	exp := int64(level - 1)
	num := new(big.Int).Exp(big.NewInt(11), big.NewInt(exp), nil)
	num.Mul(num, big.NewInt(int64(level)*100))
	den := new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil)
	return num.Quo(num, den).Int64()
}

type Calculator struct {
	config *Config
}

func NewCalculator(config *Config) *Calculator {
	return &Calculator{config: config}
}

// MessageBase draws the base XP for a message. intn behaves like rand.Intn.
func (c *Calculator) MessageBase(intn func(n int) int) int64 {
	span := c.config.MaxMessageXP - c.config.MinMessageXP + 1
	return c.config.MinMessageXP + int64(intn(int(span)))
}

func (c *Calculator) VoiceBase(minutes int64) int64 {
	if minutes <= 0 {
		return 0
	}
	return minutes / c.config.VoiceMinutesPerXP
}

// ContentBonus adds the link and image-link bonuses found in content.
func (c *Calculator) ContentBonus(content string) int64 {
	var bonus int64
	for _, url := range urlRegex.FindAllString(content, -1) {
		if imageRegex.MatchString(url) {
			bonus += c.config.ImageBonus
		} else {
			bonus += c.config.LinkBonus
		}
	}
	return bonus
}

func (c *Calculator) LengthFactor(content string) float64 {
	n := utf8.RuneCountInString(content)
	for _, tier := range c.config.LengthTiers {
		if n >= tier.MinChars {
			return tier.Factor
		}
	}
	return 1.0
}

// Settle adds granted to the level progress and advances at most one level.
func (c *Calculator) Settle(xp int64, level int, granted int64) (int64, int, bool) {
	xp += granted
	if required := RequiredXP(level); xp >= required {
		return xp - required, level + 1, true
	}
	return xp, level, false
}
