package router

import (
	"time"

	"github.com/trinity-stack/trinity/pkg/config"
)

// TierConfig is the resolved routing target for one difficulty level.
type TierConfig struct {
	Endpoint    string
	Model       string
	Timeout     time.Duration
	ExtraPrompt string
	Notice      string
}

func fromTier(t config.Tier, notice string) TierConfig {
	return TierConfig{
		Endpoint:    t.Endpoint,
		Model:       t.Model,
		Timeout:     time.Duration(t.TimeoutSeconds) * time.Second,
		ExtraPrompt: t.ExtraPrompt,
		Notice:      notice,
	}
}

// tierFor resolves a difficulty to its backend. The switch is exhaustive
// over the closed enum; Medium doubles as the fallback arm so an invalid
// value can never select a missing tier.
func tierFor(d Difficulty, tiers config.Tiers) TierConfig {
	switch d {
	case Easy:
		return fromTier(tiers.Easy, "🐇 使用快速模型回應...")
	case Hard:
		return fromTier(tiers.Hard, "🎓 召喚深度思考模型...")
	case Medium:
		fallthrough
	default:
		return fromTier(tiers.Medium, "⚡ 使用主力模型...")
	}
}

// effectiveDifficulty downgrades HARD to MEDIUM when the caller has not
// opted into deep thinking.
func effectiveDifficulty(d Difficulty, allowDeepThink bool) Difficulty {
	if d == Hard && !allowDeepThink {
		return Medium
	}
	return d
}
