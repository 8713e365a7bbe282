package game

import (
	"errors"
	"fmt"
	"time"
)

// Rules holds every tunable constant of a match. Values come from config so
// operators can adjust them without a rebuild.
type Rules struct {
	GridSize           int
	MinPlayers         int
	MaxPlayers         int
	MatchDuration      time.Duration
	TimeUpdateInterval time.Duration

	// TargetOnly restricts claims to the current target number.
	TargetOnly bool

	BasePoints        int
	LuckyBonus        int
	SpeedBonus        int
	SpeedWindow       time.Duration
	ConsecutiveFactor int

	// BonusInterval grants a power-up charge on every Nth claim of the match.
	BonusInterval int

	InitialCharges   int
	PriorityCooldown time.Duration
	BlockCooldown    time.Duration
	PriorityDuration time.Duration
	BlockDuration    time.Duration
	BlockCount       int
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		GridSize:           100,
		MinPlayers:         2,
		MaxPlayers:         4,
		MatchDuration:      120 * time.Second,
		TimeUpdateInterval: 5 * time.Second,
		TargetOnly:         true,

		BasePoints:        1,
		LuckyBonus:        5,
		SpeedBonus:        2,
		SpeedWindow:       1000 * time.Millisecond,
		ConsecutiveFactor: 2,

		BonusInterval: 10,

		InitialCharges:   3,
		PriorityCooldown: 30 * time.Second,
		BlockCooldown:    45 * time.Second,
		PriorityDuration: 30 * time.Second,
		BlockDuration:    15 * time.Second,
		BlockCount:       5,
	}
}

var ErrInvalidRules = errors.New("invalid rules")

// Validate reports the first inconsistent setting.
func (r Rules) Validate() error {
	switch {
	case r.GridSize < 1:
		return fmt.Errorf("%w: grid size must be positive", ErrInvalidRules)
	case r.MinPlayers < 1:
		return fmt.Errorf("%w: min players must be positive", ErrInvalidRules)
	case r.MaxPlayers < r.MinPlayers:
		return fmt.Errorf("%w: max players %d below min players %d", ErrInvalidRules, r.MaxPlayers, r.MinPlayers)
	case r.MatchDuration <= 0:
		return fmt.Errorf("%w: match duration must be positive", ErrInvalidRules)
	case r.ConsecutiveFactor < 1:
		return fmt.Errorf("%w: consecutive factor must be at least 1", ErrInvalidRules)
	case r.BlockCount < 0 || r.InitialCharges < 0 || r.BonusInterval < 0:
		return fmt.Errorf("%w: counts must not be negative", ErrInvalidRules)
	}
	return nil
}

// Cooldown returns the minimum time between two activations of t.
func (r Rules) Cooldown(t PowerUpType) time.Duration {
	if t == PowerUpBlock {
		return r.BlockCooldown
	}
	return r.PriorityCooldown
}

// EffectDuration returns how long an activation of t stays in force.
func (r Rules) EffectDuration(t PowerUpType) time.Duration {
	if t == PowerUpBlock {
		return r.BlockDuration
	}
	return r.PriorityDuration
}
