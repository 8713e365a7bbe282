package game

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type PowerUpType string

const (
	PowerUpPriority PowerUpType = "PRIORITY"
	PowerUpBlock    PowerUpType = "BLOCK"
)

var PowerUpTypes = []PowerUpType{PowerUpPriority, PowerUpBlock}

var (
	ErrUnknownPowerUp = errors.New("unknown power-up type")
	ErrNoCharges      = errors.New("no charges left")
	ErrCooldown       = errors.New("power-up on cooldown")
)

// ParsePowerUpType accepts the wire names plus the legacy aliases used by
// older clients.
func ParsePowerUpType(s string) (PowerUpType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PRIORITY", "PRIORITY_MODE":
		return PowerUpPriority, nil
	case "BLOCK", "BLOCK_NUMBERS":
		return PowerUpBlock, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPowerUp, s)
}

// Inventory tracks one player's power-up charges and cooldowns.
type Inventory struct {
	charges map[PowerUpType]int
	lastUse map[PowerUpType]time.Time
}

func NewInventory(initial int) *Inventory {
	inv := &Inventory{
		charges: make(map[PowerUpType]int, len(PowerUpTypes)),
		lastUse: make(map[PowerUpType]time.Time, len(PowerUpTypes)),
	}
	for _, t := range PowerUpTypes {
		inv.charges[t] = initial
	}
	return inv
}

func (inv *Inventory) Count(t PowerUpType) int { return inv.charges[t] }

// LastUse returns the zero time if t was never used.
func (inv *Inventory) LastUse(t PowerUpType) time.Time { return inv.lastUse[t] }

// Counts returns a copy keyed by wire name.
func (inv *Inventory) Counts() map[string]int {
	out := make(map[string]int, len(inv.charges))
	for t, c := range inv.charges {
		out[string(t)] = c
	}
	return out
}

// Check reports whether t can be activated at now. Cooldowns are tracked
// independently per type.
func (inv *Inventory) Check(t PowerUpType, now time.Time, rules Rules) error {
	if inv.charges[t] <= 0 {
		return ErrNoCharges
	}
	last, used := inv.lastUse[t]
	if used && now.Sub(last) < rules.Cooldown(t) {
		return ErrCooldown
	}
	return nil
}

// Use consumes one charge of t and starts its cooldown.
func (inv *Inventory) Use(t PowerUpType, now time.Time, rules Rules) error {
	if err := inv.Check(t, now, rules); err != nil {
		return err
	}
	inv.charges[t]--
	inv.lastUse[t] = now
	return nil
}

func (inv *Inventory) Grant(t PowerUpType, n int) {
	inv.charges[t] += n
}

// Scarcest returns the type with the fewest charges, preferring priority.
func (inv *Inventory) Scarcest() PowerUpType {
	best := PowerUpTypes[0]
	for _, t := range PowerUpTypes[1:] {
		if inv.charges[t] < inv.charges[best] {
			best = t
		}
	}
	return best
}

// Effect is a power-up activation in force.
type Effect struct {
	ID       string      `json:"id"`
	Type     PowerUpType `json:"type"`
	PlayerID string      `json:"player_id"`
	Numbers  []int       `json:"numbers,omitempty"`
	Start    time.Time   `json:"start"`
	Until    time.Time   `json:"until"`
}

func (e *Effect) Active(now time.Time) bool { return now.Before(e.Until) }

// Effects is the set of power-up effects of one match.
type Effects struct {
	active map[string]*Effect
}

func NewEffects() *Effects {
	return &Effects{active: make(map[string]*Effect)}
}

func (e *Effects) Add(effect *Effect) { e.active[effect.ID] = effect }

// Remove drops an effect. Removing twice is a no-op.
func (e *Effects) Remove(id string) (*Effect, bool) {
	effect, ok := e.active[id]
	if ok {
		delete(e.active, id)
	}
	return effect, ok
}

// PriorityHolder returns the player holding an unexpired priority window.
func (e *Effects) PriorityHolder(now time.Time) (string, bool) {
	var holder *Effect
	for _, effect := range e.active {
		if effect.Type != PowerUpPriority || !effect.Active(now) {
			continue
		}
		if holder == nil || effect.Start.Before(holder.Start) {
			holder = effect
		}
	}
	if holder == nil {
		return "", false
	}
	return holder.PlayerID, true
}

// List returns the active effects in no particular order.
func (e *Effects) List() []Effect {
	out := make([]Effect, 0, len(e.active))
	for _, effect := range e.active {
		out = append(out, *effect)
	}
	return out
}
