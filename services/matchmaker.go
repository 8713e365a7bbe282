package services

import (
	"errors"
	"log"
	"sync"

	"numberrush/game"
	"numberrush/protocol"
)

// Matchmaker places players into waiting matches and routes their in-game
// requests to the match they belong to.
type Matchmaker struct {
	rules     game.Rules
	settler   Settler
	snapshots SnapshotPublisher

	mutex    sync.Mutex
	matches  map[string]*Match
	created  []*Match // creation order, live matches only
	byPlayer map[string]*Match
	closed   bool
}

func NewMatchmaker(rules game.Rules, settler Settler, snapshots SnapshotPublisher) *Matchmaker {
	return &Matchmaker{
		rules:     rules,
		settler:   settler,
		snapshots: snapshots,
		matches:   make(map[string]*Match),
		byPlayer:  make(map[string]*Match),
	}
}

// FindOrJoin seats p in the oldest waiting match with room, creating a new
// match when none can take the player. A player already in a match leaves
// it first.
func (mm *Matchmaker) FindOrJoin(p Participant) (*Match, error) {
	if err := mm.Leave(p.ID); err != nil && !errors.Is(err, ErrNotInMatch) {
		log.Printf("Error leaving previous match of %s: %v", p.ID, err)
	}

	mm.mutex.Lock()
	defer mm.mutex.Unlock()

	if mm.closed {
		return nil, ErrShuttingDown
	}

	for _, m := range mm.created {
		if !m.Joinable() {
			continue
		}
		if _, err := m.Join(p); err != nil {
			continue
		}
		mm.byPlayer[p.ID] = m
		return m, nil
	}

	m := mm.newMatch()
	if _, err := m.Join(p); err != nil {
		return nil, err
	}
	mm.byPlayer[p.ID] = m
	return m, nil
}

// newMatch must be called with the mutex held.
func (mm *Matchmaker) newMatch() *Match {
	opts := []MatchOption{WithOnClose(mm.remove)}
	if mm.settler != nil {
		opts = append(opts, WithSettler(mm.settler))
	}
	if mm.snapshots != nil {
		opts = append(opts, WithSnapshots(mm.snapshots))
	}
	m := NewMatch("", mm.rules, opts...)
	mm.matches[m.ID()] = m
	mm.created = append(mm.created, m)
	go m.Run()
	return m
}

// remove drops a closed match and its memberships from the registry.
func (mm *Matchmaker) remove(m *Match) {
	mm.mutex.Lock()
	defer mm.mutex.Unlock()

	delete(mm.matches, m.ID())
	for i, other := range mm.created {
		if other == m {
			mm.created = append(mm.created[:i], mm.created[i+1:]...)
			break
		}
	}
	for playerID, joined := range mm.byPlayer {
		if joined == m {
			delete(mm.byPlayer, playerID)
		}
	}
}

// MatchOf returns the match playerID currently belongs to.
func (mm *Matchmaker) MatchOf(playerID string) (*Match, bool) {
	mm.mutex.Lock()
	defer mm.mutex.Unlock()
	m, ok := mm.byPlayer[playerID]
	return m, ok
}

func (mm *Matchmaker) Get(matchID string) (*Match, bool) {
	mm.mutex.Lock()
	defer mm.mutex.Unlock()
	m, ok := mm.matches[matchID]
	return m, ok
}

func (mm *Matchmaker) Ready(playerID string) error {
	m, ok := mm.MatchOf(playerID)
	if !ok {
		return ErrNotInMatch
	}
	return m.SetReady(playerID)
}

func (mm *Matchmaker) Claim(playerID string, number int) (ClaimOutcome, error) {
	m, ok := mm.MatchOf(playerID)
	if !ok {
		return ClaimOutcome{Number: number, Reason: undeliveredReason(ErrNotInMatch)}, ErrNotInMatch
	}
	return m.Claim(playerID, number)
}

func (mm *Matchmaker) ActivatePowerUp(playerID, powerUp string) (PowerUpOutcome, error) {
	m, ok := mm.MatchOf(playerID)
	if !ok {
		return PowerUpOutcome{Reason: undeliveredReason(ErrNotInMatch)}, ErrNotInMatch
	}
	return m.ActivatePowerUp(playerID, powerUp)
}

// Leave removes playerID from its match.
func (mm *Matchmaker) Leave(playerID string) error {
	mm.mutex.Lock()
	m, ok := mm.byPlayer[playerID]
	delete(mm.byPlayer, playerID)
	mm.mutex.Unlock()

	if !ok {
		return ErrNotInMatch
	}
	if err := m.Leave(playerID); err != nil && !errors.Is(err, ErrMatchClosed) {
		return err
	}
	return nil
}

// List summarizes live matches, oldest first.
func (mm *Matchmaker) List() []MatchSummary {
	mm.mutex.Lock()
	matches := make([]*Match, len(mm.created))
	copy(matches, mm.created)
	mm.mutex.Unlock()

	out := make([]MatchSummary, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Summary())
	}
	return out
}

// Shutdown stops accepting players and ends every live match.
func (mm *Matchmaker) Shutdown() {
	mm.mutex.Lock()
	mm.closed = true
	matches := make([]*Match, len(mm.created))
	copy(matches, mm.created)
	mm.mutex.Unlock()

	for _, m := range matches {
		m.End(protocol.EndShutdown)
		<-m.Done()
	}
	log.Printf("Matchmaker stopped, %d matches ended", len(matches))
}
