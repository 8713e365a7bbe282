package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"numberrush/game"

	"github.com/redis/go-redis/v9"
)

const snapshotTTL = 2 * time.Hour

var ErrSnapshotNotFound = errors.New("match snapshot not found")

type PlayerSnapshot struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Color    string         `json:"color"`
	Score    int            `json:"score"`
	Claims   int            `json:"claims"`
	Ready    bool           `json:"ready"`
	Present  bool           `json:"present"`
	PowerUps map[string]int `json:"power_ups,omitempty"`
}

// MatchSnapshot is a read-only view of a match for observers.
type MatchSnapshot struct {
	ID               string           `json:"id"`
	Status           MatchStatus      `json:"status"`
	GridSize         int              `json:"grid_size"`
	MaxPlayers       int              `json:"max_players"`
	Players          []PlayerSnapshot `json:"players"`
	Target           int              `json:"target,omitempty"`
	Claimed          int              `json:"claimed"`
	Remaining        int              `json:"remaining"`
	RemainingSeconds int              `json:"remaining_seconds"`
	Effects          []game.Effect    `json:"effects,omitempty"`
	WinnerID         string           `json:"winner_id,omitempty"`
	EndReason        string           `json:"end_reason,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	StartedAt        *time.Time       `json:"started_at,omitempty"`
	EndedAt          *time.Time       `json:"ended_at,omitempty"`
}

// MatchSummary is the lobby listing entry of a live match.
type MatchSummary struct {
	ID         string      `json:"id"`
	Status     MatchStatus `json:"status"`
	Players    int         `json:"players"`
	MaxPlayers int         `json:"max_players"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (m *Match) Summary() MatchSummary {
	return MatchSummary{
		ID:         m.id,
		Status:     m.Status(),
		Players:    m.Size(),
		MaxPlayers: m.rules.MaxPlayers,
		CreatedAt:  m.createdAt,
	}
}

// Snapshot returns the current state, or the final state once the match
// has closed.
func (m *Match) Snapshot() MatchSnapshot {
	var snap MatchSnapshot
	if err := m.exec(func() { snap = m.snapshot() }); err != nil {
		return m.final
	}
	return snap
}

func (m *Match) snapshot() MatchSnapshot {
	snap := MatchSnapshot{
		ID:         m.id,
		Status:     m.status,
		GridSize:   m.rules.GridSize,
		MaxPlayers: m.rules.MaxPlayers,
		Players:    make([]PlayerSnapshot, 0, len(m.order)),
		Remaining:  m.rules.GridSize,
		WinnerID:   m.winnerID,
		EndReason:  m.endReason,
		CreatedAt:  m.createdAt,
	}
	for _, pl := range m.order {
		ps := PlayerSnapshot{
			ID:      pl.id,
			Name:    pl.name,
			Color:   pl.color,
			Score:   pl.score,
			Claims:  pl.claims,
			Ready:   pl.ready,
			Present: pl.present,
		}
		if pl.inventory != nil {
			ps.PowerUps = pl.inventory.Counts()
		}
		snap.Players = append(snap.Players, ps)
	}
	if m.pool != nil {
		snap.Target = m.pool.Target()
		snap.Claimed = m.pool.ClaimedCount()
		snap.Remaining = m.pool.RemainingCount()
	}
	if m.status == StatusActive {
		snap.RemainingSeconds = m.remainingSeconds()
		snap.Effects = m.effects.List()
	}
	if !m.startedAt.IsZero() {
		started := m.startedAt
		snap.StartedAt = &started
	}
	if !m.endedAt.IsZero() {
		ended := m.endedAt
		snap.EndedAt = &ended
	}
	return snap
}

// SnapshotWriter stores match snapshots in Redis off the match goroutines.
type SnapshotWriter struct {
	redis redis.Cmdable
	queue chan MatchSnapshot
}

func NewSnapshotWriter(client redis.Cmdable, buffer int) *SnapshotWriter {
	return &SnapshotWriter{
		redis: client,
		queue: make(chan MatchSnapshot, buffer),
	}
}

// Publish queues a snapshot without blocking. It reports false when the
// queue is full and the snapshot was dropped.
func (w *SnapshotWriter) Publish(s MatchSnapshot) bool {
	select {
	case w.queue <- s:
		return true
	default:
		return false
	}
}

// Run writes queued snapshots until ctx is cancelled, then writes what is
// left in the queue so the final state of ended matches is kept.
func (w *SnapshotWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case snap := <-w.queue:
			w.write(context.WithoutCancel(ctx), snap)
		}
	}
}

func (w *SnapshotWriter) drain() {
	for {
		select {
		case snap := <-w.queue:
			w.write(context.Background(), snap)
		default:
			return
		}
	}
}

func (w *SnapshotWriter) write(parent context.Context, snap MatchSnapshot) {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()
	if err := w.store(ctx, snap); err != nil {
		log.Printf("Error storing snapshot of match %s: %v", snap.ID, err)
	}
}

func (w *SnapshotWriter) store(ctx context.Context, snap MatchSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal match snapshot: %w", err)
	}
	if err := w.redis.Set(ctx, snapshotKey(snap.ID), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to store in Redis: %w", err)
	}
	return nil
}

// Load reads the last stored snapshot of a match.
func (w *SnapshotWriter) Load(ctx context.Context, matchID string) (*MatchSnapshot, error) {
	data, err := w.redis.Get(ctx, snapshotKey(matchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap MatchSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func snapshotKey(matchID string) string {
	return "match:" + matchID
}
