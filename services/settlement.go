package services

import (
	"context"
	"log"
	"time"

	"numberrush/game"
	"numberrush/models"
	"numberrush/protocol"
)

// Settlement is the outcome of a finished match handed to persistence.
type Settlement struct {
	MatchID   string
	WinnerID  string
	Reason    string
	StartedAt time.Time
	Duration  time.Duration
	Players   []PlayerResult
}

type PlayerResult struct {
	PlayerID     string
	Name         string
	Score        int
	Claims       int
	LuckyNumbers int
	PowerUpsUsed int
	Won          bool
}

// Notifier pushes a message to a connected player if there is one.
type Notifier interface {
	SendTo(playerID string, msg protocol.Message) bool
}

// SettlementWorker persists finished matches and updates player rankings
// on a single goroutine.
type SettlementWorker struct {
	gateway  Gateway
	notifier Notifier
	queue    chan Settlement
	timeout  time.Duration
}

func NewSettlementWorker(gateway Gateway, notifier Notifier, buffer int) *SettlementWorker {
	return &SettlementWorker{
		gateway:  gateway,
		notifier: notifier,
		queue:    make(chan Settlement, buffer),
		timeout:  10 * time.Second,
	}
}

// SetNotifier sets where unlocked achievements are pushed. It must be called
// before Run.
func (w *SettlementWorker) SetNotifier(notifier Notifier) {
	w.notifier = notifier
}

// Submit queues s without blocking and reports whether it was accepted.
func (w *SettlementWorker) Submit(s Settlement) bool {
	select {
	case w.queue <- s:
		return true
	default:
		return false
	}
}

// Run settles queued matches until ctx is cancelled, then drains what is
// left in the queue.
func (w *SettlementWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case s := <-w.queue:
			w.settle(context.WithoutCancel(ctx), s)
		}
	}
}

func (w *SettlementWorker) drain() {
	for {
		select {
		case s := <-w.queue:
			w.settle(context.Background(), s)
		default:
			return
		}
	}
}

func (w *SettlementWorker) settle(parent context.Context, s Settlement) {
	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()

	record := &models.GameRecord{
		MatchID:         s.MatchID,
		DurationSeconds: int(s.Duration / time.Second),
		WinnerID:        s.WinnerID,
		EndReason:       s.Reason,
		PlayedAt:        s.StartedAt,
	}
	for _, p := range s.Players {
		record.Participants = append(record.Participants, models.GameParticipant{
			Username:     p.PlayerID,
			Score:        p.Score,
			Claims:       p.Claims,
			LuckyNumbers: p.LuckyNumbers,
			PowerUpsUsed: p.PowerUpsUsed,
		})
	}

	inserted, err := w.gateway.RecordMatch(ctx, record)
	if err != nil {
		log.Printf("Error recording match %s: %v", s.MatchID, err)
	} else if !inserted {
		log.Printf("Match %s already settled, skipping", s.MatchID)
		return
	}

	// A restart interrupts the game; it is kept in history but does not
	// count towards anyone's record.
	if s.Reason == protocol.EndShutdown {
		log.Printf("Match %s interrupted by shutdown, player stats unchanged", s.MatchID)
		return
	}

	for _, p := range s.Players {
		w.settlePlayer(ctx, s, p)
	}
	log.Printf("Settled match %s (%d players)", s.MatchID, len(s.Players))
}

func (w *SettlementWorker) settlePlayer(ctx context.Context, s Settlement, p PlayerResult) {
	account, err := w.gateway.LoadAccount(ctx, p.PlayerID)
	if err != nil {
		log.Printf("Error loading account %s for match %s: %v", p.PlayerID, s.MatchID, err)
		return
	}

	stats := account.Stats().Apply(game.MatchResult{
		Won:          p.Won,
		Score:        p.Score,
		LuckyNumbers: p.LuckyNumbers,
		Duration:     s.Duration,
	})
	if err := w.gateway.UpdateAccountStats(ctx, p.PlayerID, stats); err != nil {
		log.Printf("Error updating stats of %s: %v", p.PlayerID, err)
		return
	}
	if err := w.gateway.UpdateRankScore(ctx, p.PlayerID, game.RankScore(stats)); err != nil {
		log.Printf("Error updating rank score of %s: %v", p.PlayerID, err)
	}

	owned, err := w.gateway.LoadAchievements(ctx, p.PlayerID)
	if err != nil {
		log.Printf("Error loading achievements of %s: %v", p.PlayerID, err)
		return
	}
	unlocked := game.Unlocked(stats, owned)
	if len(unlocked) == 0 {
		return
	}
	if err := w.gateway.UpdateAchievements(ctx, p.PlayerID, unlocked); err != nil {
		log.Printf("Error storing achievements of %s: %v", p.PlayerID, err)
		return
	}

	log.Printf("Player %s unlocked %v", p.PlayerID, unlocked)
	if w.notifier != nil {
		w.notifier.SendTo(p.PlayerID, protocol.New(protocol.TypeAchievementUnlocked, protocol.AchievementUnlocked{
			Achievements: unlocked,
		}))
	}
}
