package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"numberrush/game"
	"numberrush/models"
	"numberrush/protocol"
)

// recorder is an Outbox that keeps every message it receives.
type recorder struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (r *recorder) Send(msg protocol.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return true
}

func (r *recorder) ofType(typ string) []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.Message
	for _, m := range r.msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) last(t *testing.T, typ string) protocol.Message {
	t.Helper()
	msgs := r.ofType(typ)
	if len(msgs) == 0 {
		t.Fatalf("no %s message received", typ)
	}
	return msgs[len(msgs)-1]
}

// waitFor polls until a message of typ arrives.
func (r *recorder) waitFor(t *testing.T, typ string) protocol.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := r.ofType(typ); len(msgs) > 0 {
			return msgs[len(msgs)-1]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", typ)
	return protocol.Message{}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSettler struct {
	mu          sync.Mutex
	settlements []Settlement
}

func (s *fakeSettler) Submit(settlement Settlement) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements = append(s.settlements, settlement)
	return true
}

func (s *fakeSettler) all() []Settlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Settlement, len(s.settlements))
	copy(out, s.settlements)
	return out
}

// fakeGateway keeps accounts in memory.
type fakeGateway struct {
	mu           sync.Mutex
	accounts     map[string]*models.Account
	achievements map[string][]string
	records      map[string]*models.GameRecord
	failLoad     map[string]bool
}

func newFakeGateway(usernames ...string) *fakeGateway {
	g := &fakeGateway{
		accounts:     make(map[string]*models.Account),
		achievements: make(map[string][]string),
		records:      make(map[string]*models.GameRecord),
		failLoad:     make(map[string]bool),
	}
	for i, name := range usernames {
		g.accounts[name] = &models.Account{ID: uint(i + 1), Username: name, PasswordHash: "secret-" + name}
	}
	return g
}

func (g *fakeGateway) Authenticate(_ context.Context, username, password string) (*models.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.accounts[username]
	if !ok || a.PasswordHash != "secret-"+password {
		return nil, ErrInvalidCredentials
	}
	cp := *a
	return &cp, nil
}

func (g *fakeGateway) Register(_ context.Context, username, password string) (*models.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.accounts[username]; ok {
		return nil, ErrUsernameTaken
	}
	a := &models.Account{ID: uint(len(g.accounts) + 1), Username: username, PasswordHash: "secret-" + password}
	g.accounts[username] = a
	cp := *a
	return &cp, nil
}

func (g *fakeGateway) LoadAccount(_ context.Context, username string) (*models.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failLoad[username] {
		return nil, context.DeadlineExceeded
	}
	a, ok := g.accounts[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	for _, name := range g.achievements[username] {
		cp.Achievements = append(cp.Achievements, models.Achievement{AccountID: a.ID, Name: name})
	}
	return &cp, nil
}

func (g *fakeGateway) LoadLeaderboard(_ context.Context, limit int) ([]models.AccountSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.AccountSummary, 0, len(g.accounts))
	for _, a := range g.accounts {
		out = append(out, a.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RankScore != out[j].RankScore {
			return out[i].RankScore > out[j].RankScore
		}
		return out[i].Username < out[j].Username
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (g *fakeGateway) RecordMatch(_ context.Context, record *models.GameRecord) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.records[record.MatchID]; ok {
		return false, nil
	}
	g.records[record.MatchID] = record
	return true, nil
}

func (g *fakeGateway) UpdateAccountStats(_ context.Context, username string, stats game.Stats) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.accounts[username]
	if !ok {
		return ErrAccountNotFound
	}
	a.SetStats(stats)
	return nil
}

func (g *fakeGateway) UpdateRankScore(_ context.Context, username string, rankScore int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.accounts[username]
	if !ok {
		return ErrAccountNotFound
	}
	a.RankScore = rankScore
	return nil
}

func (g *fakeGateway) LoadAchievements(_ context.Context, username string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.achievements[username]...), nil
}

func (g *fakeGateway) UpdateAchievements(_ context.Context, username string, names []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	have := make(map[string]bool)
	for _, n := range g.achievements[username] {
		have[n] = true
	}
	for _, n := range names {
		if !have[n] {
			g.achievements[username] = append(g.achievements[username], n)
		}
	}
	return nil
}

func (g *fakeGateway) account(username string) models.Account {
	g.mu.Lock()
	defer g.mu.Unlock()
	return *g.accounts[username]
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[string][]protocol.Message
}

func (n *fakeNotifier) SendTo(playerID string, msg protocol.Message) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = make(map[string][]protocol.Message)
	}
	n.sent[playerID] = append(n.sent[playerID], msg)
	return true
}

func (n *fakeNotifier) messages(playerID string) []protocol.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]protocol.Message(nil), n.sent[playerID]...)
}
