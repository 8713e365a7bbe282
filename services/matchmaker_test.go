package services

import (
	"errors"
	"testing"
	"time"

	"numberrush/protocol"
)

func newTestMatchmaker(t *testing.T, maxPlayers int) (*Matchmaker, *fakeSettler) {
	t.Helper()
	rules := testRules()
	rules.MaxPlayers = maxPlayers
	settler := &fakeSettler{}
	mm := NewMatchmaker(rules, settler, nil)
	t.Cleanup(mm.Shutdown)
	return mm, settler
}

func join(t *testing.T, mm *Matchmaker, id string) (*Match, *recorder) {
	t.Helper()
	r := &recorder{}
	m, err := mm.FindOrJoin(Participant{ID: id, Name: id, Outbox: r})
	if err != nil {
		t.Fatalf("find or join %s: %v", id, err)
	}
	return m, r
}

func TestFindOrJoinFillsOldestWaitingMatch(t *testing.T) {
	mm, _ := newTestMatchmaker(t, 2)

	m1, ra := join(t, mm, "a")
	m2, _ := join(t, mm, "b")
	m3, _ := join(t, mm, "c")

	if m1 != m2 {
		t.Fatal("second player did not join the waiting match")
	}
	if m3 == m1 {
		t.Fatal("third player joined a full match")
	}
	ack := ra.last(t, protocol.TypeJoinAck).Payload.(protocol.JoinAck)
	if ack.MatchID != m1.ID() || ack.MaxPlayers != 2 {
		t.Fatalf("ack = %+v", ack)
	}

	list := mm.List()
	if len(list) != 2 || list[0].ID != m1.ID() || list[0].Players != 2 || list[1].Players != 1 {
		t.Fatalf("list = %+v", list)
	}
	if got, ok := mm.Get(m3.ID()); !ok || got != m3 {
		t.Fatal("Get did not find the new match")
	}
}

func TestMatchmakerRoutesToPlayersMatch(t *testing.T) {
	mm, _ := newTestMatchmaker(t, 2)
	m, _ := join(t, mm, "a")
	join(t, mm, "b")

	if err := mm.Ready("a"); err != nil {
		t.Fatalf("ready a: %v", err)
	}
	if err := mm.Ready("b"); err != nil {
		t.Fatalf("ready b: %v", err)
	}
	if m.Status() != StatusActive {
		t.Fatalf("status = %s", m.Status())
	}

	out, err := mm.Claim("a", 3)
	if err != nil || !out.Accepted {
		t.Fatalf("claim = %+v, %v", out, err)
	}
	if _, err := mm.ActivatePowerUp("b", "BLOCK"); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if err := mm.Ready("ghost"); !errors.Is(err, ErrNotInMatch) {
		t.Fatalf("ready ghost err = %v", err)
	}
	out, err = mm.Claim("ghost", 3)
	if !errors.Is(err, ErrNotInMatch) || out.Reason != protocol.ReasonNotInMatch {
		t.Fatalf("claim ghost = %+v, %v", out, err)
	}
	if err := mm.Leave("ghost"); !errors.Is(err, ErrNotInMatch) {
		t.Fatalf("leave ghost err = %v", err)
	}
}

func TestRejoinLeavesPreviousMatch(t *testing.T) {
	mm, _ := newTestMatchmaker(t, 4)
	first, _ := join(t, mm, "a")
	second, _ := join(t, mm, "a")

	if first == second {
		t.Fatal("rejoin returned the abandoned match")
	}
	select {
	case <-first.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned match still running")
	}
	waitUntil(t, func() bool {
		_, ok := mm.Get(first.ID())
		return !ok
	})
	if m, ok := mm.MatchOf("a"); !ok || m != second {
		t.Fatal("player not routed to the new match")
	}
}

func TestClosedMatchesLeaveTheRegistry(t *testing.T) {
	mm, settler := newTestMatchmaker(t, 2)
	m, _ := join(t, mm, "a")
	join(t, mm, "b")
	mm.Ready("a")
	mm.Ready("b")

	m.End(protocol.EndTimeUp)
	<-m.Done()
	waitUntil(t, func() bool { return len(mm.List()) == 0 })

	if _, ok := mm.MatchOf("a"); ok {
		t.Fatal("membership survived the match")
	}
	if len(settler.all()) != 1 {
		t.Fatalf("settlements = %d", len(settler.all()))
	}
}

func TestShutdownEndsMatches(t *testing.T) {
	mm, _ := newTestMatchmaker(t, 2)
	m, r := join(t, mm, "a")
	join(t, mm, "b")
	mm.Ready("a")
	mm.Ready("b")

	mm.Shutdown()

	select {
	case <-m.Done():
	default:
		t.Fatal("match still running after shutdown")
	}
	over := r.last(t, protocol.TypeMatchOver).Payload.(protocol.MatchOver)
	if over.Reason != protocol.EndShutdown {
		t.Fatalf("reason = %q", over.Reason)
	}
	if _, err := mm.FindOrJoin(Participant{ID: "c", Outbox: &recorder{}}); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("join after shutdown err = %v", err)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
