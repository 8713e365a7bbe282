package game

import (
	"errors"
	"math/rand"
	"testing"
)

func TestPoolClaimOnce(t *testing.T) {
	p := NewPool(10, rand.New(rand.NewSource(1)))

	if err := p.Claim(3, "a"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := p.Claim(3, "b"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("second claim err = %v, want ErrAlreadyClaimed", err)
	}
	if owner := p.Owner(3); owner != "a" {
		t.Fatalf("owner = %q, want a", owner)
	}
	if err := p.Claim(11, "a"); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("out of range err = %v", err)
	}
	if err := p.Claim(0, "a"); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("zero err = %v", err)
	}
	if p.RemainingCount() != 9 {
		t.Fatalf("remaining = %d, want 9", p.RemainingCount())
	}
}

func TestPoolLayoutIsPermutation(t *testing.T) {
	p := NewPool(25, rand.New(rand.NewSource(7)))
	seen := make(map[int]bool)
	for _, n := range p.Layout() {
		if n < 1 || n > 25 || seen[n] {
			t.Fatalf("bad layout entry %d", n)
		}
		seen[n] = true
	}
	if len(seen) != 25 {
		t.Fatalf("layout has %d numbers, want 25", len(seen))
	}
}

func TestPoolNextTargetIsUnclaimed(t *testing.T) {
	p := NewPool(5, rand.New(rand.NewSource(42)))
	for i := 0; i < 5; i++ {
		target, ok := p.NextTarget()
		if !ok {
			t.Fatalf("round %d: no target", i)
		}
		if p.IsClaimed(target) {
			t.Fatalf("round %d: target %d already claimed", i, target)
		}
		if err := p.Claim(target, "a"); err != nil {
			t.Fatalf("claim target: %v", err)
		}
	}
	if _, ok := p.NextTarget(); ok {
		t.Fatal("expected no target once every number is claimed")
	}
	if p.Target() != 0 {
		t.Fatalf("target = %d, want 0", p.Target())
	}
}

func TestPoolBlockIsPerObserver(t *testing.T) {
	p := NewPool(10, rand.New(rand.NewSource(1)))
	p.Block("fx1", "a", []int{2, 4})

	if p.IsBlockedFor(2, "a") {
		t.Fatal("activator must not see its own block")
	}
	if !p.IsBlockedFor(2, "b") {
		t.Fatal("expected 2 blocked for b")
	}
	if p.IsClaimed(2) {
		t.Fatal("block must not change claim state")
	}
	if got := p.BlockedFor("b"); len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Fatalf("BlockedFor(b) = %v", got)
	}

	if !p.Unblock("fx1") {
		t.Fatal("expected first unblock to report removal")
	}
	if p.Unblock("fx1") {
		t.Fatal("second unblock must be a no-op")
	}
	if p.IsBlockedFor(2, "b") {
		t.Fatal("expected block lifted")
	}
}

func TestPoolPickUnclaimed(t *testing.T) {
	p := NewPool(6, rand.New(rand.NewSource(3)))
	for _, n := range []int{1, 2, 3, 4} {
		_ = p.Claim(n, "a")
	}
	picked := p.PickUnclaimed(5)
	if len(picked) != 2 {
		t.Fatalf("picked %v, want the two unclaimed numbers", picked)
	}
	for _, n := range picked {
		if p.IsClaimed(n) {
			t.Fatalf("picked claimed number %d", n)
		}
	}
}
