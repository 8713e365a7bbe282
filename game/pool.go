package game

import (
	"errors"
	"math/rand"
	"sort"
)

var (
	ErrOutOfRange     = errors.New("number out of range")
	ErrAlreadyClaimed = errors.New("number already claimed")
)

type block struct {
	activator string
	numbers   map[int]struct{}
}

// Pool is the authoritative grid of a single match. It is not safe for
// concurrent use; the owning match serializes access.
type Pool struct {
	size    int
	owner   []string // index n-1; "" means unclaimed
	claimed int
	layout  []int
	target  int
	blocks  map[string]*block
	rng     *rand.Rand
}

// NewPool builds a pool holding 1..size with a shuffled display layout.
func NewPool(size int, rng *rand.Rand) *Pool {
	return &Pool{
		size:   size,
		owner:  make([]string, size),
		layout: shuffled(size, rng),
		blocks: make(map[string]*block),
		rng:    rng,
	}
}

func shuffled(size int, rng *rand.Rand) []int {
	layout := make([]int, size)
	for i, v := range rng.Perm(size) {
		layout[i] = v + 1
	}
	return layout
}

func (p *Pool) Size() int { return p.size }

// Layout returns the display order of the grid.
func (p *Pool) Layout() []int {
	out := make([]int, len(p.layout))
	copy(out, p.layout)
	return out
}

func (p *Pool) InRange(n int) bool { return n >= 1 && n <= p.size }

// Owner returns the player holding n, or "" if unclaimed.
func (p *Pool) Owner(n int) string {
	if !p.InRange(n) {
		return ""
	}
	return p.owner[n-1]
}

func (p *Pool) IsClaimed(n int) bool { return p.Owner(n) != "" }

// Claim marks n as held by playerID. A number is claimed at most once.
func (p *Pool) Claim(n int, playerID string) error {
	if !p.InRange(n) {
		return ErrOutOfRange
	}
	if p.owner[n-1] != "" {
		return ErrAlreadyClaimed
	}
	p.owner[n-1] = playerID
	p.claimed++
	return nil
}

func (p *Pool) ClaimedCount() int   { return p.claimed }
func (p *Pool) RemainingCount() int { return p.size - p.claimed }

// Unclaimed lists the unclaimed numbers in ascending order.
func (p *Pool) Unclaimed() []int {
	out := make([]int, 0, p.RemainingCount())
	for i, owner := range p.owner {
		if owner == "" {
			out = append(out, i+1)
		}
	}
	return out
}

// Target returns the active target, 0 when none.
func (p *Pool) Target() int { return p.target }

// NextTarget picks a uniformly random unclaimed number as the new target.
// It returns false and clears the target when every number is claimed.
func (p *Pool) NextTarget() (int, bool) {
	remaining := p.Unclaimed()
	if len(remaining) == 0 {
		p.target = 0
		return 0, false
	}
	p.target = remaining[p.rng.Intn(len(remaining))]
	return p.target, true
}

// PickUnclaimed returns up to count distinct random unclaimed numbers.
func (p *Pool) PickUnclaimed(count int) []int {
	remaining := p.Unclaimed()
	p.rng.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})
	if count < len(remaining) {
		remaining = remaining[:count]
	}
	sort.Ints(remaining)
	return remaining
}

// Block hides numbers from every observer except activator until Unblock is
// called with the same id.
func (p *Pool) Block(id, activator string, numbers []int) {
	set := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		set[n] = struct{}{}
	}
	p.blocks[id] = &block{activator: activator, numbers: set}
}

// Unblock lifts a block. It reports whether the block was still present.
func (p *Pool) Unblock(id string) bool {
	if _, ok := p.blocks[id]; !ok {
		return false
	}
	delete(p.blocks, id)
	return true
}

// IsBlockedFor reports whether n is hidden from observer. Blocks never change
// the global claim state.
func (p *Pool) IsBlockedFor(n int, observer string) bool {
	for _, b := range p.blocks {
		if b.activator == observer {
			continue
		}
		if _, ok := b.numbers[n]; ok {
			return true
		}
	}
	return false
}

// BlockedFor lists the numbers currently hidden from observer.
func (p *Pool) BlockedFor(observer string) []int {
	seen := make(map[int]struct{})
	for _, b := range p.blocks {
		if b.activator == observer {
			continue
		}
		for n := range b.numbers {
			seen[n] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
