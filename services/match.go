package services

import (
	"errors"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"numberrush/game"
	"numberrush/protocol"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	StatusWaiting  MatchStatus = "WAITING"
	StatusActive   MatchStatus = "ACTIVE"
	StatusComplete MatchStatus = "COMPLETE"
)

var playerColors = []string{"red", "blue", "green", "yellow", "purple", "orange"}

// Outbox delivers messages to one connected player. Send must not block.
type Outbox interface {
	Send(msg protocol.Message) bool
}

// Participant is a player asking to join a match.
type Participant struct {
	ID     string
	Name   string
	Outbox Outbox
}

// Settler receives finished matches for persistence.
type Settler interface {
	Submit(s Settlement) bool
}

// SnapshotPublisher receives match snapshots after every state change.
type SnapshotPublisher interface {
	Publish(s MatchSnapshot) bool
}

type ClaimOutcome struct {
	Accepted   bool
	Number     int
	Points     int
	Score      int
	NextTarget int
	Reason     string
}

type PowerUpOutcome struct {
	Granted  bool
	Type     game.PowerUpType
	EffectID string
	Reason   string
}

type player struct {
	id        string
	name      string
	color     string
	out       Outbox
	joinOrder int
	ready     bool
	present   bool

	score        int
	reachedAt    time.Time
	streak       int
	lastClaim    time.Time
	claims       int
	lucky        int
	powerUpsUsed int
	inventory    *game.Inventory
}

type MatchOption func(*Match)

func WithSettler(s Settler) MatchOption {
	return func(m *Match) { m.settler = s }
}

func WithSnapshots(p SnapshotPublisher) MatchOption {
	return func(m *Match) { m.snapshots = p }
}

// WithOnClose registers a hook run once the match loop has exited.
func WithOnClose(fn func(*Match)) MatchOption {
	return func(m *Match) { m.onClose = fn }
}

func WithClock(now func() time.Time) MatchOption {
	return func(m *Match) { m.clock = now }
}

func WithSeed(seed int64) MatchOption {
	return func(m *Match) { m.rng = rand.New(rand.NewSource(seed)) }
}

// Match owns the state of one game. All state is confined to the goroutine
// running Run; every operation is a closure executed there.
type Match struct {
	id        string
	rules     game.Rules
	clock     func() time.Time
	rng       *rand.Rand
	settler   Settler
	snapshots SnapshotPublisher
	onClose   func(*Match)
	createdAt time.Time

	cmds chan func()
	done chan struct{}

	// mirrors readable without entering the loop
	statusMirror atomic.Value
	sizeMirror   atomic.Int32

	status     MatchStatus
	players    map[string]*player
	order      []*player
	joins      int
	pool       *game.Pool
	effects    *game.Effects
	timers     map[string]*time.Timer
	deadline   *time.Timer
	ticker     *time.Ticker
	startedAt  time.Time
	deadlineAt time.Time
	endedAt    time.Time
	endReason  string
	winnerID   string
	claims     int
	final      MatchSnapshot
}

func NewMatch(id string, rules game.Rules, opts ...MatchOption) *Match {
	if id == "" {
		id = uuid.NewString()
	}
	m := &Match{
		id:      id,
		rules:   rules,
		clock:   time.Now,
		cmds:    make(chan func()),
		done:    make(chan struct{}),
		status:  StatusWaiting,
		players: make(map[string]*player),
		effects: game.NewEffects(),
		timers:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m.createdAt = m.clock()
	m.statusMirror.Store(StatusWaiting)
	return m
}

func (m *Match) ID() string { return m.id }

func (m *Match) Rules() game.Rules { return m.rules }

func (m *Match) CreatedAt() time.Time { return m.createdAt }

func (m *Match) Status() MatchStatus { return m.statusMirror.Load().(MatchStatus) }

// Size is the number of players currently present.
func (m *Match) Size() int { return int(m.sizeMirror.Load()) }

// Joinable reports whether the match is waiting with a free seat. The answer
// may be stale by the time Join runs.
func (m *Match) Joinable() bool {
	return m.Status() == StatusWaiting && m.Size() < m.rules.MaxPlayers
}

// Done is closed once the match loop has exited.
func (m *Match) Done() <-chan struct{} { return m.done }

// Run drives the match until it completes.
func (m *Match) Run() {
	log.Printf("Match %s created (grid %d, %d-%d players)", m.id, m.rules.GridSize, m.rules.MinPlayers, m.rules.MaxPlayers)
	for m.status != StatusComplete {
		var deadline, tick <-chan time.Time
		if m.deadline != nil {
			deadline = m.deadline.C
		}
		if m.ticker != nil {
			tick = m.ticker.C
		}

		select {
		case fn := <-m.cmds:
			fn()
		case <-deadline:
			m.finish(protocol.EndTimeUp)
		case <-tick:
			m.broadcast(protocol.New(protocol.TypeTimeUpdate, protocol.TimeUpdate{
				RemainingSeconds: m.remainingSeconds(),
			}))
		}
	}

	m.final = m.snapshot()
	close(m.done)
	log.Printf("Match %s closed (%s)", m.id, m.endReason)
	if m.onClose != nil {
		m.onClose(m)
	}
}

// exec runs fn on the match goroutine and waits for it. The command channel
// is unbuffered, so a received command always runs to completion.
func (m *Match) exec(fn func()) error {
	ran := make(chan struct{})
	select {
	case m.cmds <- func() { fn(); close(ran) }:
	case <-m.done:
		return ErrMatchClosed
	}
	<-ran
	return nil
}

// post queues fn from a timer callback without waiting. It is dropped once
// the match has exited.
func (m *Match) post(fn func()) {
	select {
	case m.cmds <- fn:
	case <-m.done:
	}
}

// Join seats p in a waiting match.
func (m *Match) Join(p Participant) (protocol.JoinAck, error) {
	var (
		ack protocol.JoinAck
		err error
	)
	if execErr := m.exec(func() { ack, err = m.join(p) }); execErr != nil {
		return protocol.JoinAck{}, ErrMatchNotWaiting
	}
	return ack, err
}

func (m *Match) join(p Participant) (protocol.JoinAck, error) {
	if m.status != StatusWaiting {
		return protocol.JoinAck{}, ErrMatchNotWaiting
	}
	if existing, ok := m.players[p.ID]; ok {
		existing.out = p.Outbox
		ack := m.ackFor(existing)
		existing.send(protocol.New(protocol.TypeJoinAck, ack))
		return ack, nil
	}
	if len(m.order) >= m.rules.MaxPlayers {
		return protocol.JoinAck{}, ErrMatchFull
	}

	name := p.Name
	if name == "" {
		name = p.ID
	}
	pl := &player{
		id:        p.ID,
		name:      name,
		color:     m.freeColor(),
		out:       p.Outbox,
		joinOrder: m.joins,
		present:   true,
	}
	m.joins++
	m.players[p.ID] = pl
	m.order = append(m.order, pl)
	m.sizeMirror.Store(int32(m.presentCount()))

	ack := m.ackFor(pl)
	pl.send(protocol.New(protocol.TypeJoinAck, ack))
	m.broadcast(protocol.New(protocol.TypePlayerJoined, m.rosterChange(pl)))
	log.Printf("Player %s joined match %s (%d/%d)", pl.id, m.id, len(m.order), m.rules.MaxPlayers)
	m.changed()
	return ack, nil
}

func (m *Match) ackFor(pl *player) protocol.JoinAck {
	return protocol.JoinAck{
		MatchID:        m.id,
		CurrentPlayers: m.presentCount(),
		MaxPlayers:     m.rules.MaxPlayers,
		AssignedColor:  pl.color,
	}
}

func (m *Match) freeColor() string {
	used := make(map[string]bool, len(m.order))
	for _, pl := range m.order {
		used[pl.color] = true
	}
	for _, c := range playerColors {
		if !used[c] {
			return c
		}
	}
	return playerColors[m.joins%len(playerColors)]
}

// SetReady marks a waiting player ready. The match starts once the roster
// is large enough and every present player is ready.
func (m *Match) SetReady(playerID string) error {
	var err error
	if execErr := m.exec(func() { err = m.setReady(playerID) }); execErr != nil {
		return execErr
	}
	return err
}

func (m *Match) setReady(playerID string) error {
	pl, ok := m.players[playerID]
	if !ok || !pl.present {
		return ErrNotInMatch
	}
	if m.status != StatusWaiting {
		return ErrMatchNotWaiting
	}
	if !pl.ready {
		pl.ready = true
		m.broadcast(protocol.New(protocol.TypePlayerReady, m.rosterChange(pl)))
		m.changed()
	}
	m.maybeStart()
	return nil
}

func (m *Match) maybeStart() {
	if m.status != StatusWaiting || len(m.order) < m.rules.MinPlayers {
		return
	}
	for _, pl := range m.order {
		if !pl.ready {
			return
		}
	}
	m.start()
}

func (m *Match) start() {
	now := m.clock()
	m.status = StatusActive
	m.statusMirror.Store(StatusActive)
	m.startedAt = now
	m.deadlineAt = now.Add(m.rules.MatchDuration)
	m.pool = game.NewPool(m.rules.GridSize, m.rng)
	target, _ := m.pool.NextTarget()

	players := make([]protocol.PlayerInfo, 0, len(m.order))
	for _, pl := range m.order {
		pl.inventory = game.NewInventory(m.rules.InitialCharges)
		players = append(players, protocol.PlayerInfo{ID: pl.id, Name: pl.name, Color: pl.color})
	}

	m.deadline = time.NewTimer(m.rules.MatchDuration)
	if m.rules.TimeUpdateInterval > 0 {
		m.ticker = time.NewTicker(m.rules.TimeUpdateInterval)
	}

	for _, pl := range m.order {
		pl.send(protocol.New(protocol.TypeStart, protocol.Start{
			MatchID:         m.id,
			GridSize:        m.rules.GridSize,
			DurationSeconds: int(m.rules.MatchDuration / time.Second),
			InitialTarget:   target,
			Players:         players,
			InitialNumbers:  m.pool.Layout(),
			PowerUps:        pl.inventory.Counts(),
		}))
	}
	log.Printf("Match %s started with %d players, first target %d", m.id, len(m.order), target)
	m.changed()
}

// Leave removes a player. Leaving a running match keeps the player's score
// for settlement.
func (m *Match) Leave(playerID string) error {
	var err error
	if execErr := m.exec(func() { err = m.leave(playerID) }); execErr != nil {
		return execErr
	}
	return err
}

func (m *Match) leave(playerID string) error {
	pl, ok := m.players[playerID]
	if !ok || !pl.present {
		return ErrNotInMatch
	}
	pl.present = false
	pl.out = nil

	if m.status == StatusWaiting {
		delete(m.players, playerID)
		for i, other := range m.order {
			if other == pl {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.sizeMirror.Store(int32(m.presentCount()))
	m.broadcast(protocol.New(protocol.TypePlayerLeft, m.rosterChange(pl)))
	log.Printf("Player %s left match %s (%d remaining)", playerID, m.id, m.presentCount())

	if m.presentCount() == 0 {
		m.finish(protocol.EndAbandoned)
		return nil
	}
	m.changed()
	m.maybeStart()
	return nil
}

// Claim attempts to take number for playerID. Rejections are sent to the
// player by the match; a non-nil error means the request never reached a
// match the player belongs to and the caller must answer.
func (m *Match) Claim(playerID string, number int) (ClaimOutcome, error) {
	var (
		out ClaimOutcome
		err error
	)
	if execErr := m.exec(func() { out, err = m.claim(playerID, number) }); execErr != nil {
		return ClaimOutcome{Number: number, Reason: protocol.ReasonNotActive}, execErr
	}
	return out, err
}

func (m *Match) claim(playerID string, number int) (ClaimOutcome, error) {
	pl, ok := m.players[playerID]
	if !ok || !pl.present {
		return ClaimOutcome{Number: number, Reason: protocol.ReasonNotInMatch}, ErrNotInMatch
	}
	now := m.clock()
	if reason := m.claimRejection(pl, number, now); reason != "" {
		pl.send(protocol.New(protocol.TypeClaimRejected, protocol.ClaimRejected{Number: number, Reason: reason}))
		return ClaimOutcome{Number: number, Reason: reason}, nil
	}

	if err := m.pool.Claim(number, pl.id); err != nil {
		pl.send(protocol.New(protocol.TypeClaimRejected, protocol.ClaimRejected{Number: number, Reason: protocol.ReasonAlreadyClaimed}))
		return ClaimOutcome{Number: number, Reason: protocol.ReasonAlreadyClaimed}, nil
	}

	points := game.Points(m.rules, number, now.Sub(pl.lastClaim), pl.streak)
	pl.streak++
	pl.score += points
	pl.reachedAt = now
	pl.lastClaim = now
	pl.claims++
	if game.IsLucky(number, m.rules.GridSize) {
		pl.lucky++
	}
	m.claims++

	next, remaining := m.pool.NextTarget()

	if m.rules.BonusInterval > 0 && m.claims%m.rules.BonusInterval == 0 {
		t := pl.inventory.Scarcest()
		pl.inventory.Grant(t, 1)
		pl.send(protocol.New(protocol.TypePowerUpGranted, protocol.PowerUpGranted{
			Type:  string(t),
			Count: pl.inventory.Count(t),
		}))
	}

	m.broadcast(protocol.New(protocol.TypeClaimResult, protocol.ClaimResult{
		Number:     number,
		ClaimerID:  pl.id,
		NextTarget: next,
		NewScore:   pl.score,
		Points:     points,
	}))

	out := ClaimOutcome{Accepted: true, Number: number, Points: points, Score: pl.score, NextTarget: next}
	if !remaining {
		m.finish(protocol.EndAllClaimed)
		return out, nil
	}
	m.changed()
	return out, nil
}

func (m *Match) claimRejection(pl *player, number int, now time.Time) string {
	switch {
	case m.status != StatusActive:
		return protocol.ReasonNotActive
	case !m.pool.InRange(number):
		return protocol.ReasonOutOfRange
	case m.pool.IsClaimed(number):
		return protocol.ReasonAlreadyClaimed
	case m.rules.TargetOnly && number != m.pool.Target():
		return protocol.ReasonNotTarget
	case m.pool.IsBlockedFor(number, pl.id):
		return protocol.ReasonBlocked
	}
	if holder, ok := m.effects.PriorityHolder(now); ok && holder != pl.id {
		return protocol.ReasonPriority
	}
	return ""
}

// ActivatePowerUp spends one charge of the named power-up. Denials are sent
// to the player by the match; errors follow the Claim convention.
func (m *Match) ActivatePowerUp(playerID, name string) (PowerUpOutcome, error) {
	var (
		out PowerUpOutcome
		err error
	)
	if execErr := m.exec(func() { out, err = m.activate(playerID, name) }); execErr != nil {
		return PowerUpOutcome{Reason: protocol.ReasonNotActive}, execErr
	}
	return out, err
}

func (m *Match) activate(playerID, name string) (PowerUpOutcome, error) {
	pl, ok := m.players[playerID]
	if !ok || !pl.present {
		return PowerUpOutcome{Reason: protocol.ReasonNotInMatch}, ErrNotInMatch
	}
	deny := func(t string, reason string) (PowerUpOutcome, error) {
		pl.send(protocol.New(protocol.TypePowerUpDenied, protocol.PowerUpDenied{Type: t, Reason: reason}))
		return PowerUpOutcome{Type: game.PowerUpType(t), Reason: reason}, nil
	}

	if m.status != StatusActive {
		return deny(name, protocol.ReasonNotActive)
	}
	t, err := game.ParsePowerUpType(name)
	if err != nil {
		return deny(name, protocol.ReasonUnknownPowerUp)
	}
	now := m.clock()
	if t == game.PowerUpPriority {
		if holder, ok := m.effects.PriorityHolder(now); ok && holder != pl.id {
			return deny(string(t), protocol.ReasonPriorityHeld)
		}
	}
	if err := pl.inventory.Use(t, now, m.rules); err != nil {
		reason := protocol.ReasonCooldown
		if errors.Is(err, game.ErrNoCharges) {
			reason = protocol.ReasonNoCharges
		}
		return deny(string(t), reason)
	}

	duration := m.rules.EffectDuration(t)
	effect := &game.Effect{
		ID:       uuid.NewString(),
		Type:     t,
		PlayerID: pl.id,
		Start:    now,
		Until:    now.Add(duration),
	}
	if t == game.PowerUpBlock {
		effect.Numbers = m.pool.PickUnclaimed(m.rules.BlockCount)
		m.pool.Block(effect.ID, pl.id, effect.Numbers)
	}
	m.effects.Add(effect)
	pl.powerUpsUsed++

	id := effect.ID
	m.timers[id] = time.AfterFunc(duration, func() {
		m.post(func() { m.endEffect(id) })
	})

	m.broadcast(protocol.New(protocol.TypePowerUpEffectStart, protocol.PowerUpEffect{
		Type:       string(t),
		PlayerID:   pl.id,
		DurationMs: duration.Milliseconds(),
		Numbers:    effect.Numbers,
	}))
	log.Printf("Player %s activated %s in match %s", pl.id, t, m.id)
	m.changed()
	return PowerUpOutcome{Granted: true, Type: t, EffectID: id}, nil
}

// endEffect reverses an effect. It is a no-op when the effect is already gone
// or the match is over.
func (m *Match) endEffect(id string) {
	if m.status == StatusComplete {
		return
	}
	delete(m.timers, id)
	effect, ok := m.effects.Remove(id)
	if !ok {
		return
	}
	m.pool.Unblock(id)
	m.broadcast(protocol.New(protocol.TypePowerUpEffectEnd, protocol.PowerUpEffect{
		Type:       string(effect.Type),
		PlayerID:   effect.PlayerID,
		DurationMs: effect.Until.Sub(effect.Start).Milliseconds(),
		Numbers:    effect.Numbers,
	}))
	m.changed()
}

// End completes the match with reason. Calling End on a finished match does
// nothing.
func (m *Match) End(reason string) {
	_ = m.exec(func() { m.finish(reason) })
}

func (m *Match) finish(reason string) {
	if m.status == StatusComplete {
		return
	}
	wasActive := m.status == StatusActive
	m.status = StatusComplete
	m.statusMirror.Store(StatusComplete)
	m.endedAt = m.clock()
	m.endReason = reason

	if m.deadline != nil {
		m.deadline.Stop()
	}
	if m.ticker != nil {
		m.ticker.Stop()
	}
	for id, timer := range m.timers {
		timer.Stop()
		delete(m.timers, id)
	}

	if wasActive {
		m.settle()
	}
	m.changed()
}

func (m *Match) settle() {
	standings := make([]game.Standing, 0, len(m.order))
	scores := make(map[string]int, len(m.order))
	for _, pl := range m.order {
		standings = append(standings, game.Standing{
			PlayerID:  pl.id,
			Score:     pl.score,
			ReachedAt: pl.reachedAt,
			JoinOrder: pl.joinOrder,
		})
		scores[pl.id] = pl.score
	}
	winner, _ := game.Winner(standings)
	m.winnerID = winner
	duration := m.endedAt.Sub(m.startedAt)

	m.broadcast(protocol.New(protocol.TypeMatchOver, protocol.MatchOver{
		WinnerID:        winner,
		FinalScores:     scores,
		DurationSeconds: int(duration / time.Second),
		Reason:          m.endReason,
	}))
	log.Printf("Match %s over (%s), winner %q after %s", m.id, m.endReason, winner, duration.Round(time.Second))

	if m.settler == nil {
		return
	}
	settlement := Settlement{
		MatchID:   m.id,
		WinnerID:  winner,
		Reason:    m.endReason,
		StartedAt: m.startedAt,
		Duration:  duration,
		Players:   make([]PlayerResult, 0, len(m.order)),
	}
	for _, pl := range m.order {
		settlement.Players = append(settlement.Players, PlayerResult{
			PlayerID:     pl.id,
			Name:         pl.name,
			Score:        pl.score,
			Claims:       pl.claims,
			LuckyNumbers: pl.lucky,
			PowerUpsUsed: pl.powerUpsUsed,
			Won:          pl.id == winner,
		})
	}
	if !m.settler.Submit(settlement) {
		log.Printf("Settlement queue full, dropping results of match %s", m.id)
	}
}

func (m *Match) remainingSeconds() int {
	left := m.deadlineAt.Sub(m.clock())
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

func (m *Match) presentCount() int {
	n := 0
	for _, pl := range m.order {
		if pl.present {
			n++
		}
	}
	return n
}

func (m *Match) rosterChange(pl *player) protocol.RosterChange {
	return protocol.RosterChange{
		PlayerID:       pl.id,
		Name:           pl.name,
		Color:          pl.color,
		CurrentPlayers: m.presentCount(),
		MaxPlayers:     m.rules.MaxPlayers,
	}
}

func (m *Match) broadcast(msg protocol.Message) {
	for _, pl := range m.order {
		pl.send(msg)
	}
}

func (pl *player) send(msg protocol.Message) {
	if !pl.present || pl.out == nil {
		return
	}
	pl.out.Send(msg)
}

func (m *Match) changed() {
	if m.snapshots == nil {
		return
	}
	m.snapshots.Publish(m.snapshot())
}
