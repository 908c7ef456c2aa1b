package main

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"ponghub/physics"
)

var (
	ErrDuplicatePlayer = errors.New("player already in match")
	ErrMatchFull       = errors.New("match is full")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrUnknownModifier = errors.New("unknown modifier")
	ErrClientGone      = errors.New("connection closed before join")
)

// Team is a side of the rink
type Team int

const (
	TeamNone Team = 0
	TeamRed  Team = 1
	TeamBlue Team = 2
)

func (t Team) String() string {
	switch t {
	case TeamRed:
		return "RED"
	case TeamBlue:
		return "BLUE"
	}
	return ""
}

// Opponent returns the other team. TeamNone has no opponent.
func (t Team) Opponent() Team {
	switch t {
	case TeamRed:
		return TeamBlue
	case TeamBlue:
		return TeamRed
	}
	return TeamNone
}

// MatchPhase represents the lifecycle of a match
type MatchPhase int

const (
	PhaseLobby  MatchPhase = 0
	PhaseInGame MatchPhase = 1
)

func (p MatchPhase) String() string {
	if p == PhaseInGame {
		return "IN_GAME"
	}
	return "LOBBY"
}

// MatchState holds the scoreboard and the clock
type MatchState struct {
	Phase       MatchPhase
	RedScore    int
	BlueScore   int
	DeltaTime   float64 // seconds
	LastUpdated time.Time
}

// Match owns the physics world and every entity in it.
// It is not safe for concurrent use; the rink goroutine serializes access.
type Match struct {
	Tuning Tuning
	State  MatchState
	World  *physics.World

	rng     *rand.Rand
	players map[string]*Player
	order   []*Player // join order
	red     []*Player
	blue    []*Player
	ball    *Ball
	walls   []*Wall
	goals   [2]*Goal // RED (left), BLUE (right)
	net     *Net
}

// NewMatch creates an empty rink in the LOBBY phase
func NewMatch(t Tuning, rng *rand.Rand, now time.Time) *Match {
	m := &Match{
		Tuning:  t,
		State:   MatchState{Phase: PhaseLobby, LastUpdated: now},
		World:   physics.NewWorld(t.Width, t.Height),
		rng:     rng,
		players: make(map[string]*Player),
		walls:   buildWalls(t),
		goals:   buildGoals(t),
		net:     buildNet(t),
	}
	m.World.SubSteps = t.SubSteps
	for _, w := range m.walls {
		m.World.AddBody(w.Body)
	}
	for _, g := range m.goals {
		m.World.AddBody(g.Body)
	}
	m.World.AddBody(m.net.Body)
	return m
}

func (m *Match) Player(id string) (*Player, bool) {
	p, ok := m.players[id]
	return p, ok
}

// Players returns every player in join order
func (m *Match) Players() []*Player { return m.order }

func (m *Match) PlayerCount() int { return len(m.order) }

// Ball returns the ball, nil while in LOBBY
func (m *Match) Ball() *Ball { return m.ball }

func (m *Match) Walls() []*Wall  { return m.walls }
func (m *Match) Goals() [2]*Goal { return m.goals }
func (m *Match) Net() *Net       { return m.net }

// Roster returns the players of team t in the order they were added
func (m *Match) Roster(t Team) []*Player {
	switch t {
	case TeamRed:
		return m.red
	case TeamBlue:
		return m.blue
	}
	return nil
}

// Center is the middle of the rink
func (m *Match) Center() physics.Vec2 {
	return physics.V(m.Tuning.Width/2, m.Tuning.Height/2)
}

// TeamCenter is the point a team's players gather around
func (m *Match) TeamCenter(t Team) physics.Vec2 {
	c := m.Center()
	switch t {
	case TeamRed:
		c.X -= m.Tuning.TeamCenterOffset
	case TeamBlue:
		c.X += m.Tuning.TeamCenterOffset
	}
	return c
}

// SpreadPositions spaces k points evenly over [c-s, c+s].
// A single point sits at c.
func SpreadPositions(k int, s, c float64) []float64 {
	if k <= 0 {
		return nil
	}
	if k == 1 {
		return []float64{c}
	}
	out := make([]float64, k)
	for i := range out {
		out[i] = c - s + 2*s*float64(i)/float64(k-1)
	}
	return out
}

// AddPlayer creates a player, applies its known modifiers and places it.
// The second player to join starts the game.
func (m *Match) AddPlayer(id, name string, accountID int64, modifiers []string) (*Player, error) {
	if _, ok := m.players[id]; ok {
		return nil, ErrDuplicatePlayer
	}
	if len(m.order) >= m.Tuning.MaxPlayers {
		return nil, ErrMatchFull
	}
	p := NewPlayer(id, name, accountID, m.TeamCenter(TeamRed), m.Tuning)
	for _, modID := range modifiers {
		if mod, ok := LookupModifier(modID); ok {
			p.ApplyModifier(mod)
		}
	}
	m.players[id] = p
	m.order = append(m.order, p)
	m.World.AddBody(p.Body)

	switch {
	case m.State.Phase == PhaseInGame:
		t := TeamRed
		if len(m.red) > len(m.blue) {
			t = TeamBlue
		}
		m.setTeam(p, t)
		m.syncMask(p)
		p.Teleport(m.TeamCenter(t))
	case len(m.order) >= 2:
		m.startGame()
	}
	return p, nil
}

// RemovePlayer takes a player out of the rink. Dropping below two
// players returns the match to LOBBY, otherwise teams are rebalanced.
func (m *Match) RemovePlayer(id string) error {
	p, ok := m.players[id]
	if !ok {
		return fmt.Errorf("remove %s: %w", id, ErrUnknownPlayer)
	}
	m.World.RemoveBody(p.Body)
	m.setTeam(p, TeamNone)
	delete(m.players, id)
	m.order = slices.DeleteFunc(m.order, func(o *Player) bool { return o == p })

	if m.State.Phase != PhaseInGame {
		return nil
	}
	if len(m.order) < 2 {
		m.endGame()
		return nil
	}
	m.rebalance()
	return nil
}

func (m *Match) startGame() {
	m.State.Phase = PhaseInGame
	m.State.RedScore = 0
	m.State.BlueScore = 0
	m.ball = NewBall(m.Center(), m.Tuning)
	m.World.AddBody(m.ball.Body)
	for i, p := range m.order {
		if i%2 == 0 {
			m.setTeam(p, TeamRed)
		} else {
			m.setTeam(p, TeamBlue)
		}
	}
	m.NewTurn()
}

func (m *Match) endGame() {
	m.State.Phase = PhaseLobby
	for _, p := range m.order {
		m.setTeam(p, TeamNone)
		restoreMask(p)
	}
	m.red = nil
	m.blue = nil
	if m.ball != nil {
		m.World.RemoveBody(m.ball.Body)
		m.ball = nil
	}
}

// rebalance moves the last-added player of the larger team until the
// team sizes differ by at most one
func (m *Match) rebalance() {
	for {
		from, to := TeamRed, TeamBlue
		if len(m.blue) > len(m.red) {
			from, to = TeamBlue, TeamRed
		}
		roster := m.Roster(from)
		if len(roster)-len(m.Roster(to)) <= 1 {
			return
		}
		p := roster[len(roster)-1]
		m.setTeam(p, to)
		m.syncMask(p)
		p.Teleport(m.TeamCenter(to))
	}
}

// setTeam is the only writer of Player.Team and the rosters
func (m *Match) setTeam(p *Player, t Team) {
	switch p.Team {
	case TeamRed:
		m.red = slices.DeleteFunc(m.red, func(o *Player) bool { return o == p })
	case TeamBlue:
		m.blue = slices.DeleteFunc(m.blue, func(o *Player) bool { return o == p })
	}
	p.Team = t
	switch t {
	case TeamRed:
		m.red = append(m.red, p)
	case TeamBlue:
		m.blue = append(m.blue, p)
	}
}

// syncMask narrows p's mask if its team touched the ball last
func (m *Match) syncMask(p *Player) {
	if m.ball != nil && m.ball.Team != TeamNone && p.Team == m.ball.Team {
		narrowBallMask(p)
		return
	}
	restoreMask(p)
}

// NewTurn re-spreads both teams, restores every mask and serves the ball
func (m *Match) NewTurn() {
	for _, t := range []Team{TeamRed, TeamBlue} {
		roster := m.Roster(t)
		x := m.TeamCenter(t).X
		ys := SpreadPositions(len(roster), m.Tuning.SpreadDistance, m.Tuning.Height/2)
		for i, p := range roster {
			p.Teleport(physics.V(x, ys[i]))
		}
	}
	for _, p := range m.order {
		restoreMask(p)
	}
	if m.ball != nil {
		m.ball.Serve(m.Center(), m.Tuning.ServeMinSpeed, m.Tuning.ServeMaxSpeed, m.rng)
		// contacts from the last turn must not end as touches in this one
		m.World.ResetPairs(m.ball.Body)
	}
}

// HandleMovement stores the direction applied to the player every tick
func (m *Match) HandleMovement(id string, dir physics.Vec2) error {
	p, ok := m.players[id]
	if !ok {
		return fmt.Errorf("move %s: %w", id, ErrUnknownPlayer)
	}
	p.Input = dir
	return nil
}

// ApplyModifier applies a catalog modifier to a connected player.
// Returns false if the player already had it.
func (m *Match) ApplyModifier(id, modID string) (bool, error) {
	p, ok := m.players[id]
	if !ok {
		return false, fmt.Errorf("modifier %s: %w", id, ErrUnknownPlayer)
	}
	mod, ok := LookupModifier(modID)
	if !ok {
		return false, fmt.Errorf("modifier %q: %w", modID, ErrUnknownModifier)
	}
	return p.ApplyModifier(mod), nil
}

// Tick advances the match to now and returns what happened in the step.
// A long gap is simulated as several steps so fast bodies cannot tunnel.
func (m *Match) Tick(now time.Time) CollisionOutcome {
	dt := now.Sub(m.State.LastUpdated).Seconds()
	if dt < 0 {
		dt = 0
	}
	if dt > m.Tuning.MaxDeltaTime {
		dt = m.Tuning.MaxDeltaTime
	}
	m.State.DeltaTime = dt
	m.State.LastUpdated = now

	steps := 1
	if limit := m.Tuning.MaxStepTime(); limit > 0 && dt > limit {
		steps = int(math.Ceil(dt / limit))
	}
	var out CollisionOutcome
	for i := 0; i < steps; i++ {
		o := m.step(dt / float64(steps))
		if out.Goal == nil {
			out.Goal = o.Goal
		}
		out.Touches = append(out.Touches, o.Touches...)
	}
	return out
}

func (m *Match) step(dt float64) CollisionOutcome {
	if m.State.Phase == PhaseInGame {
		for _, p := range m.order {
			if p.Input != (physics.Vec2{}) {
				p.Accelerate(p.Input, dt)
			}
		}
	}

	events := m.World.Step(dt)
	out := ClassifyCollisions(events)
	m.applyOutcome(out)

	for _, p := range m.order {
		p.ClampSpeed()
	}
	if m.State.Phase == PhaseInGame {
		m.ball.ClampSpeed(m.rng)
	}
	return out
}

// applyOutcome applies ball touches, then the goal
func (m *Match) applyOutcome(out CollisionOutcome) {
	if m.State.Phase != PhaseInGame {
		return
	}
	if m.ball == nil {
		panic("match: IN_GAME without a ball")
	}
	for _, toucher := range out.Touches {
		if toucher.Team == TeamNone {
			continue
		}
		m.ball.Team = toucher.Team
		for _, p := range m.order {
			m.syncMask(p)
		}
	}
	if out.Goal == nil {
		return
	}
	switch out.Goal.Team.Opponent() {
	case TeamRed:
		m.State.RedScore++
	case TeamBlue:
		m.State.BlueScore++
	}
	m.NewTurn()
}
