package main

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"ponghub/physics"
)

var testEpoch = time.Unix(1_700_000_000, 0)

func newTestMatch(t *testing.T) *Match {
	t.Helper()
	return NewMatch(DefaultTuning(), rand.New(rand.NewPCG(1, 2)), testEpoch)
}

func addPlayers(t *testing.T, m *Match, n int) []*Player {
	t.Helper()
	var out []*Player
	for i := 0; i < n; i++ {
		p, err := m.AddPlayer(GenerateID(), fmt.Sprintf("Player%d", i), 0, nil)
		if err != nil {
			t.Fatalf("add player: %v", err)
		}
		out = append(out, p)
	}
	return out
}

// checkRosters verifies team balance and roster/team consistency
func checkRosters(t *testing.T, m *Match) {
	t.Helper()
	red, blue := m.Roster(TeamRed), m.Roster(TeamBlue)
	if m.State.Phase == PhaseInGame {
		if d := len(red) - len(blue); d > 1 || d < -1 {
			t.Fatalf("teams unbalanced: red %d blue %d", len(red), len(blue))
		}
		if len(red)+len(blue) != m.PlayerCount() {
			t.Fatalf("rosters hold %d players, match has %d", len(red)+len(blue), m.PlayerCount())
		}
	}
	for _, p := range red {
		if p.Team != TeamRed {
			t.Fatalf("%s in red roster has team %s", p.ID, p.Team)
		}
	}
	for _, p := range blue {
		if p.Team != TeamBlue {
			t.Fatalf("%s in blue roster has team %s", p.ID, p.Team)
		}
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestLobbyFill(t *testing.T) {
	m := newTestMatch(t)
	p1 := addPlayers(t, m, 1)[0]
	if m.State.Phase != PhaseLobby {
		t.Fatalf("expected LOBBY with one player, got %s", m.State.Phase)
	}
	if m.Ball() != nil {
		t.Fatal("no ball expected in lobby")
	}
	if p1.Team != TeamNone {
		t.Errorf("lobby player should be unassigned, got %s", p1.Team)
	}

	p2 := addPlayers(t, m, 1)[0]
	if m.State.Phase != PhaseInGame {
		t.Fatalf("expected IN_GAME, got %s", m.State.Phase)
	}
	if m.Ball() == nil || !m.World.Contains(m.Ball().Body) {
		t.Fatal("expected exactly one ball in the world")
	}
	if m.State.RedScore != 0 || m.State.BlueScore != 0 {
		t.Errorf("expected scores 0-0, got %d-%d", m.State.RedScore, m.State.BlueScore)
	}
	if len(m.Roster(TeamRed)) != 1 || len(m.Roster(TeamBlue)) != 1 {
		t.Errorf("expected 1v1, got %d v %d", len(m.Roster(TeamRed)), len(m.Roster(TeamBlue)))
	}
	if p1.Team != TeamRed || p2.Team != TeamBlue {
		t.Errorf("expected first RED second BLUE, got %s %s", p1.Team, p2.Team)
	}
	checkRosters(t, m)
}

func TestJoinInGameGoesToSmallerTeam(t *testing.T) {
	m := newTestMatch(t)
	addPlayers(t, m, 2)

	p3 := addPlayers(t, m, 1)[0]
	if p3.Team != TeamRed {
		t.Errorf("tie should favor RED, got %s", p3.Team)
	}
	if pos := physics.PositionOf(p3.Body); pos != m.TeamCenter(TeamRed) {
		t.Errorf("expected teleport to red center %v, got %v", m.TeamCenter(TeamRed), pos)
	}
	p4 := addPlayers(t, m, 1)[0]
	if p4.Team != TeamBlue {
		t.Errorf("expected BLUE for the smaller team, got %s", p4.Team)
	}
	checkRosters(t, m)
}

func TestRebalancePopsLastOfLargerTeam(t *testing.T) {
	m := newTestMatch(t)
	ps := addPlayers(t, m, 6) // red p0 p2 p4, blue p1 p3 p5

	if err := m.RemovePlayer(ps[0].ID); err != nil {
		t.Fatal(err)
	}
	checkRosters(t, m)
	if err := m.RemovePlayer(ps[2].ID); err != nil {
		t.Fatal(err)
	}
	checkRosters(t, m)

	moved := ps[5]
	if moved.Team != TeamRed {
		t.Fatalf("expected last blue player to move to RED, got %s", moved.Team)
	}
	red := m.Roster(TeamRed)
	if red[len(red)-1] != moved {
		t.Error("moved player should be appended to the red roster")
	}
	if pos := physics.PositionOf(moved.Body); pos != m.TeamCenter(TeamRed) {
		t.Errorf("moved player should be at red center, got %v", pos)
	}
}

func TestTeamBalanceUnderChurn(t *testing.T) {
	m := newTestMatch(t)
	ps := addPlayers(t, m, 9)
	// remove every red player first, then the rest
	order := []int{0, 2, 4, 6, 8, 1, 3, 5}
	for _, i := range order {
		if err := m.RemovePlayer(ps[i].ID); err != nil {
			t.Fatalf("remove %s: %v", ps[i].ID, err)
		}
		checkRosters(t, m)
	}
	if m.State.Phase != PhaseLobby {
		t.Errorf("one player left, expected LOBBY, got %s", m.State.Phase)
	}
}

func TestReturnToLobby(t *testing.T) {
	m := newTestMatch(t)
	ps := addPlayers(t, m, 2)
	ball := m.Ball()

	if err := m.RemovePlayer(ps[1].ID); err != nil {
		t.Fatal(err)
	}
	if m.State.Phase != PhaseLobby {
		t.Fatalf("expected LOBBY, got %s", m.State.Phase)
	}
	if m.Ball() != nil || m.World.Contains(ball.Body) {
		t.Error("ball should be destroyed")
	}
	if ps[0].Team != TeamNone {
		t.Errorf("remaining player should be unassigned, got %s", ps[0].Team)
	}
	if len(m.Roster(TeamRed))+len(m.Roster(TeamBlue)) != 0 {
		t.Error("rosters should be empty")
	}
	if m.World.Contains(ps[1].Body) {
		t.Error("removed player's body still in world")
	}
}

func TestSpreadPositions(t *testing.T) {
	if got := SpreadPositions(1, 200, 300); len(got) != 1 || got[0] != 300 {
		t.Errorf("single player should sit at the center, got %v", got)
	}
	got := SpreadPositions(3, 200, 300)
	want := []float64{100, 300, 500}
	for i := range want {
		if !near(got[i], want[i]) {
			t.Errorf("spread[%d] = %f, want %f", i, got[i], want[i])
		}
	}
	if SpreadPositions(0, 200, 300) != nil {
		t.Error("no players, no positions")
	}
}

func TestNewTurnIsIndependentOfPriorPositions(t *testing.T) {
	m := newTestMatch(t)
	ps := addPlayers(t, m, 5)

	snapshot := func() map[string]physics.Vec2 {
		out := make(map[string]physics.Vec2)
		for _, p := range ps {
			out[p.ID] = physics.PositionOf(p.Body)
		}
		return out
	}

	m.NewTurn()
	first := snapshot()

	for i, p := range ps {
		physics.SetPosition(p.Body, physics.V(float64(37*i), float64(53*i)))
		physics.SetVelocity(p.Body, physics.V(10, 10))
	}
	m.Ball().Team = TeamBlue
	narrowBallMask(ps[1])
	m.NewTurn()
	second := snapshot()

	for id, pos := range first {
		if second[id] != pos {
			t.Errorf("%s: %v after second turn, %v after first", id, second[id], pos)
		}
	}
	for _, p := range ps {
		if physics.SpeedOf(p.Body) != 0 {
			t.Errorf("%s should be at rest after a turn reset", p.ID)
		}
		if !CanTouchBall(p) {
			t.Errorf("%s mask should be restored", p.ID)
		}
	}
	if m.Ball().Team != TeamNone {
		t.Error("ball team should be neutral")
	}
	if physics.PositionOf(m.Ball().Body) != m.Center() {
		t.Error("ball should be served from the center")
	}

	// red has 3 players spread around the red center
	red := m.Roster(TeamRed)
	ys := SpreadPositions(len(red), m.Tuning.SpreadDistance, m.Tuning.Height/2)
	for i, p := range red {
		want := physics.V(m.TeamCenter(TeamRed).X, ys[i])
		if physics.PositionOf(p.Body) != want {
			t.Errorf("red[%d] at %v, want %v", i, physics.PositionOf(p.Body), want)
		}
	}
}

func TestGoalScoresForOpponent(t *testing.T) {
	m := newTestMatch(t)
	ps := addPlayers(t, m, 2)
	ball := m.Ball()

	// just in front of the RED goal, heading into it
	physics.SetPosition(ball.Body, physics.V(60, m.Tuning.Height/2))
	physics.SetVelocity(ball.Body, physics.V(-400, 0))
	physics.SetPosition(ps[0].Body, physics.V(200, 100))

	out := m.Tick(testEpoch.Add(100 * time.Millisecond))
	if out.Goal == nil || out.Goal.Team != TeamRed {
		t.Fatalf("expected the RED goal to be hit, got %+v", out.Goal)
	}
	if m.State.BlueScore != 1 || m.State.RedScore != 0 {
		t.Fatalf("expected 0-1, got %d-%d", m.State.RedScore, m.State.BlueScore)
	}
	if physics.PositionOf(ball.Body) != m.Center() {
		t.Errorf("ball should be back at the center, got %v", physics.PositionOf(ball.Body))
	}
	if physics.PositionOf(ps[0].Body) != m.TeamCenter(TeamRed) {
		t.Errorf("red player should be re-spread to %v, got %v", m.TeamCenter(TeamRed), physics.PositionOf(ps[0].Body))
	}
	if ball.Team != TeamNone {
		t.Error("ball team should be cleared by the new turn")
	}
}

func TestRetouchRule(t *testing.T) {
	m := newTestMatch(t)
	ps := addPlayers(t, m, 4) // red p0 p2, blue p1 p3

	m.applyOutcome(CollisionOutcome{Touches: []*Player{ps[0]}})
	if m.Ball().Team != TeamRed {
		t.Fatalf("ball should belong to RED, got %s", m.Ball().Team)
	}
	for _, p := range ps {
		if want := p.Team != TeamRed; CanTouchBall(p) != want {
			t.Errorf("%s (%s): can touch ball = %v, want %v", p.ID, p.Team, CanTouchBall(p), want)
		}
	}

	m.applyOutcome(CollisionOutcome{Touches: []*Player{ps[3]}})
	for _, p := range ps {
		if want := p.Team != TeamBlue; CanTouchBall(p) != want {
			t.Errorf("after blue touch %s (%s): can touch ball = %v, want %v", p.ID, p.Team, CanTouchBall(p), want)
		}
	}

	m.NewTurn()
	for _, p := range ps {
		if !CanTouchBall(p) {
			t.Errorf("%s mask should be restored by a new turn", p.ID)
		}
	}
}

func TestPaddleContactNarrowsMaskWhenItEnds(t *testing.T) {
	m := newTestMatch(t)
	ps := addPlayers(t, m, 2)
	red, blue, ball := ps[0], ps[1], m.Ball()

	pos := physics.PositionOf(red.Body)
	physics.SetPosition(ball.Body, physics.V(pos.X+red.Width()/2+ball.Radius()-2, pos.Y))
	physics.SetVelocity(ball.Body, physics.Vec2{})
	m.Tick(testEpoch.Add(16 * time.Millisecond))
	if !m.World.Touching(ball.Body, red.Body) {
		t.Fatal("ball and red paddle should be in contact")
	}
	if ball.Team != TeamNone {
		t.Fatalf("a touch counts when the contact ends, ball is %s", ball.Team)
	}

	physics.SetPosition(ball.Body, m.Center())
	out := m.Tick(testEpoch.Add(32 * time.Millisecond))
	if len(out.Touches) != 1 || out.Touches[0] != red {
		t.Fatalf("expected one touch by red, got %v", out.Touches)
	}
	if ball.Team != TeamRed {
		t.Errorf("ball should belong to RED, got %s", ball.Team)
	}
	if CanTouchBall(red) || !CanTouchBall(blue) {
		t.Errorf("after a red touch: red can touch %v, blue can touch %v", CanTouchBall(red), CanTouchBall(blue))
	}
}

func TestGoalPushDoesNotCarryIntoNewTurn(t *testing.T) {
	m := newTestMatch(t)
	ps := addPlayers(t, m, 2)
	red, ball := ps[0], m.Ball()

	// red pushes the ball into the BLUE goal and is still in contact
	y := m.Tuning.Height / 2
	bx := m.Tuning.Width - wallInset - m.Tuning.GoalDepth + 1
	physics.SetPosition(ball.Body, physics.V(bx, y))
	physics.SetVelocity(ball.Body, physics.Vec2{})
	red.Teleport(physics.V(bx-ball.Radius()-red.Width()/2+2, y))

	out := m.Tick(testEpoch.Add(16 * time.Millisecond))
	if out.Goal == nil || out.Goal.Team != TeamBlue {
		t.Fatalf("expected the BLUE goal to be hit, got %+v", out.Goal)
	}
	if m.State.RedScore != 1 {
		t.Fatalf("expected red to score, got %d-%d", m.State.RedScore, m.State.BlueScore)
	}
	if m.World.Touching(ball.Body, red.Body) {
		t.Error("a new turn should forget the ball's contacts")
	}

	out = m.Tick(testEpoch.Add(32 * time.Millisecond))
	if len(out.Touches) != 0 {
		t.Errorf("no touch expected on the first tick of a turn, got %d", len(out.Touches))
	}
	if ball.Team != TeamNone {
		t.Errorf("ball should stay neutral, got %s", ball.Team)
	}
	for _, p := range ps {
		if !CanTouchBall(p) {
			t.Errorf("%s (%s) should be able to touch the ball", p.ID, p.Team)
		}
	}
}

func TestRetouchMaskAppliesToLateJoiner(t *testing.T) {
	m := newTestMatch(t)
	addPlayers(t, m, 2)
	m.applyOutcome(CollisionOutcome{Touches: m.Roster(TeamRed)})

	p3 := addPlayers(t, m, 1)[0]
	if p3.Team != TeamRed || CanTouchBall(p3) {
		t.Error("a player joining the team that touched last should not be able to touch the ball")
	}
}

func TestApplyOutcomeWithoutBallPanics(t *testing.T) {
	m := newTestMatch(t)
	addPlayers(t, m, 2)
	m.ball = nil

	defer func() {
		if recover() == nil {
			t.Error("expected a panic for IN_GAME without a ball")
		}
	}()
	m.applyOutcome(CollisionOutcome{})
}

func TestLobbyIgnoresMovement(t *testing.T) {
	m := newTestMatch(t)
	p := addPlayers(t, m, 1)[0]
	if err := m.HandleMovement(p.ID, physics.V(1, 0)); err != nil {
		t.Fatal(err)
	}
	m.Tick(testEpoch.Add(50 * time.Millisecond))
	if physics.SpeedOf(p.Body) != 0 {
		t.Errorf("lobby player should not move, speed %f", physics.SpeedOf(p.Body))
	}
}

func TestMovementAcceleratesInGame(t *testing.T) {
	m := newTestMatch(t)
	p := addPlayers(t, m, 2)[0]
	if err := m.HandleMovement(p.ID, physics.V(1, 0)); err != nil {
		t.Fatal(err)
	}
	m.Tick(testEpoch.Add(100 * time.Millisecond))
	v := physics.VelocityOf(p.Body)
	if v.X <= 0 {
		t.Errorf("expected positive x velocity, got %v", v)
	}
	if physics.SpeedOf(p.Body) > p.MaxSpeed+1e-9 {
		t.Errorf("speed %f exceeds max %f", physics.SpeedOf(p.Body), p.MaxSpeed)
	}
}

func TestSpeedClampOverManyTicks(t *testing.T) {
	m := newTestMatch(t)
	ps := addPlayers(t, m, 6)
	dirs := []physics.Vec2{
		physics.V(1, 0), physics.V(-1, 0), physics.V(0, 1),
		physics.V(0, -1), physics.V(1, 1).Normalize(), physics.V(-1, 1).Normalize(),
	}
	for i, p := range ps {
		m.HandleMovement(p.ID, dirs[i])
	}

	now := testEpoch
	for i := 0; i < 600; i++ {
		now = now.Add(time.Second / 60)
		if i%90 == 0 {
			for j, p := range ps {
				m.HandleMovement(p.ID, dirs[(i/90+j)%len(dirs)])
			}
		}
		m.Tick(now)
		for _, p := range ps {
			if s := physics.SpeedOf(p.Body); s > p.MaxSpeed+1e-9 {
				t.Fatalf("tick %d: %s speed %f > %f", i, p.ID, s, p.MaxSpeed)
			}
		}
		b := m.Ball()
		if s := physics.SpeedOf(b.Body); s < b.MinSpeed-1e-9 || s > b.MaxSpeed+1e-9 {
			t.Fatalf("tick %d: ball speed %f outside [%f, %f]", i, s, b.MinSpeed, b.MaxSpeed)
		}
		checkRosters(t, m)
	}
}

func TestDeltaTimeIsCapped(t *testing.T) {
	m := newTestMatch(t)
	m.Tick(testEpoch.Add(10 * time.Second))
	if m.State.DeltaTime != m.Tuning.MaxDeltaTime {
		t.Errorf("expected dt capped at %f, got %f", m.Tuning.MaxDeltaTime, m.State.DeltaTime)
	}
	m.Tick(testEpoch.Add(10*time.Second + 20*time.Millisecond))
	if !near(m.State.DeltaTime, 0.02) {
		t.Errorf("expected dt 0.02, got %f", m.State.DeltaTime)
	}
}

func TestLongTickIsSplitIntoSteps(t *testing.T) {
	m := newTestMatch(t)
	addPlayers(t, m, 2)
	ball := m.Ball()

	// above the goal mouth, heading for the right wall
	physics.SetPosition(ball.Body, physics.V(700, 100))
	physics.SetVelocity(ball.Body, physics.V(m.Tuning.BallMaxSpeed, 0))

	out := m.Tick(testEpoch.Add(500 * time.Millisecond))
	if !near(m.State.DeltaTime, 0.5) {
		t.Fatalf("a half second stall should not be capped, dt %f", m.State.DeltaTime)
	}
	if out.Goal != nil {
		t.Fatalf("unexpected goal %+v", out.Goal)
	}
	if x := physics.PositionOf(ball.Body).X; x >= m.Tuning.Width-wallInset {
		t.Errorf("ball went through the right wall, x=%f", x)
	}
	if physics.VelocityOf(ball.Body).X >= 0 {
		t.Error("ball should have bounced off the right wall")
	}
}

func TestMatchRejectsInvalidCommands(t *testing.T) {
	m := newTestMatch(t)
	p := addPlayers(t, m, 1)[0]

	if _, err := m.AddPlayer(p.ID, "again", 0, nil); !errors.Is(err, ErrDuplicatePlayer) {
		t.Errorf("expected ErrDuplicatePlayer, got %v", err)
	}
	if err := m.HandleMovement("ghost", physics.V(1, 0)); !errors.Is(err, ErrUnknownPlayer) {
		t.Errorf("expected ErrUnknownPlayer, got %v", err)
	}
	if err := m.RemovePlayer("ghost"); !errors.Is(err, ErrUnknownPlayer) {
		t.Errorf("expected ErrUnknownPlayer, got %v", err)
	}
	if _, err := m.ApplyModifier(p.ID, "wings"); !errors.Is(err, ErrUnknownModifier) {
		t.Errorf("expected ErrUnknownModifier, got %v", err)
	}
	if applied, err := m.ApplyModifier(p.ID, "faster"); err != nil || !applied {
		t.Errorf("expected faster to apply, got %v %v", applied, err)
	}
	if applied, _ := m.ApplyModifier(p.ID, "faster"); applied {
		t.Error("second faster should be a no-op")
	}
}

func TestMatchFull(t *testing.T) {
	tuning := DefaultTuning()
	tuning.MaxPlayers = 3
	m := NewMatch(tuning, rand.New(rand.NewPCG(1, 2)), testEpoch)
	addPlayers(t, m, 3)
	if _, err := m.AddPlayer("extra", "extra", 0, nil); !errors.Is(err, ErrMatchFull) {
		t.Errorf("expected ErrMatchFull, got %v", err)
	}
}

func TestJoinAppliesPurchasedModifiers(t *testing.T) {
	m := newTestMatch(t)
	p, err := m.AddPlayer("p", "P", 7, []string{"faster", "unknown", "giant"})
	if err != nil {
		t.Fatal(err)
	}
	if !p.HasModifier("faster") || !p.HasModifier("giant") || p.HasModifier("unknown") {
		t.Errorf("unexpected modifiers %v", p.Modifiers())
	}
	if !near(p.Width(), m.Tuning.PlayerWidth*1.25) {
		t.Errorf("giant should widen the paddle, got %f", p.Width())
	}
}
