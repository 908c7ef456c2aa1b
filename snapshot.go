package main

import (
	"ponghub/physics"
)

// rectState translates a center-based rectangle body to its unrotated
// top-left corner. The renderer rotates around that corner by Angle.
func rectState(b *physics.Body) RectState {
	pos := physics.PositionOf(b)
	s := b.Shape
	return RectState{
		X:      pos.X - s.Width/2,
		Y:      pos.Y - s.Height/2,
		Width:  s.Width,
		Height: s.Height,
		Angle:  s.Angle,
	}
}

// BuildSnapshot serializes the match for one tick
func BuildSnapshot(m *Match, tick uint64) Snapshot {
	snap := Snapshot{
		State: MatchStateMsg{
			Phase:     m.State.Phase.String(),
			RedScore:  m.State.RedScore,
			BlueScore: m.State.BlueScore,
			DeltaTime: m.State.DeltaTime,
		},
		Players: make([]PlayerState, 0, m.PlayerCount()),
		Walls:   make([]RectState, 0, len(m.Walls())),
		Goals:   make([]GoalState, 0, 2),
		Net:     rectState(m.Net().Body),
		Tick:    tick,
	}
	for _, p := range m.Players() {
		snap.Players = append(snap.Players, p.ToState())
	}
	if b := m.Ball(); b != nil {
		snap.Ball = b.ToState()
	}
	for _, w := range m.Walls() {
		snap.Walls = append(snap.Walls, rectState(w.Body))
	}
	for _, g := range m.Goals() {
		snap.Goals = append(snap.Goals, GoalState{RectState: rectState(g.Body), Team: g.Team.String()})
	}
	return snap
}
