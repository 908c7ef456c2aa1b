package main

import (
	"sort"

	"ponghub/physics"
)

var playerMaterial = physics.Material{
	Restitution: 0.2,
	Friction:    0.1,
	Density:     0.001,
}

// Player is a paddle controlled by one connection
type Player struct {
	ID        string
	Name      string
	AccountID int64
	Body      *physics.Body
	Team      Team

	MaxSpeed     float64
	Acceleration float64
	// Input is the latest acceleration direction, applied every tick
	Input physics.Vec2

	modifiers map[string]bool
}

// NewPlayer creates a player whose paddle is centered on pos
func NewPlayer(id, name string, accountID int64, pos physics.Vec2, t Tuning) *Player {
	mat := playerMaterial
	mat.AirFriction = t.PlayerAirFriction
	p := &Player{
		ID:           id,
		Name:         name,
		AccountID:    accountID,
		MaxSpeed:     t.PlayerMaxSpeed,
		Acceleration: t.PlayerAccel,
		modifiers:    make(map[string]bool),
	}
	p.Body = physics.NewBody(pos, physics.Rect(t.PlayerWidth, t.PlayerHeight), filterFor(CategoryPlayer), mat)
	p.Body.Owner = p
	return p
}

func (p *Player) Width() float64  { return p.Body.Shape.Width }
func (p *Player) Height() float64 { return p.Body.Shape.Height }

// ApplyModifier applies m once. Returns false if it was already applied.
func (p *Player) ApplyModifier(m Modifier) bool {
	if p.modifiers[m.ID] {
		return false
	}
	p.modifiers[m.ID] = true
	p.MaxSpeed *= grow(m.SpeedMul)
	p.Acceleration *= grow(m.AccelMul)
	if m.WidthMul > 1 || m.HeightMul > 1 {
		s := p.Body.Shape
		s.Width *= grow(m.WidthMul)
		s.Height *= grow(m.HeightMul)
		p.Body.SetShape(s)
	}
	return true
}

func grow(mul float64) float64 {
	if mul < 1 {
		return 1
	}
	return mul
}

// HasModifier reports whether the modifier id has been applied
func (p *Player) HasModifier(id string) bool {
	return p.modifiers[id]
}

// Modifiers returns the applied modifier ids in sorted order
func (p *Player) Modifiers() []string {
	ids := make([]string, 0, len(p.modifiers))
	for id := range p.modifiers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Accelerate adds dir*Acceleration*dt to the velocity, then clamps it
func (p *Player) Accelerate(dir physics.Vec2, dt float64) {
	v := physics.VelocityOf(p.Body).Add(dir.Scale(p.Acceleration * dt))
	physics.SetVelocity(p.Body, v)
	p.ClampSpeed()
}

// ClampSpeed rescales the velocity down to MaxSpeed, keeping its direction
func (p *Player) ClampSpeed() {
	if physics.SpeedOf(p.Body) > p.MaxSpeed {
		physics.SetSpeed(p.Body, p.MaxSpeed)
	}
}

// Teleport moves the paddle to pos and stops it
func (p *Player) Teleport(pos physics.Vec2) {
	physics.SetPosition(p.Body, pos)
	physics.SetVelocity(p.Body, physics.Vec2{})
}

// ToState converts to protocol state
func (p *Player) ToState() PlayerState {
	r := rectState(p.Body)
	return PlayerState{
		ID:       p.ID,
		Username: p.Name,
		X:        r.X,
		Y:        r.Y,
		Width:    r.Width,
		Height:   r.Height,
		Angle:    r.Angle,
		Team:     p.Team.String(),
	}
}
