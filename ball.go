package main

import (
	"math"
	"math/rand/v2"

	"ponghub/physics"
)

var ballMaterial = physics.Material{
	Restitution: 0.9,
	Friction:    0.01,
	AirFriction: 0.06,
	Density:     0.0005,
}

// kickSpeed is the speed given to a ball at rest before the minimum clamp
const kickSpeed = 0.001

// Serve angles in degrees (y axis points down). Near-horizontal angles,
// which would send the ball straight at a goal mouth, are left out.
var serveAngleRanges = [3][2]float64{
	{20, 70},
	{110, 160},
	{200, 340},
}

// Ball is the puck both teams fight over
type Ball struct {
	Body     *physics.Body
	MinSpeed float64
	MaxSpeed float64
	// Team that touched the ball last, TeamNone at the start of a turn
	Team Team
}

// NewBall creates a ball at rest at pos
func NewBall(pos physics.Vec2, t Tuning) *Ball {
	b := &Ball{
		MinSpeed: t.BallMinSpeed,
		MaxSpeed: t.BallMaxSpeed,
	}
	b.Body = physics.NewBody(pos, physics.Circle(t.BallRadius), filterFor(CategoryBall), ballMaterial)
	b.Body.Owner = b
	return b
}

// ClampSpeed keeps the speed inside [MinSpeed, MaxSpeed].
// A ball at rest is first kicked in a random direction.
func (b *Ball) ClampSpeed(rng *rand.Rand) {
	speed := physics.SpeedOf(b.Body)
	if speed == 0 {
		physics.SetVelocity(b.Body, physics.FromAngle(rng.Float64()*2*math.Pi, kickSpeed))
	}
	switch {
	case speed < b.MinSpeed:
		physics.SetSpeed(b.Body, b.MinSpeed)
	case speed > b.MaxSpeed:
		physics.SetSpeed(b.Body, b.MaxSpeed)
	}
}

// Serve puts the ball at pos, clears its team and launches it
func (b *Ball) Serve(pos physics.Vec2, minSpeed, maxSpeed float64, rng *rand.Rand) {
	physics.SetPosition(b.Body, pos)
	b.Team = TeamNone
	speed := minSpeed + rng.Float64()*(maxSpeed-minSpeed)
	physics.SetVelocity(b.Body, physics.FromAngle(ServeAngle(rng), speed))
}

// ServeAngle draws a serve angle in radians from one of the serve ranges
func ServeAngle(rng *rand.Rand) float64 {
	r := serveAngleRanges[rng.IntN(len(serveAngleRanges))]
	deg := r[0] + rng.Float64()*(r[1]-r[0])
	return deg * math.Pi / 180
}

func (b *Ball) Radius() float64 {
	return b.Body.Shape.Radius
}

// ToState converts to protocol state
func (b *Ball) ToState() *BallState {
	pos := physics.PositionOf(b.Body)
	return &BallState{
		X:      pos.X,
		Y:      pos.Y,
		Radius: b.Radius(),
		Team:   b.Team.String(),
	}
}
