package physics

import "math"

// Vec2 is a 2D vector in world units
type Vec2 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// V is shorthand for Vec2{x, y}
func V(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.X + o.X, v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.X - o.X, v.Y - o.Y}
}

func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Len returns the magnitude of v
func (v Vec2) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Normalize returns v scaled to unit length, or the zero vector
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Perp returns v rotated by +90 degrees
func (v Vec2) Perp() Vec2 {
	return Vec2{-v.Y, v.X}
}

// Rotate returns v rotated by angle radians
func (v Vec2) Rotate(angle float64) Vec2 {
	if angle == 0 {
		return v
	}
	c, s := math.Cos(angle), math.Sin(angle)
	return Vec2{v.X*c - v.Y*s, v.X*s + v.Y*c}
}

// FromAngle returns a vector of the given length pointing at angle radians
func FromAngle(angle, length float64) Vec2 {
	return Vec2{math.Cos(angle) * length, math.Sin(angle) * length}
}
