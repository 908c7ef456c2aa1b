package physics

import "math"

// Contact describes the overlap of two bodies.
// Normal points from the first body towards the second.
type Contact struct {
	Normal Vec2
	Depth  float64
}

// Collide runs the narrow phase for a pair of bodies
func Collide(a, b *Body) (Contact, bool) {
	switch {
	case a.Shape.Kind == ShapeCircle && b.Shape.Kind == ShapeCircle:
		return circleCircle(a, b)
	case a.Shape.Kind == ShapeCircle:
		return circleRect(a, b)
	case b.Shape.Kind == ShapeCircle:
		c, ok := circleRect(b, a)
		c.Normal = c.Normal.Scale(-1)
		return c, ok
	default:
		return rectRect(a, b)
	}
}

func circleCircle(a, b *Body) (Contact, bool) {
	d := b.Position.Sub(a.Position)
	rs := a.Shape.Radius + b.Shape.Radius
	dist2 := d.Dot(d)
	if dist2 > rs*rs {
		return Contact{}, false
	}
	dist := math.Sqrt(dist2)
	if dist == 0 {
		return Contact{Normal: Vec2{1, 0}, Depth: rs}, true
	}
	return Contact{Normal: d.Scale(1 / dist), Depth: rs - dist}, true
}

// circleRect returns the contact with the normal pointing from circle c to rect r
func circleRect(c, r *Body) (Contact, bool) {
	angle := r.Shape.Angle
	local := c.Position.Sub(r.Position).Rotate(-angle)
	hw, hh := r.Shape.Width/2, r.Shape.Height/2
	radius := c.Shape.Radius

	closest := Vec2{clamp(local.X, -hw, hw), clamp(local.Y, -hh, hh)}
	inside := closest == local

	var nLocal Vec2
	var depth float64
	if !inside {
		d := local.Sub(closest)
		dist2 := d.Dot(d)
		if dist2 > radius*radius {
			return Contact{}, false
		}
		dist := math.Sqrt(dist2)
		nLocal = d.Scale(1 / dist)
		depth = radius - dist
	} else {
		dx := hw - math.Abs(local.X)
		dy := hh - math.Abs(local.Y)
		if dx < dy {
			nLocal = Vec2{sign(local.X), 0}
			depth = dx + radius
		} else {
			nLocal = Vec2{0, sign(local.Y)}
			depth = dy + radius
		}
	}
	// nLocal points from rect to circle
	return Contact{Normal: nLocal.Rotate(angle).Scale(-1), Depth: depth}, true
}

func rectRect(a, b *Body) (Contact, bool) {
	ca := corners(a)
	cb := corners(b)
	axes := [4]Vec2{
		FromAngle(a.Shape.Angle, 1),
		FromAngle(a.Shape.Angle, 1).Perp(),
		FromAngle(b.Shape.Angle, 1),
		FromAngle(b.Shape.Angle, 1).Perp(),
	}

	best := Contact{Depth: math.Inf(1)}
	for _, axis := range axes {
		minA, maxA := project(ca, axis)
		minB, maxB := project(cb, axis)
		overlap := math.Min(maxA, maxB) - math.Max(minA, minB)
		if overlap < 0 {
			return Contact{}, false
		}
		if overlap < best.Depth {
			best = Contact{Normal: axis, Depth: overlap}
		}
	}
	if b.Position.Sub(a.Position).Dot(best.Normal) < 0 {
		best.Normal = best.Normal.Scale(-1)
	}
	return best, true
}

func corners(b *Body) [4]Vec2 {
	hw, hh := b.Shape.Width/2, b.Shape.Height/2
	local := [4]Vec2{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}
	var out [4]Vec2
	for i, p := range local {
		out[i] = p.Rotate(b.Shape.Angle).Add(b.Position)
	}
	return out
}

func project(pts [4]Vec2, axis Vec2) (float64, float64) {
	lo := pts[0].Dot(axis)
	hi := lo
	for _, p := range pts[1:] {
		d := p.Dot(axis)
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	return lo, hi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
