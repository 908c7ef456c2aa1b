// Package physics is a small rigid-body simulation for rectangles and
// circles: integration, category/mask filtering, impulse contact
// resolution and collision start/end events.
package physics

import (
	"cmp"
	"slices"
)

const (
	DefaultSubSteps = 4
	defaultCellSize = 100.0

	// penetration allowed before positional correction kicks in
	correctionSlop = 0.05
	// fraction of the remaining penetration removed per sub-step
	correctionPercent = 0.8
)

// EventKind tells whether a pair started or stopped touching
type EventKind int

const (
	CollisionStart EventKind = 0
	CollisionEnd   EventKind = 1
)

func (k EventKind) String() string {
	if k == CollisionStart {
		return "collisionStart"
	}
	return "collisionEnd"
}

// Event is emitted by Step when the touching state of a pair changes.
// A always has the lower body id.
type Event struct {
	Kind EventKind
	A, B *Body
}

type pairKey struct {
	a, b uint64
}

// World is the registry of bodies and the integrator
type World struct {
	SubSteps int

	bodies []*Body
	nextID uint64
	active map[pairKey][2]*Body
	grid   *Grid
	pairs  [][2]*Body
}

// NewWorld creates an empty world whose broad phase covers width x height
func NewWorld(width, height float64) *World {
	return &World{
		SubSteps: DefaultSubSteps,
		active:   make(map[pairKey][2]*Body),
		grid:     NewGrid(width, height, defaultCellSize),
	}
}

// AddBody registers b and assigns it an id
func (w *World) AddBody(b *Body) *Body {
	w.nextID++
	b.ID = w.nextID
	b.updateMass()
	w.bodies = append(w.bodies, b)
	return b
}

// RemoveBody unregisters b. Pairs involving b are dropped without an end event.
func (w *World) RemoveBody(b *Body) {
	idx := slices.Index(w.bodies, b)
	if idx < 0 {
		return
	}
	w.bodies = slices.Delete(w.bodies, idx, idx+1)
	w.ResetPairs(b)
}

// ResetPairs forgets every contact involving b without an end event.
// Call it after teleporting b so the next step starts from a clean slate.
func (w *World) ResetPairs(b *Body) {
	for k := range w.active {
		if k.a == b.ID || k.b == b.ID {
			delete(w.active, k)
		}
	}
}

// Bodies returns the registered bodies in insertion order
func (w *World) Bodies() []*Body {
	return w.bodies
}

// Contains reports whether b is registered
func (w *World) Contains(b *Body) bool {
	return slices.Contains(w.bodies, b)
}

// Touching reports whether a and b are currently in contact
func (w *World) Touching(a, b *Body) bool {
	_, ok := w.active[keyOf(a, b)]
	return ok
}

func keyOf(a, b *Body) pairKey {
	if a.ID > b.ID {
		a, b = b, a
	}
	return pairKey{a.ID, b.ID}
}

// Step advances the simulation by dt seconds split into SubSteps equal
// sub-steps and returns the collision events in the order they happened.
func (w *World) Step(dt float64) []Event {
	n := w.SubSteps
	if n < 1 {
		n = 1
	}
	sub := dt / float64(n)
	var events []Event
	for i := 0; i < n; i++ {
		events = w.subStep(sub, events)
	}
	return events
}

func (w *World) subStep(dt float64, events []Event) []Event {
	for _, b := range w.bodies {
		if b.Static {
			continue
		}
		if b.Material.AirFriction > 0 {
			f := 1 - b.Material.AirFriction*dt
			if f < 0 {
				f = 0
			}
			b.Velocity = b.Velocity.Scale(f)
		}
		b.Position = b.Position.Add(b.Velocity.Scale(dt))
	}

	w.grid.Clear()
	for _, b := range w.bodies {
		w.grid.Insert(b)
	}
	w.pairs = w.grid.Pairs(w.pairs[:0])
	slices.SortFunc(w.pairs, func(x, y [2]*Body) int {
		if c := cmp.Compare(x[0].ID, y[0].ID); c != 0 {
			return c
		}
		return cmp.Compare(x[1].ID, y[1].ID)
	})

	current := make(map[pairKey][2]*Body, len(w.active))
	for _, p := range w.pairs {
		a, b := p[0], p[1]
		if a.Static && b.Static {
			continue
		}
		if !CanCollide(a.Filter, b.Filter) {
			continue
		}
		contact, ok := Collide(a, b)
		if !ok {
			continue
		}
		key := pairKey{a.ID, b.ID}
		current[key] = p
		if _, was := w.active[key]; !was {
			events = append(events, Event{Kind: CollisionStart, A: a, B: b})
		}
		if !a.Sensor && !b.Sensor {
			resolve(a, b, contact)
		}
	}

	var ended []pairKey
	for k := range w.active {
		if _, still := current[k]; !still {
			ended = append(ended, k)
		}
	}
	slices.SortFunc(ended, func(x, y pairKey) int {
		if c := cmp.Compare(x.a, y.a); c != 0 {
			return c
		}
		return cmp.Compare(x.b, y.b)
	})
	for _, k := range ended {
		p := w.active[k]
		events = append(events, Event{Kind: CollisionEnd, A: p[0], B: p[1]})
	}
	w.active = current
	return events
}

// resolve separates two overlapping bodies and applies the contact impulse
func resolve(a, b *Body, c Contact) {
	total := a.invMass + b.invMass
	if total == 0 {
		return
	}
	n := c.Normal

	if c.Depth > correctionSlop {
		corr := (c.Depth - correctionSlop) / total * correctionPercent
		a.Position = a.Position.Sub(n.Scale(corr * a.invMass))
		b.Position = b.Position.Add(n.Scale(corr * b.invMass))
	}

	rv := b.Velocity.Sub(a.Velocity)
	vn := rv.Dot(n)
	if vn > 0 {
		return
	}
	e := max(a.Material.Restitution, b.Material.Restitution)
	j := -(1 + e) * vn / total
	a.Velocity = a.Velocity.Sub(n.Scale(j * a.invMass))
	b.Velocity = b.Velocity.Add(n.Scale(j * b.invMass))

	rv = b.Velocity.Sub(a.Velocity)
	t := rv.Sub(n.Scale(rv.Dot(n)))
	if t.Len() < 1e-9 {
		return
	}
	t = t.Normalize()
	jt := -rv.Dot(t) / total
	mu := min(a.Material.Friction, b.Material.Friction)
	if limit := j * mu; jt > limit {
		jt = limit
	} else if jt < -limit {
		jt = -limit
	}
	a.Velocity = a.Velocity.Sub(t.Scale(jt * a.invMass))
	b.Velocity = b.Velocity.Add(t.Scale(jt * b.invMass))
}
