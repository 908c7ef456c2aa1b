package physics

import "math"

// ShapeKind distinguishes the supported collision shapes
type ShapeKind int

const (
	ShapeRect   ShapeKind = 0
	ShapeCircle ShapeKind = 1
)

// Shape is either an oriented rectangle or a circle, centered on the body position
type Shape struct {
	Kind   ShapeKind
	Width  float64
	Height float64
	Angle  float64 // radians, rectangles only
	Radius float64 // circles only
}

// Rect returns an axis-aligned rectangle shape
func Rect(w, h float64) Shape {
	return Shape{Kind: ShapeRect, Width: w, Height: h}
}

// Circle returns a circle shape
func Circle(r float64) Shape {
	return Shape{Kind: ShapeCircle, Radius: r}
}

// Area returns the surface area of the shape
func (s Shape) Area() float64 {
	if s.Kind == ShapeCircle {
		return math.Pi * s.Radius * s.Radius
	}
	return s.Width * s.Height
}

// Filter decides which bodies may touch each other.
// Two bodies interact only if each mask contains the other's category.
type Filter struct {
	Category uint32
	Mask     uint32
}

// CanCollide reports whether a and b pass each other's masks
func CanCollide(a, b Filter) bool {
	return a.Mask&b.Category != 0 && b.Mask&a.Category != 0
}

// Material holds the contact response parameters of a body
type Material struct {
	Restitution float64
	Friction    float64
	AirFriction float64 // fraction of velocity lost per second
	Density     float64
}

// DefaultMaterial mirrors the usual defaults of a 2D rigid body engine
var DefaultMaterial = Material{
	Restitution: 0,
	Friction:    0.1,
	AirFriction: 0.6,
	Density:     0.001,
}

// Body is a rigid body registered in a World
type Body struct {
	ID       uint64
	Position Vec2
	Velocity Vec2
	Shape    Shape
	Static   bool
	Sensor   bool
	Filter   Filter
	Material Material
	// Owner points back at the game object that owns this body
	Owner any

	invMass float64
}

// NewBody creates a dynamic body at pos
func NewBody(pos Vec2, shape Shape, filter Filter, mat Material) *Body {
	b := &Body{
		Position: pos,
		Shape:    shape,
		Filter:   filter,
		Material: mat,
	}
	b.updateMass()
	return b
}

// NewStaticBody creates an immovable body at pos
func NewStaticBody(pos Vec2, shape Shape, filter Filter) *Body {
	b := &Body{
		Position: pos,
		Shape:    shape,
		Static:   true,
		Filter:   filter,
		Material: DefaultMaterial,
	}
	return b
}

func (b *Body) updateMass() {
	if b.Static {
		b.invMass = 0
		return
	}
	m := b.Shape.Area() * b.Material.Density
	if m <= 0 {
		b.invMass = 0
		return
	}
	b.invMass = 1 / m
}

// Mass returns the body mass, or +Inf for static bodies
func (b *Body) Mass() float64 {
	if b.invMass == 0 {
		return math.Inf(1)
	}
	return 1 / b.invMass
}

// SetShape replaces the body shape and recomputes its mass
func (b *Body) SetShape(s Shape) {
	b.Shape = s
	b.updateMass()
}

// Bounds returns the axis-aligned bounding box of the body
func (b *Body) Bounds() AABB {
	switch b.Shape.Kind {
	case ShapeCircle:
		r := b.Shape.Radius
		return AABB{
			Min: Vec2{b.Position.X - r, b.Position.Y - r},
			Max: Vec2{b.Position.X + r, b.Position.Y + r},
		}
	default:
		hw, hh := b.Shape.Width/2, b.Shape.Height/2
		if b.Shape.Angle != 0 {
			c := math.Abs(math.Cos(b.Shape.Angle))
			s := math.Abs(math.Sin(b.Shape.Angle))
			hw, hh = hw*c+hh*s, hw*s+hh*c
		}
		return AABB{
			Min: Vec2{b.Position.X - hw, b.Position.Y - hh},
			Max: Vec2{b.Position.X + hw, b.Position.Y + hh},
		}
	}
}

// AABB is an axis-aligned bounding box
type AABB struct {
	Min, Max Vec2
}

// Overlaps reports whether two boxes intersect
func (a AABB) Overlaps(o AABB) bool {
	return a.Min.X <= o.Max.X && a.Max.X >= o.Min.X &&
		a.Min.Y <= o.Max.Y && a.Max.Y >= o.Min.Y
}

// PositionOf returns the body center
func PositionOf(b *Body) Vec2 {
	return b.Position
}

// SetPosition teleports the body without touching its velocity
func SetPosition(b *Body, p Vec2) {
	b.Position = p
}

// VelocityOf returns the body velocity in units per second
func VelocityOf(b *Body) Vec2 {
	return b.Velocity
}

// SetVelocity replaces the body velocity
func SetVelocity(b *Body, v Vec2) {
	b.Velocity = v
}

// SpeedOf returns the velocity magnitude
func SpeedOf(b *Body) float64 {
	return b.Velocity.Len()
}

// DirectionOf returns the unit velocity direction, zero when at rest
func DirectionOf(b *Body) Vec2 {
	return b.Velocity.Normalize()
}

// SetSpeed rescales the velocity keeping its direction.
// A body at rest has no direction and stays at rest.
func SetSpeed(b *Body, speed float64) {
	b.Velocity = b.Velocity.Normalize().Scale(speed)
}
