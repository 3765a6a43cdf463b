package domain

import "math"

// Vec2 is a two-dimensional vector in world units. Methods use value
// receivers and return new values, so session state is never aliased.
type Vec2 struct {
	X float64
	Y float64
}

// FromHeading returns the unit vector pointing along a heading in radians.
func FromHeading(rad float64) Vec2 {
	return Vec2{X: math.Cos(rad), Y: math.Sin(rad)}
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v multiplied by f.
func (v Vec2) Scale(f float64) Vec2 {
	return Vec2{X: v.X * f, Y: v.Y * f}
}

// Dot returns the dot product of v and o.
func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// LengthSq returns the squared magnitude, avoiding the sqrt when only
// comparisons are needed.
func (v Vec2) LengthSq() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Length returns the magnitude of v.
func (v Vec2) Length() float64 {
	return math.Sqrt(v.LengthSq())
}

// DistanceTo returns the distance between v and o.
func (v Vec2) DistanceTo(o Vec2) float64 {
	return o.Sub(v).Length()
}

// Normalize returns the unit vector of v. The zero vector normalizes to
// itself.
func (v Vec2) Normalize() Vec2 {
	l := v.Length()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / l, Y: v.Y / l}
}

// Limit clamps the magnitude of v to max.
func (v Vec2) Limit(max float64) Vec2 {
	if v.LengthSq() <= max*max {
		return v
	}
	return v.Normalize().Scale(max)
}

// Angle returns the direction of v in radians.
func (v Vec2) Angle() float64 {
	return math.Atan2(v.Y, v.X)
}
