// Package bbox implements the axis-aligned bounding box used by every
// implicit object. Boxes are immutable values and are copied freely.
package bbox

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Infinity is the extent used for unbounded primitives. A large finite
// value keeps affine transforms of unbounded boxes free of Inf-Inf NaNs.
const Infinity = 1e10

// Box is an axis-aligned box. A box with Min greater than Max on any
// axis is empty and is infinitely far from every point.
type Box struct {
	Min v3.Vec `json:"min"`
	Max v3.Vec `json:"max"`
}

// New returns the box spanning min and max.
func New(min, max v3.Vec) Box {
	return Box{Min: min, Max: max}
}

// Empty returns a box that contains nothing.
func Empty() Box {
	inf := math.Inf(1)
	return Box{
		Min: v3.Vec{X: inf, Y: inf, Z: inf},
		Max: v3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// Infinite returns the box used for primitives without finite extent.
func Infinite() Box {
	return Box{
		Min: v3.Vec{X: -Infinity, Y: -Infinity, Z: -Infinity},
		Max: v3.Vec{X: Infinity, Y: Infinity, Z: Infinity},
	}
}

// IsEmpty reports whether the box contains no point.
func (b Box) IsEmpty() bool {
	return !(b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z)
}

// Value approximates the signed distance from p to the box. It is zero or
// negative inside. Outside it is the largest per-axis gap, which never
// exceeds the Euclidean distance and so is a safe lower bound.
func (b Box) Value(p v3.Vec) float64 {
	x := math.Max(p.X-b.Max.X, b.Min.X-p.X)
	y := math.Max(p.Y-b.Max.Y, b.Min.Y-p.Y)
	z := math.Max(p.Z-b.Max.Z, b.Min.Z-p.Z)
	return math.Max(x, math.Max(y, z))
}

// Contains reports whether p lies inside the box, boundary included.
// A NaN coordinate is never contained.
func (b Box) Contains(p v3.Vec) bool {
	return b.Min.X <= p.X && p.X <= b.Max.X &&
		b.Min.Y <= p.Y && p.Y <= b.Max.Y &&
		b.Min.Z <= p.Z && p.Z <= b.Max.Z
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(o Box) Box {
	return Box{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// Intersection returns the overlap of both boxes, which may be empty.
func (b Box) Intersection(o Box) Box {
	return Box{Min: b.Min.Max(o.Min), Max: b.Max.Min(o.Max)}
}

// Dilate grows the box by d on every side. Negative d shrinks it.
func (b Box) Dilate(d float64) Box {
	if b.IsEmpty() {
		return b
	}
	return Box{Min: b.Min.SubScalar(d), Max: b.Max.AddScalar(d)}
}

// Size returns the extent along each axis.
func (b Box) Size() v3.Vec {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box.
func (b Box) Center() v3.Vec {
	return b.Min.Add(b.Max).MulScalar(0.5)
}

// Corners returns the eight corners of the box.
func (b Box) Corners() [8]v3.Vec {
	return [8]v3.Vec{
		{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Min.Z},
		{X: b.Min.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Min.Y, Z: b.Max.Z},
		{X: b.Min.X, Y: b.Max.Y, Z: b.Max.Z},
		{X: b.Max.X, Y: b.Max.Y, Z: b.Max.Z},
	}
}

// Transform maps all eight corners through m and returns their
// axis-aligned extent. The result is not tight under rotation.
func (b Box) Transform(m sdf.M44) Box {
	if b.IsEmpty() {
		return b
	}
	out := Empty()
	for _, c := range b.Corners() {
		p := m.MulPosition(c)
		out.Min = out.Min.Min(p)
		out.Max = out.Max.Max(p)
	}
	return out
}

// Sdfx converts the box to the sdfx representation.
func (b Box) Sdfx() sdf.Box3 {
	return sdf.Box3{Min: b.Min, Max: b.Max}
}

func (b Box) String() string {
	return fmt.Sprintf("[(%g %g %g) (%g %g %g)]", b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
}
