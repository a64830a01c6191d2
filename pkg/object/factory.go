package object

import (
	"math"

	"github.com/chazu/implicad/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// NewBox returns a centered box with edges blended by smooth.
func NewBox(x, y, z, smooth float64) Object {
	return newIntersection([]Object{NewSlabX(x), NewSlabY(y), NewSlabZ(z)}, smooth, DefaultParams())
}

// NewCappedCylinder returns a solid of revolution around Z, centered at
// the origin, with radius r1 at the bottom and r2 at the top. Equal radii
// give a true cylinder; otherwise an infinite cone of matching slope is
// bounded by an explicit box. Either is then clipped to length by a slab.
func NewCappedCylinder(length, r1, r2, smooth float64) Object {
	var side Object
	if math.Abs(r1-r2) < radiusEpsilon {
		side = NewCylinder(r1)
	} else {
		slope := math.Abs(r2-r1) / length
		var offset float64
		if r1 < r2 {
			offset = -r1/slope - length*0.5
		} else {
			offset = r2/slope + length*0.5
		}
		rmax := math.Max(r1, r2)
		side = NewCone(slope, offset).WithBBox(bbox.New(
			v3.Vec{X: -rmax, Y: -rmax, Z: -Infinity},
			v3.Vec{X: rmax, Y: rmax, Z: Infinity},
		))
	}
	return newIntersection([]Object{side, NewSlabZ(length)}, smooth, DefaultParams())
}

// NewBend bends o so that width along X spans a full circle.
func NewBend(o Object, width float64) Object { return NewBender(o, width) }

// NewTwist twists o one full turn per height along Z.
func NewTwist(o Object, height float64) Object { return NewTwister(o, height) }
