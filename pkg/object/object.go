// Package object implements the composable implicit solid model. Every
// solid is a signed distance function: zero on the surface, negative
// inside and positive outside. Objects are immutable once built; every
// transform or combination returns a new node, so trees may be shared
// and evaluated concurrently without synchronization.
package object

import (
	"math"

	"github.com/chazu/implicad/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Infinity is the extent of unbounded primitives.
const Infinity = bbox.Infinity

// AlwaysPrecise is the slack used where an exact value is always wanted
// near the surface, e.g. for finite-difference normals.
const AlwaysPrecise = 1.0

// normalEpsilon is the step used for finite-difference normals.
const normalEpsilon = 1e-6

// radiusEpsilon is the tolerance under which two radii are equal.
const radiusEpsilon = 1e-10

// Params are tunables propagated through a tree by SetParameters.
type Params struct {
	// FadeRange is the fraction of the smoothing radius over which a
	// blend candidate fades out before it is dropped.
	FadeRange float64 `yaml:"fade_range" json:"fade_range"`
	// RMultiplier scales every smoothing radius.
	RMultiplier float64 `yaml:"r_multiplier" json:"r_multiplier"`
}

// DefaultParams returns the parameters objects are built with.
func DefaultParams() Params {
	return Params{FadeRange: 0.1, RMultiplier: 1.0}
}

// Object is an implicit solid.
type Object interface {
	// Value returns the signed distance from p to the surface. A positive
	// result larger than slack may be a cheap lower bound instead of the
	// exact distance.
	Value(p v3.Vec, slack float64) float64
	// Normal returns the unit surface normal near p.
	Normal(p v3.Vec) v3.Vec
	// BBox returns a box enclosing the solid.
	BBox() bbox.Box
	// SetParameters returns a copy of the tree with p applied to every
	// node that has tunables.
	SetParameters(p Params) Object
	// Translate, Rotate and Scale return transformed copies. Rotate takes
	// Euler angles in radians, applied X then Y then Z.
	Translate(v v3.Vec) Object
	Rotate(r v3.Vec) Object
	Scale(s v3.Vec) Object
	// Describe exposes the node for introspection.
	Describe() Description
}

// Description is the introspection view of a single node.
type Description struct {
	Kind     Kind
	Attrs    map[string]float64
	Children []Object
}

// NormalFromObject estimates the normal of o at p by forward differences.
// It is the fallback for objects without an analytic normal.
func NormalFromObject(o Object, p v3.Vec) v3.Vec {
	center := o.Value(p, AlwaysPrecise)
	dx := o.Value(p.Add(v3.Vec{X: normalEpsilon}), AlwaysPrecise) - center
	dy := o.Value(p.Add(v3.Vec{Y: normalEpsilon}), AlwaysPrecise) - center
	dz := o.Value(p.Add(v3.Vec{Z: normalEpsilon}), AlwaysPrecise) - center
	return normalize(v3.Vec{X: dx, Y: dy, Z: dz})
}

// Clone returns a handle equivalent to o. Objects are never mutated after
// construction, so the subtree is shared rather than copied.
func Clone(o Object) Object {
	return o
}

// normalize returns v scaled to unit length, or v itself when it has no
// length to scale.
func normalize(v v3.Vec) v3.Vec {
	l := v.Length()
	if l == 0 || math.IsNaN(l) {
		return v
	}
	return v.DivScalar(l)
}

func translateDefault(o Object, v v3.Vec) Object {
	return identityTransformer(o).Translate(v)
}

func rotateDefault(o Object, r v3.Vec) Object {
	return identityTransformer(o).Rotate(r)
}

func scaleDefault(o Object, s v3.Vec) Object {
	return identityTransformer(o).Scale(s)
}
