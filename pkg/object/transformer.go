package object

import (
	"fmt"
	"math"

	"github.com/chazu/implicad/pkg/bbox"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// AffineTransformer places its child in world space with an invertible
// affine transform. It stores the world-to-object matrix, so evaluation
// maps the query point into the child's space. Further transforms fold
// into the matrix instead of stacking new wrappers.
type AffineTransformer struct {
	obj Object
	// world to object
	m sdf.M44
	// columns of the linear part of m, used to map normals back
	lin [3]v3.Vec
	// smallest scale factor applied so far; rescales distances and slack
	scaleMin float64
	bbox     bbox.Box
}

// NewAffineTransformer wraps o with the world-to-object transform m.
// It panics if m is not invertible: such a transform cannot describe a
// solid and indicates a broken model.
func NewAffineTransformer(o Object, m sdf.M44) *AffineTransformer {
	return newTransformer(o, m, 1)
}

func identityTransformer(o Object) *AffineTransformer {
	return newTransformer(o, sdf.Identity3d(), 1)
}

func newTransformer(o Object, m sdf.M44, scaleMin float64) *AffineTransformer {
	det := m.Determinant()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		panic(fmt.Sprintf("object: transform is not invertible (det=%g)", det))
	}
	origin := m.MulPosition(v3.Vec{})
	return &AffineTransformer{
		obj: o,
		m:   m,
		lin: [3]v3.Vec{
			m.MulPosition(v3.Vec{X: 1}).Sub(origin),
			m.MulPosition(v3.Vec{Y: 1}).Sub(origin),
			m.MulPosition(v3.Vec{Z: 1}).Sub(origin),
		},
		scaleMin: scaleMin,
		bbox:     o.BBox().Transform(m.Inverse()),
	}
}

// Matrix returns the world-to-object transform.
func (t *AffineTransformer) Matrix() sdf.M44 { return t.m }

func (t *AffineTransformer) Value(p v3.Vec, slack float64) float64 {
	approx := t.bbox.Value(p)
	if approx <= slack {
		return t.obj.Value(t.m.MulPosition(p), slack/t.scaleMin) * t.scaleMin
	}
	return approx
}

// Normal maps the child's normal back to world space with the transpose
// of the linear part, which is the gradient of the composed field.
func (t *AffineTransformer) Normal(p v3.Vec) v3.Vec {
	n := t.obj.Normal(t.m.MulPosition(p))
	return normalize(v3.Vec{
		X: t.lin[0].Dot(n),
		Y: t.lin[1].Dot(n),
		Z: t.lin[2].Dot(n),
	})
}

func (t *AffineTransformer) BBox() bbox.Box { return t.bbox }

func (t *AffineTransformer) SetParameters(p Params) Object {
	tt := *t
	tt.obj = t.obj.SetParameters(p)
	return &tt
}

func (t *AffineTransformer) Translate(v v3.Vec) Object {
	return newTransformer(t.obj, t.m.Mul(sdf.Translate3d(v.Neg())), t.scaleMin)
}

func (t *AffineTransformer) Rotate(r v3.Vec) Object {
	return newTransformer(t.obj, t.m.Mul(EulerRotation(r).Inverse()), t.scaleMin)
}

// Scale scales by s along each axis. Distances are rescaled by the
// smallest factor, which keeps them lower bounds under non-uniform scale.
func (t *AffineTransformer) Scale(s v3.Vec) Object {
	inv := v3.Vec{X: 1 / s.X, Y: 1 / s.Y, Z: 1 / s.Z}
	smin := math.Min(math.Abs(s.X), math.Min(math.Abs(s.Y), math.Abs(s.Z)))
	return newTransformer(t.obj, t.m.Mul(sdf.Scale3d(inv)), t.scaleMin*smin)
}

func (t *AffineTransformer) Describe() Description {
	return Description{
		Kind:     KindTransformer,
		Attrs:    map[string]float64{"scale_min": t.scaleMin},
		Children: []Object{t.obj},
	}
}

// EulerRotation returns the rotation by r.X about X, then r.Y about Y,
// then r.Z about Z.
func EulerRotation(r v3.Vec) sdf.M44 {
	return sdf.RotateZ(r.Z).Mul(sdf.RotateY(r.Y)).Mul(sdf.RotateX(r.X))
}
