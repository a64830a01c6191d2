package object

import (
	"math"

	"github.com/chazu/implicad/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Axis selects a coordinate axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return "unknown"
}

func component(v v3.Vec, a Axis) float64 {
	switch a {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	}
	return v.Z
}

func unit(a Axis, s float64) v3.Vec {
	switch a {
	case AxisX:
		return v3.Vec{X: s}
	case AxisY:
		return v3.Vec{Y: s}
	}
	return v3.Vec{Z: s}
}

// Slab is the region between two planes perpendicular to an axis,
// centered at the origin.
type Slab struct {
	axis Axis
	half float64
	bbox bbox.Box
}

// NewSlab returns a slab of the given thickness across axis a.
func NewSlab(a Axis, thickness float64) *Slab {
	half := thickness / 2
	b := bbox.Infinite()
	switch a {
	case AxisX:
		b.Min.X, b.Max.X = -half, half
	case AxisY:
		b.Min.Y, b.Max.Y = -half, half
	case AxisZ:
		b.Min.Z, b.Max.Z = -half, half
	}
	return &Slab{axis: a, half: half, bbox: b}
}

// NewSlabX returns a slab of thickness t across X.
func NewSlabX(t float64) *Slab { return NewSlab(AxisX, t) }

// NewSlabY returns a slab of thickness t across Y.
func NewSlabY(t float64) *Slab { return NewSlab(AxisY, t) }

// NewSlabZ returns a slab of thickness t across Z.
func NewSlabZ(t float64) *Slab { return NewSlab(AxisZ, t) }

func (s *Slab) Value(p v3.Vec, slack float64) float64 {
	approx := s.bbox.Value(p)
	if approx <= slack {
		return math.Abs(component(p, s.axis)) - s.half
	}
	return approx
}

func (s *Slab) Normal(p v3.Vec) v3.Vec {
	if component(p, s.axis) < 0 {
		return unit(s.axis, -1)
	}
	return unit(s.axis, 1)
}

func (s *Slab) BBox() bbox.Box              { return s.bbox }
func (s *Slab) SetParameters(Params) Object { return s }
func (s *Slab) Translate(v v3.Vec) Object   { return translateDefault(s, v) }
func (s *Slab) Rotate(r v3.Vec) Object      { return rotateDefault(s, r) }
func (s *Slab) Scale(sc v3.Vec) Object      { return scaleDefault(s, sc) }

func (s *Slab) Describe() Description {
	return Description{
		Kind:  KindSlab,
		Attrs: map[string]float64{"axis": float64(s.axis), "thickness": 2 * s.half},
	}
}
