package object

import (
	"math"

	"github.com/chazu/implicad/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Cylinder is an infinite cylinder around the Z axis. Clip it with a
// SlabZ to give it a length.
type Cylinder struct {
	radius float64
	bbox   bbox.Box
}

// NewCylinder returns an infinite cylinder of radius r.
func NewCylinder(r float64) *Cylinder {
	return &Cylinder{
		radius: r,
		bbox:   bbox.New(v3.Vec{X: -r, Y: -r, Z: -Infinity}, v3.Vec{X: r, Y: r, Z: Infinity}),
	}
}

func (c *Cylinder) Value(p v3.Vec, slack float64) float64 {
	approx := c.bbox.Value(p)
	if approx <= slack {
		return math.Hypot(p.X, p.Y) - c.radius
	}
	return approx
}

func (c *Cylinder) Normal(p v3.Vec) v3.Vec {
	return normalize(v3.Vec{X: p.X, Y: p.Y})
}

func (c *Cylinder) BBox() bbox.Box              { return c.bbox }
func (c *Cylinder) SetParameters(Params) Object { return c }
func (c *Cylinder) Translate(v v3.Vec) Object   { return translateDefault(c, v) }
func (c *Cylinder) Rotate(r v3.Vec) Object      { return rotateDefault(c, r) }
func (c *Cylinder) Scale(s v3.Vec) Object       { return scaleDefault(c, s) }

func (c *Cylinder) Describe() Description {
	return Description{Kind: KindCylinder, Attrs: map[string]float64{"radius": c.radius}}
}

// Cone is an infinite double cone around the Z axis. Its radius at height
// z is |z-offset|*slope. The default bounding box is unbounded; callers
// that know the useful extent replace it with WithBBox.
type Cone struct {
	slope  float64
	offset float64
	// distance scale from radial gap to true distance
	cos  float64
	bbox bbox.Box
}

// NewCone returns an infinite cone with the given slope whose apex sits
// at z=offset.
func NewCone(slope, offset float64) *Cone {
	return &Cone{
		slope:  slope,
		offset: offset,
		cos:    1 / math.Sqrt(1+slope*slope),
		bbox:   bbox.Infinite(),
	}
}

// WithBBox returns a copy of the cone bounded by b.
func (c *Cone) WithBBox(b bbox.Box) *Cone {
	cc := *c
	cc.bbox = b
	return &cc
}

func (c *Cone) Value(p v3.Vec, slack float64) float64 {
	approx := c.bbox.Value(p)
	if approx <= slack {
		radius := math.Abs(p.Z-c.offset) * c.slope
		return (math.Hypot(p.X, p.Y) - radius) * c.cos
	}
	return approx
}

func (c *Cone) Normal(p v3.Vec) v3.Vec {
	r := math.Hypot(p.X, p.Y)
	if r == 0 {
		return NormalFromObject(c, p)
	}
	dz := -c.slope
	if p.Z-c.offset < 0 {
		dz = c.slope
	}
	return normalize(v3.Vec{X: p.X / r, Y: p.Y / r, Z: dz})
}

func (c *Cone) BBox() bbox.Box              { return c.bbox }
func (c *Cone) SetParameters(Params) Object { return c }
func (c *Cone) Translate(v v3.Vec) Object   { return translateDefault(c, v) }
func (c *Cone) Rotate(r v3.Vec) Object      { return rotateDefault(c, r) }
func (c *Cone) Scale(s v3.Vec) Object       { return scaleDefault(c, s) }

func (c *Cone) Describe() Description {
	return Description{Kind: KindCone, Attrs: map[string]float64{"slope": c.slope, "offset": c.offset}}
}
