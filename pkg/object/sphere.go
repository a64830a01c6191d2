package object

import (
	"github.com/chazu/implicad/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Sphere is a sphere centered at the origin.
type Sphere struct {
	radius float64
	bbox   bbox.Box
}

// NewSphere returns a sphere of radius r.
func NewSphere(r float64) *Sphere {
	return &Sphere{
		radius: r,
		bbox:   bbox.New(v3.Vec{X: -r, Y: -r, Z: -r}, v3.Vec{X: r, Y: r, Z: r}),
	}
}

func (s *Sphere) Value(p v3.Vec, slack float64) float64 {
	approx := s.bbox.Value(p)
	if approx <= slack {
		return p.Length() - s.radius
	}
	return approx
}

func (s *Sphere) Normal(p v3.Vec) v3.Vec {
	return normalize(p)
}

func (s *Sphere) BBox() bbox.Box              { return s.bbox }
func (s *Sphere) SetParameters(Params) Object { return s }
func (s *Sphere) Translate(v v3.Vec) Object   { return translateDefault(s, v) }
func (s *Sphere) Rotate(r v3.Vec) Object      { return rotateDefault(s, r) }
func (s *Sphere) Scale(sc v3.Vec) Object      { return scaleDefault(s, sc) }

func (s *Sphere) Describe() Description {
	return Description{Kind: KindSphere, Attrs: map[string]float64{"radius": s.radius}}
}
