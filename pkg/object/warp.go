package object

import (
	"math"

	"github.com/chazu/implicad/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// minWarpScale bounds how far a warp may shrink returned distances.
const minWarpScale = 0.05

// Bender wraps its child around the Z axis. The child's X axis becomes
// the arc direction and its Y coordinate the radius, so a length of width
// along X closes a full turn.
type Bender struct {
	obj    Object
	width  float64
	radius float64 // width / 2π, the radius at which arcs keep their length
	bbox   bbox.Box
}

// NewBender bends o so that width along X spans a full circle.
func NewBender(o Object, width float64) *Bender {
	cb := o.BBox()
	rmax := math.Max(math.Abs(cb.Min.Y), math.Abs(cb.Max.Y))
	return &Bender{
		obj:    o,
		width:  width,
		radius: width / (2 * math.Pi),
		bbox:   bbox.New(v3.Vec{X: -rmax, Y: -rmax, Z: cb.Min.Z}, v3.Vec{X: rmax, Y: rmax, Z: cb.Max.Z}),
	}
}

// unbend maps a world point into the child's straight space.
func (b *Bender) unbend(p v3.Vec) (v3.Vec, float64) {
	r := math.Hypot(p.X, p.Y)
	angle := math.Atan2(p.X, p.Y)
	return v3.Vec{X: angle * b.radius, Y: r, Z: p.Z}, r
}

func (b *Bender) Value(p v3.Vec, slack float64) float64 {
	approx := b.bbox.Value(p)
	if approx > slack {
		return approx
	}
	q, r := b.unbend(p)
	// Arcs inside the neutral radius are compressed; shrink the distance
	// by the local compression so it stays a lower bound.
	scale := math.Max(minWarpScale, math.Min(1, r/math.Abs(b.radius)))
	return b.obj.Value(q, slack/scale) * scale
}

func (b *Bender) Normal(p v3.Vec) v3.Vec { return NormalFromObject(b, p) }
func (b *Bender) BBox() bbox.Box         { return b.bbox }

func (b *Bender) SetParameters(p Params) Object {
	bb := *b
	bb.obj = b.obj.SetParameters(p)
	return &bb
}

func (b *Bender) Translate(v v3.Vec) Object { return translateDefault(b, v) }
func (b *Bender) Rotate(r v3.Vec) Object    { return rotateDefault(b, r) }
func (b *Bender) Scale(s v3.Vec) Object     { return scaleDefault(b, s) }

func (b *Bender) Describe() Description {
	return Description{Kind: KindBender, Attrs: map[string]float64{"width": b.width}, Children: []Object{b.obj}}
}

// Twister rotates each Z layer of its child by an angle proportional to
// its height, completing a full turn every height units.
type Twister struct {
	obj    Object
	height float64
	rate   float64 // radians per unit of Z
	scale  float64
	bbox   bbox.Box
}

// NewTwister twists o one full turn per height along Z.
func NewTwister(o Object, height float64) *Twister {
	cb := o.BBox()
	rmax := 0.0
	for _, c := range cb.Corners() {
		rmax = math.Max(rmax, math.Hypot(c.X, c.Y))
	}
	rate := 2 * math.Pi / height
	return &Twister{
		obj:    o,
		height: height,
		rate:   rate,
		// The twist adds a tangential slope of r*rate at radius r.
		scale: 1 / math.Sqrt(1+(rmax*rate)*(rmax*rate)),
		bbox:  bbox.New(v3.Vec{X: -rmax, Y: -rmax, Z: cb.Min.Z}, v3.Vec{X: rmax, Y: rmax, Z: cb.Max.Z}),
	}
}

func (t *Twister) untwist(p v3.Vec) v3.Vec {
	sin, cos := math.Sincos(-p.Z * t.rate)
	return v3.Vec{X: p.X*cos - p.Y*sin, Y: p.X*sin + p.Y*cos, Z: p.Z}
}

func (t *Twister) Value(p v3.Vec, slack float64) float64 {
	approx := t.bbox.Value(p)
	if approx > slack {
		return approx
	}
	return t.obj.Value(t.untwist(p), slack/t.scale) * t.scale
}

func (t *Twister) Normal(p v3.Vec) v3.Vec { return NormalFromObject(t, p) }
func (t *Twister) BBox() bbox.Box         { return t.bbox }

func (t *Twister) SetParameters(p Params) Object {
	tt := *t
	tt.obj = t.obj.SetParameters(p)
	return &tt
}

func (t *Twister) Translate(v v3.Vec) Object { return translateDefault(t, v) }
func (t *Twister) Rotate(r v3.Vec) Object    { return rotateDefault(t, r) }
func (t *Twister) Scale(s v3.Vec) Object     { return scaleDefault(t, s) }

func (t *Twister) Describe() Description {
	return Description{Kind: KindTwister, Attrs: map[string]float64{"height": t.height}, Children: []Object{t.obj}}
}
