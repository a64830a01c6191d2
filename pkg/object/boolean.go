package object

import (
	"errors"
	"math"

	"github.com/chazu/implicad/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrNoObjects is returned when a boolean is built from an empty list.
var ErrNoObjects = errors.New("object: boolean needs at least one object")

// minSmoothRadius is the radius under which blends reduce to plain
// min/max.
const minSmoothRadius = 1e-12

// Union is the smooth union of its children.
type Union struct {
	objs   []Object
	r      float64
	params Params
	bbox   bbox.Box
}

// NewUnion returns the union of objs blended with radius r. A zero radius
// gives the plain union.
func NewUnion(objs []Object, r float64) (*Union, error) {
	if len(objs) == 0 {
		return nil, ErrNoObjects
	}
	return newUnion(objs, r, DefaultParams()), nil
}

func newUnion(objs []Object, r float64, p Params) *Union {
	b := bbox.Empty()
	for _, o := range objs {
		b = b.Union(o.BBox())
	}
	// The blend bulges outward by at most the effective radius.
	return &Union{objs: objs, r: r, params: p, bbox: b.Dilate(r * p.RMultiplier)}
}

func (u *Union) radius() float64 { return u.r * u.params.RMultiplier }

func (u *Union) Value(p v3.Vec, slack float64) float64 {
	approx := u.bbox.Value(p)
	if approx > slack {
		return approx
	}
	r := u.radius()
	vals := make([]float64, len(u.objs))
	for i, o := range u.objs {
		vals[i] = o.Value(p, slack+r)
	}
	return smoothMin(vals, r, u.params.FadeRange)
}

func (u *Union) Normal(p v3.Vec) v3.Vec {
	return blendNormal(u.objs, p, u.radius(), u.params.FadeRange, 1)
}

func (u *Union) BBox() bbox.Box { return u.bbox }

func (u *Union) SetParameters(p Params) Object {
	return newUnion(setChildren(u.objs, p), u.r, p)
}

func (u *Union) Translate(v v3.Vec) Object { return translateDefault(u, v) }
func (u *Union) Rotate(r v3.Vec) Object    { return rotateDefault(u, r) }
func (u *Union) Scale(s v3.Vec) Object     { return scaleDefault(u, s) }

func (u *Union) Describe() Description {
	return Description{
		Kind:     KindUnion,
		Attrs:    map[string]float64{"smooth": u.r, "fade_range": u.params.FadeRange, "r_multiplier": u.params.RMultiplier},
		Children: u.objs,
	}
}

// Intersection is the smooth intersection of its children.
type Intersection struct {
	objs   []Object
	r      float64
	params Params
	bbox   bbox.Box
}

// NewIntersection returns the intersection of objs blended with radius r.
func NewIntersection(objs []Object, r float64) (*Intersection, error) {
	if len(objs) == 0 {
		return nil, ErrNoObjects
	}
	return newIntersection(objs, r, DefaultParams()), nil
}

func newIntersection(objs []Object, r float64, p Params) *Intersection {
	b := objs[0].BBox()
	for _, o := range objs[1:] {
		b = b.Intersection(o.BBox())
	}
	return &Intersection{objs: objs, r: r, params: p, bbox: b}
}

// NewDifference returns base with every object in sub carved out.
func NewDifference(base Object, sub []Object, r float64) (*Intersection, error) {
	if base == nil {
		return nil, ErrNoObjects
	}
	objs := make([]Object, 0, len(sub)+1)
	objs = append(objs, base)
	for _, o := range sub {
		objs = append(objs, NewNegation(o))
	}
	return newIntersection(objs, r, DefaultParams()), nil
}

func (n *Intersection) radius() float64 { return n.r * n.params.RMultiplier }

func (n *Intersection) Value(p v3.Vec, slack float64) float64 {
	approx := n.bbox.Value(p)
	if approx > slack {
		return approx
	}
	r := n.radius()
	vals := make([]float64, len(n.objs))
	for i, o := range n.objs {
		vals[i] = -o.Value(p, slack+r)
	}
	return -smoothMin(vals, r, n.params.FadeRange)
}

func (n *Intersection) Normal(p v3.Vec) v3.Vec {
	return blendNormal(n.objs, p, n.radius(), n.params.FadeRange, -1)
}

func (n *Intersection) BBox() bbox.Box { return n.bbox }

func (n *Intersection) SetParameters(p Params) Object {
	return newIntersection(setChildren(n.objs, p), n.r, p)
}

func (n *Intersection) Translate(v v3.Vec) Object { return translateDefault(n, v) }
func (n *Intersection) Rotate(r v3.Vec) Object    { return rotateDefault(n, r) }
func (n *Intersection) Scale(s v3.Vec) Object     { return scaleDefault(n, s) }

func (n *Intersection) Describe() Description {
	return Description{
		Kind:     KindIntersection,
		Attrs:    map[string]float64{"smooth": n.r, "fade_range": n.params.FadeRange, "r_multiplier": n.params.RMultiplier},
		Children: n.objs,
	}
}

// Negation swaps inside and outside of its child.
type Negation struct {
	obj Object
}

// NewNegation returns the complement of o.
func NewNegation(o Object) *Negation {
	return &Negation{obj: o}
}

func (g *Negation) Value(p v3.Vec, slack float64) float64 {
	return -g.obj.Value(p, slack)
}

func (g *Negation) Normal(p v3.Vec) v3.Vec {
	return g.obj.Normal(p).Neg()
}

// BBox is unbounded: the complement of a finite solid fills all space.
func (g *Negation) BBox() bbox.Box { return bbox.Infinite() }

func (g *Negation) SetParameters(p Params) Object {
	return NewNegation(g.obj.SetParameters(p))
}

func (g *Negation) Translate(v v3.Vec) Object { return translateDefault(g, v) }
func (g *Negation) Rotate(r v3.Vec) Object    { return rotateDefault(g, r) }
func (g *Negation) Scale(s v3.Vec) Object     { return scaleDefault(g, s) }

func (g *Negation) Describe() Description {
	return Description{Kind: KindNegation, Children: []Object{g.obj}}
}

func setChildren(objs []Object, p Params) []Object {
	out := make([]Object, len(objs))
	for i, o := range objs {
		out[i] = o.SetParameters(p)
	}
	return out
}

// fadeWeight returns the blend weight of a candidate lying d above the
// minimum. Candidates at or beyond r are dropped; the last fade*r before
// the cut-off ramps linearly to zero so the blend stays continuous.
func fadeWeight(d, r, fade float64) float64 {
	if d >= r {
		return 0
	}
	start := r * (1 - fade)
	if fade <= 0 || d <= start {
		return 1
	}
	return (r - d) / (r - start)
}

// smoothMin blends the smallest values with an exponential soft minimum
// of radius r. Only values within r of the minimum take part. For r near
// zero it is the plain minimum.
func smoothMin(vals []float64, r, fade float64) float64 {
	min := math.Inf(1)
	for _, v := range vals {
		if v < min {
			min = v
		}
	}
	if r < minSmoothRadius || math.IsInf(min, 0) {
		return min
	}
	r4 := r / 4
	sum := 0.0
	for _, v := range vals {
		w := fadeWeight(v-min, r, fade)
		if w > 0 {
			sum += w * math.Exp(-(v-min)/r4)
		}
	}
	if sum <= 0 {
		return min
	}
	return min - r4*math.Log(sum)
}

// blendNormal combines the normals of the children that take part in the
// blend at p, weighted as smoothMin weights their values. sign is 1 for
// unions and -1 for intersections.
func blendNormal(objs []Object, p v3.Vec, r, fade, sign float64) v3.Vec {
	vals := make([]float64, len(objs))
	best := 0
	for i, o := range objs {
		vals[i] = sign * o.Value(p, r+AlwaysPrecise)
		if vals[i] < vals[best] {
			best = i
		}
	}
	if r < minSmoothRadius {
		return objs[best].Normal(p)
	}
	r4 := r / 4
	var n v3.Vec
	for i, o := range objs {
		d := vals[i] - vals[best]
		w := fadeWeight(d, r, fade)
		if w <= 0 {
			continue
		}
		n = n.Add(o.Normal(p).MulScalar(w * math.Exp(-d/r4)))
	}
	if n.Length() == 0 {
		return objs[best].Normal(p)
	}
	return normalize(n)
}
