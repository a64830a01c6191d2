package object

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/implicad/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/fogleman/fauxgl"
)

// ErrEmptyMesh is returned when a mesh has no triangles.
var ErrEmptyMesh = errors.New("object: mesh has no triangles")

// Triangle is a mesh face.
type Triangle [3]v3.Vec

// Mesh is a closed triangulated surface used as a solid. Distances are
// exact near the surface; the sign comes from the generalized winding
// number, so the face orientation does not matter. Evaluation is linear
// in the triangle count.
type Mesh struct {
	tris []Triangle
	bbox bbox.Box
}

// NewMesh returns a solid bounded by tris.
func NewMesh(tris []Triangle) (*Mesh, error) {
	if len(tris) == 0 {
		return nil, ErrEmptyMesh
	}
	b := bbox.Empty()
	for _, t := range tris {
		for _, v := range t {
			b.Min = b.Min.Min(v)
			b.Max = b.Max.Max(v)
		}
	}
	return &Mesh{tris: tris, bbox: b}, nil
}

// LoadMesh reads a triangulated surface file (STL, OBJ, PLY or 3DS).
func LoadMesh(path string) (*Mesh, error) {
	fm, err := fauxgl.LoadMesh(path)
	if err != nil {
		return nil, fmt.Errorf("load mesh %q: %w", path, err)
	}
	tris := make([]Triangle, 0, len(fm.Triangles))
	for _, t := range fm.Triangles {
		tris = append(tris, Triangle{fromFauxgl(t.V1.Position), fromFauxgl(t.V2.Position), fromFauxgl(t.V3.Position)})
	}
	m, err := NewMesh(tris)
	if err != nil {
		return nil, fmt.Errorf("load mesh %q: %w", path, err)
	}
	return m, nil
}

func fromFauxgl(v fauxgl.Vector) v3.Vec {
	return v3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

// TriangleCount returns the number of faces.
func (m *Mesh) TriangleCount() int { return len(m.tris) }

func (m *Mesh) Value(p v3.Vec, slack float64) float64 {
	approx := m.bbox.Value(p)
	if approx > slack {
		return approx
	}
	d2 := math.Inf(1)
	winding := 0.0
	for _, t := range m.tris {
		c := closestPoint(t, p)
		d2 = math.Min(d2, c.Sub(p).Length2())
		winding += solidAngle(t, p)
	}
	d := math.Sqrt(d2)
	if math.Abs(winding) >= 2*math.Pi {
		return -d
	}
	return d
}

func (m *Mesh) Normal(p v3.Vec) v3.Vec { return NormalFromObject(m, p) }
func (m *Mesh) BBox() bbox.Box         { return m.bbox }

func (m *Mesh) SetParameters(Params) Object { return m }
func (m *Mesh) Translate(v v3.Vec) Object   { return translateDefault(m, v) }
func (m *Mesh) Rotate(r v3.Vec) Object      { return rotateDefault(m, r) }
func (m *Mesh) Scale(s v3.Vec) Object       { return scaleDefault(m, s) }

func (m *Mesh) Describe() Description {
	return Description{Kind: KindMesh, Attrs: map[string]float64{"triangles": float64(len(m.tris))}}
}

// solidAngle returns the signed solid angle subtended by t at p
// (Van Oosterom and Strackee). The sum over a closed surface is ±4π for
// interior points and 0 outside.
func solidAngle(t Triangle, p v3.Vec) float64 {
	a := t[0].Sub(p)
	b := t[1].Sub(p)
	c := t[2].Sub(p)
	la, lb, lc := a.Length(), b.Length(), c.Length()
	num := a.Dot(b.Cross(c))
	den := la*lb*lc + a.Dot(b)*lc + a.Dot(c)*lb + b.Dot(c)*la
	return 2 * math.Atan2(num, den)
}

// closestPoint returns the point of t nearest to p (Ericson, Real-Time
// Collision Detection, 5.1.5).
func closestPoint(t Triangle, p v3.Vec) v3.Vec {
	a, b, c := t[0], t[1], t[2]
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.MulScalar(d1 / (d1 - d3)))
	}
	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.MulScalar(d2 / (d2 - d6)))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return b.Add(c.Sub(b).MulScalar((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}
	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.MulScalar(v)).Add(ac.MulScalar(w))
}
