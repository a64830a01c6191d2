// Package sdfx bridges implicit objects and the github.com/deadsy/sdfx
// SDF-based CAD library: objects are exposed as sdf.SDF3 for its marching
// cubes mesher, and sdfx solids are wrapped as objects.
package sdfx

import (
	"fmt"
	"math"
	"time"

	"github.com/chazu/implicad/pkg/bbox"
	"github.com/chazu/implicad/pkg/kernel"
	"github.com/chazu/implicad/pkg/logging"
	"github.com/chazu/implicad/pkg/object"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface checks.
var (
	_ kernel.Mesher = (*MarchingCubes)(nil)
	_ sdf.SDF3      = (*Solid)(nil)
	_ object.Object = (*Shape)(nil)
)

// DefaultMeshCells controls marching cubes tessellation resolution.
const DefaultMeshCells = 200

// Solid exposes an object as an sdf.SDF3. Values further than slack from
// the surface may be lower bounds, which keeps their sign.
type Solid struct {
	obj   object.Object
	slack float64
	box   sdf.Box3
}

// NewSolid wraps o, padding its box by pad on every side.
func NewSolid(o object.Object, slack, pad float64) *Solid {
	return &Solid{obj: o, slack: slack, box: o.BBox().Dilate(pad).Sdfx()}
}

// Evaluate returns the signed distance at p.
func (s *Solid) Evaluate(p v3.Vec) float64 {
	return s.obj.Value(p, s.slack)
}

// BoundingBox returns the padded bounding box.
func (s *Solid) BoundingBox() sdf.Box3 {
	return s.box
}

// MarchingCubes implements kernel.Mesher with sdfx's uniform marching
// cubes.
type MarchingCubes struct {
	// Cells is the number of cells along the longest axis.
	Cells int
}

// New returns a marching cubes mesher with the given resolution. A
// non-positive count uses DefaultMeshCells.
func New(cells int) *MarchingCubes {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	return &MarchingCubes{Cells: cells}
}

func (k *MarchingCubes) Name() string { return "marching-cubes" }

// ToMesh converts an object to a triangle mesh using marching cubes.
func (k *MarchingCubes) ToMesh(o object.Object) (*kernel.Mesh, error) {
	if err := kernel.CheckBounded(o); err != nil {
		return nil, err
	}
	start := time.Now()
	size := o.BBox().Size()
	cell := math.Max(size.X, math.Max(size.Y, size.Z)) / float64(k.Cells)
	// Exact values are only needed within a couple of cells of the surface.
	sdf3 := NewSolid(o, 2*cell, cell)

	renderer := render.NewMarchingCubesUniform(k.Cells)
	triangles := render.ToTriangles(sdf3, renderer)

	numTri := len(triangles)
	numVerts := numTri * 3

	mesh := &kernel.Mesh{
		Vertices: make([]float32, 0, numVerts*3),
		Normals:  make([]float32, 0, numVerts*3),
		Indices:  make([]uint32, 0, numVerts),
	}
	for _, tri := range triangles {
		// Face normal.
		n := tri.Normal()
		a := mesh.AddVertex(tri[0], n)
		b := mesh.AddVertex(tri[1], n)
		c := mesh.AddVertex(tri[2], n)
		mesh.AddFace(a, b, c)
	}
	logging.Logger().Debug("sdfx: marching cubes", "cells", k.Cells, "triangles", numTri, "elapsed", time.Since(start))
	return mesh, nil
}

// Shape wraps an sdfx solid as an object. Values are exact wherever the
// wrapped solid's are; normals come from finite differences.
type Shape struct {
	s    sdf.SDF3
	bbox bbox.Box
}

// FromSDF3 wraps s as an object.
func FromSDF3(s sdf.SDF3) *Shape {
	b := s.BoundingBox()
	return &Shape{s: s, bbox: bbox.New(b.Min, b.Max)}
}

func (s *Shape) Value(p v3.Vec, slack float64) float64 {
	approx := s.bbox.Value(p)
	if approx > slack {
		return approx
	}
	return s.s.Evaluate(p)
}

func (s *Shape) Normal(p v3.Vec) v3.Vec                    { return object.NormalFromObject(s, p) }
func (s *Shape) BBox() bbox.Box                            { return s.bbox }
func (s *Shape) SetParameters(object.Params) object.Object { return s }

func (s *Shape) Translate(v v3.Vec) object.Object {
	return object.NewAffineTransformer(s, sdf.Identity3d()).Translate(v)
}

func (s *Shape) Rotate(r v3.Vec) object.Object {
	return object.NewAffineTransformer(s, sdf.Identity3d()).Rotate(r)
}

func (s *Shape) Scale(sc v3.Vec) object.Object {
	return object.NewAffineTransformer(s, sdf.Identity3d()).Scale(sc)
}

func (s *Shape) Describe() object.Description {
	return object.Description{Kind: object.KindExternal}
}

// RoundedBox returns a centered box of the given size with edges rounded
// by round.
func RoundedBox(x, y, z, round float64) (*Shape, error) {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, round)
	if err != nil {
		return nil, fmt.Errorf("sdfx: box: %w", err)
	}
	return FromSDF3(s), nil
}

// RoundedCylinder returns a cylinder along Z, centered at the origin, with
// its rims rounded by round.
func RoundedCylinder(height, radius, round float64) (*Shape, error) {
	s, err := sdf.Cylinder3D(height, radius, round)
	if err != nil {
		return nil, fmt.Errorf("sdfx: cylinder: %w", err)
	}
	return FromSDF3(s), nil
}
