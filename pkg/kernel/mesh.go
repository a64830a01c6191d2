package kernel

import (
	"fmt"

	"github.com/chazu/implicad/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/fogleman/fauxgl"
)

// Mesh is a triangle mesh.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name"`     // script or file the mesh came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// AddVertex appends a vertex with normal n and returns its index.
func (m *Mesh) AddVertex(p, n v3.Vec) uint32 {
	i := uint32(m.VertexCount())
	m.Vertices = append(m.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
	m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
	return i
}

// AddFace appends a triangle over existing vertices.
func (m *Mesh) AddFace(a, b, c uint32) {
	m.Indices = append(m.Indices, a, b, c)
}

// AddTriangle appends a flat-shaded triangle with its own three vertices.
func (m *Mesh) AddTriangle(a, b, c v3.Vec) {
	n := b.Sub(a).Cross(c.Sub(a))
	if l := n.Length(); l > 0 {
		n = n.DivScalar(l)
	}
	m.AddFace(m.AddVertex(a, n), m.AddVertex(b, n), m.AddVertex(c, n))
}

// Vertex returns vertex i.
func (m *Mesh) Vertex(i uint32) v3.Vec {
	v := m.Vertices[3*i : 3*i+3]
	return v3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

// Bounds returns the box spanned by the vertices. An empty mesh has an
// empty box.
func (m *Mesh) Bounds() bbox.Box {
	b := bbox.Empty()
	for i := 0; i < m.VertexCount(); i++ {
		v := m.Vertex(uint32(i))
		b.Min = b.Min.Min(v)
		b.Max = b.Max.Max(v)
	}
	return b
}

// Fauxgl converts the mesh for fauxgl, which handles file output.
func (m *Mesh) Fauxgl() *fauxgl.Mesh {
	tris := make([]*fauxgl.Triangle, 0, m.TriangleCount())
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a, b, c := m.Vertex(m.Indices[i]), m.Vertex(m.Indices[i+1]), m.Vertex(m.Indices[i+2])
		tris = append(tris, fauxgl.NewTriangleForPoints(toFauxgl(a), toFauxgl(b), toFauxgl(c)))
	}
	return fauxgl.NewTriangleMesh(tris)
}

func toFauxgl(v v3.Vec) fauxgl.Vector {
	return fauxgl.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// SaveSTL writes the mesh as binary STL.
func (m *Mesh) SaveSTL(path string) error {
	if m.IsEmpty() {
		return fmt.Errorf("kernel: save %q: mesh is empty", path)
	}
	if err := m.Fauxgl().SaveSTL(path); err != nil {
		return fmt.Errorf("kernel: save %q: %w", path, err)
	}
	return nil
}
