// Package tessellate turns implicit objects into triangle meshes.
//
// The main backend is dual contouring on a uniform grid: every cell that
// the surface crosses gets one vertex, placed by solving the quadratic
// error function of the surface samples on its edges, and every grid
// edge with a sign change emits a quad joining the four cells around it.
// Marching cubes through sdfx is available as an alternative backend.
package tessellate

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/chazu/implicad/pkg/bbox"
	"github.com/chazu/implicad/pkg/kernel"
	"github.com/chazu/implicad/pkg/kernel/sdfx"
	"github.com/chazu/implicad/pkg/logging"
	"github.com/chazu/implicad/pkg/object"
	"github.com/chazu/implicad/pkg/qef"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"
)

// Backend names accepted by ForName.
const (
	BackendDualContouring = "dual-contouring"
	BackendMarchingCubes  = "marching-cubes"
)

// crossingSteps is the number of bisection steps used to locate the
// surface on a grid edge before the final linear interpolation.
const crossingSteps = 12

// gridPadding is the margin around the bounding box, in cells.
const gridPadding = 1.1

// Config tunes the mesher.
type Config struct {
	// Backend is BackendDualContouring or BackendMarchingCubes.
	Backend string `yaml:"backend"`
	// Resolution is the number of cells along the longest axis.
	Resolution int `yaml:"resolution"`
	// SimplifyTolerance enables vertex clustering: a 2x2x2 block of cells
	// shares one vertex when the merged error stays at or below it. Zero
	// disables clustering.
	SimplifyTolerance float64 `yaml:"simplify_tolerance"`
	// Workers is the number of grid layers processed concurrently. Zero
	// means one per CPU.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the default mesher configuration.
func DefaultConfig() Config {
	return Config{Backend: BackendDualContouring, Resolution: 64}
}

// ForName returns the mesher selected by cfg.Backend.
func ForName(cfg Config) (kernel.Mesher, error) {
	switch cfg.Backend {
	case "", BackendDualContouring:
		return New(cfg), nil
	case BackendMarchingCubes:
		return sdfx.New(cfg.Resolution), nil
	default:
		return nil, fmt.Errorf("tessellate: unknown backend %q", cfg.Backend)
	}
}

// MarchingCubes meshes o with sdfx marching cubes at the given resolution.
func MarchingCubes(o object.Object, cells int) (*kernel.Mesh, error) {
	return sdfx.New(cells).ToMesh(o)
}

// DualContouring implements kernel.Mesher.
type DualContouring struct {
	cfg Config
}

var _ kernel.Mesher = (*DualContouring)(nil)

// New returns a dual contouring mesher.
func New(cfg Config) *DualContouring {
	if cfg.Resolution <= 0 {
		cfg.Resolution = DefaultConfig().Resolution
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &DualContouring{cfg: cfg}
}

func (d *DualContouring) Name() string { return BackendDualContouring }

// DualContour meshes o with dual contouring.
func DualContour(o object.Object, cfg Config) (*kernel.Mesh, error) {
	return New(cfg).ToMesh(o)
}

// grid is the sampling lattice over the object's padded bounding box.
type grid struct {
	obj    object.Object
	origin v3.Vec
	step   float64
	slack  float64
	// cell counts; corners are one more per axis
	nx, ny, nz int
	values     []float64
}

func (g *grid) corner(i, j, k int) int {
	return i + (g.nx+1)*(j+(g.ny+1)*k)
}

func (g *grid) cell(i, j, k int) int {
	return i + g.nx*(j+g.ny*k)
}

func (g *grid) position(i, j, k int) v3.Vec {
	return g.origin.Add(v3.Vec{X: float64(i), Y: float64(j), Z: float64(k)}.MulScalar(g.step))
}

func (g *grid) inside(i, j, k int) bool {
	return g.values[g.corner(i, j, k)] < 0
}

// ToMesh converts an object to a triangle mesh.
func (d *DualContouring) ToMesh(o object.Object) (*kernel.Mesh, error) {
	if err := kernel.CheckBounded(o); err != nil {
		return nil, err
	}
	start := time.Now()
	g := newGrid(o, d.cfg.Resolution)

	if err := d.sample(g); err != nil {
		return nil, err
	}
	qefs, err := d.solveCells(g)
	if err != nil {
		return nil, err
	}
	if d.cfg.SimplifyTolerance > 0 {
		cluster(g, qefs, d.cfg.SimplifyTolerance)
	}
	mesh := contour(g, qefs)

	logging.Logger().Debug("tessellate: dual contouring",
		"grid", fmt.Sprintf("%dx%dx%d", g.nx, g.ny, g.nz),
		"vertices", mesh.VertexCount(),
		"triangles", mesh.TriangleCount(),
		"elapsed", time.Since(start))
	return mesh, nil
}

func newGrid(o object.Object, resolution int) *grid {
	b := o.BBox()
	size := b.Size()
	step := math.Max(size.X, math.Max(size.Y, size.Z)) / float64(resolution)
	if step <= 0 {
		step = 1
	}
	// Padding keeps the outer corners outside the surface. The fractional
	// cell moves faces lying on the bounding box off the grid planes.
	b = b.Dilate(gridPadding * step)
	size = b.Size()
	g := &grid{
		obj:    o,
		origin: b.Min,
		step:   step,
		slack:  2 * step,
		nx:     int(math.Ceil(size.X / step)),
		ny:     int(math.Ceil(size.Y / step)),
		nz:     int(math.Ceil(size.Z / step)),
	}
	g.values = make([]float64, (g.nx+1)*(g.ny+1)*(g.nz+1))
	return g
}

// sample evaluates the object at every grid corner, one Z layer per task.
func (d *DualContouring) sample(g *grid) error {
	var eg errgroup.Group
	eg.SetLimit(d.cfg.Workers)
	for k := 0; k <= g.nz; k++ {
		eg.Go(func() error {
			for j := 0; j <= g.ny; j++ {
				for i := 0; i <= g.nx; i++ {
					g.values[g.corner(i, j, k)] = g.obj.Value(g.position(i, j, k), g.slack)
				}
			}
			return nil
		})
	}
	return eg.Wait()
}

// cellEdges lists the 12 edges of a cell as pairs of corner offsets.
var cellEdges = [12][2][3]int{
	{{0, 0, 0}, {1, 0, 0}}, {{0, 1, 0}, {1, 1, 0}}, {{0, 0, 1}, {1, 0, 1}}, {{0, 1, 1}, {1, 1, 1}},
	{{0, 0, 0}, {0, 1, 0}}, {{1, 0, 0}, {1, 1, 0}}, {{0, 0, 1}, {0, 1, 1}}, {{1, 0, 1}, {1, 1, 1}},
	{{0, 0, 0}, {0, 0, 1}}, {{1, 0, 0}, {1, 0, 1}}, {{0, 1, 0}, {0, 1, 1}}, {{1, 1, 0}, {1, 1, 1}},
}

// solveCells places a vertex in every cell the surface crosses. The
// result holds nil for cells without a crossing.
func (d *DualContouring) solveCells(g *grid) ([]*qef.Qef, error) {
	qefs := make([]*qef.Qef, g.nx*g.ny*g.nz)
	var eg errgroup.Group
	eg.SetLimit(d.cfg.Workers)
	for k := 0; k < g.nz; k++ {
		eg.Go(func() error {
			var planes []qef.Plane
			for j := 0; j < g.ny; j++ {
				for i := 0; i < g.nx; i++ {
					planes = planes[:0]
					for _, e := range cellEdges {
						a, b := e[0], e[1]
						ai, aj, ak := i+a[0], j+a[1], k+a[2]
						bi, bj, bk := i+b[0], j+b[1], k+b[2]
						if g.inside(ai, aj, ak) == g.inside(bi, bj, bk) {
							continue
						}
						p := g.crossing(
							g.position(ai, aj, ak), g.values[g.corner(ai, aj, ak)],
							g.position(bi, bj, bk), g.values[g.corner(bi, bj, bk)],
						)
						planes = append(planes, qef.Plane{P: p, N: g.obj.Normal(p)})
					}
					if len(planes) == 0 {
						continue
					}
					cell := bbox.New(g.position(i, j, k), g.position(i+1, j+1, k+1))
					q := qef.New(planes, cell)
					q.Solve()
					qefs[g.cell(i, j, k)] = q
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return qefs, nil
}

// crossing locates the surface between a and b, whose values differ in
// sign, by bisection followed by linear interpolation.
func (g *grid) crossing(a v3.Vec, va float64, b v3.Vec, vb float64) v3.Vec {
	for n := 0; n < crossingSteps; n++ {
		m := a.Add(b).MulScalar(0.5)
		vm := g.obj.Value(m, g.slack)
		if (vm < 0) == (va < 0) {
			a, va = m, vm
		} else {
			b, vb = m, vm
		}
	}
	t := 0.5
	if va != vb {
		t = math.Max(0, math.Min(1, va/(va-vb)))
	}
	return a.Add(b.Sub(a).MulScalar(t))
}

// cluster merges the cells of each 2x2x2 block into one vertex when the
// merged error is within tol. Merged cells share a single Qef.
func cluster(g *grid, qefs []*qef.Qef, tol float64) {
	for k := 0; k < g.nz; k += 2 {
		for j := 0; j < g.ny; j += 2 {
			for i := 0; i < g.nx; i += 2 {
				var members []int
				merged := qef.New(nil, bbox.Empty())
				for dk := 0; dk < 2 && k+dk < g.nz; dk++ {
					for dj := 0; dj < 2 && j+dj < g.ny; dj++ {
						for di := 0; di < 2 && i+di < g.nx; di++ {
							c := g.cell(i+di, j+dj, k+dk)
							if qefs[c] == nil {
								continue
							}
							members = append(members, c)
							merged.Merge(qefs[c])
						}
					}
				}
				if len(members) < 2 {
					continue
				}
				merged.Solve()
				if merged.Error > tol {
					continue
				}
				for _, c := range members {
					qefs[c] = merged
				}
			}
		}
	}
}

// contour emits a quad for every grid edge with a sign change, joining
// the vertices of the four cells around it. Quads face from inside to
// outside.
func contour(g *grid, qefs []*qef.Qef) *kernel.Mesh {
	mesh := &kernel.Mesh{}
	index := make(map[*qef.Qef]uint32)
	vertex := func(c int) (uint32, bool) {
		q := qefs[c]
		if q == nil {
			return 0, false
		}
		if v, ok := index[q]; ok {
			return v, true
		}
		v := mesh.AddVertex(q.Solution, g.obj.Normal(q.Solution))
		index[q] = v
		return v, true
	}
	quad := func(lowInside bool, cells [4]int) {
		var v [4]uint32
		for n, c := range cells {
			var ok bool
			if v[n], ok = vertex(c); !ok {
				return
			}
		}
		if !lowInside {
			v[1], v[3] = v[3], v[1]
		}
		addTriangle(mesh, v[0], v[1], v[2])
		addTriangle(mesh, v[0], v[2], v[3])
	}

	for k := 0; k <= g.nz; k++ {
		for j := 0; j <= g.ny; j++ {
			for i := 0; i <= g.nx; i++ {
				in := g.inside(i, j, k)
				// Edge along X, cells around it counter-clockwise seen from +X.
				if i < g.nx && j > 0 && j < g.ny && k > 0 && k < g.nz && in != g.inside(i+1, j, k) {
					quad(in, [4]int{
						g.cell(i, j-1, k-1), g.cell(i, j, k-1), g.cell(i, j, k), g.cell(i, j-1, k),
					})
				}
				// Edge along Y, seen from +Y.
				if j < g.ny && i > 0 && i < g.nx && k > 0 && k < g.nz && in != g.inside(i, j+1, k) {
					quad(in, [4]int{
						g.cell(i-1, j, k-1), g.cell(i-1, j, k), g.cell(i, j, k), g.cell(i, j, k-1),
					})
				}
				// Edge along Z, seen from +Z.
				if k < g.nz && i > 0 && i < g.nx && j > 0 && j < g.ny && in != g.inside(i, j, k+1) {
					quad(in, [4]int{
						g.cell(i-1, j-1, k), g.cell(i, j-1, k), g.cell(i, j, k), g.cell(i-1, j, k),
					})
				}
			}
		}
	}
	return mesh
}

// addTriangle appends a face unless clustering collapsed it.
func addTriangle(m *kernel.Mesh, a, b, c uint32) {
	if a == b || b == c || a == c {
		return
	}
	m.AddFace(a, b, c)
}
