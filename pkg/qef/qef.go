// Package qef solves the quadratic error function used to place a
// dual-contouring vertex inside a cell.
//
// A Qef accumulates surface samples (planes) and finds the point that
// minimizes the sum of squared distances to them. Accumulators are plain
// sums, so solvers may be merged in any order when cells are coarsened.
// The solution is always kept inside the cell: when the least-squares
// point falls outside, or the system is singular, a deterministic
// bisection of the cell is used instead.
package qef

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/implicad/pkg/bbox"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/mat"
)

// searchEpsilon is the offset used to probe the error gradient during
// bisection.
const searchEpsilon = 1e-10

// searchFraction is the cell size, relative to the original, at which
// bisection stops.
const searchFraction = 1.0 / 100

// maxSearchSteps bounds the bisection loop. Halving a cell 64 times
// exhausts float64 precision long before the accuracy is reached.
const maxSearchSteps = 64

// Plane is a surface sample: a point on the surface and its unit normal.
type Plane struct {
	P v3.Vec
	N v3.Vec
}

// Qef accumulates planes and solves for the point closest to all of them.
type Qef struct {
	// Solution is the solved vertex. It is NaN until Solve is called.
	Solution v3.Vec
	// Error is the quadratic error at Solution.
	Error float64
	// Num is the number of accumulated planes.
	Num int

	// upper triangle of AᵀA: xx, xy, xz, yy, yz, zz
	ata  [6]float64
	atb  v3.Vec
	btb  float64
	sum  v3.Vec
	cell bbox.Box
}

// New returns a solver for planes, constrained to cell.
func New(planes []Plane, cell bbox.Box) *Qef {
	nan := math.NaN()
	q := &Qef{
		Solution: v3.Vec{X: nan, Y: nan, Z: nan},
		Error:    nan,
		Num:      len(planes),
		cell:     cell,
	}
	for _, p := range planes {
		n := p.N
		q.ata[0] += n.X * n.X
		q.ata[1] += n.X * n.Y
		q.ata[2] += n.X * n.Z
		q.ata[3] += n.Y * n.Y
		q.ata[4] += n.Y * n.Z
		q.ata[5] += n.Z * n.Z
		d := p.P.Dot(n)
		q.atb = q.atb.Add(n.MulScalar(d))
		q.btb += d * d
		q.sum = q.sum.Add(p.P)
	}
	return q
}

// Cell returns the cell the solution is constrained to.
func (q *Qef) Cell() bbox.Box { return q.cell }

// Mean returns the centroid of the accumulated sample points.
func (q *Qef) Mean() v3.Vec {
	if q.Num == 0 {
		return q.cell.Center()
	}
	return q.sum.DivScalar(float64(q.Num))
}

func (q *Qef) matrix() *mat.SymDense {
	m := q.ata
	return mat.NewSymDense(3, []float64{
		m[0], m[1], m[2],
		m[1], m[3], m[4],
		m[2], m[4], m[5],
	})
}

// Solve computes Solution and Error from the accumulated planes. It must
// be called again after Merge.
func (q *Qef) Solve() {
	ma := q.matrix()
	mean := q.Mean()

	nan := math.NaN()
	q.Solution = v3.Vec{X: nan, Y: nan, Z: nan}
	if inv, ok := invert(ma); ok {
		// Solving relative to the centroid keeps the system well conditioned
		// far from the origin.
		var shift, rhs, x mat.VecDense
		shift.MulVec(ma, vec(mean))
		rhs.SubVec(vec(q.atb), &shift)
		x.MulVec(inv, &rhs)
		q.Solution = fromVec(&x).Add(mean)
	}

	// NaN is never contained.
	if !q.cell.Contains(q.Solution) {
		q.Solution = q.search(ma)
	}
	q.Error = math.Max(0, q.errorAt(q.Solution, ma))
}

// search bisects the cell, narrowing each axis independently toward the
// side where the error decreases, and returns the final midpoint.
func (q *Qef) search(ma *mat.SymDense) v3.Vec {
	box := q.cell
	accuracy := box.Size().X * searchFraction
	for step := 0; ; step++ {
		mid := box.Center()
		if box.Max.X-box.Min.X <= accuracy || step == maxSearchSteps {
			return mid
		}
		midErr := q.errorAt(mid, ma)
		for axis := 0; axis < 3; axis++ {
			probe := mid
			setAxis(&probe, axis, axisOf(mid, axis)+searchEpsilon)
			if q.errorAt(probe, ma) < midErr {
				setAxis(&box.Min, axis, axisOf(mid, axis))
			} else {
				setAxis(&box.Max, axis, axisOf(mid, axis))
			}
		}
	}
}

func (q *Qef) errorAt(p v3.Vec, ma *mat.SymDense) float64 {
	pv := vec(p)
	return q.btb - 2*p.Dot(q.atb) + mat.Inner(pv, ma, pv)
}

// Merge adds the samples of other to q and grows the cell to cover both.
// Solution and Error are stale until the next Solve.
func (q *Qef) Merge(other *Qef) {
	for i := range q.ata {
		q.ata[i] += other.ata[i]
	}
	q.atb = q.atb.Add(other.atb)
	q.btb += other.btb
	q.sum = q.sum.Add(other.sum)
	q.Num += other.Num
	q.cell = q.cell.Union(other.cell)
}

func (q *Qef) String() string {
	return fmt.Sprintf("qef{num: %d, solution: %v, error: %g, cell: %v}", q.Num, q.Solution, q.Error, q.cell)
}

// invert returns the inverse of m, or false when m is singular.
func invert(m mat.Matrix) (*mat.Dense, bool) {
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, false
		}
	}
	for _, v := range inv.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	return &inv, true
}

func vec(v v3.Vec) *mat.VecDense {
	return mat.NewVecDense(3, []float64{v.X, v.Y, v.Z})
}

func fromVec(v *mat.VecDense) v3.Vec {
	return v3.Vec{X: v.AtVec(0), Y: v.AtVec(1), Z: v.AtVec(2)}
}

func axisOf(v v3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

func setAxis(v *v3.Vec, axis int, x float64) {
	switch axis {
	case 0:
		v.X = x
	case 1:
		v.Y = x
	default:
		v.Z = x
	}
}
