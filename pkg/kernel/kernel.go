// Package kernel defines the meshing backend interface. Implementations
// (sdfx marching cubes, dual contouring) turn an implicit object into a
// triangle mesh behind this interface, so the rest of the system can swap
// backends without change.
package kernel

import (
	"errors"

	"github.com/chazu/implicad/pkg/object"
)

// ErrUnbounded is returned when an object has no finite extent to mesh.
var ErrUnbounded = errors.New("kernel: object is unbounded")

// Mesher converts objects to triangle meshes.
type Mesher interface {
	// Name identifies the backend in logs and on the command line.
	Name() string
	// ToMesh samples o over its bounding box and returns its surface.
	ToMesh(o object.Object) (*Mesh, error)
}

// CheckBounded returns ErrUnbounded if o extends to the infinity used by
// unbounded primitives on any axis.
func CheckBounded(o object.Object) error {
	b := o.BBox()
	if b.IsEmpty() {
		return ErrUnbounded
	}
	limit := object.Infinity / 2
	for _, c := range []float64{b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z} {
		if c <= -limit || c >= limit {
			return ErrUnbounded
		}
	}
	return nil
}
