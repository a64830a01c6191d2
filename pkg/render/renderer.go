// Package render draws implicit objects by sphere tracing.
//
// The renderer holds one root object and a camera transform. Every pixel
// casts a ray from the camera and steps it forward by the distance the
// object reports until the ray hits the surface or leaves the scene.
// Frames are written as four bytes per pixel: iteration count, shade,
// shade, unused.
package render

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/chazu/implicad/pkg/logging"
	"github.com/chazu/implicad/pkg/object"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"
)

const (
	// epsilonFactor scales the hit threshold to the object width.
	epsilonFactor = 0.003
	// slackFactor scales the evaluation slack to the object width.
	slackFactor = 0.1
	// focalFactor is 36mm film behind a 50mm lens.
	focalFactor = 36.0 / 50.0
	// viewerDistance places the camera this many focal object widths away.
	viewerDistance = 3.0
)

// BytesPerPixel is the size of one pixel in a frame buffer.
const BytesPerPixel = 4

// ErrBufferSize is returned when a frame buffer does not hold exactly
// width*height pixels.
var ErrBufferSize = errors.New("render: buffer size does not match frame")

var defaultLight = v3.Vec{X: -2.0 / 3, Y: 2.0 / 3, Z: -1.0 / 3}

// Config tunes a Renderer.
type Config struct {
	// Workers is the number of rows traced concurrently. Zero means one
	// per CPU.
	Workers int `yaml:"workers"`
	// MaxIterations stops a ray that has not converged after this many
	// steps and treats it as a miss. Zero means no limit.
	MaxIterations int `yaml:"max_iterations"`
}

// DefaultConfig returns the configuration used by NewRenderer.
func DefaultConfig() Config {
	return Config{Workers: 0, MaxIterations: 1000}
}

// Renderer traces one object. It is safe for concurrent use; a frame in
// progress sees the object and camera as they were when it started.
type Renderer struct {
	cfg Config

	mu    sync.RWMutex
	obj   object.Object
	light v3.Vec
	trans sdf.M44
	scene scene
}

// scene holds the thresholds derived from the object extent.
type scene struct {
	width   float64
	epsilon float64
	maxval  float64
	slack   float64
}

// NewRenderer returns a renderer with no object.
func NewRenderer(cfg Config) *Renderer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Renderer{
		cfg:   cfg,
		light: defaultLight,
		trans: sdf.Identity3d(),
		scene: scene{epsilon: epsilonFactor, slack: slackFactor},
	}
}

// SetObject replaces the traced object. A nil object renders blank frames.
// Thresholds are rescaled to the new object's extent.
func (r *Renderer) SetObject(o object.Object) {
	s := newScene(o)
	r.mu.Lock()
	r.obj = o
	r.scene = s
	r.mu.Unlock()
	logging.Logger().Debug("render: object set", "width", s.width, "epsilon", s.epsilon)
}

// Object returns the traced object, or nil.
func (r *Renderer) Object() object.Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.obj
}

func newScene(o object.Object) scene {
	w := objectWidth(o)
	return scene{
		width:   w,
		epsilon: w * epsilonFactor,
		maxval:  w,
		slack:   w * slackFactor,
	}
}

// objectWidth is twice the largest absolute bbox coordinate, so a sphere
// of that diameter around the origin encloses the object.
func objectWidth(o object.Object) float64 {
	if o == nil {
		return 0
	}
	b := o.BBox()
	if b.IsEmpty() {
		return 0
	}
	m := 0.0
	for _, c := range []float64{b.Min.X, b.Max.X, b.Min.Y, b.Max.Y, b.Min.Z, b.Max.Z} {
		m = math.Max(m, math.Abs(c))
	}
	return 2 * m
}

// RotateFromScreen turns the camera by a screen-space drag: x turns about
// the vertical axis and y about the horizontal one, in radians.
func (r *Renderer) RotateFromScreen(x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trans = r.trans.Mul(object.EulerRotation(v3.Vec{X: y, Y: x}))
}

// TranslateFromScreen pans the camera by a screen-space drag.
func (r *Renderer) TranslateFromScreen(x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trans = sdf.Translate3d(v3.Vec{X: -x, Y: y}).Mul(r.trans)
}

// ResetCamera restores the initial view.
func (r *Renderer) ResetCamera() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trans = sdf.Identity3d()
}

// Ray is a ray with an unnormalized direction.
type Ray struct {
	Origin v3.Vec
	Dir    v3.Vec
}

// frame is the per-frame snapshot shared read-only by all rows.
type frame struct {
	obj         object.Object
	scene       scene
	maxIter     int
	light       v3.Vec
	origin      v3.Vec
	originValue float64
	front       v3.Vec
	rightLeft   v3.Vec
	topBottom   v3.Vec
}

func (r *Renderer) snapshot() (*frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.obj == nil {
		return nil, false
	}
	dist := focalFactor * r.scene.width * viewerDistance
	f := &frame{
		obj:       r.obj,
		scene:     r.scene,
		maxIter:   r.cfg.MaxIterations,
		light:     direction(r.trans, r.light),
		origin:    r.trans.MulPosition(v3.Vec{Z: -dist}),
		front:     direction(r.trans, v3.Vec{Z: 1}),
		rightLeft: direction(r.trans, v3.Vec{X: focalFactor}),
		topBottom: direction(r.trans, v3.Vec{Y: -focalFactor}),
	}
	f.originValue = f.obj.Value(f.origin, f.scene.slack)
	return f, true
}

// direction applies the linear part of m to v.
func direction(m sdf.M44, v v3.Vec) v3.Vec {
	return m.MulPosition(v).Sub(m.MulPosition(v3.Vec{}))
}

// CastRay marches ray against the current object and returns the number
// of steps taken and the Lambertian shade in [0, 1]. A miss, or a
// renderer without an object, shades 0.
func (r *Renderer) CastRay(ray Ray) (int, float64) {
	f, ok := r.snapshot()
	if !ok {
		return 0, 0
	}
	return f.cast(ray.Origin, ray.Dir, f.obj.Value(ray.Origin, f.scene.slack))
}

// cast steps from origin along dir, starting with the distance value
// already known at origin.
func (f *frame) cast(origin, dir v3.Vec, value float64) (int, float64) {
	dir = dir.DivScalar(dir.Length())
	p := origin
	iter := 0
	for {
		p = p.Add(dir.MulScalar(value))
		value = f.obj.Value(p, f.scene.slack)
		iter++
		if value > f.scene.maxval || math.IsNaN(value) {
			return iter, 0
		}
		if value < f.scene.epsilon {
			break
		}
		if f.maxIter > 0 && iter >= f.maxIter {
			return iter, 0
		}
	}
	dot := f.obj.Normal(p).Dot(f.light)
	return iter, math.Max(0, math.Min(1, dot))
}

// DrawOnBuf renders a width x height frame into buf, row-major from the
// top. buf must be exactly width*height*BytesPerPixel long. Without an
// object the frame is cleared to zero.
func (r *Renderer) DrawOnBuf(buf []byte, width, height int) error {
	if width < 0 || height < 0 || len(buf) != width*height*BytesPerPixel {
		return fmt.Errorf("%w: got %d bytes for %dx%d", ErrBufferSize, len(buf), width, height)
	}
	f, ok := r.snapshot()
	if !ok {
		clear(buf)
		return nil
	}
	if width == 0 || height == 0 {
		return nil
	}

	start := time.Now()
	scale := 1 / float64(min(width, height))
	w2, h2 := width/2, height/2
	stride := width * BytesPerPixel

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for y := 0; y < height; y++ {
		row := buf[y*stride : (y+1)*stride]
		g.Go(func() error {
			dirRow := f.front.Add(f.topBottom.MulScalar(float64(y-h2) * scale))
			for x := 0; x < width; x++ {
				dir := dirRow.Add(f.rightLeft.MulScalar(float64(x-w2) * scale))
				iter, v := f.cast(f.origin, dir, f.originValue)
				b := byte(255 * v * v)
				i := x * BytesPerPixel
				row[i] = byte(iter)
				row[i+1] = b
				row[i+2] = b
			}
			return nil
		})
	}
	err := g.Wait()
	logging.Logger().Debug("render: frame drawn", "width", width, "height", height, "elapsed", time.Since(start))
	return err
}
