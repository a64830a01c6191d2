package render

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"testing"

	"github.com/chazu/implicad/pkg/object"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// facingShade is 255*(1/3)^2 truncated: the shade of a surface facing
// the camera.
const facingShade byte = 28

func pixel(buf []byte, width, x, y int) (iter, shade byte) {
	i := (y*width + x) * BytesPerPixel
	return buf[i], buf[i+1]
}

func TestDrawWithoutObjectIsBlank(t *testing.T) {
	sizes := []struct{ w, h int }{{0, 0}, {1, 1}, {7, 3}, {32, 32}, {64, 17}}
	for _, sz := range sizes {
		r := NewRenderer(DefaultConfig())
		buf := bytes.Repeat([]byte{0xff}, sz.w*sz.h*BytesPerPixel)
		if err := r.DrawOnBuf(buf, sz.w, sz.h); err != nil {
			t.Fatalf("DrawOnBuf(%dx%d): %v", sz.w, sz.h, err)
		}
		for i, b := range buf {
			if b != 0 {
				t.Fatalf("%dx%d: byte %d = %d, want 0", sz.w, sz.h, i, b)
			}
		}
	}
}

func TestDrawRejectsWrongBufferSize(t *testing.T) {
	r := NewRenderer(DefaultConfig())
	r.SetObject(object.NewSphere(1))
	tests := []struct {
		name string
		len  int
		w, h int
	}{
		{"short", 10, 4, 4},
		{"long", 4*4*4 + 1, 4, 4},
		{"negative", 0, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.DrawOnBuf(make([]byte, tt.len), tt.w, tt.h)
			if !errors.Is(err, ErrBufferSize) {
				t.Errorf("got %v, want ErrBufferSize", err)
			}
		})
	}
}

func TestDrawSphere(t *testing.T) {
	const size = 32
	r := NewRenderer(DefaultConfig())
	r.SetObject(object.NewSphere(1))
	buf, err := r.Frame(size, size)
	if err != nil {
		t.Fatal(err)
	}

	// Straight ahead the normal faces the camera; the light has a third of
	// its length along the view axis.
	iter, shade := pixel(buf, size, size/2, size/2)
	if iter == 0 {
		t.Error("center ray took no steps")
	}
	if shade != facingShade {
		t.Errorf("center shade = %d, want %d", shade, facingShade)
	}

	if _, s := pixel(buf, size, 0, 0); s != 0 {
		t.Errorf("corner shade = %d, want background", s)
	}

	// The light comes from the upper left.
	_, upperLeft := pixel(buf, size, size/2-4, size/2-4)
	_, lowerRight := pixel(buf, size, size/2+4, size/2+4)
	if upperLeft <= lowerRight {
		t.Errorf("upper left %d should be brighter than lower right %d", upperLeft, lowerRight)
	}

	for i := 0; i < size*size; i++ {
		if buf[i*BytesPerPixel+1] != buf[i*BytesPerPixel+2] {
			t.Fatalf("pixel %d: shade channels differ", i)
		}
	}
}

func TestRotateCameraAroundSphere(t *testing.T) {
	const size = 16
	r := NewRenderer(DefaultConfig())
	r.SetObject(object.NewSphere(1))
	r.RotateFromScreen(math.Pi, 0)
	buf, err := r.Frame(size, size)
	if err != nil {
		t.Fatal(err)
	}
	// The light turns with the camera.
	if _, shade := pixel(buf, size, size/2, size/2); shade != facingShade {
		t.Errorf("center shade = %d, want %d", shade, facingShade)
	}
}

func TestTranslateCameraAway(t *testing.T) {
	const size = 16
	r := NewRenderer(DefaultConfig())
	r.SetObject(object.NewSphere(1))
	r.TranslateFromScreen(10, 0)
	buf, err := r.Frame(size, size)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < size*size; i++ {
		if buf[i*BytesPerPixel+1] != 0 {
			t.Fatalf("pixel %d lit after panning away", i)
		}
	}

	r.ResetCamera()
	buf, err = r.Frame(size, size)
	if err != nil {
		t.Fatal(err)
	}
	if _, shade := pixel(buf, size, size/2, size/2); shade == 0 {
		t.Error("center not lit after reset")
	}
}

func TestClearingObjectBlanksFrame(t *testing.T) {
	r := NewRenderer(DefaultConfig())
	r.SetObject(object.NewSphere(1))
	r.SetObject(nil)
	buf := bytes.Repeat([]byte{1}, 8*8*BytesPerPixel)
	if err := r.DrawOnBuf(buf, 8, 8); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, make([]byte, len(buf))) {
		t.Error("frame not cleared")
	}
}

func TestCastRay(t *testing.T) {
	r := NewRenderer(DefaultConfig())
	if iter, shade := r.CastRay(Ray{Dir: v3.Vec{Z: 1}}); iter != 0 || shade != 0 {
		t.Errorf("without object got (%d, %g), want (0, 0)", iter, shade)
	}

	r.SetObject(object.NewSphere(1))
	iter, shade := r.CastRay(Ray{Origin: v3.Vec{Z: -3}, Dir: v3.Vec{Z: 2}})
	if iter == 0 {
		t.Error("hit took no steps")
	}
	if math.Abs(shade-1.0/3) > 1e-3 {
		t.Errorf("shade = %g, want 1/3", shade)
	}

	if _, shade := r.CastRay(Ray{Origin: v3.Vec{Z: -3}, Dir: v3.Vec{Z: -1}}); shade != 0 {
		t.Errorf("ray away from sphere shade = %g, want 0", shade)
	}
}

func TestCastRayStopsAtIterationLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 3
	r := NewRenderer(cfg)
	r.SetObject(object.NewSphere(1))
	// A ray grazing the sphere converges slowly.
	iter, _ := r.CastRay(Ray{Origin: v3.Vec{X: 1.0005, Z: -1.5}, Dir: v3.Vec{Z: 1}})
	if iter > 3 {
		t.Errorf("iterations = %d, want at most 3", iter)
	}
}

func TestImageAndPNG(t *testing.T) {
	const size = 12
	r := NewRenderer(DefaultConfig())
	r.SetObject(object.NewSphere(1))
	buf, err := r.Frame(size, size)
	if err != nil {
		t.Fatal(err)
	}
	img, err := Image(buf, size, size)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := img.GrayAt(size/2, size/2).Y, buf[(size/2*size+size/2)*BytesPerPixel+1]; got != want {
		t.Errorf("image center = %d, want %d", got, want)
	}
	if _, err := IterationImage(buf, size, size); err != nil {
		t.Fatal(err)
	}
	if _, err := Image(buf, size+1, size); !errors.Is(err, ErrBufferSize) {
		t.Errorf("got %v, want ErrBufferSize", err)
	}

	up := Upscale(img, 3)
	if b := up.Bounds(); b.Dx() != 3*size || b.Dy() != 3*size {
		t.Errorf("upscaled bounds = %v", b)
	}
	if Upscale(img, 1) != img {
		t.Error("factor 1 should return the input")
	}

	var out bytes.Buffer
	if err := EncodePNG(&out, up); err != nil {
		t.Fatal(err)
	}
	decoded, err := png.Decode(&out)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Bounds() != up.Bounds() {
		t.Errorf("decoded bounds = %v, want %v", decoded.Bounds(), up.Bounds())
	}
}
