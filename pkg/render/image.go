package render

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

// Frame renders a width x height frame into a new buffer.
func (r *Renderer) Frame(width, height int) ([]byte, error) {
	buf := make([]byte, width*height*BytesPerPixel)
	if err := r.DrawOnBuf(buf, width, height); err != nil {
		return nil, err
	}
	return buf, nil
}

// Image converts a frame buffer to a grayscale image of its shade channel.
func Image(buf []byte, width, height int) (*image.Gray, error) {
	if width < 0 || height < 0 || len(buf) != width*height*BytesPerPixel {
		return nil, fmt.Errorf("%w: got %d bytes for %dx%d", ErrBufferSize, len(buf), width, height)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i] = buf[i*BytesPerPixel+1]
	}
	return img, nil
}

// IterationImage converts a frame buffer to a grayscale image of the
// iteration count channel, which shows where rays work hardest.
func IterationImage(buf []byte, width, height int) (*image.Gray, error) {
	if width < 0 || height < 0 || len(buf) != width*height*BytesPerPixel {
		return nil, fmt.Errorf("%w: got %d bytes for %dx%d", ErrBufferSize, len(buf), width, height)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i] = buf[i*BytesPerPixel]
	}
	return img, nil
}

// Upscale enlarges img by an integer factor with bilinear filtering.
// Rendering at a lower resolution and upscaling trades detail for speed.
func Upscale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("render: encode png: %w", err)
	}
	return nil
}
