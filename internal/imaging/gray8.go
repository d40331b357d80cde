// Package imaging implements the three image primitives the core
// needs: an explicit 8-bit grayscale buffer (spec §9 — "do not rely on
// a polymorphic array library's dynamic dtype"), an affine bicubic
// warp, and tile-local adaptive histogram equalization (CLAHE). The
// per-pixel inverse-map sampling loop is grounded on the tile renderer
// in geotiff2pmtiles (internal/tile/resample.go in that repo): compute
// the inverse transform once, then for every destination pixel map
// back to source coordinates and interpolate.
package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/pkg/errors"
)

// Gray8 is a width x height 8-bit grayscale buffer with an explicit
// row stride, matching spec §9's "(width, height, row_stride, bytes)"
// guidance.
type Gray8 struct {
	Width, Height, Stride int
	Pix                    []byte
}

// NewGray8 allocates a zeroed buffer of the given size.
func NewGray8(w, h int) *Gray8 {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Gray8{Width: w, Height: h, Stride: w, Pix: make([]byte, w*h)}
}

// At returns the pixel at (x,y); out-of-bounds reads return 0.
func (g *Gray8) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return 0
	}
	return g.Pix[y*g.Stride+x]
}

// Set writes the pixel at (x,y). Out-of-bounds writes are ignored.
func (g *Gray8) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return
	}
	g.Pix[y*g.Stride+x] = v
}

// Crop returns a new, independently-backed Gray8 holding the
// rectangle [x0,y0)-[x1,y1), clipped against the source bounds. This
// is how super-blocks and tiles are cut from the warped slice.
func (g *Gray8) Crop(x0, y0, x1, y1 int) *Gray8 {
	if x1 > g.Width {
		x1 = g.Width
	}
	if y1 > g.Height {
		y1 = g.Height
	}
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	w, h := x1-x0, y1-y0
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	out := NewGray8(w, h)
	for y := 0; y < h; y++ {
		srcRow := (y0+y)*g.Stride + x0
		copy(out.Pix[y*out.Stride:(y+1)*out.Stride], g.Pix[srcRow:srcRow+w])
	}
	return out
}

// ToImage adapts Gray8 to the standard library's image.Image so it can
// be handed to image/png and image/jpeg encoders.
func (g *Gray8) ToImage() *image.Gray {
	return &image.Gray{
		Pix:    g.Pix,
		Stride: g.Stride,
		Rect:   image.Rect(0, 0, g.Width, g.Height),
	}
}

// DecodeGray8 decodes a PNG (or any stdlib-registered format) into a
// Gray8, converting non-grayscale sources. MaxPixels guards against
// decoding absurdly large images in one shot; pass 0 to disable.
func DecodeGray8(r io.Reader, maxPixels int64) (*Gray8, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading image")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding image header")
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, errors.Errorf("image %dx%d exceeds max pixel count %d", cfg.Width, cfg.Height, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if gr, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return &Gray8{Width: w, Height: h, Stride: gr.Stride, Pix: gr.Pix}, nil
	}
	out := NewGray8(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y)
		}
	}
	return out, nil
}

// EncodePNG writes g as a lossless 8-bit grayscale PNG.
func EncodePNG(w io.Writer, g *Gray8) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, g.ToImage()); err != nil {
		return errors.Wrap(err, "encoding PNG")
	}
	return nil
}
