package ngvol

import (
	"image"
	"image/color"

	"github.com/ngalign/ngalign/internal/cube"
)

// planeImage adapts one Z-plane of a Cube3D to image.Image so it can
// be handed to image/jpeg without copying into an intermediate
// image.Gray.
type planeImage struct {
	c *cube.Cube3D
	z int
}

func (p *planeImage) ColorModel() color.Model { return color.GrayModel }

func (p *planeImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.c.NX, p.c.NY)
}

func (p *planeImage) At(x, y int) color.Color {
	return color.Gray{Y: p.c.At(x, y, p.z)}
}
