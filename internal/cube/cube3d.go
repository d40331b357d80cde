// Package cube implements the cube assembler (spec §4.B): for one
// cube coordinate, read the contributing tile of every slice from its
// grouped-tile container via the two-offset random-access read, and
// stack them into an in-memory 3D cube in (X,Y,Z) axis order.
package cube

import "github.com/ngalign/ngalign/internal/apierr"

// Cube3D is a dense (X,Y,Z)-ordered 8-bit voxel cube: NX is the
// fastest-varying axis. Building planes directly in this order avoids
// materializing an intermediate (Z,Y,X) volume and then transposing
// it — the same end result spec §4.B describes, reached without an
// extra copy.
type Cube3D struct {
	NX, NY, NZ int
	Pix        []byte
}

// NewCube3D allocates a zeroed cube of the given shape.
func NewCube3D(nx, ny, nz int) *Cube3D {
	if nx < 0 {
		nx = 0
	}
	if ny < 0 {
		ny = 0
	}
	if nz < 0 {
		nz = 0
	}
	return &Cube3D{NX: nx, NY: ny, NZ: nz, Pix: make([]byte, nx*ny*nz)}
}

func (c *Cube3D) planeOffset(z int) int { return z * c.NY * c.NX }

// SetPlane copies a width x height row-major plane, whose rows start
// stride bytes apart in pix, into the cube at z-index z.
func (c *Cube3D) SetPlane(z int, width, height int, pix []byte, stride int) error {
	if z < 0 || z >= c.NZ {
		return apierr.Newf(apierr.ComputeFailure, "plane index %d out of range [0,%d)", z, c.NZ)
	}
	if width != c.NX || height != c.NY {
		return apierr.Newf(apierr.ComputeFailure, "plane shape %dx%d does not match cube %dx%d", width, height, c.NX, c.NY)
	}
	base := c.planeOffset(z)
	for y := 0; y < height; y++ {
		srcRow := y * stride
		dstRow := base + y*c.NX
		copy(c.Pix[dstRow:dstRow+c.NX], pix[srcRow:srcRow+width])
	}
	return nil
}

// At returns the voxel at (x,y,z).
func (c *Cube3D) At(x, y, z int) byte {
	return c.Pix[z*c.NY*c.NX+y*c.NX+x]
}

// SubCube extracts an independent copy of the axis-aligned box
// [x0,x1)x[y0,y1)x[z0,z1), clipped to the cube's bounds.
func (c *Cube3D) SubCube(x0, y0, z0, x1, y1, z1 int) *Cube3D {
	if x1 > c.NX {
		x1 = c.NX
	}
	if y1 > c.NY {
		y1 = c.NY
	}
	if z1 > c.NZ {
		z1 = c.NZ
	}
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if z0 < 0 {
		z0 = 0
	}
	nx, ny, nz := x1-x0, y1-y0, z1-z0
	if nx < 0 {
		nx = 0
	}
	if ny < 0 {
		ny = 0
	}
	if nz < 0 {
		nz = 0
	}
	out := NewCube3D(nx, ny, nz)
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			srcRow := (z0+z)*c.NY*c.NX + (y0+y)*c.NX + x0
			dstRow := z*ny*nx + y*nx
			copy(out.Pix[dstRow:dstRow+nx], c.Pix[srcRow:srcRow+nx])
		}
	}
	return out
}
