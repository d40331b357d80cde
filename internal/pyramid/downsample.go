// Package pyramid implements the pyramid writer (spec §4.C): write
// the cube at scale 0 (both encodings if requested), then repeatedly
// downsample and write scales 1..5 (lossy only), terminating early if
// any output dimension reaches zero.
package pyramid

import "github.com/ngalign/ngalign/internal/cube"

// pieceSize is the edge length pieces are downsampled in when the
// cube is too large to downsample in one call (spec §4.C).
const pieceSize = 256

// Downsample halves every axis of c, tiling the work in 256^3 pieces
// when c is larger than that in any dimension, per spec §4.C. Output
// size on each axis is round-half-up(axis/2), matching the
// implicit size convention the metadata table uses (spec §4.C/§9).
func Downsample(c *cube.Cube3D) *cube.Cube3D {
	if c.NX <= pieceSize && c.NY <= pieceSize && c.NZ <= pieceSize {
		return downsampleWhole(c)
	}

	outX, outY, outZ := roundHalfUp(c.NX), roundHalfUp(c.NY), roundHalfUp(c.NZ)
	out := cube.NewCube3D(outX, outY, outZ)

	for zi := 0; zi < c.NZ; zi += pieceSize {
		for yi := 0; yi < c.NY; yi += pieceSize {
			for xi := 0; xi < c.NX; xi += pieceSize {
				piece := c.SubCube(xi, yi, zi, xi+pieceSize, yi+pieceSize, zi+pieceSize)
				down := downsampleWhole(piece)
				placePiece(out, down, xi/2, yi/2, zi/2)
			}
		}
	}
	return out
}

// placePiece copies down into out starting at (dx,dy,dz), clipped to
// out's bounds — the destination slot a 256^3 piece (or a clipped
// edge piece smaller than that) lands in after halving.
func placePiece(out, down *cube.Cube3D, dx, dy, dz int) {
	nx := down.NX
	if dx+nx > out.NX {
		nx = out.NX - dx
	}
	ny := down.NY
	if dy+ny > out.NY {
		ny = out.NY - dy
	}
	nz := down.NZ
	if dz+nz > out.NZ {
		nz = out.NZ - dz
	}
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return
	}
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			srcRow := z*down.NY*down.NX + y*down.NX
			dstRow := (dz+z)*out.NY*out.NX + (dy+y)*out.NX + dx
			copy(out.Pix[dstRow:dstRow+nx], down.Pix[srcRow:srcRow+nx])
		}
	}
}

// downsampleWhole halves every axis of a single cube in one pass via
// 2x2x2 box averaging, clipped at odd-sized edges. This approximates
// scipy's order-1 "zoom" by factor 0.5 closely enough to preserve the
// shape and all-zero invariants the core relies on (spec §8 prop 7)
// without pulling in a spline-interpolation dependency for a single
// linear downsample step.
func downsampleWhole(c *cube.Cube3D) *cube.Cube3D {
	outX, outY, outZ := roundHalfUp(c.NX), roundHalfUp(c.NY), roundHalfUp(c.NZ)
	out := cube.NewCube3D(outX, outY, outZ)
	if outX == 0 || outY == 0 || outZ == 0 {
		return out
	}

	for oz := 0; oz < outZ; oz++ {
		z0, z1 := 2*oz, clampIdx(2*oz+2, c.NZ)
		for oy := 0; oy < outY; oy++ {
			y0, y1 := 2*oy, clampIdx(2*oy+2, c.NY)
			for ox := 0; ox < outX; ox++ {
				x0, x1 := 2*ox, clampIdx(2*ox+2, c.NX)
				out.Pix[oz*outY*outX+oy*outX+ox] = boxAverage(c, x0, x1, y0, y1, z0, z1)
			}
		}
	}
	return out
}

func boxAverage(c *cube.Cube3D, x0, x1, y0, y1, z0, z1 int) byte {
	var sum, n int
	for z := z0; z < z1; z++ {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				sum += int(c.At(x, y, z))
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return byte((sum + n/2) / n)
}

func clampIdx(v, max int) int {
	if v > max {
		return max
	}
	return v
}

// roundHalfUp implements spec §4.C's "banker-free half-up rounding"
// for n/2 on non-negative n.
func roundHalfUp(n int) int {
	if n < 0 {
		return 0
	}
	return (n + 1) / 2
}
