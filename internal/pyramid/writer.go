package pyramid

import (
	"context"

	"github.com/ngalign/ngalign/internal/cube"
	"github.com/ngalign/ngalign/internal/layout"
	"github.com/ngalign/ngalign/internal/ngvol"
)

// subCubeSize is the edge length level 0 is split into before
// handing sub-cubes to the volume writer (spec §4.C): 1024^3 doesn't
// fit comfortably in memory alongside everything else in flight, so
// it's written as eight 512^3 pieces.
const subCubeSize = 512

// Write implements spec §4.C: write c at origin as scale 0 (in eight
// 512^3 sub-cubes, lossy always and lossless if writeLossless), then
// repeatedly downsample and write scales 1..5 (lossy only), stopping
// early if a downsampled dimension reaches zero.
func Write(ctx context.Context, w ngvol.Writer, c *cube.Cube3D, origin [3]int, writeLossless bool) error {
	if err := writeLevel0(ctx, w, c, origin, writeLossless); err != nil {
		return err
	}

	cur := c
	curOrigin := origin
	for level := 1; level < layout.NumPyramidLevels; level++ {
		cur = Downsample(cur)
		curOrigin = [3]int{curOrigin[0] / 2, curOrigin[1] / 2, curOrigin[2] / 2}
		if cur.NX == 0 || cur.NY == 0 || cur.NZ == 0 {
			break
		}
		if err := w.WriteChunk(ctx, level, ngvol.EncodingJPEG, curOrigin, cur); err != nil {
			return err
		}
	}
	return nil
}

func writeLevel0(ctx context.Context, w ngvol.Writer, c *cube.Cube3D, origin [3]int, writeLossless bool) error {
	for k := 0; k < 2; k++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				x0, y0, z0 := i*subCubeSize, j*subCubeSize, k*subCubeSize
				sub := c.SubCube(x0, y0, z0, x0+subCubeSize, y0+subCubeSize, z0+subCubeSize)
				if sub.NX == 0 || sub.NY == 0 || sub.NZ == 0 {
					continue
				}
				subOrigin := [3]int{origin[0] + x0, origin[1] + y0, origin[2] + z0}

				if err := w.WriteChunk(ctx, 0, ngvol.EncodingJPEG, subOrigin, sub); err != nil {
					return err
				}
				if writeLossless {
					if err := w.WriteChunk(ctx, 0, ngvol.EncodingRaw, subOrigin, sub); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
