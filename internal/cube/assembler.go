package cube

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/ngalign/ngalign/internal/apierr"
	"github.com/ngalign/ngalign/internal/container"
	"github.com/ngalign/ngalign/internal/imaging"
	"github.com/ngalign/ngalign/internal/layout"
	"github.com/ngalign/ngalign/internal/store"
	"github.com/ngalign/ngalign/internal/workerpool"
)

// NumWorkers is the fixed slice-fetch worker pool size (spec §5).
const NumWorkers = 20

// Config carries one cube coordinate's worth of assembly work.
type Config struct {
	Source          store.Bucket // temp bucket holding grouped-tile containers
	CX, CY, CZ      int
	MinZ, MaxZ      int
	W, H            int
	ShardSize       int
}

// Result is the assembled cube plus the extent it actually covers.
type Result struct {
	Cube           *Cube3D
	ZStart, ZFinish int // inclusive slice range actually covered
}

// Validate enforces spec §4.B's input contract and prop 5: the
// pyramid path only accepts shard_size 1024, and a Z extent that
// falls entirely outside [minz,maxz] is a malformed request.
func (c Config) Validate() error {
	if c.ShardSize != layout.CubeShardSize {
		return apierr.Newf(apierr.RequestMalformed, "shard-size must be %d, got %d", layout.CubeShardSize, c.ShardSize)
	}
	if c.MaxZ < c.MinZ {
		return apierr.Newf(apierr.RequestMalformed, "maxz %d is before minz %d", c.MaxZ, c.MinZ)
	}
	zstart, zfinish := c.zRange()
	if zfinish < zstart {
		return apierr.Newf(apierr.RequestMalformed, "cube z-range [%d,%d] at cz=%d does not intersect [%d,%d]", c.CZ*c.ShardSize, c.CZ*c.ShardSize+c.ShardSize-1, c.CZ, c.MinZ, c.MaxZ)
	}
	return nil
}

func (c Config) zRange() (zstart, zfinish int) {
	zstart = c.CZ * c.ShardSize
	if c.MinZ > zstart {
		zstart = c.MinZ
	}
	zfinish = zstart + c.ShardSize - 1
	if c.MaxZ < zfinish {
		zfinish = c.MaxZ
	}
	return
}

// tileLocation computes which container holds the tile contributing
// to cube column (cx,cy) and that tile's index within it, per spec
// §4.B's "Locating a tile within a container".
func tileLocation(cx, cy, shardSize, w int) (bx, by, tileIndex int) {
	bx = (cx * shardSize) / layout.SuperblockSize
	by = (cy * shardSize) / layout.SuperblockSize
	ix := ((cx * shardSize) % layout.SuperblockSize) / shardSize
	iy := ((cy * shardSize) % layout.SuperblockSize) / shardSize
	chunkWidth := ceilDiv(minInt(layout.SuperblockSize, w-cx*shardSize), shardSize)
	tileIndex = iy*chunkWidth + ix
	return
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// fetchTile performs the two-read protocol from spec §4.B: read the
// pair of 8-byte offsets bounding the tile, then read exactly that
// byte range and decode it.
func fetchTile(ctx context.Context, src store.Bucket, slice, cx, cy, shardSize, w int) (*imaging.Gray8, error) {
	bx, by, t := tileLocation(cx, cy, shardSize, w)
	name := fmt.Sprintf("%d_%d_%d", slice, bx, by)

	s, e := container.OffsetPairByteRange(t)
	offsetBytes, err := src.GetRange(ctx, name, s, e)
	if err != nil {
		return nil, store.WrapStorage(err, fmt.Sprintf("reading offsets for tile %d of %s", t, name))
	}
	start, end, err := container.TileRange(offsetBytes)
	if err != nil {
		return nil, apierr.Wrapf(apierr.DecodeFailure, err, "parsing offsets for tile %d of %s", t, name)
	}

	payload, err := src.GetRange(ctx, name, int64(start), int64(end))
	if err != nil {
		return nil, store.WrapStorage(err, fmt.Sprintf("reading tile %d payload of %s", t, name))
	}

	img, err := imaging.DecodeGray8(bytes.NewReader(payload), 0)
	if err != nil {
		return nil, apierr.Wrapf(apierr.DecodeFailure, err, "decoding tile %d of %s", t, name)
	}
	return img, nil
}

// Run assembles the cube for cfg, per spec §4.B. The first slice is
// fetched on the calling goroutine so the cube's shape is known before
// the worker pool starts; the remaining slices are fetched by
// NumWorkers goroutines, worker w taking every slice whose absolute
// number modulo NumWorkers equals w.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	zstart, zfinish := cfg.zRange()
	nz := zfinish - zstart + 1

	first, err := fetchTile(ctx, cfg.Source, zstart, cfg.CX, cfg.CY, cfg.ShardSize, cfg.W)
	if err != nil {
		return nil, err
	}

	c := NewCube3D(first.Width, first.Height, nz)
	if err := c.SetPlane(0, first.Width, first.Height, first.Pix, first.Stride); err != nil {
		return nil, apierr.Wrap(apierr.ComputeFailure, err, "placing first slice")
	}

	if nz > 1 {
		var wg sync.WaitGroup
		var firstErr workerpool.FirstError
		for worker := 0; worker < NumWorkers; worker++ {
			wg.Add(1)
			go func(workerID int) {
				defer wg.Done()
				for slice := zstart + 1; slice <= zfinish; slice++ {
					if slice%NumWorkers != workerID {
						continue
					}
					tile, err := fetchTile(ctx, cfg.Source, slice, cfg.CX, cfg.CY, cfg.ShardSize, cfg.W)
					if err != nil {
						firstErr.Set(err)
						return
					}
					if err := c.SetPlane(slice-zstart, tile.Width, tile.Height, tile.Pix, tile.Stride); err != nil {
						firstErr.Set(apierr.Wrapf(apierr.ComputeFailure, err, "placing slice %d", slice))
						return
					}
				}
			}(worker)
		}
		wg.Wait()
		if firstErr.Err() != nil {
			return nil, firstErr.Err()
		}
	}

	return &Result{Cube: c, ZStart: zstart, ZFinish: zfinish}, nil
}
