// Package align implements the aligned-tile producer (spec §4.A):
// warp one slice into the shared reference frame, write a debug
// thumbnail, and emit one grouped-tile container per super-block.
package align

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ngalign/ngalign/internal/apierr"
	"github.com/ngalign/ngalign/internal/container"
	"github.com/ngalign/ngalign/internal/imaging"
	"github.com/ngalign/ngalign/internal/layout"
	"github.com/ngalign/ngalign/internal/store"
	"github.com/ngalign/ngalign/internal/workerpool"
)

// MaxSourcePixels bounds the size of the input slice this producer
// will decode, matching the original service's Image.MAX_IMAGE_PIXELS
// guard (one gigapixel).
const MaxSourcePixels = 1_000_000_000

// SuperblockSize is the fixed 4096x4096 super-block grid pitch.
const SuperblockSize = layout.SuperblockSize

// ThumbnailTarget is the max dimension of the align/ debug thumbnail.
const ThumbnailTarget = 4096

// CLAHEKernel is the fixed adaptive-histogram-equalization kernel
// edge length used throughout the producer.
const CLAHEKernel = 1024

// NumWorkers is the fixed super-block worker pool size (spec §5).
const NumWorkers = 4

// Config carries one alignedslice request.
type Config struct {
	Img       string // source slice name, read from "raw/{Img}"
	Dest      string // destination bucket (also holds raw/ and align/)
	DestTmp   string // temp bucket for grouped-tile containers
	Transform imaging.Affine
	W, H      int
	Slice     int
	ShardSize int
}

// Stores resolves a bucket name to a Blobstore; the server wires this
// to a shared store.Client so every worker shares one underlying GCS
// client (spec §9, "Global state").
type Stores interface {
	Bucket(name string) store.Bucket
}

// Validate checks the edge cases spec §4.A calls out: the request's
// own dimensions must be positive. Unlike ngshard/ngmeta (which only
// ever consume 1024-divided cubes), alignedslice places no divisor
// requirement on shard-size — spec §8 scenario S2 runs it at 1000
// against a 4096 super-block, and the original alignedslice handler
// carries no such assert either (only ngshard's MAX_IMAGE_SIZE check
// does).
func (c Config) Validate() error {
	if c.W <= 0 || c.H <= 0 {
		return apierr.Newf(apierr.RequestMalformed, "bbox must be positive, got %dx%d", c.W, c.H)
	}
	if c.ShardSize <= 0 {
		return apierr.Newf(apierr.RequestMalformed, "shard-size must be positive, got %d", c.ShardSize)
	}
	return nil
}

// Run executes one alignedslice request end to end.
func Run(ctx context.Context, stores Stores, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	destBucket := stores.Bucket(cfg.Dest)

	raw, err := destBucket.Get(ctx, "raw/"+cfg.Img)
	if err != nil {
		return store.WrapStorage(err, "fetching raw/"+cfg.Img)
	}
	src, err := imaging.DecodeGray8(bytes.NewReader(raw), MaxSourcePixels)
	if err != nil {
		return apierr.Wrap(apierr.DecodeFailure, err, "decoding "+cfg.Img)
	}

	warped, err := imaging.Warp(src, cfg.Transform, cfg.W, cfg.H)
	if err != nil {
		return apierr.Wrap(apierr.ComputeFailure, err, "warping "+cfg.Img)
	}

	if err := writeThumbnail(ctx, destBucket, cfg, warped); err != nil {
		return err
	}

	return writeSuperblocks(ctx, stores.Bucket(cfg.DestTmp), cfg, warped)
}

// writeThumbnail implements spec §4.A step 3: halve until the longer
// side is at most ThumbnailTarget, CLAHE, then write a lossless PNG.
func writeThumbnail(ctx context.Context, dest store.Bucket, cfg Config, warped *imaging.Gray8) error {
	factor := 1
	maxDim := cfg.W
	if cfg.H > maxDim {
		maxDim = cfg.H
	}
	for maxDim/factor > ThumbnailTarget {
		factor *= 2
	}

	small := warped
	if factor > 1 {
		scale := 1.0 / float64(factor)
		outW, outH := cfg.W/factor, cfg.H/factor
		var err error
		small, err = imaging.Warp(warped, imaging.Affine{A: scale, D: scale}, outW, outH)
		if err != nil {
			return apierr.Wrap(apierr.ComputeFailure, err, "downsampling thumbnail")
		}
	}

	small = imaging.EqualizeAdaptive(small, CLAHEKernel)

	var buf bytes.Buffer
	if err := imaging.EncodePNG(&buf, small); err != nil {
		return apierr.Wrap(apierr.ComputeFailure, err, "encoding thumbnail")
	}
	if err := dest.Put(ctx, "align/"+cfg.Img, buf.Bytes(), "image/png"); err != nil {
		return store.WrapStorage(err, "writing align/"+cfg.Img)
	}
	return nil
}

// writeSuperblocks implements spec §4.A step 4: one grouped-tile
// container per super-block, built by a fixed 4-worker pool assigned
// by job_id mod NumWorkers over the row-major super-block order.
func writeSuperblocks(ctx context.Context, tmp store.Bucket, cfg Config, warped *imaging.Gray8) error {
	sbX := ceilDiv(cfg.W, SuperblockSize)
	sbY := ceilDiv(cfg.H, SuperblockSize)
	total := sbX * sbY

	return workerpool.RunModulo(NumWorkers, total, func(jobID int) error {
		by := jobID / sbX
		bx := jobID % sbX
		return writeOneSuperblock(ctx, tmp, cfg, warped, bx, by)
	})
}

func writeOneSuperblock(ctx context.Context, tmp store.Bucket, cfg Config, warped *imaging.Gray8, bx, by int) error {
	startX := bx * SuperblockSize
	startY := by * SuperblockSize
	bw := clampDim(cfg.W-startX, SuperblockSize)
	bh := clampDim(cfg.H-startY, SuperblockSize)

	tilesX, tilesY := container.Grid(bw, bh, cfg.ShardSize)
	tiles := make([][]byte, 0, tilesX*tilesY)

	for ty := 0; ty < tilesY; ty++ {
		tileY0 := startY + ty*cfg.ShardSize
		tileY1 := tileY0 + cfg.ShardSize
		if tileY1 > startY+bh {
			tileY1 = startY + bh
		}
		for tx := 0; tx < tilesX; tx++ {
			tileX0 := startX + tx*cfg.ShardSize
			tileX1 := tileX0 + cfg.ShardSize
			if tileX1 > startX+bw {
				tileX1 = startX + bw
			}

			tile := warped.Crop(tileX0, tileY0, tileX1, tileY1)
			tile = imaging.EqualizeAdaptive(tile, CLAHEKernel)

			var buf bytes.Buffer
			if err := imaging.EncodePNG(&buf, tile); err != nil {
				return apierr.Wrapf(apierr.ComputeFailure, err, "encoding tile (%d,%d) of superblock (%d,%d)", tx, ty, bx, by)
			}
			tiles = append(tiles, buf.Bytes())
		}
	}

	data := container.Build(container.Header{
		W:         uint64(cfg.W),
		H:         uint64(cfg.H),
		ShardSize: uint64(cfg.ShardSize),
	}, tiles)

	name := fmt.Sprintf("%d_%d_%d", cfg.Slice, bx, by)
	if err := tmp.Put(ctx, name, data, "application/octet-stream"); err != nil {
		return store.WrapStorage(err, "writing "+name)
	}
	return nil
}

func clampDim(remaining, full int) int {
	if remaining < full {
		return remaining
	}
	return full
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
