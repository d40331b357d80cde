// Package ngvol stands in for the external sharded-volume writer that
// spec §1 explicitly treats as an out-of-scope collaborator: "a
// library that accepts a 3D byte array slice at a given origin for a
// given scale-level and encoding". Writer is that boundary; the
// concrete implementation here persists chunks through a
// store.Blobstore under neuroglancer/{jpeg|raw}/{level}/ with the
// chunk's voxel bounds as the object name, encoding each Z-plane with stdlib
// image/jpeg (lossy) or writing raw planes (lossless) — a faithful
// stand-in for the real sharded-v1 container format, whose shard/
// minishard index construction spec.md places outside the core.
package ngvol

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/ngalign/ngalign/internal/apierr"
	"github.com/ngalign/ngalign/internal/cube"
	"github.com/ngalign/ngalign/internal/store"
)

// Encoding selects how a chunk's voxels are serialized.
type Encoding string

const (
	EncodingJPEG Encoding = "jpeg"
	EncodingRaw  Encoding = "raw"
)

// Writer accepts one cube (or sub-cube) at a given origin, scale
// level and encoding. The core (internal/pyramid) treats every call
// as atomic, per spec §5.
type Writer interface {
	WriteChunk(ctx context.Context, level int, enc Encoding, origin [3]int, c *cube.Cube3D) error
}

// StoreWriter is the shipped Writer, backed by a destination bucket.
type StoreWriter struct {
	Dest store.Bucket
	// JPEGQuality is used for the lossy encoding path.
	JPEGQuality int
}

// NewStoreWriter returns a StoreWriter with the quality the original
// service's descriptor implies for a "jpeg" scale (no explicit quality
// knob in spec, so a standard high-quality default is used).
func NewStoreWriter(dest store.Bucket) *StoreWriter {
	return &StoreWriter{Dest: dest, JPEGQuality: 90}
}

func (w *StoreWriter) chunkPath(level int, enc Encoding, origin [3]int, c *cube.Cube3D) string {
	format := "raw"
	if enc == EncodingJPEG {
		format = "jpeg"
	}
	return fmt.Sprintf("neuroglancer/%s/%d/%d-%d_%d-%d_%d-%d",
		format, level,
		origin[0], origin[0]+c.NX,
		origin[1], origin[1]+c.NY,
		origin[2], origin[2]+c.NZ,
	)
}

// WriteChunk implements Writer.
func (w *StoreWriter) WriteChunk(ctx context.Context, level int, enc Encoding, origin [3]int, c *cube.Cube3D) error {
	if c.NX == 0 || c.NY == 0 || c.NZ == 0 {
		return nil
	}

	var payload []byte
	var contentType string
	var err error
	switch enc {
	case EncodingRaw:
		payload = c.Pix
		contentType = "application/octet-stream"
	case EncodingJPEG:
		payload, err = encodeJPEGPlanes(c, w.JPEGQuality)
		contentType = "application/octet-stream"
	default:
		return apierr.Newf(apierr.RequestMalformed, "unknown chunk encoding %q", enc)
	}
	if err != nil {
		return apierr.Wrap(apierr.WriterFailure, err, "encoding chunk")
	}

	name := w.chunkPath(level, enc, origin, c)
	if err := w.Dest.Put(ctx, name, payload, contentType); err != nil {
		return apierr.Wrap(apierr.WriterFailure, err, "writing chunk "+name)
	}
	return nil
}

// encodeJPEGPlanes encodes every Z-plane of c as a JPEG image and
// concatenates them in Z order, each plane preceded by its byte length
// as a little-endian uint64. Unlike the grouped-tile container
// (internal/container) there is no up-front offset table.
func encodeJPEGPlanes(c *cube.Cube3D, quality int) ([]byte, error) {
	planes := make([][]byte, c.NZ)
	for z := 0; z < c.NZ; z++ {
		img := &planeImage{c: c, z: z}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
		planes[z] = buf.Bytes()
	}

	var out bytes.Buffer
	for _, p := range planes {
		var lenBuf [8]byte
		putUint64LE(lenBuf[:], uint64(len(p)))
		out.Write(lenBuf[:])
		out.Write(p)
	}
	return out.Bytes(), nil
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
