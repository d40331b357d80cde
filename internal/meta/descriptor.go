// Package meta builds the neuroglancer multiscale-volume descriptor
// (spec §4.D/§6), written once per ngmeta request. The padding
// progression and the scale-5 realoffset divisor are preserved
// byte-for-byte from original_source/emwrite_docker/emwrite.py's
// create_meta, including its copy-paste bug (scale 5 reuses scale 4's
// divisor) — spec §9 explicitly asks for this to be preserved, not
// fixed.
package meta

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ngalign/ngalign/internal/apierr"
	"github.com/ngalign/ngalign/internal/layout"
	"github.com/ngalign/ngalign/internal/store"
)

// Sharding is the sharded-v1 spec attached to scales 0-2 of the lossy
// descriptor.
type Sharding struct {
	Type                   string `json:"@type"`
	Hash                   string `json:"hash"`
	MinishardBits          int    `json:"minishard_bits"`
	MinishardIndexEncoding string `json:"minishard_index_encoding"`
	PreshiftBits           int    `json:"preshift_bits"`
	ShardBits              int    `json:"shard_bits"`
}

// Scale is one entry of Descriptor.Scales.
type Scale struct {
	ChunkSizes [][3]int  `json:"chunk_sizes"`
	Encoding   string    `json:"encoding"`
	Key        string    `json:"key"`
	Resolution [3]int    `json:"resolution"`
	Sharding   *Sharding `json:"sharding,omitempty"`
	Size       [3]int    `json:"size"`
	RealSize   [3]int    `json:"realsize"`
	Offset     [3]int    `json:"offset"`
	RealOffset [3]int    `json:"realoffset"`
}

// Descriptor is the top-level neuroglancer_multiscale_volume JSON
// object (spec §6).
type Descriptor struct {
	Type        string  `json:"@type"`
	DataType    string  `json:"data_type"`
	NumChannels int     `json:"num_channels"`
	Scales      []Scale `json:"scales"`
	ImgType     string  `json:"type"`
}

// shardBitsByLevel gives the sharded-v1 shard_bits for scales 0-2;
// scales 3-5 are unsharded (spec §4.D).
var shardBitsByLevel = [3]int{27, 24, 21}

// sizePadByLevel is the "+1,+2,+4,+8,+16" padding progression added
// to the padded size at scales 1..5 (spec §4.D/§9).
var sizePadByLevel = [layout.NumPyramidLevels]int{0, 1, 2, 4, 8, 16}

func roundUp(v, multiple int) int {
	if v%multiple == 0 {
		return v
	}
	return v + (multiple - v%multiple)
}

// BuildLossy constructs the 6-scale jpeg descriptor.
func BuildLossy(w, h, minz, maxz, res int) Descriptor {
	width := roundUp(w, layout.CubeShardSize)
	height := roundUp(h, layout.CubeShardSize)
	z1 := roundUp(maxz+1, layout.CubeShardSize)

	scales := make([]Scale, layout.NumPyramidLevels)
	for l := 0; l < layout.NumPyramidLevels; l++ {
		factor := 1 << uint(l)
		pad := sizePadByLevel[l]

		// Preserved copy-paste bug: scale 5's realoffset divides by
		// 2^4 (16), the same divisor as scale 4, instead of 2^5 (32).
		zdiv := factor
		if l == layout.NumPyramidLevels-1 {
			zdiv = 1 << uint(l-1)
		}

		r := res * factor
		// realsize is derived from the same rounded width/height/z1
		// the padded size uses, not the raw request dimensions:
		// original_source/emwrite_docker/emwrite.py's create_meta
		// mutates width/height/maxz in place at the top of the
		// function, so every downstream field — padded and unpadded
		// alike — reads the rounded values.
		scale := Scale{
			ChunkSizes: [][3]int{{64, 64, 64}},
			Encoding:   "jpeg",
			Key:        fmt.Sprintf("%d.0x%d.0x%d.0", r, r, r),
			Resolution: [3]int{r, r, r},
			Size:       [3]int{width/factor + pad, height/factor + pad, z1/factor + pad},
			RealSize:   [3]int{width / factor, height / factor, z1 / factor},
			Offset:     [3]int{0, 0, 0},
			RealOffset: [3]int{0, 0, minz / zdiv},
		}
		if l < len(shardBitsByLevel) {
			scale.Sharding = &Sharding{
				Type:                   "neuroglancer_uint64_sharded_v1",
				Hash:                   "identity",
				MinishardBits:          0,
				MinishardIndexEncoding: "gzip",
				PreshiftBits:           6,
				ShardBits:              shardBitsByLevel[l],
			}
		}
		scales[l] = scale
	}

	return Descriptor{
		Type:        "neuroglancer_multiscale_volume",
		DataType:    "uint8",
		NumChannels: 1,
		Scales:      scales,
		ImgType:     "image",
	}
}

// BuildLossless constructs the single-scale raw descriptor.
func BuildLossless(w, h, minz, maxz, res int) Descriptor {
	width := roundUp(w, layout.CubeShardSize)
	height := roundUp(h, layout.CubeShardSize)
	z1 := roundUp(maxz+1, layout.CubeShardSize)

	// Same rounded-values-for-realsize rule as BuildLossy: the
	// original mutates width/height/maxz once at the top of
	// create_meta, before either descriptor's fields are built.
	scale := Scale{
		ChunkSizes: [][3]int{{128, 128, 128}},
		Encoding:   "raw",
		Key:        fmt.Sprintf("%d.0x%d.0x%d.0", res, res, res),
		Resolution: [3]int{res, res, res},
		Size:       [3]int{width, height, z1},
		RealSize:   [3]int{width, height, z1},
		Offset:     [3]int{0, 0, 0},
		RealOffset: [3]int{0, 0, minz},
	}

	return Descriptor{
		Type:        "neuroglancer_multiscale_volume",
		DataType:    "uint8",
		NumChannels: 1,
		Scales:      []Scale{scale},
		ImgType:     "image",
	}
}

// Write marshals and uploads the lossy descriptor to
// neuroglancer/jpeg/info, and the lossless one to
// neuroglancer/raw/info when writeLossless is set (spec §4.D/§6).
func Write(ctx context.Context, dest store.Bucket, w, h, minz, maxz, res int, writeLossless bool) error {
	lossy, err := json.Marshal(BuildLossy(w, h, minz, maxz, res))
	if err != nil {
		return apierr.Wrap(apierr.ComputeFailure, err, "marshaling lossy descriptor")
	}
	if err := dest.Put(ctx, "neuroglancer/jpeg/info", lossy, "application/json"); err != nil {
		return store.WrapStorage(err, "writing neuroglancer/jpeg/info")
	}

	if writeLossless {
		raw, err := json.Marshal(BuildLossless(w, h, minz, maxz, res))
		if err != nil {
			return apierr.Wrap(apierr.ComputeFailure, err, "marshaling lossless descriptor")
		}
		if err := dest.Put(ctx, "neuroglancer/raw/info", raw, "application/json"); err != nil {
			return store.WrapStorage(err, "writing neuroglancer/raw/info")
		}
	}
	return nil
}
