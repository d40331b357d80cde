// Package container implements the grouped-tile container: the byte
// layout written by the aligned-tile producer and read by the cube
// assembler, as defined in spec §3. All integers are unsigned
// little-endian 64-bit.
package container

import (
	"encoding/binary"

	"github.com/ngalign/ngalign/internal/apierr"
)

// HeaderSize is the fixed 24-byte header preceding the offset table.
const HeaderSize = 24

// Header is the fixed W/H/shard_size prefix of a container, identical
// across every super-block of a given slice.
type Header struct {
	W, H, ShardSize uint64
}

// Grid returns the row-major tile grid dimensions for a super-block of
// clipped size (bw,bh) tiled at shardSize, per spec §3.
func Grid(bw, bh, shardSize int) (tilesX, tilesY int) {
	return ceilDiv(bw, shardSize), ceilDiv(bh, shardSize)
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Build assembles a complete container from already-encoded,
// row-major tile payloads: header, offset table, then the
// concatenated payloads, exactly as spec §3 describes.
func Build(h Header, tiles [][]byte) []byte {
	k := len(tiles)
	payloadStart0 := HeaderSize + uint64(k+1)*8

	total := payloadStart0
	for _, t := range tiles {
		total += uint64(len(t))
	}

	buf := make([]byte, total)
	binary.LittleEndian.PutUint64(buf[0:8], h.W)
	binary.LittleEndian.PutUint64(buf[8:16], h.H)
	binary.LittleEndian.PutUint64(buf[16:24], h.ShardSize)

	offset := payloadStart0
	binary.LittleEndian.PutUint64(buf[HeaderSize:HeaderSize+8], offset)
	cursor := payloadStart0
	for i, t := range tiles {
		copy(buf[cursor:cursor+uint64(len(t))], t)
		cursor += uint64(len(t))
		binary.LittleEndian.PutUint64(buf[HeaderSize+8*uint64(i+1):HeaderSize+8*uint64(i+2)], cursor)
	}
	return buf
}

// ParseHeader reads the fixed 24-byte header.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, apierr.New(apierr.DecodeFailure, "container shorter than header")
	}
	return Header{
		W:         binary.LittleEndian.Uint64(data[0:8]),
		H:         binary.LittleEndian.Uint64(data[8:16]),
		ShardSize: binary.LittleEndian.Uint64(data[16:24]),
	}, nil
}

// TileCount derives k from payload_start_0 without needing to know the
// super-block's clipped dimensions: payload_start_0 = 24 + (k+1)*8.
func TileCount(data []byte) (int, error) {
	if len(data) < HeaderSize+8 {
		return 0, apierr.New(apierr.DecodeFailure, "container too short to contain payload_start_0")
	}
	start0 := binary.LittleEndian.Uint64(data[HeaderSize : HeaderSize+8])
	if start0 < HeaderSize+8 {
		return 0, apierr.New(apierr.DecodeFailure, "payload_start_0 precedes the offset table")
	}
	rem := start0 - HeaderSize
	if rem%8 != 0 {
		return 0, apierr.New(apierr.DecodeFailure, "payload_start_0 misaligned with 8-byte offsets")
	}
	k := int(rem/8) - 1
	if k < 0 {
		return 0, apierr.New(apierr.DecodeFailure, "negative tile count derived from header")
	}
	return k, nil
}

// Offsets parses the complete (k+1)-entry offset table.
func Offsets(data []byte) ([]uint64, error) {
	k, err := TileCount(data)
	if err != nil {
		return nil, err
	}
	need := HeaderSize + (k+1)*8
	if len(data) < need {
		return nil, apierr.New(apierr.DecodeFailure, "container shorter than its own offset table")
	}
	out := make([]uint64, k+1)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(data[HeaderSize+8*i : HeaderSize+8*(i+1)])
	}
	return out, nil
}

// TileRange reads only the two 8-byte offsets bounding tile i,
// [24+8i, 24+8i+16), per spec §4.B — this is the random-access read
// the cube assembler performs instead of parsing the full table.
func TileRange(offsetPair []byte) (start, end uint64, err error) {
	if len(offsetPair) != 16 {
		return 0, 0, apierr.Newf(apierr.DecodeFailure, "expected 16 offset bytes, got %d", len(offsetPair))
	}
	start = binary.LittleEndian.Uint64(offsetPair[0:8])
	end = binary.LittleEndian.Uint64(offsetPair[8:16])
	if end < start {
		return 0, 0, apierr.Newf(apierr.DecodeFailure, "tile offsets not increasing: start=%d end=%d", start, end)
	}
	return start, end, nil
}

// OffsetPairByteRange returns the byte range to fetch from the
// container object to read tile i's two bounding offsets.
func OffsetPairByteRange(tileIndex int) (start, end int64) {
	s := int64(HeaderSize + 8*tileIndex)
	return s, s + 16
}

// Validate checks the invariants from spec §8 prop 1 & 2: the offset
// table is strictly increasing and payload_end equals len(data).
func Validate(data []byte) error {
	offs, err := Offsets(data)
	if err != nil {
		return err
	}
	for i := 1; i < len(offs); i++ {
		if offs[i] <= offs[i-1] {
			return apierr.Newf(apierr.DecodeFailure, "offset table not strictly increasing at index %d", i)
		}
	}
	if len(offs) > 0 && offs[len(offs)-1] != uint64(len(data)) {
		return apierr.Newf(apierr.DecodeFailure, "payload_end %d does not match container size %d", offs[len(offs)-1], len(data))
	}
	return nil
}
