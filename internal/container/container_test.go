package container

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildTiles(sizes ...int) [][]byte {
	tiles := make([][]byte, len(sizes))
	for i, n := range sizes {
		t := make([]byte, n)
		for j := range t {
			t[j] = byte(i)
		}
		tiles[i] = t
	}
	return tiles
}

// S1 — identity affine over a 4096x4096 slice at shard-size 1024:
// 16 equal tiles in a 4x4 grid.
func TestBuildS1IdentityGrid(t *testing.T) {
	tilesX, tilesY := Grid(4096, 4096, 1024)
	if tilesX != 4 || tilesY != 4 {
		t.Fatalf("grid = %dx%d, want 4x4", tilesX, tilesY)
	}

	tiles := buildTiles(make([]int, 16)...)
	for i := range tiles {
		tiles[i] = bytes.Repeat([]byte{byte(i)}, 100+i)
	}
	data := Build(Header{W: 4096, H: 4096, ShardSize: 1024}, tiles)

	h, err := ParseHeader(data)
	if err != nil {
		t.Fatal(err)
	}
	if h.W != 4096 || h.H != 4096 || h.ShardSize != 1024 {
		t.Fatalf("header = %+v", h)
	}

	k, err := TileCount(data)
	if err != nil {
		t.Fatal(err)
	}
	if k != 16 {
		t.Fatalf("k = %d, want 16", k)
	}

	if err := Validate(data); err != nil {
		t.Fatal(err)
	}
}

// S2 — non-divisible super-block: tile grid 1x3, k=3.
func TestBuildS2NonDivisibleGrid(t *testing.T) {
	tilesX, tilesY := Grid(904, 3000, 1000)
	if tilesX != 1 || tilesY != 3 {
		t.Fatalf("grid = %dx%d, want 1x3", tilesX, tilesY)
	}
}

// Invariant 1 & 2 (spec §8): strictly increasing offsets, payload_end
// equal to container size, and k derivable from payload_start_0 alone.
func TestOffsetsStrictlyIncreasing(t *testing.T) {
	tiles := buildTiles(10, 0, 250, 1)
	data := Build(Header{W: 10, H: 10, ShardSize: 10}, tiles)

	offs, err := Offsets(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(offs) != len(tiles)+1 {
		t.Fatalf("offsets len = %d, want %d", len(offs), len(tiles)+1)
	}
	for i := 1; i < len(offs); i++ {
		if offs[i] <= offs[i-1] {
			t.Fatalf("offsets not strictly increasing at %d: %v", i, offs)
		}
	}
	if offs[len(offs)-1] != uint64(len(data)) {
		t.Fatalf("payload_end %d != len(data) %d", offs[len(offs)-1], len(data))
	}
}

func TestValidateRejectsNonIncreasing(t *testing.T) {
	data := Build(Header{W: 1, H: 1, ShardSize: 1}, buildTiles(5))
	// Corrupt the second offset entry to equal the first.
	binary.LittleEndian.PutUint64(data[HeaderSize+8:HeaderSize+16], binary.LittleEndian.Uint64(data[HeaderSize:HeaderSize+8]))
	if err := Validate(data); err == nil {
		t.Fatal("expected Validate to reject a non-increasing offset table")
	}
}

// S3 — random access: reading the two offsets bounding tile 5 via
// OffsetPairByteRange/TileRange must match the tile A actually wrote.
func TestTileRandomAccess(t *testing.T) {
	sizes := make([]int, 16) // 4x4 grid
	for i := range sizes {
		sizes[i] = 1000 + i
	}
	tiles := buildTiles(sizes...)
	data := Build(Header{W: 4096, H: 4096, ShardSize: 1024}, tiles)

	s, e := OffsetPairByteRange(5)
	if e-s != 16 {
		t.Fatalf("offset pair range width = %d, want 16", e-s)
	}
	start, end, err := TileRange(data[s:e])
	if err != nil {
		t.Fatal(err)
	}
	got := data[start:end]
	want := tiles[5]
	if !bytes.Equal(got, want) {
		t.Fatalf("tile 5 mismatch: got %d bytes, want %d bytes", len(got), len(want))
	}
}

func TestTileRangeRejectsWrongLength(t *testing.T) {
	if _, _, err := TileRange(make([]byte, 8)); err == nil {
		t.Fatal("expected error for a non-16-byte offset pair")
	}
}
