package cube

import (
	"bytes"
	"context"
	"testing"

	"github.com/ngalign/ngalign/internal/container"
	"github.com/ngalign/ngalign/internal/imaging"
	"github.com/ngalign/ngalign/internal/store"
)

func TestTileLocationSingleSuperblock(t *testing.T) {
	bx, by, idx := tileLocation(0, 0, 1024, 2000)
	if bx != 0 || by != 0 || idx != 0 {
		t.Fatalf("tileLocation(0,0) = (%d,%d,%d), want (0,0,0)", bx, by, idx)
	}

	// Second tile column within the same super-block (cube column
	// index 1 => pixel x = 1*1024 = 1024).
	bx, by, idx = tileLocation(1, 0, 1024, 2000)
	if bx != 0 || by != 0 || idx != 1 {
		t.Fatalf("tileLocation(1,0) = (%d,%d,%d), want (0,0,1)", bx, by, idx)
	}
}

func TestTileLocationCrossesSuperblock(t *testing.T) {
	// Cube column index 4 => pixel x = 4*1024 = 4096, the start of the
	// second super-block column.
	bx, by, _ := tileLocation(4, 0, 1024, 8192)
	if bx != 1 || by != 0 {
		t.Fatalf("tileLocation crossing a super-block boundary = (%d,%d), want (1,0)", bx, by)
	}
}

func TestValidateRejectsShardSizeOtherThan1024(t *testing.T) {
	cfg := Config{ShardSize: 512, MinZ: 0, MaxZ: 0, CZ: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected shard-size 512 to be rejected")
	}
}

func TestValidateRejectsEmptyZRange(t *testing.T) {
	// cz*1024 = 2048, clipped range [2048,3071] does not intersect [0,100].
	cfg := Config{ShardSize: 1024, CZ: 2, MinZ: 0, MaxZ: 100}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an out-of-range cube to fail with RequestMalformed")
	}
}

func tilePNG(t *testing.T, w, h int, fill byte) []byte {
	t.Helper()
	g := imaging.NewGray8(w, h)
	for i := range g.Pix {
		g.Pix[i] = fill
	}
	var buf bytes.Buffer
	if err := imaging.EncodePNG(&buf, g); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// buildSuperblockContainer mirrors internal/align's tile enumeration
// (y-outer, x-inner) for a 2000x2000 image at shard-size 1024 so
// fetchTile's two-offset read lines up with tileLocation's index math.
func buildSuperblockContainer(t *testing.T) []byte {
	t.Helper()
	tiles := [][]byte{
		tilePNG(t, 1024, 1024, 10), // (tx=0,ty=0)
		tilePNG(t, 976, 1024, 20),  // (tx=1,ty=0)
		tilePNG(t, 1024, 976, 30),  // (tx=0,ty=1)
		tilePNG(t, 976, 976, 40),   // (tx=1,ty=1)
	}
	return container.Build(container.Header{W: 2000, H: 2000, ShardSize: 1024}, tiles)
}

// S4 — cube assembly: cx=cy=cz=0, minz=maxz=0, W=H=2000, shard-size
// 1024. Only slice 0 is fetched; the resulting cube is clipped to the
// tile's actual 1024x1024 dimensions.
func TestRunS4CubeAssembly(t *testing.T) {
	mem := store.NewMemory()
	bucket := store.Bucket{Blobstore: mem, Name: "tmp"}
	if err := bucket.Put(context.Background(), "0_0_0", buildSuperblockContainer(t), "application/octet-stream"); err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Source: bucket, CX: 0, CY: 0, CZ: 0,
		MinZ: 0, MaxZ: 0, W: 2000, H: 2000, ShardSize: 1024,
	}
	result, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if result.ZStart != 0 || result.ZFinish != 0 {
		t.Fatalf("z-range = [%d,%d], want [0,0]", result.ZStart, result.ZFinish)
	}
	if result.Cube.NX != 1024 || result.Cube.NY != 1024 || result.Cube.NZ != 1 {
		t.Fatalf("cube shape = %dx%dx%d, want 1024x1024x1", result.Cube.NX, result.Cube.NY, result.Cube.NZ)
	}
	if result.Cube.At(0, 0, 0) != 10 {
		t.Fatalf("cube voxel = %d, want 10", result.Cube.At(0, 0, 0))
	}
}
