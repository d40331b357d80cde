package align

import (
	"bytes"
	"context"
	"testing"

	"github.com/ngalign/ngalign/internal/container"
	"github.com/ngalign/ngalign/internal/imaging"
	"github.com/ngalign/ngalign/internal/store"
)

type memStores struct {
	buckets map[string]*store.Memory
}

func newMemStores(names ...string) *memStores {
	m := &memStores{buckets: make(map[string]*store.Memory)}
	for _, n := range names {
		m.buckets[n] = store.NewMemory()
	}
	return m
}

func (m *memStores) Bucket(name string) store.Bucket {
	b, ok := m.buckets[name]
	if !ok {
		b = store.NewMemory()
		m.buckets[name] = b
	}
	return store.Bucket{Blobstore: b, Name: name}
}

func putRawSlice(t *testing.T, stores *memStores, destBucket, name string, w, h int) {
	t.Helper()
	g := imaging.NewGray8(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Set(x, y, byte((x+y)%256))
		}
	}
	var buf bytes.Buffer
	if err := imaging.EncodePNG(&buf, g); err != nil {
		t.Fatal(err)
	}
	if err := stores.Bucket(destBucket).Put(context.Background(), "raw/"+name, buf.Bytes(), "image/png"); err != nil {
		t.Fatal(err)
	}
}

func TestValidateAcceptsNonDivisorShardSize(t *testing.T) {
	// alignedslice has no divisor requirement on shard-size (spec §8
	// scenario S2 runs it at 1000 against a 4096 super-block).
	cfg := Config{W: 100, H: 100, ShardSize: 300}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected 300 to be accepted, got %v", err)
	}
}

func TestValidateRejectsNonPositiveShardSize(t *testing.T) {
	cfg := Config{W: 100, H: 100, ShardSize: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected a zero shard-size to be rejected")
	}
}

func TestValidateRejectsNonPositiveBBox(t *testing.T) {
	cfg := Config{W: 0, H: 100, ShardSize: 1024}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected a zero width to be rejected")
	}
}

// S1 — identity affine over a 4096x4096 slice: one container "7_0_0"
// with k=16, and a thumbnail written at full resolution (factor=1).
func TestRunS1IdentityAffine(t *testing.T) {
	stores := newMemStores("dest", "tmp")
	putRawSlice(t, stores, "dest", "slice7.png", 4096, 4096)

	cfg := Config{
		Img: "slice7.png", Dest: "dest", DestTmp: "tmp",
		Transform: imaging.Affine{A: 1, D: 1},
		W: 4096, H: 4096, Slice: 7, ShardSize: 1024,
	}
	if err := Run(context.Background(), stores, cfg); err != nil {
		t.Fatal(err)
	}

	tmp := stores.buckets["tmp"]
	data, err := tmp.Get(context.Background(), "7_0_0")
	if err != nil {
		t.Fatal(err)
	}
	k, err := container.TileCount(data)
	if err != nil {
		t.Fatal(err)
	}
	if k != 16 {
		t.Fatalf("tile count = %d, want 16", k)
	}
	if err := container.Validate(data); err != nil {
		t.Fatal(err)
	}

	dest := stores.buckets["dest"]
	thumb, err := dest.Get(context.Background(), "align/slice7.png")
	if err != nil {
		t.Fatal(err)
	}
	img, err := imaging.DecodeGray8(bytes.NewReader(thumb), 0)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 4096 || img.Height != 4096 {
		t.Fatalf("thumbnail size = %dx%d, want 4096x4096 (factor 1)", img.Width, img.Height)
	}
}

// S2 — non-divisible dimensions produce a 2x1 super-block grid.
func TestRunS2NonDivisibleDims(t *testing.T) {
	stores := newMemStores("dest", "tmp")
	putRawSlice(t, stores, "dest", "sliceA.png", 5000, 3000)

	cfg := Config{
		Img: "sliceA.png", Dest: "dest", DestTmp: "tmp",
		Transform: imaging.Affine{A: 1, D: 1},
		W: 5000, H: 3000, Slice: 3, ShardSize: 1000,
	}
	if err := Run(context.Background(), stores, cfg); err != nil {
		t.Fatal(err)
	}

	tmp := stores.buckets["tmp"]
	for _, name := range []string{"3_0_0", "3_1_0"} {
		if _, err := tmp.Get(context.Background(), name); err != nil {
			t.Fatalf("expected container %s to exist: %v", name, err)
		}
	}

	data, err := tmp.Get(context.Background(), "3_1_0")
	if err != nil {
		t.Fatal(err)
	}
	k, err := container.TileCount(data)
	if err != nil {
		t.Fatal(err)
	}
	if k != 3 {
		t.Fatalf("tile count for the trailing super-block = %d, want 3", k)
	}
}
