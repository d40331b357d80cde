package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ngalign/ngalign/internal/container"
	"github.com/ngalign/ngalign/internal/imaging"
	"github.com/ngalign/ngalign/internal/store"
)

type fakeStores struct {
	buckets map[string]*store.Memory
}

func newFakeStores() *fakeStores {
	return &fakeStores{buckets: make(map[string]*store.Memory)}
}

func (f *fakeStores) Bucket(name string) store.Bucket {
	b, ok := f.buckets[name]
	if !ok {
		b = store.NewMemory()
		f.buckets[name] = b
	}
	return store.Bucket{Blobstore: b, Name: name}
}

func postJSON(t *testing.T, h http.Handler, path string, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandleAlignedSliceSuccess(t *testing.T) {
	stores := newFakeStores()
	g := imaging.NewGray8(256, 256)
	var buf bytes.Buffer
	if err := imaging.EncodePNG(&buf, g); err != nil {
		t.Fatal(err)
	}
	if err := stores.Bucket("dest").Put(context.Background(), "raw/s.png", buf.Bytes(), "image/png"); err != nil {
		t.Fatal(err)
	}

	srv := NewServer(stores)
	rr := postJSON(t, srv.Routes(), "/alignedslice", map[string]interface{}{
		"img": "s.png", "dest": "dest", "dest-tmp": "tmp",
		"transform": "[1,0,0,1,0,0]", "bbox": "[256,256]",
		"slice": "9", "shard-size": 256,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if rr.Body.String() != "success" {
		t.Fatalf("body = %q, want success", rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/html" {
		t.Fatalf("Content-Type = %q, want text/html", ct)
	}
	if _, err := stores.Bucket("tmp").Get(context.Background(), "9_0_0"); err != nil {
		t.Fatalf("expected container 9_0_0 to be written: %v", err)
	}
}

func TestHandleAlignedSliceMalformedTransform(t *testing.T) {
	stores := newFakeStores()
	srv := NewServer(stores)
	rr := postJSON(t, srv.Routes(), "/alignedslice", map[string]interface{}{
		"img": "s.png", "dest": "dest", "dest-tmp": "tmp",
		"transform": "not json", "bbox": "[256,256]",
		"slice": 1, "shard-size": 256,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	// alignedslice reports a message only, not a stack trace.
	if strings.Contains(rr.Body.String(), "\n\t") {
		t.Fatalf("alignedslice error body should be message-only, got %q", rr.Body.String())
	}
}

func TestHandleNgMetaRejectsWrongShardSize(t *testing.T) {
	stores := newFakeStores()
	srv := NewServer(stores)
	rr := postJSON(t, srv.Routes(), "/ngmeta", map[string]interface{}{
		"dest": "dest", "minz": 0, "maxz": 100, "resolution": 8,
		"bbox": "[2048,2048]", "shard-size": 512, "writeRaw": "false",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for shard-size != 1024", rr.Code)
	}
}

func TestHandleNgMetaSuccess(t *testing.T) {
	stores := newFakeStores()
	srv := NewServer(stores)
	rr := postJSON(t, srv.Routes(), "/ngmeta", map[string]interface{}{
		"dest": "dest", "minz": 0, "maxz": 2047, "resolution": 8,
		"bbox": "[2048,2048]", "shard-size": 1024, "writeRaw": "true",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if _, err := stores.Bucket("dest").Get(context.Background(), "neuroglancer/jpeg/info"); err != nil {
		t.Fatalf("expected jpeg/info to be written: %v", err)
	}
	if _, err := stores.Bucket("dest").Get(context.Background(), "neuroglancer/raw/info"); err != nil {
		t.Fatalf("expected raw/info to be written when writeRaw=true: %v", err)
	}
}

func TestHandleNgShardErrorIsStackTrace(t *testing.T) {
	stores := newFakeStores()
	srv := NewServer(stores)
	// "source" bucket holds no containers, so the cube fetch fails;
	// ngshard's error body must carry the full "%+v" stack trace.
	rr := postJSON(t, srv.Routes(), "/ngshard", map[string]interface{}{
		"dest": "dest", "source": "source", "start": []int{0, 0, 0},
		"minz": 0, "maxz": 0, "bbox": "[2000,2000]",
		"shard-size": 1024, "writeRaw": "false",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "\n") {
		t.Fatalf("ngshard error body should contain a multi-line stack trace, got %q", rr.Body.String())
	}
}

func TestHandleNgShardSuccess(t *testing.T) {
	stores := newFakeStores()
	g := imaging.NewGray8(100, 100)
	var buf bytes.Buffer
	if err := imaging.EncodePNG(&buf, g); err != nil {
		t.Fatal(err)
	}
	data := container.Build(container.Header{W: 100, H: 100, ShardSize: 1024}, [][]byte{buf.Bytes()})
	if err := stores.Bucket("source").Put(context.Background(), "0_0_0", data, "application/octet-stream"); err != nil {
		t.Fatal(err)
	}

	srv := NewServer(stores)
	rr := postJSON(t, srv.Routes(), "/ngshard", map[string]interface{}{
		"dest": "dest", "source": "source", "start": []int{0, 0, 0},
		"minz": 0, "maxz": 0, "bbox": "[100,100]",
		"shard-size": 1024, "writeRaw": "false",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestCORSPreflightIsPermissive(t *testing.T) {
	stores := newFakeStores()
	srv := NewServer(stores)
	req := httptest.NewRequest(http.MethodOptions, "/alignedslice", nil)
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if rr.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS status = %d, want 204", rr.Code)
	}
}
