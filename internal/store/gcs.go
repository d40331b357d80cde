package store

import (
	"context"
	"io"

	gcs "cloud.google.com/go/storage"
	"github.com/pkg/errors"
)

// Client wraps a single *storage.Client shared across every request
// and every worker goroutine spawned by align/cube — the SDK's client
// is safe for concurrent use, so unlike the per-worker client the
// original Python process creates, one reference-counted instance is
// opened for the life of the server (spec §9, "Global state").
type Client struct {
	sc *gcs.Client
}

// NewClient opens the shared GCS client. Call once at process start.
func NewClient(ctx context.Context) (*Client, error) {
	sc, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "opening storage client")
	}
	return &Client{sc: sc}, nil
}

// Close releases the underlying client's resources.
func (c *Client) Close() error { return c.sc.Close() }

// Bucket returns a Blobstore scoped to a single bucket name.
func (c *Client) Bucket(name string) Bucket {
	return Bucket{Blobstore: &gcsBucket{bkt: c.sc.Bucket(name), name: name}, Name: name}
}

type gcsBucket struct {
	bkt  *gcs.BucketHandle
	name string
}

func (b *gcsBucket) Get(ctx context.Context, name string) ([]byte, error) {
	return b.GetRange(ctx, name, 0, -1)
}

func (b *gcsBucket) GetRange(ctx context.Context, name string, start, end int64) ([]byte, error) {
	var length int64 = -1
	if end >= 0 {
		length = end - start
		if length < 0 {
			return nil, errors.Errorf("invalid range [%d,%d) for %s", start, end, name)
		}
	}
	r, err := b.bkt.Object(name).NewRangeReader(ctx, start, length)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, &NotFoundError{Name: name}
		}
		return nil, errors.Wrapf(err, "opening reader for %s", name)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	if length >= 0 && int64(len(data)) != length {
		return nil, errors.Errorf("truncated read of %s: wanted %d bytes, got %d", name, length, len(data))
	}
	return data, nil
}

func (b *gcsBucket) Put(ctx context.Context, name string, data []byte, contentType string) error {
	w := b.bkt.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return errors.Wrapf(err, "writing %s", name)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "closing writer for %s", name)
	}
	return nil
}
