// Package store treats the object store as a byte-range blob store:
// get(name, [start,end)), get(name) (the whole object), and
// put(name, bytes). Everything above this package is written against
// the Blobstore interface; internal/store/gcs.go is the only file that
// knows about Google Cloud Storage, matching the original service's
// use of google.cloud.storage (see original_source/emwrite_docker).
package store

import (
	"context"

	"github.com/ngalign/ngalign/internal/apierr"
)

// Blobstore is the minimal object-store surface the core depends on.
// A single client should be shared (ref-counted) across workers when
// the underlying SDK is concurrency-safe, per spec §9 "Global state".
type Blobstore interface {
	// Get downloads the full object named name.
	Get(ctx context.Context, name string) ([]byte, error)
	// GetRange downloads the half-open byte range [start, end) of the
	// object named name. end == -1 means "to the end of the object".
	GetRange(ctx context.Context, name string, start, end int64) ([]byte, error)
	// Put uploads data as name, overwriting any existing object.
	Put(ctx context.Context, name string, data []byte, contentType string) error
}

// Bucket pairs a Blobstore with the bucket name it was opened against,
// for the handful of call sites that need to log or key on it.
type Bucket struct {
	Blobstore
	Name string
}

// NotFoundError is returned by implementations when the named object
// does not exist; helpers here wrap it as apierr.StorageFailure.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string { return "object not found: " + e.Name }

// WrapStorage tags err as apierr.StorageFailure with msg context. It
// is a thin convenience so call sites in align/cube/pyramid don't each
// need to import apierr directly for this one common case.
func WrapStorage(err error, msg string) error {
	return apierr.Wrap(apierr.StorageFailure, err, msg)
}
