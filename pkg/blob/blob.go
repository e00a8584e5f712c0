// Package blob defines where prepared artifacts are written.
//
// A Store is a flat key/value sink. The filesystem store is the primary
// output directory; the S3 store publishes the same artifacts to a bucket;
// Multi fans a write out to several stores.
package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/YuminosukeSato/diamondprep/pkg/errors"
)

// Driver identifies a Store implementation.
type Driver string

const (
	// DriverFilesystem writes under a local directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 writes to an S3 or MinIO compatible bucket.
	DriverS3 Driver = "s3"
	// DriverMulti fans out to several stores.
	DriverMulti Driver = "multi"
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string            // MIME type, optional
	Metadata    map[string]string // user metadata, small and flat
}

// Info describes a stored artifact.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	// Location is a path or URL a person can use to find the artifact.
	Location string `json:"location,omitempty"`
}

// Store persists artifacts. Put replaces any existing artifact with the same key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Driver() Driver
}

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("blob: not found")

// validateKey rejects keys that could escape a store root.
func validateKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.NewValidationError("key", "empty key", key)
	}
	if strings.HasPrefix(key, "/") {
		return "", errors.NewValidationError("key", "absolute key", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", errors.NewValidationError("key", "key contains '..'", key)
		}
	}
	return key, nil
}

func cloneMetadata(md map[string]string) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// MultiStore writes every artifact to each of its stores in order.
// Reads are served by the first store.
type MultiStore struct {
	stores []Store
}

// Multi combines stores. The first store is the primary: its Info is
// returned from Put and it serves Get.
func Multi(primary Store, others ...Store) *MultiStore {
	return &MultiStore{stores: append([]Store{primary}, others...)}
}

// Stores returns the combined stores, primary first.
func (m *MultiStore) Stores() []Store {
	return append([]Store(nil), m.stores...)
}

func (m *MultiStore) Driver() Driver { return DriverMulti }

// Put buffers r once and writes it to every store. The first failure stops
// the fan-out; stores already written keep their copy.
func (m *MultiStore) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, errors.Wrapf(err, "buffer %s", key)
	}
	var primary Info
	for i, s := range m.stores {
		info, err := s.Put(ctx, key, bytes.NewReader(data), opts)
		if err != nil {
			return Info{}, errors.Wrapf(err, "%s store", s.Driver())
		}
		if i == 0 {
			primary = info
		}
	}
	return primary, nil
}

func (m *MultiStore) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	return m.stores[0].Get(ctx, key)
}
