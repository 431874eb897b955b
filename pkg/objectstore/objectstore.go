// Package objectstore implements the durable object store facade: a
// domain-partitioned, compression-aware, CID-verifying layer over a
// pluggable backend Store.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	cidpkg "github.com/cimkit/ipldstore/pkg/cid"
)

// ErrNotFound is returned by a Store when a key does not exist.
var ErrNotFound = errors.New("object not found")

// ErrCidMismatch is returned by the facade when the bytes read back from
// the backend don't hash to the CID they were filed under.
type ErrCidMismatch struct {
	Expected cidpkg.Cid
	Actual   cidpkg.Cid
}

func (e ErrCidMismatch) Error() string {
	return fmt.Sprintf("object store: content at %s actually hashes to %s", e.Expected, e.Actual)
}

// Store is the backend a Facade is built on: a flat, bucket-scoped
// key/value blob store. Implementations live in-package (for tests) or
// under objectstore/awsstore (S3 + DynamoDB).
type Store interface {
	// Put writes data under key within bucket, creating the bucket
	// implicitly if the backend requires no prior provisioning.
	Put(ctx context.Context, bucket, key string, data []byte) error
	// Get reads the bytes filed under key within bucket. Returns
	// ErrNotFound if absent.
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// Delete removes key from bucket. It is not an error if the key is
	// already absent.
	Delete(ctx context.Context, bucket, key string) error
	// List returns every key in bucket, optionally restricted to those
	// with the given prefix.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}
