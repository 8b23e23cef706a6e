// Package objstore is the object-store boundary of the publisher. It
// defines only the operations and headers the pipeline requires, not a
// general client.
package objstore

import "context"

// UploadOptions carries the per-object headers set at upload time.
// Transport hints (content-encoding, display filename) live only here;
// they are never persisted into the build ledger.
type UploadOptions struct {
	ACL                string
	CacheControl       string
	ContentEncoding    string
	ContentDisposition string
}

// Store is a remote object store scoped to a single bucket.
type Store interface {
	// Exists reports whether an object is already present at key.
	Exists(ctx context.Context, key string) (bool, error)

	// Upload stores the file at path under key with the given headers.
	Upload(ctx context.Context, key, path string, opts UploadOptions) error
}
