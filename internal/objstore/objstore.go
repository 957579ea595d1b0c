// Package objstore abstracts the object store holding source documents,
// chunk records, and translated output. Keys follow a fixed schema; see
// keys.go.
package objstore

import "context"

// Object is a stored body plus its sidecar metadata.
type Object struct {
	Body     []byte
	Metadata map[string]string
}

// Metadata keys required on source objects. A source object missing any
// of them is a fatal chunking error.
const (
	MetaUserID = "userid"
	MetaJobID  = "jobid"
	MetaFileID = "fileid"
)

// Store is the object-store contract. Get returns a not_found error for
// missing keys; transient backend failures surface as storage errors.
// Put overwrites existing objects.
type Store interface {
	Get(ctx context.Context, key string) (*Object, error)
	Put(ctx context.Context, key string, body []byte, metadata map[string]string) error
}
