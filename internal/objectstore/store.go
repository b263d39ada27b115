// Package objectstore defines the read-only content-addressed lookup the
// engine consumes, plus a pluggable bbolt-backed implementation suitable
// for a single-host mount. The revision-control import tool that actually
// populates the store is out of scope; this package only needs to read
// what it wrote.
package objectstore

import (
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/objhash"
)

// Store is the read-only interface the inode graph consumes. Reads are
// effectively immutable per hash: any retry of the same lookup must
// produce byte-identical results.
type Store interface {
	GetTree(hash objhash.Hash) (*model.Tree, error)
	GetBlob(hash objhash.Hash) (*model.Blob, error)
	// GetSha1ForBlob returns the content SHA-1 of the blob referenced by
	// hash, which may differ from hash itself when the backend uses
	// opaque ids rather than content hashes directly.
	GetSha1ForBlob(hash objhash.Hash) (objhash.Hash, error)
}

// Writer is consumed only by the (out of scope) import path; it is defined
// here so a backend can implement both interfaces without a second home
// for the method.
type Writer interface {
	PutTree(hash objhash.Hash, serialized []byte) error
	PutBlob(data []byte) (objhash.Hash, error)
}
