// Package overlay implements the durable per-mount store of materialized
// directory content and file bodies: the engine's record of everything
// that has diverged from the backing Tree/Blob store. Two backends are
// provided, covering two common layouts: a flat-file
// layout sharded by inode number (ShardedFileOverlay) and a SQL-backed
// key-value layout (SQLOverlay). Only the SQL backend can perform
// semantic child operations transactionally; callers must check
// SupportsSemanticOperations before relying on them.
package overlay

import (
	"time"

	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/objhash"
	"github.com/auriora/edenfs/internal/pathname"
)

// DirEntry records one child of a materialized directory row: either a
// link to an unmaterialized object-store child (ChildHash set) or a
// materialized child with its own overlay row, identified by ChildInode
// (mirroring how a real directory entry carries its target's inode
// number).
type DirEntry struct {
	Mode         uint32
	Kind         model.Kind
	Materialized bool
	ChildHash    *objhash.Hash
	ChildInode   inum.Number
}

// Dir is the persisted entry set of one materialized directory.
type Dir struct {
	Entries map[pathname.Component]DirEntry
}

// NewDir returns an empty directory row.
func NewDir() *Dir {
	return &Dir{Entries: make(map[pathname.Component]DirEntry)}
}

// Timestamp is a {seconds, nanoseconds} pair, matching the wire format the
// overlay file header stores it in.
type Timestamp struct {
	Seconds     int64
	Nanoseconds uint32
}

// FromTime converts a time.Time to the on-disk Timestamp representation.
func FromTime(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanoseconds: uint32(t.Nanosecond())}
}

// Time converts back to a time.Time.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanoseconds))
}

// HeaderTag distinguishes a file body from a directory row in the fixed
// overlay file header.
type HeaderTag uint8

const (
	TagFile HeaderTag = iota + 1
	TagDir
)

// HeaderVersion is the current overlay file header format version.
const HeaderVersion uint32 = 1

// Header is the fixed-length prefix every overlay file body begins with
// Readers must skip exactly this many bytes before the first
// body byte; writers must emit it.
type Header struct {
	Tag     HeaderTag
	Version uint32
	Atime   Timestamp
	Mtime   Timestamp
	Ctime   Timestamp
}

// HeaderSize is the encoded size of Header in bytes: 1 (tag) + 4 (version)
// + 3*(8+4) (three {seconds,nanoseconds} timestamps).
const HeaderSize = 1 + 4 + 3*(8+4)

// File is an open overlay file body. Positional I/O is used throughout so
// the same descriptor can be shared across concurrent handlers without
// racing on the file's seek position.
type File interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Truncate(size int64) error
	Size() (int64, error)
	Sync() error
	Close() error
}

// Backend is the persistence contract a materialized mount's overlay
// fulfills. Operations are safe for concurrent use; the SQL backend
// serializes writers internally, the sharded file backend installs each
// row by writing a temporary file and renaming it, and guards
// load-and-remove and xattr updates with an in-process mutex.
type Backend interface {
	// Init opens (creating if requested) the overlay and returns the
	// persisted next-inode-number watermark if the overlay was shut down
	// cleanly, or nil to signal the caller that a consistency check is
	// required before use.
	Init(createIfMissing bool) (*inum.Number, error)
	// Close persists the next-id watermark and releases resources.
	Close(nextInodeNumber inum.Number) error

	LoadDir(id inum.Number) (*Dir, error)
	SaveDir(id inum.Number, dir *Dir) error
	// LoadAndRemoveDir performs an atomic read-then-remove.
	LoadAndRemoveDir(id inum.Number) (*Dir, error)
	// RemoveDir refuses with fserrors.NotEmpty if the row is non-empty.
	RemoveDir(id inum.Number) error
	HasDir(id inum.Number) (bool, error)

	// SupportsSemanticOperations reports whether AddChild/RemoveChild/
	// HasChild/RenameChild are implemented. Callers must check this
	// before calling them and fall back to read-modify-write via
	// LoadDir/SaveDir when it is false.
	SupportsSemanticOperations() bool
	AddChild(parent inum.Number, name pathname.Component, entry DirEntry) error
	RemoveChild(parent inum.Number, name pathname.Component) error
	HasChild(parent inum.Number, name pathname.Component) (bool, error)
	// RenameChild moves (src, srcName) to (dst, dstName) as a single
	// transaction: destination overwrite, source removal, and the rename
	// itself all commit or fail together.
	RenameChild(src, dst inum.Number, srcName, dstName pathname.Component) error

	CreateOverlayFile(id inum.Number, initial []byte) (File, error)
	// OpenOverlayFile opens an existing file body, verifying its header
	// tag matches expectedTag.
	OpenOverlayFile(id inum.Number, expectedTag HeaderTag) (File, error)
	OpenOverlayFileNoVerify(id inum.Number) (File, error)
	RemoveFile(id inum.Number) error

	// ForEachDir and ForEachFile enumerate every persisted row, used by
	// the consistency checker. The callback's id is the inode number the
	// row is keyed by.
	ForEachDir(fn func(id inum.Number, dir *Dir) error) error
	ForEachFile(fn func(id inum.Number) error) error

	// GetXattr/SetXattr/ListXattr/RemoveXattr store arbitrary extended
	// attributes against a materialized file's overlay row, independent
	// of the file body itself. GetXattr fails with fserrors.NoAttribute
	// if name is not set. The reserved name user.sha1 is written here by
	// the engine's own cached-digest logic exactly as any other caller's
	// xattr would be.
	GetXattr(id inum.Number, name string) ([]byte, error)
	SetXattr(id inum.Number, name string, value []byte) error
	ListXattr(id inum.Number) ([]string, error)
	RemoveXattr(id inum.Number, name string) error
}
