// Package inodegraph owns the live inode table: the in-memory objects the
// dispatcher operates on, their lookup-count reference counting, and the
// materialization state machine that decides whether an inode's data
// comes from the content-addressed store or from the overlay.
//
// A deep InodeBase/FileInode/DirInode class hierarchy collapses here to a
// tagged variant rather than a Go interface hierarchy: Inode below is
// that tagged struct, Kind says which of File/Dir is populated, and
// capability methods on Inode dispatch internally instead of a caller
// doing a type switch everywhere.
package inodegraph

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/objhash"
	"github.com/auriora/edenfs/internal/overlay"
	"github.com/auriora/edenfs/internal/pathname"
)

// Kind discriminates which state an Inode carries.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
)

// ChildEntry is a DirInode's in-memory record of one child: the union of
// what the backing Tree says and what the overlay has overridden. Hash is
// only meaningful when Materialized is false; ChildInode is only
// meaningful when it is true, naming the overlay row the child's content
// lives under.
type ChildEntry struct {
	Mode         uint32
	Kind         model.Kind
	Materialized bool
	Hash         objhash.Hash
	ChildInode   inum.Number
}

// FileState is a FileInode's content and metadata, in one of two states:
// Loaded (content lives in the object store) or Materialized (content
// lives in the overlay). Only one half of the struct is meaningful at a
// time, selected by Materialized.
type FileState struct {
	Materialized bool

	// Loaded fields.
	BackingHash  objhash.Hash
	CachedBlob   *model.Blob
	CreationTime time.Time

	// Materialized fields.
	OverlayFile overlay.File
	Sha1Valid   bool
	CachedSha1  objhash.Hash

	// Common to both.
	ModeBits uint32
	Rdev     uint32
	ModTime  time.Time
}

// DirState is a DirInode's content: its merged entry set, whether it has
// diverged from TreeHash, and the Tree it was last derived from (nil for
// a directory created purely by mkdir, with no backing Tree at all).
type DirState struct {
	Materialized bool
	TreeHash     *objhash.Hash
	Entries      map[pathname.Component]ChildEntry
	ModeBits     uint32
	ModTime      time.Time
}

// Inode is one live node in the graph: either a file or a directory,
// never both. The per-inode lock guards State; lookupCount is a separate
// atomic so Forget doesn't need to take the state lock just to decrement
// a refcount.
type Inode struct {
	Number inum.Number

	lookupCount uint32 // atomic

	mu   sync.RWMutex
	kind Kind
	file *FileState
	dir  *DirState

	// openHandles counts FileHandle/DirHandle references into this inode,
	// independent of lookupCount: forget() must not evict while either is
	// nonzero.
	openHandles int32 // atomic
}

// NewFileInode constructs a live FileInode in the Loaded state.
func NewFileInode(number inum.Number, backingHash objhash.Hash, modeBits, rdev uint32) *Inode {
	return &Inode{
		Number: number,
		kind:   KindFile,
		file: &FileState{
			BackingHash:  backingHash,
			CreationTime: time.Now(),
			ModeBits:     modeBits,
			Rdev:         rdev,
		},
	}
}

// NewMaterializedFileInode constructs a live FileInode whose content
// already lives in the overlay (used by create/mknod, which never have a
// backing Tree entry to start from).
func NewMaterializedFileInode(number inum.Number, f overlay.File, modeBits, rdev uint32) *Inode {
	return &Inode{
		Number: number,
		kind:   KindFile,
		file: &FileState{
			Materialized: true,
			OverlayFile:  f,
			ModeBits:     modeBits,
			Rdev:         rdev,
		},
	}
}

// NewDirInode constructs a live DirInode backed by treeHash (nil for a
// directory with no backing Tree, i.e. created by mkdir).
func NewDirInode(number inum.Number, treeHash *objhash.Hash, entries map[pathname.Component]ChildEntry) *Inode {
	if entries == nil {
		entries = make(map[pathname.Component]ChildEntry)
	}
	return &Inode{
		Number: number,
		kind:   KindDir,
		dir: &DirState{
			TreeHash: treeHash,
			Entries:  entries,
			ModeBits: 0o040755,
			ModTime:  time.Now(),
		},
	}
}

// IsDir reports whether this inode is a directory.
func (n *Inode) IsDir() bool { return n.kind == KindDir }

// IncrLookup increments the kernel-visible lookup count by one, called
// whenever a fresh entry record naming this inode is handed to the
// kernel.
func (n *Inode) IncrLookup() {
	atomic.AddUint32(&n.lookupCount, 1)
}

// DecrLookup decrements the lookup count by n (a FORGET's reported
// count) and reports the value after decrementing.
func (n *Inode) DecrLookup(count uint64) uint32 {
	for {
		old := atomic.LoadUint32(&n.lookupCount)
		var next uint32
		if uint64(old) <= count {
			next = 0
		} else {
			next = old - uint32(count)
		}
		if atomic.CompareAndSwapUint32(&n.lookupCount, old, next) {
			return next
		}
	}
}

// LookupCount reads the current lookup count.
func (n *Inode) LookupCount() uint32 {
	return atomic.LoadUint32(&n.lookupCount)
}

// IncrOpenHandles/DecrOpenHandles track how many FileHandle/DirHandle
// objects reference this inode, independent of the kernel's lookup count.
func (n *Inode) IncrOpenHandles() { atomic.AddInt32(&n.openHandles, 1) }
func (n *Inode) DecrOpenHandles() { atomic.AddInt32(&n.openHandles, -1) }
func (n *Inode) OpenHandleCount() int32 {
	return atomic.LoadInt32(&n.openHandles)
}

// EvictionEligible reports whether the inode can be dropped from the live
// map: zero lookup count and zero open handles.
func (n *Inode) EvictionEligible() bool {
	return n.LookupCount() == 0 && n.OpenHandleCount() == 0
}

// Lock/RLock/Unlock/RUnlock expose the per-inode state lock directly so
// callers can hold it across a short multi-field read or write without
// this package having to offer an accessor for every field. Mutating
// operations (write, setattr, rename participant) take the exclusive
// lock; concurrent reads share the RLock.
func (n *Inode) Lock()    { n.mu.Lock() }
func (n *Inode) Unlock()  { n.mu.Unlock() }
func (n *Inode) RLock()   { n.mu.RLock() }
func (n *Inode) RUnlock() { n.mu.RUnlock() }

// File returns the FileState pointer. Callers must hold at least RLock.
// Panics if this Inode is a directory; callers are expected to check
// IsDir first, exactly as a kernel handler checks file type before
// dispatch.
func (n *Inode) File() *FileState {
	if n.kind != KindFile {
		panic("inodegraph: File() called on a directory inode")
	}
	return n.file
}

// Dir returns the DirState pointer. Callers must hold at least RLock.
func (n *Inode) Dir() *DirState {
	if n.kind != KindDir {
		panic("inodegraph: Dir() called on a file inode")
	}
	return n.dir
}
