// Package handle implements the open file/directory handle table: 64-bit
// handle ids allocated collision-free, type-discriminated lookup, and the
// serialize/restore pair graceful restart needs to hand handles to a
// successor process.
package handle

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
)

// maxAllocAttempts bounds how many times Open retries a colliding id
// before giving up with fserrors.Exhausted.
const maxAllocAttempts = 100

// Kind discriminates what an id in the table refers to.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
)

// entry is the table's internal record: the inode, the handle kind, and
// the caller's value, which is opaque to this package.
type entry struct {
	inode inum.Number
	kind  Kind
	value interface{} // the *FileHandle or *DirHandle the caller installed
}

// Map allocates and tracks open handle ids. Safe for concurrent use.
type Map struct {
	mu      sync.RWMutex
	entries map[uint64]*entry
}

// NewMap returns an empty handle table.
func NewMap() *Map {
	return &Map{entries: make(map[uint64]*entry)}
}

// Open allocates a fresh handle id for inode and records value and kind
// under it. An address-based allocation strategy doesn't apply to a
// garbage-collected runtime with no stable object address, so this
// implementation uses a random 64-bit id and retries on collision.
func (m *Map) Open(inode inum.Number, kind Kind, value interface{}) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for attempt := 0; attempt < maxAllocAttempts; attempt++ {
		id := randomID()
		if id == 0 {
			continue
		}
		if _, exists := m.entries[id]; exists {
			continue
		}
		m.entries[id] = &entry{inode: inode, kind: kind, value: value}
		return id, nil
	}
	return 0, fserrors.New(fserrors.Exhausted, "could not allocate a unique file handle id")
}

func randomID() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(buf[:])
}

// GetFile retrieves a file handle's value. Fails with fserrors.IsDir if id
// names a directory handle, fserrors.BadHandle if id is unknown.
func (m *Map) GetFile(id uint64) (interface{}, inum.Number, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, 0, fserrors.New(fserrors.BadHandle, "unknown file handle")
	}
	if e.kind != KindFile {
		return nil, 0, fserrors.New(fserrors.IsDir, "handle refers to a directory")
	}
	return e.value, e.inode, nil
}

// GetDir retrieves a directory handle's value. Fails with fserrors.NotDir
// if id names a file handle, fserrors.BadHandle if id is unknown.
func (m *Map) GetDir(id uint64) (interface{}, inum.Number, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, 0, fserrors.New(fserrors.BadHandle, "unknown directory handle")
	}
	if e.kind != KindDir {
		return nil, 0, fserrors.New(fserrors.NotDir, "handle refers to a file")
	}
	return e.value, e.inode, nil
}

// Close removes id from the table. Closing an unknown id is a no-op; the
// kernel's own accounting is assumed authoritative.
func (m *Map) Close(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

// Len reports the number of open handles, for diagnostics.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// SerializedHandle is one row of a graceful-restart handle dump.
type SerializedHandle struct {
	HandleID    uint64
	InodeNumber inum.Number
	IsDir       bool
}

// Serialize returns every open handle as a {handle_id, inode_number,
// is_dir} triple and empties the table, releasing the stored values so
// the caller's own teardown (closing fds, dropping Inode references) runs
// in a predictable order. The opaque per-handle value is not part of the
// serialized form; a restart target rebuilds it from InodeNumber.
func (m *Map) Serialize() []SerializedHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SerializedHandle, 0, len(m.entries))
	for id, e := range m.entries {
		out = append(out, SerializedHandle{
			HandleID:    id,
			InodeNumber: e.inode,
			IsDir:       e.kind == KindDir,
		})
	}
	m.entries = make(map[uint64]*entry)
	return out
}

// Restore inserts a specific id-to-handle binding without re-allocating,
// used when a successor process adopts a predecessor's open handle table.
func (m *Map) Restore(id uint64, inode inum.Number, kind Kind, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = &entry{inode: inode, kind: kind, value: value}
}
