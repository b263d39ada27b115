// Package nameid implements the global assignment of inode numbers and the
// bidirectional (parent, name) <-> id mapping every live NameNode
// participates in. It knows nothing about inode contents; InodeGraph is
// the layer that attaches FileInode/DirInode state to the ids this
// package hands out.
package nameid

import (
	"sync"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/pathname"
)

// Node is one (parent, name) -> id binding. The zero Node is never valid;
// every live binding has a non-zero Generation.
type Node struct {
	Parent     inum.Number
	Name       pathname.Component
	ID         inum.Number
	Generation inum.Generation
}

type nameKey struct {
	parent inum.Number
	name   pathname.Component
}

// Manager owns the indexed set of NameNodes, keyed both by id and by
// (parent, name), plus the monotonic id allocator and its wraparound
// generation counter. All methods are safe for concurrent use.
type Manager struct {
	mu sync.RWMutex

	byID   map[inum.Number]*Node
	byName map[nameKey]*Node

	nextID     inum.Number
	generation inum.Generation
}

// NewManager returns an empty Manager whose allocator starts just past
// the root inode (number 1). The root is registered in neither index;
// callers special-case inum.Root instead of looking it up.
func NewManager() *Manager {
	m := &Manager{
		byID:       make(map[inum.Number]*Node),
		byName:     make(map[nameKey]*Node),
		nextID:     inum.Root + 1,
		generation: 1,
	}
	return m
}

// GetNodeByID looks up a NameNode by its id.
func (m *Manager) GetNodeByID(id inum.Number) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.byID[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// GetNodeByName looks up a NameNode by (parent, name) without allocating.
func (m *Manager) GetNodeByName(parent inum.Number, name pathname.Component) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.byName[nameKey{parent, name}]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// GetOrCreate returns the existing NameNode for (parent, name), or
// allocates a fresh id and registers a new one if absent.
func (m *Manager) GetOrCreate(parent inum.Number, name pathname.Component) Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := nameKey{parent, name}
	if n, ok := m.byName[key]; ok {
		return *n
	}
	id := m.allocate()
	n := &Node{Parent: parent, Name: name, ID: id, Generation: m.generation}
	m.byName[key] = n
	m.byID[id] = n
	return *n
}

// Bind registers (parent, name) -> id for an id that was already assigned
// elsewhere (a materialized directory entry recorded in the overlay,
// which carries its own child inode number). Idempotent: binding the same
// triple twice is a no-op. Fails with fserrors.Exists if (parent, name)
// is already bound to a different id.
func (m *Manager) Bind(parent inum.Number, name pathname.Component, id inum.Number, generation inum.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := nameKey{parent, name}
	if existing, ok := m.byName[key]; ok {
		if existing.ID != id {
			return fserrors.Newf(fserrors.Exists, "name %q under %d already bound to inode %d", name, parent, existing.ID)
		}
		return nil
	}
	n := &Node{Parent: parent, Name: name, ID: id, Generation: generation}
	m.byName[key] = n
	if _, ok := m.byID[id]; !ok {
		m.byID[id] = n
	}
	if id >= m.nextID {
		m.nextID = id + 1
	}
	return nil
}

// allocate hands out the next inode number, bumping the generation on
// wraparound so a stale (id, generation) pair from before the wrap can
// still be rejected. Must be called with mu held.
func (m *Manager) allocate() inum.Number {
	if m.nextID == 0 {
		// wrapped past the uint64 max; skip the reserved root number too.
		m.generation++
		m.nextID = inum.Root + 1
	}
	id := m.nextID
	m.nextID++
	return id
}

// NextID reports the watermark the next allocate call will hand out, for
// the overlay backend to persist across a clean shutdown.
func (m *Manager) NextID() inum.Number {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextID
}

// Unlink removes the (parent, name) entry only; the id may still be
// reachable by a live inode object via byID: unlinking a name does not
// retire the id.
func (m *Manager) Unlink(parent inum.Number, name pathname.Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byName, nameKey{parent, name})
}

// DropID removes the byID entry once an inode is evicted from the live
// graph and can no longer be the target of ResolveToPath. Safe to call
// even if a (parent, name) entry still points at a different, newer
// generation of the same number (it won't, in practice, since Number
// reuse is a wraparound event, not a per-eviction one).
func (m *Manager) DropID(id inum.Number) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

// Rename performs the unique-index swap inside the write lock. Fails with
// fserrors.Exists if the destination (newParent, newName) is already
// occupied; callers that want replace-on-rename semantics must delete the
// destination themselves first (see inodegraph's rename implementation).
func (m *Manager) Rename(oldParent inum.Number, oldName pathname.Component, newParent inum.Number, newName pathname.Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldKey := nameKey{oldParent, oldName}
	n, ok := m.byName[oldKey]
	if !ok {
		return fserrors.New(fserrors.NoEntry, "rename source does not exist")
	}
	newKey := nameKey{newParent, newName}
	if _, occupied := m.byName[newKey]; occupied {
		return fserrors.New(fserrors.Exists, "rename destination already exists")
	}

	delete(m.byName, oldKey)
	moved := &Node{Parent: newParent, Name: newName, ID: n.ID, Generation: n.Generation}
	m.byName[newKey] = moved
	m.byID[n.ID] = moved
	return nil
}

// ResolveToPath walks parent ids up to the root, constructing the
// relative path of id from the mount root. Fails with fserrors.NoEntry if
// id, or any ancestor on the way to the root, is missing from the index.
func (m *Manager) ResolveToPath(id inum.Number) (pathname.Relative, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id == inum.Root {
		return nil, nil
	}

	var components []pathname.Component
	cur := id
	for cur != inum.Root {
		n, ok := m.byID[cur]
		if !ok {
			return nil, fserrors.Newf(fserrors.NoEntry, "no name node for inode %d while resolving path", cur)
		}
		components = append(components, n.Name)
		cur = n.Parent
	}
	// components were collected leaf-to-root; reverse in place.
	for i, j := 0, len(components)-1; i < j; i, j = i+1, j-1 {
		components[i], components[j] = components[j], components[i]
	}
	return pathname.Relative(components), nil
}

// LockedChain is a snapshot of the ancestor chain from id to the root,
// taken under a single read-lock critical section so the caller sees a
// consistent view even though Manager offers no multi-step transactions.
type LockedChain struct {
	Nodes []Node // ordered leaf-to-root: Nodes[0] is id itself; the root is excluded
}

// ResolveAsNodes returns the chain of NameNodes from id up to (but not
// including) the root, in leaf-to-root order, as a single consistent
// snapshot.
func (m *Manager) ResolveAsNodes(id inum.Number) (LockedChain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var chain []Node
	cur := id
	for cur != inum.Root {
		n, ok := m.byID[cur]
		if !ok {
			return LockedChain{}, fserrors.Newf(fserrors.NoEntry, "no name node for inode %d while resolving chain", cur)
		}
		chain = append(chain, *n)
		cur = n.Parent
	}
	return LockedChain{Nodes: chain}, nil
}
