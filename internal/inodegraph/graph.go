// Graph ties the live inode map, the NameManager, the object store, and
// the overlay together and implements the filesystem operation semantics.
// It is the one type the dispatch package talks to.
package inodegraph

import (
	"sync"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/nameid"
	"github.com/auriora/edenfs/internal/objectstore"
	"github.com/auriora/edenfs/internal/objhash"
	"github.com/auriora/edenfs/internal/overlay"
	"github.com/auriora/edenfs/internal/pathname"
)

// Graph owns the live inode map: a concurrent mapping from inode number
// to Inode, inserted on first materialization into memory and evicted
// once lookup count and open handle count both reach zero.
type Graph struct {
	mu   sync.RWMutex
	live map[inum.Number]*Inode

	Names   *nameid.Manager
	Store   objectstore.Store
	Overlay overlay.Backend
}

// New constructs a Graph rooted at rootTreeHash (the current parent
// commit's tree), or recovers the root from the overlay if it was already
// materialized in a prior session.
func New(store objectstore.Store, ovl overlay.Backend, names *nameid.Manager, rootTreeHash objhash.Hash) (*Graph, error) {
	g := &Graph{
		live:    make(map[inum.Number]*Inode),
		Names:   names,
		Store:   store,
		Overlay: ovl,
	}

	hasRootRow, err := ovl.HasDir(inum.Root)
	if err != nil {
		return nil, err
	}
	if hasRootRow {
		dir, err := ovl.LoadDir(inum.Root)
		if err != nil {
			return nil, err
		}
		entries := entriesFromOverlayDir(dir)
		root := NewDirInode(inum.Root, nil, entries)
		root.dir.Materialized = true
		g.insertLive(root)
		return g, nil
	}

	tree, err := store.GetTree(rootTreeHash)
	if err != nil {
		return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not load root tree")
	}
	entries := entriesFromTree(tree)
	root := NewDirInode(inum.Root, &rootTreeHash, entries)
	g.insertLive(root)
	return g, nil
}

func entriesFromTree(tree *model.Tree) map[pathname.Component]ChildEntry {
	entries := make(map[pathname.Component]ChildEntry, len(tree.Entries))
	for _, e := range tree.Entries {
		entries[e.Name] = ChildEntry{
			Mode: modeFromKind(e.Kind, e.OwnerPermBits),
			Kind: e.Kind,
			Hash: e.TargetHash,
		}
	}
	return entries
}

func entriesFromOverlayDir(dir *overlay.Dir) map[pathname.Component]ChildEntry {
	entries := make(map[pathname.Component]ChildEntry, len(dir.Entries))
	for name, de := range dir.Entries {
		ce := ChildEntry{
			Mode:         de.Mode,
			Kind:         de.Kind,
			Materialized: de.Materialized,
		}
		if de.Materialized {
			ce.ChildInode = de.ChildInode
		} else if de.ChildHash != nil {
			ce.Hash = *de.ChildHash
		}
		entries[name] = ce
	}
	return entries
}

func modeFromKind(k model.Kind, perm uint8) uint32 {
	mode := uint32(perm) & 0o7777
	switch k {
	case model.KindDirectory:
		mode |= 0o040000
	case model.KindSymlink:
		mode |= 0o120000
	case model.KindExecutable:
		mode |= 0o100000 | 0o111
	default:
		mode |= 0o100000
	}
	return mode
}

func (g *Graph) insertLive(n *Inode) {
	g.mu.Lock()
	g.live[n.Number] = n
	g.mu.Unlock()
}

// GetLive returns the live Inode for number, if it is currently in the
// live map.
func (g *Graph) GetLive(number inum.Number) (*Inode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.live[number]
	return n, ok
}

func (g *Graph) evict(number inum.Number) {
	g.mu.Lock()
	delete(g.live, number)
	g.mu.Unlock()
}

// maybeEvict drops the inode from the live map if it is eligible, leaving
// its NameManager id binding intact so a later lookup resolves to the
// same number.
func (g *Graph) maybeEvict(n *Inode) {
	if n.EvictionEligible() {
		g.evict(n.Number)
	}
}

// requireDir fetches number from the live map and fails unless it is a
// live directory.
func (g *Graph) requireDir(number inum.Number) (*Inode, error) {
	n, ok := g.GetLive(number)
	if !ok {
		return nil, fserrors.New(fserrors.NoEntry, "parent inode is not live")
	}
	if !n.IsDir() {
		return nil, fserrors.New(fserrors.NotDir, "inode is not a directory")
	}
	return n, nil
}

// Forget decrements an inode's lookup count by n and evicts it from the
// live map if it has reached zero and no handle still references it. The
// NameManager binding is never touched here.
func (g *Graph) Forget(number inum.Number, n uint64) {
	node, ok := g.GetLive(number)
	if !ok {
		return
	}
	node.DecrLookup(n)
	g.maybeEvict(node)
}

// LiveCount reports the number of inodes currently resident, for statfs
// and diagnostics.
func (g *Graph) LiveCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.live)
}
