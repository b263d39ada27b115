package inodegraph

import (
	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/overlay"
	"github.com/auriora/edenfs/internal/pathname"
)

// Lookup consults the NameManager and live map first, and only falls back
// to constructing a fresh Inode from the parent's merged entry set
// (overlay first, object store second) when
// no live inode already answers the name. On success the returned
// inode's lookup count has already been incremented exactly once.
func (g *Graph) Lookup(parent inum.Number, name pathname.Component) (*Inode, error) {
	if n, ok := g.Names.GetNodeByName(parent, name); ok {
		if node, ok := g.GetLive(n.ID); ok {
			node.IncrLookup()
			return node, nil
		}
		// Name binding survived a prior eviction; rebuild the Inode for
		// the same number rather than minting a new one.
		return g.reviveByName(parent, n.ID, name)
	}

	parentNode, err := g.requireDir(parent)
	if err != nil {
		return nil, err
	}

	parentNode.RLock()
	entry, ok := parentNode.Dir().Entries[name]
	parentNode.RUnlock()
	if !ok {
		return nil, fserrors.New(fserrors.NoEntry, "no such file or directory")
	}

	id, err := g.bindChildID(parent, name, entry)
	if err != nil {
		return nil, err
	}

	node, err := g.buildChildInode(id, entry)
	if err != nil {
		return nil, err
	}
	node.IncrLookup()
	g.insertLive(node)
	return node, nil
}

// bindChildID makes sure (parent, name) has a NameManager binding,
// reusing the overlay's own child inode number for an already-
// materialized entry so reconstruction after eviction lands on the same
// number, or allocating a fresh one for an entry seen for the first time.
func (g *Graph) bindChildID(parent inum.Number, name pathname.Component, entry ChildEntry) (inum.Number, error) {
	if entry.Materialized && entry.ChildInode != 0 {
		if err := g.Names.Bind(parent, name, entry.ChildInode, 1); err != nil {
			return 0, err
		}
		return entry.ChildInode, nil
	}
	n := g.Names.GetOrCreate(parent, name)
	return n.ID, nil
}

// reviveByName reconstructs the Inode for an id the NameManager still
// remembers but that fell out of the live map, by re-deriving it from
// the parent's current entry for name.
func (g *Graph) reviveByName(parent, id inum.Number, name pathname.Component) (*Inode, error) {
	parentNode, err := g.requireDir(parent)
	if err != nil {
		return nil, err
	}
	parentNode.RLock()
	entry, ok := parentNode.Dir().Entries[name]
	parentNode.RUnlock()
	if !ok {
		return nil, fserrors.New(fserrors.NoEntry, "no such file or directory")
	}
	node, err := g.buildChildInode(id, entry)
	if err != nil {
		return nil, err
	}
	node.IncrLookup()
	g.insertLive(node)
	return node, nil
}

// buildChildInode materializes (in the "turn into an in-memory object"
// sense, not the overlay sense) a ChildEntry into a live Inode, reading
// from the overlay when the entry is materialized and from the object
// store otherwise.
func (g *Graph) buildChildInode(id inum.Number, entry ChildEntry) (*Inode, error) {
	if entry.Kind == model.KindDirectory {
		if entry.Materialized {
			dir, err := g.Overlay.LoadDir(id)
			if err != nil {
				return nil, err
			}
			node := NewDirInode(id, nil, entriesFromOverlayDir(dir))
			node.dir.Materialized = true
			return node, nil
		}
		tree, err := g.Store.GetTree(entry.Hash)
		if err != nil {
			return nil, fserrors.Wrap(fserrors.BackendUnavailable, err, "could not load child tree")
		}
		hash := entry.Hash
		return NewDirInode(id, &hash, entriesFromTree(tree)), nil
	}

	if entry.Materialized {
		f, err := g.Overlay.OpenOverlayFile(id, overlay.TagFile)
		if err != nil {
			return nil, err
		}
		node := NewMaterializedFileInode(id, f, entry.Mode, 0)
		return node, nil
	}
	return NewFileInode(id, entry.Hash, entry.Mode, 0), nil
}
