package inodegraph

import (
	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/overlay"
)

// materializeDir marks dirNode materialized and records its current entry
// set into the overlay under its own inode number on every call, so each
// directory mutation is persisted. It then walks up the ancestor chain,
// materializing each ancestor that is not yet materialized and stopping
// at the first one that already is.
func (g *Graph) materializeDir(number inum.Number, dirNode *Inode) error {
	dirNode.Lock()
	dirNode.Dir().Materialized = true
	snapshot := g.snapshotOverlayDir(dirNode.Dir())
	dirNode.Unlock()

	if err := g.Overlay.SaveDir(number, snapshot); err != nil {
		return err
	}

	chain, err := g.Names.ResolveAsNodes(number)
	if err != nil {
		// Root has no ancestor chain; nothing further to propagate.
		return nil
	}
	for _, n := range chain.Nodes {
		parent, ok := g.GetLive(n.Parent)
		if !ok {
			break
		}
		parent.Lock()
		parentAlready := parent.Dir().Materialized
		if !parentAlready {
			parent.Dir().Materialized = true
		}
		parentSnapshot := g.snapshotOverlayDir(parent.Dir())
		parent.Unlock()
		if !parentAlready {
			if err := g.Overlay.SaveDir(n.Parent, parentSnapshot); err != nil {
				return err
			}
		} else {
			break
		}
	}
	return nil
}

// snapshotOverlayDir renders a DirState's in-memory entries into the
// overlay's on-disk Dir row shape. Caller must hold at least dirNode's
// RLock.
func (g *Graph) snapshotOverlayDir(d *DirState) *overlay.Dir {
	row := overlay.NewDir()
	for name, ce := range d.Entries {
		de := overlay.DirEntry{Mode: ce.Mode, Kind: ce.Kind, Materialized: ce.Materialized}
		if ce.Materialized {
			de.ChildInode = ce.ChildInode
		} else {
			hash := ce.Hash
			de.ChildHash = &hash
		}
		row.Entries[name] = de
	}
	return row
}

// materializeFile transitions a FileInode from Loaded to Materialized:
// its current blob contents (fetched from the store if not already
// cached) are written, prefixed with the overlay header, into a new
// overlay file, which atomically becomes the inode's backing storage.
// Caller must hold node's exclusive lock.
func (g *Graph) materializeFile(number inum.Number, node *Inode) error {
	fs := node.File()
	if fs.Materialized {
		return nil
	}

	var content []byte
	if fs.CachedBlob != nil {
		content = fs.CachedBlob.Bytes
	} else if !fs.BackingHash.IsZero() {
		blob, err := g.Store.GetBlob(fs.BackingHash)
		if err != nil {
			return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not load blob for materialization")
		}
		content = blob.Bytes
	}

	f, err := g.Overlay.CreateOverlayFile(number, content)
	if err != nil {
		return err
	}

	fs.Materialized = true
	fs.OverlayFile = f
	fs.CachedBlob = nil
	fs.Sha1Valid = false
	return nil
}
