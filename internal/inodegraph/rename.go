package inodegraph

import (
	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/pathname"
)

// Rename replaces an existing regular file or symlink destination,
// refusing to replace a non-empty directory, and replacing an empty one.
// Each directory's entry map is touched under its own lock and
// materialized independently; the overall operation is not a single
// cross-directory critical section (the per-inode lock model has no
// primitive for that), so a concurrent observer could in principle see
// the removal from the source before the insertion into the destination
// completes.
func (g *Graph) Rename(oldParent inum.Number, oldName pathname.Component, newParent inum.Number, newName pathname.Component) error {
	oldParentNode, err := g.requireDir(oldParent)
	if err != nil {
		return err
	}
	newParentNode, err := g.requireDir(newParent)
	if err != nil {
		return err
	}

	oldParentNode.RLock()
	srcEntry, ok := oldParentNode.Dir().Entries[oldName]
	oldParentNode.RUnlock()
	if !ok {
		return fserrors.New(fserrors.NoEntry, "rename source does not exist")
	}

	newParentNode.RLock()
	dstEntry, exists := newParentNode.Dir().Entries[newName]
	newParentNode.RUnlock()

	if exists {
		if dstEntry.Kind == model.KindDirectory {
			var empty bool
			var err error
			if dstEntry.Materialized {
				empty, err = g.childDirEmpty(dstEntry.ChildInode)
			} else {
				var tree *model.Tree
				tree, err = g.Store.GetTree(dstEntry.Hash)
				if err == nil {
					empty = len(tree.Entries) == 0
				}
			}
			if err != nil {
				return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not inspect rename destination")
			}
			if !empty {
				return fserrors.New(fserrors.NotEmpty, "rename destination directory is not empty")
			}
		}
	}

	oldParentNode.Lock()
	delete(oldParentNode.Dir().Entries, oldName)
	oldParentNode.Unlock()
	if err := g.materializeDir(oldParent, oldParentNode); err != nil {
		return err
	}

	newParentNode.Lock()
	newParentNode.Dir().Entries[newName] = srcEntry
	newParentNode.Unlock()
	if err := g.materializeDir(newParent, newParentNode); err != nil {
		return err
	}

	if exists {
		g.Names.Unlink(newParent, newName)
		if dstEntry.Materialized {
			if dstEntry.Kind == model.KindDirectory {
				if err := g.Overlay.RemoveDir(dstEntry.ChildInode); err != nil {
					return err
				}
			} else if err := g.Overlay.RemoveFile(dstEntry.ChildInode); err != nil {
				return err
			}
		}
	}

	return g.Names.Rename(oldParent, oldName, newParent, newName)
}
