package inodegraph

import (
	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/overlay"
	"github.com/auriora/edenfs/internal/pathname"
)

// createChild is the shared implementation behind Mkdir/Mknod/Symlink/
// CreateFile: it allocates a fresh id, installs entry into parent's
// in-memory map, materializes parent (and its ancestors), and returns the
// new live Inode with its lookup count already at one (the kernel always
// receives an implicit entry for the node these operations return).
func (g *Graph) createChild(parent inum.Number, name pathname.Component, kind model.Kind, mode uint32, build func(id inum.Number) (*Inode, error)) (*Inode, error) {
	parentNode, err := g.requireDir(parent)
	if err != nil {
		return nil, err
	}

	parentNode.Lock()
	if _, exists := parentNode.Dir().Entries[name]; exists {
		parentNode.Unlock()
		return nil, fserrors.New(fserrors.Exists, "name already exists")
	}
	parentNode.Unlock()

	n := g.Names.GetOrCreate(parent, name)

	child, err := build(n.ID)
	if err != nil {
		return nil, err
	}

	parentNode.Lock()
	parentNode.Dir().Entries[name] = ChildEntry{
		Mode:         mode,
		Kind:         kind,
		Materialized: true,
		ChildInode:   n.ID,
	}
	parentNode.Unlock()

	if err := g.materializeDir(parent, parentNode); err != nil {
		return nil, err
	}

	child.IncrLookup()
	g.insertLive(child)
	return child, nil
}

// Mkdir creates a new, empty, materialized directory.
func (g *Graph) Mkdir(parent inum.Number, name pathname.Component, mode uint32) (*Inode, error) {
	return g.createChild(parent, name, model.KindDirectory, mode, func(id inum.Number) (*Inode, error) {
		if err := g.Overlay.SaveDir(id, overlay.NewDir()); err != nil {
			return nil, err
		}
		dir := NewDirInode(id, nil, nil)
		dir.dir.Materialized = true
		return dir, nil
	})
}

// Mknod creates a device/regular file node with no content, materialized
// immediately since a freshly created file has no backing Tree entry.
func (g *Graph) Mknod(parent inum.Number, name pathname.Component, mode, rdev uint32) (*Inode, error) {
	kind := model.KindRegular
	if mode&0o111 != 0 {
		kind = model.KindExecutable
	}
	return g.createChild(parent, name, kind, mode, func(id inum.Number) (*Inode, error) {
		f, err := g.Overlay.CreateOverlayFile(id, nil)
		if err != nil {
			return nil, err
		}
		return NewMaterializedFileInode(id, f, mode, rdev), nil
	})
}

// CreateFile is Mknod plus the open the kernel's CREATE opcode bundles
// with it; the caller is expected to open a FileHandle on the returned
// Inode separately (see internal/dispatch).
func (g *Graph) CreateFile(parent inum.Number, name pathname.Component, mode uint32) (*Inode, error) {
	return g.Mknod(parent, name, mode, 0)
}

// Symlink creates a symlink whose target is stored as the file body.
func (g *Graph) Symlink(parent inum.Number, name pathname.Component, target string) (*Inode, error) {
	return g.createChild(parent, name, model.KindSymlink, 0o777, func(id inum.Number) (*Inode, error) {
		f, err := g.Overlay.CreateOverlayFile(id, []byte(target))
		if err != nil {
			return nil, err
		}
		return NewMaterializedFileInode(id, f, 0o120777, 0), nil
	})
}

// Unlink removes a regular file or symlink entry from parent.
func (g *Graph) Unlink(parent inum.Number, name pathname.Component) error {
	parentNode, err := g.requireDir(parent)
	if err != nil {
		return err
	}

	parentNode.Lock()
	entry, ok := parentNode.Dir().Entries[name]
	if !ok {
		parentNode.Unlock()
		return fserrors.New(fserrors.NoEntry, "no such file")
	}
	if entry.Kind == model.KindDirectory {
		parentNode.Unlock()
		return fserrors.New(fserrors.IsDir, "cannot unlink a directory")
	}
	delete(parentNode.Dir().Entries, name)
	parentNode.Unlock()

	if err := g.materializeDir(parent, parentNode); err != nil {
		return err
	}

	g.Names.Unlink(parent, name)
	if entry.Materialized {
		return g.Overlay.RemoveFile(entry.ChildInode)
	}
	return nil
}

// Rmdir removes an empty directory entry from parent. Fails with
// fserrors.NotEmpty if the child directory still has entries.
func (g *Graph) Rmdir(parent inum.Number, name pathname.Component) error {
	parentNode, err := g.requireDir(parent)
	if err != nil {
		return err
	}

	parentNode.RLock()
	entry, ok := parentNode.Dir().Entries[name]
	parentNode.RUnlock()
	if !ok {
		return fserrors.New(fserrors.NoEntry, "no such directory")
	}
	if entry.Kind != model.KindDirectory {
		return fserrors.New(fserrors.NotDir, "not a directory")
	}

	if entry.Materialized {
		empty, err := g.childDirEmpty(entry.ChildInode)
		if err != nil {
			return err
		}
		if !empty {
			return fserrors.New(fserrors.NotEmpty, "directory not empty")
		}
	} else {
		tree, err := g.Store.GetTree(entry.Hash)
		if err != nil {
			return fserrors.Wrap(fserrors.BackendUnavailable, err, "could not load child tree")
		}
		if len(tree.Entries) > 0 {
			return fserrors.New(fserrors.NotEmpty, "directory not empty")
		}
	}

	parentNode.Lock()
	delete(parentNode.Dir().Entries, name)
	parentNode.Unlock()

	if err := g.materializeDir(parent, parentNode); err != nil {
		return err
	}

	g.Names.Unlink(parent, name)
	if entry.Materialized {
		return g.Overlay.RemoveDir(entry.ChildInode)
	}
	return nil
}

func (g *Graph) childDirEmpty(id inum.Number) (bool, error) {
	if live, ok := g.GetLive(id); ok {
		live.RLock()
		defer live.RUnlock()
		return len(live.Dir().Entries) == 0, nil
	}
	dir, err := g.Overlay.LoadDir(id)
	if err != nil {
		return false, err
	}
	return len(dir.Entries) == 0, nil
}

// Link always fails: the single-parent name graph does not support hard
// links across the graph.
func (g *Graph) Link(parent inum.Number, name pathname.Component, target inum.Number) (*Inode, error) {
	return nil, fserrors.New(fserrors.NotImplemented, "hard links are not supported")
}
