package inodegraph

import (
	"sort"

	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/pathname"
)

// MaterializedDir is one entry of WalkMaterialized's result: a
// materialized directory's inode number and its path from the mount
// root, for the status/diff layer built on top of the engine.
type MaterializedDir struct {
	ID   inum.Number
	Path pathname.Relative
}

// WalkMaterialized performs a depth-first walk rooted at the mount and
// returns, in traversal order, every directory whose materialized flag is
// set. Only live directories and those with an overlay row are visited;
// a subtree that was never touched and was evicted from the live map is,
// by definition, not materialized and contributes nothing.
func (g *Graph) WalkMaterialized() ([]MaterializedDir, error) {
	var out []MaterializedDir
	if err := g.walkDir(inum.Root, pathname.Relative{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Graph) walkDir(id inum.Number, path pathname.Relative, out *[]MaterializedDir) error {
	node, ok := g.GetLive(id)
	var dir *DirState
	var owned bool
	if ok && node.IsDir() {
		node.RLock()
		dir = node.Dir()
		owned = true
	} else {
		row, err := g.Overlay.LoadDir(id)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		dir = &DirState{Materialized: true, Entries: entriesFromOverlayDir(row)}
	}

	if dir.Materialized {
		*out = append(*out, MaterializedDir{ID: id, Path: path})
	}

	names := make([]pathname.Component, 0, len(dir.Entries))
	entries := make(map[pathname.Component]ChildEntry, len(dir.Entries))
	for name, e := range dir.Entries {
		if e.Kind != model.KindDirectory {
			continue
		}
		names = append(names, name)
		entries[name] = e
	}
	if owned {
		node.RUnlock()
	}

	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	for _, name := range names {
		e := entries[name]
		if !e.Materialized {
			continue
		}
		childPath := path.Join(name)
		if err := g.walkDir(e.ChildInode, childPath, out); err != nil {
			return err
		}
	}
	return nil
}
