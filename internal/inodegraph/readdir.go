package inodegraph

import (
	"sort"

	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/pathname"
)

// ChildListing is one entry of ListChildren's result: a name, its merged
// directory-entry record, and the inode number it is (or has just been)
// bound to in the NameManager. "." and ".." are not included here; the
// dispatch layer synthesizes them with the directory's own and parent's
// ids, which ListChildren has no reason to know about.
type ChildListing struct {
	Name  pathname.Component
	Entry ChildEntry
	ID    inum.Number
}

// ListChildren enumerates dirID's entries in name-sorted order,
// opportunistically binding an
// inode number to every entry exactly as a lookup would, so the caller
// can report a stable ino in each directory entry without waiting for a
// separate LOOKUP per child.
func (g *Graph) ListChildren(dirID inum.Number) ([]ChildListing, error) {
	node, err := g.requireDir(dirID)
	if err != nil {
		return nil, err
	}

	node.RLock()
	names := make([]pathname.Component, 0, len(node.Dir().Entries))
	entries := make(map[pathname.Component]ChildEntry, len(node.Dir().Entries))
	for name, e := range node.Dir().Entries {
		names = append(names, name)
		entries[name] = e
	}
	node.RUnlock()

	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	out := make([]ChildListing, 0, len(names))
	for _, name := range names {
		entry := entries[name]
		id, err := g.bindChildID(dirID, name, entry)
		if err != nil {
			return nil, err
		}
		out = append(out, ChildListing{Name: name, Entry: entry, ID: id})
	}
	return out, nil
}
