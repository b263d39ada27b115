package inodegraph

import (
	"time"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
)

// AttrChanges carries the subset of a setattr request the caller actually
// supplied; dispatch fills in only the fields whose Valid* flag the kernel
// set, mirroring FUSE's SetAttrIn bitmask instead of a full struct
// overwrite.
type AttrChanges struct {
	SetMode bool
	Mode    uint32

	SetSize bool
	Size    int64

	SetMtime bool
	Mtime    time.Time
}

// SetAttr applies changes to number, which may be a file or a directory.
// A size change on a directory is rejected; on a file it materializes the
// file first via Truncate.
func (g *Graph) SetAttr(number inum.Number, changes AttrChanges) error {
	node, ok := g.GetLive(number)
	if !ok {
		return fserrors.New(fserrors.NoEntry, "inode is not live")
	}

	if changes.SetSize {
		if node.IsDir() {
			return fserrors.New(fserrors.IsDir, "cannot set size of a directory")
		}
		if err := g.Truncate(number, changes.Size); err != nil {
			return err
		}
	}

	node.Lock()
	defer node.Unlock()

	if node.IsDir() {
		d := node.Dir()
		if changes.SetMode {
			d.ModeBits = (d.ModeBits &^ 0o7777) | (changes.Mode & 0o7777)
		}
		if changes.SetMtime {
			d.ModTime = changes.Mtime
		}
		return nil
	}

	f := node.File()
	if changes.SetMode {
		f.ModeBits = (f.ModeBits &^ 0o7777) | (changes.Mode & 0o7777)
	}
	if changes.SetMtime {
		f.ModTime = changes.Mtime
	}
	return nil
}
