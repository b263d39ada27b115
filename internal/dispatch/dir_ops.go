package dispatch

import (
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/auriora/edenfs/internal/handle"
	"github.com/auriora/edenfs/internal/inum"
)

func (d *Dispatcher) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	ctx, done := d.begin("opendir", &input.InHeader)
	defer done()

	number := inum.Number(input.NodeId)
	node, ok := d.Graph.GetLive(number)
	if !ok {
		return statusOf(ctx, errNoEntry())
	}
	if !node.IsDir() {
		return statusOf(ctx, errNotDir())
	}
	node.IncrOpenHandles()
	fh, err := d.Handles.Open(number, handle.KindDir, nil)
	if err != nil {
		node.DecrOpenHandles()
		return statusOf(ctx, err)
	}
	out.Fh = fh
	return fuse.OK
}

func (d *Dispatcher) ReleaseDir(input *fuse.ReleaseIn) {
	_, number, err := d.Handles.GetDir(input.Fh)
	d.Handles.Close(input.Fh)
	if err != nil {
		return
	}
	if node, ok := d.Graph.GetLive(number); ok {
		node.DecrOpenHandles()
	}
}

func (d *Dispatcher) FsyncDir(cancel <-chan struct{}, input *fuse.FsyncIn) fuse.Status {
	// Directory rows are written synchronously on every mutation (see
	// materializeDir); there is no buffered state left to flush here.
	return fuse.OK
}

func (d *Dispatcher) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	ctx, done := d.begin("readdir", &input.InHeader)
	defer done()

	number := inum.Number(input.NodeId)
	node, ok := d.Graph.GetLive(number)
	if !ok {
		return statusOf(ctx, errNoEntry())
	}
	if !node.IsDir() {
		return statusOf(ctx, errNotDir())
	}
	children, err := d.Graph.ListChildren(number)
	if err != nil {
		return statusOf(ctx, err)
	}

	if input.Offset == 0 {
		if !out.AddDirEntry(fuse.DirEntry{Name: ".", Ino: uint64(number), Mode: fuse.S_IFDIR}) {
			return fuse.OK
		}
	}
	if input.Offset <= 1 {
		parentNum := number
		if n, ok := d.Graph.Names.GetNodeByID(number); ok {
			parentNum = n.Parent
		}
		if !out.AddDirEntry(fuse.DirEntry{Name: "..", Ino: uint64(parentNum), Mode: fuse.S_IFDIR}) {
			return fuse.OK
		}
	}

	offset := int(input.Offset)
	if offset < 2 {
		offset = 2
	}
	for idx, c := range children {
		if idx+2 < offset {
			continue
		}
		mode := c.Entry.Mode
		if !out.AddDirEntry(fuse.DirEntry{Name: string(c.Name), Ino: uint64(c.ID), Mode: mode}) {
			break
		}
	}
	return fuse.OK
}

func (d *Dispatcher) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	ctx, done := d.begin("readdirplus", &input.InHeader)
	defer done()

	number := inum.Number(input.NodeId)
	node, ok := d.Graph.GetLive(number)
	if !ok {
		return statusOf(ctx, errNoEntry())
	}
	if !node.IsDir() {
		return statusOf(ctx, errNotDir())
	}
	children, err := d.Graph.ListChildren(number)
	if err != nil {
		return statusOf(ctx, err)
	}

	if input.Offset == 0 {
		entryOut := out.AddDirLookupEntry(fuse.DirEntry{Name: ".", Ino: uint64(number), Mode: fuse.S_IFDIR})
		if entryOut == nil {
			return fuse.OK
		}
		d.fillAttr(&entryOut.Attr, node)
		entryOut.NodeId = uint64(number)
		entryOut.SetEntryTimeout(d.EntryTTL)
		entryOut.SetAttrTimeout(d.AttrTTL)
	}
	if input.Offset <= 1 {
		parentNum, parentNode := number, node
		if n, ok := d.Graph.Names.GetNodeByID(number); ok {
			parentNum = n.Parent
			if p, live := d.Graph.GetLive(n.Parent); live {
				parentNode = p
			}
		}
		entryOut := out.AddDirLookupEntry(fuse.DirEntry{Name: "..", Ino: uint64(parentNum), Mode: fuse.S_IFDIR})
		if entryOut == nil {
			return fuse.OK
		}
		d.fillAttr(&entryOut.Attr, parentNode)
		entryOut.NodeId = uint64(parentNum)
		entryOut.SetEntryTimeout(d.EntryTTL)
		entryOut.SetAttrTimeout(d.AttrTTL)
	}

	offset := int(input.Offset)
	if offset < 2 {
		offset = 2
	}
	for idx, c := range children {
		if idx+2 < offset {
			continue
		}
		childNode, err := d.Graph.Lookup(number, c.Name)
		if err != nil {
			continue
		}
		entryOut := out.AddDirLookupEntry(fuse.DirEntry{Name: string(c.Name), Ino: uint64(c.ID), Mode: c.Entry.Mode})
		if entryOut == nil {
			childNode.DecrLookup(1)
			break
		}
		d.fillEntry(entryOut, childNode)
	}
	return fuse.OK
}
