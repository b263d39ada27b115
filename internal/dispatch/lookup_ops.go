package dispatch

import (
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/auriora/edenfs/internal/inodegraph"
	"github.com/auriora/edenfs/internal/inum"
)

func (d *Dispatcher) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	ctx, done := d.begin("lookup", header)
	defer done()

	comp, status := component(name)
	if !status.Ok() {
		return status
	}

	node, err := d.Graph.Lookup(inum.Number(header.NodeId), comp)
	if err != nil {
		return statusOf(ctx, err)
	}
	d.fillEntry(out, node)
	return fuse.OK
}

func (d *Dispatcher) Forget(nodeid, lookup uint64) {
	d.Graph.Forget(inum.Number(nodeid), lookup)
}

func (d *Dispatcher) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	ctx, done := d.begin("getattr", &input.InHeader)
	defer done()

	node, ok := d.Graph.GetLive(inum.Number(input.NodeId))
	if !ok {
		return statusOf(ctx, errNoEntry())
	}
	d.fillAttr(&out.Attr, node)
	out.SetTimeout(d.AttrTTL)
	return fuse.OK
}

func (d *Dispatcher) SetAttr(cancel <-chan struct{}, input *fuse.SetAttrIn, out *fuse.AttrOut) fuse.Status {
	ctx, done := d.begin("setattr", &input.InHeader)
	defer done()

	node, ok := d.Graph.GetLive(inum.Number(input.NodeId))
	if !ok {
		return statusOf(ctx, errNoEntry())
	}

	var changes inodegraph.AttrChanges
	if input.Valid&fuse.FATTR_MODE != 0 {
		changes.SetMode = true
		changes.Mode = input.Mode
	}
	if input.Valid&fuse.FATTR_SIZE != 0 {
		changes.SetSize = true
		changes.Size = int64(input.Size)
	}
	if input.Valid&(fuse.FATTR_MTIME|fuse.FATTR_MTIME_NOW) != 0 {
		changes.SetMtime = true
		changes.Mtime = mtimeFromSetAttr(input)
	}

	if err := d.Graph.SetAttr(inum.Number(input.NodeId), changes); err != nil {
		return statusOf(ctx, err)
	}
	d.fillAttr(&out.Attr, node)
	out.SetTimeout(d.AttrTTL)
	return fuse.OK
}
