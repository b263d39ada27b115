package dispatch

import (
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/handle"
	"github.com/auriora/edenfs/internal/inum"
)

func (d *Dispatcher) Mkdir(cancel <-chan struct{}, input *fuse.MkdirIn, name string, out *fuse.EntryOut) fuse.Status {
	ctx, done := d.begin("mkdir", &input.InHeader)
	defer done()

	comp, status := component(name)
	if !status.Ok() {
		return status
	}
	node, err := d.Graph.Mkdir(inum.Number(input.NodeId), comp, input.Mode)
	if err != nil {
		return statusOf(ctx, err)
	}
	d.fillEntry(out, node)
	return fuse.OK
}

func (d *Dispatcher) Mknod(cancel <-chan struct{}, input *fuse.MknodIn, name string, out *fuse.EntryOut) fuse.Status {
	ctx, done := d.begin("mknod", &input.InHeader)
	defer done()

	comp, status := component(name)
	if !status.Ok() {
		return status
	}
	node, err := d.Graph.Mknod(inum.Number(input.NodeId), comp, input.Mode, input.Rdev)
	if err != nil {
		return statusOf(ctx, err)
	}
	d.fillEntry(out, node)
	return fuse.OK
}

func (d *Dispatcher) Create(cancel <-chan struct{}, input *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	ctx, done := d.begin("create", &input.InHeader)
	defer done()

	comp, status := component(name)
	if !status.Ok() {
		return status
	}
	node, err := d.Graph.CreateFile(inum.Number(input.NodeId), comp, input.Mode)
	if err != nil {
		return statusOf(ctx, err)
	}
	node.IncrOpenHandles()
	fh, err := d.Handles.Open(node.Number, handle.KindFile, nil)
	if err != nil {
		node.DecrOpenHandles()
		return statusOf(ctx, err)
	}
	d.fillEntry(&out.EntryOut, node)
	out.Fh = fh
	return fuse.OK
}

func (d *Dispatcher) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	ctx, done := d.begin("unlink", header)
	defer done()

	comp, status := component(name)
	if !status.Ok() {
		return status
	}
	return statusOf(ctx, d.Graph.Unlink(inum.Number(header.NodeId), comp))
}

func (d *Dispatcher) Rmdir(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	ctx, done := d.begin("rmdir", header)
	defer done()

	comp, status := component(name)
	if !status.Ok() {
		return status
	}
	return statusOf(ctx, d.Graph.Rmdir(inum.Number(header.NodeId), comp))
}

func (d *Dispatcher) Symlink(cancel <-chan struct{}, header *fuse.InHeader, pointedTo string, linkName string, out *fuse.EntryOut) fuse.Status {
	ctx, done := d.begin("symlink", header)
	defer done()

	comp, status := component(linkName)
	if !status.Ok() {
		return status
	}
	node, err := d.Graph.Symlink(inum.Number(header.NodeId), comp, pointedTo)
	if err != nil {
		return statusOf(ctx, err)
	}
	d.fillEntry(out, node)
	return fuse.OK
}

func (d *Dispatcher) Readlink(cancel <-chan struct{}, header *fuse.InHeader) ([]byte, fuse.Status) {
	ctx, done := d.begin("readlink", header)
	defer done()

	size, err := d.Graph.Size(inum.Number(header.NodeId))
	if err != nil {
		return nil, statusOf(ctx, err)
	}
	buf := make([]byte, size)
	n, err := d.Graph.Read(inum.Number(header.NodeId), 0, buf)
	if err != nil {
		return nil, statusOf(ctx, err)
	}
	return buf[:n], fuse.OK
}

func (d *Dispatcher) Rename(cancel <-chan struct{}, input *fuse.RenameIn, oldName string, newName string) fuse.Status {
	ctx, done := d.begin("rename", &input.InHeader)
	defer done()

	oldComp, status := component(oldName)
	if !status.Ok() {
		return status
	}
	newComp, status := component(newName)
	if !status.Ok() {
		return status
	}
	err := d.Graph.Rename(inum.Number(input.NodeId), oldComp, inum.Number(input.Newdir), newComp)
	return statusOf(ctx, err)
}

func (d *Dispatcher) Link(cancel <-chan struct{}, input *fuse.LinkIn, name string, out *fuse.EntryOut) fuse.Status {
	ctx, done := d.begin("link", &input.InHeader)
	defer done()

	comp, status := component(name)
	if !status.Ok() {
		return status
	}
	_, err := d.Graph.Link(inum.Number(input.NodeId), comp, inum.Number(input.Oldnodeid))
	if err == nil {
		err = fserrors.New(fserrors.NotImplemented, "hard links are not supported")
	}
	return statusOf(ctx, err)
}
