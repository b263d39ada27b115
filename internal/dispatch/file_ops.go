package dispatch

import (
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/auriora/edenfs/internal/handle"
	"github.com/auriora/edenfs/internal/inum"
)

func (d *Dispatcher) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	ctx, done := d.begin("open", &input.InHeader)
	defer done()

	number := inum.Number(input.NodeId)
	node, ok := d.Graph.GetLive(number)
	if !ok {
		return statusOf(ctx, errNoEntry())
	}
	node.IncrOpenHandles()
	fh, err := d.Handles.Open(number, handle.KindFile, nil)
	if err != nil {
		node.DecrOpenHandles()
		return statusOf(ctx, err)
	}
	out.Fh = fh
	return fuse.OK
}

func (d *Dispatcher) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	_, number, err := d.Handles.GetFile(input.Fh)
	d.Handles.Close(input.Fh)
	if err != nil {
		return
	}
	if node, ok := d.Graph.GetLive(number); ok {
		node.DecrOpenHandles()
	}
}

func (d *Dispatcher) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	ctx, done := d.begin("read", &input.InHeader)
	defer done()

	n, err := d.Graph.Read(inum.Number(input.NodeId), int64(input.Offset), buf)
	if err != nil {
		return fuse.ReadResultData(nil), statusOf(ctx, err)
	}
	return fuse.ReadResultData(buf[:n]), fuse.OK
}

func (d *Dispatcher) Write(cancel <-chan struct{}, input *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	ctx, done := d.begin("write", &input.InHeader)
	defer done()

	n, err := d.Graph.Write(inum.Number(input.NodeId), int64(input.Offset), data)
	if err != nil {
		return uint32(n), statusOf(ctx, err)
	}
	return uint32(n), fuse.OK
}

func (d *Dispatcher) Flush(cancel <-chan struct{}, input *fuse.FlushIn) fuse.Status {
	ctx, done := d.begin("flush", &input.InHeader)
	defer done()
	return statusOf(ctx, d.Graph.Flush(inum.Number(input.NodeId)))
}

func (d *Dispatcher) Fsync(cancel <-chan struct{}, input *fuse.FsyncIn) fuse.Status {
	ctx, done := d.begin("fsync", &input.InHeader)
	defer done()
	return statusOf(ctx, d.Graph.Fsync(inum.Number(input.NodeId)))
}
