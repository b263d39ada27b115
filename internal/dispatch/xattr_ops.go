package dispatch

import (
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/auriora/edenfs/internal/inum"
)

func (d *Dispatcher) GetXAttr(cancel <-chan struct{}, header *fuse.InHeader, attr string, dest []byte) (uint32, fuse.Status) {
	ctx, done := d.begin("getxattr", header)
	defer done()

	value, err := d.Graph.GetXattr(inum.Number(header.NodeId), attr)
	if err != nil {
		return 0, statusOf(ctx, err)
	}
	if len(dest) == 0 {
		return uint32(len(value)), fuse.OK
	}
	if len(dest) < len(value) {
		return 0, fuse.Status(syscall.ERANGE)
	}
	copy(dest, value)
	return uint32(len(value)), fuse.OK
}

func (d *Dispatcher) SetXAttr(cancel <-chan struct{}, input *fuse.SetXAttrIn, attr string, data []byte) fuse.Status {
	ctx, done := d.begin("setxattr", &input.InHeader)
	defer done()

	return statusOf(ctx, d.Graph.SetXattr(inum.Number(input.NodeId), attr, data))
}

func (d *Dispatcher) ListXAttr(cancel <-chan struct{}, header *fuse.InHeader, dest []byte) (uint32, fuse.Status) {
	ctx, done := d.begin("listxattr", header)
	defer done()

	names, err := d.Graph.ListXattr(inum.Number(header.NodeId))
	if err != nil {
		return 0, statusOf(ctx, err)
	}

	var size uint32
	for _, name := range names {
		size += uint32(len(name) + 1)
	}
	if len(dest) == 0 {
		return size, fuse.OK
	}
	if uint32(len(dest)) < size {
		return 0, fuse.Status(syscall.ERANGE)
	}

	var offset int
	for _, name := range names {
		offset += copy(dest[offset:], name)
		dest[offset] = 0
		offset++
	}
	return size, fuse.OK
}

func (d *Dispatcher) RemoveXAttr(cancel <-chan struct{}, header *fuse.InHeader, attr string) fuse.Status {
	ctx, done := d.begin("removexattr", header)
	defer done()

	return statusOf(ctx, d.Graph.RemoveXattr(inum.Number(header.NodeId), attr))
}
