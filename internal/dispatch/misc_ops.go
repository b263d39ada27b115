package dispatch

import (
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/auriora/edenfs/internal/inum"
)

// Access reports whether the inode exists; edenfs mounts are single-user
// and rely on the kernel's own permission check rather than re-deriving
// one from the request's uid/gid/mask here.
func (d *Dispatcher) Access(cancel <-chan struct{}, input *fuse.AccessIn) fuse.Status {
	ctx, done := d.begin("access", &input.InHeader)
	defer done()

	if _, ok := d.Graph.GetLive(inum.Number(input.NodeId)); !ok {
		return statusOf(ctx, errNoEntry())
	}
	return fuse.OK
}

const statfsBlockSize uint64 = 4096

// StatFs reports capacity in terms of the live inode count rather than a
// disk quota: edenfs has no storage ceiling of its own, only whatever the
// overlay's underlying filesystem imposes.
func (d *Dispatcher) StatFs(cancel <-chan struct{}, header *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	_, done := d.begin("statfs", header)
	defer done()

	live := uint64(d.Graph.LiveCount())

	out.Bsize = uint32(statfsBlockSize)
	out.Blocks = 1 << 32
	out.Bfree = out.Blocks
	out.Bavail = out.Blocks
	out.Files = live + 1<<20
	out.Ffree = out.Files - live
	out.NameLen = 255
	return fuse.OK
}
