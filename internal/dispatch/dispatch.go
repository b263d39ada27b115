// Package dispatch implements the fuse.RawFileSystem adapter that routes
// every kernel channel opcode to the InodeGraph, translating fserrors.Kind
// results back into fuse.Status and wrapping each call in a reqctx.Context
// registered with the Tracker for latency accounting and outstanding-
// request tracking. Kernel interrupts are not delivered: the cancel
// channel each method receives is not consulted.
package dispatch

import (
	"math"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/handle"
	"github.com/auriora/edenfs/internal/inodegraph"
	"github.com/auriora/edenfs/internal/logging"
	"github.com/auriora/edenfs/internal/pathname"
	"github.com/auriora/edenfs/internal/reqctx"
)

// maxTTL is the largest cache deadline the kernel's signed 32-bit timeout
// field can hold; a larger value causes cache misses forever on some
// platforms.
const maxTTL = time.Duration(math.MaxInt32) * time.Second

// Dispatcher adapts InodeGraph to go-fuse's low-level RawFileSystem
// interface. Unimplemented opcodes fall through to the embedded default,
// which replies ENOSYS for any opcode this Dispatcher does not handle.
type Dispatcher struct {
	fuse.RawFileSystem

	Graph    *inodegraph.Graph
	Handles  *handle.Map
	Tracker  *reqctx.Tracker
	EntryTTL time.Duration
	AttrTTL  time.Duration

	nextRequestID uint64
}

// New constructs a Dispatcher. entryTTL/attrTTL are clamped to maxTTL.
func New(graph *inodegraph.Graph, handles *handle.Map, tracker *reqctx.Tracker, entryTTL, attrTTL time.Duration) *Dispatcher {
	if entryTTL > maxTTL {
		entryTTL = maxTTL
	}
	if attrTTL > maxTTL {
		attrTTL = maxTTL
	}
	return &Dispatcher{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		Graph:         graph,
		Handles:       handles,
		Tracker:       tracker,
		EntryTTL:      entryTTL,
		AttrTTL:       attrTTL,
	}
}

func (d *Dispatcher) begin(opcode reqctx.Opcode, header *fuse.InHeader) (*reqctx.Context, func()) {
	id := atomic.AddUint64(&d.nextRequestID, 1)
	ctx := reqctx.New(id, opcode, header.NodeId, header.Uid, header.Gid, header.Pid)
	d.Tracker.Register(ctx)
	return ctx, func() { d.Tracker.Finish(ctx) }
}

// statusOf maps a domain error to the kernel reply status, logging
// anything that wasn't already a recognized domain Kind.
func statusOf(ctx *reqctx.Context, err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}
	kind := fserrors.KindOf(err)
	if kind == fserrors.Unclassified {
		lc := logging.NewLogContext().With("opcode", string(ctx.Opcode)).With("nodeId", ctx.NodeID)
		logging.LogErrorWithContext(err, lc, "unclassified error at dispatch boundary")
	}
	return fuse.Status(kind.Errno())
}

func component(name string) (pathname.Component, fuse.Status) {
	c, err := pathname.NewComponent(name)
	if err != nil {
		return "", fuse.Status(syscall.EINVAL)
	}
	return c, fuse.OK
}

// fillEntry populates out's Attr/NodeId/Generation/timeout fields from a
// live Inode, the canonical attribute reply for lookup/create/mknod/
// mkdir/symlink.
func (d *Dispatcher) fillEntry(out *fuse.EntryOut, node *inodegraph.Inode) {
	out.NodeId = uint64(node.Number)
	out.Generation = 1
	d.fillAttr(&out.Attr, node)
	out.SetEntryTimeout(d.EntryTTL)
	out.SetAttrTimeout(d.AttrTTL)
}

func (d *Dispatcher) fillAttr(attr *fuse.Attr, node *inodegraph.Inode) {
	node.RLock()
	defer node.RUnlock()

	attr.Ino = uint64(node.Number)
	attr.Nlink = 1
	attr.Blksize = 4096

	if node.IsDir() {
		dir := node.Dir()
		attr.Mode = dir.ModeBits | 0o040000
		setAttrTimes(attr, dir.ModTime)
		return
	}

	fs := node.File()
	attr.Mode = fs.ModeBits
	attr.Rdev = fs.Rdev
	setAttrTimes(attr, fs.ModTime)

	if fs.Materialized {
		if size, err := fs.OverlayFile.Size(); err == nil {
			attr.Size = uint64(size)
			attr.Blocks = (attr.Size + 511) / 512
		}
	} else if fs.CachedBlob != nil {
		attr.Size = uint64(len(fs.CachedBlob.Bytes))
		attr.Blocks = (attr.Size + 511) / 512
	}
}

func setAttrTimes(attr *fuse.Attr, t time.Time) {
	if t.IsZero() {
		t = time.Now()
	}
	sec := uint64(t.Unix())
	nsec := uint32(t.Nanosecond())
	attr.Atime, attr.Atimensec = sec, nsec
	attr.Mtime, attr.Mtimensec = sec, nsec
	attr.Ctime, attr.Ctimensec = sec, nsec
}

func (d *Dispatcher) String() string { return "edenfs" }
