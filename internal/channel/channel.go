// Package channel owns the fuse.Server mount/session lifecycle: mounting
// the kernel channel, running the request loop, delivering
// invalidate-inode/invalidate-entry up-calls, and draining outstanding
// requests before the mount tears down.
package channel

import (
	"fmt"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/auriora/edenfs/internal/logging"
	"github.com/auriora/edenfs/internal/reqctx"
)

// ShutdownReason records why a mount's session loop returned, mirroring
// the distinct teardown paths a long-lived mount daemon must tell apart
// in its logs: a clean unmount, a takeover handoff to a new daemon
// binary, or the server object simply being garbage collected.
type ShutdownReason string

const (
	ShutdownUnmounted ShutdownReason = "unmounted"
	ShutdownTakeover  ShutdownReason = "takeover"
	ShutdownDestroyed ShutdownReason = "destroyed"
)

// Options configures the mount's kernel-visible identity and session
// flags. Entry/attr cache timeouts are not set here; the dispatcher
// carries them (see dispatch.New).
type Options struct {
	FsName        string
	Debug         bool
	AllowOther    bool
	MaxBackground int
}

// DefaultOptions returns the Options this daemon mounts with absent an
// explicit override.
func DefaultOptions() Options {
	return Options{
		FsName:        "edenfs",
		MaxBackground: 1024,
	}
}

// Channel wraps a mounted fuse.Server together with the request tracker
// the dispatcher registers every in-flight request with, so shutdown can
// wait for the in-kernel queue to drain before the mount point is
// released.
type Channel struct {
	server     *fuse.Server
	tracker    *reqctx.Tracker
	mountPath  string
	shutdownCh chan ShutdownReason
}

// Mount establishes the kernel channel for fs at mountPath and returns
// without waiting for the kernel handshake (FUSE_INIT); WaitMounted waits
// for it. RunSession must be called to actually service requests.
func Mount(mountPath string, fs fuse.RawFileSystem, tracker *reqctx.Tracker, opts Options) (*Channel, error) {
	mountOpts := &fuse.MountOptions{
		Name:          opts.FsName,
		FsName:        opts.FsName,
		Debug:         opts.Debug,
		AllowOther:    opts.AllowOther,
		MaxBackground: opts.MaxBackground,
	}

	server, err := fuse.NewServer(fs, mountPath, mountOpts)
	if err != nil {
		return nil, fmt.Errorf("mounting %s: %w (is the mountpoint already in use?)", mountPath, err)
	}

	logging.LogInfoWithContext(
		logging.NewLogContext().With("mountPath", mountPath).With("fsName", opts.FsName),
		"mounted",
	)

	return &Channel{
		server:     server,
		tracker:    tracker,
		mountPath:  mountPath,
		shutdownCh: make(chan ShutdownReason, 1),
	}, nil
}

// RunSession blocks servicing kernel requests until the mount is
// unmounted, either by a call to Unmount or externally (fusermount -u).
// It returns the reason the loop stopped.
func (c *Channel) RunSession() ShutdownReason {
	c.server.Serve()
	select {
	case reason := <-c.shutdownCh:
		return reason
	default:
		return ShutdownUnmounted
	}
}

// WaitMounted blocks until the kernel handshake has completed and the
// mount point is visible, surfacing any error the handshake produced.
func (c *Channel) WaitMounted() error {
	return c.server.WaitMount()
}

// Unmount requests that the kernel tear down the mount, retrying briefly
// since an in-progress lookup can hold the mountpoint busy for a moment
// after the caller stops issuing new requests.
func (c *Channel) Unmount(reason ShutdownReason) error {
	const (
		maxAttempts = 3
		retryDelay  = 500 * time.Millisecond
	)

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = c.server.Unmount()
		if err == nil {
			break
		}
		logging.LogError(err, "unmount attempt failed, retrying",
			"mountPath", c.mountPath, "attempt", attempt+1)
		time.Sleep(retryDelay)
	}
	if err != nil {
		return logging.WrapAndLogError(err, fmt.Sprintf("unmounting %s after %d attempts", c.mountPath, maxAttempts))
	}

	select {
	case c.shutdownCh <- reason:
	default:
	}
	return nil
}

// DrainRequests blocks until every request registered with the tracker
// has produced a reply, or the deadline elapses first. The destructor
// calls this before releasing overlay and object-store handles so no
// in-flight handler reads from resources out from under it.
func (c *Channel) DrainRequests(deadline time.Duration) bool {
	const pollInterval = 10 * time.Millisecond
	deadlineAt := time.Now().Add(deadline)
	for c.tracker.OutstandingCount() > 0 {
		if time.Now().After(deadlineAt) {
			return false
		}
		time.Sleep(pollInterval)
	}
	return true
}

// InvalidateInode tells the kernel to drop its cached attributes and
// page-cache contents for ino. A negative off invalidates attributes
// only; a zero length invalidates to the end of the file.
func (c *Channel) InvalidateInode(ino uint64, off, length int64) error {
	status := c.server.InodeNotify(ino, off, length)
	if !status.Ok() {
		return fmt.Errorf("invalidating inode %d: %v", ino, status)
	}
	return nil
}

// InvalidateEntry tells the kernel to drop the cached dentry named name
// under parent, used after a rename or delete performed outside of a
// kernel-issued request (for example, a repository checkout changing
// files under the mount).
func (c *Channel) InvalidateEntry(parent uint64, name string) error {
	status := c.server.EntryNotify(parent, name)
	if !status.Ok() {
		return fmt.Errorf("invalidating entry %q under %d: %v", name, parent, status)
	}
	return nil
}

// MountPath returns the path this channel is mounted at.
func (c *Channel) MountPath() string { return c.mountPath }
