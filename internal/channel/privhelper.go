package channel

import (
	"encoding/gob"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/auriora/edenfs/internal/logging"
)

// PrivCommand identifies one request the unprivileged daemon can send to
// its privileged helper over the local control socket. The helper is a
// separate process started before the daemon drops root, holding exactly
// the capabilities mount(2)/umount(2) require so the long-running daemon
// itself never needs them.
type PrivCommand string

const (
	PrivMount             PrivCommand = "MOUNT"
	PrivUnmount           PrivCommand = "UNMOUNT"
	PrivBindMount         PrivCommand = "BIND_MOUNT"
	PrivTakeoverShutdown  PrivCommand = "TAKEOVER_SHUTDOWN"
	PrivTakeoverStartup   PrivCommand = "TAKEOVER_STARTUP"
	PrivSetLogFile        PrivCommand = "SET_LOG_FILE"
	PrivSetDaemonTimeout  PrivCommand = "SET_DAEMON_TIMEOUT"
	PrivSetUseEdenFS      PrivCommand = "SET_USE_EDENFS"
)

// PrivRequest is one transaction sent to the helper. Xid is assigned by
// the client and echoed back unmodified, so a client waiting on
// sendAndRecv can detect a mismatched reply instead of silently pairing
// the wrong response with the wrong request.
type PrivRequest struct {
	Xid         uint32
	Command     PrivCommand
	MountPath   string
	ClientPath  string
	TimeoutSecs int
	Flag        bool
}

// PrivResponse is the helper's reply. ErrorMessage is non-empty on
// failure; a MOUNT response additionally carries a file descriptor over
// the socket's ancillary data, not in this struct.
type PrivResponse struct {
	Xid          uint32
	ErrorMessage string
}

// PrivClient is the unprivileged daemon's handle to the helper
// connection. A single in-flight request is enforced by mu, mirroring
// the helper process's own single-threaded request loop: there is no
// benefit pipelining requests the other end processes serially anyway.
type PrivClient struct {
	mu      sync.Mutex
	conn    *net.UnixConn
	nextXid uint32
}

// NewPrivClient wraps an already-connected control socket, typically the
// client half of a socketpair(2) created before forking the helper.
func NewPrivClient(conn *net.UnixConn) *PrivClient {
	return &PrivClient{conn: conn, nextXid: 1}
}

func (c *PrivClient) allocXid() uint32 {
	return atomic.AddUint32(&c.nextXid, 1) - 1
}

// sendAndRecv serializes req with encoding/gob, sends it, and blocks for
// the matching response. Holding mu for the duration serializes callers;
// the helper itself has no queueing so there is nothing to gain by
// issuing requests concurrently from this side either.
func (c *PrivClient) sendAndRecv(req PrivRequest) (PrivResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req.Xid = c.allocXid()

	enc := gob.NewEncoder(c.conn)
	if err := enc.Encode(req); err != nil {
		return PrivResponse{}, fmt.Errorf("sending %s request: %w", req.Command, err)
	}

	var resp PrivResponse
	dec := gob.NewDecoder(c.conn)
	if err := dec.Decode(&resp); err != nil {
		return PrivResponse{}, fmt.Errorf("receiving %s response: %w", req.Command, err)
	}
	if resp.Xid != req.Xid {
		err := fmt.Errorf("mismatched privhelper response: sent xid %d, got %d", req.Xid, resp.Xid)
		logging.LogError(err, "privhelper protocol error", "command", req.Command)
		return PrivResponse{}, err
	}
	if resp.ErrorMessage != "" {
		return PrivResponse{}, fmt.Errorf("privhelper: %s", resp.ErrorMessage)
	}
	return resp, nil
}

// Mount asks the helper to perform the kernel mount(2) call and hand back
// the resulting /dev/fuse file descriptor, received as ancillary data
// (SCM_RIGHTS) alongside the gob-encoded response — the same mechanism
// go-fuse's own fusermount helper uses to cross the privilege boundary.
func (c *PrivClient) Mount(mountPath string) (*os.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := PrivRequest{Xid: c.allocXid(), Command: PrivMount, MountPath: mountPath}
	enc := gob.NewEncoder(c.conn)
	if err := enc.Encode(req); err != nil {
		return nil, fmt.Errorf("sending MOUNT request: %w", err)
	}

	buf := make([]byte, 4096)
	oob := make([]byte, unix.CmsgSpace(4))
	n, oobn, _, _, err := c.conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return nil, fmt.Errorf("receiving MOUNT response: %w", err)
	}

	var resp PrivResponse
	dec := gob.NewDecoder(&sliceReader{buf[:n]})
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding MOUNT response: %w", err)
	}
	if resp.Xid != req.Xid {
		err := fmt.Errorf("mismatched privhelper response: sent xid %d, got %d", req.Xid, resp.Xid)
		logging.LogError(err, "privhelper protocol error", "command", req.Command)
		return nil, err
	}
	if resp.ErrorMessage != "" {
		return nil, fmt.Errorf("privhelper: %s", resp.ErrorMessage)
	}

	fds, err := receivedFDs(oob[:oobn])
	if err != nil {
		return nil, err
	}
	if len(fds) != 1 {
		err := fmt.Errorf("privhelper MOUNT response carried %d file descriptors, want 1", len(fds))
		logging.LogError(err, "privhelper protocol error", "command", req.Command)
		return nil, err
	}
	return os.NewFile(uintptr(fds[0]), "/dev/fuse"), nil
}

// Unmount asks the helper to perform umount(2) on mountPath.
func (c *PrivClient) Unmount(mountPath string) error {
	_, err := c.sendAndRecv(PrivRequest{Command: PrivUnmount, MountPath: mountPath})
	return err
}

// BindMount asks the helper to bind-mount clientPath onto mountPath, used
// to project a client directory's bind-mounts into the working copy
// without granting the daemon mount(2) capability itself.
func (c *PrivClient) BindMount(clientPath, mountPath string) error {
	_, err := c.sendAndRecv(PrivRequest{Command: PrivBindMount, ClientPath: clientPath, MountPath: mountPath})
	return err
}

// TakeoverShutdown tells the helper a graceful daemon restart is
// beginning: the mount should be kept alive, to be handed to the
// replacement process that calls TakeoverStartup.
func (c *PrivClient) TakeoverShutdown(mountPath string) error {
	_, err := c.sendAndRecv(PrivRequest{Command: PrivTakeoverShutdown, MountPath: mountPath})
	return err
}

// TakeoverStartup tells the helper a replacement daemon is ready to
// resume serving mountPath after a graceful restart.
func (c *PrivClient) TakeoverStartup(mountPath string) error {
	_, err := c.sendAndRecv(PrivRequest{Command: PrivTakeoverStartup, MountPath: mountPath})
	return err
}

// SetLogFile tells the helper which path to reopen its own log output
// against, used after log rotation.
func (c *PrivClient) SetLogFile(path string) error {
	_, err := c.sendAndRecv(PrivRequest{Command: PrivSetLogFile, MountPath: path})
	return err
}

// SetDaemonTimeout adjusts how long the helper waits for the daemon to
// acknowledge a takeover before assuming it died and unmounting.
func (c *PrivClient) SetDaemonTimeout(seconds int) error {
	_, err := c.sendAndRecv(PrivRequest{Command: PrivSetDaemonTimeout, TimeoutSecs: seconds})
	return err
}

// SetUseEdenFS toggles whether the helper treats future MOUNT requests as
// edenfs mounts (affecting mount(2) flags like nosuid/nodev) versus
// generic bind mounts.
func (c *PrivClient) SetUseEdenFS(enabled bool) error {
	_, err := c.sendAndRecv(PrivRequest{Command: PrivSetUseEdenFS, Flag: enabled})
	return err
}

func receivedFDs(oob []byte) ([]int, error) {
	messages, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("parsing control message: %w", err)
	}
	var fds []int
	for _, msg := range messages {
		parsed, err := unix.ParseUnixRights(&msg)
		if err != nil {
			return nil, fmt.Errorf("parsing unix rights: %w", err)
		}
		fds = append(fds, parsed...)
	}
	return fds, nil
}

// sliceReader adapts a byte slice already read off the socket to the
// io.Reader gob.Decoder expects, since ReadMsgUnix hands back a fixed
// buffer rather than a stream.
type sliceReader struct{ b []byte }

func (r *sliceReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, fmt.Errorf("short read decoding privhelper response")
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}
