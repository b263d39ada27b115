package channel

import (
	"encoding/gob"
	"fmt"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/auriora/edenfs/internal/logging"
)

// PrivHelperServer is the privileged side of the control socket: the
// small amount of code that still needs to run as root (or with
// CAP_SYS_ADMIN) to call mount(2)/umount(2) on the daemon's behalf. It is
// meant to be started before the daemon process drops privileges, and to
// run in its own process for the lifetime of the mount.
type PrivHelperServer struct {
	conn *net.UnixConn
}

// NewPrivHelperServer wraps the server half of a socketpair(2) created
// before forking.
func NewPrivHelperServer(conn *net.UnixConn) *PrivHelperServer {
	return &PrivHelperServer{conn: conn}
}

// Serve processes requests until the client closes the connection, which
// is this helper's only shutdown signal: there is no separate quit
// command, since the daemon exiting is itself the end of the helper's
// reason to exist.
func (s *PrivHelperServer) Serve() {
	for {
		var req PrivRequest
		dec := gob.NewDecoder(s.conn)
		if err := dec.Decode(&req); err != nil {
			logging.Debug().Err(err).Msg("privhelper connection closed")
			return
		}

		if req.Command == PrivMount {
			s.handleMount(req)
			continue
		}

		err := s.dispatch(req)
		resp := PrivResponse{Xid: req.Xid}
		if err != nil {
			resp.ErrorMessage = err.Error()
		}
		if encErr := gob.NewEncoder(s.conn).Encode(resp); encErr != nil {
			logging.LogError(encErr, "failed to send privhelper response", "command", string(req.Command))
			return
		}
	}
}

func (s *PrivHelperServer) dispatch(req PrivRequest) error {
	switch req.Command {
	case PrivUnmount:
		return syscall.Unmount(req.MountPath, 0)
	case PrivBindMount:
		return unix.Mount(req.ClientPath, req.MountPath, "", unix.MS_BIND, "")
	case PrivTakeoverShutdown, PrivTakeoverStartup, PrivSetLogFile, PrivSetDaemonTimeout, PrivSetUseEdenFS:
		// These are acknowledged without a syscall; the helper records
		// nothing for them, so a later MOUNT is unaffected.
		return nil
	default:
		return fmt.Errorf("unknown privhelper command %q", req.Command)
	}
}

func (s *PrivHelperServer) handleMount(req PrivRequest) {
	fd, err := unix.Open("/dev/fuse", unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		s.sendMountError(req.Xid, fmt.Errorf("opening /dev/fuse: %w", err))
		return
	}
	defer unix.Close(fd)

	mountData := fmt.Sprintf("fd=%d,rootmode=40000,user_id=%d,group_id=%d", fd, os.Getuid(), os.Getgid())
	if err := unix.Mount("edenfs", req.MountPath, "fuse.edenfs", 0, mountData); err != nil {
		s.sendMountError(req.Xid, fmt.Errorf("mount(2) on %s: %w", req.MountPath, err))
		return
	}

	resp := PrivResponse{Xid: req.Xid}
	var buf []byte
	enc := gob.NewEncoder(&byteSink{&buf})
	if err := enc.Encode(resp); err != nil {
		s.sendMountError(req.Xid, err)
		return
	}

	rights := unix.UnixRights(fd)
	if _, _, err := s.conn.WriteMsgUnix(buf, rights, nil); err != nil {
		logging.LogError(err, "failed to send MOUNT response with file descriptor")
	}
}

func (s *PrivHelperServer) sendMountError(xid uint32, cause error) {
	resp := PrivResponse{Xid: xid, ErrorMessage: cause.Error()}
	if err := gob.NewEncoder(s.conn).Encode(resp); err != nil {
		logging.LogError(err, "failed to send MOUNT error response")
	}
}

// byteSink adapts a pointer-to-slice to io.Writer for gob.Encoder, since
// the fd-carrying reply has to be built up before a single WriteMsgUnix
// call rather than streamed.
type byteSink struct{ buf *[]byte }

func (w *byteSink) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}
