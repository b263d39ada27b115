package channel

import (
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// socketpair returns a connected pair of *net.UnixConn, the same
// transport PrivClient/PrivHelperServer run over in production, where
// the pair comes from forking the helper process instead of this
// in-process shortcut.
func socketpair() (*net.UnixConn, *net.UnixConn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, err
	}

	toUnixConn := func(fd int) (*net.UnixConn, error) {
		f := os.NewFile(uintptr(fd), "socketpair")
		c, err := net.FileConn(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		uc, ok := c.(*net.UnixConn)
		if !ok {
			return nil, fmt.Errorf("unexpected conn type %T", c)
		}
		return uc, nil
	}

	a, err := toUnixConn(fds[0])
	if err != nil {
		return nil, nil, err
	}
	b, err := toUnixConn(fds[1])
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, b, nil
}

func TestPrivHelperServerDispatchTable(t *testing.T) {
	t.Parallel()

	// dispatch never touches the connection, so exercising the command
	// table directly avoids standing up a real socketpair for a pure
	// logic check.
	server := &PrivHelperServer{}

	err := server.dispatch(PrivRequest{Command: PrivUnmount, MountPath: "/nonexistent/mountpoint"})
	assert.Error(t, err)

	err = server.dispatch(PrivRequest{Command: PrivSetDaemonTimeout, TimeoutSecs: 30})
	assert.NoError(t, err)

	err = server.dispatch(PrivRequest{Command: "BOGUS"})
	assert.Error(t, err)
}

func TestPrivClientSocketpairUnmountReportsHelperError(t *testing.T) {
	t.Parallel()

	clientConn, serverConn, err := socketpair()
	require.NoError(t, err)
	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})

	server := NewPrivHelperServer(serverConn)
	go server.Serve()

	client := NewPrivClient(clientConn)
	err = client.SetDaemonTimeout(15)
	assert.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- client.Unmount("/nonexistent/mountpoint/for/test")
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for privhelper response")
	}
}
