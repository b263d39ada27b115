package fserrors

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrnoMappingCoversEveryDocumentedKind(t *testing.T) {
	t.Parallel()

	cases := map[Kind]syscall.Errno{
		NoEntry:            syscall.ENOENT,
		NoAttribute:        syscall.ENODATA,
		BadHandle:          syscall.EBADF,
		IsDir:              syscall.EISDIR,
		NotDir:             syscall.ENOTDIR,
		Exists:             syscall.EEXIST,
		NotEmpty:           syscall.ENOTEMPTY,
		ReadOnly:           syscall.EROFS,
		CrossMount:         syscall.EXDEV,
		AccessDenied:       syscall.EACCES,
		Interrupted:        syscall.EINTR,
		Timeout:            syscall.ETIMEDOUT,
		Exhausted:          syscall.EMFILE,
		NotImplemented:     syscall.ENOSYS,
		CorruptSnapshot:    syscall.EIO,
		BackendUnavailable: syscall.EIO,
		Unclassified:       syscall.EIO,
	}

	for kind, want := range cases {
		assert.Equalf(t, want, kind.Errno(), "kind %s", kind)
	}
}

func TestKindOfRecoversTagFromWrappedError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk fell over")
	wrapped := Wrap(BackendUnavailable, cause, "could not read tree")

	assert.Equal(t, BackendUnavailable, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, cause) || errors.Unwrap(wrapped) == cause)
}

func TestKindOfUntaggedErrorIsUnclassified(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Unclassified, KindOf(errors.New("plain error")))
	assert.Equal(t, Unclassified, KindOf(nil))
}

func TestWrapNilReturnsNil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Wrap(NoEntry, nil, "unused"))
	assert.NoError(t, Wrapf(NoEntry, nil, "unused %d", 1))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying")
	err := Wrap(CorruptSnapshot, cause, "bad marker")

	assert.Contains(t, err.Error(), "CorruptSnapshot")
	assert.Contains(t, err.Error(), "bad marker")
	assert.Contains(t, err.Error(), "underlying")
}
