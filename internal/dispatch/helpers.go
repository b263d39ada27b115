package dispatch

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/auriora/edenfs/internal/fserrors"
)

func errNoEntry() error {
	return fserrors.New(fserrors.NoEntry, "inode is not live")
}

func errNotDir() error {
	return fserrors.New(fserrors.NotDir, "inode is not a directory")
}

func mtimeFromSetAttr(input *fuse.SetAttrIn) time.Time {
	if input.Valid&fuse.FATTR_MTIME_NOW != 0 {
		return time.Now()
	}
	return time.Unix(int64(input.Mtime), int64(input.Mtimensec))
}
