package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriora/edenfs/internal/fserrors"
	"github.com/auriora/edenfs/internal/inum"
)

func TestOpenAllocatesUniqueIDs(t *testing.T) {
	t.Parallel()

	m := NewMap()
	ids := make(map[uint64]bool)
	for i := 0; i < 100; i++ {
		id, err := m.Open(inum.Number(i), KindFile, i)
		require.NoError(t, err)
		assert.False(t, ids[id], "handle id %d allocated twice", id)
		ids[id] = true
	}
	assert.Equal(t, 100, m.Len())
}

func TestGetFileRejectsDirectoryHandle(t *testing.T) {
	t.Parallel()

	m := NewMap()
	id, err := m.Open(inum.Number(1), KindDir, "dir-value")
	require.NoError(t, err)

	_, _, err = m.GetFile(id)
	assert.Equal(t, fserrors.IsDir, fserrors.KindOf(err))
}

func TestGetDirRejectsFileHandle(t *testing.T) {
	t.Parallel()

	m := NewMap()
	id, err := m.Open(inum.Number(1), KindFile, "file-value")
	require.NoError(t, err)

	_, _, err = m.GetDir(id)
	assert.Equal(t, fserrors.NotDir, fserrors.KindOf(err))
}

func TestGetFileUnknownIDIsBadHandle(t *testing.T) {
	t.Parallel()

	m := NewMap()
	_, _, err := m.GetFile(12345)
	assert.Equal(t, fserrors.BadHandle, fserrors.KindOf(err))
}

func TestCloseRemovesHandle(t *testing.T) {
	t.Parallel()

	m := NewMap()
	id, err := m.Open(inum.Number(1), KindFile, "v")
	require.NoError(t, err)

	m.Close(id)
	assert.Equal(t, 0, m.Len())

	_, _, err = m.GetFile(id)
	assert.Error(t, err)
}

func TestCloseUnknownIDIsNoop(t *testing.T) {
	t.Parallel()

	m := NewMap()
	assert.NotPanics(t, func() { m.Close(999) })
}

func TestSerializeEmptiesTableAndPreservesRows(t *testing.T) {
	t.Parallel()

	m := NewMap()
	fileID, err := m.Open(inum.Number(1), KindFile, "f")
	require.NoError(t, err)
	dirID, err := m.Open(inum.Number(2), KindDir, "d")
	require.NoError(t, err)

	rows := m.Serialize()
	assert.Len(t, rows, 2)
	assert.Equal(t, 0, m.Len())

	var sawFile, sawDir bool
	for _, r := range rows {
		switch r.HandleID {
		case fileID:
			sawFile = true
			assert.False(t, r.IsDir)
			assert.Equal(t, inum.Number(1), r.InodeNumber)
		case dirID:
			sawDir = true
			assert.True(t, r.IsDir)
			assert.Equal(t, inum.Number(2), r.InodeNumber)
		}
	}
	assert.True(t, sawFile)
	assert.True(t, sawDir)
}

func TestRestoreInsertsExactBinding(t *testing.T) {
	t.Parallel()

	m := NewMap()
	m.Restore(7, inum.Number(99), KindFile, "restored")

	value, inode, err := m.GetFile(7)
	require.NoError(t, err)
	assert.Equal(t, "restored", value)
	assert.Equal(t, inum.Number(99), inode)
}
