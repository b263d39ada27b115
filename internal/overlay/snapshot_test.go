package overlay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/objhash"
)

func TestSnapshotMarkerRoundTripOneParent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "SNAPSHOT")
	commits := model.ParentCommits{Parent1: objhash.Sum([]byte("commit one"))}

	require.NoError(t, WriteSnapshotMarker(path, commits))

	read, err := ReadSnapshotMarker(path)
	require.NoError(t, err)
	assert.Equal(t, commits.Parent1, read.Parent1)
	assert.Nil(t, read.Parent2)
}

func TestSnapshotMarkerRoundTripTwoParents(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "SNAPSHOT")
	parent2 := objhash.Sum([]byte("commit two"))
	commits := model.ParentCommits{Parent1: objhash.Sum([]byte("commit one")), Parent2: &parent2}

	require.NoError(t, WriteSnapshotMarker(path, commits))

	read, err := ReadSnapshotMarker(path)
	require.NoError(t, err)
	assert.Equal(t, commits.Parent1, read.Parent1)
	require.NotNil(t, read.Parent2)
	assert.Equal(t, parent2, *read.Parent2)
}

func TestParseSnapshotMarkerAcceptsLegacyHexFormat(t *testing.T) {
	t.Parallel()

	h := objhash.Sum([]byte("legacy commit"))
	legacy := []byte(h.String() + "\n")

	parsed, err := ParseSnapshotMarker(legacy)
	require.NoError(t, err)
	assert.Equal(t, h, parsed.Parent1)
	assert.Nil(t, parsed.Parent2)
}

func TestParseSnapshotMarkerRejectsBadLength(t *testing.T) {
	t.Parallel()

	_, err := ParseSnapshotMarker([]byte("too short"))
	assert.Error(t, err)
}

func TestParseSnapshotMarkerRejectsUnsupportedVersion(t *testing.T) {
	t.Parallel()

	commits := model.ParentCommits{Parent1: objhash.Sum([]byte("x"))}
	data := EncodeSnapshotMarker(commits)
	data[7] = 0xFF // corrupt the version field

	_, err := ParseSnapshotMarker(data)
	assert.Error(t, err)
}

func TestReadSnapshotMarkerMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ReadSnapshotMarker(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestWriteSnapshotMarkerIsAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "SNAPSHOT")
	commits := model.ParentCommits{Parent1: objhash.Sum([]byte("v1"))}
	require.NoError(t, WriteSnapshotMarker(path, commits))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not survive a successful write")
}
