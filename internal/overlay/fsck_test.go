package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/pathname"
)

func newTestOverlay(t *testing.T) *ShardedFileOverlay {
	t.Helper()
	o := NewShardedFileOverlay(t.TempDir())
	_, err := o.Init(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close(1000) })
	return o
}

func TestScanForErrorsFindsMissingMaterializedChild(t *testing.T) {
	t.Parallel()

	o := newTestOverlay(t)

	root := NewDir()
	root.Entries[pathname.MustComponent("sub")] = DirEntry{
		Kind:         model.KindDirectory,
		Materialized: true,
		ChildInode:   inum.Number(42),
	}
	require.NoError(t, o.SaveDir(inum.Root, root))

	errs, err := ScanForErrors(o, inum.Root, inum.Number(1000))
	require.NoError(t, err)

	var found bool
	for _, e := range errs {
		if e.Kind == MissingMaterialized && e.Inode == inum.Number(42) {
			found = true
		}
	}
	assert.True(t, found, "expected a MissingMaterialized error for inode 42, got %+v", errs)
}

func TestScanForErrorsFindsOrphanRow(t *testing.T) {
	t.Parallel()

	o := newTestOverlay(t)

	require.NoError(t, o.SaveDir(inum.Root, NewDir()))
	require.NoError(t, o.SaveDir(inum.Number(99), NewDir()))

	errs, err := ScanForErrors(o, inum.Root, inum.Number(1000))
	require.NoError(t, err)

	var found bool
	for _, e := range errs {
		if e.Kind == OrphanInode && e.Inode == inum.Number(99) {
			found = true
		}
	}
	assert.True(t, found, "expected an OrphanInode error for inode 99, got %+v", errs)
}

func TestScanForErrorsFindsBadNextInodeWatermark(t *testing.T) {
	t.Parallel()

	o := newTestOverlay(t)
	require.NoError(t, o.SaveDir(inum.Number(500), NewDir()))

	errs, err := ScanForErrors(o, inum.Root, inum.Number(10))
	require.NoError(t, err)

	var found bool
	for _, e := range errs {
		if e.Kind == BadNextInode {
			found = true
		}
	}
	assert.True(t, found, "expected a BadNextInode error, got %+v", errs)
}

func TestScanForErrorsCleanOverlayReportsNothing(t *testing.T) {
	t.Parallel()

	o := newTestOverlay(t)
	require.NoError(t, o.SaveDir(inum.Root, NewDir()))

	errs, err := ScanForErrors(o, inum.Root, inum.Number(1000))
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestRepairErrorsFixesFoundProblemsAndCreatesLostFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	o := NewShardedFileOverlay(dir)
	_, err := o.Init(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close(1000) })

	require.NoError(t, o.SaveDir(inum.Root, NewDir()))
	require.NoError(t, o.SaveDir(inum.Number(99), NewDir()))

	report, err := RepairErrors(o, dir, inum.Root, inum.Number(1000))
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalErrors)
	assert.Equal(t, 1, report.FixedErrors)
	assert.DirExists(t, report.RepairDir)
}
