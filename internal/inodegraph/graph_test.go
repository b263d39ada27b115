package inodegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/model"
	"github.com/auriora/edenfs/internal/nameid"
	"github.com/auriora/edenfs/internal/objectstore"
	"github.com/auriora/edenfs/internal/overlay"
	"github.com/auriora/edenfs/internal/pathname"
)

// newTestGraph builds a Graph rooted at an empty tree registered in a
// MemStore: every test below builds its fixture entirely through
// Mkdir/CreateFile rather than a backing Tree with real entries.
func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	ovl := overlay.NewShardedFileOverlay(t.TempDir())
	_, err := ovl.Init(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ovl.Close(100000) })

	store := objectstore.NewMemStore()
	rootTree, err := model.NewTree(nil)
	require.NoError(t, err)
	store.PutTree(rootTree)

	names := nameid.NewManager()
	g, err := New(store, ovl, names, rootTree.SelfHash)
	require.NoError(t, err)
	return g
}

func TestMkdirThenLookupFindsMaterializedChild(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	name := pathname.MustComponent("sub")

	created, err := g.Mkdir(inum.Root, name, 0o755)
	require.NoError(t, err)
	assert.True(t, created.IsDir())

	found, err := g.Lookup(inum.Root, name)
	require.NoError(t, err)
	assert.Equal(t, created.Number, found.Number)
}

func TestCreateFileMaterializesOnWrite(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	name := pathname.MustComponent("file.txt")

	f, err := g.CreateFile(inum.Root, name, 0o644)
	require.NoError(t, err)

	n, err := g.Write(f.Number, 0, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = g.Read(f.Number, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestRenameMovesEntryBetweenDirectories(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	srcDirName := pathname.MustComponent("src")
	dstDirName := pathname.MustComponent("dst")
	fileName := pathname.MustComponent("f")

	srcDir, err := g.Mkdir(inum.Root, srcDirName, 0o755)
	require.NoError(t, err)
	dstDir, err := g.Mkdir(inum.Root, dstDirName, 0o755)
	require.NoError(t, err)

	_, err = g.CreateFile(srcDir.Number, fileName, 0o644)
	require.NoError(t, err)

	require.NoError(t, g.Rename(srcDir.Number, fileName, dstDir.Number, fileName))

	_, err = g.Lookup(srcDir.Number, fileName)
	assert.Error(t, err)

	_, err = g.Lookup(dstDir.Number, fileName)
	assert.NoError(t, err)
}

func TestRenameOntoNonEmptyDirectoryFails(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	a := pathname.MustComponent("a")
	b := pathname.MustComponent("b")
	child := pathname.MustComponent("child")

	_, err := g.Mkdir(inum.Root, a, 0o755)
	require.NoError(t, err)
	bDir, err := g.Mkdir(inum.Root, b, 0o755)
	require.NoError(t, err)
	_, err = g.Mkdir(bDir.Number, child, 0o755)
	require.NoError(t, err)

	err = g.Rename(inum.Root, a, inum.Root, b)
	assert.Error(t, err)
}

func TestForgetEvictsThenLookupRebindsSameID(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	name := pathname.MustComponent("ephemeral")

	created, err := g.Mkdir(inum.Root, name, 0o755)
	require.NoError(t, err)
	created.IncrLookup()

	g.Forget(created.Number, 2)
	_, stillLive := g.GetLive(created.Number)
	assert.False(t, stillLive)

	found, err := g.Lookup(inum.Root, name)
	require.NoError(t, err)
	assert.Equal(t, created.Number, found.Number)
}

func TestUnlinkRemovesEntry(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	name := pathname.MustComponent("doomed")

	_, err := g.CreateFile(inum.Root, name, 0o644)
	require.NoError(t, err)

	require.NoError(t, g.Unlink(inum.Root, name))

	_, err = g.Lookup(inum.Root, name)
	assert.Error(t, err)
}

func TestWalkMaterializedReportsCreatedDirectories(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	_, err := g.Mkdir(inum.Root, pathname.MustComponent("one"), 0o755)
	require.NoError(t, err)
	_, err = g.Mkdir(inum.Root, pathname.MustComponent("two"), 0o755)
	require.NoError(t, err)

	dirs, err := g.WalkMaterialized()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(dirs), 2)
}
