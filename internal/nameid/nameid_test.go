package nameid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriora/edenfs/internal/inum"
	"github.com/auriora/edenfs/internal/pathname"
)

func component(t *testing.T, s string) pathname.Component {
	t.Helper()
	c, err := pathname.NewComponent(s)
	require.NoError(t, err)
	return c
}

func TestGetOrCreateAllocatesOnce(t *testing.T) {
	t.Parallel()

	m := NewManager()
	name := component(t, "foo")

	first := m.GetOrCreate(inum.Root, name)
	second := m.GetOrCreate(inum.Root, name)

	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, inum.Root, first.ID)
}

func TestBindIsIdempotent(t *testing.T) {
	t.Parallel()

	m := NewManager()
	name := component(t, "bar")

	require.NoError(t, m.Bind(inum.Root, name, 100, 1))
	require.NoError(t, m.Bind(inum.Root, name, 100, 1))

	node, ok := m.GetNodeByName(inum.Root, name)
	require.True(t, ok)
	assert.Equal(t, inum.Number(100), node.ID)
}

func TestBindRejectsConflictingID(t *testing.T) {
	t.Parallel()

	m := NewManager()
	name := component(t, "baz")

	require.NoError(t, m.Bind(inum.Root, name, 100, 1))
	err := m.Bind(inum.Root, name, 200, 1)
	assert.Error(t, err)
}

func TestBindAdvancesNextID(t *testing.T) {
	t.Parallel()

	m := NewManager()
	require.NoError(t, m.Bind(inum.Root, component(t, "high"), 500, 1))

	assert.True(t, m.NextID() > 500)

	n := m.GetOrCreate(inum.Root, component(t, "next"))
	assert.True(t, n.ID >= 501)
}

func TestUnlinkRemovesNameButKeepsID(t *testing.T) {
	t.Parallel()

	m := NewManager()
	name := component(t, "gone")
	created := m.GetOrCreate(inum.Root, name)

	m.Unlink(inum.Root, name)

	_, ok := m.GetNodeByName(inum.Root, name)
	assert.False(t, ok)

	_, ok = m.GetNodeByID(created.ID)
	assert.True(t, ok)
}

func TestRenameMovesNameBinding(t *testing.T) {
	t.Parallel()

	m := NewManager()
	oldName := component(t, "old")
	newName := component(t, "new")
	created := m.GetOrCreate(inum.Root, oldName)

	require.NoError(t, m.Rename(inum.Root, oldName, inum.Root, newName))

	_, ok := m.GetNodeByName(inum.Root, oldName)
	assert.False(t, ok)

	moved, ok := m.GetNodeByName(inum.Root, newName)
	require.True(t, ok)
	assert.Equal(t, created.ID, moved.ID)
}

func TestRenameRejectsOccupiedDestination(t *testing.T) {
	t.Parallel()

	m := NewManager()
	src := component(t, "src")
	dst := component(t, "dst")
	m.GetOrCreate(inum.Root, src)
	m.GetOrCreate(inum.Root, dst)

	err := m.Rename(inum.Root, src, inum.Root, dst)
	assert.Error(t, err)
}

func TestRenameRejectsMissingSource(t *testing.T) {
	t.Parallel()

	m := NewManager()
	err := m.Rename(inum.Root, component(t, "missing"), inum.Root, component(t, "dst"))
	assert.Error(t, err)
}
