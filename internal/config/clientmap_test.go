package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempClientMap(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadClientDirectoryMapStrictJSON(t *testing.T) {
	t.Parallel()

	path := writeTempClientMap(t, `{"/home/user/repo": "/home/user/.eden/clients/repo"}`)

	m, err := LoadClientDirectoryMap(path)
	require.NoError(t, err)
	assert.Equal(t, "/home/user/.eden/clients/repo", m["/home/user/repo"])
}

func TestLoadClientDirectoryMapTolerantOfCommentsAndTrailingCommas(t *testing.T) {
	t.Parallel()

	path := writeTempClientMap(t, `{
  // first repo
  "/home/user/repo1": "/home/user/.eden/clients/repo1",
  /* second repo */
  "/home/user/repo2": "/home/user/.eden/clients/repo2",
}
`)

	m, err := LoadClientDirectoryMap(path)
	require.NoError(t, err)
	assert.Len(t, m, 2)
	assert.Equal(t, "/home/user/.eden/clients/repo1", m["/home/user/repo1"])
	assert.Equal(t, "/home/user/.eden/clients/repo2", m["/home/user/repo2"])
}

func TestLoadClientDirectoryMapIgnoresCommentMarkersInsideStrings(t *testing.T) {
	t.Parallel()

	path := writeTempClientMap(t, `{"/weird // path": "/home/user/.eden/clients/weird"}`)

	m, err := LoadClientDirectoryMap(path)
	require.NoError(t, err)
	assert.Equal(t, "/home/user/.eden/clients/weird", m["/weird // path"])
}

func TestLoadClientDirectoryMapMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadClientDirectoryMap(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Error(t, err)
}
