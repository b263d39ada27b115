package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadMountConfigAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
[repository]
path = "/home/user/repo"
type = "git"
`)

	cfg, err := LoadMountConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/home/user/repo", cfg.Repository.Path)
	assert.Equal(t, "git", cfg.Repository.Type)
	assert.Equal(t, "info", cfg.Daemon.LogLevel)
	assert.Equal(t, "sharded", cfg.Daemon.OverlayBackend)
	assert.Equal(t, 16, cfg.Daemon.WorkerPoolSize)
	assert.Equal(t, 5, cfg.Daemon.EntryTTLSeconds)
}

func TestLoadMountConfigOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
[repository]
path = "/home/user/repo"
type = "hg"

[daemon]
log-level = "debug"
overlay-backend = "sql"
worker-pool-size = 4
`)

	cfg, err := LoadMountConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "hg", cfg.Repository.Type)
	assert.Equal(t, "debug", cfg.Daemon.LogLevel)
	assert.Equal(t, "sql", cfg.Daemon.OverlayBackend)
	assert.Equal(t, 4, cfg.Daemon.WorkerPoolSize)
}

func TestLoadMountConfigRequiresRepositoryPath(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
[repository]
type = "git"
`)

	_, err := LoadMountConfig(path)
	assert.Error(t, err)
}

func TestLoadMountConfigRejectsUnknownRepositoryType(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
[repository]
path = "/home/user/repo"
type = "svn"
`)

	_, err := LoadMountConfig(path)
	assert.Error(t, err)
}

func TestLoadMountConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadMountConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	assert.Error(t, err)
}

func TestLoadMountConfigNormalizesUnknownOverlayBackend(t *testing.T) {
	t.Parallel()

	path := writeTempConfig(t, `
[repository]
path = "/home/user/repo"
type = "git"

[daemon]
overlay-backend = "bogus"
`)

	cfg, err := LoadMountConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sharded", cfg.Daemon.OverlayBackend)
}
