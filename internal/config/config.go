// Package config parses the per-mount config.toml and the client
// directory map config.json, and carries the validated result plus a set
// of ambient daemon defaults the distilled file format doesn't name
// (overlay backend selection, cache TTLs, worker pool size).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/imdario/mergo"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// RepositoryKind is the source-control backend a mount's repository uses.
type RepositoryKind string

const (
	RepositoryGit RepositoryKind = "git"
	RepositoryHg  RepositoryKind = "hg"
)

// RepositoryConfig is the required [repository] table.
type RepositoryConfig struct {
	Path string `toml:"path"`
	Type string `toml:"type"`
}

// DaemonConfig is the ambient daemon-wide tuning the distilled config.toml
// format doesn't name explicitly; it lives in an optional [daemon] table
// so a config file with only [repository] still loads under defaults.
type DaemonConfig struct {
	LogLevel        string `toml:"log-level"`
	LogOutput       string `toml:"log-output"`
	OverlayBackend  string `toml:"overlay-backend"` // "sharded" or "sql"
	OverlayPath     string `toml:"overlay-path"`
	ObjectStorePath string `toml:"object-store-path"`
	EntryTTLSeconds int    `toml:"entry-ttl-seconds"`
	AttrTTLSeconds  int    `toml:"attr-ttl-seconds"`
	WorkerPoolSize  int    `toml:"worker-pool-size"`
}

// MountConfig is the parsed contents of one mount's config.toml. Unknown
// top-level keys are ignored by the TOML decoder.
type MountConfig struct {
	Repository RepositoryConfig  `toml:"repository"`
	BindMounts map[string]string `toml:"bind-mounts"`
	Daemon     DaemonConfig      `toml:"daemon"`
}

func defaultMountConfig() MountConfig {
	return MountConfig{
		BindMounts: map[string]string{},
		Daemon: DaemonConfig{
			LogLevel:        "info",
			LogOutput:       "STDERR",
			OverlayBackend:  "sharded",
			EntryTTLSeconds: 5,
			AttrTTLSeconds:  5,
			WorkerPoolSize:  16,
		},
	}
}

func readConfigFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func parseConfig(data []byte) (*MountConfig, error) {
	config := &MountConfig{}
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	return config, nil
}

func mergeWithDefaults(config *MountConfig, defaults MountConfig) error {
	return mergo.Merge(config, defaults)
}

func validateConfig(config *MountConfig) error {
	if config.Repository.Path == "" {
		return fmt.Errorf("config.toml: [repository].path is required")
	}
	switch strings.ToLower(config.Repository.Type) {
	case string(RepositoryGit), string(RepositoryHg):
		config.Repository.Type = strings.ToLower(config.Repository.Type)
	default:
		return fmt.Errorf("config.toml: [repository].type must be %q or %q, got %q",
			RepositoryGit, RepositoryHg, config.Repository.Type)
	}

	switch config.Daemon.OverlayBackend {
	case "sharded", "sql":
	default:
		log.Warn().
			Str("overlayBackend", config.Daemon.OverlayBackend).
			Msg("unrecognized overlay backend, defaulting to sharded")
		config.Daemon.OverlayBackend = "sharded"
	}
	if config.Daemon.WorkerPoolSize <= 0 {
		config.Daemon.WorkerPoolSize = 16
	}
	if config.Daemon.EntryTTLSeconds < 0 {
		config.Daemon.EntryTTLSeconds = 0
	}
	if config.Daemon.AttrTTLSeconds < 0 {
		config.Daemon.AttrTTLSeconds = 0
	}
	return nil
}

// LoadMountConfig is the primary entry point for reading a mount's
// config.toml. Unlike some of this daemon's sibling tools, a missing or
// unparseable file here is fatal: a mount's repository path and type
// cannot be guessed at, so silently falling back to defaults would mount
// against the wrong repository instead of failing loudly.
func LoadMountConfig(path string) (*MountConfig, error) {
	defaults := defaultMountConfig()

	data, err := readConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	config, err := parseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := mergeWithDefaults(config, defaults); err != nil {
		return nil, fmt.Errorf("merging %s with defaults: %w", path, err)
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfigPath returns the conventional per-user location for a
// mount's config.toml, mirroring the XDG-aware layout other mount
// daemons in this ecosystem use for their own config files.
func DefaultConfigPath(mountName string) string {
	confDir, err := os.UserConfigDir()
	if err != nil {
		log.Error().Err(err).Msg("could not determine configuration directory")
	}
	return filepath.Join(confDir, "edenfs", mountName, "config.toml")
}
