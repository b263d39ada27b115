// Command edenfs mounts a source-control-aware virtual filesystem over a
// repository working copy: files are materialized from the object store
// on first write, and everything else is served lazily from the
// checked-out tree without a full checkout ever touching disk.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/unit"
	flag "github.com/spf13/pflag"

	"github.com/auriora/edenfs/internal/channel"
	"github.com/auriora/edenfs/internal/config"
	"github.com/auriora/edenfs/internal/dispatch"
	"github.com/auriora/edenfs/internal/handle"
	"github.com/auriora/edenfs/internal/inodegraph"
	"github.com/auriora/edenfs/internal/logging"
	"github.com/auriora/edenfs/internal/nameid"
	"github.com/auriora/edenfs/internal/objectstore"
	"github.com/auriora/edenfs/internal/objhash"
	"github.com/auriora/edenfs/internal/overlay"
	"github.com/auriora/edenfs/internal/reqctx"
)

var (
	flagConfigPath   = flag.StringP("config", "c", "", "path to config.toml (default: per-mount XDG config dir)")
	flagObjectStore  = flag.String("object-store", "", "path to the bbolt object store (overrides config.toml)")
	flagRootTree     = flag.String("root-tree", "", "hex SHA-1 of the working copy's root tree (required)")
	flagForeground   = flag.BoolP("foreground", "f", false, "run in the foreground instead of daemonizing")
	flagDebugFuse    = flag.Bool("debug-fuse", false, "enable go-fuse request/response tracing")
	flagMountTimeout = flag.Duration("mount-timeout", 30*time.Second, "time to wait for the kernel handshake to complete")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: edenfs [flags] <mountpoint>")
		os.Exit(1)
	}

	if *flagForeground {
		logging.SetOutput(logging.NewConsoleWriterWithOptions(os.Stderr, logging.HumanReadableTimeFormat))
	}
	mountpoint, err := filepath.Abs(flag.Arg(0))
	if err != nil {
		logging.Fatal().Err(err).Str("mountpoint", flag.Arg(0)).Msg("could not resolve mountpoint")
	}

	if isMountpointMounted(mountpoint) {
		logging.Fatal().Str("mountpoint", mountpoint).
			Msg("mountpoint is already mounted; unmount it first")
	}

	if !*flagForeground {
		daemonize()
	}

	mountName := unit.UnitNamePathEscape(mountpoint)
	configPath := *flagConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigPath(mountName)
	}

	mountConfig, err := config.LoadMountConfig(configPath)
	if err != nil {
		logging.Fatal().Err(err).Str("config", configPath).Msg("could not load config.toml")
	}
	logging.SetLevel(logging.ParseLevel(mountConfig.Daemon.LogLevel))

	objectStorePath := *flagObjectStore
	if objectStorePath == "" {
		objectStorePath = mountConfig.Daemon.ObjectStorePath
	}
	store, err := objectstore.OpenBoltStore(objectStorePath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", objectStorePath).Msg("could not open object store")
	}
	defer store.Close()

	ovl, err := openOverlay(mountConfig)
	if err != nil {
		logging.Fatal().Err(err).Msg("could not open overlay backend")
	}
	next, err := ovl.Init(true)
	if err != nil {
		logging.Fatal().Err(err).Msg("could not initialize overlay")
	}

	names := nameid.NewManager()
	if next == nil {
		logging.Warn().Msg("overlay was not shut down cleanly last session; run the consistency checker before trusting cached state")
	}
	rootTreeHash, err := resolveRootTree(*flagRootTree)
	if err != nil {
		logging.Fatal().Err(err).Msg("could not determine root tree")
	}

	graph, err := inodegraph.New(store, ovl, names, rootTreeHash)
	if err != nil {
		logging.Fatal().Err(err).Msg("could not construct inode graph")
	}

	handles := handle.NewMap()
	tracker := reqctx.NewTracker()

	entryTTL := time.Duration(mountConfig.Daemon.EntryTTLSeconds) * time.Second
	attrTTL := time.Duration(mountConfig.Daemon.AttrTTLSeconds) * time.Second
	disp := dispatch.New(graph, handles, tracker, entryTTL, attrTTL)

	opts := channel.DefaultOptions()
	opts.Debug = *flagDebugFuse
	opts.AllowOther = isUserAllowOtherEnabled()

	ch, err := channel.Mount(mountpoint, disp, tracker, opts)
	if err != nil {
		logging.Fatal().Err(err).Str("mountpoint", mountpoint).Msg("mount failed")
	}

	waitErrCh := make(chan error, 1)
	go func() { waitErrCh <- ch.WaitMounted() }()
	select {
	case err := <-waitErrCh:
		if err != nil {
			logging.Fatal().Err(err).Msg("kernel handshake failed")
		}
	case <-time.After(*flagMountTimeout):
		logging.Fatal().Dur("timeout", *flagMountTimeout).Msg("timed out waiting for kernel handshake")
	}

	setupSignalHandler(ch, ovl, names, mountpoint)

	logging.Info().
		Str("mountpoint", mountpoint).
		Str("overlayBackend", mountConfig.Daemon.OverlayBackend).
		Str("repository", mountConfig.Repository.Path).
		Msg("edenfs mounted")

	reason := ch.RunSession()
	logging.Info().Str("reason", string(reason)).Msg("session loop returned")
}

func openOverlay(cfg *config.MountConfig) (overlay.Backend, error) {
	switch cfg.Daemon.OverlayBackend {
	case "sql":
		return overlay.OpenSQLOverlay(cfg.Daemon.OverlayPath)
	default:
		return overlay.NewShardedFileOverlay(cfg.Daemon.OverlayPath), nil
	}
}

// resolveRootTree parses the bootstrap root tree hash supplied on the
// command line. Populating the object store itself from a repository's
// working copy is the job of a separate import tool; this daemon only
// ever reads what that tool already wrote.
func resolveRootTree(hex string) (objhash.Hash, error) {
	if hex == "" {
		return objhash.Hash{}, fmt.Errorf("--root-tree is required")
	}
	return objhash.FromHex(hex)
}

func isMountpointMounted(mountpoint string) bool {
	cmd := exec.Command("findmnt", "--noheadings", "--output", "TARGET", mountpoint)
	output, err := cmd.Output()
	return err == nil && len(output) > 0
}

// isUserAllowOtherEnabled reports whether /etc/fuse.conf permits
// non-mounting users to access the mount, mirroring the check FUSE
// itself performs before honoring the allow_other mount option.
func isUserAllowOtherEnabled() bool {
	data, err := os.ReadFile("/etc/fuse.conf")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "user_allow_other" {
			return true
		}
	}
	return false
}

func daemonize() {
	args := os.Args[:]
	for i, arg := range args {
		if arg == "--foreground" || arg == "-f" {
			args = append(args[:i], args[i+1:]...)
			break
		}
	}

	cmd := exec.Command(args[0])
	if len(args) > 1 {
		cmd.Args = args
	}
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Setsid: true}

	if err := cmd.Start(); err != nil {
		logging.Fatal().Err(err).Msg("failed to start daemon process")
	}
	os.Exit(0)
}

func setupSignalHandler(ch *channel.Channel, ovl overlay.Backend, names *nameid.Manager, mountpoint string) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", strings.ToUpper(sig.String())).
			Msg("signal received, unmounting")

		const drainTimeout = 5 * time.Second
		if !ch.DrainRequests(drainTimeout) {
			logging.Warn().Dur("timeout", drainTimeout).
				Msg("requests still outstanding after drain timeout, unmounting anyway")
		}

		if err := ch.Unmount(channel.ShutdownUnmounted); err != nil {
			logging.Error().Err(err).Str("mountpoint", mountpoint).Msg("unmount failed")
		}
		if err := ovl.Close(names.NextID()); err != nil {
			logging.Error().Err(err).Msg("failed to persist overlay state on shutdown")
		}
	}()
}
