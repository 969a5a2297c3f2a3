package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brettbedarf/clifs/adapters"
	"github.com/brettbedarf/clifs/config"
	"github.com/brettbedarf/clifs/internal/util"
	"github.com/brettbedarf/clifs/requests"
	"github.com/brettbedarf/clifs/server"
)

var (
	configPath     string
	nodesDef       string
	umount         bool
	verbose        int
	logFile        string
	singleThreaded bool
	allowOther     bool
)

var rootCmd = &cobra.Command{
	Use:   "clifs <mount-point>",
	Short: "In-memory filesystem served over FUSE",
	Long: `Mounts an in-memory hierarchical filesystem at the given mount point.

The tree starts with an empty root and can be seeded from a nodes definition
file (JSON or YAML) listing directories and files with their content sources.

Examples:
  clifs /mnt/clifs
  clifs /mnt/clifs -n nodes.yaml -v 4
  clifs /mnt/clifs --config clifs.yaml --umount`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to config file (.yaml, .yml or .json)")
	flags.StringVarP(&nodesDef, "nodes", "n", "", "Path to nodes def file")
	flags.BoolVarP(&umount, "umount", "u", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flags.IntVarP(&verbose, "verbose", "v", config.InfoVerbose,
		"Log verbosity level between 1 (error) and 5 (trace)")
	flags.StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")
	flags.BoolVar(&singleThreaded, "single-threaded", false, "Serve FUSE requests from a single goroutine")
	flags.BoolVar(&allowOther, "allow-other", false, "Allow other users to access the mount")
}

// loadConfig merges defaults, the optional config file then explicitly set flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	override := &config.ConfigOverride{}
	if configPath != "" {
		fileOverride, err := config.LoadConfigOverrideFile(configPath)
		if err != nil {
			return nil, err
		}
		override = fileOverride
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		override.LogLvl = &verbose
	}
	if flags.Changed("log-file") {
		override.LogFile = &logFile
	}
	if flags.Changed("single-threaded") {
		override.SingleThreaded = &singleThreaded
	}
	if flags.Changed("allow-other") {
		override.AllowOther = &allowOther
	}
	// Root is owned by the mounting user unless configured otherwise
	if override.RootUID == nil {
		override.RootUID = util.Pointer(uint32(os.Getuid()))
	}
	if override.RootGID == nil {
		override.RootGID = util.Pointer(uint32(os.Getgid()))
	}

	cfg := config.NewConfig(override)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	closer := util.InitializeLogger(cfg.LogLvl, cfg.LogFile)
	defer closer.Close() // nolint:errcheck
	logger := util.GetLogger("main")

	mnt := args[0]
	logger.Info().Int("log_level", int(cfg.LogLvl)).Str("nodes", nodesDef).Str("mnt", mnt).Msg("clifs server initializing")

	// Try unmount if requested
	if umount { // send cli command
		c := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		c.Run() // nolint:errcheck
	}

	fs := server.New(cfg)

	// Load nodes
	if nodesDef != "" {
		registry := adapters.NewRegistry()
		adapters.RegisterBuiltins(registry)
		decoder := requests.NewDecoder(registry, requests.DefaultsFromConfig(cfg))

		seed, err := decoder.LoadSeedFile(nodesDef)
		if err != nil {
			return fmt.Errorf("failed to load nodes file %s: %w", nodesDef, err)
		}
		logger.Debug().
			Int("files", len(seed.Files)).
			Int("directories", len(seed.Dirs)).
			Msg("Successfully loaded node requests")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		dirAddCnt := 0
		for _, req := range seed.Dirs {
			if _, err := fs.AddDirNode(req); err != nil {
				logger.Warn().Str("path", req.Path).Str("req", req.UUID).Err(err).Msg("Failed to add directory request")
				continue
			}
			dirAddCnt++
		}
		fileAddCnt := 0
		for _, req := range seed.Files {
			if _, err := fs.AddFileNode(ctx, req); err != nil {
				logger.Warn().Str("path", req.Path).Str("req", req.UUID).Err(err).Msg("Failed to add file request")
				continue
			}
			fileAddCnt++
		}
		stop()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Info().Int("directories", dirAddCnt).Int("files", fileAddCnt).Msg("Added new nodes to filesystem")
	} else {
		logger.Warn().Msg("No nodes file provided")
	}

	// Serve
	if err := fs.Serve(mnt); err != nil {
		return fmt.Errorf("failed to mount filesystem: %w", err)
	}

	// Setup signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

	// Wait for termination signal or an external unmount
	served := make(chan struct{})
	go func() {
		fs.Wait()
		close(served)
	}()
	select {
	case sig := <-signalChan:
		logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")
		if err := fs.Unmount(); err != nil {
			return fmt.Errorf("failed to unmount filesystem: %w", err)
		}
		logger.Info().Msg("Filesystem unmounted successfully")
	case <-served:
		logger.Info().Msg("Filesystem unmounted externally")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
