// Billy - song-synchronised playback for an animatronic singing fish.
//
// This is the main entry point. It loads configuration, wires the song
// library, audio output, motor actuator, status bus and persistence, and
// exposes them through a small CLI:
//
//	billy serve         run the playback service, MQTT commands and HTTP API
//	billy play <song>   play one song in the foreground and exit
//	billy songs         list the song library
//	billy version       print build information
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/billy-core/internal/infrastructure/config"
	"github.com/nerrad567/billy-core/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Separated from main for testability.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "billy",
		Short:         "Song-synchronised playback for Billy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"configuration file (default $BILLY_CONFIG or "+defaultConfigPath+")")

	loader := func() (*config.Config, error) {
		return loadConfig(configPath)
	}

	root.AddCommand(
		newServeCmd(loader),
		newPlayCmd(loader),
		newSongsCmd(loader),
		newVersionCmd(),
	)
	return root
}

// getConfigPath returns the configuration file path and whether it was
// chosen explicitly. The flag wins over BILLY_CONFIG.
func getConfigPath(flag string) (string, bool) {
	if flag != "" {
		return flag, true
	}
	if path := os.Getenv("BILLY_CONFIG"); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

// loadConfig loads the configuration. A missing file at the default path
// falls back to config.Default; an explicitly named file must exist.
func loadConfig(flag string) (*config.Config, error) {
	path, explicit := getConfigPath(flag)

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating default config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the configured logger.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(cfg.Logging, version).With("device_id", cfg.Device.ID)
}
