package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/yol/internal/cli"
	"github.com/aretw0/yol/internal/config"
	"github.com/aretw0/yol/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "yol",
	Short: "yol inspects and repairs the persisted state of upgrade runners",
	Long: `yol reads and writes the state that upgrade runners persist, using the store
configured in yol.yaml (or $YOL_CONFIG). Every write is a compare-and-set, so it
fails instead of overwriting a state a running process just moved.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	sc := cli.NewSignalContext(context.Background())
	defer sc.Cancel()

	if err := rootCmd.ExecuteContext(sc); err != nil {
		if sig := sc.Signal(); sig != nil {
			fmt.Fprintf(os.Stderr, "interrupted by %s\n", sig)
		}
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to yol.yaml (default: $YOL_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
}

// loadConfig reads the configuration and builds the logger of the command.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	return cfg, logging.NewWithWriter(cmd.ErrOrStderr(), level), nil
}

// openStores loads the configuration and opens its store.
func openStores(cmd *cobra.Command) (*config.Config, *cli.Stores, *slog.Logger, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	stores, err := cli.OpenStores(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s store: %w", cfg.Driver(), err)
	}
	return cfg, stores, logger, nil
}
