// Package commands implements the unikyc command line.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"unikyc/internal/platform/config"
	"unikyc/internal/platform/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "unikyc",
	Short: "KYC record lifecycle engine",
	Long: `unikyc keeps one verification record per account address, seals the
identity payload behind a block-height time-lock, and answers status checks
for addresses and names.`,
	SilenceUsage: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables use the UNIKYC_ prefix")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadConfig reads configuration and builds the process logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.Log.Level, cfg.ServiceName, cfg.Env)
	slog.SetDefault(log)
	return cfg, log, nil
}
