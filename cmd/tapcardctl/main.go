// Command tapcardctl is the operator CLI for card provisioning and support.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"tapcard_server/config"
	"tapcard_server/internal/bootstrap"
	"tapcard_server/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	timeout time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tapcardctl",
	Short: "Operate tapcard cards and profiles",
	Long: `tapcardctl talks to the tapcard database directly.

It reads the same environment as the server (DATABASE_URL, REDIS_URL,
PUBLIC_BASE_URL, R2_*), loading .env when present.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logger.LevelWarn
		if verbose {
			level = logger.LevelDebug
		}
		logger.Init(logger.Config{Level: level, Service: "tapcardctl", Console: true, Output: os.Stderr})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	cardCmd.AddCommand(cardShowCmd)
	cardCmd.AddCommand(cardDelinkCmd)

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(cardCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withDeps opens the server dependencies for one command.
func withDeps(cmd *cobra.Command, fn func(ctx context.Context, deps *bootstrap.Dependencies) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// the CLI never migrates; the server owns the schema
	cfg.AutoMigrate = false

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, deps)
}
