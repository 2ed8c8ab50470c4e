package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "tlo",
	Short: "Thingslab Orchestrator - EKS cluster lifecycle for the IoT demo stack",
	Long: `Thingslab Orchestrator (tlo) provisions and destroys the complete IoT demo
environment: an EKS cluster driven through OpenTofu, the external-secrets
operator backed by SSM Parameter Store, and Argo CD applications deployed
from a GitOps repository.

Both provision and destroy are idempotent; re-running after a partial
failure resumes where the previous run stopped.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup structured logging
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)
	},
}

func init() {
	// Load .env file if it exists (silently ignore if not found)
	// This allows users to optionally use .env for local development
	_ = godotenv.Load()

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(kubeconfigCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx := context.Background()

	// Setup OpenTelemetry
	_, shutdown, err := telemetry.Setup(ctx)
	if err != nil {
		slog.Error("Failed to setup telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
