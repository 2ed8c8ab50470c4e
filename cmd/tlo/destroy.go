package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/aws"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/config"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/orchestrator"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

var (
	destroyConfigFile  string
	destroyAutoApprove bool
	destroyTimeout     string

	destroyCmd = &cobra.Command{
		Use:   "destroy",
		Short: "Destroy the environment and all its cloud resources",
		Long: `Destroys the full environment: workloads, the EKS cluster, the VPC,
IAM roles and policies, SSM parameters, orphaned EBS volumes, and
finally the state bucket.

WARNING: This operation is destructive and cannot be undone. All data
will be lost.

By default, you will be prompted to confirm before destruction begins.
Use --auto-approve to skip the confirmation prompt. Destroying an
environment that does not exist is a successful no-op.`,
		RunE: runDestroy,
	}
)

func init() {
	destroyCmd.Flags().StringVarP(&destroyConfigFile, "file", "f", "", "Path to thingslab-config.yaml file (required)")
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip confirmation prompt and destroy immediately")
	destroyCmd.Flags().StringVar(&destroyTimeout, "timeout", "", "Override default timeout (e.g., '45m', '1h')")
	// Panic is appropriate in init() since we cannot return errors and this indicates a programming error
	if err := destroyCmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}
}

func runDestroy(cmd *cobra.Command, args []string) error {
	// Get cancellable context from cobra (for signal handling)
	ctx := cmd.Context()
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "cmd.destroy")
	defer span.End()

	span.SetAttributes(
		attribute.String("config.file", destroyConfigFile),
		attribute.Bool("auto_approve", destroyAutoApprove),
	)

	slog.Info("Starting environment destruction", "config_file", destroyConfigFile)

	// Parse configuration first to show user what will be destroyed
	cfg, err := config.ParseConfig(ctx, destroyConfigFile)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to parse configuration", "error", err, "file", destroyConfigFile)
		return err
	}

	slog.Info("Configuration parsed successfully",
		"project_name", cfg.ProjectName,
		"cluster_name", cfg.ClusterName,
	)

	// Apply custom timeout if specified
	if destroyTimeout != "" {
		duration, err := time.ParseDuration(destroyTimeout)
		if err != nil {
			span.RecordError(err)
			slog.Error("Invalid timeout duration", "error", err, "timeout", destroyTimeout)
			return fmt.Errorf("invalid timeout duration %q: %w", destroyTimeout, err)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
		span.SetAttributes(attribute.String("timeout", destroyTimeout))
		slog.Info("Using custom timeout", "timeout", duration)
	}

	// Get confirmation before touching anything. A declined prompt is a
	// successful exit, not an error.
	if !destroyAutoApprove {
		confirmed, err := confirmDestruction(cfg)
		if err != nil {
			span.RecordError(err)
			return err
		}
		if !confirmed {
			span.SetAttributes(attribute.Bool("confirmed", false))
			slog.Info("Destruction cancelled by user")
			return nil
		}
	}

	// Setup status handler for progress updates
	ctx, cleanupStatus := status.StartHandler(ctx, statusLogHandler())
	defer cleanupStatus()

	// Handle context cancellation (from signal interrupt)
	defer func() {
		if ctx.Err() == context.Canceled {
			slog.Warn("Destruction interrupted by user")
		}
	}()

	clients, err := aws.NewClients(ctx, cfg.Region)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to initialize AWS clients", "error", err, "region", cfg.Region)
		return err
	}

	infra, err := newInfraDriver(ctx, cfg)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to prepare OpenTofu", "error", err)
		return err
	}

	destroyer := orchestrator.NewDestroyerFromClients(cfg, infra, clients)

	res, err := destroyer.Destroy(ctx)
	if err != nil {
		span.RecordError(err)
		slog.Error("Destruction failed", "error", err, "cluster_name", cfg.ClusterName)
		return err
	}

	slog.Info("Destruction completed successfully",
		"cluster_name", cfg.ClusterName,
		"volumes_swept", res.VolumesSwept,
		"state_bucket_deleted", res.StateBucketDeleted,
	)
	for _, leftover := range res.Leftovers {
		slog.Warn("Manual cleanup may be needed", "resource", leftover)
	}

	return nil
}

// confirmDestruction prompts the user to confirm before destroying the
// environment. It returns false, nil when the user declines.
func confirmDestruction(cfg *config.Config) (bool, error) {
	fmt.Println("\nWARNING: You are about to destroy the following environment:")
	fmt.Printf("   Project:      %s\n", cfg.ProjectName)
	fmt.Printf("   Cluster:      %s\n", cfg.ClusterName)
	fmt.Printf("   Region:       %s\n", cfg.Region)
	envNames := make([]string, 0, len(cfg.Environments))
	for _, env := range cfg.Environments {
		envNames = append(envNames, env.Name)
	}
	fmt.Printf("   Environments: %s\n", strings.Join(envNames, ", "))

	fmt.Println("\nThis will permanently delete all resources and data.")
	fmt.Println("This action cannot be undone.")
	fmt.Print("\nDo you want to continue? Type 'yes' to confirm: ")

	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}

	if strings.TrimSpace(response) != "yes" {
		return false, nil
	}

	fmt.Println()
	return true, nil
}
