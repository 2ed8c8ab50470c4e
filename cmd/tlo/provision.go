package main

import (
	"context"
	"fmt"
	"log/slog"
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
	provisionConfigFile string
	provisionTimeout    string

	provisionCmd = &cobra.Command{
		Use:   "provision",
		Short: "Provision the full environment from a configuration file",
		Long: `Provision the EKS cluster and everything running on it based on the
provided thingslab-config.yaml file: VPC and cluster via OpenTofu, the
EBS CSI addon, the external-secrets operator wired to SSM Parameter
Store, and Argo CD with one application per environment.

The command is idempotent. Re-running it converges the environment and
performs no mutating cloud calls for resources already in their target
state.`,
		RunE: runProvision,
	}
)

func init() {
	provisionCmd.Flags().StringVarP(&provisionConfigFile, "file", "f", "", "Path to thingslab-config.yaml file (required)")
	provisionCmd.Flags().StringVar(&provisionTimeout, "timeout", "", "Override default timeout (e.g., '45m', '1h')")
	// Panic is appropriate in init() since we cannot return errors and this indicates a programming error
	if err := provisionCmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}
}

func runProvision(cmd *cobra.Command, args []string) error {
	// Get cancellable context from cobra (for signal handling)
	ctx := cmd.Context()
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "cmd.provision")
	defer span.End()

	span.SetAttributes(attribute.String("config.file", provisionConfigFile))

	slog.Info("Starting provisioning", "config_file", provisionConfigFile)

	// Setup status handler for progress updates
	ctx, cleanupStatus := status.StartHandler(ctx, statusLogHandler())
	defer cleanupStatus()

	// Handle context cancellation (from signal interrupt)
	defer func() {
		if ctx.Err() == context.Canceled {
			slog.Warn("Provisioning interrupted by user")
		}
	}()

	// Parse configuration
	cfg, err := config.ParseConfig(ctx, provisionConfigFile)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to parse configuration", "error", err, "file", provisionConfigFile)
		return err
	}

	slog.Info("Configuration parsed successfully",
		"project_name", cfg.ProjectName,
		"cluster_name", cfg.ClusterName,
		"environments", len(cfg.Environments),
	)

	// Apply custom timeout if specified
	if provisionTimeout != "" {
		duration, err := time.ParseDuration(provisionTimeout)
		if err != nil {
			span.RecordError(err)
			slog.Error("Invalid timeout duration", "error", err, "timeout", provisionTimeout)
			return fmt.Errorf("invalid timeout duration %q: %w", provisionTimeout, err)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
		span.SetAttributes(attribute.String("timeout", provisionTimeout))
		slog.Info("Using custom timeout", "timeout", duration)
	}

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

	prov := orchestrator.NewProvisionerFromClients(cfg, infra, clients)

	run, err := prov.Provision(ctx)
	if err != nil {
		span.RecordError(err)
		slog.Error("Provisioning failed",
			"error", err,
			"last_completed_step", string(run.State),
		)
		return err
	}

	slog.Info("Provisioning completed successfully",
		"cluster_name", cfg.ClusterName,
		"account_id", run.AccountID,
		"applications", len(run.Apps),
	)
	for _, app := range run.Apps {
		slog.Info("Application deployed", "name", app.Name, "sync", app.Sync, "health", app.Health)
	}

	return nil
}
