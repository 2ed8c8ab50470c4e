package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/aws"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/config"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/gitrepo"
)

var (
	validateConfigFile string
	validateOffline    bool

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration, credentials and the GitOps repository",
		Long: `Validate the thingslab-config.yaml file without provisioning anything.
This checks that the file is well formed and every required key is
present, that AWS credentials resolve for the configured region, and
that the GitOps repository and revision are reachable.

Use --offline to skip the AWS and git checks and validate only the file.`,
		RunE: runValidate,
	}
)

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "file", "f", "", "Path to thingslab-config.yaml file (required)")
	validateCmd.Flags().BoolVar(&validateOffline, "offline", false, "Validate the file only, without network calls")
	// Panic is appropriate in init() since we cannot return errors and this indicates a programming error
	if err := validateCmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Get cancellable context from cobra (for signal handling)
	ctx := cmd.Context()
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "cmd.validate")
	defer span.End()

	span.SetAttributes(
		attribute.String("config.file", validateConfigFile),
		attribute.Bool("offline", validateOffline),
	)

	slog.Info("Validating configuration", "config_file", validateConfigFile)

	// Parse configuration; required keys are checked during parsing
	cfg, err := config.ParseConfig(ctx, validateConfigFile)
	if err != nil {
		span.RecordError(err)
		slog.Error("Configuration validation failed", "error", err, "file", validateConfigFile)
		return err
	}

	fmt.Printf("✓ Configuration file is valid\n")
	fmt.Printf("  Project: %s\n", cfg.ProjectName)
	fmt.Printf("  Cluster: %s\n", cfg.ClusterName)
	fmt.Printf("  Region:  %s\n", cfg.Region)

	if validateOffline {
		return nil
	}

	// Credential pre-flight: resolving the account identity catches missing
	// or expired credentials before any resource is touched.
	clients, err := aws.NewClients(ctx, cfg.Region)
	if err != nil {
		span.RecordError(err)
		slog.Error("AWS client initialization failed", "error", err, "region", cfg.Region)
		return err
	}
	accountID, err := aws.AccountID(ctx, clients.STS)
	if err != nil {
		span.RecordError(err)
		slog.Error("AWS credential validation failed", "error", err)
		return err
	}
	fmt.Printf("✓ AWS credentials are valid (account %s)\n", accountID)

	// GitOps repository reachability, including the configured revision.
	if err := gitrepo.CheckReachable(ctx, cfg.GitOps.RepoURL, cfg.GitOps.Revision); err != nil {
		span.RecordError(err)
		slog.Error("GitOps repository check failed",
			"error", err,
			"repo_url", cfg.GitOps.RepoURL,
			"revision", cfg.GitOps.Revision,
		)
		return err
	}
	fmt.Printf("✓ GitOps repository is reachable (%s @ %s)\n", cfg.GitOps.RepoURL, cfg.GitOps.Revision)

	return nil
}
