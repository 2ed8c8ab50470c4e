package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/aws"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/config"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/tofu"
)

var (
	kubeconfigConfigFile string
	kubeconfigOutputFile string

	kubeconfigCmd = &cobra.Command{
		Use:   "kubeconfig",
		Short: "Generate kubeconfig for the provisioned cluster",
		Long: `Generate and output the kubeconfig for the EKS cluster recorded in the
environment's state. Authentication goes through the aws CLI's
get-token exec plugin, so the emitted file works with kubectl and any
standard Kubernetes client.`,
		RunE: runKubeconfig,
	}
)

func init() {
	kubeconfigCmd.Flags().StringVarP(&kubeconfigConfigFile, "file", "f", "", "Path to thingslab-config.yaml file (required)")
	kubeconfigCmd.Flags().StringVarP(&kubeconfigOutputFile, "output", "o", "", "Path to output kubeconfig file (defaults to stdout)")
	// Panic is appropriate in init() since we cannot return errors and this indicates a programming error
	if err := kubeconfigCmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}
}

func runKubeconfig(cmd *cobra.Command, args []string) error {
	// Get cancellable context from cobra (for signal handling)
	ctx := cmd.Context()
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "cmd.kubeconfig")
	defer span.End()

	span.SetAttributes(attribute.String("config.file", kubeconfigConfigFile))

	// Parse configuration
	cfg, err := config.ParseConfig(ctx, kubeconfigConfigFile)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to parse configuration", "error", err, "file", kubeconfigConfigFile)
		return err
	}

	infra, err := newInfraDriver(ctx, cfg)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to prepare OpenTofu", "error", err)
		return err
	}

	err = infra.Init(ctx, tofu.BackendConfig{
		Bucket: cfg.StateBucketName(),
		Key:    cfg.StateKey(),
		Region: cfg.Region,
	})
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to read environment state", "error", err)
		return err
	}

	outputs, err := infra.Outputs(ctx)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to read cluster outputs", "error", err)
		return err
	}

	endpoint := outputs["cluster_endpoint"]
	caData := outputs["cluster_certificate_authority_data"]
	if endpoint == "" || caData == "" {
		err := fmt.Errorf("cluster %s has no recorded endpoint; has it been provisioned?", cfg.ClusterName)
		span.RecordError(err)
		return err
	}

	kubeconfigBytes, err := aws.BuildKubeconfig(cfg.ClusterName, cfg.Region, endpoint, caData)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to generate kubeconfig", "error", err)
		return err
	}

	if kubeconfigOutputFile != "" {
		if err := os.WriteFile(kubeconfigOutputFile, kubeconfigBytes, 0600); err != nil {
			span.RecordError(err)
			slog.Error("Failed to write kubeconfig file", "error", err, "file", kubeconfigOutputFile)
			return err
		}
		slog.Info("Kubeconfig written successfully", "file", kubeconfigOutputFile)
	} else {
		os.Stdout.Write(kubeconfigBytes)
	}

	return nil
}
