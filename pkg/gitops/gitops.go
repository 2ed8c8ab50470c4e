// Package gitops bootstraps Argo CD and the ApplicationSet that fans the
// deployment repository out into one Application per environment. The
// orchestrator never pushes manifests itself; it installs the controller,
// declares the desired environments and polls sync status.
package gitops

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/config"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/helm"
)

const (
	// ApplicationSetName is the single ApplicationSet the orchestrator owns.
	ApplicationSetName = "thingslab-envs"

	argoRepoName = "argo"
	argoRepoURL  = "https://argoproj.github.io/argo-helm"
	argoChartRef = "argo/argo-cd"
)

// InstallArgoCD installs or upgrades the Argo CD chart into the configured
// namespace. Readiness of the server, repo-server and application-controller
// workloads is checked separately by the provisioning loop.
func InstallArgoCD(ctx context.Context, kubeconfigBytes []byte, cfg *config.Config) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "gitops.InstallArgoCD")
	defer span.End()

	span.SetAttributes(
		attribute.String("chart_version", cfg.GitOps.ArgoCDVersion),
		attribute.String("namespace", cfg.GitOps.ArgoCDNamespace),
	)

	rel := helm.Release{
		RepoName:    argoRepoName,
		RepoURL:     argoRepoURL,
		ChartRef:    argoChartRef,
		Version:     cfg.GitOps.ArgoCDVersion,
		ReleaseName: "argocd",
		Namespace:   cfg.GitOps.ArgoCDNamespace,
		Timeout:     10 * time.Minute,
		Values: map[string]any{
			"applicationSet": map[string]any{
				"enabled": true,
			},
			"dex": map[string]any{
				"enabled": false,
			},
			"notifications": map[string]any{
				"enabled": false,
			},
		},
	}

	action, err := helm.InstallOrUpgrade(ctx, kubeconfigBytes, rel)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to install Argo CD: %w", err)
	}

	span.SetAttributes(attribute.String("helm_action", action))
	return nil
}
