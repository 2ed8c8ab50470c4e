// Package helm wraps the Helm SDK operations used to install the
// external-secrets operator and Argo CD: action configuration from raw
// kubeconfig bytes, repository management and an idempotent
// install-or-upgrade.
package helm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/repo"
	"helm.sh/helm/v3/pkg/storage/driver"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

// KubeconfigGetter implements the Helm RESTClientGetter interface using a
// kubeconfig file path.
type KubeconfigGetter struct {
	path string
}

func (k *KubeconfigGetter) ToRESTConfig() (*rest.Config, error) {
	return clientcmd.BuildConfigFromFlags("", k.path)
}

func (k *KubeconfigGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	config, err := k.ToRESTConfig()
	if err != nil {
		return nil, err
	}
	discoveryClient, err := discovery.NewDiscoveryClientForConfig(config)
	if err != nil {
		return nil, err
	}
	return memory.NewMemCacheClient(discoveryClient), nil
}

func (k *KubeconfigGetter) ToRESTMapper() (meta.RESTMapper, error) {
	discoveryClient, err := k.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(discoveryClient), nil
}

func (k *KubeconfigGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: k.path},
		&clientcmd.ConfigOverrides{},
	)
}

// NewActionConfig creates a Helm action configuration using the given
// kubeconfig path and namespace.
func NewActionConfig(kubeconfigPath string, namespace string) (*action.Configuration, error) {
	actionConfig := new(action.Configuration)

	if err := actionConfig.Init(
		&KubeconfigGetter{path: kubeconfigPath},
		namespace,
		os.Getenv("HELM_DRIVER"), // defaults to "secret" if empty
		func(format string, v ...any) {},
	); err != nil {
		return nil, fmt.Errorf("failed to initialize Helm action config: %w", err)
	}

	return actionConfig, nil
}

// AddRepo adds or updates a Helm chart repository with the given name and URL.
func AddRepo(ctx context.Context, name, url string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	_, span := tracer.Start(ctx, "helm.AddRepo")
	defer span.End()

	span.SetAttributes(
		attribute.String("repo_name", name),
		attribute.String("repo_url", url),
	)

	settings := cli.New()

	entry := &repo.Entry{
		Name: name,
		URL:  url,
	}

	repoFile := settings.RepositoryConfig

	chartRepo, err := repo.NewChartRepository(entry, getter.All(settings))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chart repository: %w", err)
	}

	if _, err := chartRepo.DownloadIndexFile(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to download repository index: %w", err)
	}

	repoFileObj := repo.NewFile()
	if _, err := os.Stat(repoFile); err == nil {
		repoFileObj, err = repo.LoadFile(repoFile)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to load repository file: %w", err)
		}
	}

	repoFileObj.Update(entry)

	if err := repoFileObj.WriteFile(repoFile, 0644); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write repository file: %w", err)
	}

	status.Send(ctx, status.NewUpdate(status.LevelInfo, fmt.Sprintf("Added Helm repository %q", name)).
		WithResource("helm-repo").
		WithAction("added").
		WithMetadata("repo_name", name).
		WithMetadata("repo_url", url))

	return nil
}

// WriteTempKubeconfig writes kubeconfig bytes to a temporary file and returns
// the file path, a cleanup function to remove the file, and any error.
func WriteTempKubeconfig(kubeconfigBytes []byte) (string, func(), error) {
	tmpFile, err := os.CreateTemp("", "kubeconfig-*.yaml")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp kubeconfig: %w", err)
	}

	tmpPath := filepath.Clean(tmpFile.Name())

	if _, err := tmpFile.Write(kubeconfigBytes); err != nil {
		_ = os.Remove(tmpPath)
		return "", nil, fmt.Errorf("failed to write temp kubeconfig: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", nil, fmt.Errorf("failed to close temp kubeconfig: %w", err)
	}

	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	return tmpPath, cleanup, nil
}

// Release describes one chart installation.
type Release struct {
	// RepoName and RepoURL identify the chart repository.
	RepoName string
	RepoURL  string
	// ChartRef is the repo-qualified chart name, e.g. "argo/argo-cd".
	ChartRef string
	// Version is the chart version to install.
	Version string

	ReleaseName string
	Namespace   string
	Timeout     time.Duration
	Values      map[string]any
}

// InstallOrUpgrade converges a Helm release to the requested chart version.
// A release already at the target version is left alone; an older one is
// upgraded; a missing one is installed. Returns the action taken:
// "installed", "upgraded" or "up-to-date".
func InstallOrUpgrade(ctx context.Context, kubeconfigBytes []byte, rel Release) (string, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	_, span := tracer.Start(ctx, "helm.InstallOrUpgrade")
	defer span.End()

	span.SetAttributes(
		attribute.String("chart", rel.ChartRef),
		attribute.String("version", rel.Version),
		attribute.String("release_name", rel.ReleaseName),
		attribute.String("namespace", rel.Namespace),
	)

	kubeconfigPath, cleanup, err := WriteTempKubeconfig(kubeconfigBytes)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	defer cleanup()

	actionConfig, err := NewActionConfig(kubeconfigPath, rel.Namespace)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	histClient := action.NewHistory(actionConfig)
	histClient.Max = 1
	if releases, err := histClient.Run(rel.ReleaseName); err == nil {
		current := releases[0]
		if current.Chart != nil && current.Chart.Metadata != nil &&
			current.Chart.Metadata.Version == rel.Version {
			status.Send(ctx, status.NewUpdate(status.LevelInfo, fmt.Sprintf("Release %s already at %s, skipping", rel.ReleaseName, rel.Version)).
				WithResource("helm-release").
				WithAction("up-to-date").
				WithMetadata("release", rel.ReleaseName).
				WithMetadata("version", rel.Version))
			return "up-to-date", nil
		}
		if err := upgrade(ctx, actionConfig, rel); err != nil {
			span.RecordError(err)
			return "", err
		}
		return "upgraded", nil
	}

	if err := AddRepo(ctx, rel.RepoName, rel.RepoURL); err != nil {
		span.RecordError(err)
		return "", err
	}

	client := action.NewInstall(actionConfig)
	client.Namespace = rel.Namespace
	client.ReleaseName = rel.ReleaseName
	client.CreateNamespace = true
	client.Wait = true
	client.Timeout = rel.Timeout
	client.Version = rel.Version

	status.Send(ctx, status.NewUpdate(status.LevelProgress, fmt.Sprintf("Installing Helm chart %s", rel.ChartRef)).
		WithResource("helm-release").
		WithAction("installing").
		WithMetadata("release", rel.ReleaseName).
		WithMetadata("chart_version", rel.Version))

	loadedChart, err := loadChart(rel.ChartRef, client.ChartPathOptions)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	release, err := client.Run(loadedChart, rel.Values)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to install %s: %w", rel.ChartRef, err)
	}

	span.SetAttributes(
		attribute.String("release_status", string(release.Info.Status)),
		attribute.Int("release_version", release.Version),
	)

	status.Send(ctx, status.NewUpdate(status.LevelSuccess, fmt.Sprintf("Installed Helm chart %s", rel.ChartRef)).
		WithResource("helm-release").
		WithAction("installed").
		WithMetadata("release", rel.ReleaseName).
		WithMetadata("chart_version", rel.Version))

	return "installed", nil
}

func upgrade(ctx context.Context, actionConfig *action.Configuration, rel Release) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	_, span := tracer.Start(ctx, "helm.upgrade")
	defer span.End()

	client := action.NewUpgrade(actionConfig)
	client.Namespace = rel.Namespace
	client.Wait = true
	client.Timeout = rel.Timeout
	client.Version = rel.Version

	loadedChart, err := loadChart(rel.ChartRef, client.ChartPathOptions)
	if err != nil {
		span.RecordError(err)
		return err
	}

	release, err := client.Run(rel.ReleaseName, loadedChart, rel.Values)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upgrade %s: %w", rel.ChartRef, err)
	}

	span.SetAttributes(
		attribute.String("release_status", string(release.Info.Status)),
		attribute.Int("release_version", release.Version),
	)

	status.Send(ctx, status.NewUpdate(status.LevelSuccess, fmt.Sprintf("Upgraded Helm release %s", rel.ReleaseName)).
		WithResource("helm-release").
		WithAction("upgraded").
		WithMetadata("release", rel.ReleaseName).
		WithMetadata("chart_version", rel.Version))

	return nil
}

// Uninstall removes a release so its controller stops reconciling during
// teardown. A release that never existed or is already gone is not an error.
func Uninstall(ctx context.Context, kubeconfigBytes []byte, releaseName, namespace string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	_, span := tracer.Start(ctx, "helm.Uninstall")
	defer span.End()

	span.SetAttributes(
		attribute.String("release_name", releaseName),
		attribute.String("namespace", namespace),
	)

	kubeconfigPath, cleanup, err := WriteTempKubeconfig(kubeconfigBytes)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer cleanup()

	actionConfig, err := NewActionConfig(kubeconfigPath, namespace)
	if err != nil {
		span.RecordError(err)
		return err
	}

	client := action.NewUninstall(actionConfig)
	client.Wait = true
	client.Timeout = 5 * time.Minute

	if _, err := client.Run(releaseName); err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) {
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("failed to uninstall %s: %w", releaseName, err)
	}

	status.Send(ctx, status.NewUpdate(status.LevelInfo, fmt.Sprintf("Uninstalled Helm release %s", releaseName)).
		WithResource("helm-release").
		WithAction("uninstalled").
		WithMetadata("release", releaseName))
	return nil
}

func loadChart(chartRef string, chartPathOptions action.ChartPathOptions) (*chart.Chart, error) {
	chartPath, err := chartPathOptions.LocateChart(chartRef, cli.New())
	if err != nil {
		return nil, fmt.Errorf("failed to locate chart %s: %w", chartRef, err)
	}

	loadedChart, err := loader.Load(chartPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart %s: %w", chartRef, err)
	}

	return loadedChart, nil
}
