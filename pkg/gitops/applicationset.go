package gitops

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/config"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

var (
	// ApplicationGVR is the GroupVersionResource for Argo CD Applications.
	ApplicationGVR = schema.GroupVersionResource{
		Group:    "argoproj.io",
		Version:  "v1alpha1",
		Resource: "applications",
	}

	// ApplicationSetGVR is the GroupVersionResource for Argo CD
	// ApplicationSets.
	ApplicationSetGVR = schema.GroupVersionResource{
		Group:    "argoproj.io",
		Version:  "v1alpha1",
		Resource: "applicationsets",
	}
)

// ApplyApplicationSet creates or updates the thingslab-envs ApplicationSet.
// A list generator carries one element per configured environment; the Argo
// CD controller expands it into one Application per environment, each synced
// from the deployment repository's envs/<name> directory.
func ApplyApplicationSet(ctx context.Context, client dynamic.Interface, cfg *config.Config) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	_, span := tracer.Start(ctx, "gitops.ApplyApplicationSet")
	defer span.End()

	span.SetAttributes(
		attribute.String("repo_url", cfg.GitOps.RepoURL),
		attribute.String("revision", cfg.GitOps.Revision),
		attribute.Int("environments", len(cfg.Environments)),
	)

	manifest := applicationSetManifest(cfg)
	namespace := cfg.GitOps.ArgoCDNamespace

	existing, err := client.Resource(ApplicationSetGVR).Namespace(namespace).Get(ctx, ApplicationSetName, metav1.GetOptions{})
	if err == nil {
		manifest.SetResourceVersion(existing.GetResourceVersion())
		if _, err := client.Resource(ApplicationSetGVR).Namespace(namespace).Update(ctx, manifest, metav1.UpdateOptions{}); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to update ApplicationSet: %w", err)
		}
		status.Send(ctx, status.NewUpdate(status.LevelInfo, "Updated ApplicationSet").
			WithResource("applicationset").
			WithAction("updated").
			WithMetadata("name", ApplicationSetName))
		return nil
	}

	if _, err := client.Resource(ApplicationSetGVR).Namespace(namespace).Create(ctx, manifest, metav1.CreateOptions{}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create ApplicationSet: %w", err)
	}

	status.Send(ctx, status.NewUpdate(status.LevelSuccess, "Created ApplicationSet").
		WithResource("applicationset").
		WithAction("created").
		WithMetadata("name", ApplicationSetName).
		WithMetadata("environments", fmt.Sprintf("%d", len(cfg.Environments))))
	return nil
}

func applicationSetManifest(cfg *config.Config) *unstructured.Unstructured {
	elements := make([]interface{}, 0, len(cfg.Environments))
	for _, env := range cfg.Environments {
		elements = append(elements, map[string]interface{}{
			"env":       env.Name,
			"namespace": cfg.Namespace(env.Name),
			"profile":   env.Profile,
		})
	}

	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "argoproj.io/v1alpha1",
			"kind":       "ApplicationSet",
			"metadata": map[string]interface{}{
				"name":      ApplicationSetName,
				"namespace": cfg.GitOps.ArgoCDNamespace,
			},
			"spec": map[string]interface{}{
				"goTemplate": false,
				"generators": []interface{}{
					map[string]interface{}{
						"list": map[string]interface{}{
							"elements": elements,
						},
					},
				},
				"template": map[string]interface{}{
					"metadata": map[string]interface{}{
						"name": fmt.Sprintf("%s-{{env}}", cfg.ProjectName),
					},
					"spec": map[string]interface{}{
						"project": "default",
						"source": map[string]interface{}{
							"repoURL":        cfg.GitOps.RepoURL,
							"targetRevision": cfg.GitOps.Revision,
							"path":           "envs/{{env}}",
							"helm": map[string]interface{}{
								"valueFiles": []interface{}{
									"values-{{profile}}.yaml",
								},
							},
						},
						"destination": map[string]interface{}{
							"server":    "https://kubernetes.default.svc",
							"namespace": "{{namespace}}",
						},
						"syncPolicy": map[string]interface{}{
							"automated": map[string]interface{}{
								"prune":    true,
								"selfHeal": true,
							},
							"syncOptions": []interface{}{
								"CreateNamespace=true",
							},
						},
					},
				},
			},
		},
	}
}

// ApplicationName returns the name of the Application generated for an
// environment. It mirrors the template in applicationSetManifest.
func ApplicationName(projectName, envName string) string {
	return fmt.Sprintf("%s-%s", projectName, envName)
}
