// Package secrets manages the external-secrets operator and the custom
// resources that sync SSM parameters into Kubernetes secrets: a
// ClusterSecretStore pointed at Parameter Store and one ExternalSecret per
// environment namespace.
package secrets

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/helm"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

const (
	// DefaultChartVersion is the external-secrets chart version installed
	// when the config does not pin one.
	DefaultChartVersion = "0.10.7"

	// OperatorNamespace is where the external-secrets operator runs.
	OperatorNamespace = "external-secrets"
	// ServiceAccountName is the operator's service account, bound to an
	// IAM role via IRSA.
	ServiceAccountName = "external-secrets"
	// StoreName is the cluster-wide secret store backed by Parameter Store.
	StoreName = "aws-parameter-store"
	// TargetSecretName is the Kubernetes secret each ExternalSecret
	// materializes in its namespace.
	TargetSecretName = "app-credentials"
)

var (
	// ClusterSecretStoreGVR is the GroupVersionResource for cluster-scoped
	// secret stores.
	ClusterSecretStoreGVR = schema.GroupVersionResource{
		Group:    "external-secrets.io",
		Version:  "v1beta1",
		Resource: "clustersecretstores",
	}

	// ExternalSecretGVR is the GroupVersionResource for ExternalSecrets.
	ExternalSecretGVR = schema.GroupVersionResource{
		Group:    "external-secrets.io",
		Version:  "v1beta1",
		Resource: "externalsecrets",
	}
)

// InstallOperator installs or upgrades the external-secrets operator chart.
// The role ARN is annotated onto the operator's service account so the AWS
// SDK inside the operator picks up web identity credentials.
func InstallOperator(ctx context.Context, kubeconfigBytes []byte, chartVersion, roleARN string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "secrets.InstallOperator")
	defer span.End()

	span.SetAttributes(
		attribute.String("chart_version", chartVersion),
		attribute.String("role_arn", roleARN),
	)

	rel := helm.Release{
		RepoName:    "external-secrets",
		RepoURL:     "https://charts.external-secrets.io",
		ChartRef:    "external-secrets/external-secrets",
		Version:     chartVersion,
		ReleaseName: "external-secrets",
		Namespace:   OperatorNamespace,
		Timeout:     5 * time.Minute,
		Values: map[string]any{
			"serviceAccount": map[string]any{
				"name": ServiceAccountName,
				"annotations": map[string]any{
					"eks.amazonaws.com/role-arn": roleARN,
				},
			},
		},
	}

	action, err := helm.InstallOrUpgrade(ctx, kubeconfigBytes, rel)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to install external-secrets operator: %w", err)
	}

	span.SetAttributes(attribute.String("helm_action", action))
	return nil
}

// ApplyClusterSecretStore creates or updates the Parameter Store backed
// ClusterSecretStore.
func ApplyClusterSecretStore(ctx context.Context, client dynamic.Interface, region string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	_, span := tracer.Start(ctx, "secrets.ApplyClusterSecretStore")
	defer span.End()

	span.SetAttributes(attribute.String("region", region))

	store := &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "external-secrets.io/v1beta1",
			"kind":       "ClusterSecretStore",
			"metadata": map[string]interface{}{
				"name": StoreName,
			},
			"spec": map[string]interface{}{
				"provider": map[string]interface{}{
					"aws": map[string]interface{}{
						"service": "ParameterStore",
						"region":  region,
						"auth": map[string]interface{}{
							"jwt": map[string]interface{}{
								"serviceAccountRef": map[string]interface{}{
									"name":      ServiceAccountName,
									"namespace": OperatorNamespace,
								},
							},
						},
					},
				},
			},
		},
	}

	existing, err := client.Resource(ClusterSecretStoreGVR).Get(ctx, StoreName, metav1.GetOptions{})
	if err == nil {
		store.SetResourceVersion(existing.GetResourceVersion())
		if _, err := client.Resource(ClusterSecretStoreGVR).Update(ctx, store, metav1.UpdateOptions{}); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to update ClusterSecretStore: %w", err)
		}
		return nil
	}

	if _, err := client.Resource(ClusterSecretStoreGVR).Create(ctx, store, metav1.CreateOptions{}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create ClusterSecretStore: %w", err)
	}

	status.Send(ctx, status.NewUpdate(status.LevelSuccess, "Created cluster secret store").
		WithResource("cluster-secret-store").
		WithAction("created").
		WithMetadata("store", StoreName))
	return nil
}

// ApplyExternalSecret creates or updates the ExternalSecret for one
// environment namespace, mapping the project's SSM parameters onto the
// app-credentials secret.
func ApplyExternalSecret(ctx context.Context, client dynamic.Interface, namespace, projectName string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	_, span := tracer.Start(ctx, "secrets.ApplyExternalSecret")
	defer span.End()

	span.SetAttributes(
		attribute.String("namespace", namespace),
		attribute.String("project_name", projectName),
	)

	secret := externalSecretManifest(namespace, projectName)

	existing, err := client.Resource(ExternalSecretGVR).Namespace(namespace).Get(ctx, TargetSecretName, metav1.GetOptions{})
	if err == nil {
		secret.SetResourceVersion(existing.GetResourceVersion())
		if _, err := client.Resource(ExternalSecretGVR).Namespace(namespace).Update(ctx, secret, metav1.UpdateOptions{}); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to update ExternalSecret in %s: %w", namespace, err)
		}
		return nil
	}

	if _, err := client.Resource(ExternalSecretGVR).Namespace(namespace).Create(ctx, secret, metav1.CreateOptions{}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create ExternalSecret in %s: %w", namespace, err)
	}

	status.Send(ctx, status.NewUpdate(status.LevelSuccess, fmt.Sprintf("Created external secret in %s", namespace)).
		WithResource("external-secret").
		WithAction("created").
		WithMetadata("namespace", namespace))
	return nil
}

func externalSecretManifest(namespace, projectName string) *unstructured.Unstructured {
	dataEntries := []interface{}{
		remoteRef("influxdb-admin-password", fmt.Sprintf("/%s/influxdb/admin-password", projectName)),
		remoteRef("grafana-admin-password", fmt.Sprintf("/%s/grafana/admin-password", projectName)),
		remoteRef("mqtt-password", fmt.Sprintf("/%s/mqtt/password", projectName)),
	}

	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "external-secrets.io/v1beta1",
			"kind":       "ExternalSecret",
			"metadata": map[string]interface{}{
				"name":      TargetSecretName,
				"namespace": namespace,
			},
			"spec": map[string]interface{}{
				"refreshInterval": "1h",
				"secretStoreRef": map[string]interface{}{
					"name": StoreName,
					"kind": "ClusterSecretStore",
				},
				"target": map[string]interface{}{
					"name":           TargetSecretName,
					"creationPolicy": "Owner",
				},
				"data": dataEntries,
			},
		},
	}
}

func remoteRef(secretKey, parameterPath string) map[string]interface{} {
	return map[string]interface{}{
		"secretKey": secretKey,
		"remoteRef": map[string]interface{}{
			"key": parameterPath,
		},
	}
}

// Synced reports whether the namespace's ExternalSecret has reached the
// SecretSynced condition. The reason string is returned for diagnostics; a
// missing resource or missing status is "not yet", not an error.
func Synced(ctx context.Context, client dynamic.Interface, namespace string) (bool, string, error) {
	secret, err := client.Resource(ExternalSecretGVR).Namespace(namespace).Get(ctx, TargetSecretName, metav1.GetOptions{})
	if err != nil {
		return false, "", err
	}

	conditions, found, err := unstructured.NestedSlice(secret.Object, "status", "conditions")
	if err != nil || !found {
		return false, "", nil
	}

	for _, c := range conditions {
		condition, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		condType, _, _ := unstructured.NestedString(condition, "type")
		condStatus, _, _ := unstructured.NestedString(condition, "status")
		reason, _, _ := unstructured.NestedString(condition, "reason")

		if condType == "Ready" {
			return condStatus == "True" && reason == "SecretSynced", reason, nil
		}
	}
	return false, "", nil
}
