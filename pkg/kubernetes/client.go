// Package kubernetes wraps the client-go operations the orchestrator needs
// once the cluster API is reachable: readiness checks, namespaces, storage
// classes and workload teardown.
package kubernetes

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// NewClientset creates a Kubernetes clientset from kubeconfig bytes. All
// authentication methods, the AWS IAM token exec plugin included, are
// handled by the standard client-go loading path.
func NewClientset(ctx context.Context, kubeconfigBytes []byte) (*kubernetes.Clientset, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	_, span := tracer.Start(ctx, "kubernetes.NewClientset")
	defer span.End()

	config, err := clientcmd.RESTConfigFromKubeConfig(kubeconfigBytes)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse kubeconfig: %w", err)
	}

	span.SetAttributes(attribute.String("host", config.Host))

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	return clientset, nil
}

// NewDynamicClient creates a dynamic client from kubeconfig bytes, used for
// custom resources (Argo CD applications, external-secrets objects).
func NewDynamicClient(kubeconfigBytes []byte) (dynamic.Interface, error) {
	config, err := clientcmd.RESTConfigFromKubeConfig(kubeconfigBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kubeconfig: %w", err)
	}
	client, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	return client, nil
}
