package kubernetes

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

// EnsureNamespace creates a namespace if it does not already exist.
func EnsureNamespace(ctx context.Context, client kubernetes.Interface, namespace string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	_, span := tracer.Start(ctx, "kubernetes.EnsureNamespace")
	defer span.End()

	span.SetAttributes(attribute.String("namespace", namespace))

	_, err := client.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{})
	if err == nil {
		return nil
	}
	if !errors.IsNotFound(err) {
		span.RecordError(err)
		return fmt.Errorf("failed to check namespace %s: %w", namespace, err)
	}

	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: namespace,
		},
	}
	if _, err := client.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil {
		if errors.IsAlreadyExists(err) {
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("failed to create namespace %s: %w", namespace, err)
	}

	status.Send(ctx, status.NewUpdate(status.LevelSuccess, fmt.Sprintf("Created namespace: %s", namespace)).
		WithResource("namespace").
		WithAction("created").
		WithMetadata("namespace", namespace))
	return nil
}
