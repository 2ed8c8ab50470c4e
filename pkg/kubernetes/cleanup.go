package kubernetes

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

// CleanupWorkloads deletes the given namespaces and waits for them to
// terminate, then removes persistent volumes left behind by the CSI driver.
// Deleting workloads before the terraform destroy lets Kubernetes release
// its load balancers and volumes while the cluster still exists.
func CleanupWorkloads(ctx context.Context, client kubernetes.Interface, namespaces []string, timeout time.Duration) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "kubernetes.CleanupWorkloads")
	defer span.End()

	span.SetAttributes(attribute.Int("namespace_count", len(namespaces)))

	for _, namespace := range namespaces {
		// Claims are deleted ahead of the namespace cascade so the CSI
		// driver starts detaching volumes immediately instead of waiting
		// on namespace finalizers.
		if err := deleteClaims(ctx, client, namespace); err != nil {
			span.RecordError(err)
			return err
		}

		status.Send(ctx, status.NewUpdate(status.LevelProgress, fmt.Sprintf("Deleting namespace: %s", namespace)).
			WithResource("namespace").
			WithAction("deleting").
			WithMetadata("namespace", namespace))

		err := client.CoreV1().Namespaces().Delete(ctx, namespace, metav1.DeleteOptions{})
		if err != nil && !errors.IsNotFound(err) {
			span.RecordError(err)
			return fmt.Errorf("failed to delete namespace %s: %w", namespace, err)
		}
	}

	if err := waitForNamespacesGone(ctx, client, namespaces, timeout); err != nil {
		span.RecordError(err)
		return err
	}

	if err := deleteReleasedVolumes(ctx, client); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

// deleteClaims removes every persistent volume claim in the namespace.
// A missing namespace means nothing to clean up.
func deleteClaims(ctx context.Context, client kubernetes.Interface, namespace string) error {
	claims, err := client.CoreV1().PersistentVolumeClaims(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to list claims in %s: %w", namespace, err)
	}

	for _, claim := range claims.Items {
		err := client.CoreV1().PersistentVolumeClaims(namespace).Delete(ctx, claim.Name, metav1.DeleteOptions{})
		if err != nil && !errors.IsNotFound(err) {
			return fmt.Errorf("failed to delete claim %s/%s: %w", namespace, claim.Name, err)
		}
	}

	if len(claims.Items) > 0 {
		status.Send(ctx, status.NewUpdate(status.LevelProgress, fmt.Sprintf("Deleted %d volume claims in %s", len(claims.Items), namespace)).
			WithResource("persistent-volume-claim").
			WithAction("deleting").
			WithMetadata("namespace", namespace))
	}
	return nil
}

// waitForNamespacesGone polls until every listed namespace has finished
// terminating. Finalizers on PVCs and load balancer services make this take
// a while on a busy cluster.
func waitForNamespacesGone(ctx context.Context, client kubernetes.Interface, namespaces []string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	check := func() (bool, error) {
		for _, namespace := range namespaces {
			_, err := client.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{})
			if err == nil {
				return false, nil
			}
			if !errors.IsNotFound(err) {
				return false, err
			}
		}
		return true, nil
	}

	if gone, err := check(); err != nil {
		return fmt.Errorf("failed to check namespace termination: %w", err)
	} else if gone {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for namespaces to terminate: %w", ctx.Err())
		case <-ticker.C:
			gone, err := check()
			if err != nil {
				return fmt.Errorf("failed to check namespace termination: %w", err)
			}
			if gone {
				return nil
			}
		}
	}
}

// deleteReleasedVolumes removes persistent volumes whose claims are gone.
// With the Retain reclaim policy these stay behind after namespace deletion
// and would keep their EBS volumes alive through the terraform destroy.
func deleteReleasedVolumes(ctx context.Context, client kubernetes.Interface) error {
	pvs, err := client.CoreV1().PersistentVolumes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list persistent volumes: %w", err)
	}

	var deleted int
	for _, pv := range pvs.Items {
		if pv.Status.Phase != corev1.VolumeReleased && pv.Status.Phase != corev1.VolumeFailed {
			continue
		}
		err := client.CoreV1().PersistentVolumes().Delete(ctx, pv.Name, metav1.DeleteOptions{})
		if err != nil && !errors.IsNotFound(err) {
			return fmt.Errorf("failed to delete persistent volume %s: %w", pv.Name, err)
		}
		deleted++
	}

	if deleted > 0 {
		status.Send(ctx, status.NewUpdate(status.LevelProgress, "Deleted released persistent volumes").
			WithResource("persistent-volume").
			WithAction("deleting").
			WithMetadata("count", deleted))
	}
	return nil
}
