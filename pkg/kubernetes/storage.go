package kubernetes

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	corev1 "k8s.io/api/core/v1"
	storagev1 "k8s.io/api/storage/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

const defaultClassAnnotation = "storageclass.kubernetes.io/is-default-class"

// EnsureStorageClasses creates the gp3 storage classes backed by the EBS CSI
// driver: gp3 as the cluster default and gp3-retain for volumes that must
// survive workload deletion. EKS ships gp2 as default, so any other class
// claiming the default annotation is demoted first.
func EnsureStorageClasses(ctx context.Context, client kubernetes.Interface) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	_, span := tracer.Start(ctx, "kubernetes.EnsureStorageClasses")
	defer span.End()

	if err := demoteDefaultClasses(ctx, client); err != nil {
		span.RecordError(err)
		return err
	}

	classes := []storagev1.StorageClass{
		gp3StorageClass("gp3", corev1.PersistentVolumeReclaimDelete, true),
		gp3StorageClass("gp3-retain", corev1.PersistentVolumeReclaimRetain, false),
	}

	for _, sc := range classes {
		if err := upsertStorageClass(ctx, client, sc); err != nil {
			span.RecordError(err)
			return err
		}
	}

	status.Send(ctx, status.NewUpdate(status.LevelSuccess, "Storage classes configured").
		WithResource("storage-class").
		WithAction("configured"))
	return nil
}

// StorageClassesReady reports whether both managed classes exist and gp3
// carries the default annotation.
func StorageClassesReady(ctx context.Context, client kubernetes.Interface) (bool, error) {
	gp3, err := client.StorageV1().StorageClasses().Get(ctx, "gp3", metav1.GetOptions{})
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check storage class gp3: %w", err)
	}
	if gp3.Annotations[defaultClassAnnotation] != "true" {
		return false, nil
	}

	if _, err := client.StorageV1().StorageClasses().Get(ctx, "gp3-retain", metav1.GetOptions{}); err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check storage class gp3-retain: %w", err)
	}
	return true, nil
}

func gp3StorageClass(name string, reclaim corev1.PersistentVolumeReclaimPolicy, isDefault bool) storagev1.StorageClass {
	bindingMode := storagev1.VolumeBindingWaitForFirstConsumer
	expansion := true

	sc := storagev1.StorageClass{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
		},
		Provisioner: "ebs.csi.aws.com",
		Parameters: map[string]string{
			"type": "gp3",
		},
		ReclaimPolicy:        &reclaim,
		VolumeBindingMode:    &bindingMode,
		AllowVolumeExpansion: &expansion,
	}
	if isDefault {
		sc.Annotations = map[string]string{
			defaultClassAnnotation: "true",
		}
	}
	return sc
}

// demoteDefaultClasses removes the default annotation from classes we do not
// manage. Provisioner and parameters are immutable, so existing classes are
// patched via annotation update only.
func demoteDefaultClasses(ctx context.Context, client kubernetes.Interface) error {
	list, err := client.StorageV1().StorageClasses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list storage classes: %w", err)
	}

	for i := range list.Items {
		sc := &list.Items[i]
		if sc.Name == "gp3" {
			continue
		}
		if sc.Annotations[defaultClassAnnotation] != "true" {
			continue
		}
		sc.Annotations[defaultClassAnnotation] = "false"
		if _, err := client.StorageV1().StorageClasses().Update(ctx, sc, metav1.UpdateOptions{}); err != nil {
			return fmt.Errorf("failed to demote default storage class %s: %w", sc.Name, err)
		}
	}
	return nil
}

func upsertStorageClass(ctx context.Context, client kubernetes.Interface, sc storagev1.StorageClass) error {
	existing, err := client.StorageV1().StorageClasses().Get(ctx, sc.Name, metav1.GetOptions{})
	if err != nil {
		if !errors.IsNotFound(err) {
			return fmt.Errorf("failed to check storage class %s: %w", sc.Name, err)
		}
		if _, err := client.StorageV1().StorageClasses().Create(ctx, &sc, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("failed to create storage class %s: %w", sc.Name, err)
		}
		return nil
	}

	// Only annotations are mutable on an existing class.
	if existing.Annotations == nil {
		existing.Annotations = map[string]string{}
	}
	for k, v := range sc.Annotations {
		existing.Annotations[k] = v
	}
	if _, err := client.StorageV1().StorageClasses().Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update storage class %s: %w", sc.Name, err)
	}
	return nil
}
