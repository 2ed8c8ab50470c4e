package kubernetes

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// WorkloadSet names the deployments and statefulsets that must all be ready
// for a component to count as up.
type WorkloadSet struct {
	Namespace    string
	Deployments  []string
	StatefulSets []string
}

// WorkloadsReady reports whether every workload in the set has at least one
// ready replica. Errors from the API server are returned so pollers can
// distinguish "not yet" from "cannot tell".
func WorkloadsReady(ctx context.Context, client kubernetes.Interface, set WorkloadSet) (bool, error) {
	for _, name := range set.Deployments {
		deployment, err := client.AppsV1().Deployments(set.Namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		if deployment.Status.ReadyReplicas < 1 {
			return false, nil
		}
	}

	for _, name := range set.StatefulSets {
		statefulset, err := client.AppsV1().StatefulSets(set.Namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		if statefulset.Status.ReadyReplicas < 1 {
			return false, nil
		}
	}

	return true, nil
}

// ArgoCDWorkloads returns the workloads that gate an Argo CD install.
func ArgoCDWorkloads(namespace string) WorkloadSet {
	return WorkloadSet{
		Namespace:    namespace,
		Deployments:  []string{"argocd-server", "argocd-repo-server"},
		StatefulSets: []string{"argocd-application-controller"},
	}
}

// ExternalSecretsWorkloads returns the workloads that gate the
// external-secrets operator install.
func ExternalSecretsWorkloads(namespace string) WorkloadSet {
	return WorkloadSet{
		Namespace: namespace,
		Deployments: []string{
			"external-secrets",
			"external-secrets-webhook",
			"external-secrets-cert-controller",
		},
	}
}
