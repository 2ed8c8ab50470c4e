package gitops

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/dynamic"
)

// AppState is a point-in-time view of one generated Application.
type AppState struct {
	Name   string
	Sync   string
	Health string
}

// Ready reports a fully synced, healthy application.
func (s AppState) Ready() bool {
	return s.Sync == "Synced" && s.Health == "Healthy"
}

// Degraded reports a terminal health status that will not self-resolve.
func (s AppState) Degraded() bool {
	return s.Health == "Degraded"
}

// ApplicationStatus reads the sync and health status of one Application.
// A missing Application or missing status fields yield empty strings, which
// the caller treats as "not yet", not an error.
func ApplicationStatus(ctx context.Context, client dynamic.Interface, name, namespace string) (AppState, error) {
	state := AppState{Name: name}

	app, err := client.Resource(ApplicationGVR).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return state, fmt.Errorf("failed to get application %s: %w", name, err)
	}

	state.Sync, _, _ = unstructured.NestedString(app.Object, "status", "sync", "status")
	state.Health, _, _ = unstructured.NestedString(app.Object, "status", "health", "status")
	return state, nil
}
