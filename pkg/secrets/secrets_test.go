package secrets

import (
	"context"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
)

func newFakeDynamicClient(objects ...runtime.Object) *dynamicfake.FakeDynamicClient {
	scheme := runtime.NewScheme()
	listKinds := map[schema.GroupVersionResource]string{
		ClusterSecretStoreGVR: "ClusterSecretStoreList",
		ExternalSecretGVR:     "ExternalSecretList",
	}
	return dynamicfake.NewSimpleDynamicClientWithCustomListKinds(scheme, listKinds, objects...)
}

func TestApplyClusterSecretStore(t *testing.T) {
	ctx := context.Background()

	t.Run("creates store with parameter store provider", func(t *testing.T) {
		client := newFakeDynamicClient()

		if err := ApplyClusterSecretStore(ctx, client, "us-west-2"); err != nil {
			t.Fatalf("ApplyClusterSecretStore() error = %v", err)
		}

		store, err := client.Resource(ClusterSecretStoreGVR).Get(ctx, StoreName, metav1.GetOptions{})
		if err != nil {
			t.Fatalf("store not created: %v", err)
		}

		service, _, _ := unstructured.NestedString(store.Object, "spec", "provider", "aws", "service")
		if service != "ParameterStore" {
			t.Errorf("service = %q, want ParameterStore", service)
		}
		region, _, _ := unstructured.NestedString(store.Object, "spec", "provider", "aws", "region")
		if region != "us-west-2" {
			t.Errorf("region = %q, want us-west-2", region)
		}
		saName, _, _ := unstructured.NestedString(store.Object, "spec", "provider", "aws", "auth", "jwt", "serviceAccountRef", "name")
		if saName != ServiceAccountName {
			t.Errorf("serviceAccountRef.name = %q, want %s", saName, ServiceAccountName)
		}
	})

	t.Run("second apply updates in place", func(t *testing.T) {
		client := newFakeDynamicClient()

		if err := ApplyClusterSecretStore(ctx, client, "us-west-2"); err != nil {
			t.Fatalf("first apply error = %v", err)
		}
		if err := ApplyClusterSecretStore(ctx, client, "eu-central-1"); err != nil {
			t.Fatalf("second apply error = %v", err)
		}

		store, err := client.Resource(ClusterSecretStoreGVR).Get(ctx, StoreName, metav1.GetOptions{})
		if err != nil {
			t.Fatalf("store missing: %v", err)
		}
		region, _, _ := unstructured.NestedString(store.Object, "spec", "provider", "aws", "region")
		if region != "eu-central-1" {
			t.Errorf("region = %q, want eu-central-1 after update", region)
		}
	})
}

func TestApplyExternalSecret(t *testing.T) {
	ctx := context.Background()

	t.Run("creates secret mapping all credentials", func(t *testing.T) {
		client := newFakeDynamicClient()

		if err := ApplyExternalSecret(ctx, client, "iot-demo-dev", "iot-demo"); err != nil {
			t.Fatalf("ApplyExternalSecret() error = %v", err)
		}

		secret, err := client.Resource(ExternalSecretGVR).Namespace("iot-demo-dev").Get(ctx, TargetSecretName, metav1.GetOptions{})
		if err != nil {
			t.Fatalf("external secret not created: %v", err)
		}

		refreshInterval, _, _ := unstructured.NestedString(secret.Object, "spec", "refreshInterval")
		if refreshInterval != "1h" {
			t.Errorf("refreshInterval = %q, want 1h", refreshInterval)
		}

		storeKind, _, _ := unstructured.NestedString(secret.Object, "spec", "secretStoreRef", "kind")
		if storeKind != "ClusterSecretStore" {
			t.Errorf("secretStoreRef.kind = %q", storeKind)
		}

		data, _, _ := unstructured.NestedSlice(secret.Object, "spec", "data")
		if len(data) != 3 {
			t.Fatalf("data entries = %d, want 3", len(data))
		}

		keys := map[string]string{}
		for _, entry := range data {
			m := entry.(map[string]interface{})
			secretKey, _, _ := unstructured.NestedString(m, "secretKey")
			remoteKey, _, _ := unstructured.NestedString(m, "remoteRef", "key")
			keys[secretKey] = remoteKey
		}
		if keys["influxdb-admin-password"] != "/iot-demo/influxdb/admin-password" {
			t.Errorf("influxdb mapping = %q", keys["influxdb-admin-password"])
		}
		if keys["grafana-admin-password"] != "/iot-demo/grafana/admin-password" {
			t.Errorf("grafana mapping = %q", keys["grafana-admin-password"])
		}
		if keys["mqtt-password"] != "/iot-demo/mqtt/password" {
			t.Errorf("mqtt mapping = %q", keys["mqtt-password"])
		}
	})

	t.Run("reapply converges", func(t *testing.T) {
		client := newFakeDynamicClient()
		if err := ApplyExternalSecret(ctx, client, "iot-demo-dev", "iot-demo"); err != nil {
			t.Fatalf("first apply error = %v", err)
		}
		if err := ApplyExternalSecret(ctx, client, "iot-demo-dev", "iot-demo"); err != nil {
			t.Fatalf("second apply error = %v", err)
		}
	})
}

func makeExternalSecret(namespace string, conditions []interface{}) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "external-secrets.io/v1beta1",
			"kind":       "ExternalSecret",
			"metadata": map[string]interface{}{
				"name":      TargetSecretName,
				"namespace": namespace,
			},
		},
	}
	if conditions != nil {
		obj.Object["status"] = map[string]interface{}{
			"conditions": conditions,
		}
	}
	return obj
}

func TestSynced(t *testing.T) {
	ctx := context.Background()

	t.Run("synced condition", func(t *testing.T) {
		secret := makeExternalSecret("iot-demo-dev", []interface{}{
			map[string]interface{}{
				"type":   "Ready",
				"status": "True",
				"reason": "SecretSynced",
			},
		})
		client := newFakeDynamicClient(secret)

		synced, reason, err := Synced(ctx, client, "iot-demo-dev")
		if err != nil {
			t.Fatalf("Synced() error = %v", err)
		}
		if !synced {
			t.Error("synced = false, want true")
		}
		if reason != "SecretSynced" {
			t.Errorf("reason = %q, want SecretSynced", reason)
		}
	})

	t.Run("error condition is not synced", func(t *testing.T) {
		secret := makeExternalSecret("iot-demo-dev", []interface{}{
			map[string]interface{}{
				"type":   "Ready",
				"status": "False",
				"reason": "SecretSyncedError",
			},
		})
		client := newFakeDynamicClient(secret)

		synced, reason, err := Synced(ctx, client, "iot-demo-dev")
		if err != nil {
			t.Fatalf("Synced() error = %v", err)
		}
		if synced {
			t.Error("synced = true, want false")
		}
		if reason != "SecretSyncedError" {
			t.Errorf("reason = %q", reason)
		}
	})

	t.Run("no status yet", func(t *testing.T) {
		secret := makeExternalSecret("iot-demo-dev", nil)
		client := newFakeDynamicClient(secret)

		synced, _, err := Synced(ctx, client, "iot-demo-dev")
		if err != nil {
			t.Fatalf("Synced() error = %v", err)
		}
		if synced {
			t.Error("synced = true, want false with no status")
		}
	})

	t.Run("missing resource is an error", func(t *testing.T) {
		client := newFakeDynamicClient()
		if _, _, err := Synced(ctx, client, "iot-demo-dev"); err == nil {
			t.Fatal("Synced() = nil error, want error for missing resource")
		}
	})
}
