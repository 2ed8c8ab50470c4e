package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		ProjectName:     "acme",
		Region:          "us-east-1",
		ClusterName:     "acme-eks",
		NamespacePrefix: "acme",
		Credentials: Credentials{
			InfluxDBAdminPassword: "influx-secret",
			GrafanaAdminPassword:  "grafana-secret",
			MQTTPassword:          "mqtt-secret",
		},
		GitOps: GitOps{
			RepoURL: "https://github.com/acme/thingslab-deploy",
		},
	}
}

func TestValidate_RequiredKeys(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{"missing project_name", func(c *Config) { c.ProjectName = "" }, "project_name"},
		{"missing region", func(c *Config) { c.Region = "" }, "region"},
		{"missing cluster_name", func(c *Config) { c.ClusterName = "" }, "cluster_name"},
		{"missing namespace_prefix", func(c *Config) { c.NamespacePrefix = "" }, "namespace_prefix"},
		{"missing influxdb password", func(c *Config) { c.Credentials.InfluxDBAdminPassword = "" }, "credentials.influxdb_admin_password"},
		{"missing grafana password", func(c *Config) { c.Credentials.GrafanaAdminPassword = "" }, "credentials.grafana_admin_password"},
		{"missing mqtt password", func(c *Config) { c.Credentials.MQTTPassword = "" }, "credentials.mqtt_password"},
		{"missing repo url", func(c *Config) { c.GitOps.RepoURL = "" }, "gitops.repo_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("Validate() error %q does not name key %q", err, tt.wantKey)
			}
		})
	}
}

func TestValidate_Complete(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_NodeGroupSizes(t *testing.T) {
	cfg := validConfig()
	cfg.NodeGroup = &NodeGroup{Instance: "t3.large", MinNodes: 5, MaxNodes: 2}

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil for min_nodes > max_nodes, want error")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.KubernetesVersion != DefaultKubernetesVersion {
		t.Errorf("KubernetesVersion = %q, want %q", cfg.KubernetesVersion, DefaultKubernetesVersion)
	}
	if cfg.GitOps.Revision != "main" {
		t.Errorf("GitOps.Revision = %q, want main", cfg.GitOps.Revision)
	}
	if cfg.GitOps.ArgoCDNamespace != "argocd" {
		t.Errorf("GitOps.ArgoCDNamespace = %q, want argocd", cfg.GitOps.ArgoCDNamespace)
	}
	if len(cfg.Environments) != 3 {
		t.Fatalf("Environments length = %d, want 3", len(cfg.Environments))
	}
	if cfg.Environments[0].Name != "dev" || cfg.Environments[2].Name != "prod" {
		t.Errorf("default environments = %v", cfg.Environments)
	}
	if cfg.NodeGroup.Instance != DefaultInstance {
		t.Errorf("NodeGroup.Instance = %q, want %q", cfg.NodeGroup.Instance, DefaultInstance)
	}
	if cfg.NodeGroup.DesiredNodes != DefaultDesiredNodes {
		t.Errorf("NodeGroup.DesiredNodes = %d, want %d", cfg.NodeGroup.DesiredNodes, DefaultDesiredNodes)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.KubernetesVersion = "1.30"
	cfg.Environments = []Environment{{Name: "only", Profile: "small"}}
	cfg.ApplyDefaults()

	if cfg.KubernetesVersion != "1.30" {
		t.Errorf("KubernetesVersion = %q, want 1.30", cfg.KubernetesVersion)
	}
	if len(cfg.Environments) != 1 || cfg.Environments[0].Name != "only" {
		t.Errorf("explicit environments were replaced: %v", cfg.Environments)
	}
}

func TestNamespace(t *testing.T) {
	cfg := validConfig()
	if got := cfg.Namespace("dev"); got != "acme-dev" {
		t.Errorf("Namespace(dev) = %q, want acme-dev", got)
	}
}

func TestStateBucketName(t *testing.T) {
	cfg := validConfig()
	if got := cfg.StateBucketName(); got != "acme-tlo-state" {
		t.Errorf("StateBucketName() = %q, want acme-tlo-state", got)
	}
	if got := cfg.StateKey(); got != "clusters/acme-eks/terraform.tfstate" {
		t.Errorf("StateKey() = %q", got)
	}
}

func TestParseConfig(t *testing.T) {
	content := `
project_name: acme
region: us-east-1
cluster_name: acme-eks
namespace_prefix: acme
credentials:
  influxdb_admin_password: a
  grafana_admin_password: b
  mqtt_password: c
gitops:
  repo_url: https://github.com/acme/thingslab-deploy
environments:
  - name: dev
    profile: small
  - name: prod
    profile: large
    external: true
some_other_tool:
  setting: value
`
	path := filepath.Join(t.TempDir(), "thingslab-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseConfig(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if cfg.ClusterName != "acme-eks" {
		t.Errorf("ClusterName = %q, want acme-eks", cfg.ClusterName)
	}
	if len(cfg.Environments) != 2 {
		t.Errorf("Environments length = %d, want 2", len(cfg.Environments))
	}
	if !cfg.Environments[1].External {
		t.Error("prod environment should be external")
	}
	// Lenient parsing keeps unknown top-level keys.
	if _, ok := cfg.AdditionalFields["some_other_tool"]; !ok {
		t.Error("unknown key some_other_tool was dropped")
	}
}

func TestParseConfig_MissingRequiredKey(t *testing.T) {
	content := `
project_name: acme
region: us-east-1
cluster_name: acme-eks
`
	path := filepath.Join(t.TempDir(), "thingslab-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := ParseConfig(context.Background(), path); err == nil {
		t.Error("ParseConfig() = nil error for incomplete config")
	}
}

func TestParseConfig_MissingFile(t *testing.T) {
	if _, err := ParseConfig(context.Background(), "/does/not/exist.yaml"); err == nil {
		t.Error("ParseConfig() = nil error for missing file")
	}
}
