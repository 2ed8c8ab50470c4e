// Package config parses and validates thingslab-config.yaml.
package config

import "fmt"

// Config represents the parsed thingslab-config.yaml structure.
type Config struct {
	ProjectName     string `yaml:"project_name"`
	Region          string `yaml:"region"`
	ClusterName     string `yaml:"cluster_name"`
	NamespacePrefix string `yaml:"namespace_prefix"`

	Environments []Environment `yaml:"environments,omitempty"`
	Credentials  Credentials   `yaml:"credentials"`
	GitOps       GitOps        `yaml:"gitops"`

	KubernetesVersion string     `yaml:"kubernetes_version,omitempty"`
	NodeGroup         *NodeGroup `yaml:"node_group,omitempty"`

	// Unknown keys are captured rather than rejected so the config file
	// can carry settings for other tools.
	AdditionalFields map[string]interface{} `yaml:",inline"`
}

// Environment describes one deployment environment (its own namespace and
// Argo CD application).
type Environment struct {
	Name string `yaml:"name"`

	// Profile selects the resource sizing applied by the deployment repo:
	// small, medium or large.
	Profile string `yaml:"profile,omitempty"`

	// External marks the environment's ingress as externally reachable.
	External bool `yaml:"external,omitempty"`
}

// Credentials holds the secret material seeded into the parameter store.
type Credentials struct {
	InfluxDBAdminPassword string `yaml:"influxdb_admin_password"`
	GrafanaAdminPassword  string `yaml:"grafana_admin_password"`
	MQTTPassword          string `yaml:"mqtt_password"`
}

// GitOps configures the Argo CD bootstrap.
type GitOps struct {
	RepoURL         string `yaml:"repo_url"`
	Revision        string `yaml:"revision,omitempty"`
	ArgoCDVersion   string `yaml:"argocd_version,omitempty"`
	ArgoCDNamespace string `yaml:"argocd_namespace,omitempty"`
}

// NodeGroup describes the managed node group backing the cluster.
type NodeGroup struct {
	Instance     string `yaml:"instance,omitempty"`
	MinNodes     int    `yaml:"min_nodes,omitempty"`
	DesiredNodes int    `yaml:"desired_nodes,omitempty"`
	MaxNodes     int    `yaml:"max_nodes,omitempty"`
}

// Defaults applied after parsing.
const (
	DefaultKubernetesVersion = "1.31"
	DefaultInstance          = "t3.large"
	DefaultMinNodes          = 1
	DefaultDesiredNodes      = 2
	DefaultMaxNodes          = 4
	DefaultGitRevision       = "main"
	DefaultArgoCDVersion     = "7.7.11"
	DefaultArgoCDNamespace   = "argocd"
)

// DefaultEnvironments is used when the config lists none.
var DefaultEnvironments = []Environment{
	{Name: "dev", Profile: "small"},
	{Name: "staging", Profile: "medium"},
	{Name: "prod", Profile: "large", External: true},
}

// ApplyDefaults fills optional fields that were omitted from the file.
func (c *Config) ApplyDefaults() {
	if c.KubernetesVersion == "" {
		c.KubernetesVersion = DefaultKubernetesVersion
	}
	if c.GitOps.Revision == "" {
		c.GitOps.Revision = DefaultGitRevision
	}
	if c.GitOps.ArgoCDVersion == "" {
		c.GitOps.ArgoCDVersion = DefaultArgoCDVersion
	}
	if c.GitOps.ArgoCDNamespace == "" {
		c.GitOps.ArgoCDNamespace = DefaultArgoCDNamespace
	}
	if len(c.Environments) == 0 {
		c.Environments = append([]Environment(nil), DefaultEnvironments...)
	}
	if c.NodeGroup == nil {
		c.NodeGroup = &NodeGroup{}
	}
	if c.NodeGroup.Instance == "" {
		c.NodeGroup.Instance = DefaultInstance
	}
	if c.NodeGroup.MinNodes == 0 {
		c.NodeGroup.MinNodes = DefaultMinNodes
	}
	if c.NodeGroup.DesiredNodes == 0 {
		c.NodeGroup.DesiredNodes = DefaultDesiredNodes
	}
	if c.NodeGroup.MaxNodes == 0 {
		c.NodeGroup.MaxNodes = DefaultMaxNodes
	}
}

// Validate checks every required key and returns the first missing one.
// It runs before any cloud call so misconfiguration never costs resources.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"project_name", c.ProjectName},
		{"region", c.Region},
		{"cluster_name", c.ClusterName},
		{"namespace_prefix", c.NamespacePrefix},
		{"credentials.influxdb_admin_password", c.Credentials.InfluxDBAdminPassword},
		{"credentials.grafana_admin_password", c.Credentials.GrafanaAdminPassword},
		{"credentials.mqtt_password", c.Credentials.MQTTPassword},
		{"gitops.repo_url", c.GitOps.RepoURL},
	}

	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("required config key %q is missing or empty", r.key)
		}
	}

	for _, env := range c.Environments {
		if env.Name == "" {
			return fmt.Errorf("every environment entry needs a name")
		}
	}

	if c.NodeGroup != nil {
		ng := c.NodeGroup
		if ng.MinNodes < 0 || ng.MaxNodes < 0 || ng.DesiredNodes < 0 {
			return fmt.Errorf("node_group sizes must not be negative")
		}
		if ng.MaxNodes > 0 && ng.MinNodes > ng.MaxNodes {
			return fmt.Errorf("node_group min_nodes %d exceeds max_nodes %d", ng.MinNodes, ng.MaxNodes)
		}
		if ng.DesiredNodes > 0 && ng.MaxNodes > 0 && ng.DesiredNodes > ng.MaxNodes {
			return fmt.Errorf("node_group desired_nodes %d exceeds max_nodes %d", ng.DesiredNodes, ng.MaxNodes)
		}
	}

	return nil
}

// Namespace returns the Kubernetes namespace for an environment.
func (c *Config) Namespace(env string) string {
	return fmt.Sprintf("%s-%s", c.NamespacePrefix, env)
}

// StateBucketName returns the S3 bucket holding the terraform state.
func (c *Config) StateBucketName() string {
	return fmt.Sprintf("%s-tlo-state", c.ProjectName)
}

// StateKey returns the terraform state object key for the cluster.
func (c *Config) StateKey() string {
	return fmt.Sprintf("clusters/%s/terraform.tfstate", c.ClusterName)
}
