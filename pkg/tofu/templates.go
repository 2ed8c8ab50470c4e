package tofu

import "embed"

// Embed every template file, including dotfiles such as .terraform.lock.hcl
// if one is ever checked in.
//
//go:embed all:templates
var tofuTemplates embed.FS

// TFVars is the variable set written to terraform.tfvars.json for the
// embedded cluster templates.
type TFVars struct {
	Region            string            `json:"region"`
	ProjectName       string            `json:"project_name"`
	ClusterName       string            `json:"cluster_name"`
	KubernetesVersion string            `json:"kubernetes_version"`
	Tags              map[string]string `json:"tags,omitempty"`
	VPCCIDRBlock      *string           `json:"vpc_cidr_block,omitempty"`
	NodeInstanceType  string            `json:"node_instance_type"`
	NodeMinSize       int               `json:"node_min_size"`
	NodeDesiredSize   int               `json:"node_desired_size"`
	NodeMaxSize       int               `json:"node_max_size"`
}
