package main

import (
	"context"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/config"
	"github.com/thingslab-dev/thingslab-orchestrator/pkg/tofu"
)

// newInfraDriver prepares the OpenTofu working directory for the cluster
// described by the config. The backend is configured later, by Init.
func newInfraDriver(ctx context.Context, cfg *config.Config) (*tofu.Driver, error) {
	return tofu.NewDriver(ctx, tofu.TFVars{
		Region:            cfg.Region,
		ProjectName:       cfg.ProjectName,
		ClusterName:       cfg.ClusterName,
		KubernetesVersion: cfg.KubernetesVersion,
		Tags: map[string]string{
			"orchestrator.thingslab.dev/cluster-name": cfg.ClusterName,
			"orchestrator.thingslab.dev/project":      cfg.ProjectName,
		},
		NodeInstanceType: cfg.NodeGroup.Instance,
		NodeMinSize:      cfg.NodeGroup.MinNodes,
		NodeDesiredSize:  cfg.NodeGroup.DesiredNodes,
		NodeMaxSize:      cfg.NodeGroup.MaxNodes,
	})
}
