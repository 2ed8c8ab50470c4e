package aws

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const (
	// TagClusterName marks resources as belonging to a cluster managed by
	// this tool. All terraform-created resources carry it via default_tags.
	TagClusterName = "orchestrator.thingslab.dev/cluster-name"
	// TagManagedBy marks resources as managed by this tool.
	TagManagedBy = "orchestrator.thingslab.dev/managed-by"

	// ManagedByValue is the value stored under TagManagedBy.
	ManagedByValue = "tlo"
)

// KubernetesClusterTag returns the tag key Kubernetes puts on resources it
// creates on behalf of a cluster (load balancers, their security groups,
// dynamically provisioned EBS volumes).
func KubernetesClusterTag(clusterName string) string {
	return "kubernetes.io/cluster/" + clusterName
}

// ClusterTagFilters returns EC2 filters selecting resources tagged with the
// orchestrator's cluster tag.
func ClusterTagFilters(clusterName string) []types.Filter {
	return []types.Filter{
		{
			Name:   strPtr(fmt.Sprintf("tag:%s", TagClusterName)),
			Values: []string{clusterName},
		},
	}
}

// strPtr returns a pointer to the provided string.
func strPtr(s string) *string {
	return &s
}
