package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

// DiscoverVPC resolves the cluster's VPC ID through a priority cascade:
//
//  1. a VPC tagged with the orchestrator's cluster tag
//  2. the EKS cluster description's VPC config
//  3. the VPC of a security group named eks-cluster-sg-<cluster>-*
//
// The first non-empty answer wins. An empty string with a nil error means
// nothing was found anywhere; the caller falls back to the driven destroy.
func DiscoverVPC(ctx context.Context, ec2Client EC2API, eksClient EKSAPI, clusterName string) (string, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.DiscoverVPC")
	defer span.End()

	span.SetAttributes(attribute.String("cluster_name", clusterName))

	status.Send(ctx, status.NewUpdate(status.LevelProgress, "Resolving cluster VPC").
		WithResource("vpc").
		WithAction("discovering"))

	vpcID, err := vpcByTag(ctx, ec2Client, clusterName)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if vpcID != "" {
		span.SetAttributes(attribute.String("vpc_id", vpcID), attribute.String("vpc_source", "tag"))
		return vpcID, nil
	}

	vpcID, err = vpcFromCluster(ctx, eksClient, clusterName)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if vpcID != "" {
		span.SetAttributes(attribute.String("vpc_id", vpcID), attribute.String("vpc_source", "eks-cluster"))
		return vpcID, nil
	}

	vpcID, err = vpcFromClusterSecurityGroup(ctx, ec2Client, clusterName)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if vpcID != "" {
		span.SetAttributes(attribute.String("vpc_id", vpcID), attribute.String("vpc_source", "security-group"))
		return vpcID, nil
	}

	span.SetAttributes(attribute.Bool("vpc_found", false))
	return "", nil
}

func vpcByTag(ctx context.Context, client EC2API, clusterName string) (string, error) {
	out, err := client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: ClusterTagFilters(clusterName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe VPCs for cluster %s: %w", clusterName, err)
	}

	if len(out.Vpcs) == 0 {
		return "", nil
	}
	return aws.ToString(out.Vpcs[0].VpcId), nil
}

func vpcFromCluster(ctx context.Context, client EKSAPI, clusterName string) (string, error) {
	out, err := client.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(clusterName),
	})
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to describe EKS cluster %s: %w", clusterName, err)
	}

	if out.Cluster == nil || out.Cluster.ResourcesVpcConfig == nil {
		return "", nil
	}
	return aws.ToString(out.Cluster.ResourcesVpcConfig.VpcId), nil
}

// vpcFromClusterSecurityGroup finds the security group EKS creates for the
// cluster (eks-cluster-sg-<name>-<suffix>) and reads its VPC. The group can
// outlive the cluster itself, so this works even after partial teardown.
func vpcFromClusterSecurityGroup(ctx context.Context, client EC2API, clusterName string) (string, error) {
	prefix := fmt.Sprintf("eks-cluster-sg-%s-", clusterName)

	out, err := client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{
			{
				Name:   strPtr("group-name"),
				Values: []string{prefix + "*"},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe cluster security groups: %w", err)
	}

	for _, sg := range out.SecurityGroups {
		if sg.GroupName != nil && strings.HasPrefix(*sg.GroupName, prefix) {
			return aws.ToString(sg.VpcId), nil
		}
	}
	return "", nil
}

// ClusterStatus returns the EKS cluster status string, or "NOT_FOUND" when
// the cluster does not exist.
func ClusterStatus(ctx context.Context, client EKSAPI, clusterName string) (string, error) {
	out, err := client.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(clusterName),
	})
	if err != nil {
		if IsNotFound(err) {
			return "NOT_FOUND", nil
		}
		return "", fmt.Errorf("failed to describe EKS cluster %s: %w", clusterName, err)
	}
	if out.Cluster == nil {
		return "NOT_FOUND", nil
	}
	return string(out.Cluster.Status), nil
}

// ClusterOIDCIssuer returns the cluster's OIDC issuer URL, or "" when the
// cluster or its identity block is missing.
func ClusterOIDCIssuer(ctx context.Context, client EKSAPI, clusterName string) (string, error) {
	out, err := client.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: aws.String(clusterName),
	})
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to describe EKS cluster %s: %w", clusterName, err)
	}

	cluster := out.Cluster
	if cluster == nil || cluster.Identity == nil || cluster.Identity.Oidc == nil {
		return "", nil
	}
	return aws.ToString(cluster.Identity.Oidc.Issuer), nil
}
