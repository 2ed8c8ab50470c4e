package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

// EBSCSIAddonName is the managed addon providing dynamic EBS provisioning.
const EBSCSIAddonName = "aws-ebs-csi-driver"

// AddonStatus returns the addon's status string, or "NOT_FOUND" when the
// addon is not installed on the cluster.
func AddonStatus(ctx context.Context, client EKSAPI, clusterName, addonName string) (string, error) {
	out, err := client.DescribeAddon(ctx, &eks.DescribeAddonInput{
		ClusterName: aws.String(clusterName),
		AddonName:   aws.String(addonName),
	})
	if err != nil {
		if IsNotFound(err) {
			return "NOT_FOUND", nil
		}
		return "", fmt.Errorf("failed to describe addon %s: %w", addonName, err)
	}
	if out.Addon == nil {
		return "NOT_FOUND", nil
	}
	return string(out.Addon.Status), nil
}

// EnsureAddon installs the managed addon with the given service account role
// if it is not already present. A concurrent create is treated as success.
// Returns whether a create call was issued.
func EnsureAddon(ctx context.Context, client EKSAPI, clusterName, addonName, roleARN string) (bool, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.EnsureAddon")
	defer span.End()

	span.SetAttributes(
		attribute.String("cluster_name", clusterName),
		attribute.String("addon_name", addonName),
	)

	current, err := AddonStatus(ctx, client, clusterName, addonName)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if current != "NOT_FOUND" {
		span.SetAttributes(attribute.String("addon_status", current))
		return false, nil
	}

	status.Send(ctx, status.NewUpdate(status.LevelProgress, "Installing EKS managed addon").
		WithResource("eks-addon").
		WithAction("creating").
		WithMetadata("addon", addonName))

	_, err = client.CreateAddon(ctx, &eks.CreateAddonInput{
		ClusterName:           aws.String(clusterName),
		AddonName:             aws.String(addonName),
		ServiceAccountRoleArn: aws.String(roleARN),
		ResolveConflicts:      ekstypes.ResolveConflictsOverwrite,
	})
	if err != nil {
		if IsInUse(err) {
			// Another actor created it between describe and create.
			span.SetAttributes(attribute.Bool("addon_race", true))
			return false, nil
		}
		span.RecordError(err)
		return false, fmt.Errorf("failed to create addon %s: %w", addonName, err)
	}

	return true, nil
}
