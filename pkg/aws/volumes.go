package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

// SweepVolumes deletes EBS volumes the CSI driver provisioned for the
// cluster. Only available volumes are touched; anything still attached is
// left for the instance teardown to release. Returns the number deleted.
func SweepVolumes(ctx context.Context, client EC2API, clusterName string) (int, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.SweepVolumes")
	defer span.End()

	span.SetAttributes(attribute.String("cluster_name", clusterName))

	out, err := client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
		Filters: []ec2types.Filter{
			{
				Name:   strPtr("tag-key"),
				Values: []string{KubernetesClusterTag(clusterName)},
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to describe cluster volumes: %w", err)
	}

	var candidates []string
	for _, vol := range out.Volumes {
		if vol.State != ec2types.VolumeStateAvailable || vol.VolumeId == nil {
			continue
		}
		candidates = append(candidates, *vol.VolumeId)
	}

	if len(candidates) == 0 {
		span.SetAttributes(attribute.Int("volumes_deleted", 0))
		return 0, nil
	}

	status.Send(ctx, status.NewUpdate(status.LevelProgress, "Deleting orphaned EBS volumes").
		WithResource("ebs-volume").
		WithAction("deleting").
		WithMetadata("count", len(candidates)))

	g, gctx := errgroup.WithContext(ctx)
	for _, volumeID := range candidates {
		g.Go(func() error {
			_, err := client.DeleteVolume(gctx, &ec2.DeleteVolumeInput{
				VolumeId: strPtr(volumeID),
			})
			if err := BestEffort(gctx, "ebs-volume", err); err != nil {
				return fmt.Errorf("failed to delete volume %s: %w", volumeID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return 0, err
	}

	span.SetAttributes(attribute.Int("volumes_deleted", len(candidates)))
	return len(candidates), nil
}
