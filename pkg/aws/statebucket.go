package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

// EnsureStateBucket creates the versioned S3 bucket holding terraform state.
// An existing bucket owned by this account is reused; versioning is applied
// on every call so a manually created bucket gets it too.
func EnsureStateBucket(ctx context.Context, client S3API, bucketName, region string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.EnsureStateBucket")
	defer span.End()

	span.SetAttributes(attribute.String("bucket_name", bucketName))

	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}
	// us-east-1 rejects an explicit location constraint.
	if region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}

	_, err := client.CreateBucket(ctx, input)
	if err != nil {
		code := ErrorCode(err)
		if code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
			span.RecordError(err)
			return fmt.Errorf("failed to create state bucket %s: %w", bucketName, err)
		}
		span.SetAttributes(attribute.Bool("bucket_existed", true))
	} else {
		status.Send(ctx, status.NewUpdate(status.LevelProgress, "Created terraform state bucket").
			WithResource("s3-bucket").
			WithAction("creating").
			WithMetadata("bucket", bucketName))
	}

	_, err = client.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(bucketName),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: s3types.BucketVersioningStatusEnabled,
		},
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to enable versioning on %s: %w", bucketName, err)
	}

	return nil
}

// DestroyStateBucket empties and deletes the state bucket, including all
// object versions and delete markers. A missing bucket is not an error.
func DestroyStateBucket(ctx context.Context, client S3API, bucketName string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.DestroyStateBucket")
	defer span.End()

	span.SetAttributes(attribute.String("bucket_name", bucketName))

	status.Send(ctx, status.NewUpdate(status.LevelProgress, "Deleting terraform state bucket").
		WithResource("s3-bucket").
		WithAction("deleting").
		WithMetadata("bucket", bucketName))

	var keyMarker, versionMarker *string
	for {
		out, err := client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:          aws.String(bucketName),
			KeyMarker:       keyMarker,
			VersionIdMarker: versionMarker,
		})
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			span.RecordError(err)
			return fmt.Errorf("failed to list object versions in %s: %w", bucketName, err)
		}

		var objects []s3types.ObjectIdentifier
		for _, version := range out.Versions {
			objects = append(objects, s3types.ObjectIdentifier{
				Key:       version.Key,
				VersionId: version.VersionId,
			})
		}
		for _, marker := range out.DeleteMarkers {
			objects = append(objects, s3types.ObjectIdentifier{
				Key:       marker.Key,
				VersionId: marker.VersionId,
			})
		}

		if len(objects) > 0 {
			_, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucketName),
				Delete: &s3types.Delete{
					Objects: objects,
					Quiet:   aws.Bool(true),
				},
			})
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("failed to delete objects from %s: %w", bucketName, err)
			}
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		keyMarker = out.NextKeyMarker
		versionMarker = out.NextVersionIdMarker
	}

	_, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err := BestEffort(ctx, "s3-bucket", err); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete bucket %s: %w", bucketName, err)
	}
	return nil
}

// StateBucketExists reports whether the bucket is reachable with the active
// credentials.
func StateBucketExists(ctx context.Context, client S3API, bucketName string) (bool, error) {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check bucket %s: %w", bucketName, err)
	}
	return true, nil
}
