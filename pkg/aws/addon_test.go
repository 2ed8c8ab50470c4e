package aws

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
)

func TestAddonStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("reports addon status", func(t *testing.T) {
		eksMock := &mockEKS{
			describeAddon: func(params *eks.DescribeAddonInput) (*eks.DescribeAddonOutput, error) {
				return &eks.DescribeAddonOutput{
					Addon: &ekstypes.Addon{Status: ekstypes.AddonStatusActive},
				}, nil
			},
		}
		got, err := AddonStatus(ctx, eksMock, "iot-demo", EBSCSIAddonName)
		if err != nil {
			t.Fatalf("AddonStatus() error = %v", err)
		}
		if got != "ACTIVE" {
			t.Errorf("status = %q, want ACTIVE", got)
		}
	})

	t.Run("missing addon", func(t *testing.T) {
		eksMock := &mockEKS{
			describeAddon: func(params *eks.DescribeAddonInput) (*eks.DescribeAddonOutput, error) {
				return nil, &mockAPIError{code: "ResourceNotFoundException"}
			},
		}
		got, err := AddonStatus(ctx, eksMock, "iot-demo", EBSCSIAddonName)
		if err != nil {
			t.Fatalf("AddonStatus() error = %v", err)
		}
		if got != "NOT_FOUND" {
			t.Errorf("status = %q, want NOT_FOUND", got)
		}
	})
}

func TestEnsureAddon(t *testing.T) {
	ctx := context.Background()
	roleARN := "arn:aws:iam::123456789012:role/iot-demo-ebs-csi"

	t.Run("creates addon when missing", func(t *testing.T) {
		eksMock := &mockEKS{
			describeAddon: func(params *eks.DescribeAddonInput) (*eks.DescribeAddonOutput, error) {
				return nil, &mockAPIError{code: "ResourceNotFoundException"}
			},
			createAddon: func(params *eks.CreateAddonInput) (*eks.CreateAddonOutput, error) {
				if got := aws.ToString(params.ServiceAccountRoleArn); got != roleARN {
					t.Errorf("ServiceAccountRoleArn = %q, want %q", got, roleARN)
				}
				if params.ResolveConflicts != ekstypes.ResolveConflictsOverwrite {
					t.Errorf("ResolveConflicts = %v, want OVERWRITE", params.ResolveConflicts)
				}
				return &eks.CreateAddonOutput{}, nil
			},
		}

		created, err := EnsureAddon(ctx, eksMock, "iot-demo", EBSCSIAddonName, roleARN)
		if err != nil {
			t.Fatalf("EnsureAddon() error = %v", err)
		}
		if !created {
			t.Error("created = false, want true")
		}
	})

	t.Run("existing addon is not recreated", func(t *testing.T) {
		eksMock := &mockEKS{
			describeAddon: func(params *eks.DescribeAddonInput) (*eks.DescribeAddonOutput, error) {
				return &eks.DescribeAddonOutput{
					Addon: &ekstypes.Addon{Status: ekstypes.AddonStatusCreating},
				}, nil
			},
			createAddon: func(params *eks.CreateAddonInput) (*eks.CreateAddonOutput, error) {
				t.Fatal("CreateAddon must not be called for an existing addon")
				return nil, nil
			},
		}

		created, err := EnsureAddon(ctx, eksMock, "iot-demo", EBSCSIAddonName, roleARN)
		if err != nil {
			t.Fatalf("EnsureAddon() error = %v", err)
		}
		if created {
			t.Error("created = true, want false")
		}
	})

	t.Run("concurrent create is tolerated", func(t *testing.T) {
		eksMock := &mockEKS{
			describeAddon: func(params *eks.DescribeAddonInput) (*eks.DescribeAddonOutput, error) {
				return nil, &mockAPIError{code: "ResourceNotFoundException"}
			},
			createAddon: func(params *eks.CreateAddonInput) (*eks.CreateAddonOutput, error) {
				return nil, &mockAPIError{code: "ResourceInUseException"}
			},
		}

		created, err := EnsureAddon(ctx, eksMock, "iot-demo", EBSCSIAddonName, roleARN)
		if err != nil {
			t.Fatalf("EnsureAddon() error = %v", err)
		}
		if created {
			t.Error("created = true, want false for lost race")
		}
	})
}
