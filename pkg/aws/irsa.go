package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

// Managed policy for the EBS CSI controller. AWS ships this one, so no
// customer policy is created for it.
const EBSCSIDriverPolicyARN = "arn:aws:iam::aws:policy/service-role/AmazonEBSCSIDriverPolicy"

// irsaTrustPolicy federates a Kubernetes service account with an IAM role
// through the cluster's OIDC provider. The sub condition pins the role to
// exactly one service account.
const irsaTrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {
        "Federated": "arn:aws:iam::%s:oidc-provider/%s"
      },
      "Action": "sts:AssumeRoleWithWebIdentity",
      "Condition": {
        "StringEquals": {
          "%s:sub": "system:serviceaccount:%s:%s",
          "%s:aud": "sts.amazonaws.com"
        }
      }
    }
  ]
}`

// ssmReadPolicy grants read access to the project's parameter subtree, which
// is all the external-secrets operator needs.
const ssmReadPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Action": [
        "ssm:GetParameter",
        "ssm:GetParameters",
        "ssm:GetParametersByPath"
      ],
      "Resource": "arn:aws:ssm:*:%s:parameter/%s/*"
    }
  ]
}`

// IRSAConfig describes one service-account role binding.
type IRSAConfig struct {
	RoleName       string
	Namespace      string
	ServiceAccount string
	AccountID      string
	// OIDCIssuer is the cluster's issuer URL, with or without the
	// https:// prefix.
	OIDCIssuer string
	// PolicyARN is attached to the role. Either an AWS managed policy or
	// one created by EnsurePolicy.
	PolicyARN string
}

func (c IRSAConfig) issuerHost() string {
	return strings.TrimPrefix(c.OIDCIssuer, "https://")
}

// RoleARN returns the ARN the role will have once created.
func (c IRSAConfig) RoleARN() string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", c.AccountID, c.RoleName)
}

// EnsureIRSARole recreates the role from scratch on every run. Deleting and
// recreating is simpler than diffing trust policies, and the role has no
// state worth preserving. Returns the role ARN.
func EnsureIRSARole(ctx context.Context, client IAMAPI, cfg IRSAConfig) (string, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.EnsureIRSARole")
	defer span.End()

	span.SetAttributes(
		attribute.String("role_name", cfg.RoleName),
		attribute.String("service_account", cfg.Namespace+"/"+cfg.ServiceAccount),
	)

	status.Send(ctx, status.NewUpdate(status.LevelProgress, "Binding IAM role to service account").
		WithResource("iam-role").
		WithAction("creating").
		WithMetadata("role", cfg.RoleName).
		WithMetadata("service_account", cfg.Namespace+"/"+cfg.ServiceAccount))

	if err := deleteRoleIfExists(ctx, client, cfg.RoleName); err != nil {
		span.RecordError(err)
		return "", err
	}

	issuer := cfg.issuerHost()
	trust := fmt.Sprintf(irsaTrustPolicy,
		cfg.AccountID, issuer,
		issuer, cfg.Namespace, cfg.ServiceAccount,
		issuer)

	_, err := client.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(cfg.RoleName),
		AssumeRolePolicyDocument: aws.String(trust),
		Description:              aws.String("Service account role managed by tlo"),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to create role %s: %w", cfg.RoleName, err)
	}

	_, err = client.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(cfg.RoleName),
		PolicyArn: aws.String(cfg.PolicyARN),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to attach policy to role %s: %w", cfg.RoleName, err)
	}

	// Re-query so a half-applied role surfaces here, not at pod startup.
	out, err := client.GetRole(ctx, &iam.GetRoleInput{
		RoleName: aws.String(cfg.RoleName),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to verify role %s: %w", cfg.RoleName, err)
	}

	arn := aws.ToString(out.Role.Arn)
	span.SetAttributes(attribute.String("role_arn", arn))
	return arn, nil
}

// deleteRoleIfExists detaches all managed policies and deletes the role.
// A missing role is not an error.
func deleteRoleIfExists(ctx context.Context, client IAMAPI, roleName string) error {
	attached, err := client.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to list policies on role %s: %w", roleName, err)
	}

	for _, policy := range attached.AttachedPolicies {
		_, err := client.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(roleName),
			PolicyArn: policy.PolicyArn,
		})
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to detach policy %s from role %s: %w",
				aws.ToString(policy.PolicyArn), roleName, err)
		}
	}

	_, err = client.DeleteRole(ctx, &iam.DeleteRoleInput{
		RoleName: aws.String(roleName),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete role %s: %w", roleName, err)
	}
	return nil
}

// DeleteSSMReadPolicy removes the customer policy created by
// EnsureSSMReadPolicy. Roles referencing it must be deleted first.
func DeleteSSMReadPolicy(ctx context.Context, client IAMAPI, accountID, policyName string) error {
	arn := fmt.Sprintf("arn:aws:iam::%s:policy/%s", accountID, policyName)
	_, err := client.DeletePolicy(ctx, &iam.DeletePolicyInput{
		PolicyArn: aws.String(arn),
	})
	if err := BestEffort(ctx, "iam-policy", err); err != nil {
		return fmt.Errorf("failed to delete policy %s: %w", arn, err)
	}
	return nil
}

// RoleHasPolicy reports whether the role exists with the policy attached.
// Used as the idempotency guard before the recreate recipe runs.
func RoleHasPolicy(ctx context.Context, client IAMAPI, roleName, policyARN string) (bool, error) {
	attached, err := client.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to list policies on role %s: %w", roleName, err)
	}

	for _, policy := range attached.AttachedPolicies {
		if aws.ToString(policy.PolicyArn) == policyARN {
			return true, nil
		}
	}
	return false, nil
}

// DeleteIRSARole detaches all policies and deletes the role. A missing role
// is not an error.
func DeleteIRSARole(ctx context.Context, client IAMAPI, roleName string) error {
	return deleteRoleIfExists(ctx, client, roleName)
}

// EnsureSSMReadPolicy creates the customer policy granting read access to
// the project's SSM subtree. An already existing policy is reused; the
// document never changes for a given project name. Returns the policy ARN.
func EnsureSSMReadPolicy(ctx context.Context, client IAMAPI, accountID, projectName, policyName string) (string, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.EnsureSSMReadPolicy")
	defer span.End()

	span.SetAttributes(attribute.String("policy_name", policyName))

	document := fmt.Sprintf(ssmReadPolicy, accountID, projectName)
	arn := fmt.Sprintf("arn:aws:iam::%s:policy/%s", accountID, policyName)

	out, err := client.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(document),
		Description:    aws.String("Read access to project parameters, managed by tlo"),
	})
	if err != nil {
		if ErrorCode(err) == "EntityAlreadyExists" {
			span.SetAttributes(attribute.Bool("policy_existed", true))
			return arn, nil
		}
		span.RecordError(err)
		return "", fmt.Errorf("failed to create policy %s: %w", policyName, err)
	}

	return aws.ToString(out.Policy.Arn), nil
}
