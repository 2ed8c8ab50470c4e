// Package aws wraps the AWS SDK calls the orchestrator needs: resource
// discovery, orphan cleanup, IAM federation, the EBS CSI addon, SSM
// parameters and the terraform state bucket.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Clients bundles the AWS service clients used across a run.
type Clients struct {
	EC2 EC2API
	EKS EKSAPI
	IAM IAMAPI
	ELB ELBAPI
	S3  S3API
	SSM SSMAPI
	STS STSAPI

	Config aws.Config
	Region string
}

// NewClients loads AWS configuration via the default credential chain
// (environment variables, shared config files, instance/task roles) and
// builds all service clients for the region.
func NewClients(ctx context.Context, region string) (*Clients, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.NewClients")
	defer span.End()

	span.SetAttributes(attribute.String("aws.region", region))

	if region == "" {
		err := fmt.Errorf("AWS region is required")
		span.RecordError(err)
		return nil, err
	}

	cfg, err := loadAWSConfig(ctx, region)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Clients{
		EC2:    ec2.NewFromConfig(cfg),
		EKS:    eks.NewFromConfig(cfg),
		IAM:    iam.NewFromConfig(cfg),
		ELB:    elb.NewFromConfig(cfg),
		S3:     s3.NewFromConfig(cfg),
		SSM:    ssm.NewFromConfig(cfg),
		STS:    sts.NewFromConfig(cfg),
		Config: cfg,
		Region: region,
	}, nil
}

// loadAWSConfig loads the default credential chain and verifies that
// credentials are actually resolvable before any resource call is made.
func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.loadAWSConfig")
	defer span.End()

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		span.RecordError(err)
		return aws.Config{}, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		span.RecordError(err)
		return aws.Config{}, fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}

	if creds.AccessKeyID == "" {
		err := fmt.Errorf("AWS credentials not found. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY or configure ~/.aws/credentials")
		span.RecordError(err)
		return aws.Config{}, err
	}

	span.SetAttributes(attribute.Bool("aws.credentials_valid", true))

	return cfg, nil
}

// AccountID resolves the AWS account ID of the active credentials.
func AccountID(ctx context.Context, client STSAPI) (string, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.AccountID")
	defer span.End()

	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}

	account := aws.ToString(out.Account)
	span.SetAttributes(attribute.String("aws.account_id", account))
	return account, nil
}
