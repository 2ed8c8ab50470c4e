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

// Root CA thumbprint for EKS OIDC endpoints. IAM no longer validates it for
// providers fronted by trusted CAs, but the API still requires a value.
const oidcRootCAThumbprint = "9e99a48a9960b14926bb7f3b02e22da2b0ab7280"

// EnsureOIDCProvider registers the cluster's OIDC issuer as an IAM identity
// provider. Returns the provider ARN and whether it was created on this call;
// an existing provider for the same issuer is reused untouched.
func EnsureOIDCProvider(ctx context.Context, client IAMAPI, issuerURL string) (string, bool, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.EnsureOIDCProvider")
	defer span.End()

	issuerHost := strings.TrimPrefix(issuerURL, "https://")
	span.SetAttributes(attribute.String("oidc_issuer", issuerHost))

	arn, err := findOIDCProvider(ctx, client, issuerHost)
	if err != nil {
		span.RecordError(err)
		return "", false, err
	}
	if arn != "" {
		span.SetAttributes(attribute.Bool("provider_existed", true))
		return arn, false, nil
	}

	status.Send(ctx, status.NewUpdate(status.LevelProgress, "Registering cluster OIDC identity provider").
		WithResource("oidc-provider").
		WithAction("creating").
		WithMetadata("issuer", issuerHost))

	out, err := client.CreateOpenIDConnectProvider(ctx, &iam.CreateOpenIDConnectProviderInput{
		Url:            aws.String("https://" + issuerHost),
		ClientIDList:   []string{"sts.amazonaws.com"},
		ThumbprintList: []string{oidcRootCAThumbprint},
	})
	if err != nil {
		span.RecordError(err)
		return "", false, fmt.Errorf("failed to create OIDC provider for %s: %w", issuerHost, err)
	}

	arn = aws.ToString(out.OpenIDConnectProviderArn)
	span.SetAttributes(attribute.String("provider_arn", arn))
	return arn, true, nil
}

// findOIDCProvider scans the account's providers for one whose URL matches
// the issuer host. List returns only ARNs, so each candidate is fetched.
func findOIDCProvider(ctx context.Context, client IAMAPI, issuerHost string) (string, error) {
	list, err := client.ListOpenIDConnectProviders(ctx, &iam.ListOpenIDConnectProvidersInput{})
	if err != nil {
		return "", fmt.Errorf("failed to list OIDC providers: %w", err)
	}

	for _, provider := range list.OpenIDConnectProviderList {
		out, err := client.GetOpenIDConnectProvider(ctx, &iam.GetOpenIDConnectProviderInput{
			OpenIDConnectProviderArn: provider.Arn,
		})
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return "", fmt.Errorf("failed to get OIDC provider %s: %w", aws.ToString(provider.Arn), err)
		}

		if strings.TrimPrefix(aws.ToString(out.Url), "https://") == issuerHost {
			return aws.ToString(provider.Arn), nil
		}
	}
	return "", nil
}

// OIDCProviderARN looks up the provider registered for the issuer, or ""
// when none exists. This is the read side of EnsureOIDCProvider, used by the
// readiness poll.
func OIDCProviderARN(ctx context.Context, client IAMAPI, issuerURL string) (string, error) {
	return findOIDCProvider(ctx, client, strings.TrimPrefix(issuerURL, "https://"))
}

// DeleteOIDCProvider removes the identity provider registered for the
// issuer. A provider that is already gone is not an error.
func DeleteOIDCProvider(ctx context.Context, client IAMAPI, issuerURL string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.DeleteOIDCProvider")
	defer span.End()

	issuerHost := strings.TrimPrefix(issuerURL, "https://")

	arn, err := findOIDCProvider(ctx, client, issuerHost)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if arn == "" {
		return nil
	}

	_, err = client.DeleteOpenIDConnectProvider(ctx, &iam.DeleteOpenIDConnectProviderInput{
		OpenIDConnectProviderArn: aws.String(arn),
	})
	if err := BestEffort(ctx, "oidc-provider", err); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete OIDC provider %s: %w", arn, err)
	}
	return nil
}
