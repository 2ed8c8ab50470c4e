package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

// SecretPath builds the parameter store path for a component credential.
func SecretPath(projectName, component, key string) string {
	return fmt.Sprintf("/%s/%s/%s", projectName, component, key)
}

// PutSecret writes a credential as an encrypted parameter, overwriting any
// previous value so re-runs converge on the config file's contents.
func PutSecret(ctx context.Context, client SSMAPI, path, value string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.PutSecret")
	defer span.End()

	span.SetAttributes(attribute.String("parameter_path", path))

	_, err := client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(path),
		Value:     aws.String(value),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to put parameter %s: %w", path, err)
	}

	status.Send(ctx, status.NewUpdate(status.LevelProgress, "Stored credential in parameter store").
		WithResource("ssm-parameter").
		WithAction("writing").
		WithMetadata("path", path))
	return nil
}

// GetSecret reads an encrypted parameter's decrypted value.
func GetSecret(ctx context.Context, client SSMAPI, path string) (string, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(path),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %s: %w", path, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", path)
	}
	return *out.Parameter.Value, nil
}

// DeleteSecret removes a parameter. Already-deleted parameters are fine.
func DeleteSecret(ctx context.Context, client SSMAPI, path string) error {
	_, err := client.DeleteParameter(ctx, &ssm.DeleteParameterInput{
		Name: aws.String(path),
	})
	if err := BestEffort(ctx, "ssm-parameter", err); err != nil {
		return fmt.Errorf("failed to delete parameter %s: %w", path, err)
	}
	return nil
}

// SecretComponents maps parameter store components to the credential keys
// the workloads expect.
var SecretComponents = []struct {
	Component string
	Key       string
}{
	{"influxdb", "admin-password"},
	{"grafana", "admin-password"},
	{"mqtt", "password"},
}

// DeleteClusterSecrets removes the project's credentials during teardown,
// best-effort.
func DeleteClusterSecrets(ctx context.Context, client SSMAPI, projectName string) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "aws.DeleteClusterSecrets")
	defer span.End()

	span.SetAttributes(attribute.String("project_name", projectName))

	for _, sc := range SecretComponents {
		if err := DeleteSecret(ctx, client, SecretPath(projectName, sc.Component, sc.Key)); err != nil {
			span.RecordError(err)
			return err
		}
	}
	return nil
}
