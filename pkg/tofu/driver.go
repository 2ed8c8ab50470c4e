package tofu

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/terraform-exec/tfexec"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// BackendConfig identifies the S3 backend holding terraform state.
type BackendConfig struct {
	Bucket string
	Key    string
	Region string
}

// Driver wraps a configured terraform executor for the embedded cluster
// templates. All mutating calls run on a signal-safe context so a Ctrl+C is
// delivered to tofu exactly once.
type Driver struct {
	tf *tfexec.Terraform
}

// NewDriver prepares the OpenTofu working directory for the given variables
// and returns a driver ready for Init.
func NewDriver(ctx context.Context, vars TFVars) (*Driver, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "tofu.NewDriver")
	defer span.End()

	span.SetAttributes(
		attribute.String("cluster_name", vars.ClusterName),
		attribute.String("region", vars.Region),
	)

	tf, err := Setup(ctx, tofuTemplates, vars)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &Driver{tf: tf}, nil
}

// Init runs `tofu init` against the S3 backend. Re-running against an
// existing backend is a no-op, which keeps provisioning resumable.
func (d *Driver) Init(ctx context.Context, backend BackendConfig) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "tofu.Init")
	defer span.End()

	span.SetAttributes(
		attribute.String("backend.bucket", backend.Bucket),
		attribute.String("backend.key", backend.Key),
	)

	err := d.tf.Init(ctx,
		tfexec.BackendConfig(fmt.Sprintf("bucket=%s", backend.Bucket)),
		tfexec.BackendConfig(fmt.Sprintf("key=%s", backend.Key)),
		tfexec.BackendConfig(fmt.Sprintf("region=%s", backend.Region)),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("tofu init failed: %w", err)
	}

	return nil
}

// Apply converges the cluster templates. Apply is idempotent: a second run
// over unchanged inputs plans to zero changes.
func (d *Driver) Apply(ctx context.Context) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "tofu.Apply")
	defer span.End()

	if err := d.tf.Apply(signalSafeContext(ctx)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("tofu apply failed: %w", err)
	}

	return nil
}

// Destroy tears down everything in the recorded state. With refresh set the
// state is re-read from the cloud first, which picks up resources already
// deleted out-of-band.
func (d *Driver) Destroy(ctx context.Context, refresh bool) error {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "tofu.Destroy")
	defer span.End()

	span.SetAttributes(attribute.Bool("refresh", refresh))

	if err := d.tf.Destroy(signalSafeContext(ctx), tfexec.Refresh(refresh)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("tofu destroy failed: %w", err)
	}

	return nil
}

// Output returns a single string-typed output, or "" when the output does
// not exist yet (fresh state).
func (d *Driver) Output(ctx context.Context, name string) (string, error) {
	outputs, err := d.Outputs(ctx)
	if err != nil {
		return "", err
	}
	return outputs[name], nil
}

// Outputs reads all string-typed outputs from the state. Non-string outputs
// are skipped.
func (d *Driver) Outputs(ctx context.Context) (map[string]string, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	ctx, span := tracer.Start(ctx, "tofu.Outputs")
	defer span.End()

	raw, err := d.tf.Output(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("tofu output failed: %w", err)
	}

	outputs := make(map[string]string, len(raw))
	for name, meta := range raw {
		var value string
		if err := json.Unmarshal(meta.Value, &value); err != nil {
			continue
		}
		outputs[name] = value
	}

	span.SetAttributes(attribute.Int("outputs.count", len(outputs)))
	return outputs, nil
}
