package config

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ParseConfig reads and parses a thingslab-config.yaml file. Parsing is
// lenient (unknown keys are kept in AdditionalFields); validation of the
// required keys is strict and happens here, before any cloud call.
func ParseConfig(ctx context.Context, filePath string) (*Config, error) {
	tracer := otel.Tracer("thingslab-orchestrator")
	_, span := tracer.Start(ctx, "config.ParseConfig")
	defer span.End()

	span.SetAttributes(attribute.String("config.file", filePath))

	data, err := os.ReadFile(filePath)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("config.project_name", cfg.ProjectName),
		attribute.String("config.cluster_name", cfg.ClusterName),
		attribute.Int("config.environments", len(cfg.Environments)),
	)

	return &cfg, nil
}
