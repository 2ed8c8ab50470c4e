package aws

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

// notFoundCodes are provider error codes meaning the resource is already
// gone. During teardown these are expected outcomes, not failures.
var notFoundCodes = map[string]struct{}{
	"InvalidGroup.NotFound":              {},
	"InvalidVpcID.NotFound":              {},
	"InvalidInternetGatewayID.NotFound":  {},
	"InvalidNetworkInterfaceID.NotFound": {},
	"InvalidVolume.NotFound":             {},
	"InvalidAllocationID.NotFound":       {},
	"NatGatewayNotFound":                 {},
	"LoadBalancerNotFound":               {},
	"NoSuchEntity":                       {},
	"NoSuchBucket":                       {},
	"NotFound":                           {},
	"ParameterNotFound":                  {},
	"ResourceNotFoundException":          {},
}

// inUseCodes mean another resource still references this one. They resolve
// themselves as teardown progresses, so best-effort passes skip them.
var inUseCodes = map[string]struct{}{
	"DependencyViolation":    {},
	"ResourceInUseException": {},
}

// accessDeniedCodes indicate a permissions problem. These are never
// swallowed: retrying or continuing cannot fix missing permissions.
var accessDeniedCodes = map[string]struct{}{
	"AccessDenied":          {},
	"AccessDeniedException": {},
	"UnauthorizedOperation": {},
	"UnauthorizedAccess":    {},
}

// ErrorCode extracts the provider error code from a smithy APIError chain,
// or "" for non-API errors.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsNotFound reports whether err means the resource does not exist.
func IsNotFound(err error) bool {
	_, ok := notFoundCodes[ErrorCode(err)]
	return ok
}

// IsInUse reports whether err means the resource is still referenced.
func IsInUse(err error) bool {
	_, ok := inUseCodes[ErrorCode(err)]
	return ok
}

// IsAccessDenied reports whether err is a permissions failure.
func IsAccessDenied(err error) bool {
	_, ok := accessDeniedCodes[ErrorCode(err)]
	return ok
}

// BestEffort classifies an error from a teardown operation. Not-found and
// still-in-use errors are logged as warnings and absorbed; everything else,
// permission failures in particular, is returned unchanged.
func BestEffort(ctx context.Context, resource string, err error) error {
	if err == nil {
		return nil
	}

	if IsAccessDenied(err) {
		return err
	}

	if IsNotFound(err) {
		status.Send(ctx, status.NewUpdate(status.LevelWarning, "Resource already gone, skipping").
			WithResource(resource).
			WithAction("skipping").
			WithMetadata("error", err.Error()))
		return nil
	}

	if IsInUse(err) {
		status.Send(ctx, status.NewUpdate(status.LevelWarning, "Resource still in use, skipping for now").
			WithResource(resource).
			WithAction("skipping").
			WithMetadata("error", err.Error()))
		return nil
	}

	return err
}
