//go:build !linux

package tofu

import "context"

// signalSafeContext returns a SIGINT safe context for tofu operations. On
// non-Linux platforms terraform-exec does not set Setpgid, so tofu shares the
// terminal's process group and sees Ctrl+C directly. Combined with the
// context cancellation that makes two SIGINTs and an immediate abort.
// Detaching from the parent context leaves tofu with exactly one.
func signalSafeContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
