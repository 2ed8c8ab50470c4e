package tofu

import "context"

// signalSafeContext returns a SIGINT safe context for tofu operations. On
// Linux terraform-exec sets Setpgid, isolating tofu from the terminal's
// foreground group; it already receives exactly one SIGINT on Ctrl+C, so the
// context passes through unchanged.
func signalSafeContext(ctx context.Context) context.Context {
	return ctx
}
