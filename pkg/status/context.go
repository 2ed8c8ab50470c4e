package status

import "context"

// contextKey is unexported to avoid collisions with other context values.
type contextKey string

const statusChannelKey contextKey = "status-channel"

// WithChannel returns a context carrying the status channel. The channel
// should be buffered so senders never block.
func WithChannel(ctx context.Context, ch chan<- Update) context.Context {
	return context.WithValue(ctx, statusChannelKey, ch)
}

// getChannel retrieves the status channel from the context, or nil.
func getChannel(ctx context.Context) chan<- Update {
	if ctx == nil {
		return nil
	}

	ch, ok := ctx.Value(statusChannelKey).(chan<- Update)
	if !ok {
		return nil
	}

	return ch
}

// HasChannel reports whether the context carries a status channel.
func HasChannel(ctx context.Context) bool {
	return getChannel(ctx) != nil
}
