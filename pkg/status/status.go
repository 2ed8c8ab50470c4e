// Package status carries progress reporting through the context so that
// long-running orchestration code can emit structured updates without
// depending on a logger or a UI.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultChannelSize is the buffer size for the status channel.
	DefaultChannelSize = 100

	// DefaultFlushTimeout bounds how long shutdown waits for the handler
	// to drain remaining messages.
	DefaultFlushTimeout = 5 * time.Second
)

// Level is the severity of a status update.
type Level string

const (
	LevelInfo     Level = "info"
	LevelProgress Level = "progress"
	LevelSuccess  Level = "success"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
)

// Update is a single status message flowing through the channel.
type Update struct {
	Level Level

	// Message is the human-readable status text.
	Message string

	// Resource names the kind of resource being operated on
	// (e.g. "eks-addon", "nat-gateway", "external-secret").
	Resource string

	// Action is the verb in progress (e.g. "creating", "deleting", "waiting").
	Action string

	// Metadata holds optional structured details.
	Metadata map[string]any

	Timestamp time.Time
}

// NewUpdate creates an Update stamped with the current time.
func NewUpdate(level Level, message string) Update {
	return Update{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithResource sets the resource kind on the update.
func (u Update) WithResource(resource string) Update {
	u.Resource = resource
	return u
}

// WithAction sets the action verb on the update.
func (u Update) WithAction(action string) Update {
	u.Action = action
	return u
}

// WithMetadata attaches a structured detail to the update.
func (u Update) WithMetadata(key string, value any) Update {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = value
	return u
}

// Send delivers an update through the channel stored in the context, if any.
// The send is non-blocking: when the channel is full the message is dropped
// rather than stalling orchestration.
func Send(ctx context.Context, update Update) {
	ch := getChannel(ctx)
	if ch == nil {
		return
	}

	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	select {
	case ch <- update:
	default:
		// Channel full, drop the message.
	}
}

// Sendf sends a formatted update at the given level.
func Sendf(ctx context.Context, level Level, format string, args ...any) {
	Send(ctx, Update{
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	})
}

// Info sends an informational update.
func Info(ctx context.Context, message string) {
	Send(ctx, NewUpdate(LevelInfo, message))
}

// Infof sends a formatted informational update.
func Infof(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelInfo, format, args...)
}

// Progress sends a progress update.
func Progress(ctx context.Context, message string) {
	Send(ctx, NewUpdate(LevelProgress, message))
}

// Progressf sends a formatted progress update.
func Progressf(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelProgress, format, args...)
}

// Success sends a success update.
func Success(ctx context.Context, message string) {
	Send(ctx, NewUpdate(LevelSuccess, message))
}

// Successf sends a formatted success update.
func Successf(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelSuccess, format, args...)
}

// Warning sends a warning update.
func Warning(ctx context.Context, message string) {
	Send(ctx, NewUpdate(LevelWarning, message))
}

// Warningf sends a formatted warning update.
func Warningf(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelWarning, format, args...)
}

// Error sends an error update.
func Error(ctx context.Context, message string) {
	Send(ctx, NewUpdate(LevelError, message))
}

// Errorf sends a formatted error update.
func Errorf(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelError, format, args...)
}

// Handler processes each update received on the channel.
type Handler func(Update)

// CleanupFunc closes the status channel and waits for the handler to finish.
// Defer it immediately after StartHandler.
type CleanupFunc func()

// StartHandler creates a buffered status channel, attaches it to the context,
// and starts a goroutine that feeds every update to handler. The returned
// cleanup closes the channel and waits (bounded by DefaultFlushTimeout) for
// the handler to drain.
func StartHandler(ctx context.Context, handler Handler) (context.Context, CleanupFunc) {
	return StartHandlerWithOptions(ctx, handler, DefaultChannelSize, DefaultFlushTimeout)
}

// StartHandlerWithOptions is StartHandler with a custom channel size and
// flush timeout.
func StartHandlerWithOptions(ctx context.Context, handler Handler, channelSize int, flushTimeout time.Duration) (context.Context, CleanupFunc) {
	ch := make(chan Update, channelSize)
	ctx = WithChannel(ctx, ch)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		for update := range ch {
			handler(update)
		}
	}()

	cleanup := func() {
		close(ch)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(flushTimeout):
			// Don't block shutdown on a stuck handler.
		}
	}

	return ctx, cleanup
}
