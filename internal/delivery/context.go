package delivery

import (
	"context"
	"log/slog"
)

type messageIDKey struct{}

// ContextWithMessageID stores the ID of the message being delivered.
func ContextWithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey{}, id)
}

// MessageIDFromContext returns the stored message ID, if any.
func MessageIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(messageIDKey{}).(string)
	return id, ok && id != ""
}

// MessageIDAttr adds a message_id attribute to log records emitted while a
// message is being delivered. It plugs into logger.New as a context extractor.
func MessageIDAttr(ctx context.Context) (slog.Attr, bool) {
	id, ok := MessageIDFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return slog.String("message_id", id), true
}
