package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

type tickIDKey struct{}
type messageIDKey struct{}

// WithTickID stores the fan-out tick ID in the context.
func WithTickID(ctx context.Context, tickID string) context.Context {
	return context.WithValue(ctx, tickIDKey{}, tickID)
}

// TickIDFromContext extracts the fan-out tick ID from the context.
func TickIDFromContext(ctx context.Context) (string, bool) {
	tickID, ok := ctx.Value(tickIDKey{}).(string)
	return tickID, ok && tickID != ""
}

// WithMessageID stores the stream message ID in the context.
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, messageIDKey{}, messageID)
}

// MessageIDFromContext extracts the stream message ID from the context.
func MessageIDFromContext(ctx context.Context) (string, bool) {
	messageID, ok := ctx.Value(messageIDKey{}).(string)
	return messageID, ok && messageID != ""
}

// contextLogger adds the IDs carried by ctx to log.
func contextLogger(ctx context.Context, log logrus.FieldLogger) logrus.FieldLogger {
	fields := logrus.Fields{}
	if id, ok := TickIDFromContext(ctx); ok {
		fields["tick_id"] = id
	}
	if id, ok := MessageIDFromContext(ctx); ok {
		fields["message_id"] = id
	}
	if len(fields) == 0 {
		return log
	}
	return log.WithFields(fields)
}
