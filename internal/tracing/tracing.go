package tracing

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const cycleIDKey contextKey = "cycle_id"

// NewCycleID returns a fresh correlation id for one reconciliation cycle or trigger
func NewCycleID() string {
	return uuid.NewString()
}

// WithCycleID stores a correlation id in ctx
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDKey, cycleID)
}

// GetCycleID extracts the correlation id from ctx
func GetCycleID(ctx context.Context) string {
	if id, ok := ctx.Value(cycleIDKey).(string); ok {
		return id
	}
	return ""
}
