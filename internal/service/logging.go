package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey is the context key for the verbose logging flag
const VerboseContextKey ContextKey = "verbose"

const excerptRunes = 40

// WithVerbose marks ctx so comment and trigger bodies are logged in full
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, VerboseContextKey, verbose)
}

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// Excerpt shortens user text for log lines. Whitespace is collapsed so a
// multi-line comment stays on one line.
func Excerpt(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) <= excerptRunes {
		return collapsed
	}
	return string(runes[:excerptRunes]) + "..."
}

// logBody attaches the body of a user item, in full only when verbose
func logBody(ctx context.Context, entry *logrus.Entry, body string) *logrus.Entry {
	if IsVerboseLogging(ctx) {
		return entry.WithField("body", body)
	}
	return entry.WithField(LogFieldExcerpt, Excerpt(body))
}
