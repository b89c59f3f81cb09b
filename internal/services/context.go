package services

import "context"

type contextKey string

const (
	runIDKey   contextKey = "run_id"
	trialIDKey contextKey = "trial_id"
)

// WithRunID annotates context with the CLI invocation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithTrialID annotates context with the NCT identifier being processed.
func WithTrialID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, trialIDKey, id)
}

// TrialIDFromContext returns the NCT identifier if present.
func TrialIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(trialIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
