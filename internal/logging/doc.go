// Package logging assembles structured slog loggers and formatting helpers used
// across trialscope.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so integrations tag log lines with the run
// ID and the trial being processed. Logs go to stderr so command output on
// stdout stays machine-readable; a log directory adds a JSON file sink.
package logging
