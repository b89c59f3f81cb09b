// Package services defines shared utilities consumed by the registry and LLM
// integrations.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper so callers can tell a
//     transport failure from a missing credential or an unusable gateway reply.
//   - Context helpers that stamp run IDs and trial IDs for logging.
//
// Use these helpers when wiring new integrations so failures classify the same
// way across both pipelines.
package services
