// Package main hosts the trialscope CLI entrypoint and command graph.
//
// The Cobra-based command tree searches the ClinicalTrials.gov registry, sends
// prompts to the OpenRouter gateway, chains the two for per-trial extraction,
// and scaffolds configuration. It centralizes configuration resolution and
// structured logging setup so subcommands can focus on output.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
