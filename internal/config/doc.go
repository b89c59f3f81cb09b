// Package config loads, normalizes, and validates trialscope configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours the
// OPENROUTER_API_KEY environment fallback. The Config value is built once at
// startup and handed to each component explicitly.
//
// The LLM API key is optional at load time: the registry pipeline never needs
// it, and the LLM client rejects requests when it is missing.
package config
