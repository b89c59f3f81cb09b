// Package llm provides an OpenRouter chat client that recovers JSON from
// model replies.
//
// # Request Flow
//
// Client.Request sends the prompt as a single user message with the configured
// temperature and token limit. The first choice's content is handed to
// jsonextract; a reply without parseable JSON yields an Extraction with
// Found=false rather than an error.
//
// # Configuration
//
// Requires api_key. model, base_url, referer, title and timeout are optional.
// A missing key fails with services.ErrConfiguration before any network call.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Request: send a Request, receive an Extraction.
// Client.Ask: shorthand using the configured model and default retries.
//
// # Retry Behaviour
//
// Transport errors, non-2xx responses and replies without choices are retried
// through retry.Do with exponential backoff (base 1s, doubling, capped at
// 30s, three retries by default). Context cancellation aborts retries
// immediately. After the final attempt the returned error wraps the last
// cause, so errors.Is(err, services.ErrMalformedResponse) and friends still
// classify it.
package llm
