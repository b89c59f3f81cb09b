// Package extraction chains the registry fetcher and the LLM requester.
//
// Runner.Run fetches trials for a query, renders one prompt per trial from a
// text/template and sends it to the requester, one trial at a time. Per-trial
// failures are recorded on the Outcome and the run continues; configuration
// failures and context cancellation stop the run.
//
// Prompt templates see PromptData: .NCTID, .Title, .Status, .Conditions and
// .Record (the full record as indented JSON). DefaultPrompt is used when the
// caller supplies no template.
package extraction
