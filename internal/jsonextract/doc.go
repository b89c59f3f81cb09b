// Package jsonextract recovers a JSON value from free-form model output.
//
// Models often wrap the requested object in prose or code fences. Extract
// first parses the whole text; failing that it parses the span from the first
// '{' to the last '}'. The span is greedy, not balanced, so replies holding
// several disjoint objects may not parse. That is treated as absence, never
// as an error.
package jsonextract
