// Package retry runs a fallible action with bounded attempts and doubling
// backoff.
//
// Do is generic over the action's result so each integration keeps its own
// types. A Policy with MaxRetries r makes at most r+1 attempts, sleeping
// InitialBackoff, 2*InitialBackoff, 4*InitialBackoff, ... between them (capped
// by MaxBackoff when set). When every attempt fails the returned error wraps
// the last cause so errors.Is and errors.As still reach it.
//
// Context cancellation aborts immediately, including mid-sleep. Wrap an error
// with Permanent to stop retrying early.
package retry
