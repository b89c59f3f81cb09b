// Package ctgov provides the ClinicalTrials.gov v2 search client used by the
// trial fetcher.
//
// SearchPage issues a single paginated search. Fetch walks pages of up to
// PageSize records until the registry runs dry, the caller's cap is reached, or
// a page arrives without a "studies" key, pausing between pages to stay under
// the registry's implicit rate limit. Transport and HTTP-status failures abort
// the whole fetch with a *FetchError; a missing "studies" key is a normal end
// of data.
//
// Records are kept as opaque JSON maps in server order. Accessors read the
// handful of well-known paths the CLI renders.
package ctgov
