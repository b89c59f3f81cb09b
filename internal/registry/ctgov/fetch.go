package ctgov

import (
	"context"
	"fmt"
	"strings"

	"trialscope/internal/logging"
	"trialscope/internal/services"
)

// Query selects trials to fetch.
type Query struct {
	Text string
	// MaxTrials caps the number of records requested. Zero means
	// DefaultMaxTrials.
	MaxTrials int
}

// NewQuery returns a query capped at DefaultMaxTrials.
func NewQuery(text string) Query {
	return Query{Text: text, MaxTrials: DefaultMaxTrials}
}

// FetchError aborts a fetch after a page request failed. No partial results
// accompany it.
type FetchError struct {
	Query  string
	Offset int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch clinical trials (query=%q, offset=%d): %v", e.Query, e.Offset, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetch pages through the registry and returns every record received, in
// arrival order, up to the query's cap.
func (c *Client) Fetch(ctx context.Context, q Query) (ResultSet, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, component, "fetch", "query must not be empty", nil)
	}
	maxTrials := q.MaxTrials
	if maxTrials == 0 {
		maxTrials = DefaultMaxTrials
	}
	if maxTrials < 0 {
		return nil, services.Wrap(services.ErrValidation, component, "fetch", fmt.Sprintf("max trials must be positive, got %d", maxTrials), nil)
	}

	logger := logging.WithContext(ctx, c.logger)
	results := ResultSet{}
	offset := 0
	pages := 0
	total := 0
	for offset < maxTrials {
		limit := min(c.pageSize, maxTrials-offset)
		page, err := c.SearchPage(ctx, text, offset, limit)
		if err != nil {
			return nil, &FetchError{Query: text, Offset: offset, Err: err}
		}
		pages++
		if pages == 1 {
			total = page.TotalCount
		}
		if !page.HasStudies {
			logger.Debug("registry page without studies; treating as end of data", logging.Int("offset", offset))
			break
		}
		results = append(results, page.Studies...)
		if len(page.Studies) < c.pageSize {
			break
		}
		offset += c.pageSize
		if offset >= maxTrials {
			break
		}
		if err := c.sleeper(ctx, c.pageDelay); err != nil {
			return nil, &FetchError{Query: text, Offset: offset, Err: err}
		}
	}

	logger.Info("clinical trials fetched",
		logging.String("query", text),
		logging.Int("records", len(results)),
		logging.Int("pages", pages),
		logging.Int("max_trials", maxTrials),
		logging.Int("registry_total", total),
	)
	return results, nil
}
