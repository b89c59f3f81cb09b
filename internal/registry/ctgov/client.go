package ctgov

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trialscope/internal/jsonextract"
	"trialscope/internal/logging"
	"trialscope/internal/retry"
	"trialscope/internal/services"
)

const (
	// DefaultPageSize is the largest page the fetcher requests.
	DefaultPageSize = 100
	// DefaultMaxTrials caps a fetch when the query does not set one.
	DefaultMaxTrials   = 100
	defaultPageDelay   = time.Second
	defaultHTTPTimeout = 30 * time.Second
	component          = "ctgov"
)

// Page is a single search response.
type Page struct {
	Studies []Record
	// HasStudies is false when the payload carried no "studies" key.
	HasStudies bool
	TotalCount int
}

type pagePayload struct {
	Studies    *[]Record `json:"studies"`
	TotalCount *int      `json:"totalCount"`
}

// StatusError reports a non-2xx registry response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry returned http %d: %s", e.StatusCode, jsonextract.Snippet(e.Body))
}

// Client provides access to the registry search endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pageSize   int
	pageDelay  time.Duration
	sleeper    func(context.Context, time.Duration) error
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the HTTP timeout on the default client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithPageSize overrides the page size (defaults to 100).
func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithPageDelay overrides the pause between pages (defaults to 1s).
func WithPageDelay(delay time.Duration) Option {
	return func(c *Client) {
		if delay >= 0 {
			c.pageDelay = delay
		}
	}
}

// WithSleeper overrides how page pauses are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLogger attaches a logger; the component attribute is added automatically.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, component)
	}
}

// New creates a registry client rooted at baseURL (for example
// https://clinicaltrials.gov/api/v2).
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "new client", "base url required", nil)
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		pageSize:   DefaultPageSize,
		pageDelay:  defaultPageDelay,
		sleeper:    retry.Sleep,
		logger:     logging.NewComponentLogger(nil, component),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.sleeper == nil {
		client.sleeper = retry.Sleep
	}
	return client, nil
}

// SearchPage requests one page of studies matching query.
func (c *Client) SearchPage(ctx context.Context, query string, offset, limit int) (*Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, component, "search", "query must not be empty", nil)
	}
	endpoint, err := url.Parse(c.baseURL + "/studies")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "search", "parse registry url", err)
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("format", "json")
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, component, "search", "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, component, "search", fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, services.Wrap(services.ErrTransport, component, "search", fmt.Sprintf("latency=%v", latency), &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		})
	}

	var payload pagePayload
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrMalformedResponse, component, "search", "decode registry response", err)
	}

	page := &Page{}
	if payload.TotalCount != nil {
		page.TotalCount = *payload.TotalCount
	}
	if payload.Studies != nil {
		page.HasStudies = true
		page.Studies = *payload.Studies
	}
	c.logger.Debug("registry page fetched",
		logging.Int("offset", offset),
		logging.Int("limit", limit),
		logging.Int("records", len(page.Studies)),
		logging.Duration("latency", latency),
	)
	return page, nil
}
