package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"trialscope/internal/jsonextract"
	"trialscope/internal/logging"
	"trialscope/internal/retry"
	"trialscope/internal/services"
)

const (
	// DefaultBaseURL is the OpenRouter chat completion endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	// DefaultModel is used when neither the request nor the config names one.
	DefaultModel = "openai/gpt-4o-mini"
	// DefaultMaxRetries counts retries after the first attempt.
	DefaultMaxRetries  = 3
	DefaultTemperature = 0.5
	DefaultMaxTokens   = 1500

	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 30 * time.Second
	component             = "llm"
)

// Config captures the runtime settings required to talk to the gateway.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	MaxTokens      int
}

// Request is a single-prompt extraction request.
type Request struct {
	// Model overrides the configured model when set.
	Model  string
	Prompt string
	// MaxRetries counts retries after the first attempt. Negative values are
	// treated as zero.
	MaxRetries int
}

// NewRequest returns a request with the default retry budget.
func NewRequest(model, prompt string) Request {
	return Request{Model: model, Prompt: prompt, MaxRetries: DefaultMaxRetries}
}

// Extraction is the JSON recovered from a model reply. Found is false when the
// reply carried no parseable object; Content always holds the raw reply text.
type Extraction struct {
	Value   any    `json:"value,omitempty"`
	Found   bool   `json:"found"`
	Content string `json:"content"`
}

// StatusError reports a non-2xx gateway response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, jsonextract.Snippet(e.Body))
}

// Client wraps the OpenRouter chat completion API.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	temperature float64
	logger      *slog.Logger

	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	sleeper        func(context.Context, time.Duration) error
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTemperature overrides the sampling temperature (defaults to 0.5).
func WithTemperature(temperature float64) Option {
	return func(c *Client) {
		if temperature >= 0 {
			c.temperature = temperature
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
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

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
			MaxTokens:      cfg.MaxTokens,
		},
		httpClient:     &http.Client{Timeout: timeout},
		temperature:    DefaultTemperature,
		logger:         logging.NewComponentLogger(nil, component),
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = DefaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = DefaultModel
	}
	if client.cfg.MaxTokens <= 0 {
		client.cfg.MaxTokens = DefaultMaxTokens
	}
	return client
}

// Ask sends prompt with the configured model and default retry budget.
func (c *Client) Ask(ctx context.Context, prompt string) (Extraction, error) {
	return c.Request(ctx, NewRequest("", prompt))
}

// Request sends the prompt as a single user message and recovers JSON from
// the reply. Failed attempts are retried with exponential backoff; the error
// returned after the last attempt wraps the final cause.
func (c *Client) Request(ctx context.Context, req Request) (Extraction, error) {
	if c.cfg.APIKey == "" {
		return Extraction{}, services.Wrap(services.ErrConfiguration, component, "request", "api key required", nil)
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}
	payload := chatCompletionRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	logger := logging.WithContext(ctx, c.logger)
	policy := retry.Policy{
		MaxRetries:     max(req.MaxRetries, 0),
		InitialBackoff: c.retryBaseDelay,
		MaxBackoff:     c.retryMaxDelay,
		Sleep:          c.sleeper,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Warn("llm request failed; retrying",
				logging.String(logging.FieldEventType, "llm_retry"),
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.String("model", model),
				logging.Error(err),
			)
		},
	}

	start := time.Now()
	content, err := retry.Do(ctx, policy, func(ctx context.Context) (string, error) {
		content, err := c.complete(ctx, payload)
		if err != nil && !services.Retryable(err) {
			return "", retry.Permanent(err)
		}
		return content, err
	})
	if err != nil {
		logger.Error("llm request failed",
			logging.String(logging.FieldEventType, "llm_failed"),
			logging.String("model", model),
			logging.Error(err),
		)
		return Extraction{}, err
	}

	value, found := jsonextract.Extract(content)
	logger.Info("llm reply received",
		logging.String("model", model),
		logging.Bool("json_found", found),
		logging.Duration("elapsed", time.Since(start)),
	)
	if !found {
		logger.Debug("llm reply carried no json", logging.String("snippet", jsonextract.Snippet(content)))
	}
	return Extraction{Value: value, Found: found, Content: content}, nil
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers return the streaming schema (delta) even when
		// stream=false.
		Delta        chatCompletionMessage `json:"delta"`
		Text         string                `json:"text"`
		FinishReason string                `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
}

// complete performs one attempt and returns the first choice's content.
func (c *Client) complete(ctx context.Context, payload chatCompletionRequest) (string, error) {
	completion, body, err := c.sendChatRequestOnce(ctx, payload)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", services.Wrap(services.ErrMalformedResponse, component, "request",
			fmt.Sprintf("no choices in response (response_snippet=%s)", jsonextract.Snippet(string(body))), nil)
	}
	choice := completion.Choices[0]
	return firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text), nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func (c *Client) sendChatRequestOnce(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, []byte, error) {
	var completion chatCompletionResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, services.Wrap(services.ErrValidation, component, "request", "encode body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, services.Wrap(services.ErrConfiguration, component, "request", "new request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return completion, nil, services.Wrap(services.ErrTransport, component, "request",
			fmt.Sprintf("http error (timeout=%s)", c.timeoutDuration()), err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, nil, services.Wrap(services.ErrTransport, component, "request", "read body", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return completion, body, services.Wrap(services.ErrTransport, component, "request", "", &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		})
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, body, services.Wrap(services.ErrMalformedResponse, component, "request",
			fmt.Sprintf("decode response (response_snippet=%s)", jsonextract.Snippet(string(body))), err)
	}
	if completion.Error != nil && len(completion.Choices) == 0 {
		return completion, body, services.Wrap(services.ErrTransport, component, "request",
			"api error: "+strings.TrimSpace(completion.Error.Message), nil)
	}
	return completion, body, nil
}

func (c *Client) timeoutDuration() time.Duration {
	if c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}
