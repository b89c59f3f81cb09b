package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trialscope/internal/retry"
	"trialscope/internal/services"
)

func completionPayload(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message": map[string]any{
					"content": content,
				},
			},
		},
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestClientRequestMissingKeyMakesNoCalls(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "   ", BaseURL: server.URL})
	_, err := client.Request(context.Background(), NewRequest("", "hello"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no HTTP calls, got %d", calls)
	}
}

func TestClientRequestBodyAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected authorization %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Fatalf("unexpected content type %q", got)
		}
		if got := r.Header.Get("HTTP-Referer"); got != "https://example.org" {
			t.Fatalf("unexpected referer %q", got)
		}
		if got := r.Header.Get("X-Title"); got != "trialscope" {
			t.Fatalf("unexpected title %q", got)
		}
		var body struct {
			Model       string        `json:"model"`
			Messages    []chatMessage `json:"messages"`
			Temperature float64       `json:"temperature"`
			MaxTokens   int           `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Model != "demo-model" {
			t.Fatalf("expected configured model, got %q", body.Model)
		}
		if len(body.Messages) != 1 || body.Messages[0].Role != "user" || body.Messages[0].Content != "Summarize trial NCT01" {
			t.Fatalf("unexpected messages %+v", body.Messages)
		}
		if body.Temperature != 0.5 || body.MaxTokens != 1500 {
			t.Fatalf("unexpected sampling settings: temperature=%v max_tokens=%d", body.Temperature, body.MaxTokens)
		}
		_ = json.NewEncoder(w).Encode(completionPayload(`{"phase": "3"}`))
	}))
	defer server.Close()

	client := NewClient(Config{
		APIKey:  "secret",
		BaseURL: server.URL,
		Model:   "demo-model",
		Referer: "https://example.org",
		Title:   "trialscope",
	})
	extraction, err := client.Ask(context.Background(), "Summarize trial NCT01")
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if !extraction.Found {
		t.Fatal("expected JSON to be found")
	}
	value, ok := extraction.Value.(map[string]any)
	if !ok || value["phase"] != "3" {
		t.Fatalf("unexpected value %#v", extraction.Value)
	}
}

func TestClientRequestModelOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "other/model" {
			t.Fatalf("expected request model override, got %q", body.Model)
		}
		if body.Temperature != 0 {
			t.Fatalf("expected temperature override, got %v", body.Temperature)
		}
		_ = json.NewEncoder(w).Encode(completionPayload(`{}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "demo-model"}, WithTemperature(0))
	if _, err := client.Request(context.Background(), NewRequest("other/model", "x")); err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
}

func TestClientRequestSalvagesJSONFromProse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completionPayload("Here you go: {\"enrollment\": 120} Let me know."))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	extraction, err := client.Ask(context.Background(), "x")
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	value, ok := extraction.Value.(map[string]any)
	if !extraction.Found || !ok || value["enrollment"] != json.Number("120") {
		t.Fatalf("unexpected extraction %#v", extraction)
	}
	if !strings.HasPrefix(extraction.Content, "Here you go") {
		t.Fatalf("expected raw content to be kept, got %q", extraction.Content)
	}
}

func TestClientRequestReportsAbsence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completionPayload("I could not find that information."))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	extraction, err := client.Ask(context.Background(), "x")
	if err != nil {
		t.Fatalf("absence must not be an error, got %v", err)
	}
	if extraction.Found || extraction.Value != nil {
		t.Fatalf("expected absence, got %#v", extraction)
	}
	if extraction.Content != "I could not find that information." {
		t.Fatalf("unexpected content %q", extraction.Content)
	}
}

func TestClientRequestDeltaContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"delta": map[string]any{"content": `{"ok": true}`}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	extraction, err := client.Ask(context.Background(), "x")
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if !extraction.Found {
		t.Fatalf("expected delta content to be used, got %#v", extraction)
	}
}

func TestClientRetriesEmptyChoicesThenFails(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "k", BaseURL: server.URL},
		WithRetryBackoff(time.Second, 0),
		WithSleeper(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}),
	)
	_, err := client.Request(context.Background(), Request{Prompt: "x", MaxRetries: 2})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed response marker, got %v", err)
	}
	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 3 {
		t.Fatalf("expected exhausted error after 3 attempts, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("expected 1s then 2s backoff, got %v", slept)
	}
}

func TestClientRetriesServerErrorThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": "boom"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(completionPayload(`{"ok": true}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL}, WithSleeper(noSleep))
	extraction, err := client.Ask(context.Background(), "x")
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if !extraction.Found || calls != 2 {
		t.Fatalf("expected success on second call, got found=%v calls=%d", extraction.Found, calls)
	}
}

func TestClientStatusErrorIsTransport(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "unauthorized"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL}, WithSleeper(noSleep))
	_, err := client.Request(context.Background(), Request{Prompt: "x", MaxRetries: 1})
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport marker, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls with one retry, got %d", calls)
	}
}

func TestClientZeroRetriesMakesSingleAttempt(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL}, WithSleeper(noSleep))
	_, err := client.Request(context.Background(), Request{Prompt: "x", MaxRetries: -1})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestClientStopsRetryingOnCancel(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(Config{APIKey: "k", BaseURL: server.URL}, WithSleeper(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	_, err := client.Ask(ctx, "x")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestClientHonoursPerRequestRetryBudget(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL}, WithSleeper(noSleep))
	_, err := client.Request(context.Background(), Request{Prompt: "x", MaxRetries: 3})
	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 4 {
		t.Fatalf("expected exhausted error after 4 attempts, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}
