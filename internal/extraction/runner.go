package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"trialscope/internal/logging"
	"trialscope/internal/registry/ctgov"
	"trialscope/internal/services"
	"trialscope/internal/services/llm"
)

const component = "extraction"

// Fetcher retrieves trial records for a query.
type Fetcher interface {
	Fetch(ctx context.Context, q ctgov.Query) (ctgov.ResultSet, error)
}

// Requester sends a prompt to the model and recovers JSON from the reply.
type Requester interface {
	Request(ctx context.Context, req llm.Request) (llm.Extraction, error)
}

// Outcome is the result for one trial. Err is set when the trial could not be
// processed; Extraction.Found=false with a nil Err means the model replied
// without JSON.
type Outcome struct {
	NCTID      string
	Extraction llm.Extraction
	Err        error
}

// MarshalJSON renders Err as a string.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type outcomeJSON struct {
		NCTID      string          `json:"nct_id"`
		Extraction *llm.Extraction `json:"extraction,omitempty"`
		Error      string          `json:"error,omitempty"`
	}
	out := outcomeJSON{NCTID: o.NCTID}
	if o.Err != nil {
		out.Error = o.Err.Error()
	} else {
		extraction := o.Extraction
		out.Extraction = &extraction
	}
	return json.Marshal(out)
}

// Runner chains a fetch with one LLM request per trial.
type Runner struct {
	fetcher    Fetcher
	requester  Requester
	prompt     *Prompt
	model      string
	maxRetries int
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithModel overrides the model of every request (defaults to the requester's).
func WithModel(model string) Option {
	return func(r *Runner) {
		r.model = model
	}
}

// WithMaxRetries overrides the per-request retry budget.
func WithMaxRetries(retries int) Option {
	return func(r *Runner) {
		r.maxRetries = retries
	}
}

// WithPrompt replaces the default prompt template.
func WithPrompt(prompt *Prompt) Option {
	return func(r *Runner) {
		if prompt != nil {
			r.prompt = prompt
		}
	}
}

// WithLogger attaches a logger; the component attribute is added automatically.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logging.NewComponentLogger(logger, component)
	}
}

// NewRunner wires the fetcher and requester together.
func NewRunner(fetcher Fetcher, requester Requester, opts ...Option) *Runner {
	runner := &Runner{
		fetcher:    fetcher,
		requester:  requester,
		prompt:     DefaultPrompt(),
		maxRetries: llm.DefaultMaxRetries,
		logger:     logging.NewComponentLogger(nil, component),
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Run fetches trials for q and extracts each in arrival order. A fetch error
// returns no outcomes. A configuration error or cancellation stops the run and
// returns the outcomes collected so far alongside the error.
func (r *Runner) Run(ctx context.Context, q ctgov.Query) ([]Outcome, error) {
	logger := logging.WithContext(ctx, r.logger)
	records, err := r.fetcher.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	logger.Info("extraction started",
		logging.String(logging.FieldEventType, "extraction_start"),
		logging.String("query", q.Text),
		logging.Int("trials", len(records)),
	)

	start := time.Now()
	outcomes := make([]Outcome, 0, len(records))
	var found, failed int
	for _, record := range records {
		outcome, err := r.extract(ctx, record)
		if err != nil {
			return outcomes, err
		}
		switch {
		case outcome.Err != nil:
			failed++
		case outcome.Extraction.Found:
			found++
		}
		outcomes = append(outcomes, outcome)
	}

	logger.Info("extraction finished",
		logging.String(logging.FieldEventType, "extraction_complete"),
		logging.Int("trials", len(outcomes)),
		logging.Int("json_found", found),
		logging.Int("failed", failed),
		logging.Duration("elapsed", time.Since(start)),
	)
	return outcomes, nil
}

// extract processes one record. The returned error is non-nil only when the
// whole run must stop.
func (r *Runner) extract(ctx context.Context, record ctgov.Record) (Outcome, error) {
	id := record.NCTID()
	ctx = services.WithTrialID(ctx, id)
	logger := logging.WithContext(ctx, r.logger)
	outcome := Outcome{NCTID: id}

	prompt, err := r.prompt.Render(record)
	if err != nil {
		logger.Warn("prompt render failed; skipping trial",
			logging.String(logging.FieldEventType, "prompt_render_failed"),
			logging.String(logging.FieldErrorHint, "check the prompt template fields"),
			logging.Error(err),
		)
		outcome.Err = err
		return outcome, nil
	}

	extraction, err := r.requester.Request(ctx, llm.Request{Model: r.model, Prompt: prompt, MaxRetries: r.maxRetries})
	if err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			return outcome, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome, ctxErr
		}
		logger.Warn("trial extraction failed; continuing",
			logging.String(logging.FieldEventType, "trial_extraction_failed"),
			logging.Error(err),
		)
		outcome.Err = err
		return outcome, nil
	}
	outcome.Extraction = extraction
	if !extraction.Found {
		logger.Info("model reply carried no json", logging.String(logging.FieldEventType, "trial_json_absent"))
	}
	return outcome, nil
}
