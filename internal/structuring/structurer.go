// Package structuring converts OCR text into a validated StructuredReceipt
// using a chat model constrained to a fixed JSON schema.
package structuring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/zombor/receipt-extract/internal/ocr"
	"github.com/zombor/receipt-extract/internal/receipt"
)

const (
	// DefaultMaxAttempts is the total number of model calls per receipt
	DefaultMaxAttempts = 3
	// DefaultBaseURL is Groq's OpenAI-compatible endpoint
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the chat model used for structuring
	DefaultModel = "llama-3.3-70b-versatile"
)

// Config holds connection settings for an OpenAI-compatible endpoint
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Structurer turns RawText into a StructuredReceipt
type Structurer struct {
	model       llms.Model
	maxAttempts int
	backoff     time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// Option configures a Structurer
type Option func(*Structurer)

// WithMaxAttempts sets the total number of attempts, minimum 1
func WithMaxAttempts(n int) Option {
	return func(s *Structurer) {
		if n < 1 {
			n = 1
		}
		s.maxAttempts = n
	}
}

// WithBackoff sleeps a jittered multiple of d between attempts
func WithBackoff(d time.Duration) Option {
	return func(s *Structurer) { s.backoff = d }
}

// WithRateLimit caps model calls to perSecond
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Structurer) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Structurer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Structurer over any langchaingo model
func New(model llms.Model, opts ...Option) *Structurer {
	s := &Structurer{
		model:       model,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default().With("component", "structuring"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewOpenAI creates a Structurer against an OpenAI-compatible chat API.
// Requests carry the receipt JSON schema as a json_schema response format.
func NewOpenAI(cfg Config, opts ...Option) (*Structurer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("structuring api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithResponseFormat(responseFormat()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return New(client, opts...), nil
}

// Structure calls the model until a response passes validation or the
// attempt budget is spent. The request is identical on every attempt.
func (s *Structurer) Structure(ctx context.Context, raw *ocr.RawText) (*receipt.StructuredReceipt, error) {
	if raw == nil {
		return nil, &Error{Attempts: 0, Err: errors.New("no OCR text")}
	}
	messages := buildMessages(raw)

	var lastErr error
	attempts := 0
	for attempts < s.maxAttempts {
		if attempts > 0 {
			if err := s.wait(ctx, attempts); err != nil {
				lastErr = err
				break
			}
		}
		attempts++

		r, err := s.attempt(ctx, messages)
		if err == nil {
			return r, nil
		}
		lastErr = err
		s.logger.Debug("Structuring attempt failed", "attempt", attempts, "error_type", fmt.Sprintf("%T", err))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &Error{Attempts: attempts, Err: lastErr}
}

func (s *Structurer) attempt(ctx context.Context, messages []llms.MessageContent) (*receipt.StructuredReceipt, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := s.model.GenerateContent(ctx, messages, llms.WithTemperature(0), llms.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices returned from model")
	}

	return parseReceiptJSON(resp.Choices[0].Content)
}

// wait sleeps before a retry; the delay grows with the attempt number
func (s *Structurer) wait(ctx context.Context, attempt int) error {
	if s.backoff <= 0 {
		return ctx.Err()
	}
	delay := time.Duration(attempt)*s.backoff + time.Duration(rand.Int64N(int64(s.backoff)))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
