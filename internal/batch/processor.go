// Package batch runs the receipt extraction pipeline over one submission:
// fetch, normalize, dedupe, then OCR and structuring for every surviving
// image under a concurrency ceiling.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/zombor/receipt-extract/internal/imaging"
	"github.com/zombor/receipt-extract/internal/ocr"
	"github.com/zombor/receipt-extract/internal/receipt"
)

// DefaultConcurrency caps in-flight items per batch
const DefaultConcurrency = 8

// ErrNoSurvivors is returned when no source yields a processable image
var ErrNoSurvivors = errors.New("no processable images in batch")

// Structurer converts OCR text into a receipt
type Structurer interface {
	Structure(ctx context.Context, raw *ocr.RawText) (*receipt.StructuredReceipt, error)
}

// Store persists extraction output
type Store interface {
	SaveReceipt(record *receipt.Record) error
	SaveBatch(batch *receipt.Batch) error
}

// IDGenerator generates unique IDs for batches and records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Processor runs batches. It holds no per-batch state and may run several
// batches concurrently.
type Processor struct {
	fetcher         receipt.Fetcher
	structurer      Structurer
	store           Store
	notifier        Notifier
	concurrency     int
	reviewThreshold float64
	itemTimeout     time.Duration
	failureRatio    float64
	idGenerator     IDGenerator
	timeSource      TimeSource
	logger          *slog.Logger
}

// Option configures a Processor
type Option func(*Processor)

// WithConcurrency sets the number of items processed at once
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n < 1 {
			n = 1
		}
		p.concurrency = n
	}
}

// WithReviewThreshold sets the confidence below which results need review
func WithReviewThreshold(threshold float64) Option {
	return func(p *Processor) { p.reviewThreshold = threshold }
}

// WithItemTimeout bounds OCR plus structuring for a single item
func WithItemTimeout(d time.Duration) Option {
	return func(p *Processor) { p.itemTimeout = d }
}

// WithFailureRatio marks a batch Failed when at least ratio of its items
// fail. Zero disables the policy.
func WithFailureRatio(ratio float64) Option {
	return func(p *Processor) { p.failureRatio = ratio }
}

// WithStore persists receipts and batch summaries
func WithStore(store Store) Option {
	return func(p *Processor) { p.store = store }
}

// WithNotifier sets the completion notifier
func WithNotifier(notifier Notifier) Option {
	return func(p *Processor) { p.notifier = notifier }
}

// WithIDGenerator overrides uuid-based IDs
func WithIDGenerator(g IDGenerator) Option {
	return func(p *Processor) { p.idGenerator = g }
}

// WithTimeSource overrides the wall clock
func WithTimeSource(t TimeSource) Option {
	return func(p *Processor) { p.timeSource = t }
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor creates a Processor
func NewProcessor(fetcher receipt.Fetcher, structurer Structurer, opts ...Option) (*Processor, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if structurer == nil {
		return nil, errors.New("structurer is required")
	}

	p := &Processor{
		fetcher:         fetcher,
		structurer:      structurer,
		notifier:        LogNotifier{},
		concurrency:     DefaultConcurrency,
		reviewThreshold: DefaultReviewThreshold,
		idGenerator:     uuidGenerator{},
		timeSource:      systemClock{},
		logger:          slog.Default().With("component", "batch"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// prepared is the fetch and normalize result for one source
type prepared struct {
	sourceIndex int
	images      []imaging.Image
	err         error
}

// itemOutcome is the OCR and structuring result for one item
type itemOutcome struct {
	item    *Item
	receipt *receipt.StructuredReceipt
	err     error
}

// Run processes sources with engine. The returned error is non-nil only for
// the systemic case where nothing survives preprocessing; per-item failures
// are reported in the Outcome.
func (p *Processor) Run(ctx context.Context, sources []Source, engine ocr.Engine) (*Outcome, error) {
	batchID := p.idGenerator.Generate()
	logger := p.logger.With("batch_id", batchID)
	state := newTracker()
	createdAt := p.timeSource.Now()
	outcome := &Outcome{
		BatchID:  batchID,
		Results:  []Result{},
		Errors:   []ItemError{},
		Rejected: []SourceError{},
	}

	pool, err := ants.NewPool(p.concurrency)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	logger.Info("Starting batch extraction", "files", len(sources))
	p.saveBatch(logger, outcome, state, createdAt)

	if err := state.to(StateDownloading); err != nil {
		return nil, err
	}
	p.saveBatch(logger, outcome, state, createdAt)
	items := p.prepare(ctx, logger, pool, sources, outcome)

	if len(items) == 0 {
		if err := state.to(StateFailed); err != nil {
			return nil, err
		}
		err := fmt.Errorf("%w: %d sources, %d rejected, %d duplicates", ErrNoSurvivors, len(sources), len(outcome.Rejected), outcome.Duplicates)
		outcome.State = state.current()
		outcome.Error = err.Error()
		logger.Error("No contents downloaded for batch", "rejected", len(outcome.Rejected))
		p.saveBatch(logger, outcome, state, createdAt)
		return outcome, err
	}

	if err := state.to(StateProcessing); err != nil {
		return nil, err
	}
	p.saveBatch(logger, outcome, state, createdAt)
	p.process(ctx, logger, pool, batchID, items, engine, outcome)

	final := StateDone
	if len(outcome.Errors) > 0 {
		final = StatePartiallyFailed
		if p.failureRatio > 0 && float64(len(outcome.Errors)) >= p.failureRatio*float64(len(items)) {
			final = StateFailed
		}
	}
	if err := state.to(final); err != nil {
		return nil, err
	}
	outcome.State = state.current()
	p.saveBatch(logger, outcome, state, createdAt)

	logger.Info("Finished batch extraction",
		"processed", len(outcome.Results),
		"failed", len(outcome.Errors),
		"state", outcome.State,
	)

	if outcome.State == StateDone && p.notifier != nil {
		if err := p.notifier.BatchComplete(ctx, batchID); err != nil {
			logger.Warn("Failed to send completion notification", "error", Sanitize(err.Error()))
		}
	}

	return outcome, nil
}

// prepare fetches and normalizes every source concurrently, then dedupes
// the expanded images in submission order
func (p *Processor) prepare(ctx context.Context, logger *slog.Logger, pool *ants.Pool, sources []Source, outcome *Outcome) []*Item {
	ch := make(chan prepared, len(sources))
	for i, src := range sources {
		task := func() {
			defer func() {
				if r := recover(); r != nil {
					ch <- prepared{sourceIndex: i, err: fmt.Errorf("panic preparing source: %v", r)}
				}
			}()
			images, err := p.fetchAndNormalize(ctx, src)
			ch <- prepared{sourceIndex: i, images: images, err: err}
		}
		if err := pool.Submit(task); err != nil {
			ch <- prepared{sourceIndex: i, err: fmt.Errorf("scheduling source: %w", err)}
		}
	}

	bySource := make([]prepared, len(sources))
	for range sources {
		r := <-ch
		bySource[r.sourceIndex] = r
	}

	var (
		images []imaging.Image
		owners []int
	)
	for i, r := range bySource {
		if r.err != nil {
			msg := Sanitize(r.err.Error())
			logger.Error("Failed to download or process file from storage", "index", i, "locator", sources[i].Locator, "error", msg)
			outcome.Rejected = append(outcome.Rejected, SourceError{SourceIndex: i, Locator: sources[i].Locator, Message: msg})
			continue
		}
		for _, img := range r.images {
			images = append(images, img)
			owners = append(owners, i)
		}
	}

	unique := imaging.NewDeduper(logger).Dedupe(images)
	outcome.Duplicates = len(images) - len(unique)

	items := make([]*Item, 0, len(unique))
	for _, u := range unique {
		src := owners[u.Position]
		items = append(items, &Item{
			Index:       len(items),
			SourceIndex: src,
			Locator:     sources[src].Locator,
			Hash:        u.Hash,
			image:       u.Image,
		})
	}
	return items
}

func (p *Processor) fetchAndNormalize(ctx context.Context, src Source) ([]imaging.Image, error) {
	data, err := p.fetcher.Fetch(ctx, src.Locator)
	if err != nil {
		return nil, fmt.Errorf("fetching source: %w", err)
	}
	return imaging.Normalize(data, src.kind())
}

// process fans items out to the pool and collects outcomes on a single
// goroutine, which is the only writer of the outcome and the store
func (p *Processor) process(ctx context.Context, logger *slog.Logger, pool *ants.Pool, batchID string, items []*Item, engine ocr.Engine, outcome *Outcome) {
	ch := make(chan itemOutcome, len(items))
	for _, item := range items {
		task := func() {
			defer func() {
				if r := recover(); r != nil {
					ch <- itemOutcome{item: item, err: fmt.Errorf("panic processing item: %v", r)}
				}
			}()
			r, err := p.extract(ctx, item, engine)
			ch <- itemOutcome{item: item, receipt: r, err: err}
		}
		if err := pool.Submit(task); err != nil {
			ch <- itemOutcome{item: item, err: fmt.Errorf("scheduling item: %w", err)}
		}
	}

	for range items {
		res := <-ch
		item := res.item
		if res.err != nil {
			msg := Sanitize(res.err.Error())
			logger.Error("Batch extraction failed for item", "index", item.Index, "locator", item.Locator, "error", msg)
			outcome.Errors = append(outcome.Errors, ItemError{
				Index:       item.Index,
				SourceIndex: item.SourceIndex,
				Locator:     item.Locator,
				Message:     msg,
			})
			continue
		}

		needsReview := NeedsReview(res.receipt.Confidence, p.reviewThreshold)
		outcome.Results = append(outcome.Results, Result{
			Index:       item.Index,
			SourceIndex: item.SourceIndex,
			Locator:     item.Locator,
			Receipt:     res.receipt,
			NeedsReview: needsReview,
		})
		p.saveReceipt(logger, batchID, item, res.receipt, needsReview)
	}

	slices.SortFunc(outcome.Results, func(a, b Result) int { return a.Index - b.Index })
	slices.SortFunc(outcome.Errors, func(a, b ItemError) int { return a.Index - b.Index })
}

// extract runs OCR then structuring for one item under its own deadline
func (p *Processor) extract(ctx context.Context, item *Item, engine ocr.Engine) (*receipt.StructuredReceipt, error) {
	if p.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.itemTimeout)
		defer cancel()
	}

	raw, err := engine.ExtractText(ctx, item.image.Data, item.image.Hint(item.Locator))
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}
	r, err := p.structurer.Structure(ctx, raw)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (p *Processor) saveReceipt(logger *slog.Logger, batchID string, item *Item, r *receipt.StructuredReceipt, needsReview bool) {
	if p.store == nil {
		return
	}
	record := &receipt.Record{
		ID:            p.idGenerator.Generate(),
		BatchID:       batchID,
		SourceLocator: item.Locator,
		NeedsReview:   needsReview,
		Receipt:       *r,
		CreatedAt:     p.timeSource.Now(),
	}
	if err := p.store.SaveReceipt(record); err != nil {
		logger.Warn("Failed to save receipt", "index", item.Index, "error", Sanitize(err.Error()))
	}
}

func (p *Processor) saveBatch(logger *slog.Logger, outcome *Outcome, state *tracker, createdAt time.Time) {
	if p.store == nil {
		return
	}
	b := &receipt.Batch{
		ID:        outcome.BatchID,
		State:     string(state.current()),
		Processed: len(outcome.Results),
		Failed:    len(outcome.Errors),
		CreatedAt: createdAt,
		UpdatedAt: p.timeSource.Now(),
	}
	switch {
	case len(outcome.Errors) > 0:
		b.FailureReason = outcome.Errors[0].Message
	case outcome.Error != "":
		b.FailureReason = Sanitize(outcome.Error)
	}
	if err := p.store.SaveBatch(b); err != nil {
		logger.Warn("Failed to save batch", "state", b.State, "error", Sanitize(err.Error()))
	}
}
