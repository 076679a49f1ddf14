package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-extract/internal/batch"
	"github.com/zombor/receipt-extract/internal/ocr"
	"github.com/zombor/receipt-extract/internal/receipt"
	"github.com/zombor/receipt-extract/internal/structuring"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-extract")
	var (
		dbPath          = fs.StringLong("db", "receipt-extract.db", "Database file path (empty disables persistence)")
		storagePath     = fs.StringLong("storage", "./receipts", "Directory that locators are resolved against")
		engineName      = fs.StringLong("engine", "tesseract", "OCR engine: 'tesseract', 'gemini' or 'ollama'")
		language        = fs.StringLong("language", "eng", "OCR language hint")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name")
		llmURL          = fs.StringLong("llm-url", structuring.DefaultBaseURL, "OpenAI-compatible base URL for structuring")
		llmKey          = fs.StringLong("llm-key", "", "Structuring API key (or set GROQ_API_KEY env var)")
		llmModel        = fs.StringLong("llm-model", structuring.DefaultModel, "Structuring model name")
		concurrency     = fs.IntLong("concurrency", batch.DefaultConcurrency, "Items processed at once")
		reviewThreshold = fs.Float64Long("review-threshold", batch.DefaultReviewThreshold, "Confidence below which receipts need review")
		itemTimeout     = fs.DurationLong("item-timeout", 2*time.Minute, "Time limit for OCR and structuring of one item (0 disables)")
		failureRatio    = fs.Float64Long("failure-ratio", 0, "Fail the batch when this share of items fails (0 disables)")
		rateLimit       = fs.Float64Long("rate-limit", 0, "Remote OCR and LLM calls per second (0 disables)")
		ocrMaxBytes     = fs.IntLong("ocr-max-bytes", ocr.MaxImageBytes, "Largest image sent to a remote OCR engine, in bytes")
		ocrTimeout      = fs.DurationLong("ocr-timeout", 0, "Time limit for one remote OCR call (0 uses the engine default)")
		debug           = fs.BoolLong("debug", "Enable debug logging")
		_               = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_EXTRACT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	locators := fs.GetArgs()
	if len(locators) == 0 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintln(os.Stderr, "error: at least one locator is required")
		os.Exit(1)
	}

	if *geminiKey == "" {
		*geminiKey = os.Getenv("GEMINI_API_KEY")
	}
	if *llmKey == "" {
		*llmKey = os.Getenv("GROQ_API_KEY")
	}

	os.Exit(run(config{
		dbPath:          *dbPath,
		storagePath:     *storagePath,
		locators:        locators,
		concurrency:     *concurrency,
		reviewThreshold: *reviewThreshold,
		itemTimeout:     *itemTimeout,
		failureRatio:    *failureRatio,
		rateLimit:       *rateLimit,
		ocr: ocr.Config{
			Engine:        *engineName,
			Language:      *language,
			GeminiKey:     *geminiKey,
			GeminiModel:   *geminiModel,
			OllamaURL:     *ollamaURL,
			OllamaModel:   *ollamaModel,
			RateLimit:     *rateLimit,
			MaxImageBytes: *ocrMaxBytes,
			Timeout:       *ocrTimeout,
		},
		llm: structuring.Config{
			BaseURL: *llmURL,
			APIKey:  *llmKey,
			Model:   *llmModel,
		},
	}))
}

type config struct {
	dbPath          string
	storagePath     string
	locators        []string
	concurrency     int
	reviewThreshold float64
	itemTimeout     time.Duration
	failureRatio    float64
	rateLimit       float64
	ocr             ocr.Config
	llm             structuring.Config
}

func run(cfg config) int {
	slog.Info("Initializing storage...", "path", cfg.storagePath)
	storage, err := receipt.NewLocalStorage(cfg.storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		return 1
	}

	opts := []batch.Option{
		batch.WithConcurrency(cfg.concurrency),
		batch.WithReviewThreshold(cfg.reviewThreshold),
		batch.WithItemTimeout(cfg.itemTimeout),
		batch.WithFailureRatio(cfg.failureRatio),
	}

	if cfg.dbPath != "" {
		slog.Info("Initializing database...", "path", cfg.dbPath)
		db, err := receipt.NewBoltDB(cfg.dbPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			return 1
		}
		defer db.Close()
		opts = append(opts, batch.WithStore(db))
	}

	slog.Info("Initializing OCR engine...", "engine", cfg.ocr.Engine)
	engine, err := ocr.NewEngine(cfg.ocr, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize OCR engine", "error", batch.Sanitize(err.Error()))
		return 1
	}
	defer engine.Close()

	slog.Info("Initializing structuring model...", "model", cfg.llm.Model)
	structurer, err := structuring.NewOpenAI(cfg.llm, structuring.WithRateLimit(cfg.rateLimit, 1), structuring.WithBackoff(500*time.Millisecond))
	if err != nil {
		slog.Error("Failed to initialize structuring model", "error", batch.Sanitize(err.Error()))
		return 1
	}

	processor, err := batch.NewProcessor(storage, structurer, opts...)
	if err != nil {
		slog.Error("Failed to initialize processor", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources := make([]batch.Source, len(cfg.locators))
	for i, locator := range cfg.locators {
		sources[i] = batch.Source{Locator: locator}
	}

	outcome, err := processor.Run(ctx, sources, engine)
	if outcome != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(outcome); encErr != nil {
			slog.Error("Failed to write outcome", "error", encErr)
			return 1
		}
	}
	switch {
	case errors.Is(err, batch.ErrNoSurvivors):
		return 2
	case err != nil:
		slog.Error("Batch extraction failed", "error", batch.Sanitize(err.Error()))
		return 1
	case outcome.State != batch.StateDone:
		return 3
	}
	return 0
}
