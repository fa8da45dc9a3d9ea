package main

import (
	"context"
	_ "embed"
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
	"github.com/shopspring/decimal"

	"github.com/zombor/dsr-tracker/internal/logging"
	"github.com/zombor/dsr-tracker/internal/recognition"
	"github.com/zombor/dsr-tracker/internal/recognition/tesseract"
	"github.com/zombor/dsr-tracker/internal/scan"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// rootConfig holds the flags shared by every subcommand
type rootConfig struct {
	recognizer    *string
	tesseractLang *string
	geminiKey     *string
	geminiModel   *string
	ollamaURL     *string
	ollamaModel   *string
	deadline      *time.Duration
	tolerance     *string
	logLevel      *string
	showVersion   *bool
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := ff.NewFlagSet("dsr-tracker")
	cfg := &rootConfig{
		recognizer:    fs.StringLong("recognizer", "tesseract", "Recognizer: 'tesseract', 'gemini' or 'ollama'"),
		tesseractLang: fs.StringLong("tesseract-lang", "eng", "Tesseract languages, joined with '+'"),
		geminiKey:     fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:   fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name"),
		ollamaURL:     fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel:   fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model with grounding support"),
		deadline:      fs.DurationLong("deadline", 15*time.Second, "Time allowed for recognition before a scan times out"),
		tolerance:     fs.StringLong("tolerance", "1.00", "Largest cash difference, exclusive, that still balances"),
		logLevel:      fs.StringLong("log-level", "info", "Log level: debug, info, warn or error"),
		showVersion:   fs.BoolLong("version", "Show version information"),
	}

	root := &ff.Command{
		Name:      "dsr-tracker",
		Usage:     "dsr-tracker [FLAGS] <SUBCOMMAND>",
		ShortHelp: "Reconcile daily sales reports from photos of POS receipts",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if *cfg.showVersion {
				fmt.Println(version)
				return nil
			}
			return ff.ErrHelp
		},
	}
	root.Subcommands = []*ff.Command{
		newServeCommand(cfg, fs),
		newScanCommand(cfg, fs),
	}

	err := root.ParseAndRun(ctx, os.Args[1:], ff.WithEnvVarPrefix("DSR_TRACKER"))
	switch {
	case err == nil:
	case errors.Is(err, ff.ErrHelp):
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
	case errors.Is(err, errNotReady):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging installs the process-wide logger
func (c *rootConfig) setupLogging() error {
	level, err := logging.ParseLevel(*c.logLevel)
	if err != nil {
		return err
	}
	logging.Setup(level)
	return nil
}

// scanConfig builds the session configuration from flags
func (c *rootConfig) scanConfig() (scan.Config, error) {
	tolerance, err := decimal.NewFromString(*c.tolerance)
	if err != nil {
		return scan.Config{}, fmt.Errorf("parsing tolerance %q: %w", *c.tolerance, err)
	}
	if !tolerance.IsPositive() {
		return scan.Config{}, fmt.Errorf("tolerance must be positive, got %s", tolerance)
	}
	if *c.deadline <= 0 {
		return scan.Config{}, fmt.Errorf("deadline must be positive, got %s", *c.deadline)
	}
	return scan.Config{
		Deadline:         *c.deadline,
		BalanceTolerance: tolerance,
	}, nil
}

// newRecognizer builds the configured recognition backend
func (c *rootConfig) newRecognizer(ctx context.Context) (recognition.Recognizer, error) {
	switch *c.recognizer {
	case "tesseract":
		slog.Info("Initializing Tesseract recognizer...", "languages", *c.tesseractLang)
		return tesseract.New(strings.Split(*c.tesseractLang, "+")...), nil
	case "gemini":
		apiKey := *c.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini recognizer...", "model", *c.geminiModel)
		r, err := recognition.NewGemini(ctx, apiKey, *c.geminiModel)
		if err != nil {
			return nil, fmt.Errorf("initializing gemini: %w", err)
		}
		return r, nil
	case "ollama":
		slog.Info("Initializing Ollama recognizer...", "url", *c.ollamaURL, "model", *c.ollamaModel)
		r, err := recognition.NewOllama(*c.ollamaURL, *c.ollamaModel)
		if err != nil {
			return nil, fmt.Errorf("initializing ollama: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("invalid recognizer %q: valid values are tesseract, gemini or ollama", *c.recognizer)
	}
}
