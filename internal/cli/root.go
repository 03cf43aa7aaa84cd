// Package cli wires configuration, logging and the vision scanner into the workoutscan command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/workoutscan/internal/cleanup"
	"github.com/ashureev/workoutscan/internal/config"
	"github.com/ashureev/workoutscan/internal/prompt"
	"github.com/ashureev/workoutscan/internal/transcript"
	"github.com/ashureev/workoutscan/internal/vision"
)

// deps are the seams replaced in tests.
type deps struct {
	loadEnv      func() error
	newCompleter func(cfg config.VisionConfig, logger *slog.Logger) vision.Completer
}

func defaultDeps() deps {
	return deps{
		loadEnv: func() error { return godotenv.Load() },
		newCompleter: func(cfg config.VisionConfig, logger *slog.Logger) vision.Completer {
			return vision.NewOpenAIClient(vision.OpenAIClientConfig{
				APIKey:  cfg.APIKey,
				BaseURL: cfg.BaseURL,
				OrgID:   cfg.OrgID,
			}, logger)
		},
	}
}

type options struct {
	model       string
	maxTokens   int
	baseURL     string
	date        string
	timeout     time.Duration
	stripFences bool
	debug       bool
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, newRootCmd(defaultDeps()), os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}

// execute installs the JSON stderr logger before anything can fail, so every
// log line, including early config errors, shares one format.
func execute(ctx context.Context, cmd *cobra.Command, stderr io.Writer) error {
	slog.SetDefault(newLogger(stderr, slog.LevelInfo))
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("Scan failed", "error", err)
		return err
	}
	return nil
}

func newRootCmd(d deps) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "workoutscan [image-path]",
		Short: "Extract a handwritten workout log from an image as JSON",
		Long: "workoutscan sends a photo of a handwritten workout log to a multimodal " +
			"chat-completion model and prints the model's JSON answer verbatim.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts, d)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.model, "model", "", "model identifier (overrides VISION_MODEL)")
	flags.IntVar(&opts.maxTokens, "max-tokens", 0, "response token cap (overrides VISION_MAX_TOKENS)")
	flags.StringVar(&opts.baseURL, "base-url", "", "OpenAI-compatible endpoint (overrides OPENAI_BASE_URL)")
	flags.StringVar(&opts.date, "date", "", "workout date as YYYY-MM-DD (defaults to today)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "request timeout (overrides VISION_TIMEOUT)")
	flags.BoolVar(&opts.stripFences, "strip-fences", false, "remove a markdown code fence around the answer")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	return cmd
}

func run(cmd *cobra.Command, args []string, opts options, d deps) error {
	if err := d.loadEnv(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg := config.FromEnv()
	if err := applyOverrides(cfg, cmd, args, opts); err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	slog.SetDefault(logger)

	var today time.Time
	if opts.date != "" {
		var err error
		today, err = time.ParseInLocation(prompt.DateLayout, opts.date, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", opts.date, err)
		}
	}

	tlog, err := transcript.NewLogger(transcript.Config{
		Enabled:   cfg.Transcript.Enabled,
		Path:      cfg.Transcript.Path,
		QueueSize: cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize transcript: %w", err)
	}
	defer func() {
		if closeErr := tlog.Close(); closeErr != nil {
			logger.Warn("Failed to close transcript", "error", closeErr)
		}
	}()

	scanner := vision.NewScanner(d.newCompleter(cfg.Vision, logger), vision.ScannerConfig{
		Model:       cfg.Vision.Model,
		MaxTokens:   cfg.Vision.MaxTokens,
		WorkoutName: cfg.WorkoutName,
	}, tlog, logger)
	if !today.IsZero() {
		scanner.SetClock(func() time.Time { return today })
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Vision.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Vision.Timeout)
		defer cancel()
	}

	result, err := scanner.Scan(ctx, cfg.ImagePath)
	if err != nil {
		return err
	}

	content := result.Content
	if opts.stripFences {
		content = cleanup.StripCodeFences(content)
	}
	_, err = io.WriteString(cmd.OutOrStdout(), content)
	return err
}

func applyOverrides(cfg *config.Config, cmd *cobra.Command, args []string, opts options) error {
	if len(args) == 1 {
		cfg.ImagePath = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Vision.Model = opts.model
	}
	if flags.Changed("max-tokens") {
		cfg.Vision.MaxTokens = opts.maxTokens
	}
	if flags.Changed("base-url") {
		cfg.Vision.BaseURL = opts.baseURL
	}
	if flags.Changed("timeout") {
		cfg.Vision.Timeout = opts.timeout
	}
	if opts.debug {
		cfg.LogLevel = slog.LevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}))
}
