package vision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/workoutscan/internal/imagefile"
	"github.com/ashureev/workoutscan/internal/prompt"
	"github.com/ashureev/workoutscan/internal/transcript"
)

// ScannerConfig holds per-request parameters for the Scanner.
type ScannerConfig struct {
	Model       string
	MaxTokens   int
	WorkoutName string
}

// Scanner turns a workout log image into the model's raw answer.
type Scanner struct {
	completer  Completer
	cfg        ScannerConfig
	transcript transcript.Logger
	logger     *slog.Logger
	now        func() time.Time
}

// NewScanner creates a Scanner backed by completer. A nil transcript disables exchange logging.
func NewScanner(completer Completer, cfg ScannerConfig, tlog transcript.Logger, logger *slog.Logger) *Scanner {
	if tlog == nil {
		tlog = transcript.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		completer:  completer,
		cfg:        cfg,
		transcript: tlog,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock replaces the source of "today" used in the prompt.
func (s *Scanner) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Scan reads the image at imagePath, asks the model for the workout as JSON
// and returns its answer unparsed.
func (s *Scanner) Scan(ctx context.Context, imagePath string) (*Result, error) {
	scanID := uuid.NewString()
	logger := s.logger.With("scan_id", scanID, "image_path", imagePath)

	logger.Info("Starting image encoding")
	data, err := imagefile.Load(imagePath)
	if err != nil {
		return nil, err
	}
	mediaType := imagefile.DetectMediaType(data)
	dataURI := imagefile.DataURI(data, mediaType)
	logger.Info("Image encoded", "bytes", len(data), "media_type", mediaType, "data_uri_length", len(dataURI))

	text, err := prompt.BuildWithName(s.now(), s.cfg.WorkoutName)
	if err != nil {
		return nil, err
	}

	req := Request{
		Prompt:    text,
		ImageURL:  dataURI,
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
	}

	s.transcript.Log(transcript.Event{
		ScanID:     scanID,
		Direction:  transcript.DirectionOutbound,
		EventType:  transcript.EventScanRequest,
		ImagePath:  imagePath,
		MediaType:  mediaType,
		ImageBytes: len(data),
		Model:      req.Model,
		Content:    req.Prompt,
	})

	logger.Info("Sending request to vision model", "model", req.Model)
	start := time.Now()
	result, err := s.completer.Complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		s.transcript.Log(transcript.Event{
			ScanID:     scanID,
			Direction:  transcript.DirectionInbound,
			EventType:  transcript.EventScanError,
			Model:      req.Model,
			Error:      err.Error(),
			DurationMs: elapsed.Milliseconds(),
		})
		return nil, fmt.Errorf("scan %s: %w", imagePath, err)
	}

	logger.Info("Received response from vision model",
		"finish_reason", result.FinishReason,
		"content_length", len(result.Content),
		"prompt_tokens", result.PromptTokens,
		"completion_tokens", result.CompletionTokens,
		"duration", elapsed,
	)
	logger.Debug("Raw response content preview", "content_preview", transcript.Preview(result.Content))

	s.transcript.Log(transcript.Event{
		ScanID:       scanID,
		Direction:    transcript.DirectionInbound,
		EventType:    transcript.EventScanResponse,
		Model:        result.Model,
		Content:      result.Content,
		FinishReason: result.FinishReason,
		DurationMs:   elapsed.Milliseconds(),
	})

	return result, nil
}
