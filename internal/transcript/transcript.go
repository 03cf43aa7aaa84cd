// Package transcript records scan exchanges with the vision endpoint as NDJSON.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PreviewLength is the number of runes kept in Event.ContentPreview.
const PreviewLength = 100

// Event directions.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// Event types.
const (
	EventScanRequest  = "scan_request"
	EventScanResponse = "scan_response"
	EventScanError    = "scan_error"
)

// Config controls the transcript writer.
type Config struct {
	Enabled   bool
	Path      string
	QueueSize int
}

// Event is a single line in the transcript.
type Event struct {
	Timestamp      time.Time `json:"ts"`
	ScanID         string    `json:"scan_id"`
	Direction      string    `json:"direction"`
	EventType      string    `json:"event_type"`
	ImagePath      string    `json:"image_path,omitempty"`
	MediaType      string    `json:"media_type,omitempty"`
	ImageBytes     int       `json:"image_bytes,omitempty"`
	Model          string    `json:"model,omitempty"`
	Content        string    `json:"content,omitempty"`
	ContentPreview string    `json:"content_preview,omitempty"`
	FinishReason   string    `json:"finish_reason,omitempty"`
	Error          string    `json:"error,omitempty"`
	DurationMs     int64     `json:"duration_ms,omitempty"`
}

// Logger accepts transcript events.
type Logger interface {
	// Log enqueues an event without blocking. Events are dropped when the queue is full.
	Log(event Event)
	// Close flushes queued events and releases the file.
	Close() error
}

// NewLogger returns a file-backed Logger, or a no-op Logger when cfg is disabled.
func NewLogger(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Nop(), nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("transcript queue size must be > 0")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}

	l := &fileLogger{
		file:   f,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l, nil
}

type fileLogger struct {
	file   *os.File
	queue  chan Event
	done   chan struct{}
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func (l *fileLogger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ContentPreview == "" && event.Content != "" {
		event.ContentPreview = Preview(event.Content)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("transcript queue full, dropping event", "scan_id", event.ScanID, "event_type", event.EventType)
	}
}

func (l *fileLogger) run() {
	defer close(l.done)
	enc := json.NewEncoder(l.file)
	for event := range l.queue {
		if err := enc.Encode(event); err != nil {
			l.logger.Warn("failed to write transcript event", "scan_id", event.ScanID, "error", err)
		}
	}
}

func (l *fileLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return l.file.Close()
}

// Preview returns at most PreviewLength runes of s.
func Preview(s string) string {
	runes := []rune(s)
	if len(runes) <= PreviewLength {
		return s
	}
	return string(runes[:PreviewLength])
}

type nopLogger struct{}

func (nopLogger) Log(Event)    {}
func (nopLogger) Close() error { return nil }

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }
