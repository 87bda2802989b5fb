// Package tracing writes pipeline stage events as JSON Lines.
package tracing

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mwiater/minirag/internal/logging"
	"github.com/mwiater/minirag/internal/rag"
)

// Record is one line of a trace file.
type Record struct {
	RunID          string `json:"runId"`
	Stage          string `json:"stage"`
	Inputs         string `json:"inputs"`
	OutputsSummary string `json:"outputsSummary"`
	TimingMs       int64  `json:"timingMs"`
	Errors         string `json:"errors,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// JSONLSink appends records to a writer. It is safe for concurrent use.
type JSONLSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	path   string
	now    func() time.Time
}

// NewJSONLSink wraps w. The caller keeps ownership of w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w, now: time.Now}
}

// Open creates run-<timestamp>.jsonl inside dir.
func Open(dir string) (*JSONLSink, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run-%s.jsonl", time.Now().Format("20060102-150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	s := NewJSONLSink(f)
	s.closer = f
	s.path = path
	return s, nil
}

// Path returns the trace file path, or "" for writer-backed sinks.
func (s *JSONLSink) Path() string { return s.path }

// Write appends one event.
func (s *JSONLSink) Write(ev rag.StageEvent) error {
	rec := Record{
		RunID:          ev.RunID,
		Stage:          string(ev.Stage),
		Inputs:         ev.Input,
		OutputsSummary: ev.Output,
		TimingMs:       ev.Elapsed.Milliseconds(),
		Timestamp:      s.now().UTC().Format(time.RFC3339Nano),
	}
	if ev.Err != nil {
		rec.Errors = ev.Err.Error()
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(line)
	return err
}

// Sink adapts the writer to the pipeline's trace hook. Write failures are
// logged and otherwise ignored.
func (s *JSONLSink) Sink() rag.TraceSink {
	return func(ev rag.StageEvent) {
		if err := s.Write(ev); err != nil {
			logging.LogEvent("trace: write %s/%s failed: %v", ev.RunID, ev.Stage, err)
		}
	}
}

// Close closes the underlying file when the sink owns it.
func (s *JSONLSink) Close() error {
	if s.closer == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closer.Close()
}
