package minirag

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/mwiater/minirag/internal/appconfig"
	"github.com/mwiater/minirag/internal/cache"
	"github.com/mwiater/minirag/internal/logging"
	"github.com/mwiater/minirag/internal/metrics"
	"github.com/mwiater/minirag/internal/rag"
	"github.com/mwiater/minirag/internal/tracing"
)

var (
	successText = color.New(color.FgGreen).SprintFunc()
	failedText  = color.New(color.FgRed).SprintFunc()
	labelText   = color.New(color.FgCyan, color.Bold).SprintFunc()
	dimText     = color.New(color.FgHiBlack).SprintFunc()
)

// session is a loaded pipeline plus the resources it writes to.
type session struct {
	pipeline  *rag.Pipeline
	artifacts rag.Artifacts
	cache     *cache.Store
	trace     *tracing.JSONLSink
	stats     *metrics.Aggregator
}

// openSession loads the artifacts and wires the cache, trace file and stage
// metrics named by the configuration.
func openSession(cfg *appconfig.Config) (*session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}
	s := &session{stats: metrics.NewAggregator(filepath.Join(cfg.DataDir, "stage_metrics.json"))}

	var opts []rag.Option
	if cfg.CacheEnabled {
		store, err := cache.Open(cfg.CacheFile())
		if err != nil {
			logging.LogEvent("[RAG] cache disabled: %v", err)
		} else {
			s.cache = store
			opts = append(opts, rag.WithCache(store))
		}
	}
	var traceSink rag.TraceSink
	if cfg.TraceDir != "" {
		sink, err := tracing.Open(cfg.TraceDir)
		if err != nil {
			logging.LogEvent("[RAG] tracing disabled: %v", err)
		} else {
			s.trace = sink
			traceSink = sink.Sink()
		}
	}
	if sink := metrics.Tee(traceSink, s.stats.Sink()); sink != nil {
		opts = append(opts, rag.WithTraceSink(sink))
	}

	p, artifacts, err := rag.Open(cfg, opts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.pipeline = p
	s.artifacts = artifacts
	return s, nil
}

// Close flushes metrics and releases the cache and trace file.
func (s *session) Close() {
	if s.stats != nil {
		if err := s.stats.Save(); err != nil {
			logging.LogEvent("[METRICS] save failed: %v", err)
		}
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.trace != nil {
		_ = s.trace.Close()
	}
}
