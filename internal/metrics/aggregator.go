package metrics

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mwiater/minirag/internal/logging"
	"github.com/mwiater/minirag/internal/rag"
	"github.com/mwiater/minirag/internal/util"
)

// Aggregator collects per-stage timings from pipeline runs.
type Aggregator struct {
	mutex    sync.Mutex
	stages   map[string]*StageMetrics
	runs     int64
	cached   int64
	filePath string
}

// NewAggregator creates an aggregator persisted at filePath. Existing
// metrics in the file are loaded; an empty path keeps everything in memory.
func NewAggregator(filePath string) *Aggregator {
	agg := &Aggregator{
		stages:   make(map[string]*StageMetrics),
		filePath: filePath,
	}
	agg.load()
	return agg
}

// load reads metrics from the JSON file into memory.
func (a *Aggregator) load() {
	if a.filePath == "" {
		return
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()

	data, err := os.ReadFile(a.filePath)
	if err != nil {
		return
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return
	}

	a.runs = snap.Runs
	a.cached = snap.Cached
	for i := range snap.Stages {
		m := snap.Stages[i]
		a.stages[m.Stage] = &m
	}
}

// Save writes the current metrics from memory to the JSON file.
func (a *Aggregator) Save() error {
	if a.filePath == "" {
		return nil
	}
	logging.LogEvent("[METRICS] Saving metrics to %s", a.filePath)

	data, err := json.MarshalIndent(a.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFile(a.filePath, data)
}

// Record updates the metrics with one stage event. END events count runs;
// a CACHE event without error counts a cache hit.
func (a *Aggregator) Record(ev rag.StageEvent) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	switch ev.Stage {
	case rag.StageEnd:
		a.runs++
	case rag.StageCache:
		if ev.Err == nil {
			a.cached++
		}
	}

	stage := string(ev.Stage)
	m, exists := a.stages[stage]
	if !exists {
		m = &StageMetrics{Stage: stage}
		a.stages[stage] = m
	}
	m.LastUpdatedUTC = time.Now().UTC()
	if ev.Err != nil {
		m.Errors++
	}
	m.Millis.Add(float64(ev.Elapsed) / float64(time.Millisecond))
}

// Sink returns a trace hook feeding this aggregator.
func (a *Aggregator) Sink() rag.TraceSink {
	return a.Record
}

// Snapshot returns a copy of the metrics with stages sorted by name.
func (a *Aggregator) Snapshot() Snapshot {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	snap := Snapshot{Runs: a.runs, Cached: a.cached, Stages: make([]StageMetrics, 0, len(a.stages))}
	for _, m := range a.stages {
		snap.Stages = append(snap.Stages, *m)
	}
	sort.Slice(snap.Stages, func(i, j int) bool { return snap.Stages[i].Stage < snap.Stages[j].Stage })
	return snap
}

// Stage returns the metrics recorded for one stage.
func (a *Aggregator) Stage(stage rag.Stage) (StageMetrics, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	m, ok := a.stages[string(stage)]
	if !ok {
		return StageMetrics{}, false
	}
	return *m, true
}

// Tee fans one stage event out to several sinks.
func Tee(sinks ...rag.TraceSink) rag.TraceSink {
	var active []rag.TraceSink
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(ev rag.StageEvent) {
		for _, s := range active {
			s(ev)
		}
	}
}
