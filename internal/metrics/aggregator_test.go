package metrics

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwiater/minirag/internal/rag"
)

func TestRunningStatWelford(t *testing.T) {
	var rs RunningStat
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		rs.Add(v)
	}
	if rs.Count != 8 || rs.Mean != 5 || rs.Min != 2 || rs.Max != 9 {
		t.Fatalf("unexpected stat %#v", rs)
	}
	if got := rs.StdDev(); math.Abs(got-2.13809) > 1e-4 {
		t.Fatalf("StdDev = %v", got)
	}
	var single RunningStat
	single.Add(3)
	if single.StdDev() != 0 {
		t.Fatalf("single value should have zero deviation")
	}
}

func TestAggregatorRecordAndPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "stage_metrics.json")
	agg := NewAggregator(path)
	sink := agg.Sink()

	sink(rag.StageEvent{Stage: rag.StageRetrieve, Elapsed: 2 * time.Millisecond})
	sink(rag.StageEvent{Stage: rag.StageRetrieve, Elapsed: 4 * time.Millisecond})
	sink(rag.StageEvent{Stage: rag.StageRerank, Elapsed: time.Millisecond, Err: errors.New("embed failed")})
	sink(rag.StageEvent{Stage: rag.StageCache})
	sink(rag.StageEvent{Stage: rag.StageEnd, Elapsed: 9 * time.Millisecond})

	m, ok := agg.Stage(rag.StageRetrieve)
	if !ok || m.Millis.Count != 2 || m.Millis.Mean != 3 {
		t.Fatalf("unexpected retrieve metrics %#v", m)
	}
	if m, _ := agg.Stage(rag.StageRerank); m.Errors != 1 {
		t.Fatalf("expected one rerank error, got %d", m.Errors)
	}
	if err := agg.Save(); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	reloaded := NewAggregator(path)
	snap := reloaded.Snapshot()
	if snap.Runs != 1 || snap.Cached != 1 || len(snap.Stages) != 4 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
	if snap.Stages[0].Stage != "CACHE" {
		t.Fatalf("stages should be sorted, got %s first", snap.Stages[0].Stage)
	}
}

func TestTee(t *testing.T) {
	if Tee(nil, nil) != nil {
		t.Fatalf("expected nil sink when nothing is active")
	}
	var a, b int
	sink := Tee(func(rag.StageEvent) { a++ }, nil, func(rag.StageEvent) { b++ })
	sink(rag.StageEvent{Stage: rag.StageEnd})
	if a != 1 || b != 1 {
		t.Fatalf("expected both sinks called, got %d %d", a, b)
	}
}
