package evaluation

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mwiater/minirag/internal/appconfig"
	"github.com/mwiater/minirag/internal/batch"
	"github.com/mwiater/minirag/internal/rag"
)

func intPtr(v int) *int { return &v }

func TestEvaluateMetrics(t *testing.T) {
	gold := []GoldItem{
		{ID: "1", ExpectedDocIDs: []string{"ders_plani"}, ExpectedChunkID: intPtr(3)},
		{ID: "2", ExpectedDocIDs: []string{"akademik_kadro"}},
		{ID: "3", ExpectedDocIDs: []string{"Yonetmelik"}},
		{ID: "4", ExpectedDocIDs: []string{"staj"}},
	}
	preds := map[string]batch.Row{
		"1": {
			ID:           "1",
			RankedDocIDs: []string{"ders_plani", "akademik_kadro"},
			Citations:    []rag.Citation{{DocID: "ders_plani", SectionID: "Chunk3"}},
			LatencyMs:    10,
		},
		"2": {
			ID:           "2",
			RankedDocIDs: []string{"ders_plani", "akademik_kadro"},
			Citations:    []rag.Citation{{DocID: "ders_plani", SectionID: "Chunk0"}},
			LatencyMs:    20,
		},
		"3": {
			ID:        "3",
			Citations: []rag.Citation{{DocID: "lisans_yonetmelik", SectionID: "Chunk1"}},
			LatencyMs: 30,
		},
	}

	r := Evaluate(preds, gold, 5)
	if r.Total != 4 || r.Answered != 3 {
		t.Fatalf("unexpected totals %#v", r)
	}
	if r.CoverageAtK != 0.75 {
		t.Fatalf("coverage = %v", r.CoverageAtK)
	}
	if r.Accuracy != 0.5 {
		t.Fatalf("accuracy = %v", r.Accuracy)
	}
	if r.ChunkTotal != 1 || r.ChunkAccuracy != 1 {
		t.Fatalf("chunk accuracy = %v of %d", r.ChunkAccuracy, r.ChunkTotal)
	}
	if len(r.Missing) != 1 || r.Missing[0] != "4" {
		t.Fatalf("missing = %#v", r.Missing)
	}
	if r.Latency.Count != 3 || r.Latency.Mean != 20 || r.Latency.Min != 10 || r.Latency.Max != 30 || r.Latency.P95 != 30 {
		t.Fatalf("unexpected latency %#v", r.Latency)
	}
	if math.Abs(r.Latency.StdDev-10) > 1e-9 {
		t.Fatalf("stddev = %v", r.Latency.StdDev)
	}
}

func TestEvaluateCoverageCutoff(t *testing.T) {
	gold := []GoldItem{{ID: "1", ExpectedDocIDs: []string{"c"}}}
	preds := map[string]batch.Row{"1": {ID: "1", RankedDocIDs: []string{"a", "b", "c"}}}
	if r := Evaluate(preds, gold, 2); r.CoverageAtK != 0 {
		t.Fatalf("c is outside the top 2, coverage = %v", r.CoverageAtK)
	}
	if r := Evaluate(preds, gold, 3); r.CoverageAtK != 1 {
		t.Fatalf("c is inside the top 3, coverage = %v", r.CoverageAtK)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	samples := make([]float64, 0, 20)
	for i := 20; i >= 1; i-- {
		samples = append(samples, float64(i))
	}
	if got := percentile(samples, 0.95); got != 19 {
		t.Fatalf("p95 = %v", got)
	}
	if got := percentile(nil, 0.95); got != 0 {
		t.Fatalf("empty p95 = %v", got)
	}
}

func TestLoadFilesAndWriteReport(t *testing.T) {
	dir := t.TempDir()
	goldPath := filepath.Join(dir, "gold.jsonl")
	predPath := filepath.Join(dir, "pred.jsonl")
	gold := strings.Join([]string{
		`{"id":1,"question":"CSE3063 nedir?","expected_docIds":["docA"],"expected_chunkId":0}`,
		`{"question":"staj","expected_docIds":["docB"]}`,
	}, "\n")
	pred := `{"id":"1","question":"CSE3063 nedir?","answer":"x","citations":[{"docId":"docA","sectionId":"Chunk0","startOffset":0,"endOffset":0}],"rankedDocIds":["docA"],"latency_ms":4}`
	if err := os.WriteFile(goldPath, []byte(gold), 0o644); err != nil {
		t.Fatalf("write gold: %v", err)
	}
	if err := os.WriteFile(predPath, []byte(pred), 0o644); err != nil {
		t.Fatalf("write pred: %v", err)
	}

	items, err := LoadGold(goldPath)
	if err != nil {
		t.Fatalf("LoadGold error: %v", err)
	}
	if items[0].ID != "1" || items[1].ID != "2" || *items[0].ExpectedChunkID != 0 {
		t.Fatalf("unexpected gold %#v", items)
	}
	preds, err := LoadPredictions(predPath)
	if err != nil {
		t.Fatalf("LoadPredictions error: %v", err)
	}
	r := Evaluate(preds, items, 5)
	if r.Accuracy != 0.5 || r.ChunkAccuracy != 1 {
		t.Fatalf("unexpected report %#v", r)
	}

	out := filepath.Join(dir, "reports", "eval.json")
	if err := WriteReport(out, r); err != nil {
		t.Fatalf("WriteReport error: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded["top1_accuracy"] != 0.5 {
		t.Fatalf("unexpected report json %s", raw)
	}
}

func TestLoadGoldRequiresExpectedDocs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gold.jsonl")
	if err := os.WriteFile(path, []byte(`{"id":"1","question":"x"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadGold(path); err == nil {
		t.Fatalf("expected an error for missing expected_docIds")
	}
}

func TestPredictRunsPipeline(t *testing.T) {
	cfg := appconfig.Default()
	table := rag.NewChunkTable([]rag.Chunk{{DocID: "docA", ChunkID: 0, RawText: "CSE3063 dersi"}})
	p, err := rag.NewPipeline(&cfg, table, rag.IndexChunks(table.All()), rag.HashingEmbedder{})
	if err != nil {
		t.Fatalf("NewPipeline error: %v", err)
	}
	gold := []GoldItem{{ID: "g1", Question: "CSE3063 nedir?", ExpectedDocIDs: []string{"docA"}, ExpectedChunkID: intPtr(0)}}
	preds, err := Predict(context.Background(), p, gold, 2)
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	r := Evaluate(preds, gold, 5)
	if r.Accuracy != 1 || r.CoverageAtK != 1 || r.ChunkAccuracy != 1 {
		t.Fatalf("unexpected report %#v", r)
	}
}
