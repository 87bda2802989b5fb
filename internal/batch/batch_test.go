package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mwiater/minirag/internal/appconfig"
	"github.com/mwiater/minirag/internal/rag"
)

type slowRunner struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (r *slowRunner) Run(_ context.Context, question string) rag.Result {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	// Earlier questions sleep longer so completion order is reversed.
	delay := time.Duration(10-len(question)) * 2 * time.Millisecond
	if delay > 0 {
		time.Sleep(delay)
	}
	return rag.Result{
		Intent: rag.IntentCourseInfo,
		Answer: rag.Answer{FinalText: "cevap: " + question, Citations: []rag.Citation{{DocID: "docA", SectionID: "Chunk0"}}},
		Hits:   []rag.ScoredCandidate{{DocID: "docA"}, {DocID: "docB"}, {DocID: "docA"}},
	}
}

func decodeRows(t *testing.T, data []byte) []Row {
	t.Helper()
	var rows []Row
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var row Row
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("decode row: %v", err)
		}
		rows = append(rows, row)
	}
	return rows
}

func TestProcessKeepsInputOrder(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"q1","question":"a"}`,
		`{"id":2,"q":"bb"}`,
		``,
		`{"question":"ccc"}`,
		`{"id":"q4","question":"dddd"}`,
	}, "\n")

	runner := &slowRunner{}
	var out bytes.Buffer
	summary, err := Process(context.Background(), runner, strings.NewReader(input), &out, 3)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if summary.Rows != 4 || summary.Invalid != 0 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if runner.peak.Load() > 3 {
		t.Fatalf("worker limit exceeded: %d", runner.peak.Load())
	}

	rows := decodeRows(t, out.Bytes())
	wantIDs := []string{"q1", "2", "4", "q4"}
	for i, row := range rows {
		if row.ID != wantIDs[i] {
			t.Fatalf("row %d id = %q, want %q", i, row.ID, wantIDs[i])
		}
	}
	if rows[1].Question != "bb" || rows[1].Answer != "cevap: bb" {
		t.Fatalf("unexpected row %#v", rows[1])
	}
	if got := strings.Join(rows[0].RankedDocIDs, ","); got != "docA,docB" {
		t.Fatalf("rankedDocIds = %s", got)
	}
	if rows[0].Intent != "COURSE_INFO" {
		t.Fatalf("intent = %s", rows[0].Intent)
	}
}

func TestProcessRejectsInvalidRows(t *testing.T) {
	input := strings.Join([]string{
		`not json`,
		`{"id":"x","question":""}`,
		`{"id":"y","text":"soru"}`,
		`{"id":"z","question":"geçerli"}`,
	}, "\n")

	var out bytes.Buffer
	summary, err := Process(context.Background(), &slowRunner{}, strings.NewReader(input), &out, 2)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if summary.Rows != 4 || summary.Invalid != 3 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	rows := decodeRows(t, out.Bytes())
	if rows[0].ID != "1" || !strings.Contains(rows[0].Error, "invalid JSON") {
		t.Fatalf("unexpected first row %#v", rows[0])
	}
	if rows[1].ID != "x" || rows[1].Error == "" {
		t.Fatalf("expected schema error for empty question, got %#v", rows[1])
	}
	if rows[2].ID != "y" || rows[2].Error == "" {
		t.Fatalf("expected schema error for missing question, got %#v", rows[2])
	}
	if rows[3].Error != "" || rows[3].Answer == "" {
		t.Fatalf("expected answered row, got %#v", rows[3])
	}
}

func TestProcessFileWithPipeline(t *testing.T) {
	cfg := appconfig.Default()
	table := rag.NewChunkTable([]rag.Chunk{{DocID: "docA", ChunkID: 0, RawText: "CSE3063 dersi"}})
	p, err := rag.NewPipeline(&cfg, table, rag.IndexChunks(table.All()), rag.HashingEmbedder{})
	if err != nil {
		t.Fatalf("NewPipeline error: %v", err)
	}

	dir := t.TempDir()
	in := filepath.Join(dir, "questions.jsonl")
	out := filepath.Join(dir, "out", "answers.jsonl")
	if err := os.WriteFile(in, []byte(`{"id":"1","question":"CSE3063 nedir?"}`+"\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if _, err := ProcessFile(context.Background(), p, in, out, 2); err != nil {
		t.Fatalf("ProcessFile error: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	rows := decodeRows(t, raw)
	if len(rows) != 1 || rows[0].Answer != "CSE3063 dersi" || rows[0].Citations[0].DocID != "docA" {
		t.Fatalf("unexpected rows %#v", rows)
	}
}
