// Package evaluation scores batch predictions against a gold set.
package evaluation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mwiater/minirag/internal/batch"
	"github.com/mwiater/minirag/internal/metrics"
	"github.com/mwiater/minirag/internal/util"
)

// DefaultK is the cutoff used for coverage when none is given.
const DefaultK = 5

var chunkNumber = regexp.MustCompile(`(?i)Chunk(\d+)`)

// GoldItem is one labelled question.
type GoldItem struct {
	ID              string   `json:"id"`
	Question        string   `json:"question"`
	ExpectedDocIDs  []string `json:"expected_docIds"`
	ExpectedChunkID *int     `json:"expected_chunkId,omitempty"`
}

// ItemResult is the per-question outcome.
type ItemResult struct {
	ID         string `json:"id"`
	TopDoc     string `json:"top_doc"`
	TopSection string `json:"top_section"`
	DocMatch   bool   `json:"doc_match"`
	ChunkMatch *bool  `json:"chunk_match,omitempty"`
	Covered    bool   `json:"covered"`
	Missing    bool   `json:"missing,omitempty"`
}

// LatencyStats summarizes per-question latency in milliseconds.
type LatencyStats struct {
	Count  int64   `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P95    float64 `json:"p95"`
}

// Report is the evaluation output.
type Report struct {
	K             int          `json:"k"`
	Total         int          `json:"total"`
	Answered      int          `json:"answered"`
	Missing       []string     `json:"missing,omitempty"`
	CoverageAtK   float64      `json:"coverage_at_k"`
	Accuracy      float64      `json:"top1_accuracy"`
	ChunkTotal    int          `json:"chunk_total"`
	ChunkAccuracy float64      `json:"chunk_accuracy"`
	Latency       LatencyStats `json:"latency_ms"`
	Items         []ItemResult `json:"items"`
}

// Evaluate scores predictions, keyed by id, against gold. Document ids are
// compared case-insensitively, and an expected id matches any retrieved id
// that contains it.
func Evaluate(preds map[string]batch.Row, gold []GoldItem, k int) Report {
	if k <= 0 {
		k = DefaultK
	}
	report := Report{K: k, Total: len(gold), Items: make([]ItemResult, 0, len(gold))}

	var (
		covered, correct, chunkCorrect int
		latency                        metrics.RunningStat
		samples                        []float64
	)
	for _, g := range gold {
		item := ItemResult{ID: g.ID, TopDoc: "NONE", TopSection: "NONE"}
		if g.ExpectedChunkID != nil {
			report.ChunkTotal++
			miss := false
			item.ChunkMatch = &miss
		}

		pred, ok := preds[g.ID]
		if !ok || pred.Error != "" {
			item.Missing = true
			report.Missing = append(report.Missing, g.ID)
			report.Items = append(report.Items, item)
			continue
		}
		report.Answered++
		latency.Add(float64(pred.LatencyMs))
		samples = append(samples, float64(pred.LatencyMs))

		ranked := rankedDocs(pred)
		if len(ranked) > 0 {
			item.TopDoc = strings.ToLower(ranked[0])
			item.DocMatch = matchesAny(item.TopDoc, g.ExpectedDocIDs)
		}
		if len(pred.Citations) > 0 {
			item.TopSection = pred.Citations[0].SectionID
		}
		for i := 0; i < len(ranked) && i < k; i++ {
			if matchesAny(strings.ToLower(ranked[i]), g.ExpectedDocIDs) {
				item.Covered = true
				break
			}
		}
		if g.ExpectedChunkID != nil && item.DocMatch {
			if m := chunkNumber.FindStringSubmatch(item.TopSection); m != nil {
				if id, err := strconv.Atoi(m[1]); err == nil && id == *g.ExpectedChunkID {
					hit := true
					item.ChunkMatch = &hit
					chunkCorrect++
				}
			}
		}

		if item.Covered {
			covered++
		}
		if item.DocMatch {
			correct++
		}
		report.Items = append(report.Items, item)
	}

	report.CoverageAtK = ratio(covered, report.Total)
	report.Accuracy = ratio(correct, report.Total)
	report.ChunkAccuracy = ratio(chunkCorrect, report.ChunkTotal)
	report.Latency = LatencyStats{
		Count:  latency.Count,
		Mean:   latency.Mean,
		StdDev: latency.StdDev(),
		Min:    latency.Min,
		Max:    latency.Max,
		P95:    percentile(samples, 0.95),
	}
	return report
}

func rankedDocs(row batch.Row) []string {
	if len(row.RankedDocIDs) > 0 {
		return row.RankedDocIDs
	}
	var docs []string
	seen := make(map[string]struct{})
	for _, c := range row.Citations {
		if _, ok := seen[c.DocID]; ok {
			continue
		}
		seen[c.DocID] = struct{}{}
		docs = append(docs, c.DocID)
	}
	return docs
}

func matchesAny(docID string, expected []string) bool {
	for _, e := range expected {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && strings.Contains(docID, e) {
			return true
		}
	}
	return false
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// percentile uses the nearest-rank method.
func percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	return sorted[rank]
}

// LoadGold reads gold items from a JSON Lines file. Items without an id are
// keyed by line number.
func LoadGold(path string) ([]GoldItem, error) {
	var items []GoldItem
	err := eachLine(path, func(lineNo int, line []byte) error {
		var raw struct {
			ID              json.RawMessage `json:"id"`
			Question        string          `json:"question"`
			ExpectedDocIDs  []string        `json:"expected_docIds"`
			ExpectedChunkID *int            `json:"expected_chunkId"`
		}
		if err := json.Unmarshal(line, &raw); err != nil {
			return fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		item := GoldItem{
			ID:              idString(raw.ID, lineNo),
			Question:        raw.Question,
			ExpectedDocIDs:  raw.ExpectedDocIDs,
			ExpectedChunkID: raw.ExpectedChunkID,
		}
		if len(item.ExpectedDocIDs) == 0 {
			return fmt.Errorf("%s line %d: expected_docIds is required", path, lineNo)
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

// LoadPredictions reads batch output rows keyed by id.
func LoadPredictions(path string) (map[string]batch.Row, error) {
	preds := make(map[string]batch.Row)
	err := eachLine(path, func(lineNo int, line []byte) error {
		var row batch.Row
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		if row.ID == "" {
			row.ID = strconv.Itoa(lineNo)
		}
		preds[row.ID] = row
		return nil
	})
	return preds, err
}

// Predict answers the gold questions through runner and returns the rows
// keyed by gold id.
func Predict(ctx context.Context, runner batch.Runner, gold []GoldItem, workers int) (map[string]batch.Row, error) {
	var in bytes.Buffer
	enc := json.NewEncoder(&in)
	for _, g := range gold {
		if err := enc.Encode(map[string]string{"id": g.ID, "question": g.Question}); err != nil {
			return nil, err
		}
	}
	var out bytes.Buffer
	if _, err := batch.Process(ctx, runner, &in, &out, workers); err != nil {
		return nil, err
	}

	preds := make(map[string]batch.Row, len(gold))
	dec := json.NewDecoder(&out)
	for {
		var row batch.Row
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		preds[row.ID] = row
	}
	return preds, nil
}

// WriteReport writes the report as indented JSON.
func WriteReport(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFile(path, append(data, '\n'))
}

func eachLine(path string, fn func(lineNo int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func idString(raw json.RawMessage, lineNo int) string {
	if len(raw) == 0 || string(raw) == "null" {
		return strconv.Itoa(lineNo)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
