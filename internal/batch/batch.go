// Package batch answers a JSON Lines file of questions with a bounded worker
// pool.
package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/errgroup"

	"github.com/mwiater/minirag/internal/logging"
	"github.com/mwiater/minirag/internal/rag"
)

// rowSchema accepts {"id": string|integer, "question"|"q": string}.
var rowSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"properties": {
		"id": {"type": ["string", "integer"]},
		"question": {"type": "string", "minLength": 1},
		"q": {"type": "string", "minLength": 1}
	},
	"anyOf": [
		{"required": ["question"]},
		{"required": ["q"]}
	]
}`)

// Runner runs questions through a pipeline.
type Runner interface {
	Run(ctx context.Context, question string) rag.Result
}

// Row is one output line.
type Row struct {
	ID           string         `json:"id"`
	Question     string         `json:"question"`
	Answer       string         `json:"answer"`
	Citations    []rag.Citation `json:"citations"`
	RankedDocIDs []string       `json:"rankedDocIds"`
	Intent       string         `json:"intent,omitempty"`
	LatencyMs    int64          `json:"latency_ms"`
	Error        string         `json:"error,omitempty"`
}

// Summary describes a finished batch.
type Summary struct {
	Rows     int
	Invalid  int
	Degraded int
	Elapsed  time.Duration
}

type inputRow struct {
	Question string `json:"question"`
	Q        string `json:"q"`
}

type job struct {
	line     int
	id       string
	question string
	err      error
}

// Process reads questions from in and writes one row per non-blank input
// line to out, in input order. Rows that fail validation are written with
// an error instead of aborting the batch.
func Process(ctx context.Context, runner Runner, in io.Reader, out io.Writer, workers int) (Summary, error) {
	start := time.Now()
	if workers <= 0 {
		workers = 1
	}

	jobs, err := readJobs(in)
	if err != nil {
		return Summary{}, err
	}

	rows := make([]Row, len(jobs))
	degraded := make([]bool, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, j := range jobs {
		if j.err != nil {
			rows[i] = Row{ID: j.id, Question: j.question, Citations: []rag.Citation{}, RankedDocIDs: []string{}, Error: j.err.Error()}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t0 := time.Now()
			res := runner.Run(gctx, j.question)
			rows[i] = Row{
				ID:           j.id,
				Question:     j.question,
				Answer:       res.Answer.FinalText,
				Citations:    res.Answer.Citations,
				RankedDocIDs: res.RankedDocIDs(),
				Intent:       string(res.Intent),
				LatencyMs:    time.Since(t0).Milliseconds(),
			}
			if rows[i].Citations == nil {
				rows[i].Citations = []rag.Citation{}
			}
			if rows[i].RankedDocIDs == nil {
				rows[i].RankedDocIDs = []string{}
			}
			degraded[i] = len(res.Fallbacks) > 0
			logging.Debugf("batch: line %d id=%s run=%s intent=%s", j.line, j.id, res.RunID, res.Intent)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	summary := Summary{Rows: len(rows)}
	for i, row := range rows {
		if row.Error != "" {
			summary.Invalid++
		}
		if degraded[i] {
			summary.Degraded++
		}
		if err := enc.Encode(row); err != nil {
			return summary, fmt.Errorf("write row %s: %w", row.ID, err)
		}
	}
	summary.Elapsed = time.Since(start)
	return summary, nil
}

// ProcessFile runs Process from inPath to outPath, creating the output
// directory when needed.
func ProcessFile(ctx context.Context, runner Runner, inPath, outPath string, workers int) (Summary, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return Summary{}, fmt.Errorf("open batch input: %w", err)
	}
	defer in.Close()

	if dir := filepath.Dir(outPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Summary{}, fmt.Errorf("create output directory: %w", err)
		}
	}
	out, err := os.Create(outPath)
	if err != nil {
		return Summary{}, fmt.Errorf("create batch output: %w", err)
	}
	w := bufio.NewWriter(out)
	summary, err := Process(ctx, runner, in, w, workers)
	if err != nil {
		out.Close()
		return summary, err
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return summary, err
	}
	return summary, out.Close()
}

func readJobs(in io.Reader) ([]job, error) {
	var jobs []job
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		jobs = append(jobs, parseLine(lineNo, line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch input: %w", err)
	}
	return jobs, nil
}

func parseLine(lineNo int, line []byte) job {
	j := job{line: lineNo, id: strconv.Itoa(lineNo)}
	if !json.Valid(line) {
		j.err = fmt.Errorf("line %d: invalid JSON", lineNo)
		return j
	}

	var idOnly struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(line, &idOnly); err == nil {
		if id := rowID(idOnly.ID); id != "" {
			j.id = id
		}
	}
	if err := validateRow(line); err != nil {
		j.err = fmt.Errorf("line %d: %v", lineNo, err)
		return j
	}

	var row inputRow
	if err := json.Unmarshal(line, &row); err != nil {
		j.err = fmt.Errorf("line %d: %v", lineNo, err)
		return j
	}
	j.question = row.Question
	if j.question == "" {
		j.question = row.Q
	}
	return j
}

func rowID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func validateRow(line []byte) error {
	result, err := gojsonschema.Validate(rowSchema, gojsonschema.NewBytesLoader(line))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("row failed validation: %s", strings.Join(details, "; "))
}
