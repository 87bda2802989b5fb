package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mwiater/minirag/internal/logging"
	"github.com/mwiater/minirag/internal/util"
)

// ErrEmptyQuestion is recorded when Run receives a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// Stage names one step of a pipeline run.
type Stage string

const (
	StageCache    Stage = "CACHE"
	StageIntent   Stage = "INTENT"
	StageQuery    Stage = "QUERY"
	StageRetrieve Stage = "RETRIEVE"
	StageRerank   Stage = "RERANK"
	StageAnswer   Stage = "ANSWER"
	StageEnd      Stage = "END"
)

// StageEvent is handed to the trace sink after each stage.
type StageEvent struct {
	RunID   string
	Stage   Stage
	Input   string
	Output  string
	Elapsed time.Duration
	Err     error
}

// TraceSink receives stage events. It is called synchronously from Run and
// must be safe for concurrent use when Run is.
type TraceSink func(StageEvent)

// StageError is a stage failure that was replaced by the stage's neutral
// fallback.
type StageError struct {
	Stage Stage
	Err   error
}

func (e StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e StageError) Unwrap() error { return e.Err }

// AnswerCache stores answers by question.
type AnswerCache interface {
	Get(question string) (Answer, bool)
	Put(question string, answer Answer) error
}

// Result is the outcome of one pipeline run. Fallbacks lists every stage
// whose failure was masked; an empty list means the run was clean.
type Result struct {
	RunID     string            `json:"runId"`
	Question  string            `json:"question"`
	Answer    Answer            `json:"answer"`
	Intent    Intent            `json:"intent"`
	Terms     []string          `json:"terms"`
	Hits      []ScoredCandidate `json:"hits"`
	Fallbacks []StageError      `json:"-"`
	Cached    bool              `json:"cached"`
	Elapsed   time.Duration     `json:"elapsed"`
}

// Err joins the masked stage failures, or returns nil.
func (r Result) Err() error {
	errs := make([]error, 0, len(r.Fallbacks))
	for _, f := range r.Fallbacks {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// RankedDocIDs returns the distinct document ids of the hits in rank order,
// falling back to the citations when no hits are available.
func (r Result) RankedDocIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, h := range r.Hits {
		add(h.DocID)
	}
	if len(ids) == 0 {
		for _, c := range r.Answer.Citations {
			add(c.DocID)
		}
	}
	return ids
}

// Pipeline runs Intent, Query, Retrieve, Rerank and Answer in order over a
// read-only index. It is safe for concurrent use.
type Pipeline struct {
	detector  *IntentDetector
	writer    QueryWriter
	retriever Retriever
	reranker  Reranker
	agent     AnswerAgent
	index     *KeywordIndex
	cache     AnswerCache
	sink      TraceSink
}

// Ask runs the pipeline and returns only the answer.
func (p *Pipeline) Ask(ctx context.Context, question string) Answer {
	return p.Run(ctx, question).Answer
}

// Run answers one question. Stage failures never abort the run: each is
// replaced by its fallback and recorded in Result.Fallbacks.
func (p *Pipeline) Run(ctx context.Context, question string) (res Result) {
	start := time.Now()
	res = Result{
		RunID:    uuid.NewString(),
		Question: question,
		Intent:   IntentUnknown,
		Terms:    []string{},
		Hits:     []ScoredCandidate{},
		Answer:   NotFound(),
	}
	defer func() {
		res.Elapsed = time.Since(start)
	}()

	q := strings.TrimSpace(question)
	if q == "" {
		res.Fallbacks = append(res.Fallbacks, StageError{Stage: StageIntent, Err: ErrEmptyQuestion})
		p.emit(res.RunID, StageEnd, "", "empty question", time.Since(start), ErrEmptyQuestion)
		return res
	}

	if p.cache != nil {
		t := time.Now()
		if cached, ok := p.cache.Get(q); ok {
			res.Answer = cached
			res.Cached = true
			p.emit(res.RunID, StageCache, q, "hit", time.Since(t), nil)
			p.emit(res.RunID, StageEnd, "Pipeline completed", fmt.Sprintf("Total=%dms", time.Since(start).Milliseconds()), time.Since(start), nil)
			return res
		}
	}

	t := time.Now()
	intent, err := p.detector.Detect(q)
	if err != nil {
		res.Fallbacks = append(res.Fallbacks, StageError{Stage: StageIntent, Err: err})
	}
	res.Intent = intent
	p.emit(res.RunID, StageIntent, q, string(intent), time.Since(t), err)

	t = time.Now()
	res.Terms = p.writer.Write(q, intent)
	p.emit(res.RunID, StageQuery, q, fmt.Sprint(res.Terms), time.Since(t), nil)

	t = time.Now()
	candidates := p.retriever.Retrieve(res.Terms, p.index)
	p.emit(res.RunID, StageRetrieve, fmt.Sprint(res.Terms), fmt.Sprintf("%d hits", len(candidates)), time.Since(t), nil)

	t = time.Now()
	reranked := p.reranker.Rerank(ctx, res.Terms, candidates)
	res.Hits = reranked.Hits
	rerankErr := reranked.Err()
	if rerankErr != nil {
		res.Fallbacks = append(res.Fallbacks, StageError{Stage: StageRerank, Err: rerankErr})
	}
	best := 0.0
	if len(res.Hits) > 0 {
		best = res.Hits[0].Score
	}
	p.emit(res.RunID, StageRerank, fmt.Sprint(res.Terms), fmt.Sprintf("best=%.2f", best), time.Since(t), rerankErr)

	t = time.Now()
	answer, err := p.agent.Answer(ctx, q, res.Hits)
	if err != nil {
		res.Fallbacks = append(res.Fallbacks, StageError{Stage: StageAnswer, Err: err})
	}
	if answer.FinalText == "" {
		answer = NotFound()
	}
	res.Answer = answer
	p.emit(res.RunID, StageAnswer, q, util.TruncateRunes(answer.FinalText, 80), time.Since(t), err)

	if p.cache != nil && len(res.Fallbacks) == 0 {
		if err := p.cache.Put(q, answer); err != nil {
			res.Fallbacks = append(res.Fallbacks, StageError{Stage: StageCache, Err: err})
		}
	}

	total := time.Since(start)
	p.emit(res.RunID, StageEnd, "Pipeline completed", fmt.Sprintf("Total=%dms", total.Milliseconds()), total, res.Err())
	return res
}

func (p *Pipeline) emit(runID string, stage Stage, input, output string, elapsed time.Duration, err error) {
	if logging.DebugEnabled() {
		logging.LogStage(runID, string(stage), elapsed, output, err)
	}
	if p.sink == nil {
		return
	}
	p.sink(StageEvent{RunID: runID, Stage: stage, Input: input, Output: output, Elapsed: elapsed, Err: err})
}
