package rag

import (
	"context"
	"errors"
	"strings"
)

const (
	windowBefore = 2
	windowAfter  = 8
	shortLine    = 4
)

var (
	structuralMarkers = []string{"MADDE", "Yönerge", "Önkoşul"}
	locationCues      = []string{"nerede", "ofis", "oda"}
	locationMarkers   = []string{"ofis", "office", "m2", "bina"}
	mailCues          = []string{"mail", "e-posta", "iletişim"}
	terminalPunct     = ".:;?!"
)

// VectorAnswerAgent selects the line closest to the question in embedding
// space and returns it with a filtered window of surrounding lines.
type VectorAnswerAgent struct {
	Embedder Embedder
}

func (a VectorAnswerAgent) Name() string { return "vector" }

func (a VectorAnswerAgent) Answer(ctx context.Context, question string, hits []ScoredCandidate) (Answer, error) {
	if len(hits) == 0 {
		return NotFound(), nil
	}
	best := hits[0]
	lines := chunkLines(best.Text)
	if len(lines) == 0 {
		return answerFrom(best, best.Text), nil
	}

	idx, found := strictLine(question, best.DocID, lines)
	var degraded error
	if !found {
		idx, degraded = a.closestLine(ctx, question, lines)
	}

	start := max(0, idx-windowBefore)
	end := min(len(lines), idx+windowAfter)
	window := append([]string(nil), lines[start:end]...)

	if isStaffDoc(best.DocID) {
		if text, ok := staffFocus(question, window); ok {
			return answerFrom(best, text), degraded
		}
	}

	if last := window[len(window)-1]; !strings.ContainsAny(last[len(last)-1:], terminalPunct) && end < len(lines) {
		window = append(window, lines[end])
	}

	filtered := relevantLines(question, window)
	if len(filtered) == 0 {
		filtered = window
	}
	return answerFrom(best, strings.Join(filtered, "\n")), degraded
}

// strictLine finds a line by course code or by a staff title line naming a
// word from the question.
func strictLine(question, docID string, lines []string) (int, bool) {
	if isCourseDoc(docID) {
		if code := targetCourseCode(question); code != "" {
			if idx := findCourseLine(lines, code); idx >= 0 {
				return idx, true
			}
		}
	}
	if isStaffDoc(docID) {
		words := strings.Fields(Fold(question))
		for i, line := range lines {
			if !isTitleLine(line) {
				continue
			}
			folded := Fold(line)
			for _, w := range words {
				if runeLen(w) > 3 && strings.Contains(folded, w) {
					return i, true
				}
			}
		}
	}
	return 0, false
}

// closestLine returns the index of the line most similar to the question.
// Ties keep the first line. Embedding failures leave index 0 or skip the line.
func (a VectorAnswerAgent) closestLine(ctx context.Context, question string, lines []string) (int, error) {
	embedder := a.Embedder
	if embedder == nil {
		embedder = InertEmbedder{}
	}
	qvec, err := embedder.Embed(ctx, question)
	if err != nil {
		return 0, err
	}
	var errs []error
	bestIdx, bestScore := 0, -1.0
	for i, line := range lines {
		vec, err := embedder.Embed(ctx, line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if s := CosineSimilarity(qvec, vec); s > bestScore {
			bestIdx, bestScore = i, s
		}
	}
	return bestIdx, errors.Join(errs...)
}

// staffFocus narrows a staff window to the name line plus location or e-mail
// lines when the question asks for one of them.
func staffFocus(question string, window []string) (string, bool) {
	q := Fold(question)
	var out []string
	for _, l := range window {
		if isTitleLine(l) {
			out = append(out, l)
			break
		}
	}

	found := false
	switch {
	case containsAny(q, locationCues...):
		for _, l := range window {
			if containsAny(Fold(l), locationMarkers...) {
				out = append(out, l)
				found = true
			}
		}
	case containsAny(q, mailCues...):
		for _, l := range window {
			if strings.Contains(l, "@") {
				out = append(out, l)
				found = true
			}
		}
	}
	if !found {
		return "", false
	}
	return strings.Join(out, "\n"), true
}

// relevantLines keeps lines with a structural marker, a shared content token
// with the question, or fewer than four words.
func relevantLines(question string, window []string) []string {
	qTokens := make(map[string]struct{})
	for _, t := range Tokenize(question) {
		if !IsStopWord(t) {
			qTokens[t] = struct{}{}
		}
	}

	var out []string
	for _, line := range window {
		if containsAny(line, structuralMarkers...) || len(strings.Fields(line)) < shortLine {
			out = append(out, line)
			continue
		}
		for _, t := range Tokenize(line) {
			if _, ok := qTokens[t]; ok {
				out = append(out, line)
				break
			}
		}
	}
	return out
}
