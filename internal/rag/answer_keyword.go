package rag

import (
	"context"
	"strings"
)

// KeywordAnswerAgent extracts answers by exact pattern matches.
type KeywordAnswerAgent struct{}

func (KeywordAnswerAgent) Name() string { return "keyword" }

// Answer picks the course line named by the question in course plans, the
// first person and their contact lines in staff directories, and otherwise
// returns the whole top chunk.
func (KeywordAnswerAgent) Answer(_ context.Context, question string, hits []ScoredCandidate) (Answer, error) {
	if len(hits) == 0 {
		return NotFound(), nil
	}
	best := hits[0]
	lines := chunkLines(best.Text)

	if isCourseDoc(best.DocID) {
		if code := targetCourseCode(question); code != "" {
			if idx := findCourseLine(lines, code); idx >= 0 {
				return answerFrom(best, courseAnswerBody(lines, idx)), nil
			}
		}
	}

	if isStaffDoc(best.DocID) {
		for i, line := range lines {
			if !isTitleLine(line) {
				continue
			}
			info := []string{line}
			for _, next := range lines[i+1:] {
				if isTitleLine(next) {
					break
				}
				if isContactLine(next) {
					info = append(info, next)
				}
			}
			return answerFrom(best, strings.Join(info, "\n")), nil
		}
	}

	return answerFrom(best, best.Text), nil
}
