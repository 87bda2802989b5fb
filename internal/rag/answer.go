package rag

import (
	"context"
	"regexp"
	"strings"
)

// NotFoundText is the answer body when nothing was retrieved.
const NotFoundText = "Bilgi bulunamadı."

// AnswerAgent turns ranked hits into a cited answer. With no hits it returns
// the not-found answer. A non-nil error alongside an answer means the answer
// was produced on a degraded path and is still usable.
type AnswerAgent interface {
	Answer(ctx context.Context, question string, hits []ScoredCandidate) (Answer, error)
	Name() string
}

// NotFound returns the fixed answer for questions with no supporting chunk.
func NotFound() Answer {
	return Answer{FinalText: NotFoundText, Citations: []Citation{}}
}

func citeHit(hit ScoredCandidate) []Citation {
	return []Citation{{DocID: hit.DocID, SectionID: SectionIDFor(hit.ChunkID)}}
}

func answerFrom(hit ScoredCandidate, text string) Answer {
	if strings.TrimSpace(text) == "" {
		text = NotFoundText
	}
	return Answer{FinalText: text, Citations: citeHit(hit)}
}

var (
	questionCourseCode = regexp.MustCompile(`([A-Z]{3,4}\s?\d{3,4})`)
	buildingCode       = regexp.MustCompile(`\b[A-Z]{1,2}\d{1,3}\b`)
	titlePrefixes      = []string{"prof", "doç", "dr.", "öğr", "arş", "gör"}
	contactMarkers     = []string{"ofis", "office", "oda", "room", "bina", "e-posta", "@", "tel:", "bs:", "ms:", "phd:"}
	semesterMarkers    = []string{"dönem", "semester", "yarıyıl"}
)

// semesterLookback bounds how far above a course line a semester header is searched.
const semesterLookback = 6

// chunkLines splits text into trimmed lines longer than two characters.
func chunkLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); runeLen(l) > 2 {
			lines = append(lines, l)
		}
	}
	return lines
}

func targetCourseCode(question string) string {
	m := questionCourseCode.FindStringSubmatch(strings.ToUpper(question))
	if m == nil {
		return ""
	}
	return strings.ReplaceAll(m[1], " ", "")
}

func isCourseDoc(docID string) bool {
	doc := Fold(docID)
	return strings.Contains(doc, "ders") || strings.Contains(doc, "plan")
}

func isStaffDoc(docID string) bool {
	doc := Fold(docID)
	return strings.Contains(doc, "akademik") || strings.Contains(doc, "kadro")
}

func isTitleLine(line string) bool {
	l := Fold(line)
	for _, p := range titlePrefixes {
		if strings.HasPrefix(l, p) {
			return true
		}
	}
	return false
}

func isContactLine(line string) bool {
	return containsAny(Fold(line), contactMarkers...) || buildingCode.MatchString(line)
}

func startsWithCode(line, code string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.ReplaceAll(line, " ", "")), code)
}

func findCourseLine(lines []string, code string) int {
	for i, l := range lines {
		if startsWithCode(l, code) {
			return i
		}
	}
	return -1
}

// semesterHeader returns the nearest semester header above line idx.
func semesterHeader(lines []string, idx int) string {
	for k := idx - 1; k >= 0 && k >= idx-semesterLookback; k-- {
		if containsAny(Fold(lines[k]), semesterMarkers...) {
			return lines[k]
		}
	}
	return ""
}

func courseAnswerBody(lines []string, idx int) string {
	if header := semesterHeader(lines, idx); header != "" {
		return header + "\n" + lines[idx]
	}
	return lines[idx]
}
