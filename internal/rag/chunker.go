package rag

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/mwiater/minirag/internal/logging"
)

// Category selects the splitting strategy for a document.
type Category string

const (
	CategoryDiscipline Category = "discipline"
	CategoryStaff      Category = "staff"
	CategoryCourse     Category = "course"
	CategoryRegulation Category = "regulation"
	CategoryGeneric    Category = "generic"
)

// subChunkMinChars drops sliding-window fragments that carry no content.
const subChunkMinChars = 20

var (
	staffMarker      = regexp.MustCompile(`(?:^|[^\p{L}])((?:Prof|Doç|Dr|Öğr|Arş|Res)\.)`)
	titleOnly        = regexp.MustCompile(`^(?:(?:Prof|Doç|Dr|Öğr|Arş|Res|Gör|Üyesi)\.?\s*)*$`)
	courseMarker     = regexp.MustCompile(`(?m)^[A-Z]{2,4}[ \t]*\d{3,4}`)
	articleMarker    = regexp.MustCompile(`(?m)^MADDE\s+\d+`)
	disciplineMarker = regexp.MustCompile(`(?m)^(?:[A-ZİĞÜŞÖÇ ]+cezasını gerektiren|MADDE\s+\d+|[A-ZİĞÜŞÖÇ]+\s+BÖLÜM)`)
	paragraphBreak   = regexp.MustCompile(`\n[ \t]*\n`)
)

// DetectCategory picks a chunking strategy from filename conventions.
func DetectCategory(filename string) Category {
	name := Fold(filepath.Base(filename))
	switch {
	case strings.Contains(name, "disiplin"):
		return CategoryDiscipline
	case containsAny(name, "akademik", "kadro", "staff"):
		return CategoryStaff
	case containsAny(name, "ders", "plan", "course"):
		return CategoryCourse
	case containsAny(name, "yönetmeli", "yönerge", "mevzuat", "sınav", "regulation"):
		return CategoryRegulation
	}
	return CategoryGeneric
}

// Segment is a trimmed span of a document with its byte offsets.
type Segment struct {
	Text  string
	Start int
	End   int
}

// Chunker turns raw documents into bounded chunks.
type Chunker struct {
	MaxChars     int
	OverlapChars int
	Embedder     Embedder
}

// NewChunker returns a chunker. A nil embedder yields chunks without vectors.
func NewChunker(maxChars, overlapChars int, embedder Embedder) *Chunker {
	if maxChars <= 0 {
		maxChars = 1000
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		overlapChars = 0
	}
	return &Chunker{MaxChars: maxChars, OverlapChars: overlapChars, Embedder: embedder}
}

// Chunk splits one document into ordered chunks with ids starting at 0.
func (c *Chunker) Chunk(ctx context.Context, docID, filename, content string) []Chunk {
	segments := c.Split(DetectCategory(filename), content)
	chunks := make([]Chunk, 0, len(segments))
	for i, seg := range segments {
		chunk := Chunk{
			DocID:       docID,
			ChunkID:     i,
			RawText:     seg.Text,
			StartOffset: seg.Start,
			EndOffset:   seg.End,
			SectionID:   articleMarker.FindString(seg.Text),
		}
		if c.Embedder != nil {
			vec, err := c.Embedder.Embed(ctx, seg.Text)
			if err != nil {
				logging.LogEvent("[RAG] embed %s chunk %d failed: %v", docID, i, err)
			} else {
				chunk.Embedding = vec
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Split applies the category's boundary rules and then the length limit.
func (c *Chunker) Split(category Category, content string) []Segment {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var (
		segments []Segment
		minChars int
	)
	switch category {
	case CategoryStaff:
		segments, minChars = splitStaff(content), 20
	case CategoryCourse:
		segments, minChars = splitBefore(content, courseMarker), 10
	case CategoryDiscipline:
		segments, minChars = splitBefore(content, disciplineMarker), 10
	case CategoryRegulation:
		segments, minChars = splitBefore(content, articleMarker), 30
	default:
		segments, minChars = splitParagraphs(content), 10
	}

	var out []Segment
	for _, seg := range segments {
		if runeLen(seg.Text) <= minChars {
			continue
		}
		out = append(out, EnforceMaxLength(seg, c.MaxChars, c.OverlapChars)...)
	}
	return out
}

func splitBefore(content string, marker *regexp.Regexp) []Segment {
	var cuts []int
	for _, loc := range marker.FindAllStringIndex(content, -1) {
		cuts = append(cuts, loc[0])
	}
	return cutAt(content, cuts)
}

// splitStaff cuts before each academic title, treating a run of titles such
// as "Prof. Dr." as a single boundary.
func splitStaff(content string) []Segment {
	var cuts []int
	last := 0
	for _, loc := range staffMarker.FindAllStringSubmatchIndex(content, -1) {
		pos := loc[2]
		if pos > last && titleOnly.MatchString(strings.TrimSpace(content[last:pos])) {
			continue
		}
		cuts = append(cuts, pos)
		last = pos
	}
	return cutAt(content, cuts)
}

func splitParagraphs(content string) []Segment {
	var segments []Segment
	start := 0
	for _, loc := range paragraphBreak.FindAllStringIndex(content, -1) {
		if seg, ok := trimSegment(content[start:loc[0]], start); ok {
			segments = append(segments, seg)
		}
		start = loc[1]
	}
	if seg, ok := trimSegment(content[start:], start); ok {
		segments = append(segments, seg)
	}
	return segments
}

func cutAt(content string, cuts []int) []Segment {
	var segments []Segment
	start := 0
	for _, cut := range cuts {
		if cut <= start {
			continue
		}
		if seg, ok := trimSegment(content[start:cut], start); ok {
			segments = append(segments, seg)
		}
		start = cut
	}
	if seg, ok := trimSegment(content[start:], start); ok {
		segments = append(segments, seg)
	}
	return segments
}

func trimSegment(text string, offset int) (Segment, bool) {
	left := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Segment{}, false
	}
	start := offset + left
	return Segment{Text: trimmed, Start: start, End: start + len(trimmed)}, true
}

// EnforceMaxLength splits a segment longer than maxChars characters with a
// sliding window. Each window ends at the last whitespace before the limit and
// the next one starts overlapChars characters earlier, moved back to a word
// start. Fragments of 20 characters or fewer are dropped.
func EnforceMaxLength(seg Segment, maxChars, overlapChars int) []Segment {
	runes := []rune(seg.Text)
	n := len(runes)
	if maxChars <= 0 || n <= maxChars {
		return []Segment{seg}
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		overlapChars = 0
	}

	byteAt := make([]int, n+1)
	for i, r := range runes {
		byteAt[i+1] = byteAt[i] + len(string(r))
	}

	var out []Segment
	start := 0
	for start < n {
		end := start + maxChars
		if end > n {
			end = n
		}
		if end < n {
			if safe := lastSpace(runes, start, end); safe > start {
				end = safe
			}
		}

		if sub, ok := trimSegment(seg.Text[byteAt[start]:byteAt[end]], seg.Start+byteAt[start]); ok && runeLen(sub.Text) > subChunkMinChars {
			out = append(out, sub)
		}
		if end == n {
			break
		}

		next := wordStart(runes, start, end-overlapChars, end)
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// lastSpace returns the index of the last whitespace rune in runes[from:to], or -1.
func lastSpace(runes []rune, from, to int) int {
	for i := to - 1; i >= from; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return -1
}

// wordStart moves pos back to the start of the word it falls in, staying
// after floor. If no boundary exists in that range it moves forward instead,
// never past limit.
func wordStart(runes []rune, floor, pos, limit int) int {
	if pos <= floor {
		return floor
	}
	for i := pos; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	for i := pos; i < limit; i++ {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return limit
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
