package rag

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Fold lowercases text with Turkish casing rules (İ→i, I→ı). Indexing and
// querying must both go through Fold or postings will not match.
// A Caser is not safe for concurrent use, so one is created per call.
func Fold(s string) string {
	return cases.Lower(language.Turkish).String(s)
}

// Tokenize folds text and returns its letter/digit runs.
func Tokenize(s string) []string {
	return tokenPattern.FindAllString(Fold(s), -1)
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// runeIndex returns the rune offset of substr in s, or -1.
func runeIndex(s, substr string) int {
	i := strings.Index(s, substr)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:i])
}
