package rag

import (
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

var stopWords = map[string]struct{}{
	"nedir": {}, "kimdir": {}, "nasıl": {}, "nerede": {}, "hangi": {}, "kaç": {},
	"mi": {}, "mı": {}, "mu": {}, "mü": {}, "soru": {},
	"ve": {}, "ile": {}, "için": {}, "bu": {}, "şu": {}, "o": {}, "bir": {},
	"var": {}, "yok": {}, "veya": {}, "olarak": {},
	"ders": {}, "dersi": {}, "dersinin": {}, "hakkında": {}, "bilgi": {}, "ilgili": {},
	"kısmı": {}, "bölüm": {}, "mühendisliği": {},
	"in": {}, "ın": {}, "un": {}, "ün": {}, "nin": {}, "nın": {}, "nun": {}, "nün": {},
	"yi": {}, "yı": {}, "yu": {}, "yü": {},
}

// IsStopWord reports whether a folded token carries no retrieval signal.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

type synonymGroup struct {
	trigger string
	phrases []string
}

// synonymGroups expand colloquial triggers into the phrasing used by the corpus.
var synonymGroups = []synonymGroup{
	{"çap", []string{"çift anadal", "ikinci anadal", "madde 35"}},
	{"yandal", []string{"yan dal"}},
	{"staj", []string{"pratik çalışma", "zorunlu staj", "iş günü"}},
	{"kalmak", []string{"başarısız", "tekrar", "ff", "dersten kalma", "alt limit"}},
	{"dondurma", []string{"kayıt dondurma", "izinli sayılma", "haklı ve geçerli neden"}},
	{"yurt dışı", []string{"erasmus", "farabi", "değişim", "anlaşmalı üniversite"}},
	{"af", []string{"öğrenci affı"}},
	{"yaz okulu", []string{"yaz öğretimi", "başka üniversiteden ders"}},
	{"büt", []string{"bütünleme"}},
	{"tek ders", []string{"mezuniyet sınavı", "tek ders sınavı"}},
	{"diploma kayıp", []string{"duplikata", "yeniden düzenleme"}},
	{"ofis", []string{"oda", "yer", "nerede", "iletişim", "e-posta"}},
	{"ön koşul", []string{"prerequisite", "önkoşul", "condition"}},
}

// QueryWriter turns a question into retrieval terms.
type QueryWriter struct{}

// Write folds and tokenizes the question, drops short tokens and stop words
// (unless they contain a digit), appends synonym phrases for every trigger
// found in the question, and for staff lookups makes sure "ofis" is present.
// The result keeps first occurrences only.
func (QueryWriter) Write(question string, intent Intent) []string {
	q := Fold(question)
	normalized := nonWord.ReplaceAllString(q, " ")

	var terms []string
	seen := make(map[string]struct{})
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	for _, tok := range strings.Fields(normalized) {
		if runeLen(tok) < 2 {
			continue
		}
		if IsStopWord(tok) && !hasDigit(tok) {
			continue
		}
		add(tok)
	}

	for _, group := range synonymGroups {
		if !strings.Contains(q, group.trigger) {
			continue
		}
		for _, phrase := range group.phrases {
			add(phrase)
		}
	}

	if intent == IntentStaffLookup {
		add("ofis")
	}
	return terms
}
