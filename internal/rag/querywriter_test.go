package rag

import (
	"reflect"
	"testing"
)

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestWriteKeepsCodesAndDropsStopWords(t *testing.T) {
	terms := QueryWriter{}.Write("CSE3063 ve CSE1242 nedir?", IntentUnknown)
	for _, want := range []string{"cse3063", "cse1242"} {
		if !contains(terms, want) {
			t.Fatalf("expected %q in %v", want, terms)
		}
	}
	for _, unwanted := range []string{"ve", "nedir"} {
		if contains(terms, unwanted) {
			t.Fatalf("did not expect %q in %v", unwanted, terms)
		}
	}
}

func TestWriteAppendsSynonymPhrases(t *testing.T) {
	terms := QueryWriter{}.Write("Çap başvurusu", IntentPolicyFAQ)
	want := []string{"çap", "başvurusu", "çift anadal", "ikinci anadal", "madde 35"}
	if !reflect.DeepEqual(terms, want) {
		t.Fatalf("Write = %#v, want %#v", terms, want)
	}
}

func TestWriteInjectsOfficeForStaffLookup(t *testing.T) {
	terms := QueryWriter{}.Write("Ahmet Yılmaz hoca", IntentStaffLookup)
	if terms[len(terms)-1] != "ofis" {
		t.Fatalf("expected ofis to be appended, got %v", terms)
	}

	terms = QueryWriter{}.Write("ofis ofis", IntentStaffLookup)
	want := []string{"ofis", "oda", "yer", "nerede", "iletişim", "e-posta"}
	if !reflect.DeepEqual(terms, want) {
		t.Fatalf("expected de-duplicated terms, got %#v", terms)
	}
}

func TestWriteDropsShortTokens(t *testing.T) {
	terms := QueryWriter{}.Write("a b MADDE 5", IntentUnknown)
	if !reflect.DeepEqual(terms, []string{"madde"}) {
		t.Fatalf("Write = %#v", terms)
	}
}

func TestWriteEmptyQuestion(t *testing.T) {
	if terms := (QueryWriter{}).Write("   ", IntentUnknown); len(terms) != 0 {
		t.Fatalf("expected no terms, got %v", terms)
	}
}
