package cache

import (
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/mwiater/minirag/internal/rag"
)

var _ rag.AnswerCache = (*Store)(nil)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "query_cache.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutAndGetNormalizesQuestion(t *testing.T) {
	s := openTemp(t)
	ans := rag.Answer{
		FinalText: "CSE3063 dersi",
		Citations: []rag.Citation{{DocID: "docA", SectionID: "Chunk0"}},
	}
	if err := s.Put("  CSE3063 NEDİR?  ", ans); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, ok := s.Get("cse3063 nedir?")
	if !ok {
		t.Fatalf("expected a cache hit")
	}
	if !reflect.DeepEqual(got, ans) {
		t.Fatalf("got %#v, want %#v", got, ans)
	}
}

func TestLookupMiss(t *testing.T) {
	s := openTemp(t)
	if _, err := s.Lookup("yok"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestMalformedEntryIsMiss(t *testing.T) {
	s := openTemp(t)
	if _, err := s.db.Exec("INSERT INTO answers (question, answer) VALUES (?, ?)", Key("bozuk"), []byte("{not json")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, ok := s.Get("bozuk"); ok {
		t.Fatalf("malformed entry should be a miss")
	}
}

func TestNotFoundAnswerKeepsEmptyCitations(t *testing.T) {
	s := openTemp(t)
	if err := s.Put("erasmus", rag.NotFound()); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	got, ok := s.Get("erasmus")
	if !ok || got.FinalText != rag.NotFoundText || got.Citations == nil || len(got.Citations) != 0 {
		t.Fatalf("unexpected answer %#v", got)
	}
}

func TestPurge(t *testing.T) {
	s := openTemp(t)
	_ = s.Put("a", rag.Answer{FinalText: "x"})
	_ = s.Put("b", rag.Answer{FinalText: "y"})
	if err := s.Purge(); err != nil {
		t.Fatalf("Purge error: %v", err)
	}
	if n, err := s.Len(); err != nil || n != 0 {
		t.Fatalf("expected empty cache, got %d (%v)", n, err)
	}
}

func TestConcurrentPut(t *testing.T) {
	s := openTemp(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Put("aynı soru", rag.Answer{FinalText: "cevap"}); err != nil {
				t.Errorf("Put error: %v", err)
			}
		}()
	}
	wg.Wait()
	if n, _ := s.Len(); n != 1 {
		t.Fatalf("expected one entry, got %d", n)
	}
}
