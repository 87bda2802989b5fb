// Package cache persists answers keyed by normalized question text.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/mwiater/minirag/internal/logging"
	"github.com/mwiater/minirag/internal/rag"
)

// ErrMiss is returned by Lookup when no usable entry exists.
var ErrMiss = errors.New("cache miss")

// Store is a SQLite-backed answer cache. Reads go through the database/sql
// pool; writes are serialized.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Key normalizes a question into its cache key.
func Key(question string) string {
	return rag.Fold(strings.TrimSpace(question))
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS answers (
		question TEXT PRIMARY KEY,
		answer BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Lookup returns the cached answer for question, or ErrMiss. Entries that no
// longer decode are treated as misses.
func (s *Store) Lookup(question string) (rag.Answer, error) {
	var raw []byte
	err := s.db.QueryRow("SELECT answer FROM answers WHERE question = ?", Key(question)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return rag.Answer{}, ErrMiss
	}
	if err != nil {
		return rag.Answer{}, fmt.Errorf("querying cache: %w", err)
	}

	var ans rag.Answer
	if err := json.Unmarshal(raw, &ans); err != nil {
		logging.Debugf("cache: malformed entry for %q: %v", Key(question), err)
		return rag.Answer{}, ErrMiss
	}
	if ans.Citations == nil {
		ans.Citations = []rag.Citation{}
	}
	return ans, nil
}

// Get implements rag.AnswerCache.
func (s *Store) Get(question string) (rag.Answer, bool) {
	ans, err := s.Lookup(question)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			logging.LogEvent("cache: %v", err)
		}
		return rag.Answer{}, false
	}
	return ans, true
}

// Put stores answer under the normalized question, replacing any previous
// entry.
func (s *Store) Put(question string, answer rag.Answer) error {
	raw, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("encoding answer: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("INSERT OR REPLACE INTO answers (question, answer) VALUES (?, ?)", Key(question), raw); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Purge removes every entry.
func (s *Store) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM answers")
	return err
}

// Len returns the number of stored entries.
func (s *Store) Len() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM answers").Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
