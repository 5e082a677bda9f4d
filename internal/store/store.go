package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/thaybinh/hoso7991/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.migrateLegacyKeys(); err != nil {
		return nil, fmt.Errorf("migrate legacy keys: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS drafts (
		key TEXT PRIMARY KEY,
		matrix TEXT,
		spec TEXT,
		exam TEXT,
		answers TEXT,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS app_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// DraftKey builds the versioned storage key for a draft. Whitespace in
// each field collapses to a single underscore so that key lookup is
// stable across cosmetic edits.
func DraftKey(subject, grade, semester string) string {
	return "v3:" + normalize(subject) + "_" + normalize(grade) + "_" + normalize(semester)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), "_")
}

// SaveDraft stores the full artifact bundle under key, overwriting any
// previous draft for that key.
func (s *Store) SaveDraft(key string, b model.DraftBundle) error {
	matrix, err := marshalNullable(b.Matrix)
	if err != nil {
		return err
	}
	spec, err := marshalNullable(b.Spec)
	if err != nil {
		return err
	}
	exam, err := marshalNullable(b.Exam)
	if err != nil {
		return err
	}
	answers, err := marshalNullable(b.Answers)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO drafts (key, matrix, spec, exam, answers, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET matrix = ?, spec = ?, exam = ?, answers = ?, updated_at = ?`,
		key, matrix, spec, exam, answers, time.Now(),
		matrix, spec, exam, answers, time.Now(),
	)
	return err
}

// LoadDraft returns the bundle stored under key, or nil when no draft
// exists for that key.
func (s *Store) LoadDraft(key string) (*model.DraftBundle, error) {
	var matrix, spec, exam, answers sql.NullString
	err := s.db.QueryRow(
		`SELECT matrix, spec, exam, answers FROM drafts WHERE key = ?`, key,
	).Scan(&matrix, &spec, &exam, &answers)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var b model.DraftBundle
	if err := unmarshalNullable(matrix, &b.Matrix); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(spec, &b.Spec); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(exam, &b.Exam); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(answers, &b.Answers); err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteDraft removes the draft stored under key.
func (s *Store) DeleteDraft(key string) error {
	_, err := s.db.Exec(`DELETE FROM drafts WHERE key = ?`, key)
	return err
}

// ListDraftKeys returns all stored draft keys, newest first.
func (s *Store) ListDraftKeys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM drafts ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func marshalNullable[T any](p *T) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalNullable[T any](col sql.NullString, dst **T) error {
	if !col.Valid {
		*dst = nil
		return nil
	}
	v := new(T)
	if err := json.Unmarshal([]byte(col.String), v); err != nil {
		return err
	}
	*dst = v
	return nil
}
