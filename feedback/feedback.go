package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Entry is one user rating of a served response.
type Entry struct {
	Query     string `json:"query"`
	Format    string `json:"format"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	Submitted string `json:"submitted_at,omitempty"`
}

// Validate checks the fields a caller must provide.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Query) == "" {
		return fmt.Errorf("feedback: query is required")
	}
	if e.Rating < 1 || e.Rating > 5 {
		return fmt.Errorf("feedback: rating must be between 1 and 5")
	}
	return nil
}

// Store persists feedback entries in the durable database.
type Store struct {
	db *sql.DB
}

const feedbackSchema = `
CREATE TABLE IF NOT EXISTS feedback (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query TEXT NOT NULL,
	format TEXT,
	rating INTEGER NOT NULL,
	comment TEXT,
	submitted_at INTEGER NOT NULL
);
`

// NewStore prepares the feedback table on an open database handle.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(feedbackSchema); err != nil {
		return nil, fmt.Errorf("feedback: init store: %w", err)
	}
	return &Store{db: db}, nil
}

// Record validates and inserts one entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (query, format, rating, comment, submitted_at) VALUES (?, ?, ?, ?, ?)`,
		e.Query, e.Format, e.Rating, e.Comment, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("feedback: record: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT query, format, rating, comment, submitted_at FROM feedback ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("feedback: list: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var comment sql.NullString
		var submitted int64
		if err := rows.Scan(&e.Query, &e.Format, &e.Rating, &comment, &submitted); err != nil {
			return nil, fmt.Errorf("feedback: scan: %w", err)
		}
		e.Comment = comment.String
		e.Submitted = time.Unix(submitted, 0).UTC().Format(time.RFC3339)
		out = append(out, e)
	}
	return out, rows.Err()
}
