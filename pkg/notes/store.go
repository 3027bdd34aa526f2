// Package notes provides sticky note persistence using SQLite and serves the
// notes to MCP clients.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	AddedText    = "Note added successfully."
	NoNotesText  = "No notes found."
	summaryIntro = "Summarize the following notes:\n"
)

var ErrEmptyNote = errors.New("note is empty")

// Note is a single sticky note.
type Note struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store manages note persistence in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database at the given path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			content    TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT (datetime('now'))
		);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores a note. Surrounding whitespace is trimmed; blank notes are
// rejected with ErrEmptyNote.
func (s *Store) Add(ctx context.Context, text string) (*Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyNote
	}

	n := &Note{Content: text, CreatedAt: time.Now().UTC()}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (content, created_at) VALUES (?, ?)`,
		n.Content, n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting note: %w", err)
	}
	if n.ID, err = result.LastInsertId(); err != nil {
		return nil, err
	}
	return n, nil
}

// List returns all notes, oldest first.
func (s *Store) List(ctx context.Context) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, created_at FROM notes ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		n := &Note{}
		if err := rows.Scan(&n.ID, &n.Content, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// Latest returns the most recent note, or nil when there are none.
func (s *Store) Latest(ctx context.Context) (*Note, error) {
	n := &Note{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, content, created_at FROM notes ORDER BY id DESC LIMIT 1`,
	).Scan(&n.ID, &n.Content, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Text returns every note on its own line, or NoNotesText.
func (s *Store) Text(ctx context.Context) (string, error) {
	notes, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	if len(notes) == 0 {
		return NoNotesText, nil
	}
	return joinNotes(notes) + "\n", nil
}

// SummaryPrompt builds a prompt asking a model to summarize all notes.
func (s *Store) SummaryPrompt(ctx context.Context) (string, error) {
	notes, err := s.List(ctx)
	if err != nil {
		return "", err
	}
	if len(notes) == 0 {
		return strings.TrimSuffix(NoNotesText, "."), nil
	}
	return summaryIntro + joinNotes(notes), nil
}

func joinNotes(notes []*Note) string {
	lines := make([]string, len(notes))
	for i, n := range notes {
		lines[i] = n.Content
	}
	return strings.Join(lines, "\n")
}
