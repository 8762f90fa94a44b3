// Package history persists finished takes in a local sqlite database.
package history

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"hark/ptt"
	"hark/recorder"
)

type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	// WAL keeps the web handlers readable while the recorder writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS takes (
		id TEXT PRIMARY KEY,
		started DATETIME NOT NULL,
		origin TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		frames INTEGER NOT NULL,
		format TEXT NOT NULL,
		provider TEXT NOT NULL,
		text TEXT NOT NULL,
		word_count INTEGER NOT NULL,
		enhanced BOOLEAN NOT NULL,
		style INTEGER NOT NULL,
		auto_stopped BOOLEAN NOT NULL,
		no_speech BOOLEAN NOT NULL,
		success BOOLEAN NOT NULL,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_takes_started ON takes(started);
	CREATE INDEX IF NOT EXISTS idx_takes_origin ON takes(origin);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Save inserts one finished take.
func (s *Store) Save(take recorder.Take) error {
	query := `
		INSERT INTO takes (
			id, started, origin, duration_ms, frames, format, provider,
			text, word_count, enhanced, style, auto_stopped, no_speech,
			success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.conn.Exec(query,
		take.ID, take.StartedAt.UTC(), string(take.Origin),
		take.Duration.Milliseconds(), take.Frames, take.Format, take.Provider,
		take.Text, len(strings.Fields(take.Text)), take.Enhanced, take.Style,
		take.AutoStopped, take.NoSpeech, take.Err == "", take.Err,
	)
	if err != nil {
		return fmt.Errorf("saving take: %w", err)
	}
	return nil
}

// Recent returns the newest takes, most recent first.
func (s *Store) Recent(limit int) ([]recorder.Take, error) {
	query := `
		SELECT id, started, origin, duration_ms, frames, format, provider,
		       text, enhanced, style, auto_stopped, no_speech, error_message
		FROM takes
		ORDER BY started DESC
		LIMIT ?
	`
	rows, err := s.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying takes: %w", err)
	}
	defer rows.Close()

	var takes []recorder.Take
	for rows.Next() {
		var t recorder.Take
		var origin string
		var started time.Time
		var durMs int64
		var errMsg sql.NullString

		err := rows.Scan(
			&t.ID, &started, &origin, &durMs, &t.Frames, &t.Format, &t.Provider,
			&t.Text, &t.Enhanced, &t.Style, &t.AutoStopped, &t.NoSpeech, &errMsg,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning take: %w", err)
		}

		t.Origin = ptt.Origin(origin)
		t.StartedAt = started
		t.Duration = time.Duration(durMs) * time.Millisecond
		if errMsg.Valid {
			t.Err = errMsg.String
		}
		takes = append(takes, t)
	}
	return takes, rows.Err()
}

func (s *Store) Count() (int, error) {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM takes").Scan(&count)
	return count, err
}

// Totals summarizes successful takes for the status surfaces.
type Totals struct {
	Takes   int     `json:"takes"`
	Seconds float64 `json:"seconds"`
	Words   int     `json:"words"`
}

func (s *Store) Totals() (Totals, error) {
	var t Totals
	var ms sql.NullInt64
	var words sql.NullInt64
	err := s.conn.QueryRow(`
		SELECT COUNT(*), SUM(duration_ms), SUM(word_count)
		FROM takes WHERE success AND NOT no_speech
	`).Scan(&t.Takes, &ms, &words)
	if err != nil {
		return Totals{}, err
	}
	t.Seconds = float64(ms.Int64) / 1000
	t.Words = int(words.Int64)
	return t, nil
}
