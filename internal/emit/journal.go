package emit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/TFMV/fsjson/internal/watch"
	_ "modernc.org/sqlite"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type  TEXT NOT NULL,
	src_path    TEXT NOT NULL,
	dest_path   TEXT NOT NULL DEFAULT '',
	observed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_event_type ON events (event_type);
`

// Entry is a record read back from the journal.
type Entry struct {
	ID         int64
	ObservedAt time.Time
	watch.Record
}

// Journal keeps every record in a SQLite database.
type Journal struct {
	db     *sql.DB
	insert *sql.Stmt
	now    func() time.Time
}

// OpenJournal opens (creating if needed) the journal database at path.
func OpenJournal(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// One writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal table: %w", err)
	}

	insert, err := db.PrepareContext(ctx,
		"INSERT INTO events (event_type, src_path, dest_path, observed_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare journal insert: %w", err)
	}

	return &Journal{db: db, insert: insert, now: time.Now}, nil
}

// Write appends rec to the journal.
func (j *Journal) Write(ctx context.Context, rec watch.Record) error {
	_, err := j.insert.ExecContext(ctx,
		string(rec.EventType), rec.SrcPath, rec.DestPath,
		j.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return nil
}

// Recent returns the newest limit entries, oldest first. An empty eventType
// matches every type; a limit below one returns everything.
func (j *Journal) Recent(ctx context.Context, limit int, eventType watch.EventType) ([]Entry, error) {
	if limit < 1 {
		limit = -1
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, event_type, src_path, dest_path, observed_at FROM (
			SELECT id, event_type, src_path, dest_path, observed_at
			FROM events
			WHERE ? = '' OR event_type = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC`,
		string(eventType), string(eventType), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			kind       string
			observedAt string
		)
		if err := rows.Scan(&e.ID, &kind, &e.SrcPath, &e.DestPath, &observedAt); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.EventType = watch.EventType(kind)
		e.ObservedAt, err = time.Parse(time.RFC3339Nano, observedAt)
		if err != nil {
			return nil, fmt.Errorf("journal entry %d: bad timestamp %q: %w", e.ID, observedAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the database.
func (j *Journal) Close() error {
	j.insert.Close()
	return j.db.Close()
}
