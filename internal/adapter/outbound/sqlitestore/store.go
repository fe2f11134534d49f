package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Ticket is a ServiceNow incident as persisted locally.
type Ticket struct {
	SysID            string    `json:"sys_id"`
	Number           string    `json:"number"`
	ShortDescription string    `json:"short_description"`
	Priority         string    `json:"priority"`
	State            string    `json:"state"`
	AssignmentGroup  string    `json:"assignment_group"`
	OpenedAt         string    `json:"opened_at"`
	FetchedAt        time.Time `json:"fetched_at"`
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store is the SQLite database backing the local ticket tools.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
// Parent directories are created if needed.
func Open(path string, logger *slog.Logger) (*Store, error) {
	logger = logger.With("component", "sqlite_store")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", slog.String("path", path))
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tickets (
			sys_id TEXT PRIMARY KEY,
			number TEXT NOT NULL,
			short_description TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			assignment_group TEXT NOT NULL DEFAULT '',
			opened_at TEXT NOT NULL DEFAULT '',
			fetched_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tickets_priority ON tickets(priority);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Acquire returns a dedicated connection for one tool call.
// The caller must Close it when the call ends.
func (s *Store) Acquire(ctx context.Context) (*sql.Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return conn, nil
}

// DB exposes the pool, mainly for tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertTickets inserts or replaces tickets by sys_id and returns how many were written.
func UpsertTickets(ctx context.Context, q Querier, tickets []Ticket) (int, error) {
	const stmt = `
		INSERT INTO tickets (sys_id, number, short_description, priority, state, assignment_group, opened_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sys_id) DO UPDATE SET
			number = excluded.number,
			short_description = excluded.short_description,
			priority = excluded.priority,
			state = excluded.state,
			assignment_group = excluded.assignment_group,
			opened_at = excluded.opened_at,
			fetched_at = excluded.fetched_at`

	written := 0
	for _, t := range tickets {
		if t.SysID == "" {
			continue
		}
		fetchedAt := t.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = time.Now().UTC()
		}
		if _, err := q.ExecContext(ctx, stmt,
			t.SysID, t.Number, t.ShortDescription, t.Priority, t.State, t.AssignmentGroup, t.OpenedAt, fetchedAt,
		); err != nil {
			return written, fmt.Errorf("upserting ticket %s: %w", t.Number, err)
		}
		written++
	}
	return written, nil
}

// ListTickets returns stored tickets ordered by number. An empty priority matches all.
func ListTickets(ctx context.Context, q Querier, priority string) ([]Ticket, error) {
	query := `SELECT sys_id, number, short_description, priority, state, assignment_group, opened_at, fetched_at FROM tickets`
	var args []any
	if priority != "" {
		query += ` WHERE priority = ?`
		args = append(args, priority)
	}
	query += ` ORDER BY number`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tickets: %w", err)
	}
	defer rows.Close()

	tickets := []Ticket{}
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.SysID, &t.Number, &t.ShortDescription, &t.Priority, &t.State, &t.AssignmentGroup, &t.OpenedAt, &t.FetchedAt); err != nil {
			return nil, fmt.Errorf("scanning ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}
