// Package journal keeps a SQLite log of every command the sequencer handled.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"go-cvseq/journal/migrations"
	"go-cvseq/sequencer"
)

// Entry is one recorded command
type Entry struct {
	ID        string
	Type      sequencer.CommandType
	Channel   sequencer.ChannelID
	Args      Args
	Status    sequencer.Status
	Message   string
	CreatedAt time.Time
}

// Args holds the command payload that was sent
type Args struct {
	Tempo int       `json:"tempo,omitempty"`
	CV    []float64 `json:"cv,omitempty"`
	Gates []bool    `json:"gates,omitempty"`
}

// Store is a SQLite-backed command journal
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ sequencer.Recorder = (*Store)(nil)

// Open opens (creating if needed) the journal at path and applies migrations
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores one handled command. Commands without an ID get one.
func (s *Store) Record(ctx context.Context, cmd sequencer.Command, resp sequencer.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := resp.ID
	if id == "" {
		id = uuid.NewString()
	}
	args, err := json.Marshal(Args{Tempo: cmd.Tempo, CV: cmd.CV, Gates: cmd.Gates})
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO commands (
	id,
	type,
	channel,
	args,
	status,
	message,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		id,
		string(cmd.Type),
		string(cmd.Channel),
		string(args),
		string(resp.Status),
		resp.Message,
		s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, type, channel, args, status, message, created_at
FROM commands
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e                          Entry
			typ, channel, args, status string
			createdAt                  int64
		)
		if err := rows.Scan(&e.ID, &typ, &channel, &args, &status, &e.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		if err := json.Unmarshal([]byte(args), &e.Args); err != nil {
			return nil, fmt.Errorf("decode args for %s: %w", e.ID, err)
		}
		e.Type = sequencer.CommandType(typ)
		e.Channel = sequencer.ChannelID(channel)
		e.Status = sequencer.Status(status)
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return entries, nil
}
