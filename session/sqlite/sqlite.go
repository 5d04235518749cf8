// Package sqlite implements core.TranscriptStore on SQLite (mattn/go-sqlite3).
// Each message is one row ordered by seq; tool calls and faults are stored as
// JSON columns.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hupe1980/chatloop/core"
)

// Store is a SQLite backed transcript store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath. Use ":memory:" for
// a private in-memory database.
func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    tool_calls TEXT,
    tool_call_id TEXT,
    name TEXT,
    fault TEXT,
    synthesized INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    PRIMARY KEY (session_id, seq)
);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Load returns the transcript of sessionID in order.
func (s *Store) Load(ctx context.Context, sessionID string) ([]core.Message, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, role, content, tool_calls, tool_call_id, name, fault, synthesized, created_at
FROM messages WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []core.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

func scanMessage(rows *sql.Rows) (core.Message, error) {
	var (
		msg                                    core.Message
		role, createdAt                        string
		toolCalls, toolCallID, name, faultJSON sql.NullString
		synthesized                            bool
	)
	if err := rows.Scan(&msg.ID, &role, &msg.Content, &toolCalls, &toolCallID, &name, &faultJSON, &synthesized, &createdAt); err != nil {
		return core.Message{}, fmt.Errorf("scan message: %w", err)
	}

	msg.Role = core.Role(role)
	msg.ToolCallID = toolCallID.String
	msg.Name = name.String
	msg.Synthesized = synthesized

	if toolCalls.Valid && toolCalls.String != "" {
		if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
			return core.Message{}, fmt.Errorf("decode tool calls of %s: %w", msg.ID, err)
		}
	}
	if faultJSON.Valid && faultJSON.String != "" {
		var f core.ToolFault
		if err := json.Unmarshal([]byte(faultJSON.String), &f); err != nil {
			return core.Message{}, fmt.Errorf("decode fault of %s: %w", msg.ID, err)
		}
		msg.Fault = &f
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return core.Message{}, fmt.Errorf("parse timestamp of %s: %w", msg.ID, err)
	}
	msg.Timestamp = ts

	return msg, nil
}

// Save replaces the transcript of sessionID in a single transaction.
func (s *Store) Save(ctx context.Context, sessionID string, messages []core.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO sessions (id) VALUES (?)
ON CONFLICT(id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`, sessionID); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO messages (session_id, seq, id, role, content, tool_calls, tool_call_id, name, fault, synthesized, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range messages {
		toolCalls, err := nullJSON(msg.ToolCalls, len(msg.ToolCalls) > 0)
		if err != nil {
			return fmt.Errorf("encode tool calls of %s: %w", msg.ID, err)
		}
		fault, err := nullJSON(msg.Fault, msg.Fault != nil)
		if err != nil {
			return fmt.Errorf("encode fault of %s: %w", msg.ID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			sessionID, i, msg.ID, string(msg.Role), msg.Content,
			toolCalls, nullString(msg.ToolCallID), nullString(msg.Name), fault,
			msg.Synthesized, msg.Timestamp.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// List returns the stored session ids, most recently updated first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a session and its messages. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return tx.Commit()
}

func nullJSON(v any, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
