package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
	"github.com/evobot/wa-rag-bridge/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// historyRepo implements the conversation history repository
type historyRepo struct {
	db *sql.DB
}

// NewHistoryRepo creates a new SQLite history repository
func NewHistoryRepo(dbPath string) (repo.HistoryRepo, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite gives every connection its own :memory: database
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS chat_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_chat_history_session ON chat_history(session_id, created_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &historyRepo{db: db}, nil
}

// Append stores a conversation turn
func (r *historyRepo) Append(ctx context.Context, msg *domain.HistoryMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_history (session_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, msg.SessionID, string(msg.Role), msg.Content, msg.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		msg.ID = id
	}
	return nil
}

// Recent returns the latest messages of a session, oldest first
func (r *historyRepo) Recent(ctx context.Context, sessionID string, limit int, since time.Time) ([]*domain.HistoryMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	var sinceMs int64
	if !since.IsZero() {
		sinceMs = since.UnixMilli()
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at FROM (
			SELECT id, session_id, role, content, created_at
			FROM chat_history
			WHERE session_id = ? AND created_at >= ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		) ORDER BY created_at ASC, id ASC
	`, sessionID, sinceMs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var messages []*domain.HistoryMessage
	for rows.Next() {
		var msg domain.HistoryMessage
		var role string
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.CreatedAt = time.UnixMilli(createdAt)
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// Clear deletes all messages of a session
func (r *historyRepo) Clear(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chat_history WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// CleanupStale deletes messages created before the given time
func (r *historyRepo) CleanupStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM chat_history WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup history: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection
func (r *historyRepo) Close() error {
	return r.db.Close()
}
