// Package store persists turn history and user insight profiles in sqlite.
// Concurrency discipline lives here: database/sql serializes conflicting
// writes, callers perform no extra locking.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alyahmadi/sakina/backend/internal/model/therapy"
)

// Store wraps the sqlite database holding turns and insights.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		session_id       TEXT NOT NULL,
		timestamp        TEXT NOT NULL,
		transcript       TEXT NOT NULL,
		emotion          TEXT NOT NULL,
		reply            TEXT NOT NULL,
		crisis_flag      INTEGER NOT NULL,
		audio_path       TEXT NOT NULL,
		reply_audio_path TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, timestamp);

	CREATE TABLE IF NOT EXISTS insights (
		user_id    TEXT PRIMARY KEY,
		insights   TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendTurn writes one completed turn. Turns are immutable once written.
func (s *Store) AppendTurn(ctx context.Context, turn therapy.Turn) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (
			session_id, timestamp, transcript, emotion,
			reply, crisis_flag, audio_path, reply_audio_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.SessionID,
		turn.Timestamp.UTC().Format(time.RFC3339Nano),
		turn.Transcript,
		turn.Emotion,
		turn.Reply,
		boolToInt(turn.Crisis),
		turn.InputAudioPath,
		turn.ReplyAudioPath,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// History returns up to limit (transcript, reply) pairs for the session,
// oldest first.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]therapy.Exchange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transcript, reply
		FROM turns
		WHERE session_id = ?
		ORDER BY timestamp ASC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	var history []therapy.Exchange
	for rows.Next() {
		var ex therapy.Exchange
		if err := rows.Scan(&ex.Transcript, &ex.Reply); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		history = append(history, ex)
	}
	return history, rows.Err()
}

// Profile returns the user's current insight text, or "" when none exists.
func (s *Store) Profile(ctx context.Context, userID string) (string, error) {
	var insights string
	err := s.db.QueryRowContext(ctx,
		`SELECT insights FROM insights WHERE user_id = ?`, userID).Scan(&insights)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read profile: %w", err)
	}
	return insights, nil
}

// SaveProfile replaces the user's insight text. The summarizer already
// merged old and new signal, so this is a plain overwrite.
func (s *Store) SaveProfile(ctx context.Context, userID, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insights (user_id, insights, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			insights = excluded.insights,
			updated_at = excluded.updated_at`,
		userID, text, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// ExportSession returns every turn of a session for analytics or review.
func (s *Store) ExportSession(ctx context.Context, sessionID string) ([]therapy.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, timestamp, transcript, emotion,
		       reply, crisis_flag, audio_path, reply_audio_path
		FROM turns
		WHERE session_id = ?
		ORDER BY timestamp ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("export session: %w", err)
	}
	defer rows.Close()

	var turns []therapy.Turn
	for rows.Next() {
		var (
			turn      therapy.Turn
			stamp     string
			crisisInt int
		)
		if err := rows.Scan(&turn.SessionID, &stamp, &turn.Transcript, &turn.Emotion,
			&turn.Reply, &crisisInt, &turn.InputAudioPath, &turn.ReplyAudioPath); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		if turn.Timestamp, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
			return nil, fmt.Errorf("parse turn timestamp: %w", err)
		}
		turn.Crisis = crisisInt != 0
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
