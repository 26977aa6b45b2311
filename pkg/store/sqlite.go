package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/xid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS transcription_sessions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	transcription TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	word_count INTEGER NOT NULL DEFAULT 0,
	is_active INTEGER NOT NULL DEFAULT 0,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	modified_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS session_analyses (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	related_topics TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL,
	modified_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_session ON session_analyses(session_id);
`

// SQLiteStore keeps sessions in a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *Session) error {
	if err := validateSession(sess); err != nil {
		return err
	}
	meta, err := json.Marshal(sess.Metadata)
	if err != nil {
		return fmt.Errorf("%w: metadata: %v", ErrInvalid, err)
	}

	now := s.now().UTC()
	if sess.ID == "" {
		sess.ID = xid.New().String()
	}
	sess.CreatedAt = now
	sess.ModifiedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transcription_sessions
			(id, title, transcription, language, duration_seconds, word_count, is_active, metadata, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.Title, sess.Transcription, sess.Language, sess.DurationSeconds,
		sess.WordCount, sess.IsActive, string(meta), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = `id, title, transcription, language, duration_seconds, word_count, is_active, metadata, created_at, modified_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess              Session
		meta              string
		created, modified int64
	)
	if err := row.Scan(&sess.ID, &sess.Title, &sess.Transcription, &sess.Language,
		&sess.DurationSeconds, &sess.WordCount, &sess.IsActive, &meta, &created, &modified); err != nil {
		return nil, err
	}
	if err := sess.Metadata.Scan(meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	sess.CreatedAt = time.UnixMilli(created).UTC()
	sess.ModifiedAt = time.UnixMilli(modified).UTC()
	return &sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM transcription_sessions
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	return getSQLiteSession(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSQLiteSession(ctx context.Context, q queryer, id string) (*Session, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM transcription_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, id string, patch SessionPatch) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	sess, err := getSQLiteSession(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	patch.apply(sess)
	if err := validateSession(sess); err != nil {
		return nil, err
	}
	meta, err := json.Marshal(sess.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrInvalid, err)
	}
	sess.ModifiedAt = s.now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE transcription_sessions
		SET title = ?, transcription = ?, language = ?, duration_seconds = ?, word_count = ?,
			is_active = ?, metadata = ?, modified_at = ?
		WHERE id = ?
	`, sess.Title, sess.Transcription, sess.Language, sess.DurationSeconds, sess.WordCount,
		sess.IsActive, string(meta), sess.ModifiedAt.UnixMilli(), id)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM transcription_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_analyses WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete analyses: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, a *Analysis) error {
	if err := validateAnalysis(a); err != nil {
		return err
	}
	topics, err := json.Marshal(a.RelatedTopics)
	if err != nil {
		return fmt.Errorf("%w: related topics: %v", ErrInvalid, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := getSQLiteSession(ctx, tx, a.SessionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: session %s does not exist", ErrInvalid, a.SessionID)
		}
		return err
	}

	now := s.now().UTC()
	if a.ID == "" {
		a.ID = xid.New().String()
	}
	a.CreatedAt = now
	a.ModifiedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO session_analyses
			(id, session_id, question, answer, confidence, related_topics, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.SessionID, a.Question, a.Answer, a.Confidence, string(topics), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, sessionID string) ([]Analysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, question, answer, confidence, related_topics, created_at, modified_at
		FROM session_analyses
		WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	analyses := []Analysis{}
	for rows.Next() {
		var (
			a                 Analysis
			topics            string
			created, modified int64
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Question, &a.Answer, &a.Confidence,
			&topics, &created, &modified); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		if err := a.RelatedTopics.Scan(topics); err != nil {
			return nil, fmt.Errorf("decode related topics: %w", err)
		}
		a.CreatedAt = time.UnixMilli(created).UTC()
		a.ModifiedAt = time.UnixMilli(modified).UTC()
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}
