// Package sessiondb persists dashboard sessions in a local sqlite
// database. It replaces the browser's local-storage session keys with
// server-side rows keyed by session id.
package sessiondb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	auth_token      TEXT NOT NULL,
	first_name      TEXT NOT NULL DEFAULT '',
	profile_picture TEXT NOT NULL DEFAULT '',
	has_visited     INTEGER NOT NULL DEFAULT 0,
	login_response  BLOB,
	created_at      TIMESTAMP NOT NULL,
	expires_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

CREATE TABLE IF NOT EXISTS staged_agreements (
	session_id   TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
	file_name    TEXT NOT NULL,
	content_type TEXT NOT NULL,
	content      BLOB NOT NULL,
	staged_at    TIMESTAMP NOT NULL
);
`

// Store is a sqlite-backed session store.
type Store struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the session database at dbPath and
// applies the schema.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")
	conn.Exec("PRAGMA foreign_keys=ON")

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Ping checks the database connection is alive.
func (s *Store) Ping() error {
	return s.conn.Ping()
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.conn.Close()
}

// Create inserts a new session row.
func (s *Store) Create(ctx context.Context, sess *domain.Session) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO sessions
			(id, user_id, auth_token, first_name, profile_picture, has_visited, login_response, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.AuthToken, sess.FirstName, sess.ProfilePicture,
		boolToInt(sess.HasVisitedDashboard), []byte(sess.LoginResponse),
		sess.CreatedAt.UTC(), sess.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get loads a session by id. Expired sessions are deleted and reported
// as not found.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, user_id, auth_token, first_name, profile_picture, has_visited, login_response, created_at, expires_at
		FROM sessions WHERE id = ?`, sessionID)

	var (
		sess    domain.Session
		visited int
		blob    []byte
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.AuthToken, &sess.FirstName,
		&sess.ProfilePicture, &visited, &blob, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "session", ID: sessionID}
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if time.Now().After(sess.ExpiresAt) {
		_ = s.Delete(ctx, sessionID)
		return nil, &domain.ErrNotFound{Resource: "session", ID: sessionID}
	}

	sess.HasVisitedDashboard = visited != 0
	sess.LoginResponse = blob
	return &sess, nil
}

// UpdateDisplay updates the cached display fields (first name, picture).
func (s *Store) UpdateDisplay(ctx context.Context, sessionID, firstName, profilePicture string) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE sessions SET first_name = ?, profile_picture = ? WHERE id = ?`,
		firstName, profilePicture, sessionID)
	if err != nil {
		return fmt.Errorf("update display: %w", err)
	}
	return requireRow(res, sessionID)
}

// MarkDashboardVisited sets the has_visited flag.
func (s *Store) MarkDashboardVisited(ctx context.Context, sessionID string) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE sessions SET has_visited = 1 WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("mark visited: %w", err)
	}
	return requireRow(res, sessionID)
}

// StageAgreement stores a financial-agreement upload for later attach.
// A session stages at most one document; re-staging replaces it.
func (s *Store) StageAgreement(ctx context.Context, sessionID string, upload *domain.AgreementUpload) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO staged_agreements (session_id, file_name, content_type, content, staged_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			file_name = excluded.file_name,
			content_type = excluded.content_type,
			content = excluded.content,
			staged_at = excluded.staged_at`,
		sessionID, upload.FileName, upload.ContentType, upload.Content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("stage agreement: %w", err)
	}
	return nil
}

// TakeStagedAgreement returns and removes the staged upload, or nil when
// nothing is staged.
func (s *Store) TakeStagedAgreement(ctx context.Context, sessionID string) (*domain.AgreementUpload, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT file_name, content_type, content
		FROM staged_agreements WHERE session_id = ?`, sessionID)

	var upload domain.AgreementUpload
	err := row.Scan(&upload.FileName, &upload.ContentType, &upload.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan staged agreement: %w", err)
	}

	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM staged_agreements WHERE session_id = ?`, sessionID); err != nil {
		return nil, fmt.Errorf("clear staged agreement: %w", err)
	}
	return &upload, nil
}

// Delete removes a session and its staged upload.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM staged_agreements WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete staged agreement: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes all expired sessions and returns how many went.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func requireRow(res sql.Result, sessionID string) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.ErrNotFound{Resource: "session", ID: sessionID}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
