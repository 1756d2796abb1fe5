package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/jwebster45206/affinity-engine/pkg/state"
	"github.com/jwebster45206/affinity-engine/pkg/storage"
)

// SQLiteStorage keeps profiles, the deletion ledger and inboxes in a single
// SQLite file and reads the episode catalog from the filesystem.
type SQLiteStorage struct {
	*Catalog

	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Storage = (*SQLiteStorage)(nil)

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path, dataDir string, logger *slog.Logger) (*SQLiteStorage, error) {
	if path == "" {
		return nil, errors.New("empty sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &SQLiteStorage{
		Catalog: NewCatalog(dataDir, logger),
		db:      db,
		logger:  logger,
	}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			profile_id TEXT PRIMARY KEY,
			json TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS deleted_episodes (
			episode_id TEXT PRIMARY KEY
		);`,
		`CREATE TABLE IF NOT EXISTS inbox (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			profile_id TEXT NOT NULL,
			json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_inbox_profile ON inbox(profile_id, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Profile operations

func (s *SQLiteStorage) SaveProfile(ctx context.Context, ps *state.PlayerState) error {
	if ps == nil {
		return errors.New("profile cannot be nil")
	}
	ps.Touch()

	data, err := json.Marshal(ps)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles(profile_id, json, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(profile_id) DO UPDATE SET json = excluded.json, updated_at = excluded.updated_at`,
		ps.ProfileID, string(data), ps.UpdatedAt)
	if err != nil {
		s.logger.Error("Failed to save profile", "profile_id", ps.ProfileID, "error", err)
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) LoadProfile(ctx context.Context, profileID string) (*state.PlayerState, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT json FROM profiles WHERE profile_id = ?`, profileID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("Failed to load profile", "profile_id", profileID, "error", err)
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	var ps state.PlayerState
	if err := json.Unmarshal([]byte(data), &ps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &ps, nil
}

func (s *SQLiteStorage) DeleteProfile(ctx context.Context, profileID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE profile_id = ?`, profileID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM inbox WHERE profile_id = ?`, profileID); err != nil {
		return fmt.Errorf("failed to delete profile inbox: %w", err)
	}
	return tx.Commit()
}

// Deletion ledger. INSERT OR IGNORE makes the add atomic and idempotent.

func (s *SQLiteStorage) IsDeleted(ctx context.Context, episodeID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM deleted_episodes WHERE episode_id = ?`, episodeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check deletion ledger: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStorage) MarkDeleted(ctx context.Context, episodeID string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO deleted_episodes(episode_id) VALUES(?)`, episodeID); err != nil {
		return fmt.Errorf("failed to update deletion ledger: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListDeleted(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT episode_id FROM deleted_episodes ORDER BY episode_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read deletion ledger: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to read deletion ledger: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Inbox operations

func (s *SQLiteStorage) PushMessage(ctx context.Context, profileID string, msg storage.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO inbox(profile_id, json) VALUES(?, ?)`, profileID, string(data)); err != nil {
		return fmt.Errorf("failed to push message: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Messages(ctx context.Context, profileID string) ([]storage.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT json FROM inbox WHERE profile_id = ? ORDER BY seq`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	defer rows.Close()

	msgs := []storage.Message{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to read inbox: %w", err)
		}
		var msg storage.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			s.logger.Warn("Skipping malformed inbox message", "profile_id", profileID, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStorage) ClearMessages(ctx context.Context, profileID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM inbox WHERE profile_id = ?`, profileID); err != nil {
		return fmt.Errorf("failed to clear inbox: %w", err)
	}
	return nil
}
