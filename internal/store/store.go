package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/troyapi/troy/internal/model"
)

// Store persists accounts and API keys in an embedded SQLite database.
type Store struct {
	db *sqlx.DB
}

// New creates a new store. Pass empty string for in-memory.
func New(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "troy.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

// CreateAccount inserts a new account. The ID and CreatedAt fields are
// populated after a successful insert. Returns ErrDuplicate when the
// username is already taken (case-sensitive exact match).
func (s *Store) CreateAccount(ctx context.Context, acct *model.Account) error {
	acct.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO accounts (username, password_hash, created_at)
		VALUES (:username, :password_hash, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, acct)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get account id: %w", err)
	}
	acct.ID = id
	return nil
}

// GetAccountByUsername returns an account by its unique username.
func (s *Store) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	var acct model.Account
	if err := s.db.GetContext(ctx, &acct, "SELECT * FROM accounts WHERE username = ?", username); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account by username: %w", err)
	}
	return &acct, nil
}

// GetAccountByID returns an account by ID.
func (s *Store) GetAccountByID(ctx context.Context, id int64) (*model.Account, error) {
	var acct model.Account
	if err := s.db.GetContext(ctx, &acct, "SELECT * FROM accounts WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &acct, nil
}

// ---------------------------------------------------------------------------
// API keys
// ---------------------------------------------------------------------------

// CreateKey inserts a new API key record. The key_hash must already be set
// (use HashKey). The ID and CreatedAt fields are populated after insert.
// Returns ErrDuplicate on a key-hash collision so callers can regenerate.
func (s *Store) CreateKey(ctx context.Context, key *model.APIKey) error {
	key.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO api_keys
		(key_hash, key_prefix, label, account_id, is_active, created_at, usage_count)
		VALUES
		(:key_hash, :key_prefix, :label, :account_id, :is_active, :created_at, 0)`

	result, err := s.db.NamedExecContext(ctx, q, key)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert api key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get api key id: %w", err)
	}
	key.ID = id
	return nil
}

// GetKeyByHash looks up an API key by its SHA-256 hash.
func (s *Store) GetKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key, "SELECT * FROM api_keys WHERE key_hash = ?", hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return &key, nil
}

// ListKeys returns all of an account's API keys, oldest first.
func (s *Store) ListKeys(ctx context.Context, accountID int64) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := s.db.SelectContext(ctx, &keys,
		"SELECT * FROM api_keys WHERE account_id = ? ORDER BY created_at ASC, id ASC", accountID); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// ToggleKey flips the is_active flag of one of an account's keys.
// Ownership and existence are checked in one statement; a miss on either
// returns ErrNotFound so callers cannot probe for other accounts' keys.
func (s *Store) ToggleKey(ctx context.Context, accountID, keyID int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET is_active = NOT is_active WHERE id = ? AND account_id = ?",
		keyID, accountID)
	if err != nil {
		return fmt.Errorf("toggle api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("toggle api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteKey removes one of an account's keys, with the same combined
// ownership/existence check as ToggleKey.
func (s *Store) DeleteKey(ctx context.Context, accountID, keyID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM api_keys WHERE id = ? AND account_id = ?", keyID, accountID)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordKeyUsage bumps the usage counter and stamps last_used for a key.
// The increment happens inside the database so concurrent bumps never lose
// updates. A missing key is reported as ErrNotFound but callers treat this
// call as best-effort telemetry.
func (s *Store) RecordKeyUsage(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET usage_count = usage_count + 1, last_used = ? WHERE id = ?",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("record api key usage: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record api key usage rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// KeyStats returns aggregate key counts and usage for one account.
func (s *Store) KeyStats(ctx context.Context, accountID int64) (*model.KeyStats, error) {
	var stats model.KeyStats
	const q = `SELECT
			COUNT(*) AS total_keys,
			COALESCE(SUM(is_active), 0) AS active_keys,
			COALESCE(SUM(usage_count), 0) AS total_usage
		FROM api_keys WHERE account_id = ?`
	if err := s.db.GetContext(ctx, &stats, q, accountID); err != nil {
		return nil, fmt.Errorf("key stats: %w", err)
	}
	return &stats, nil
}

// ---------------------------------------------------------------------------
// Utility
// ---------------------------------------------------------------------------

// HashKey returns the hex-encoded SHA-256 hash of a raw API key string.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// isUniqueViolation reports whether err is a SQLite uniqueness error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
