// Package pgstore is a PostgreSQL authcore.UserStore over database/sql and
// the pgx driver. Each method is a single statement or a single transaction.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/spintune/authcore"
)

const uniqueViolation = "23505"

// Config holds connection pool settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements authcore.UserStore.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with the pgx driver and checks the connection.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %v", authcore.ErrStoreUnavailable, err)
	}
	return db, nil
}

// backend marks err as a store fault.
func backend(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// withTx runs fn in a transaction, committing on nil and rolling back
// otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx DBTX) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return backend(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = backend(cerr)
		}
	}()
	return fn(tx)
}

const selectUser = `
	SELECT id, email, password_hash, first_name, last_name, mfa_enabled, mfa_secret, created_at
	FROM users
`

func scanUser(row *sql.Row) (authcore.User, error) {
	var u authcore.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.MFAEnabled, &u.MFASecret, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authcore.User{}, authcore.ErrUserNotFound
		}
		return authcore.User{}, backend(err)
	}
	return u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (authcore.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, selectUser+`WHERE email = $1`, email))
}

func (s *Store) FindByID(ctx context.Context, userID string) (authcore.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, selectUser+`WHERE id = $1`, userID))
}

// Create inserts the user and its backup codes in one transaction. A preset
// user.ID is kept.
func (s *Store) Create(ctx context.Context, user authcore.User, backupCodes [][32]byte) (authcore.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	err := s.withTx(ctx, func(tx DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, password_hash, first_name, last_name, mfa_enabled, mfa_secret, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.MFAEnabled, user.MFASecret, user.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return authcore.ErrDuplicateEmail
			}
			return backend(err)
		}
		return insertBackupCodes(ctx, tx, user.ID, backupCodes)
	})
	if err != nil {
		return authcore.User{}, err
	}
	return user, nil
}

func insertBackupCodes(ctx context.Context, tx DBTX, userID string, hashes [][32]byte) error {
	for _, h := range hashes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_backup_codes (user_id, code_hash) VALUES ($1, $2)
		`, userID, h[:]); err != nil {
			return backend(err)
		}
	}
	return nil
}

// insertRefresh adds rec, then drops expired rows and all but the newest
// keep rows of the user.
func insertRefresh(ctx context.Context, tx DBTX, userID string, rec authcore.RefreshTokenRecord, keep int) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_refresh_tokens (user_id, token_hash, expires_at) VALUES ($1, $2, $3)
	`, userID, rec.Hash[:], rec.ExpiresAt); err != nil {
		return backend(err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM user_refresh_tokens WHERE user_id = $1 AND expires_at <= now()
	`, userID); err != nil {
		return backend(err)
	}
	if keep > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM user_refresh_tokens
			WHERE user_id = $1 AND id NOT IN (
				SELECT id FROM user_refresh_tokens WHERE user_id = $1 ORDER BY id DESC LIMIT $2
			)
		`, userID, keep); err != nil {
			return backend(err)
		}
	}
	return nil
}

func (s *Store) AppendRefreshToken(ctx context.Context, userID string, rec authcore.RefreshTokenRecord, keep int) error {
	return s.withTx(ctx, func(tx DBTX) error {
		return insertRefresh(ctx, tx, userID, rec, keep)
	})
}

// RotateRefreshToken deletes presented and, only if a row went away, inserts
// next in the same transaction.
func (s *Store) RotateRefreshToken(ctx context.Context, userID string, presented [32]byte, next authcore.RefreshTokenRecord, keep int) (bool, error) {
	errNotOnRecord := errors.New("refresh token not on record")
	err := s.withTx(ctx, func(tx DBTX) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM user_refresh_tokens WHERE user_id = $1 AND token_hash = $2
		`, userID, presented[:])
		if err != nil {
			return backend(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return backend(err)
		}
		if n == 0 {
			return errNotOnRecord
		}
		return insertRefresh(ctx, tx, userID, next, keep)
	})
	if errors.Is(err, errNotOnRecord) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) RevokeRefreshTokens(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, backend(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, backend(err)
	}
	return int(n), nil
}

func (s *Store) userExists(ctx context.Context, q DBTX, userID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = $1`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return authcore.ErrUserNotFound
	}
	return backend(err)
}

func (s *Store) EnableMFA(ctx context.Context, userID, secret string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET mfa_enabled = TRUE, mfa_secret = $2
		WHERE id = $1 AND NOT (mfa_enabled AND mfa_secret = $2)
	`, userID, secret)
	if err != nil {
		return false, backend(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, backend(err)
	}
	if n > 0 {
		return true, nil
	}
	return false, s.userExists(ctx, s.db, userID)
}

// DisableMFA clears the flag, the secret and every backup code together.
func (s *Store) DisableMFA(ctx context.Context, userID string) error {
	return s.withTx(ctx, func(tx DBTX) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users SET mfa_enabled = FALSE, mfa_secret = '' WHERE id = $1
		`, userID)
		if err != nil {
			return backend(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return backend(err)
		}
		if n == 0 {
			return authcore.ErrUserNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_backup_codes WHERE user_id = $1`, userID); err != nil {
			return backend(err)
		}
		return nil
	})
}

// ConsumeBackupCode relies on DELETE being atomic per row: of two concurrent
// calls only one sees a deleted row.
func (s *Store) ConsumeBackupCode(ctx context.Context, userID string, hash [32]byte) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM user_backup_codes WHERE user_id = $1 AND code_hash = $2
	`, userID, hash[:])
	if err != nil {
		return false, backend(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, backend(err)
	}
	return n == 1, nil
}

func (s *Store) ReplaceBackupCodes(ctx context.Context, userID string, hashes [][32]byte) error {
	return s.withTx(ctx, func(tx DBTX) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&one)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return authcore.ErrUserNotFound
			}
			return backend(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_backup_codes WHERE user_id = $1`, userID); err != nil {
			return backend(err)
		}
		return insertBackupCodes(ctx, tx, userID, hashes)
	})
}

func (s *Store) CountBackupCodes(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM user_backup_codes WHERE user_id = $1
	`, userID).Scan(&n); err != nil {
		return 0, backend(err)
	}
	return n, nil
}

var _ authcore.UserStore = (*Store)(nil)
