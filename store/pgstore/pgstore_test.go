package pgstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spintune/authcore"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return New(db), mock
}

var userColumns = []string{"id", "email", "password_hash", "first_name", "last_name", "mfa_enabled", "mfa_secret", "created_at"}

func hashOf(s string) [32]byte { return sha256.Sum256([]byte(s)) }

func TestFindByEmail(t *testing.T) {
	s, mock := newStoreWithMock(t)
	created := time.Now().UTC()

	mock.ExpectQuery(`(?s)SELECT\s+id,\s*email.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1`).
		WithArgs("Ada@Example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "Ada@Example.com", "hash", "Ada", "Lovelace", true, "SECRET", created))

	u, err := s.FindByEmail(context.Background(), "Ada@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.True(t, u.MFAEnabled)
	assert.Equal(t, "SECRET", u.MFASecret)
	assert.True(t, u.CreatedAt.Equal(created))
}

func TestFindByIDNotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, authcore.ErrUserNotFound)
}

func TestFindByIDBackendError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("u1").
		WillReturnError(errors.New("connection reset"))

	_, err := s.FindByID(context.Background(), "u1")
	assert.ErrorIs(t, err, authcore.ErrStoreUnavailable)
}

func TestCreateInsertsUserAndCodes(t *testing.T) {
	s, mock := newStoreWithMock(t)
	codes := [][32]byte{hashOf("A"), hashOf("B")}

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT\s+INTO\s+users\b`).
		WithArgs("u1", "ada@example.com", "hash", "Ada", "", false, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	for _, h := range codes {
		h := h
		mock.ExpectExec(`(?s)INSERT\s+INTO\s+user_backup_codes\b`).
			WithArgs("u1", h[:]).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	u, err := s.Create(context.Background(), authcore.User{
		ID: "u1", Email: "ada@example.com", PasswordHash: "hash", FirstName: "Ada",
	}, codes)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.False(t, u.CreatedAt.IsZero())
}

func TestCreateDuplicateEmail(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT\s+INTO\s+users\b`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), authcore.User{ID: "u1", Email: "ada@example.com"}, nil)
	assert.ErrorIs(t, err, authcore.ErrDuplicateEmail)
}

func TestRotateRefreshToken(t *testing.T) {
	s, mock := newStoreWithMock(t)
	presented := hashOf("old")
	next := authcore.RefreshTokenRecord{Hash: hashOf("new"), ExpiresAt: time.Now().Add(time.Hour)}

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+user_refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+token_hash\s*=\s*\$2`).
		WithArgs("u1", presented[:]).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)INSERT\s+INTO\s+user_refresh_tokens\b`).
		WithArgs("u1", next.Hash[:], next.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+user_refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+expires_at`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+user_refresh_tokens.*NOT\s+IN`).
		WithArgs("u1", 10).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := s.RotateRefreshToken(context.Background(), "u1", presented, next, 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRotateRefreshTokenNotOnRecord(t *testing.T) {
	s, mock := newStoreWithMock(t)
	presented := hashOf("reused")

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+user_refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+token_hash`).
		WithArgs("u1", presented[:]).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := s.RotateRefreshToken(context.Background(), "u1", presented, authcore.RefreshTokenRecord{}, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeRefreshTokens(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+user_refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1$`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.RevokeRefreshTokens(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestConsumeBackupCode(t *testing.T) {
	s, mock := newStoreWithMock(t)
	h := hashOf("CODE")

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+user_backup_codes\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+code_hash`).
		WithArgs("u1", h[:]).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+user_backup_codes\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+code_hash`).
		WithArgs("u1", h[:]).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.ConsumeBackupCode(context.Background(), "u1", h)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ConsumeBackupCode(context.Background(), "u1", h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnableMFA(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+mfa_enabled\s*=\s*TRUE`).
		WithArgs("u1", "SECRET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	changed, err := s.EnableMFA(context.Background(), "u1", "SECRET")
	require.NoError(t, err)
	assert.True(t, changed)

	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+mfa_enabled\s*=\s*TRUE`).
		WithArgs("u1", "SECRET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT 1 FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	changed, err = s.EnableMFA(context.Background(), "u1", "SECRET")
	require.NoError(t, err)
	assert.False(t, changed)

	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+mfa_enabled\s*=\s*TRUE`).
		WithArgs("ghost", "SECRET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT 1 FROM users WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	_, err = s.EnableMFA(context.Background(), "ghost", "SECRET")
	assert.ErrorIs(t, err, authcore.ErrUserNotFound)
}

func TestDisableMFAClearsCodes(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+mfa_enabled\s*=\s*FALSE`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM user_backup_codes WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectCommit()

	require.NoError(t, s.DisableMFA(context.Background(), "u1"))
}

func TestReplaceBackupCodes(t *testing.T) {
	s, mock := newStoreWithMock(t)
	h := hashOf("NEW")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec(`DELETE FROM user_backup_codes WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec(`(?s)INSERT\s+INTO\s+user_backup_codes\b`).
		WithArgs("u1", h[:]).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.ReplaceBackupCodes(context.Background(), "u1", [][32]byte{h}))
}

func TestReplaceBackupCodesBackendFailureRollsBack(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT 1 FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec(`DELETE FROM user_backup_codes WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	err := s.ReplaceBackupCodes(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, authcore.ErrStoreUnavailable)
}

func TestCountBackupCodes(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)SELECT\s+count\(\*\)\s+FROM\s+user_backup_codes`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.CountBackupCodes(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
