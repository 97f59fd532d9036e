package database

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hutch/pkg/log"
)

func newMockDB(t *testing.T, slow time.Duration) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return New(sqlx.NewDb(sqlDB, "sqlmock"), slow), mock
}

// TestWithTxCommit tests that a successful closure commits
func TestWithTxCommit(t *testing.T) {
	db, mock := newMockDB(t, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE workspaces").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.WithTx(context.Background(), func(tx *Tx) error {
		_, err := tx.ExecContext(context.Background(),
			`UPDATE workspaces SET runtime_state = $1 WHERE id = $2`, "running", "id-1")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestWithTxRollbackOnError tests that a failing closure rolls back
func TestWithTxRollbackOnError(t *testing.T) {
	db, mock := newMockDB(t, time.Second)

	mock.ExpectBegin()
	mock.ExpectRollback()

	wantErr := errors.New("boom")
	err := db.WithTx(context.Background(), func(tx *Tx) error {
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestWithTxRollbackOnPanic tests that a panicking closure rolls back and
// the panic propagates
func TestWithTxRollbackOnPanic(t *testing.T) {
	db, mock := newMockDB(t, time.Second)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = db.WithTx(context.Background(), func(tx *Tx) error {
			panic("handler gone")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestWithTxRetriesSerializationFailure tests the single retry on 40001
func TestWithTxRetriesSerializationFailure(t *testing.T) {
	db, mock := newMockDB(t, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subscriptions").
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subscriptions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	calls := 0
	err := db.WithTx(context.Background(), func(tx *Tx) error {
		calls++
		_, err := tx.ExecContext(context.Background(),
			`UPDATE subscriptions SET state = $1 WHERE id = $2`, "active", "id-1")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestWithTxRetriesOnlyOnce tests that a persistent serialization failure
// surfaces after the second attempt
func TestWithTxRetriesOnlyOnce(t *testing.T) {
	db, mock := newMockDB(t, time.Second)

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE subscriptions").
			WillReturnError(&pgconn.PgError{Code: "40001"})
		mock.ExpectRollback()
	}

	calls := 0
	err := db.WithTx(context.Background(), func(tx *Tx) error {
		calls++
		_, err := tx.ExecContext(context.Background(),
			`UPDATE subscriptions SET state = $1 WHERE id = $2`, "active", "id-1")
		return err
	})

	assert.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestWithTxDoesNotRetryOtherErrors tests that ordinary failures surface
// immediately
func TestWithTxDoesNotRetryOtherErrors(t *testing.T) {
	db, mock := newMockDB(t, time.Second)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	mock.ExpectRollback()

	calls := 0
	err := db.WithTx(context.Background(), func(tx *Tx) error {
		calls++
		_, err := tx.ExecContext(context.Background(),
			`INSERT INTO users (email) VALUES ($1)`, "a@x.test")
		return err
	})

	assert.True(t, IsUniqueViolation(err))
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSlowQueryLogged tests the slow-query warning path
func TestSlowQueryLogged(t *testing.T) {
	var buf bytes.Buffer
	log.Init(log.Config{Level: log.DebugLevel, JSONOutput: true, Output: &buf})

	db, mock := newMockDB(t, time.Nanosecond)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(3)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(rows)

	var count int
	err := db.GetContext(context.Background(), &count,
		`SELECT COUNT(*) FROM workspaces WHERE owner_id = $1`, "owner-1")

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "SELECT COUNT(*)")
	// bound values are never logged
	assert.NotContains(t, buf.String(), "owner-1")
}

// TestFastQueryNotLogged tests that queries under the threshold stay quiet
func TestFastQueryNotLogged(t *testing.T) {
	var buf bytes.Buffer
	log.Init(log.Config{Level: log.DebugLevel, JSONOutput: true, Output: &buf})

	db, mock := newMockDB(t, time.Hour)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(rows)

	var count int
	require.NoError(t, db.GetContext(context.Background(), &count,
		`SELECT COUNT(*) FROM workspaces`))
	assert.NotContains(t, buf.String(), "slow query")
}

// TestErrorHelpers tests SQLSTATE classification
func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		unique     bool
		constraint string
		notFound   bool
	}{
		{
			name:       "unique violation",
			err:        &pgconn.PgError{Code: "23505", ConstraintName: "workspaces_owner_id_name_key"},
			unique:     true,
			constraint: "workspaces_owner_id_name_key",
		},
		{
			name:       "wrapped unique violation",
			err:        fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}),
			unique:     true,
			constraint: "users_email_key",
		},
		{name: "not found", err: sql.ErrNoRows, notFound: true},
		{name: "wrapped not found", err: fmt.Errorf("get user: %w", sql.ErrNoRows), notFound: true},
		{name: "other pg error", err: &pgconn.PgError{Code: "42703"}},
		{name: "plain error", err: errors.New("nope")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, IsUniqueViolation(tt.err))
			assert.Equal(t, tt.constraint, UniqueConstraint(tt.err))
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
		})
	}
}

// TestSummarize tests SQL text normalization for logs
func TestSummarize(t *testing.T) {
	assert.Equal(t, "SELECT 1", summarize("  SELECT\n\t1  "))

	long := "SELECT " + string(bytes.Repeat([]byte("x"), 200))
	assert.Len(t, summarize(long), 123)
}
