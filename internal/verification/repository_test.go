package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"dapur-be/internal/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phone = "+6281234567890"

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewRepository(conn), mock
}

func TestRepository_Issue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	windowStart := now.Add(-time.Hour)

	newRecord := func() *Record {
		return &Record{Phone: phone, CodeHash: "hash", ExpiresAt: now.Add(5 * time.Minute), CreatedAt: now}
	}

	t.Run("Success", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
			WithArgs(phone).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM verification_codes WHERE phone = \$1 AND created_at >= \$2`).
			WithArgs(phone, windowStart).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		mock.ExpectQuery(`INSERT INTO verification_codes`).
			WithArgs(phone, "hash", now.Add(5*time.Minute), now).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("v-1"))
		mock.ExpectCommit()

		rec := newRecord()
		require.NoError(t, repo.Issue(ctx, rec, 3, windowStart))
		assert.Equal(t, "v-1", rec.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RateLimited", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WithArgs(phone).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT COUNT\(\*\)`).
			WithArgs(phone, windowStart).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectRollback()

		err := repo.Issue(ctx, newRecord(), 3, windowStart)
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsertFails", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).
			WithArgs(phone).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT COUNT\(\*\)`).
			WithArgs(phone, windowStart).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(`INSERT INTO verification_codes`).
			WillReturnError(&pq.Error{Code: "08006"})
		mock.ExpectRollback()

		err := repo.Issue(ctx, newRecord(), 3, windowStart)
		assert.ErrorIs(t, err, db.ErrStoreUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_Latest(t *testing.T) {
	ctx := context.Background()
	cols := []string{"id", "phone", "code_hash", "expires_at", "consumed_at", "created_at"}
	now := time.Now().UTC()

	t.Run("Unconsumed", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`SELECT id, phone, code_hash, expires_at, consumed_at, created_at FROM verification_codes WHERE phone = \$1 ORDER BY created_at DESC LIMIT 1`).
			WithArgs(phone).
			WillReturnRows(sqlmock.NewRows(cols).AddRow("v-1", phone, "hash", now.Add(time.Minute), nil, now))

		rec, err := repo.Latest(ctx, phone)
		require.NoError(t, err)
		assert.Equal(t, "v-1", rec.ID)
		assert.False(t, rec.IsConsumed())
	})

	t.Run("Consumed", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`SELECT .* FROM verification_codes`).
			WithArgs(phone).
			WillReturnRows(sqlmock.NewRows(cols).AddRow("v-1", phone, "hash", now.Add(time.Minute), now, now))

		rec, err := repo.Latest(ctx, phone)
		require.NoError(t, err)
		assert.True(t, rec.IsConsumed())
	})

	t.Run("NotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`SELECT .* FROM verification_codes`).
			WithArgs(phone).
			WillReturnRows(sqlmock.NewRows(cols))

		_, err := repo.Latest(ctx, phone)
		assert.ErrorIs(t, err, ErrCodeNotFound)
	})
}

func TestRepository_MarkConsumed(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	query := `UPDATE verification_codes SET consumed_at = \$2 WHERE id = \$1 AND consumed_at IS NULL`

	t.Run("Success", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(query).WithArgs("v-1", now).WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkConsumed(ctx, "v-1", now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadyConsumed", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(query).WithArgs("v-1", now).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.MarkConsumed(ctx, "v-1", now), ErrCodeConsumed)
	})

	t.Run("DBError", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(query).WithArgs("v-1", now).WillReturnError(errors.New("boom"))

		err := repo.MarkConsumed(ctx, "v-1", now)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrCodeConsumed)
	})
}

func TestRepository_DeleteExpired(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec(`DELETE FROM verification_codes WHERE expires_at < \$1`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
