package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dapur-be/internal/db"
	"dapur-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	// Issue stores rec unless phone already received limit codes since
	// windowStart. Issuers for the same phone are serialised.
	Issue(ctx context.Context, rec *Record, limit int, windowStart time.Time) error
	Latest(ctx context.Context, phone string) (*Record, error)
	MarkConsumed(ctx context.Context, id string, at time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Issue(ctx context.Context, rec *Record, limit int, windowStart time.Time) (err error) {
	log := logger.For(ctx, "repository", "Issue").With(zap.String("phone", rec.Phone))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return db.Wrap(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rec.Phone); err != nil {
		return db.Wrap(fmt.Errorf("lock phone: %w", err))
	}

	var issued int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM verification_codes
		WHERE phone = $1 AND created_at >= $2
	`, rec.Phone, windowStart).Scan(&issued)
	if err != nil {
		return db.Wrap(fmt.Errorf("count codes: %w", err))
	}

	if issued >= limit {
		log.Info("verification code rate limit reached", zap.Int("issued", issued))
		err = ErrRateLimited
		return err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO verification_codes (phone, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, rec.Phone, rec.CodeHash, rec.ExpiresAt, rec.CreatedAt).Scan(&rec.ID)
	if err != nil {
		return db.Wrap(fmt.Errorf("insert code: %w", err))
	}

	if err = tx.Commit(); err != nil {
		return db.Wrap(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (r *repository) Latest(ctx context.Context, phone string) (*Record, error) {
	var (
		rec        Record
		consumedAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, phone, code_hash, expires_at, consumed_at, created_at
		FROM verification_codes
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, phone).Scan(&rec.ID, &rec.Phone, &rec.CodeHash, &rec.ExpiresAt, &consumedAt, &rec.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, db.Wrap(fmt.Errorf("latest code: %w", err))
	}

	if consumedAt.Valid {
		rec.ConsumedAt = &consumedAt.Time
	}
	return &rec, nil
}

// MarkConsumed flips consumed_at once. A second caller gets ErrCodeConsumed.
func (r *repository) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE verification_codes
		SET consumed_at = $2
		WHERE id = $1 AND consumed_at IS NULL
	`, id, at)
	if err != nil {
		return db.Wrap(fmt.Errorf("consume code: %w", err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCodeConsumed
	}
	return nil
}

func (r *repository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE expires_at < $1`, before)
	if err != nil {
		return 0, db.Wrap(fmt.Errorf("delete expired codes: %w", err))
	}
	return res.RowsAffected()
}
