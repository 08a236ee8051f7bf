package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
)

// ErrStoreUnavailable marks infrastructure failures. Callers may retry reads
// that fail with it; writes are never retried blindly.
var ErrStoreUnavailable = errors.New("store unavailable")

const (
	PgInvalidText       = "22P02"
	PgUniqueViolation   = "23505"
	PgCheckViolation    = "23514"
	PgAdminShutdown     = "57P01"
	PgCannotConnectNow  = "57P03"
	PgSerializationFail = "40001"
)

// IsUniqueViolation reports whether err is a unique violation, optionally
// restricted to a named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != PgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsTransient reports whether err looks like the store being briefly
// unreachable rather than a business or programming error.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08":
			return true
		case pqErr.Code == PgAdminShutdown,
			pqErr.Code == PgCannotConnectNow,
			pqErr.Code == PgSerializationFail:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// Wrap tags transient errors with ErrStoreUnavailable and returns any other
// error unchanged.
func Wrap(err error) error {
	if err != nil && IsTransient(err) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

// IsInvalidText reports a malformed literal such as a non-UUID id.
func IsInvalidText(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == PgInvalidText
}
