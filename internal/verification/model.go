package verification

import "time"

// Record is one issued verification code. Only the bcrypt hash of the code
// is stored.
type Record struct {
	ID         string
	Phone      string
	CodeHash   string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

func (r *Record) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

func (r *Record) IsConsumed() bool {
	return r.ConsumedAt != nil
}
