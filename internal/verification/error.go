package verification

import "errors"

var (
	ErrCodeNotFound = errors.New("verification code not found")
	ErrCodeExpired  = errors.New("verification code expired")
	ErrCodeMismatch = errors.New("verification code mismatch")
	ErrCodeConsumed = errors.New("verification code already used")
	ErrRateLimited  = errors.New("too many verification codes requested")
)
