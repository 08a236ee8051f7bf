package notify

import "errors"

var (
	ErrUnknownKind   = errors.New("unknown notification kind")
	ErrUnknownDriver = errors.New("unknown notifier driver")
	ErrGateway       = errors.New("sms gateway rejected message")
	ErrMissingConfig = errors.New("notifier is missing configuration")
)
