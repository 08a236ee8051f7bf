package notify

import (
	"context"

	"dapur-be/internal/logger"

	"go.uber.org/zap"
)

type Message struct {
	Phone string `json:"phone"`
	Kind  Kind   `json:"-"`
	Body  string `json:"body"`
}

// Notifier delivers a rendered message. Delivery is best effort.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log instead of sending them.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, msg Message) error {
	logger.FromCtx(ctx).Info("sms (log driver)",
		zap.String("phone", msg.Phone),
		zap.String("kind", msg.Kind.String()),
		zap.String("body", msg.Body),
	)
	return nil
}
