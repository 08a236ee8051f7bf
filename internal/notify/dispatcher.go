package notify

import (
	"context"
	"sync"
	"time"

	"dapur-be/internal/logger"
	"dapur-be/internal/metrics"

	"go.uber.org/zap"
)

// Dispatcher renders and sends notifications in the background. Callers
// never wait on delivery and never see its errors.
type Dispatcher struct {
	notifier Notifier
	metrics  *metrics.Registry
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(n Notifier, m *metrics.Registry, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{notifier: n, metrics: m, timeout: timeout}
}

// Dispatch queues a message for phone. The request context only contributes
// its values; cancelling it does not abort delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, phone string, kind Kind, data Data) {
	log := logger.For(ctx, "notify", "Dispatch").With(
		zap.String("phone", phone),
		zap.String("kind", kind.String()),
	)

	body, err := Render(kind, data)
	if err != nil {
		log.Error("failed to render notification", zap.Error(err))
		d.count(kind, "render_error")
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Warn("dispatcher closed, dropping notification")
		d.count(kind, "dropped")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	sendCtx := context.WithoutCancel(ctx)

	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(sendCtx, d.timeout)
		defer cancel()

		msg := Message{Phone: phone, Kind: kind, Body: body}
		if err := d.notifier.Send(ctx, msg); err != nil {
			log.Warn("notification not delivered", zap.Error(err))
			d.count(kind, "failed")
			return
		}
		d.count(kind, "sent")
	}()
}

// Close stops accepting messages and waits for in-flight sends.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) count(kind Kind, outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.Notifications.WithLabelValues(kind.String(), outcome).Inc()
}
