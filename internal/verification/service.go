package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"dapur-be/internal/logger"
	"dapur-be/internal/metrics"
	"dapur-be/internal/notify"
	"dapur-be/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const codeDigits = 6

// Dispatcher is the fire-and-forget notification sink.
type Dispatcher interface {
	Dispatch(ctx context.Context, phone string, kind notify.Kind, data notify.Data)
}

type Service interface {
	// Send issues a fresh code for phone and texts it to the customer.
	Send(ctx context.Context, phone string) error

	// Consume validates code against the latest record for phone and marks
	// it used. A code validates at most once.
	Consume(ctx context.Context, phone, code string) error

	// Sweep deletes records that can no longer validate nor count towards
	// the send ceiling, and reports how many were removed.
	Sweep(ctx context.Context) (int64, error)
}

type Options struct {
	TTL          time.Duration
	MaxPerWindow int
	Window       time.Duration
}

type service struct {
	repo       Repository
	dispatcher Dispatcher
	metrics    *metrics.Registry
	opts       Options

	bcryptCost int
	nowFunc    func() time.Time
	codeFunc   func() (string, error)
}

func NewService(repo Repository, dispatcher Dispatcher, m *metrics.Registry, opts Options) Service {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.MaxPerWindow <= 0 {
		opts.MaxPerWindow = 3
	}
	if opts.Window <= 0 {
		opts.Window = time.Hour
	}

	return &service{
		repo:       repo,
		dispatcher: dispatcher,
		metrics:    m,
		opts:       opts,
		bcryptCost: bcrypt.DefaultCost,
		nowFunc:    time.Now,
		codeFunc:   generateCode,
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func (s *service) Send(ctx context.Context, rawPhone string) error {
	phone, err := utils.NormalizePhone(rawPhone)
	if err != nil {
		return err
	}

	log := logger.For(ctx, "service", "Send").With(zap.String("phone", phone))

	code, err := s.codeFunc()
	if err != nil {
		log.Error("failed to generate code", zap.Error(err))
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.bcryptCost)
	if err != nil {
		log.Error("failed to hash code", zap.Error(err))
		return err
	}

	now := s.nowFunc().UTC()
	rec := &Record{
		Phone:     phone,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.opts.TTL),
		CreatedAt: now,
	}

	if err := s.repo.Issue(ctx, rec, s.opts.MaxPerWindow, now.Add(-s.opts.Window)); err != nil {
		if errors.Is(err, ErrRateLimited) {
			log.Warn("verification send rate limited")
			s.fail("rate_limited")
			return err
		}
		log.Error("failed to store verification code", zap.Error(err))
		return err
	}

	if s.metrics != nil {
		s.metrics.VerificationsIssued.Inc()
	}

	s.dispatcher.Dispatch(ctx, phone, notify.KindVerificationCode, notify.Data{
		Code:         code,
		ValidMinutes: int(s.opts.TTL.Round(time.Minute) / time.Minute),
	})

	log.Info("verification code issued", zap.String("verification_id", rec.ID))
	return nil
}

func (s *service) Consume(ctx context.Context, rawPhone, code string) error {
	phone, err := utils.NormalizePhone(rawPhone)
	if err != nil {
		s.fail("not_found")
		return fmt.Errorf("%w: %w", ErrCodeNotFound, err)
	}

	log := logger.For(ctx, "service", "Consume").With(zap.String("phone", phone))

	rec, err := s.repo.Latest(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			s.fail("not_found")
		} else {
			log.Error("failed to load verification code", zap.Error(err))
		}
		return err
	}

	now := s.nowFunc()
	switch {
	case rec.IsConsumed():
		s.fail("consumed")
		return ErrCodeConsumed
	case rec.IsExpired(now):
		s.fail("expired")
		return ErrCodeExpired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)); err != nil {
		s.fail("mismatch")
		return ErrCodeMismatch
	}

	if err := s.repo.MarkConsumed(ctx, rec.ID, now.UTC()); err != nil {
		if errors.Is(err, ErrCodeConsumed) {
			log.Warn("verification code consumed concurrently", zap.String("verification_id", rec.ID))
			s.fail("consumed")
		}
		return err
	}

	log.Info("verification code consumed", zap.String("verification_id", rec.ID))
	return nil
}

func (s *service) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.sweepCutoff())
	if err != nil {
		logger.For(ctx, "service", "Sweep").Error("failed to sweep verification codes", zap.Error(err))
		return 0, err
	}
	return n, nil
}

// sweepCutoff keeps every record still inside the rate window, since Issue
// counts them by created_at.
func (s *service) sweepCutoff() time.Time {
	keep := s.opts.Window
	if s.opts.TTL > keep {
		keep = s.opts.TTL
	}
	return s.nowFunc().UTC().Add(-keep)
}

func (s *service) fail(reason string) {
	if s.metrics != nil {
		s.metrics.VerificationFailures.WithLabelValues(reason).Inc()
	}
}
