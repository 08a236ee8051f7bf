package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dapur-be/internal/cart"
	"dapur-be/internal/db"
	"dapur-be/internal/logger"
	"dapur-be/internal/metrics"
	"dapur-be/internal/notify"
	"dapur-be/internal/product"
	"dapur-be/internal/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxAllocationAttempts = 5

type Service interface {
	// CreateOrder turns a verified cart into a pending order, reserving
	// stock for every line or for none of them.
	CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error)

	// GetOrder accepts either the order id or its ORD- number.
	GetOrder(ctx context.Context, ref string) (*Order, error)
	ListOrdersByPhone(ctx context.Context, phone string, status *Status) ([]*Order, error)

	// ListOrdersAsCustomer consumes a verification code for phone before
	// listing its orders.
	ListOrdersAsCustomer(ctx context.Context, phone, code string, status *Status) ([]*Order, error)

	// Transition moves an order forward along the lifecycle. A target of
	// cancelled is treated as an admin cancellation.
	Transition(ctx context.Context, id string, target Status) (*Order, error)
	Cancel(ctx context.Context, id string, by Initiator) (*Order, error)

	// CancelAsCustomer re-verifies the phone that placed the order before
	// cancelling it.
	CancelAsCustomer(ctx context.Context, ref, phone, code string) (*Order, error)
}

// CartSource is the read side of the cart store.
type CartSource interface {
	GetCart(ctx context.Context, sessionID string) (*cart.Session, error)
}

// Verifier consumes one-time verification codes.
type Verifier interface {
	Consume(ctx context.Context, phone, code string) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, phone string, kind notify.Kind, data notify.Data)
}

type service struct {
	repo       Repository
	carts      CartSource
	stock      product.Repository
	verifier   Verifier
	dispatcher Dispatcher
	metrics    *metrics.Registry
	validate   *validator.Validate
	loc        *time.Location

	nowFunc func() time.Time
	backoff func() backoff.BackOff
}

func NewService(
	repo Repository,
	carts CartSource,
	stock product.Repository,
	verifier Verifier,
	dispatcher Dispatcher,
	m *metrics.Registry,
	loc *time.Location,
) Service {
	if loc == nil {
		loc = time.UTC
	}
	if m == nil {
		m = metrics.NewRegistry()
	}

	return &service{
		repo:       repo,
		carts:      carts,
		stock:      stock,
		verifier:   verifier,
		dispatcher: dispatcher,
		metrics:    m,
		validate:   validator.New(),
		loc:        loc,
		nowFunc:    time.Now,
		backoff:    newBackOff,
	}
}

// reservation is a cart line that passed the catalog checks.
type reservation struct {
	item     OrderItem
	stock    int
	reserved bool
}

func (s *service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	timer := metrics.StartTimer()
	defer timer.ObserveTo(s.metrics.OrderCreateLatency)

	log := logger.For(ctx, "service", "CreateOrder").With(
		zap.String("cart_session_id", in.CartSessionID),
	)

	if err := s.validate.Struct(in); err != nil {
		s.failed("invalid_input")
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	phone, err := utils.NormalizePhone(in.Phone)
	if err != nil {
		s.failed("invalid_input")
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	log = log.With(zap.String("phone", phone))

	if err := s.verifier.Consume(ctx, phone, in.Code); err != nil {
		if errors.Is(err, db.ErrStoreUnavailable) {
			log.Error("verification store unavailable", zap.Error(err))
			s.failed("store")
			return nil, err
		}
		log.Info("verification rejected", zap.Error(err))
		s.failed("verification")
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	sess, err := s.carts.GetCart(ctx, in.CartSessionID)
	if err != nil {
		log.Info("cart not usable", zap.Error(err))
		s.failed("cart")
		return nil, err
	}
	if len(sess.Items) == 0 {
		s.failed("cart")
		return nil, ErrEmptyCart
	}

	switch _, err := s.repo.GetByCartSession(ctx, sess.ID); {
	case err == nil:
		s.failed("already_ordered")
		return nil, ErrCartAlreadyOrdered
	case !errors.Is(err, ErrOrderNotFound):
		log.Error("failed to check existing order", zap.Error(err))
		s.failed("store")
		return nil, err
	}

	// From here on stock may change; finish the saga even if the caller
	// goes away.
	wctx := context.WithoutCancel(ctx)

	lines, failures, err := s.snapshot(wctx, sess.Items)
	if err != nil {
		log.Error("failed to read catalog", zap.Error(err))
		s.failed("store")
		return nil, err
	}
	if len(failures) > 0 {
		s.failed("stock")
		return nil, &StockError{Items: failures}
	}

	failures, hardErr := s.reserve(wctx, lines)
	if len(failures) > 0 || hardErr != nil {
		if err := s.compensate(wctx, lines); err != nil {
			s.failed("compensation")
			return nil, err
		}
		if hardErr != nil {
			log.Error("stock reservation failed", zap.Error(hardErr))
			s.failed("store")
			return nil, hardErr
		}
		log.Info("stock reservation rejected", zap.Int("failed_items", len(failures)))
		s.failed("stock")
		return nil, &StockError{Items: failures}
	}

	now := s.nowFunc()
	o := &Order{
		ID:              uuid.New().String(),
		CartSessionID:   sess.ID,
		CustomerPhone:   phone,
		CustomerName:    in.Customer.Name,
		DeliveryAddress: in.Customer.DeliveryAddress,
		DeliveryNotes:   in.Customer.DeliveryNotes,
		Items:           make([]OrderItem, 0, len(lines)),
		Subtotal:        decimal.Zero,
		Status:          StatusPending,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	for _, l := range lines {
		o.Items = append(o.Items, l.item)
		o.Subtotal = o.Subtotal.Add(l.item.LineTotal)
	}
	o.Total = o.Subtotal

	if err := s.persist(wctx, o, now); err != nil {
		log.Error("failed to persist order, releasing stock", zap.Error(err))
		if cerr := s.compensate(wctx, lines); cerr != nil {
			s.failed("compensation")
			return nil, cerr
		}
		switch {
		case errors.Is(err, ErrCartAlreadyOrdered):
			s.failed("already_ordered")
		case errors.Is(err, ErrOrderNumberAllocation):
			s.failed("number_allocation")
		default:
			s.failed("store")
		}
		return nil, err
	}

	s.metrics.OrdersCreated.Inc()
	log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("total", o.Total.StringFixed(2)),
	)

	s.notify(ctx, o, StatusPending)
	return o, nil
}

// snapshot re-reads every product and freezes name and price. Business
// failures are collected per line; infrastructure failures abort.
func (s *service) snapshot(ctx context.Context, items []cart.Item) ([]*reservation, []ItemFailure, error) {
	lines := make([]*reservation, 0, len(items))
	var failures []ItemFailure

	for _, it := range items {
		var p *product.Product
		err := retry(ctx, readAttempts, s.backoff, isTransient, func() error {
			var err error
			p, err = s.stock.GetProduct(ctx, it.ProductID)
			return err
		})

		switch {
		case errors.Is(err, product.ErrProductNotFound):
			failures = append(failures, ItemFailure{ProductID: it.ProductID, Requested: it.Quantity, Err: product.ErrProductNotFound})
			continue
		case err != nil:
			return nil, nil, err
		case !p.IsAvailable():
			failures = append(failures, ItemFailure{ProductID: it.ProductID, Requested: it.Quantity, Err: product.ErrProductUnavailable})
			continue
		case p.StockQuantity < it.Quantity:
			failures = append(failures, ItemFailure{ProductID: it.ProductID, Requested: it.Quantity, Available: p.StockQuantity, Err: product.ErrInsufficientStock})
			continue
		}

		lines = append(lines, &reservation{
			item: OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				UnitPrice:   p.Price,
				Quantity:    it.Quantity,
				LineTotal:   p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))),
			},
			stock: p.StockQuantity,
		})
	}

	return lines, failures, nil
}

// reserve attempts the conditional decrement for every line so the caller
// learns about all short items at once. Decrements are never retried: a
// failed call may or may not have applied.
func (s *service) reserve(ctx context.Context, lines []*reservation) ([]ItemFailure, error) {
	var (
		failures []ItemFailure
		hardErr  error
	)

	for _, l := range lines {
		_, err := s.stock.ConditionalDecrement(ctx, l.item.ProductID, l.item.Quantity)
		switch {
		case err == nil:
			l.reserved = true
		case errors.Is(err, product.ErrInsufficientStock):
			s.metrics.StockConflicts.Inc()
			failures = append(failures, ItemFailure{
				ProductID: l.item.ProductID,
				Requested: l.item.Quantity,
				Available: l.stock,
				Err:       product.ErrInsufficientStock,
			})
		case errors.Is(err, product.ErrProductNotFound):
			failures = append(failures, ItemFailure{ProductID: l.item.ProductID, Requested: l.item.Quantity, Err: product.ErrProductNotFound})
		default:
			logger.For(ctx, "service", "reserve").Error("decrement outcome unknown",
				zap.String("product_id", l.item.ProductID),
				zap.Int("quantity", l.item.Quantity),
				zap.Bool("reconcile", true),
				zap.Error(err),
			)
			if hardErr == nil {
				hardErr = err
			}
		}
	}

	return failures, hardErr
}

// compensate gives back every reserved line. Lines that cannot be restored
// are logged for manual reconciliation.
func (s *service) compensate(ctx context.Context, lines []*reservation) error {
	log := logger.For(ctx, "service", "compensate")

	var failed []string
	for _, l := range lines {
		if !l.reserved {
			continue
		}
		if err := s.restore(ctx, l.item.ProductID, l.item.Quantity); err != nil {
			log.Error("stock compensation failed",
				zap.String("product_id", l.item.ProductID),
				zap.Int("quantity", l.item.Quantity),
				zap.Bool("reconcile", true),
				zap.Error(err),
			)
			failed = append(failed, l.item.ProductID)
			continue
		}
		l.reserved = false
		s.metrics.Compensations.Inc()
	}

	if len(failed) > 0 {
		s.metrics.CompensationFailures.Add(float64(len(failed)))
		return fmt.Errorf("%w: products %v", ErrCompensationFailed, failed)
	}
	return nil
}

func (s *service) restore(ctx context.Context, productID string, qty int) error {
	retryable := func(err error) bool {
		return !errors.Is(err, product.ErrProductNotFound) && !errors.Is(err, product.ErrInvalidQuantity)
	}
	return retry(ctx, restoreAttempts, s.backoff, retryable, func() error {
		_, err := s.stock.Increment(ctx, productID, qty)
		return err
	})
}

// persist allocates an order number and inserts the order, allocating again
// if the number turns out to be taken.
func (s *service) persist(ctx context.Context, o *Order, now time.Time) error {
	day := orderDay(now, s.loc)

	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		var seq int64
		err := retry(ctx, readAttempts, s.backoff, isTransient, func() error {
			var err error
			seq, err = s.repo.NextSequence(ctx, day)
			return err
		})
		if err != nil {
			return err
		}

		o.OrderNumber = FormatOrderNumber(day, seq)

		err = s.repo.Insert(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errNumberTaken) {
			return err
		}

		s.metrics.NumberRetries.Inc()
		logger.For(ctx, "service", "persist").Warn("order number taken, allocating again",
			zap.String("order_number", o.OrderNumber),
			zap.Int("attempt", attempt+1),
		)
	}

	o.OrderNumber = ""
	return ErrOrderNumberAllocation
}

func (s *service) GetOrder(ctx context.Context, ref string) (*Order, error) {
	if ref == "" {
		return nil, ErrOrderNotFound
	}

	var o *Order
	err := retry(ctx, readAttempts, s.backoff, isTransient, func() error {
		var err error
		if IsOrderNumber(ref) {
			o, err = s.repo.GetByNumber(ctx, ref)
		} else {
			if _, perr := uuid.Parse(ref); perr != nil {
				return ErrOrderNotFound
			}
			o, err = s.repo.GetByID(ctx, ref)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) ListOrdersByPhone(ctx context.Context, rawPhone string, status *Status) ([]*Order, error) {
	phone, err := utils.NormalizePhone(rawPhone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var orders []*Order
	err = retry(ctx, readAttempts, s.backoff, isTransient, func() error {
		var err error
		orders, err = s.repo.ListByPhone(ctx, phone, status)
		return err
	})
	if err != nil {
		logger.For(ctx, "service", "ListOrdersByPhone").Error("failed to list orders", zap.Error(err))
		return nil, err
	}
	return orders, nil
}

func (s *service) Transition(ctx context.Context, id string, target Status) (*Order, error) {
	if target == StatusCancelled {
		return s.Cancel(ctx, id, InitiatorAdmin)
	}

	log := logger.For(ctx, "service", "Transition").With(
		zap.String("order_id", id),
		zap.String("target", string(target)),
	)

	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(o.Status, target) {
		log.Info("transition rejected", zap.String("from", string(o.Status)))
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, o.Status, target)
	}

	now := s.nowFunc().UTC()
	if err := s.repo.UpdateStatus(context.WithoutCancel(ctx), o.ID, o.Status, target, now, ""); err != nil {
		if errors.Is(err, errStatusChanged) {
			log.Info("order changed concurrently")
			return nil, fmt.Errorf("%w: %s changed concurrently", ErrInvalidStatusTransition, o.OrderNumber)
		}
		log.Error("failed to update status", zap.Error(err))
		return nil, err
	}

	from := o.Status
	o.stamp(target, now)
	s.metrics.Transitions.WithLabelValues(string(target)).Inc()
	log.Info("order status changed", zap.String("from", string(from)), zap.String("order_number", o.OrderNumber))

	s.notify(ctx, o, target)
	return o, nil
}

func (s *service) Cancel(ctx context.Context, id string, by Initiator) (*Order, error) {
	log := logger.For(ctx, "service", "Cancel").With(
		zap.String("order_id", id),
		zap.String("initiator", string(by)),
	)

	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanCancel(o.Status, by) {
		log.Info("cancellation rejected", zap.String("from", string(o.Status)))
		return nil, fmt.Errorf("%w: %s cannot cancel a %s order", ErrInvalidStatusTransition, by, o.Status)
	}

	wctx := context.WithoutCancel(ctx)
	now := s.nowFunc().UTC()
	if err := s.repo.UpdateStatus(wctx, o.ID, o.Status, StatusCancelled, now, by); err != nil {
		if errors.Is(err, errStatusChanged) {
			return nil, fmt.Errorf("%w: %s changed concurrently", ErrInvalidStatusTransition, o.OrderNumber)
		}
		log.Error("failed to cancel order", zap.Error(err))
		return nil, err
	}

	o.stamp(StatusCancelled, now)
	o.CancelledBy = by
	s.metrics.Transitions.WithLabelValues(string(StatusCancelled)).Inc()

	var failed []string
	for _, it := range o.Items {
		if err := s.restore(wctx, it.ProductID, it.Quantity); err != nil {
			log.Error("failed to restore stock for cancelled order",
				zap.String("order_number", o.OrderNumber),
				zap.String("product_id", it.ProductID),
				zap.Int("quantity", it.Quantity),
				zap.Bool("reconcile", true),
				zap.Error(err),
			)
			failed = append(failed, it.ProductID)
		}
	}

	log.Info("order cancelled", zap.String("order_number", o.OrderNumber))
	s.notify(ctx, o, StatusCancelled)

	if len(failed) > 0 {
		s.metrics.CompensationFailures.Add(float64(len(failed)))
		return o, fmt.Errorf("%w: products %v", ErrCompensationFailed, failed)
	}
	return o, nil
}

func (s *service) CancelAsCustomer(ctx context.Context, ref, rawPhone, code string) (*Order, error) {
	phone, err := utils.NormalizePhone(rawPhone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	o, err := s.GetOrder(ctx, ref)
	if err != nil {
		return nil, err
	}
	// Do not reveal that the order exists to someone else.
	if o.CustomerPhone != phone {
		return nil, ErrOrderNotFound
	}

	if err := s.consume(ctx, phone, code); err != nil {
		return nil, err
	}

	return s.Cancel(ctx, o.ID, InitiatorCustomer)
}

func (s *service) ListOrdersAsCustomer(ctx context.Context, rawPhone, code string, status *Status) ([]*Order, error) {
	phone, err := utils.NormalizePhone(rawPhone)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.consume(ctx, phone, code); err != nil {
		return nil, err
	}
	return s.ListOrdersByPhone(ctx, phone, status)
}

func (s *service) consume(ctx context.Context, phone, code string) error {
	if err := s.verifier.Consume(ctx, phone, code); err != nil {
		if errors.Is(err, db.ErrStoreUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	return nil
}

func (s *service) notify(ctx context.Context, o *Order, status Status) {
	kind, ok := KindForStatus(status)
	if !ok || s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(ctx, o.CustomerPhone, kind, notify.Data{
		CustomerName: o.CustomerName,
		OrderNumber:  o.OrderNumber,
		Total:        utils.FormatIDR(o.Total),
	})
}

func (s *service) failed(reason string) {
	s.metrics.OrderCreateFailures.WithLabelValues(reason).Inc()
}
