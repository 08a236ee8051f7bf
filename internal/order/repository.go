package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dapur-be/internal/db"
	"dapur-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	constraintOrderNumber   = "orders_order_number_key"
	constraintCartSessionID = "orders_cart_session_id_key"
)

// Repository is the order ledger. Orders are written once by Insert; after
// that only status, timestamps and cancelled_by change.
type Repository interface {
	// NextSequence bumps and returns the per-day order counter.
	NextSequence(ctx context.Context, day time.Time) (int64, error)

	// Insert writes the order and its items atomically. It fails with
	// errNumberTaken or ErrCartAlreadyOrdered on the unique keys.
	Insert(ctx context.Context, o *Order) error

	GetByID(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	GetByCartSession(ctx context.Context, cartSessionID string) (*Order, error)
	ListByPhone(ctx context.Context, phone string, status *Status) ([]*Order, error)

	// UpdateStatus moves the order from -> to iff it is still in from,
	// otherwise errStatusChanged.
	UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time, by Initiator) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `
	id, order_number, cart_session_id, customer_phone, customer_name,
	delivery_address, delivery_notes, subtotal, total, status,
	created_at, confirmed_at, preparing_at, ready_at, delivered_at,
	cancelled_at, cancelled_by, updated_at`

func (r *repository) NextSequence(ctx context.Context, day time.Time) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO order_number_counters (day, last_value)
		VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE
		SET last_value = order_number_counters.last_value + 1
		RETURNING last_value
	`, day.Format("2006-01-02")).Scan(&seq)
	if err != nil {
		return 0, db.Wrap(fmt.Errorf("next order sequence: %w", err))
	}
	return seq, nil
}

func (r *repository) Insert(ctx context.Context, o *Order) (err error) {
	log := logger.For(ctx, "repository", "Insert").With(
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return db.Wrap(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, cart_session_id, customer_phone, customer_name,
			delivery_address, delivery_notes, subtotal, total, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`,
		o.ID, o.OrderNumber, o.CartSessionID, o.CustomerPhone, o.CustomerName,
		o.DeliveryAddress, o.DeliveryNotes, o.Subtotal, o.Total, o.Status,
		o.CreatedAt,
	)
	switch {
	case db.IsUniqueViolation(err, constraintOrderNumber):
		log.Warn("order number collision")
		err = errNumberTaken
		return err
	case db.IsUniqueViolation(err, constraintCartSessionID):
		err = ErrCartAlreadyOrdered
		return err
	case err != nil:
		log.Error("failed to insert order", zap.Error(err))
		return db.Wrap(fmt.Errorf("insert order: %w", err))
	}

	for i, it := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				order_id, position, product_id, product_name,
				unit_price, quantity, line_total
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, o.ID, i, it.ProductID, it.ProductName, it.UnitPrice, it.Quantity, it.LineTotal)
		if err != nil {
			log.Error("failed to insert order item", zap.String("product_id", it.ProductID), zap.Error(err))
			return db.Wrap(fmt.Errorf("insert order item: %w", err))
		}
	}

	if err = tx.Commit(); err != nil {
		return db.Wrap(fmt.Errorf("commit order: %w", err))
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Order, error) {
	o, err := r.getOne(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id)
	if db.IsInvalidText(err) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return r.getOne(ctx, `SELECT`+orderColumns+` FROM orders WHERE order_number = $1`, number)
}

func (r *repository) GetByCartSession(ctx context.Context, cartSessionID string) (*Order, error) {
	return r.getOne(ctx, `SELECT`+orderColumns+` FROM orders WHERE cart_session_id = $1`, cartSessionID)
}

func (r *repository) getOne(ctx context.Context, query string, arg any) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, db.Wrap(fmt.Errorf("get order: %w", err))
	}

	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *repository) ListByPhone(ctx context.Context, phone string, status *Status) ([]*Order, error) {
	query := `SELECT` + orderColumns + ` FROM orders WHERE customer_phone = $1`
	args := []any{phone}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.Wrap(fmt.Errorf("list orders: %w", err))
	}
	defer rows.Close()

	var (
		orders []*Order
		ids    []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Wrap(err)
	}

	if len(orders) == 0 {
		return []*Order{}, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		o.Items = items[o.ID]
	}
	return orders, nil
}

func (r *repository) loadItems(ctx context.Context, orderIDs []string) (map[string][]OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, product_name, unit_price, quantity, line_total
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, db.Wrap(fmt.Errorf("load order items: %w", err))
	}
	defer rows.Close()

	out := make(map[string][]OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			it      OrderItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, db.Wrap(rows.Err())
}

func (r *repository) UpdateStatus(ctx context.Context, id string, from, to Status, at time.Time, by Initiator) error {
	col, ok := timestampColumns[to]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
	}

	var (
		res sql.Result
		err error
	)
	if to == StatusCancelled {
		res, err = r.db.ExecContext(ctx, `
			UPDATE orders
			SET status = $1, cancelled_at = $2, cancelled_by = $5, updated_at = $2
			WHERE id = $3 AND status = $4
		`, to, at, id, from, by)
	} else {
		res, err = r.db.ExecContext(ctx, fmt.Sprintf(`
			UPDATE orders
			SET status = $1, %s = $2, updated_at = $2
			WHERE id = $3 AND status = $4
		`, col), to, at, id, from)
	}
	if err != nil {
		return db.Wrap(fmt.Errorf("update order status: %w", err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errStatusChanged
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o           Order
		notes       sql.NullString
		cancelledBy sql.NullString
		confirmedAt sql.NullTime
		preparingAt sql.NullTime
		readyAt     sql.NullTime
		deliveredAt sql.NullTime
		cancelledAt sql.NullTime
	)

	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CartSessionID, &o.CustomerPhone, &o.CustomerName,
		&o.DeliveryAddress, &notes, &o.Subtotal, &o.Total, &o.Status,
		&o.CreatedAt, &confirmedAt, &preparingAt, &readyAt, &deliveredAt,
		&cancelledAt, &cancelledBy, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.DeliveryNotes = notes.String
	o.CancelledBy = Initiator(cancelledBy.String)
	o.ConfirmedAt = nullTime(confirmedAt)
	o.PreparingAt = nullTime(preparingAt)
	o.ReadyAt = nullTime(readyAt)
	o.DeliveredAt = nullTime(deliveredAt)
	o.CancelledAt = nullTime(cancelledAt)
	return &o, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
