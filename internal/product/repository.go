package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dapur-be/internal/db"
	"dapur-be/internal/logger"

	"go.uber.org/zap"
)

// Repository is the catalog stock store. stock_quantity is only ever changed
// through ConditionalDecrement and Increment.
type Repository interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
	GetStock(ctx context.Context, productID string) (*StockLevel, error)

	// ConditionalDecrement subtracts qty iff at least qty units remain,
	// returning the remaining stock. ErrInsufficientStock otherwise.
	ConditionalDecrement(ctx context.Context, productID string, qty int) (int, error)

	// Increment adds qty back unconditionally (rollback and cancellation).
	Increment(ctx context.Context, productID string, qty int) (int, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, stock_quantity, is_disabled, updated_at
		FROM products
		WHERE id = $1
	`, productID).Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.IsDisabled, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) || db.IsInvalidText(err) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, db.Wrap(fmt.Errorf("get product %s: %w", productID, err))
	}

	return &p, nil
}

func (r *repository) GetStock(ctx context.Context, productID string) (*StockLevel, error) {
	p, err := r.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	return &StockLevel{
		ProductID:     p.ID,
		StockQuantity: p.StockQuantity,
		IsAvailable:   p.IsAvailable(),
	}, nil
}

func (r *repository) ConditionalDecrement(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}

	log := logger.For(ctx, "repository", "ConditionalDecrement").With(
		zap.String("product_id", productID),
		zap.Int("quantity", qty),
	)

	var remaining int
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $1,
		    updated_at = NOW()
		WHERE id = $2 AND stock_quantity >= $1
		RETURNING stock_quantity
	`, qty, productID).Scan(&remaining)

	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("conditional decrement rejected")
		return 0, ErrInsufficientStock
	}
	if err != nil {
		log.Error("conditional decrement failed", zap.Error(err))
		return 0, db.Wrap(fmt.Errorf("decrement stock %s: %w", productID, err))
	}

	log.Debug("stock decremented", zap.Int("remaining", remaining))
	return remaining, nil
}

func (r *repository) Increment(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}

	var stock int
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $1,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING stock_quantity
	`, qty, productID).Scan(&stock)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, db.Wrap(fmt.Errorf("increment stock %s: %w", productID, err))
	}

	return stock, nil
}
