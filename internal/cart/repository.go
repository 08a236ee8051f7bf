package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dapur-be/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "cart:session:"

	// Keys outlive ExpiresAt so a late checkout sees ErrCartExpired instead
	// of ErrCartNotFound. Redis reclaims the key after the grace period.
	expiryGrace = time.Hour

	maxWatchRetries = 5
)

// Store holds anonymous cart sessions. The order engine only reads through
// GetCart; the rest serves the cart endpoints and post-checkout cleanup.
type Store interface {
	GetCart(ctx context.Context, sessionID string) (*Session, error)
	Create(ctx context.Context) (*Session, error)
	SetItem(ctx context.Context, sessionID, productID string, quantity int) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}

type redisStore struct {
	client  redis.UniversalClient
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) Store {
	return &redisStore{
		client:  client,
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func cartKey(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *redisStore) GetCart(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrCartNotFound
	}

	sess, err := load(ctx, s.client, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.IsExpired(s.nowFunc()) {
		return nil, ErrCartExpired
	}

	return sess, nil
}

func (s *redisStore) Create(ctx context.Context) (*Session, error) {
	now := s.nowFunc().UTC()
	sess := &Session{
		ID:        uuid.New().String(),
		Items:     []Item{},
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}

	ok, err := s.client.SetNX(ctx, cartKey(sess.ID), data, s.ttl+expiryGrace).Result()
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	if !ok {
		return nil, ErrCartConflict
	}

	return sess, nil
}

// SetItem sets the quantity of a product line; quantity 0 removes the line.
// Concurrent writers to the same cart are serialised with WATCH.
func (s *redisStore) SetItem(ctx context.Context, sessionID, productID string, quantity int) (*Session, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	log := logger.For(ctx, "repository", "SetItem").With(
		zap.String("cart_session_id", sessionID),
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
	)

	key := cartKey(sessionID)
	var updated *Session

	txf := func(tx *redis.Tx) error {
		sess, err := load(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		now := s.nowFunc()
		if sess.IsExpired(now) {
			return ErrCartExpired
		}

		sess.Items = upsertItem(sess.Items, productID, quantity)

		data, err := json.Marshal(sess)
		if err != nil {
			return err
		}

		keep := sess.ExpiresAt.Sub(now) + expiryGrace
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, keep)
			return nil
		})
		if err != nil {
			return err
		}

		updated = sess
		return nil
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			log.Debug("cart changed during update, retrying", zap.Int("attempt", i+1))
			continue
		}
		return nil, err
	}

	log.Warn("cart update gave up after concurrent modifications")
	return nil, ErrCartConflict
}

func (s *redisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, sessionID string) (*Session, error) {
	data, err := c.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", sessionID, err)
	}

	return &sess, nil
}

func upsertItem(items []Item, productID string, quantity int) []Item {
	out := make([]Item, 0, len(items)+1)
	found := false

	for _, it := range items {
		if it.ProductID != productID {
			out = append(out, it)
			continue
		}
		found = true
		if quantity > 0 {
			out = append(out, Item{ProductID: productID, Quantity: quantity})
		}
	}

	if !found && quantity > 0 {
		out = append(out, Item{ProductID: productID, Quantity: quantity})
	}

	return out
}
