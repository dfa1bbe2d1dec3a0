package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const (
	keyPrefix         = "cart:"
	maxUpdateAttempts = 3
)

// kv is the part of the client, transaction and pipeline APIs used to read
// and write cart documents.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CartRepository implements repository.CartRepository using Redis. Each cart
// is one JSON document under cart:<userID>.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves the cart of userID, or apperrors.ErrNotFound.
func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.get(ctx, r.client, userID)
}

// Save persists a cart with the configured TTL.
func (r *CartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	return r.save(ctx, r.client, cart)
}

// Delete removes the cart of userID.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}

// Update loads the user's cart (a new empty one when absent), applies fn
// and writes the result back under WATCH, retrying when another request
// changed the cart in between. An error from fn aborts without writing.
func (r *CartRepository) Update(ctx context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	key := keyPrefix + userID
	var result *domain.Cart

	txf := func(tx *redis.Tx) error {
		cart, err := r.get(ctx, tx, userID)
		if errors.Is(err, apperrors.ErrNotFound) {
			cart = domain.NewCart(userID)
		} else if err != nil {
			return err
		}

		if err := fn(cart); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return r.save(ctx, pipe, cart)
		})
		if err != nil {
			return err
		}
		result = cart
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, apperrors.Conflict("cart was modified concurrently, please retry")
}

func (r *CartRepository) get(ctx context.Context, c kv, userID string) (*domain.Cart, error) {
	data, err := c.Get(ctx, keyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.LineItem{}
	}
	return &cart, nil
}

func (r *CartRepository) save(ctx context.Context, c kv, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := c.Set(ctx, keyPrefix+cart.UserID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}
