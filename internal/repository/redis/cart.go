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

const cartKeyPrefix = "cart:"

// CartRepository implements repository.CartRepository using Redis.
type CartRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client redis.UniversalClient, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves the line list of a session from Redis.
func (r *CartRepository) Get(ctx context.Context, sessionID string) ([]domain.CartLine, error) {
	data, err := r.client.Get(ctx, cartKeyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", sessionID)
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, apperrors.Corrupt("unmarshal cart", err)
	}

	return lines, nil
}

// Save persists the line list with the configured TTL. An empty list is
// stored as an empty document so the session keeps its cart.
func (r *CartRepository) Save(ctx context.Context, sessionID string, lines []domain.CartLine) error {
	if lines == nil {
		lines = []domain.CartLine{}
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	if err := r.client.Set(ctx, cartKeyPrefix+sessionID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}

	return nil
}

// Delete removes a session's cart from Redis.
func (r *CartRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cartKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}

	return nil
}
