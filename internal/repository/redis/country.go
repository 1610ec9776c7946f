package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const countryKeyPrefix = "selected-country:"

// CountryRepository implements repository.CountryRepository using Redis.
type CountryRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCountryRepository creates a Redis-backed country selection store. A zero
// ttl keeps selections indefinitely.
func NewCountryRepository(client redis.UniversalClient, ttl time.Duration) *CountryRepository {
	return &CountryRepository{client: client, ttl: ttl}
}

// GetSelected returns the saved country code of a session.
func (r *CountryRepository) GetSelected(ctx context.Context, sessionID string) (string, error) {
	code, err := r.client.Get(ctx, countryKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.NotFound("selected country", sessionID)
		}
		return "", fmt.Errorf("redis get selected country: %w", err)
	}
	return code, nil
}

// SaveSelected persists the country code of a session.
func (r *CountryRepository) SaveSelected(ctx context.Context, sessionID, code string) error {
	if err := r.client.Set(ctx, countryKeyPrefix+sessionID, code, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set selected country: %w", err)
	}
	return nil
}
