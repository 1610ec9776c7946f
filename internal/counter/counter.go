// Package counter keeps the shared cart item count of a session and broadcasts
// every change to the header badge over Redis pub/sub.
package counter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cart-count:"

// Update is one count change as seen by subscribers.
type Update struct {
	Count    int  `json:"count"`
	Previous int  `json:"previous"`
	Animate  bool `json:"animate"`
	// Initial marks the first report for a session.
	Initial bool `json:"initial,omitempty"`
}

// Counter stores the last reported count per session and publishes updates on
// the channel of the same name.
type Counter struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a Counter. Counts expire together with the cart after ttl.
func New(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Counter {
	return &Counter{client: client, ttl: ttl, logger: logger}
}

// Channel returns the key and pub/sub channel for a session.
func Channel(sessionID string) string {
	return keyPrefix + sessionID
}

// Report records count for the session and publishes the resulting update.
// The badge animates only when the count grew from a known previous value.
func (c *Counter) Report(ctx context.Context, sessionID string, count int) (Update, error) {
	key := Channel(sessionID)

	pipe := c.client.TxPipeline()
	prevCmd := pipe.GetSet(ctx, key, count)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Update{}, fmt.Errorf("redis store cart count: %w", err)
	}

	u := Update{Count: count}
	prev, err := prevCmd.Result()
	switch {
	case errors.Is(err, redis.Nil):
		u.Initial = true
	case err != nil:
		return Update{}, fmt.Errorf("redis store cart count: %w", err)
	default:
		p, convErr := strconv.Atoi(prev)
		if convErr != nil {
			c.logger.WarnContext(ctx, "discarding unreadable cart count",
				slog.String("session_id", sessionID),
				slog.String("value", prev),
			)
			u.Initial = true
			break
		}
		u.Previous = p
		u.Animate = count > p && count > 0
	}

	data, err := json.Marshal(u)
	if err != nil {
		return u, fmt.Errorf("marshal cart count: %w", err)
	}
	if err := c.client.Publish(ctx, key, data).Err(); err != nil {
		return u, fmt.Errorf("redis publish cart count: %w", err)
	}

	return u, nil
}

// Current returns the last reported count. ok is false when nothing has been
// reported for the session.
func (c *Counter) Current(ctx context.Context, sessionID string) (count int, ok bool, err error) {
	raw, err := c.client.Get(ctx, Channel(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis get cart count: %w", err)
	}
	count, err = strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse cart count %q: %w", raw, err)
	}
	return count, true, nil
}

// Subscribe delivers the session's updates in publish order until ctx is
// cancelled, then closes the returned channel. The subscription is active when
// Subscribe returns.
func (c *Counter) Subscribe(ctx context.Context, sessionID string) (<-chan Update, error) {
	pubsub := c.client.Subscribe(ctx, Channel(sessionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe cart count: %w", err)
	}

	out := make(chan Update, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var u Update
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					c.logger.WarnContext(ctx, "dropping malformed cart count message",
						slog.String("session_id", sessionID),
						slog.String("error", err.Error()),
					)
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
