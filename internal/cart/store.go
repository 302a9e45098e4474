package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the full cart snapshot per user as a single redis value.
// Every write replaces the snapshot and refreshes the TTL, so an active
// cart never expires mid-session.
type Store struct {
	RDB *redis.Client
	TTL time.Duration
}

func (s *Store) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func key(userID string) string {
	return "cart:" + userID
}

// Load returns the stored cart for a user, or an empty cart when none exists.
func (s *Store) Load(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.RDB == nil {
		return Cart{}, errors.New("cart store not configured")
	}
	raw, err := s.RDB.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Cart{UserID: userID}, nil
		}
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		// A corrupt snapshot is unrecoverable; start the user over rather
		// than failing every cart call.
		return Cart{UserID: userID}, nil
	}
	c.UserID = userID
	return c, nil
}

// Save replaces the user's snapshot and refreshes its TTL.
func (s *Store) Save(ctx context.Context, c Cart) error {
	if s == nil || s.RDB == nil {
		return errors.New("cart store not configured")
	}
	c.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.RDB.Set(ctx, key(c.UserID), raw, s.ttl()).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Delete removes the user's cart entirely.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if s == nil || s.RDB == nil {
		return errors.New("cart store not configured")
	}
	if err := s.RDB.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
