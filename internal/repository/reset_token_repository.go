package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appErrors "github.com/edutrack/edutrack-api/pkg/errors"
)

const resetTokenPrefix = "reset_token:"

// ResetTokenRepository keeps password-reset tokens in Redis with a TTL.
// Tokens survive process restarts, are shared across instances, and
// expire on their own; consumption is atomic via GETDEL so a token can
// never be redeemed twice.
type ResetTokenRepository struct {
	client *redis.Client
}

// NewResetTokenRepository constructs the repository.
func NewResetTokenRepository(client *redis.Client) *ResetTokenRepository {
	return &ResetTokenRepository{client: client}
}

// Store saves a reset token mapped to the user ID with the given TTL.
func (r *ResetTokenRepository) Store(ctx context.Context, token, userID string, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("reset token store unavailable")
	}
	if err := r.client.Set(ctx, resetTokenPrefix+token, userID, ttl).Err(); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	return nil
}

// Consume atomically fetches and deletes a reset token, returning the
// user ID it was issued for. Expired or unknown tokens miss.
func (r *ResetTokenRepository) Consume(ctx context.Context, token string) (string, error) {
	if r.client == nil {
		return "", appErrors.ErrCacheMiss
	}
	userID, err := r.client.GetDel(ctx, resetTokenPrefix+token).Result()
	if err != nil {
		if err == redis.Nil {
			return "", appErrors.ErrCacheMiss
		}
		return "", fmt.Errorf("consume reset token: %w", err)
	}
	return userID, nil
}

// RevokeAll removes every outstanding reset token for a user. Called
// after a successful password change so stale links die immediately.
func (r *ResetTokenRepository) RevokeAll(ctx context.Context, userID string) error {
	if r.client == nil {
		return nil
	}
	iter := r.client.Scan(ctx, 0, resetTokenPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		owner, err := r.client.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return fmt.Errorf("revoke reset tokens: %w", err)
		}
		if owner != userID {
			continue
		}
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("revoke reset tokens: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("revoke reset tokens: %w", err)
	}
	return nil
}
