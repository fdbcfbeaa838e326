// Package stepup is the Merchant's Redis-backed ChallengeStore. Redis is a
// natural fit for StepUpChallenge: the 5-minute expiry is a native TTL,
// and attempt counting uses Redis's atomic HINCRBY the way the teacher's
// NonceStore uses SetNX for single-use tokens.
package stepup

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ucp-ap2-commerce/internal/merchant/domain"
	"ucp-ap2-commerce/internal/merchant/ports"

	goredis "github.com/redis/go-redis/v9"
)

// RedisChallengeStore implements ports.ChallengeStore.
type RedisChallengeStore struct {
	client *goredis.Client
	prefix string
}

// NewRedisChallengeStore creates a Redis-backed ChallengeStore.
func NewRedisChallengeStore(client *goredis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{client: client, prefix: "stepup:challenge:"}
}

func (s *RedisChallengeStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisChallengeStore) Create(ctx context.Context, c *domain.StepUpChallenge) error {
	ttl := time.Until(c.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	key := s.key(c.ID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"mandate_id":   c.MandateID,
		"method":       c.Method,
		"status":       c.Status,
		"attempts":     c.Attempts,
		"max_attempts": c.MaxAttempts,
		"code_hash":    c.CodeHash,
		"expires_at":   c.ExpiresAt.Unix(),
		"created_at":   c.CreatedAt.Unix(),
	})
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis create challenge: %w", err)
	}
	return nil
}

func (s *RedisChallengeStore) GetByID(ctx context.Context, id string) (*domain.StepUpChallenge, error) {
	vals, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get challenge: %w", err)
	}
	if len(vals) == 0 {
		return nil, ports.ErrNotFound
	}
	return challengeFromMap(id, vals)
}

// IncrementAttempts atomically bumps the attempt counter and returns the
// new value, so two concurrent OTP submissions (§5 "challenge concurrency")
// never both see a pre-increment count.
func (s *RedisChallengeStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	key := s.key(id)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis exists challenge: %w", err)
	}
	if exists == 0 {
		return 0, ports.ErrNotFound
	}
	n, err := s.client.HIncrBy(ctx, key, "attempts", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis increment attempts: %w", err)
	}
	return int(n), nil
}

func (s *RedisChallengeStore) UpdateStatus(ctx context.Context, id string, status string) error {
	key := s.key(id)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis exists challenge: %w", err)
	}
	if exists == 0 {
		return ports.ErrNotFound
	}
	if err := s.client.HSet(ctx, key, "status", status).Err(); err != nil {
		return fmt.Errorf("redis update challenge status: %w", err)
	}
	return nil
}

func challengeFromMap(id string, vals map[string]string) (*domain.StepUpChallenge, error) {
	attempts, _ := strconv.Atoi(vals["attempts"])
	maxAttempts, _ := strconv.Atoi(vals["max_attempts"])
	expiresAtUnix, _ := strconv.ParseInt(vals["expires_at"], 10, 64)
	createdAtUnix, _ := strconv.ParseInt(vals["created_at"], 10, 64)

	return &domain.StepUpChallenge{
		ID:          id,
		MandateID:   vals["mandate_id"],
		Method:      vals["method"],
		Status:      vals["status"],
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		CodeHash:    vals["code_hash"],
		ExpiresAt:   time.Unix(expiresAtUnix, 0).UTC(),
		CreatedAt:   time.Unix(createdAtUnix, 0).UTC(),
	}, nil
}
