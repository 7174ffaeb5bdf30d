package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/mesh/services/financial-rails/M43-referral-commission-service/internal/ports"
)

// Connect initializes a Redis client from URL or host:port input.
// Supporting both formats keeps local/dev and container config paths simple.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisTradeJobStore tracks webhook-ingested trade jobs in Redis.
// Entries live only for the polling window; the commission ledger is the
// durable record.
type RedisTradeJobStore struct {
	client *redis.Client
}

// NewRedisTradeJobStore creates the trade job cache adapter.
func NewRedisTradeJobStore(client *redis.Client) *RedisTradeJobStore {
	return &RedisTradeJobStore{client: client}
}

func (s *RedisTradeJobStore) Put(ctx context.Context, job ports.TradeJob, ttl time.Duration) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "referral:trade-job:"+job.JobID, raw, ttl).Err()
}

func (s *RedisTradeJobStore) Get(ctx context.Context, jobID string) (*ports.TradeJob, error) {
	raw, err := s.client.Get(ctx, "referral:trade-job:"+jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out ports.TradeJob
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
