package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"issue-map/internal/config"
	"issue-map/internal/model"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	issueListKey    = "issues:all"
	issueVersionKey = "issues:version"
	eventQueueKey   = "issues:events"
)

type RedisCache struct {
	cache   *redis.Client
	listTTL time.Duration
}

func NewRedisCache(ctx context.Context, cfg config.RedisConfig) (*RedisCache, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ListTTL == 0 {
		cfg.ListTTL = 30 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		Username:     cfg.User,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis server: %w", err)
	}

	return &RedisCache{cache: client, listTTL: cfg.ListTTL}, nil
}

// GetList reports a miss on any error so that Postgres stays the source of truth.
func (c *RedisCache) GetList(ctx context.Context) ([]model.Issue, bool) {
	data, err := c.cache.Get(ctx, issueListKey).Bytes()
	if err != nil {
		return nil, false
	}
	var issues []model.Issue
	if err := json.Unmarshal(data, &issues); err != nil {
		return nil, false
	}
	return issues, true
}

// ListVersion returns the counter bumped by every InvalidateList. Read it before querying
// Postgres and hand it to SetList.
func (c *RedisCache) ListVersion(ctx context.Context) (int64, error) {
	v, err := c.cache.Get(ctx, issueVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// SetList caches issues only if no invalidation happened since version was read, so a list
// fetched before a write cannot outlive it.
func (c *RedisCache) SetList(ctx context.Context, issues []model.Issue, version int64) {
	b, err := json.Marshal(issues)
	if err != nil {
		return
	}
	_ = c.cache.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, issueVersionKey).Int64()
		if errors.Is(err, redis.Nil) {
			current, err = 0, nil
		}
		if err != nil || current != version {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, issueListKey, b, c.listTTL)
			return nil
		})
		return err
	}, issueVersionKey)
}

func (c *RedisCache) InvalidateList(ctx context.Context) {
	_, _ = c.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, issueVersionKey)
		pipe.Del(ctx, issueListKey)
		return nil
	})
}

func (c *RedisCache) PushEvent(ctx context.Context, payload model.WebhookPayload) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return c.cache.RPush(ctx, eventQueueKey, b).Err()
}

// ErrQueueEmpty is returned by BLPopEvent when the timeout elapsed without an event.
var ErrQueueEmpty = errors.New("event queue is empty")

func (c *RedisCache) BLPopEvent(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := c.cache.BLPop(ctx, timeout, eventQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrQueueEmpty
	}
	if err != nil {
		return "", err
	}
	// BLPOP answers [key, value].
	if len(res) != 2 {
		return "", fmt.Errorf("unexpected BLPOP reply of %d elements", len(res))
	}
	return res[1], nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.cache.Ping(ctx).Err()
}
