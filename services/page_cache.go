package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estate-backend/models"

	"github.com/redis/go-redis/v9"
)

const (
	PageProjectManagement = "/project-management"
	PageProjects          = "/projects"
)

func PageProjectsByStatus(status models.ProjectStatus) string {
	return "/projects/" + string(status)
}

func PageProjectDetail(status models.ProjectStatus, id uint) string {
	return fmt.Sprintf("/projects/%s/%d", status, id)
}

// PageCache holds rendered JSON for public pages keyed by page path.
type PageCache interface {
	Get(ctx context.Context, page string) ([]byte, bool, error)
	Set(ctx context.Context, page string, body []byte) error
	Invalidate(ctx context.Context, pages ...string) error
}

type RedisPageCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisPageCache(client *redis.Client, ttl time.Duration) *RedisPageCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisPageCache{client: client, ttl: ttl, prefix: "page:"}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisPageCache) Get(ctx context.Context, page string) ([]byte, bool, error) {
	body, err := c.client.Get(ctx, c.prefix+page).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get page %s: %w", page, err)
	}
	return body, true, nil
}

func (c *RedisPageCache) Set(ctx context.Context, page string, body []byte) error {
	if err := c.client.Set(ctx, c.prefix+page, body, c.ttl).Err(); err != nil {
		return fmt.Errorf("set page %s: %w", page, err)
	}
	return nil
}

func (c *RedisPageCache) Invalidate(ctx context.Context, pages ...string) error {
	if len(pages) == 0 {
		return nil
	}
	keys := make([]string, 0, len(pages))
	for _, p := range pages {
		keys = append(keys, c.prefix+p)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate pages: %w", err)
	}
	return nil
}

// NoopPageCache is used when no Redis is configured.
type NoopPageCache struct{}

func (NoopPageCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NoopPageCache) Set(context.Context, string, []byte) error         { return nil }
func (NoopPageCache) Invalidate(context.Context, ...string) error       { return nil }
