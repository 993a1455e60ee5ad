package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/config"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

// AlertChannel is the pub/sub channel fired alerts are published on.
const AlertChannel = "stock-alerts"

// Client wraps the Redis client with quote-cache operations
type Client struct {
	rdb *redis.Client
}

// New creates a new Redis client
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Previous-close caching. The cache is keyed by trading date so a stale
// close from an earlier session is never reused.

// SetPreviousClose caches a symbol's previous close for a trading date.
func (c *Client) SetPreviousClose(ctx context.Context, date, symbol string, close float64, ttl time.Duration) error {
	key := fmt.Sprintf("stock:%s:prevclose:%s", symbol, date)
	return c.rdb.Set(ctx, key, close, ttl).Err()
}

// GetPreviousClose retrieves a cached previous close for a trading date.
func (c *Client) GetPreviousClose(ctx context.Context, date, symbol string) (float64, error) {
	key := fmt.Sprintf("stock:%s:prevclose:%s", symbol, date)
	return c.rdb.Get(ctx, key).Float64()
}

// Quote caching

// SetQuote caches the latest merged quote for a symbol.
func (c *Client) SetQuote(ctx context.Context, q models.Quote, ttl time.Duration) error {
	key := fmt.Sprintf("stock:%s:quote", q.Code)
	payload, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}
	return c.rdb.Set(ctx, key, payload, ttl).Err()
}

// GetQuote retrieves the cached quote for a symbol, nil on a cache miss.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	key := fmt.Sprintf("stock:%s:quote", symbol)
	payload, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var q models.Quote
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote: %w", err)
	}
	return &q, nil
}

// Pub/Sub operations for fired alerts

// PublishAlert publishes a fired alert on the alert channel.
func (c *Client) PublishAlert(ctx context.Context, event models.AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}
	return c.rdb.Publish(ctx, AlertChannel, payload).Err()
}

// Subscribe returns a subscription to one or more channels.
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channels...)
}
