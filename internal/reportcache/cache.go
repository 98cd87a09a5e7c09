// Package reportcache keeps finished game analyses in Redis.
package reportcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-coach/internal/domain"
)

const (
	keyPrefix  = "coach:report:"
	defaultTTL = 24 * time.Hour
)

// Cache stores zstd-compressed JSON under coach:report:<fingerprint>.
type Cache struct {
	rdb     *redis.Client
	ttl     time.Duration
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func New(rdb *redis.Client, ttl time.Duration) (*Cache, error) {
	if rdb == nil {
		return nil, errors.New("nil redis client")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Cache{rdb: rdb, ttl: ttl, encoder: encoder, decoder: decoder}, nil
}

// NewClient builds a go-redis client from a redis:// or rediss:// URL.
func NewClient(raw string) (*redis.Client, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	opt, err := redis.ParseURL(raw)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

func key(fingerprint string) string { return keyPrefix + strings.TrimSpace(fingerprint) }

// Get returns nil, nil on a miss.
func (c *Cache) Get(ctx context.Context, fingerprint string) (*domain.GameAnalysis, error) {
	raw, err := c.rdb.Get(ctx, key(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	plain, err := c.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress report: %w", err)
	}
	var a domain.GameAnalysis
	if err := json.Unmarshal(plain, &a); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &a, nil
}

func (c *Cache) Put(ctx context.Context, fingerprint string, a *domain.GameAnalysis) error {
	if a == nil {
		return errors.New("nil game analysis")
	}
	if a.Degraded {
		return nil
	}
	plain, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	packed := c.encoder.EncodeAll(plain, make([]byte, 0, len(plain)/3))
	if err := c.rdb.Set(ctx, key(fingerprint), packed, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	c.encoder.Close()
	c.decoder.Close()
	return c.rdb.Close()
}
