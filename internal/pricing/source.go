package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/krazyTry/meteora-graduator/internal/metrics"
)

// ErrNoReferencePrice is returned by a source that has no price for a mint.
var ErrNoReferencePrice = errors.New("reference price not available")

// ReferencePriceSource returns the USD price of a quote asset.
type ReferencePriceSource interface {
	ReferencePrice(ctx context.Context, mint solana.PublicKey) (decimal.Decimal, error)
}

// StaticSource serves fixed prices.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[solana.PublicKey]decimal.Decimal
}

func NewStaticSource(prices map[solana.PublicKey]decimal.Decimal) *StaticSource {
	s := &StaticSource{prices: make(map[solana.PublicKey]decimal.Decimal, len(prices))}
	for k, v := range prices {
		s.prices[k] = v
	}
	return s
}

func (s *StaticSource) Set(mint solana.PublicKey, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[mint] = price
}

func (s *StaticSource) ReferencePrice(_ context.Context, mint solana.PublicKey) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[mint]
	if !ok {
		return decimal.Zero, ErrNoReferencePrice
	}
	return price, nil
}

// RedisConfig holds the price cache connection settings.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// RedisSource reads prices written by an external feeder under <prefix><mint>.
// Values are either a bare decimal string or a JSON document with a "price" field.
type RedisSource struct {
	client  redis.UniversalClient
	prefix  string
	metrics *metrics.Metrics
}

// NewRedisSource connects to Redis and checks the connection.
func NewRedisSource(cfg RedisConfig, m *metrics.Metrics) (*RedisSource, error) {
	if cfg.Address == "" {
		cfg.Address = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisSourceFromClient(client, cfg.Prefix, m), nil
}

func NewRedisSourceFromClient(client redis.UniversalClient, prefix string, m *metrics.Metrics) *RedisSource {
	return &RedisSource{client: client, prefix: prefix, metrics: m}
}

func (s *RedisSource) Client() redis.UniversalClient { return s.client }

func (s *RedisSource) ReferencePrice(ctx context.Context, mint solana.PublicKey) (decimal.Decimal, error) {
	val, err := s.client.Get(ctx, s.prefix+mint.String()).Result()
	if err == redis.Nil {
		s.metrics.PriceCache("miss")
		return decimal.Zero, ErrNoReferencePrice
	}
	if err != nil {
		s.metrics.PriceCache("error")
		return decimal.Zero, fmt.Errorf("price cache get: %w", err)
	}

	price, err := ParsePrice(val)
	if err != nil {
		s.metrics.PriceCache("error")
		return decimal.Zero, err
	}
	s.metrics.PriceCache("hit")
	return price, nil
}

// ParsePrice accepts "123.45", "\"123.45\"", {"price":123.45} or {"price":"123.45"}.
// Non-positive prices count as absent.
func ParsePrice(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrNoReferencePrice
	}

	text := raw
	if gjson.Valid(raw) {
		res := gjson.Parse(raw)
		if res.IsObject() {
			res = res.Get("price")
		}
		if !res.Exists() {
			return decimal.Zero, ErrNoReferencePrice
		}
		text = res.String()
		if res.Type == gjson.Number {
			text = res.Raw
		}
	}

	price, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed reference price %q: %w", raw, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, ErrNoReferencePrice
	}
	return price, nil
}
