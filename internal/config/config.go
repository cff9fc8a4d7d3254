package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL     string
	WSURL      string
	Commitment rpc.CommitmentType
	RPCRPS     float64
	RPCBurst   int

	PayerKey   string
	CreatorKey string
	PartnerKey string
	TraderKey  string

	Mirror   string
	PGDSN    string
	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PricePrefix   string
	StaticPrices  []string

	SweepInterval    time.Duration
	SweepConcurrency int
	MaxAttempts      int
	RetryBackoff     time.Duration
	MaxBackoff       time.Duration
	Lease            string
	LeaseTTL         time.Duration

	SendRetries      int
	ConfirmTimeout   time.Duration
	ComputeUnitPrice uint64

	MetricsAddr string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GRADUATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc", rpc.MainNetBeta_RPC)
	v.SetDefault("commitment", string(rpc.CommitmentConfirmed))
	v.SetDefault("rpc-rps", 10.0)
	v.SetDefault("rpc-burst", 20)
	v.SetDefault("mirror", "memory")
	v.SetDefault("mongo-db", "graduator")
	v.SetDefault("price-prefix", "price:")
	v.SetDefault("sweep-interval", time.Minute)
	v.SetDefault("sweep-concurrency", 8)
	v.SetDefault("max-attempts", 10)
	v.SetDefault("retry-backoff", 30*time.Second)
	v.SetDefault("max-backoff", 30*time.Minute)
	v.SetDefault("lease", "local")
	v.SetDefault("lease-ttl", 5*time.Minute)
	v.SetDefault("send-retries", 3)
	v.SetDefault("confirm-timeout", time.Minute)
	v.SetDefault("metrics-addr", ":9090")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:           v.GetString("rpc"),
		WSURL:            v.GetString("ws"),
		Commitment:       rpc.CommitmentType(v.GetString("commitment")),
		RPCRPS:           v.GetFloat64("rpc-rps"),
		RPCBurst:         v.GetInt("rpc-burst"),
		PayerKey:         v.GetString("payer-key"),
		CreatorKey:       v.GetString("creator-key"),
		PartnerKey:       v.GetString("partner-key"),
		TraderKey:        v.GetString("trader-key"),
		Mirror:           v.GetString("mirror"),
		PGDSN:            v.GetString("pg-dsn"),
		MongoURI:         v.GetString("mongo-uri"),
		MongoDB:          v.GetString("mongo-db"),
		RedisAddr:        v.GetString("redis-addr"),
		RedisPassword:    v.GetString("redis-password"),
		RedisDB:          v.GetInt("redis-db"),
		PricePrefix:      v.GetString("price-prefix"),
		StaticPrices:     getStringSlice(v, "static-prices"),
		SweepInterval:    v.GetDuration("sweep-interval"),
		SweepConcurrency: v.GetInt("sweep-concurrency"),
		MaxAttempts:      v.GetInt("max-attempts"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		MaxBackoff:       v.GetDuration("max-backoff"),
		Lease:            v.GetString("lease"),
		LeaseTTL:         v.GetDuration("lease-ttl"),
		SendRetries:      v.GetInt("send-retries"),
		ConfirmTimeout:   v.GetDuration("confirm-timeout"),
		ComputeUnitPrice: v.GetUint64("compute-unit-price"),
		MetricsAddr:      v.GetString("metrics-addr"),
		LogLevel:         v.GetString("log-level"),
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Commitment {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("unknown commitment %q", c.Commitment)
	}
	switch c.Mirror {
	case "memory", "postgres", "mongo":
	default:
		return fmt.Errorf("unknown mirror backend %q", c.Mirror)
	}
	switch c.Lease {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown lease %q", c.Lease)
	}
	if c.Lease == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("redis lease requires redis-addr")
	}
	return nil
}

// Key decodes a signer from a base58 secret or a solana-keygen JSON file.
// An empty value yields a nil key.
func Key(value string) (solana.PrivateKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if _, err := os.Stat(value); err == nil {
		return solana.PrivateKeyFromSolanaKeygenFile(value)
	}
	key, err := solana.PrivateKeyFromBase58(value)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return key, nil
}

// Prices parses "mint=usd" pairs.
func Prices(pairs []string) (map[solana.PublicKey]decimal.Decimal, error) {
	out := make(map[solana.PublicKey]decimal.Decimal, len(pairs))
	for _, pair := range pairs {
		mint, price, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("static price %q: want mint=price", pair)
		}
		key, err := solana.PublicKeyFromBase58(strings.TrimSpace(mint))
		if err != nil {
			return nil, fmt.Errorf("static price %q: %w", pair, err)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(price))
		if err != nil {
			return nil, fmt.Errorf("static price %q: %w", pair, err)
		}
		out[key] = d
	}
	return out, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return cleanStrings(strings.Split(typed, ","))
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
