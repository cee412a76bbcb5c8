package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rl1809/hot-product/internal/core/service"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	MySQLDSN string
	Migrate  bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers    []string
	KafkaOrderTopic string

	HotCache service.HotCacheConfig

	LogLevel string
}

// Load reads the process environment. Unset keys fall back to defaults;
// malformed values are reported rather than silently replaced.
func Load() (Config, error) {
	defaults := service.DefaultHotCacheConfig()

	cfg := Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getenv("GRPC_ADDR", ":9090"),
		MySQLDSN:        getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/hot_product?parseTime=true&clientFoundRows=true"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		KafkaBrokers:    splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaOrderTopic: getenv("KAFKA_ORDER_TOPIC", "orders.events"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.Migrate, err = getBool("MIGRATE", true); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}

	hot := &cfg.HotCache
	if hot.HotIDs, err = getIDs("HOT_PRODUCT_IDS", defaults.HotIDs); err != nil {
		return Config{}, err
	}
	durations := []struct {
		key string
		dst *time.Duration
		def time.Duration
	}{
		{"HOT_CACHE_TTL", &hot.TTL, defaults.TTL},
		{"HOT_CACHE_TTL_JITTER", &hot.TTLJitter, defaults.TTLJitter},
		{"HOT_CACHE_NULL_TTL", &hot.NullTTL, defaults.NullTTL},
		{"HOT_LOCK_WAIT", &hot.LockWait, defaults.LockWait},
		{"HOT_LOCK_HOLD", &hot.LockHold, defaults.LockHold},
		{"HOT_LOCK_BACKOFF", &hot.Backoff, defaults.Backoff},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.def); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", k, err)
	}
	return n, nil
}

func getBool(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config %s: %w", k, err)
	}
	return b, nil
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", k, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config %s: negative duration %s", k, d)
	}
	return d, nil
}

func getIDs(k string, def []int64) ([]int64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	parts := splitCSV(v)
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", k, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
