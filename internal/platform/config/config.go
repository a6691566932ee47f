package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "docverify/pkg/platform/strings"
)

// Config is the full process configuration, read once at startup.
type Config struct {
	Server   Server
	Vision   VisionConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string
	LogLevel string
}

// VisionConfig binds the vision capability to a model.
type VisionConfig struct {
	ProjectID         string
	Region            string
	Model             string
	Timeout           time.Duration
	MaxRetries        int
	DefaultConfidence float64
}

// DatabaseConfig enables the Postgres result store when URL is set.
type DatabaseConfig struct {
	URL string
}

// RedisConfig enables the Redis result cache when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CacheConfig controls reuse of results for identical images.
type CacheConfig struct {
	TTL time.Duration
}

// KafkaConfig enables the Kafka audit sink when Brokers is non-empty.
// ConsumerGroup materializes the topic into Postgres when a database is
// also configured.
type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	ConsumerGroup string
}

// AuthConfig enables bearer authentication when SigningKey is set.
type AuthConfig struct {
	SigningKey string
	Issuer     string
}

// Defaults used when the corresponding variable is unset.
const (
	DefaultAddr              = ":8080"
	DefaultLogLevel          = "info"
	DefaultVisionRegion      = "us-central1"
	DefaultVisionModel       = "gemini-1.5-flash-002"
	DefaultVisionTimeout     = 30 * time.Second
	DefaultVisionMaxRetries  = 2
	DefaultVisionConfidence  = 0.92
	DefaultResultCacheTTL    = 10 * time.Minute
	DefaultAuditTopic        = "docverify.audit"
	DefaultAuditGroup        = "docverify-audit-materializer"
	defaultRedisPoolSize     = 10
	defaultRedisMinIdleConns = 2
	defaultRedisTimeout      = 3 * time.Second
)

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	env := envReader{errs: &errs}

	cfg := Config{
		Server: Server{
			Addr:     env.str("DOCVERIFY_ADDR", DefaultAddr),
			LogLevel: env.str("LOG_LEVEL", DefaultLogLevel),
		},
		Vision: VisionConfig{
			ProjectID:         env.str("VISION_PROJECT_ID", ""),
			Region:            env.str("VISION_REGION", DefaultVisionRegion),
			Model:             env.str("VISION_MODEL", DefaultVisionModel),
			Timeout:           env.duration("VISION_TIMEOUT", DefaultVisionTimeout),
			MaxRetries:        env.integer("VISION_MAX_RETRIES", DefaultVisionMaxRetries),
			DefaultConfidence: env.float("VISION_DEFAULT_CONFIDENCE", DefaultVisionConfidence),
		},
		Database: DatabaseConfig{
			URL: env.str("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL:          env.str("REDIS_URL", ""),
			PoolSize:     env.integer("REDIS_POOL_SIZE", defaultRedisPoolSize),
			MinIdleConns: env.integer("REDIS_MIN_IDLE_CONNS", defaultRedisMinIdleConns),
			DialTimeout:  env.duration("REDIS_DIAL_TIMEOUT", defaultRedisTimeout),
			ReadTimeout:  env.duration("REDIS_READ_TIMEOUT", defaultRedisTimeout),
			WriteTimeout: env.duration("REDIS_WRITE_TIMEOUT", defaultRedisTimeout),
		},
		Cache: CacheConfig{
			TTL: env.duration("RESULT_CACHE_TTL", DefaultResultCacheTTL),
		},
		Kafka: KafkaConfig{
			Brokers:       env.list("KAFKA_BROKERS"),
			AuditTopic:    env.str("AUDIT_TOPIC", DefaultAuditTopic),
			ConsumerGroup: env.str("AUDIT_CONSUMER_GROUP", DefaultAuditGroup),
		},
		Auth: AuthConfig{
			SigningKey: env.str("JWT_SIGNING_KEY", ""),
			Issuer:     env.str("JWT_ISSUER", ""),
		},
	}

	if c := cfg.Vision.DefaultConfidence; c < 0 || c > 1 {
		errs = append(errs, fmt.Sprintf("VISION_DEFAULT_CONFIDENCE: %v is outside [0, 1]", c))
	}
	if cfg.Vision.MaxRetries < 0 {
		errs = append(errs, "VISION_MAX_RETRIES: must not be negative")
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

type envReader struct {
	errs *[]string
}

func (e envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (e envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return d
}

func (e envReader) integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func (e envReader) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return f
}

func (e envReader) list(key string) []string {
	return strutil.SplitList(os.Getenv(key), ",")
}
