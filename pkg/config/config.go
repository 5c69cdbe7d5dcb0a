package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	Classifier ClassifierConfig
	Dedup      DedupConfig
	Ranking    RankingConfig
	Search     SearchConfig
	Ingestion  IngestionConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type ClassifierConfig struct {
	LexiconPath  string
	Workers      int
	InDomainOnly bool
}

type DedupConfig struct {
	Threshold float64
}

type RankingConfig struct {
	TrustedSources []string
	TrustBonus     float64
}

type SearchConfig struct {
	DefaultLimit  int
	MaxLimit      int
	SimilarTerms  int
	TrendingLimit int
	RetentionDays int
}

type IngestionConfig struct {
	MaxPerCycle   int
	SkipKnown     bool
	RetryAttempts int
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads an optional .env file, then config.yaml and AINEWS_* environment
// variables on top of the defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ainews")

	v.SetEnvPrefix("AINEWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.SQLite.Path == "" {
		return fmt.Errorf("sqlite.path must be set")
	}
	if c.Dedup.Threshold <= 0 || c.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup.threshold must be in (0, 1], got %v", c.Dedup.Threshold)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search limits are inconsistent: default %d, max %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 10485760)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.development", false)

	v.SetDefault("sqlite.path", "./data/ainews.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlSec", 300)

	v.SetDefault("classifier.lexiconPath", "")
	v.SetDefault("classifier.workers", 8)
	v.SetDefault("classifier.inDomainOnly", true)

	v.SetDefault("dedup.threshold", 0.7)

	v.SetDefault("ranking.trustedSources", []string{"ArXiv", "OpenAI", "Google AI", "DeepMind"})
	v.SetDefault("ranking.trustBonus", 10.0)

	v.SetDefault("search.defaultLimit", 50)
	v.SetDefault("search.maxLimit", 200)
	v.SetDefault("search.similarTerms", 5)
	v.SetDefault("search.trendingLimit", 20)
	v.SetDefault("search.retentionDays", 30)

	v.SetDefault("ingestion.maxPerCycle", 0)
	v.SetDefault("ingestion.skipKnown", true)
	v.SetDefault("ingestion.retryAttempts", 3)

	v.SetDefault("ratelimit.requestsPerMinute", 120)
	v.SetDefault("ratelimit.burst", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
