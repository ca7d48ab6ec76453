package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	// LocationWorkers is the number of sharded geofence workers.
	LocationWorkers int `env:"LOCATION_WORKERS, default=8"`

	// RuleCacheTTL bounds rule staleness in the Redis cache. Zero
	// disables caching; the engine then reads rules directly per
	// evaluation.
	RuleCacheTTL time.Duration `env:"RULE_CACHE_TTL, default=30s"`

	Mongo MongoConfig
	Redis RedisConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=tms"`
}

type RedisConfig struct {
	// Addr may be empty; the service runs without Redis, trading rule
	// caching for simplicity.
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB, default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
