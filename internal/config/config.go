package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"3000" validate:"min=1000,max=65535"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"sqlite" validate:"oneof=memory sqlite postgres"`
	SqlitePath    string `env:"SQLITE_PATH"    envDefault:"collabboard.db"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"collab_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"collab_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"collab_db"`

	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost    string `env:"REDIS_HOST"    envDefault:"localhost"`
	RedisPort    uint16 `env:"REDIS_PORT"    envDefault:"6379" validate:"min=1000,max=65535"`

	TokenLength      int           `env:"TOKEN_LENGTH"       envDefault:"8"      validate:"min=4,max=64"`
	MaxContentLength int           `env:"MAX_CONTENT_LENGTH" envDefault:"100000" validate:"min=1"`
	UpdateInterval   time.Duration `env:"UPDATE_INTERVAL"    envDefault:"50ms"   validate:"min=0"`
	StatsInterval    time.Duration `env:"STATS_INTERVAL"     envDefault:"60s"    validate:"min=1s"`
	PreviewLength    int           `env:"PREVIEW_LENGTH"     envDefault:"50"     validate:"min=1"`
	PersistQueueSize int           `env:"PERSIST_QUEUE_SIZE" envDefault:"1024"   validate:"min=1"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"debug"   validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console" validate:"oneof=console json"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() (*zap.Logger, error) {
	var zc zap.Config
	if c.LogFormat == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = lvl
	return zc.Build()
}
