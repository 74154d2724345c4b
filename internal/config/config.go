package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

const prefix = "IMGV_"

// Storage drivers.
const (
	DriverFilesystem = "filesystem"
	DriverMinio      = "minio"
	DriverS3         = "s3"
)

type (
	Config struct {
		ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":8080"`
		LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
		AuthToken       string        `env:"AUTH_TOKEN"`
		MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

		DB      DBConfig      `envPrefix:"DB_"`
		Storage StorageConfig `envPrefix:"STORAGE_"`
		S3      S3Config      `envPrefix:"S3_"`
	}

	DBConfig struct {
		Path string `env:"PATH" envDefault:"/data/db/images.db"`
	}

	StorageConfig struct {
		Driver string `env:"DRIVER" envDefault:"filesystem"`
		Path   string `env:"PATH" envDefault:"/data/images"`
	}

	S3Config struct {
		Endpoint  string `env:"ENDPOINT"`
		Region    string `env:"REGION" envDefault:"us-east-1"`
		AccessKey string `env:"ACCESS_KEY"`
		SecretKey string `env:"SECRET_KEY"`
		Bucket    string `env:"BUCKET" envDefault:"images"`
		UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
		PathStyle bool   `env:"PATH_STYLE" envDefault:"true"`
	}
)

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(environ())
}

// LoadFrom reads the configuration from the given variables.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg, env.Options{Prefix: prefix, Environment: vars}); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverFilesystem:
		if c.Storage.Path == "" {
			return errors.New("config: IMGV_STORAGE_PATH is required for the filesystem driver")
		}
	case DriverMinio, DriverS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("config: IMGV_S3_BUCKET is required for the %s driver", c.Storage.Driver)
		}
		if c.Storage.Driver == DriverMinio && c.S3.Endpoint == "" {
			return errors.New("config: IMGV_S3_ENDPOINT is required for the minio driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: IMGV_MAX_UPLOAD_BYTES must be positive")
	}
	if c.DB.Path == "" {
		return errors.New("config: IMGV_DB_PATH is required")
	}
	return nil
}

func environ() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return vars
}
