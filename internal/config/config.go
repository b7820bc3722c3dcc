package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Storage driver names.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config defines the charging service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"CHARGENET_HTTP_PORT"`
	} `yaml:"http"`
	Storage struct {
		Driver string `yaml:"driver" env:"CHARGENET_STORAGE_DRIVER"`
		DSN    string `yaml:"dsn" env:"CHARGENET_POSTGRES_DSN"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr" env:"CHARGENET_REDIS_ADDR"`
		Password string `yaml:"password" env:"CHARGENET_REDIS_PASSWORD"`
		TTL      int    `yaml:"ttlSeconds" env:"CHARGENET_REDIS_TTL"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret    string `yaml:"jwtSecret" env:"CHARGENET_JWT_SECRET"`
		StaffKeyHash string `yaml:"staffKeyHash" env:"CHARGENET_STAFF_KEY_HASH"`
	} `yaml:"auth"`
}

// Load reads configuration from YAML file and environment.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.Storage.Driver = DriverMemory
	cfg.Redis.TTL = 86400

	if err := load(cfg); err != nil {
		return nil, err
	}

	switch cfg.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return nil, errors.New("config: postgres dsn required")
		}
	default:
		return nil, fmt.Errorf("config: unknown storage driver %q", cfg.Storage.Driver)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("config: jwt secret required")
	}
	if strings.TrimSpace(cfg.Auth.StaffKeyHash) == "" {
		return nil, errors.New("config: staff key hash required")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// ActiveSessionTTL returns the cache ttl as duration.
func (c *Config) ActiveSessionTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}
