// Package config loads service settings from a YAML file and the environment.
// Environment variables win over the file so deployments can override a
// checked-in config.yaml without editing it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"antroute/internal/opt"
)

const DefaultPath = "config.yaml"

type Config struct {
	Server   Server   `yaml:"server"`
	Rate     Rate     `yaml:"rate"`
	Webhooks Webhooks `yaml:"webhooks"`
	Solver   Solver   `yaml:"solver"`
}

type Server struct {
	Port          string `yaml:"port"`
	DatabaseURL   string `yaml:"databaseUrl"`
	RedisURL      string `yaml:"redisUrl"`
	MigrationsDir string `yaml:"migrationsDir"`
	Migrate       bool   `yaml:"migrate"`
}

// Rate configures the token bucket in front of the API. RPS <= 0 disables it.
type Rate struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Webhooks struct {
	MaxAttempts int `yaml:"maxAttempts"`
}

// Solver holds the defaults applied to runs that leave parameters unset.
type Solver struct {
	Algorithm     string           `yaml:"algorithm"`
	Seed          int64            `yaml:"seed"`
	Workers       int              `yaml:"workers"`
	AntsPerVertex bool             `yaml:"antsPerVertex"`
	MaxRunSeconds int              `yaml:"maxRunSeconds"`
	Params        opt.Params       `yaml:"params"`
	MaxMin        opt.MaxMinParams `yaml:"maxMin"`
}

func Default() Config {
	return Config{
		Server:   Server{Port: "8080", MigrationsDir: "db/migrations", Migrate: true},
		Rate:     Rate{RPS: 20, Burst: 40},
		Webhooks: Webhooks{MaxAttempts: 10},
		Solver: Solver{
			Algorithm:     opt.AlgorithmMaxMin,
			Seed:          1,
			MaxRunSeconds: 600,
			Params:        opt.DefaultParams(),
			MaxMin:        opt.DefaultMaxMinParams(),
		},
	}
}

// Load reads path (SOLVER_CONFIG or config.yaml when empty) over the defaults,
// then applies environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("SOLVER_CONFIG")
	}
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Server.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Server.RedisURL = v
	}
	if v := os.Getenv("DB_MIGRATE"); v != "" {
		c.Server.Migrate = !strings.EqualFold(v, "false")
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: RATE_RPS: %w", err)
		}
		c.Rate.RPS = f
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: RATE_BURST: %w", err)
		}
		c.Rate.Burst = n
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("config: WEBHOOK_MAX_ATTEMPTS must be a positive integer, got %q", v)
		}
		c.Webhooks.MaxAttempts = n
	}
	return nil
}

func (c Config) Validate() error {
	if err := c.Solver.Params.Validate(); err != nil {
		return fmt.Errorf("config: solver.params: %w", err)
	}
	if err := c.Solver.MaxMin.Validate(); err != nil {
		return fmt.Errorf("config: solver.maxMin: %w", err)
	}
	known := false
	for _, a := range opt.Algorithms() {
		if a == c.Solver.Algorithm {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("config: solver.algorithm: %w: %q", opt.ErrUnknownAlgorithm, c.Solver.Algorithm)
	}
	if c.Rate.RPS > 0 && c.Rate.Burst < 1 {
		return fmt.Errorf("config: rate.burst must be >= 1 when rate.rps is set")
	}
	return nil
}
