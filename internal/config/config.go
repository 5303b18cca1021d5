package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration. Values come from an optional YAML
// file, then environment variables override field by field so container
// deployments can tweak a single knob without shipping a file.
type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	LogLevel    string `yaml:"log_level"`

	MigrationsDir string `yaml:"migrations_dir"`

	Optimizer Optimizer `yaml:"optimizer"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Webhooks  Webhooks  `yaml:"webhooks"`
}

type Optimizer struct {
	RoadFactor        float64 `yaml:"road_factor"`
	MinPerMile        float64 `yaml:"min_per_mile"`
	FallbackTravelMin float64 `yaml:"fallback_travel_min"`
	TwoOptIterations  int     `yaml:"two_opt_iterations"`
	DefaultMaxJobs    int     `yaml:"default_max_jobs"`
}

type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Webhooks struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist) and applies environment overrides on top.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Running without a config file is normal.
		default:
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func defaults() Config {
	return Config{
		Port:          "8080",
		LogLevel:      "info",
		MigrationsDir: "db/migrations",
		Optimizer: Optimizer{
			RoadFactor:        1.3,
			MinPerMile:        2.5,
			FallbackTravelMin: 15,
			TwoOptIterations:  3,
			DefaultMaxJobs:    10,
		},
		RateLimit: RateLimit{RPS: 2, Burst: 5},
		Webhooks:  Webhooks{MaxAttempts: 6},
	}
}

func applyEnv(cfg *Config) {
	setStr(&cfg.Port, "PORT")
	setStr(&cfg.DatabaseURL, "DATABASE_URL")
	setStr(&cfg.RedisURL, "REDIS_URL")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.MigrationsDir, "MIGRATIONS_DIR")
	setFloat(&cfg.RateLimit.RPS, "RATE_RPS")
	setInt(&cfg.RateLimit.Burst, "RATE_BURST")
	setInt(&cfg.Webhooks.MaxAttempts, "WEBHOOK_MAX_ATTEMPTS")
	setFloat(&cfg.Optimizer.RoadFactor, "OPT_ROAD_FACTOR")
	setFloat(&cfg.Optimizer.MinPerMile, "OPT_MIN_PER_MILE")
	setFloat(&cfg.Optimizer.FallbackTravelMin, "OPT_FALLBACK_TRAVEL_MIN")
	setInt(&cfg.Optimizer.TwoOptIterations, "OPT_TWO_OPT_ITERATIONS")
	setInt(&cfg.Optimizer.DefaultMaxJobs, "OPT_DEFAULT_MAX_JOBS")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
