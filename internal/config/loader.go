package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "policyforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "POLICYFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "POLICYFORGE_CORS_ORIGIN")
	setString(&cfg.Store.Backend, "POLICYFORGE_STORE_BACKEND")
	setString(&cfg.Store.Path, "POLICYFORGE_STORE_PATH")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "POLICYFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "POLICYFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "POLICYFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "POLICYFORGE_PG_MAX_CONN_IDLE_TIME")
	setString(&cfg.NATS.URL, "NATS_URL")
	setInt64(&cfg.Cache.MaxSizeMB, "POLICYFORGE_CACHE_SIZE_MB")
	setString(&cfg.Logging.Level, "POLICYFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "POLICYFORGE_LOG_SERVICE")
	setInt(&cfg.Training.Epochs, "POLICYFORGE_TRAIN_EPOCHS")
	setInt(&cfg.Training.BatchSize, "POLICYFORGE_TRAIN_BATCH_SIZE")
	setInt(&cfg.Training.BatchesPerEpoch, "POLICYFORGE_TRAIN_BATCHES_PER_EPOCH")
	setFloat64(&cfg.Training.LearningRate, "POLICYFORGE_TRAIN_LR")
	setFloat64(&cfg.Training.WeightDecay, "POLICYFORGE_TRAIN_WEIGHT_DECAY")
	setFloat64(&cfg.Training.ValidationSplit, "POLICYFORGE_TRAIN_VAL_SPLIT")
	setFloat64(&cfg.Training.EntropyCoef, "POLICYFORGE_TRAIN_ENTROPY_COEF")
	setInt64(&cfg.Training.Seed, "POLICYFORGE_TRAIN_SEED")
	setString(&cfg.Training.OutputDir, "POLICYFORGE_TRAIN_OUTPUT_DIR")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Store.Backend {
	case "jsonl":
		if cfg.Store.Path == "" {
			return errors.New("store.path is required for the jsonl backend")
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres backend")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("store.backend must be jsonl or postgres, got %q", cfg.Store.Backend)
	}
	if cfg.Training.BatchSize < 1 {
		return errors.New("training.batch_size must be >= 1")
	}
	if cfg.Training.ValidationSplit <= 0 || cfg.Training.ValidationSplit >= 1 {
		return errors.New("training.validation_split must be in (0, 1)")
	}
	return nil
}

func setString(dst *string, key string) {
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

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
