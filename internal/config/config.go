package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr          string        `yaml:"addr"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	DatabasePath  string        `yaml:"database_path"`
	AuditInterval time.Duration `yaml:"audit_interval"`
	Coordinator   Coordinator   `yaml:"coordinator"`
}

// Coordinator tunes the transactional assignment engine.
type Coordinator struct {
	// MaxRetries bounds re-attempts after an optimistic-concurrency conflict.
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:          getEnv("RESOURCE_ADDR", ":8080"),
		JWTSecret:     getEnv("RESOURCE_JWT_SECRET", "supersecretkey"),
		APITimeout:    15 * time.Second,
		DatabasePath:  getEnv("RESOURCE_DATABASE_PATH", "resource.db"),
		AuditInterval: 5 * time.Minute,
		Coordinator: Coordinator{
			MaxRetries: 3,
			Backoff:    25 * time.Millisecond,
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
