package grpcbridge

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnvConfig reads GRPCBRIDGE_* variables from the process environment,
// loading path first via godotenv if present (the teacher's demos use the
// same .env-then-os.Getenv pattern for endpoint/API key configuration).
// Missing optional variables fall back to Config's defaults.
func LoadEnvConfig(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("grpcbridge: loading env file: %w", err)
		}
	}

	target := os.Getenv("GRPCBRIDGE_TARGET")
	if target == "" {
		return Config{}, fmt.Errorf("grpcbridge: GRPCBRIDGE_TARGET is required")
	}

	cfg := Config{
		Target:   target,
		Insecure: os.Getenv("GRPCBRIDGE_INSECURE") == "true",
	}

	if v := os.Getenv("GRPCBRIDGE_MAX_RECONNECT_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("grpcbridge: GRPCBRIDGE_MAX_RECONNECT_ATTEMPTS: %w", err)
		}
		cfg.MaxReconnectAttempts = n
	}

	if v := os.Getenv("GRPCBRIDGE_RECONNECT_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("grpcbridge: GRPCBRIDGE_RECONNECT_INTERVAL_MS: %w", err)
		}
		cfg.ReconnectInterval = time.Duration(n) * time.Millisecond
	}

	return cfg, nil
}
