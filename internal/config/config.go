package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by CREDENCE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("CREDENCE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// ConflictPolicyFile returns the path of the YAML conflict-policy file.
// Empty means built-in defaults with no hot reload.
func ConflictPolicyFile() string {
	return os.Getenv("CONFLICT_POLICY_FILE")
}

// RefusionInterval returns how often the background re-fusion pass runs.
// Defaults to 15 minutes if not set.
func RefusionInterval() time.Duration {
	mins, err := strconv.Atoi(os.Getenv("REFUSION_INTERVAL_MINUTES"))
	if err != nil || mins <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(mins) * time.Minute
}

// ExpirerInterval returns how often expired evidence is purged.
// Defaults to 60 minutes if not set.
func ExpirerInterval() time.Duration {
	mins, err := strconv.Atoi(os.Getenv("EXPIRER_INTERVAL_MINUTES"))
	if err != nil || mins <= 0 {
		return time.Hour
	}
	return time.Duration(mins) * time.Minute
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
