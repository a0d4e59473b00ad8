package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting. Values come from the environment,
// optionally seeded from a .env file in the working directory.
type Config struct {
	HTTPAddr string

	MongoURI      string
	MongoDatabase string
	// MaxBatchWrites caps one import batch; 0 disables the cap.
	MaxBatchWrites int

	StateDBPath string

	IdentitySecret string
	IdentityIssuer string

	RedisAddress string

	InboxDir       string
	ImportTimeout  time.Duration
	StrictNumbers  bool
	MaxUploadBytes int64

	// CORSAllowedOrigins empty means every origin is allowed.
	CORSAllowedOrigins []string
	// RateLimitMaxRequests caps order placement per client within
	// RateLimitWindow. 0 disables the limiter; it also needs Redis.
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration

	LogLevel string
}

const (
	defaultHTTPAddr       = ":8080"
	defaultMaxBatchWrites = 500
	defaultImportTimeout  = 5 * time.Minute
	defaultMaxUploadBytes = 10 << 20
	defaultRateWindow     = time.Minute
)

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:       envString("HTTP_ADDR", defaultHTTPAddr),
		MongoURI:       envString("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDatabase:  envString("MONGO_DATABASE", ""),
		StateDBPath:    envString("STATE_DB_PATH", defaultStatePath()),
		IdentitySecret: os.Getenv("IDENTITY_JWT_SECRET"),
		IdentityIssuer: os.Getenv("IDENTITY_ISSUER"),
		RedisAddress:   os.Getenv("REDIS_ADDRESS"),
		InboxDir:       os.Getenv("IMPORT_INBOX_DIR"),
		LogLevel:       envString("LOG_LEVEL", "info"),

		CORSAllowedOrigins: splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	var err error
	if cfg.MaxBatchWrites, err = envInt("DOCSTORE_MAX_BATCH", defaultMaxBatchWrites); err != nil {
		return nil, err
	}
	if cfg.ImportTimeout, err = envDuration("IMPORT_TIMEOUT", defaultImportTimeout); err != nil {
		return nil, err
	}
	if cfg.StrictNumbers, err = envBool("IMPORT_STRICT_NUMBERS", false); err != nil {
		return nil, err
	}
	maxUpload, err := envInt("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)
	if cfg.RateLimitMaxRequests, err = envInt("RATE_LIMIT_MAX_REQUESTS", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = envDuration("RATE_LIMIT_WINDOW", defaultRateWindow); err != nil {
		return nil, err
	}

	SetLogLevel(cfg.LogLevel)
	return cfg, nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	if c.IdentitySecret == "" {
		return fmt.Errorf("IDENTITY_JWT_SECRET is required")
	}
	if c.MaxBatchWrites < 0 {
		return fmt.Errorf("DOCSTORE_MAX_BATCH must not be negative")
	}
	if c.RateLimitMaxRequests > 0 && c.RedisAddress == "" {
		return fmt.Errorf("RATE_LIMIT_MAX_REQUESTS needs REDIS_ADDRESS")
	}
	return nil
}

func defaultStatePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "logistria.db"
	}
	return filepath.Join(homeDir, ".local", "share", "logistria", "state.db")
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
