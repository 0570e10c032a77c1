package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment          string
	HTTPPort             string
	DatabaseURL          string
	SecretKey            string
	JWTIssuer            string
	JWTAudience          string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	ResetTicketTTL       time.Duration
	ServiceName          string
	ThrottleRPM          int
	LoginPerMinute       int64
	RegisterPerHour      int64
	ForgotPerQuarter     int64
	BillingFreeTrialDays int
	BootstrapTenantName  string
	BootstrapTenantSlug  string
	BootstrapAdminEmail  string
	BootstrapAdminPass   string
	TelemetryEndpoint    string
	TelemetryInsecure    bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		SecretKey:            os.Getenv("SECRET_KEY"),
		JWTIssuer:            getEnv("JWT_ISSUER", "xyberiq-app"),
		JWTAudience:          getEnv("JWT_AUDIENCE", "xyberiq-clients"),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		AccessTokenTTL:       getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:      getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		ResetTicketTTL:       getDuration("RESET_TICKET_TTL", time.Hour),
		ServiceName:          getEnv("SERVICE_NAME", "xyberiq-app"),
		ThrottleRPM:          getInt("THROTTLE_RPM", 600),
		LoginPerMinute:       getInt64("RATE_LIMIT_LOGIN_PER_MINUTE", 10),
		RegisterPerHour:      getInt64("RATE_LIMIT_REGISTER_PER_HOUR", 5),
		ForgotPerQuarter:     getInt64("RATE_LIMIT_FORGOT_PER_QUARTER_HOUR", 5),
		BillingFreeTrialDays: getInt("BILLING_FREE_TRIAL_DAYS", 7),
		BootstrapTenantName:  os.Getenv("BOOTSTRAP_TENANT_NAME"),
		BootstrapTenantSlug:  os.Getenv("BOOTSTRAP_TENANT_SLUG"),
		BootstrapAdminEmail:  os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminPass:   os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return Config{}, fmt.Errorf("SECRET_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}
