// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as the bot token, pricing rules, working hours, storage backends,
// server timeouts, logging, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal images

	"github.com/shopspring/decimal"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-delivery-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// BotConfig holds the Telegram transport settings.
type BotConfig struct {
	Enabled     bool          // BOT_ENABLED
	Token       string        // BOT_TOKEN
	AdminChatID int64         // ADMIN_CHAT_ID, the back-office chat
	PollTimeout int           // BOT_POLL_TIMEOUT in seconds
	SendRPS     float64       // outbound messages per second
	SendBurst   int           // outbound burst size
	Debug       bool          // BOT_DEBUG, verbose tgbotapi logging
	SessionTTL  time.Duration // inactivity timeout before the dialogue resets
}

// PricingConfig holds cart pricing rules.
type PricingConfig struct {
	FreeDeliveryThreshold decimal.Decimal // FREE_DELIVERY_THRESHOLD
	DeliveryFee           decimal.Decimal // DELIVERY_FEE
	Currency              string          // CURRENCY
}

// RedisConfig holds connection settings for the Redis session backend.
type RedisConfig struct {
	URL      string
	Address  string
	Password string
	DB       int
}

// KafkaConfig holds settings for the order events publisher. Publishing is
// disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes
	OperatorAPIKey string // optional static key for the operator API

	// Storage
	DBDriver       string // sqlite|postgres
	DBPath         string // SQLite path
	DBDSN          string // Postgres DSN
	SessionBackend string // memory|redis
	Redis          RedisConfig
	Kafka          KafkaConfig

	// Bot
	Bot                 BotConfig
	Pricing             PricingConfig
	WorkingHours        WorkingHours
	Location            *time.Location
	DeliveryTimeOptions []int  // minutes offered to the back office
	LabelsPath          string // optional YAML override for UI labels

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
		OperatorAPIKey: getenv("OPERATOR_API_KEY", ""),

		// Storage
		DBDriver:       strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:         getenv("DB_PATH", "db.sqlite"),
		DBDSN:          getenv("DB_DSN", ""),
		SessionBackend: strings.ToLower(getenv("SESSION_BACKEND", "memory")),
		Redis: RedisConfig{
			URL:      getenv("REDIS_URL", ""),
			Address:  getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(getenv("KAFKA_BROKERS", "")),
			Topic:   getenv("KAFKA_TOPIC", "delivery.orders"),
		},

		// Bot
		Bot: BotConfig{
			Enabled:     getbool("BOT_ENABLED", true),
			Token:       getenv("BOT_TOKEN", ""),
			AdminChatID: getint64("ADMIN_CHAT_ID", 0),
			PollTimeout: getint("BOT_POLL_TIMEOUT", 60),
			SendRPS:     getfloat("SEND_RPS", 29),
			SendBurst:   getint("SEND_BURST", 29),
			Debug:       getbool("BOT_DEBUG", false),
			SessionTTL:  getdur("SESSION_TTL", 30*time.Minute),
		},
		Pricing: PricingConfig{
			FreeDeliveryThreshold: getdecimal("FREE_DELIVERY_THRESHOLD", decimal.NewFromInt(20)),
			DeliveryFee:           getdecimal("DELIVERY_FEE", decimal.NewFromInt(2)),
			Currency:              getenv("CURRENCY", "BYN"),
		},
		LabelsPath: getenv("LABELS_PATH", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-delivery-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- parsed values ---
	wh, err := ParseWorkingHours(getenv("WORKING_HOURS", "10:00-22:00"))
	if err != nil {
		return cfg, err
	}
	cfg.WorkingHours = wh

	loc, err := time.LoadLocation(getenv("TIMEZONE", "Europe/Minsk"))
	if err != nil {
		return cfg, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.Location = loc

	opts, err := parseMinutes(getenv("DELIVERY_TIME_OPTIONS", "30,45,60"))
	if err != nil {
		return cfg, err
	}
	cfg.DeliveryTimeOptions = opts

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DBDSN) == "" {
			return cfg, errors.New("DB_DSN must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	switch cfg.SessionBackend {
	case "memory":
	case "redis":
		if cfg.Redis.URL == "" && cfg.Redis.Address == "" {
			return cfg, errors.New("REDIS_URL or REDIS_ADDR must be set when SESSION_BACKEND=redis")
		}
	default:
		return cfg, errors.New("SESSION_BACKEND must be one of: memory, redis")
	}
	if cfg.Bot.Enabled && strings.TrimSpace(cfg.Bot.Token) == "" {
		return cfg, errors.New("BOT_TOKEN must be set when BOT_ENABLED")
	}
	if cfg.Bot.SessionTTL <= 0 {
		return cfg, errors.New("SESSION_TTL must be > 0")
	}
	if cfg.Bot.SendRPS <= 0 || cfg.Bot.SendBurst < 1 {
		return cfg, errors.New("SEND_RPS must be > 0 and SEND_BURST >= 1")
	}
	if cfg.Pricing.FreeDeliveryThreshold.IsNegative() || cfg.Pricing.DeliveryFee.IsNegative() {
		return cfg, errors.New("FREE_DELIVERY_THRESHOLD and DELIVERY_FEE must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// getdecimal parses money amounts ("20", "2.50"). Invalid values fall back
// to the default like the other helpers.
func getdecimal(k string, def decimal.Decimal) decimal.Decimal {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseMinutes parses a CSV of positive minute counts.
func parseMinutes(s string) ([]int, error) {
	parts := splitCSV(s)
	if len(parts) == 0 {
		return nil, errors.New("DELIVERY_TIME_OPTIONS must list at least one value")
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("DELIVERY_TIME_OPTIONS: invalid value %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
