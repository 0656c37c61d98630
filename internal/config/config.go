package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Payment   PaymentConfig

	// OperatorKeys holds "name:role:bcrypt-hash" triples.
	OperatorKeys []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled             bool
	PaymentVerifyRate   float64
	PaymentVerifyBurst  int
	RetryLockTTLSeconds int
}

type WebhookConfig struct {
	// ConfigPaths are searched for webhooks.yml before falling back to env.
	ConfigPaths     []string
	DefaultSource   string
	SignatureHeader string
	Secret          string
	MaxBodyBytes    int64
}

type PaymentConfig struct {
	KeySecret string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "inkwell"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "inkwell"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:             getenvBool("RATE_LIMIT_ENABLED", false),
			PaymentVerifyRate:   getenvFloat("RATE_LIMIT_PAYMENT_VERIFY_RATE", 1),
			PaymentVerifyBurst:  getenvInt("RATE_LIMIT_PAYMENT_VERIFY_BURST", 5),
			RetryLockTTLSeconds: getenvInt("WEBHOOK_RETRY_LOCK_TTL_SECONDS", 30),
		},
		Webhook: WebhookConfig{
			ConfigPaths:     parseList(getenv("WEBHOOK_CONFIG_PATHS", "/etc/inkwell,.")),
			DefaultSource:   strings.ToLower(strings.TrimSpace(getenv("WEBHOOK_DEFAULT_SOURCE", "razorpay"))),
			SignatureHeader: strings.TrimSpace(getenv("WEBHOOK_SIGNATURE_HEADER", "X-Razorpay-Signature")),
			Secret:          strings.TrimSpace(getenv("RAZORPAY_WEBHOOK_SECRET", "")),
			MaxBodyBytes:    getenvInt64("WEBHOOK_MAX_BODY_BYTES", 1<<20),
		},
		Payment: PaymentConfig{
			KeySecret: strings.TrimSpace(getenv("RAZORPAY_KEY_SECRET", "")),
		},
		OperatorKeys: parseList(getenv("OPERATOR_KEYS", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
