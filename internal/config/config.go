package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	DBURL            string
	StoreDriver      string
	RunMigrations    bool
	DBMaxConns       int
	DBConnectRetries int

	JWTSecret       string
	JWTTTL          time.Duration
	TokenConveyance string
	CookieSecure    bool
	BcryptCost      int

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	IdentityCacheTTL time.Duration

	CORSAllowedOrigins []string
	RateLimitMax       int
	RateLimitWindow    time.Duration
	MaxBodyBytes       int64
	RequestTimeout     time.Duration

	OTLPEndpoint    string
	OTelSampleRatio float64
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Load reads the environment, after a best-effort .env file.
func Load() Config {
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "dev")
	dev := env == "dev"

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" && dev {
		adminPassword = "Admin123"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" && dev {
		jwtSecret = "dev-secret-change-me"
	}

	return Config{
		Env:  env,
		Port: getEnvInt("PORT", 8080),

		DBURL:            buildDBURL(),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		RunMigrations:    getEnvBool("DB_MIGRATE", true),
		DBMaxConns:       getEnvInt("DB_MAX_CONNS", 10),
		DBConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),

		JWTSecret:       jwtSecret,
		JWTTTL:          getEnvDuration("JWT_TTL", 24*time.Hour),
		TokenConveyance: getEnv("TOKEN_CONVEYANCE", "cookie"),
		CookieSecure:    getEnvBool("COOKIE_SECURE", !dev),
		BcryptCost:      getEnvInt("BCRYPT_COST", 10),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword: adminPassword,

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		IdentityCacheTTL: getEnvDuration("IDENTITY_CACHE_TTL", 30*time.Second),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		RateLimitMax:       getEnvInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow:    getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 5*time.Second),

		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelSampleRatio: getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
	}
}

func (c Config) IsDev() bool {
	return c.Env == "dev"
}

// Validate reports every setting that would stop the service from running safely.
func (c Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	switch strings.ToLower(c.TokenConveyance) {
	case "cookie", "header":
	default:
		errs = append(errs, fmt.Errorf("TOKEN_CONVEYANCE must be cookie or header, got %q", c.TokenConveyance))
	}

	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}

	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be within [0,1], got %v", c.OTelSampleRatio))
	}

	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive"))
	}

	return errors.Join(errs...)
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "taskhub")
	pass := getEnv("DB_PASSWORD", "taskhub")
	name := getEnv("DB_NAME", "taskhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// WithTimeout bounds a store call under parent.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fallback
		}
		return f
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fallback
		}
		return d
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
