package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the central typed configuration struct.
// Embed or extend it in your app's own AppConfig.
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Log      LogConfig
	Throttle ThrottleConfig
	CORS     CORSConfig
}

type AppConfig struct {
	Name  string
	Env   string // local | production | testing
	Debug bool
	URL   string
	Port  string
	Key   string
}

// HTTPConfig drives the HTTP kernel and the server around it.
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MethodOverride lets POST forms tunnel PUT/PATCH/DELETE.
	MethodOverride bool
	// DisableMiddleware skips route middleware (Laravel: WithoutMiddleware in tests).
	DisableMiddleware bool

	Metrics     bool
	MetricsPath string
}

type LogConfig struct {
	Level  string // logrus level name
	Format string // text | json
}

// Limit is a named rate limit: MaxAttempts per DecayMinutes.
type Limit struct {
	MaxAttempts  int
	DecayMinutes int
}

// ThrottleConfig holds the named limiters usable as "throttle:<name>".
type ThrottleConfig struct {
	Limiters map[string]Limit
}

// Names returns the limiter names in sorted order.
func (t ThrottleConfig) Names() []string {
	names := make([]string, 0, len(t.Limiters))
	for name := range t.Limiters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CORSConfig drives the HandleCors middleware. "*" allows anything.
type CORSConfig struct {
	Paths               []string // request paths the policy applies to, e.g. "api/*"
	AllowedOrigins      []string
	AllowedMethods      []string
	AllowedHeaders      []string
	ExposedHeaders      []string
	MaxAge              int // seconds
	SupportsCredentials bool
}

// Load reads .env (if present) and populates a Config from environment variables.
// Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	return &Config{
		App: AppConfig{
			Name:  env("APP_NAME", "GoLaravel"),
			Env:   env("APP_ENV", "local"),
			Debug: envBool("APP_DEBUG", true),
			URL:   env("APP_URL", "http://localhost"),
			Port:  env("APP_PORT", "8000"),
			Key:   env("APP_KEY", ""),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       envDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      envDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       envDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:   envDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			MethodOverride:    envBool("HTTP_METHOD_OVERRIDE", true),
			DisableMiddleware: envBool("HTTP_DISABLE_MIDDLEWARE", false),
			Metrics:           envBool("METRICS_ENABLED", true),
			MetricsPath:       env("METRICS_PATH", "/metrics"),
		},
		Log: LogConfig{
			Level:  env("LOG_LEVEL", "info"),
			Format: env("LOG_FORMAT", "text"),
		},
		Throttle: ThrottleConfig{
			Limiters: parseLimiters(env("THROTTLE_LIMITERS", "api=60/1")),
		},
		CORS: CORSConfig{
			Paths:               envList("CORS_PATHS", "api/*"),
			AllowedOrigins:      envList("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods:      envList("CORS_ALLOWED_METHODS", "*"),
			AllowedHeaders:      envList("CORS_ALLOWED_HEADERS", "*"),
			ExposedHeaders:      envList("CORS_EXPOSED_HEADERS", ""),
			MaxAge:              GetInt("CORS_MAX_AGE", 0),
			SupportsCredentials: envBool("CORS_SUPPORTS_CREDENTIALS", false),
		},
	}
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	return envBool(key, defaultVal)
}

// GetDuration returns a time.Duration env value ("15s", "2m").
func GetDuration(key string, defaultVal time.Duration) time.Duration {
	return envDuration(key, defaultVal)
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// envList reads a comma-separated list, dropping empty items.
func envList(key, fallback string) []string {
	var out []string
	for _, item := range strings.Split(env(key, fallback), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseLimiters reads "api=60/1,uploads=10/5". Malformed entries are
// skipped; a missing decay means one minute.
func parseLimiters(s string) map[string]Limit {
	out := make(map[string]Limit)
	for _, entry := range strings.Split(s, ",") {
		name, spec, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || name == "" {
			continue
		}
		attempts, decay, _ := strings.Cut(spec, "/")
		n, err := strconv.Atoi(strings.TrimSpace(attempts))
		if err != nil || n <= 0 {
			continue
		}
		minutes := 1
		if decay != "" {
			if m, err := strconv.Atoi(strings.TrimSpace(decay)); err == nil && m > 0 {
				minutes = m
			}
		}
		out[name] = Limit{MaxAttempts: n, DecayMinutes: minutes}
	}
	return out
}
