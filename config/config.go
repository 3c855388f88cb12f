package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/inf-mc/NoteBot-sub001/driver"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Pool      PoolConfig
	Monitor   MonitorConfig
	Security  SecurityConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// PoolConfig controls the browser pool. Immutable after construction.
type PoolConfig struct {
	// MaxBrowsers is the maximum number of concurrently running browsers.
	MaxBrowsers int // default: 2

	// MaxPagesPerBrowser caps pages per browser instance.
	MaxPagesPerBrowser int // default: 5

	// IdleTimeout is how long an unused page or browser survives before
	// the sweep evicts it.
	IdleTimeout time.Duration // default: 5m

	// AcquireTimeout bounds the wait on the admission queue.
	AcquireTimeout time.Duration // default: 30s

	// OperationTimeout is the default deadline for one operation.
	OperationTimeout time.Duration // default: 30s

	// LaunchTimeout bounds a single browser launch.
	LaunchTimeout time.Duration // default: 30s

	// Launch configures the browser processes themselves.
	Launch driver.LaunchOptions
}

// MonitorConfig controls the health monitor.
type MonitorConfig struct {
	// SampleInterval is how often process memory is sampled.
	SampleInterval time.Duration // default: 30s

	// WindowSize bounds the rolling operation-duration window.
	WindowSize int // default: 100

	// MemoryWarnBytes and MemoryErrorBytes are the advisory thresholds.
	// Zero disables the corresponding signal.
	MemoryWarnBytes  uint64 // default: 512 MiB
	MemoryErrorBytes uint64 // default: 1 GiB
}

// SecurityConfig controls the domain policy enforced inside operations.
type SecurityConfig struct {
	// AllowedDomains, when non-empty, restricts navigation and subresource
	// requests to these domains (and their subdomains).
	AllowedDomains []string

	// BlockedDomains are always denied, even when allowed by the list above.
	BlockedDomains []string

	// BlockedResourceTypes lists resource types stripped from every page
	// load. default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool     // default: true
	APIKeys []string // valid keys; empty disables the check
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("NOTEBOT_HOST", "0.0.0.0"),
			Port: envIntOr("NOTEBOT_PORT", 8080),
			Mode: envOr("NOTEBOT_MODE", "release"),
		},
		Pool: PoolConfig{
			MaxBrowsers:        envIntOr("NOTEBOT_MAX_BROWSERS", 2),
			MaxPagesPerBrowser: envIntOr("NOTEBOT_MAX_PAGES_PER_BROWSER", 5),
			IdleTimeout:        envDurationOr("NOTEBOT_IDLE_TIMEOUT", 5*time.Minute),
			AcquireTimeout:     envDurationOr("NOTEBOT_ACQUIRE_TIMEOUT", 30*time.Second),
			OperationTimeout:   envDurationOr("NOTEBOT_OPERATION_TIMEOUT", 30*time.Second),
			LaunchTimeout:      envDurationOr("NOTEBOT_LAUNCH_TIMEOUT", 30*time.Second),
			Launch: driver.LaunchOptions{
				ExecutablePath: os.Getenv("NOTEBOT_BROWSER_BIN"),
				Headless:       envBoolOr("NOTEBOT_HEADLESS", true),
				NoSandbox:      envBoolOr("NOTEBOT_NO_SANDBOX", false),
				Proxy:          os.Getenv("NOTEBOT_PROXY"),
			},
		},
		Monitor: MonitorConfig{
			SampleInterval:   envDurationOr("NOTEBOT_MONITOR_INTERVAL", 30*time.Second),
			WindowSize:       envIntOr("NOTEBOT_MONITOR_WINDOW", 100),
			MemoryWarnBytes:  envUint64Or("NOTEBOT_MEMORY_WARN_BYTES", 512<<20),
			MemoryErrorBytes: envUint64Or("NOTEBOT_MEMORY_ERROR_BYTES", 1<<30),
		},
		Security: SecurityConfig{
			AllowedDomains: envSliceOr("NOTEBOT_ALLOWED_DOMAINS", nil),
			BlockedDomains: envSliceOr("NOTEBOT_BLOCKED_DOMAINS", nil),
			BlockedResourceTypes: envSliceOr("NOTEBOT_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("NOTEBOT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("NOTEBOT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("NOTEBOT_RATE_RPS", 5.0),
			Burst:             envIntOr("NOTEBOT_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("NOTEBOT_LOG_LEVEL", "info"),
			Format: envOr("NOTEBOT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envUint64Or(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseUint(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
