package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8080 || cfg.Server.Mode != "release" {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Pool.MaxBrowsers != 2 || cfg.Pool.MaxPagesPerBrowser != 5 {
		t.Errorf("pool size defaults = %+v", cfg.Pool)
	}
	if cfg.Pool.IdleTimeout != 5*time.Minute || cfg.Pool.AcquireTimeout != 30*time.Second {
		t.Errorf("pool timeout defaults = %+v", cfg.Pool)
	}
	if !cfg.Pool.Launch.Headless {
		t.Error("headless should default to true")
	}
	if cfg.Monitor.MemoryWarnBytes != 512<<20 || cfg.Monitor.MemoryErrorBytes != 1<<30 {
		t.Errorf("memory threshold defaults = %+v", cfg.Monitor)
	}
	if len(cfg.Security.BlockedResourceTypes) != 4 {
		t.Errorf("blocked resource defaults = %v", cfg.Security.BlockedResourceTypes)
	}
	if !cfg.Auth.Enabled {
		t.Error("auth should default to enabled")
	}
	if cfg.RateLimit.RequestsPerSecond != 5 || cfg.RateLimit.Burst != 10 {
		t.Errorf("rate limit defaults = %+v", cfg.RateLimit)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("NOTEBOT_PORT", "9090")
	t.Setenv("NOTEBOT_MAX_BROWSERS", "4")
	t.Setenv("NOTEBOT_IDLE_TIMEOUT", "90s")
	t.Setenv("NOTEBOT_HEADLESS", "false")
	t.Setenv("NOTEBOT_MEMORY_WARN_BYTES", "1048576")
	t.Setenv("NOTEBOT_ALLOWED_DOMAINS", "example.com, other.test ,")
	t.Setenv("NOTEBOT_API_KEYS", "k1,k2")
	t.Setenv("NOTEBOT_RATE_RPS", "2.5")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Pool.MaxBrowsers != 4 {
		t.Errorf("maxBrowsers = %d", cfg.Pool.MaxBrowsers)
	}
	if cfg.Pool.IdleTimeout != 90*time.Second {
		t.Errorf("idleTimeout = %s", cfg.Pool.IdleTimeout)
	}
	if cfg.Pool.Launch.Headless {
		t.Error("headless should be off")
	}
	if cfg.Monitor.MemoryWarnBytes != 1<<20 {
		t.Errorf("memoryWarnBytes = %d", cfg.Monitor.MemoryWarnBytes)
	}
	want := []string{"example.com", "other.test"}
	if len(cfg.Security.AllowedDomains) != len(want) {
		t.Fatalf("allowedDomains = %v", cfg.Security.AllowedDomains)
	}
	for i, d := range want {
		if cfg.Security.AllowedDomains[i] != d {
			t.Errorf("allowedDomains[%d] = %q, want %q", i, cfg.Security.AllowedDomains[i], d)
		}
	}
	if len(cfg.Auth.APIKeys) != 2 {
		t.Errorf("apiKeys = %v", cfg.Auth.APIKeys)
	}
	if cfg.RateLimit.RequestsPerSecond != 2.5 {
		t.Errorf("rps = %f", cfg.RateLimit.RequestsPerSecond)
	}
}

func TestEnvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("NOTEBOT_PORT", "not-a-number")
	t.Setenv("NOTEBOT_IDLE_TIMEOUT", "soon")
	t.Setenv("NOTEBOT_HEADLESS", "maybe")

	cfg := Load()
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default on parse failure", cfg.Server.Port)
	}
	if cfg.Pool.IdleTimeout != 5*time.Minute {
		t.Errorf("idleTimeout = %s, want default on parse failure", cfg.Pool.IdleTimeout)
	}
	if !cfg.Pool.Launch.Headless {
		t.Error("headless should keep its default on parse failure")
	}
}
