// Package feedservice assembles one engine session: the store bundle, the
// invalidation coordinator, the social graph accessor, the feed builder and
// notification fan-out, plus a thin HTTP facade for UI-facing callers.
package feedservice

import (
	"os"

	"github.com/illmade-knight/go-socialfeed/pkg/cache"
	"github.com/illmade-knight/go-socialfeed/pkg/notify"
)

// Config holds common configuration for the feed service.
type Config struct {
	LogLevel        string `yaml:"log_level"`
	HTTPPort        string `yaml:"http_port"`
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`

	// CoalesceFetches opts in to single-flight suppression of duplicate
	// cold fetches. Off by default: concurrent misses each hit the source.
	CoalesceFetches bool `yaml:"coalesce_fetches"`

	TTLs   cache.TTLConfig     `yaml:"-"`
	Fanout notify.FanoutConfig `yaml:"-"`

	// Redis, when set, puts a shared remote tier between the in-memory
	// detail store and the system of record.
	Redis *cache.RedisConfig `yaml:"-"`
}

// LoadConfigFromEnv loads service configuration from environment variables,
// falling back to defaults.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		LogLevel:        envOr("LOG_LEVEL", "info"),
		HTTPPort:        envOr("HTTP_PORT", ":8080"),
		ProjectID:       os.Getenv("GCP_PROJECT_ID"),
		CredentialsFile: os.Getenv("GCP_CREDENTIALS_FILE"),
		TTLs:            cache.DefaultTTLConfig(),
	}
	if os.Getenv("FEED_COALESCE_FETCHES") == "true" {
		cfg.CoalesceFetches = true
	}
	return cfg
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
