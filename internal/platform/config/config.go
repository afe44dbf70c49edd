// Package config builds runtime configuration from environment variables so
// the mains stay lean.
package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the server and importer binaries need.
type Config struct {
	Addr        string
	DatabaseURL string
	RedisURL    string

	// KafkaBrokers empty means the audit fan-out is disabled; the durable
	// audit log in the store is the source of truth either way.
	KafkaBrokers []string
	KafkaTopic   string

	JWTSigningKey string
	JWTIssuer     string

	// ReviewDir is where per-batch review queue exports land.
	ReviewDir string

	// ContactLockTTL bounds how long a crashed process can hold a contact.
	ContactLockTTL time.Duration
}

// FromEnv reads configuration with development defaults. Production deploys
// override via environment.
func FromEnv() Config {
	cfg := Config{
		Addr:           getenv("COALESCE_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaTopic:     getenv("KAFKA_AUDIT_TOPIC", "coalesce.audit"),
		JWTSigningKey:  getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:      getenv("JWT_ISSUER", "coalesce"),
		ReviewDir:      getenv("COALESCE_REVIEW_DIR", "review-queue"),
		ContactLockTTL: 30 * time.Second,
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if ttl := os.Getenv("COALESCE_CONTACT_LOCK_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil && d > 0 {
			cfg.ContactLockTTL = d
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
