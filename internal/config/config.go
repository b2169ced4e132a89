package config

import (
	"os"
	"strings"
	"time"
)

// Config is the coordinator's environment-derived configuration.
type Config struct {
	ListenAddr     string
	JWTSecret      string
	AllowedOrigins []string

	RedisAddr   string
	PresenceTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	StaleAfter    time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from the environment, filling defaults suitable
// for local development.
func Load() Config {
	return Config{
		ListenAddr:     envStr("PROCTOR_ADDR", ":8080"),
		JWTSecret:      envStr("PROCTOR_JWT_SECRET", "supersecret"),
		AllowedOrigins: envList("PROCTOR_ALLOWED_ORIGINS", "*"),
		RedisAddr:      envStr("PROCTOR_REDIS_ADDR", "localhost:6379"),
		PresenceTTL:    envDuration("PROCTOR_PRESENCE_TTL", 30*time.Second),
		KafkaBrokers:   envList("PROCTOR_KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:     envStr("PROCTOR_KAFKA_TOPIC", "proctoring-events"),
		StaleAfter:     envDuration("PROCTOR_STALE_AFTER", 2*time.Minute),
		SweepInterval:  envDuration("PROCTOR_SWEEP_INTERVAL", 15*time.Second),
	}
}

func envStr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envList(key, fallback string) []string {
	raw := envStr(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
