package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                     string
	DatabaseURL              string
	ManifestTTL              time.Duration
	ManifestSweepInterval    time.Duration
	SyncMaxBatch             int
	StoreTimeout             time.Duration
	RateLimitPerMinute       int
	RateLimitBurst           int
	DeviceRateLimitPerMinute int
	DeviceRateLimitBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                     port,
		DatabaseURL:              os.Getenv("DB_DSN"),
		ManifestTTL:              readDurationSeconds("MANIFEST_TTL_SECONDS", 300),
		ManifestSweepInterval:    readDurationSeconds("MANIFEST_SWEEP_INTERVAL_SECONDS", 60),
		SyncMaxBatch:             readInt("SYNC_MAX_BATCH", 500),
		StoreTimeout:             readDurationSeconds("STORE_TIMEOUT_SECONDS", 5),
		RateLimitPerMinute:       readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:           readInt("RATE_LIMIT_BURST", 30),
		DeviceRateLimitPerMinute: readInt("DEVICE_RATE_LIMIT_PER_MIN", 600),
		DeviceRateLimitBurst:     readInt("DEVICE_RATE_LIMIT_BURST", 120),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
