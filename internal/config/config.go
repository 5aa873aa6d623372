// README: Config loader with env defaults for dispatch, pricing, matching, and backing stores.
package config

import (
	"os"
	"strconv"
	"time"
)

type PricingConfig struct {
	BaseFare   int64
	PerKmRate  int64
	PerMinRate int64
	Currency   string
}

type MatchingConfig struct {
	MaxDriverSearchRadiusKm float64
}

type DispatchConfig struct {
	URL                  string
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	DriverPollInterval   time.Duration
}

type Config struct {
	Dispatch DispatchConfig
	Booking  struct {
		BaseURL string
	}
	Pricing  PricingConfig
	Matching MatchingConfig
	DB       struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Maps struct {
		APIKey string
	}
}

func Load() (Config, error) {
	var cfg Config
	cfg.Dispatch.URL = envOrDefault("RIDECORE_DISPATCH_URL", "ws://localhost:8080/ws")
	cfg.Dispatch.ReconnectDelay = envOrDefaultDuration("RIDECORE_RECONNECT_DELAY", 5*time.Second)
	cfg.Dispatch.MaxReconnectAttempts = envOrDefaultInt("RIDECORE_MAX_RECONNECT_ATTEMPTS", 5)
	cfg.Dispatch.DriverPollInterval = envOrDefaultDuration("RIDECORE_DRIVER_POLL_INTERVAL", 10*time.Second)
	cfg.Booking.BaseURL = envOrDefault("RIDECORE_BOOKING_URL", "http://localhost:8080")
	cfg.Pricing.BaseFare = envOrDefaultInt64("RIDECORE_BASE_FARE", 500)
	cfg.Pricing.PerKmRate = envOrDefaultInt64("RIDECORE_PER_KM_RATE", 200)
	cfg.Pricing.PerMinRate = envOrDefaultInt64("RIDECORE_PER_MIN_RATE", 50)
	cfg.Pricing.Currency = envOrDefault("RIDECORE_CURRENCY", "RWF")
	cfg.Matching.MaxDriverSearchRadiusKm = envOrDefaultFloat("RIDECORE_MAX_SEARCH_RADIUS_KM", 5.0)
	cfg.DB.DSN = envOrDefault("RIDECORE_DB_DSN", "")
	cfg.Redis.Addr = envOrDefault("RIDECORE_REDIS_ADDR", "")
	cfg.Maps.APIKey = envOrDefault("RIDECORE_MAPS_API_KEY", "")
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
