package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the runtime settings for the API process. Every field maps
// to a FLEETDESK_* environment variable; an optional .env file is loaded
// first so local development does not need exported variables. The token
// signing secret and issuer key are read from the environment by the auth
// package itself and do not appear here.
type Config struct {
	Addr          string
	DataFile      string
	PGDSN         string
	RedisAddr     string
	RedisPassword string
	RateBurst     int
	RatePerSecond int
	ShutdownGrace time.Duration
}

// Load reads configuration from the environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:          getString("FLEETDESK_ADDR", ":8080"),
		DataFile:      getString("FLEETDESK_DATA_FILE", "fleetdesk.json"),
		PGDSN:         os.Getenv("FLEETDESK_PG_DSN"),
		RedisAddr:     os.Getenv("FLEETDESK_REDIS_ADDR"),
		RedisPassword: os.Getenv("FLEETDESK_REDIS_PASSWORD"),
		RateBurst:     getInt("FLEETDESK_RATE_BURST", 20),
		RatePerSecond: getInt("FLEETDESK_RATE_PER_SECOND", 10),
		ShutdownGrace: 10 * time.Second,
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
