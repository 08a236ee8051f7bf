package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	SecretKey  string

	RedisURL string
	CartTTL  time.Duration

	OTPTTL          time.Duration
	OTPMaxPerWindow int
	OTPRateWindow   time.Duration
	SweepInterval   time.Duration

	// Calendar day used for ORD-YYYYMMDD-NNNN is taken in this location.
	OrderNumberTimezone string

	NotifierDriver   string
	SMSGatewayURL    string
	SMSGatewayAPIKey string
	SMSQueueURL      string
	NotifyTimeout    time.Duration

	location *time.Location
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    getEnv("APP_PORT", "8080"),
		AppEnv:     os.Getenv("APP_ENV"),
		SecretKey:  os.Getenv("SECRET_KEY"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CartTTL:  getDuration("CART_TTL", 24*time.Hour),

		OTPTTL:          getDuration("OTP_TTL", 5*time.Minute),
		OTPMaxPerWindow: getInt("OTP_MAX_PER_WINDOW", 3),
		OTPRateWindow:   getDuration("OTP_RATE_WINDOW", time.Hour),
		SweepInterval:   getDuration("SWEEP_INTERVAL", 0),

		OrderNumberTimezone: getEnv("ORDER_NUMBER_TIMEZONE", "UTC"),

		NotifierDriver:   getEnv("NOTIFIER_DRIVER", "log"),
		SMSGatewayURL:    os.Getenv("SMS_GATEWAY_URL"),
		SMSGatewayAPIKey: os.Getenv("SMS_GATEWAY_APIKEY"),
		SMSQueueURL:      os.Getenv("SMS_QUEUE_URL"),
		NotifyTimeout:    getDuration("NOTIFY_TIMEOUT", 10*time.Second),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	loc, err := time.LoadLocation(cfg.OrderNumberTimezone)
	if err != nil {
		log.Fatalf("invalid ORDER_NUMBER_TIMEZONE=%q: %v", cfg.OrderNumberTimezone, err)
	}
	cfg.location = loc

	return cfg
}

// Location returns the zone order numbers are dated in. A Config not built by
// LoadConfig with an unknown zone falls back to UTC, loudly.
func (c *Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	loc, err := time.LoadLocation(c.OrderNumberTimezone)
	if err != nil {
		log.Printf("invalid ORDER_NUMBER_TIMEZONE=%q, using UTC: %v", c.OrderNumberTimezone, err)
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
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
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
