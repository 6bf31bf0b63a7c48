package config

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var offsetPattern = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)

type Config struct {
	DBDSN       string
	Environment string
	LogLevel    string
	HTTPAddr    string

	// Фиксированное смещение, в котором врачи публикуют время слотов
	LocalUTCOffset string
	JoinEarly      time.Duration
	JoinLate       time.Duration

	AuthSecret         string
	SessionTokenSecret string

	RedisAddr     string
	RedisPassword string
	SlotCacheTTL  time.Duration

	BookingRatePerSecond float64
	BookingRateBurst     int

	MigrationsAuto bool
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return FromEnv()
}

// FromEnv читает конфигурацию только из переменных окружения
func FromEnv() (*Config, error) {
	cfg := &Config{
		DBDSN:              os.Getenv("DB_DSN"),
		Environment:        getString("ENV", "development"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		HTTPAddr:           getString("HTTP_ADDR", ":8080"),
		LocalUTCOffset:     getString("LOCAL_UTC_OFFSET", "+05:30"),
		AuthSecret:         os.Getenv("AUTH_SECRET"),
		SessionTokenSecret: os.Getenv("SESSION_TOKEN_SECRET"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	if cfg.JoinEarly, err = getMinutes("JOIN_EARLY_MINUTES", 15); err != nil {
		return nil, err
	}
	if cfg.JoinLate, err = getMinutes("JOIN_LATE_MINUTES", 60); err != nil {
		return nil, err
	}
	if cfg.SlotCacheTTL, err = getDuration("SLOT_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BookingRatePerSecond, err = getFloat("BOOKING_RATE_PER_SECOND", 5); err != nil {
		return nil, err
	}
	if cfg.BookingRateBurst, err = getInt("BOOKING_RATE_BURST", 10); err != nil {
		return nil, err
	}
	if cfg.MigrationsAuto, err = getBool("MIGRATIONS_AUTO", true); err != nil {
		return nil, err
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.AuthSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required but not set")
	}
	if cfg.SessionTokenSecret == "" {
		// В production пропуска в сессию подписываются отдельным ключом
		if cfg.IsProduction() {
			return nil, fmt.Errorf("SESSION_TOKEN_SECRET is required in production")
		}
		cfg.SessionTokenSecret = cfg.AuthSecret
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location фиксированная зона из LOCAL_UTC_OFFSET (формат ±HH:MM)
func (c *Config) Location() (*time.Location, error) {
	return ParseOffset(c.LocalUTCOffset)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ParseOffset разбирает смещение вида +05:30 в фиксированную зону
func ParseOffset(value string) (*time.Location, error) {
	m := offsetPattern.FindStringSubmatch(value)
	if m == nil {
		return nil, fmt.Errorf("LOCAL_UTC_OFFSET %q must look like +05:30", value)
	}
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	if hours > 14 || minutes > 59 {
		return nil, fmt.Errorf("LOCAL_UTC_OFFSET %q is out of range", value)
	}

	seconds := hours*3600 + minutes*60
	if m[1] == "-" {
		seconds = -seconds
	}
	return time.FixedZone("UTC"+value, seconds), nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getMinutes(key string, fallback int) (time.Duration, error) {
	n, err := getInt(key, fallback)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return time.Duration(n) * time.Minute, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false: %w", key, err)
	}
	return b, nil
}
