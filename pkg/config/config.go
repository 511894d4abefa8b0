package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort int
	GRPCPort int

	// Product/stock API
	APIBaseURL    string
	APITimeout    time.Duration
	StockSource   string // api, redis or mysql
	CatalogSource string // api or mysql

	// Cart persistence
	StorageDriver  string // file or redis
	StorageDir     string
	CartStorageKey string

	RedisAddr string
	MySQLDSN  string
}

func Load() Config {
	return Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPPort: getEnvInt("HTTP_PORT", 8080),
		GRPCPort: getEnvInt("GRPC_PORT", 50051),

		APIBaseURL:    getEnv("API_BASE_URL", "http://localhost:3333"),
		APITimeout:    getEnvDuration("API_TIMEOUT", 5*time.Second),
		StockSource:   getEnv("STOCK_SOURCE", "api"),
		CatalogSource: getEnv("CATALOG_SOURCE", "api"),

		StorageDriver:  getEnv("STORAGE_DRIVER", "file"),
		StorageDir:     getEnv("STORAGE_DIR", ".shoes-cart"),
		CartStorageKey: getEnv("CART_STORAGE_KEY", "@shoes-cart:cart"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		MySQLDSN:  getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/shoescart?parseTime=true"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)

	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)

	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}

	return d
}
