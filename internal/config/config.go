package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL            string
	HTTPTimeoutSeconds    int
	SessionFile           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CatalogTTLSeconds     int
	LowStockThreshold     int
	PageSize              int
	ShopName              string
	Currency              string
	SandboxPort           string
	AllowedOrigin         string
	AuthSecret            string
	AccessTokenTTLMinutes int
	SandboxAdminPassword  string
	DatabaseURL           string
}

// Load reads the environment, after applying an optional .env file. Values
// already present in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		APIBaseURL:            strings.TrimRight(getEnv("API_BASE_URL", "http://127.0.0.1:8000/api"), "/"),
		HTTPTimeoutSeconds:    getPositiveInt("HTTP_TIMEOUT_SECONDS", 15),
		SessionFile:           getEnv("SESSION_FILE", defaultSessionFile()),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		CatalogTTLSeconds:     getPositiveInt("CATALOG_TTL_SECONDS", 30),
		LowStockThreshold:     getPositiveInt("LOW_STOCK_THRESHOLD", 3),
		PageSize:              getPositiveInt("PAGE_SIZE", 10),
		ShopName:              getEnv("SHOP_NAME", "MyShop Clothing Store"),
		Currency:              getEnv("CURRENCY", "INR"),
		SandboxPort:           getEnv("SANDBOX_PORT", "8000"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getPositiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		SandboxAdminPassword:  strings.TrimSpace(os.Getenv("SANDBOX_ADMIN_PASSWORD")),
		DatabaseURL:           strings.TrimSpace(os.Getenv("DATABASE_URL")),
	}

	return cfg
}

func (c Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an http(s) URL, got %q", c.APIBaseURL)
	}
	return nil
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c Config) CatalogTTL() time.Duration {
	return time.Duration(c.CatalogTTLSeconds) * time.Second
}

func (c Config) SandboxAddress() string {
	return fmt.Sprintf(":%s", c.SandboxPort)
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "shopdesk-session.json")
	}
	return filepath.Join(home, ".shopdesk", "session.json")
}

func getPositiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
