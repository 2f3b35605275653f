package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr          string
	LogLevel          string
	LogFormat         string
	TaskTimeout       time.Duration
	RoundTimeout      time.Duration
	MaxConcurrent     int
	FailoverThreshold int
	RetryAttempts     int
	CacheTTL          time.Duration
	CacheDisabled     bool
	RedisURL          string
	CatalogPath       string
	GitHubToken       string
	NewsAPIKey        string
	YouTubeAPIKey     string
	COREAPIKey        string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "text")),
		TaskTimeout:       time.Duration(getEnvInt("SEARCH_TASK_TIMEOUT_SECONDS", 10)) * time.Second,
		RoundTimeout:      time.Duration(getEnvInt("SEARCH_ROUND_TIMEOUT_SECONDS", 15)) * time.Second,
		MaxConcurrent:     getEnvInt("SEARCH_MAX_CONCURRENT", 50),
		FailoverThreshold: getEnvInt("SEARCH_FAILOVER_THRESHOLD", 3),
		RetryAttempts:     getEnvInt("SEARCH_RETRY_ATTEMPTS", 3),
		CacheTTL:          time.Duration(getEnvInt("SEARCH_CACHE_TTL_MINUTES", 15)) * time.Minute,
		CacheDisabled:     getEnvBool("SEARCH_CACHE_DISABLED", false),
		RedisURL:          getEnv("REDIS_URL", ""),
		CatalogPath:       getEnv("SEARCH_CATALOG_PATH", ""),
		GitHubToken:       strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
		NewsAPIKey:        strings.TrimSpace(os.Getenv("NEWSAPI_KEY")),
		YouTubeAPIKey:     strings.TrimSpace(os.Getenv("YOUTUBE_API_KEY")),
		COREAPIKey:        strings.TrimSpace(os.Getenv("CORE_API_KEY")),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
