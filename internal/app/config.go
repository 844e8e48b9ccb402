package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
	CacheMongo  CacheBackend = "mongo"
	CacheSQLite CacheBackend = "sqlite"
	CacheNone   CacheBackend = "none"
)

// Config is the process configuration read from the environment.
type Config struct {
	HTTPAddr             string
	LogLevel             string
	LogFormat            string
	ResolverConfigPath   string
	UserAgent            string
	ResolveTimeout       time.Duration
	BatchConcurrency     int
	CacheBackend         CacheBackend
	CacheMaxEntries      int
	RedisURL             string
	MongoURI             string
	MongoDatabase        string
	MongoCacheCollection string
	SQLiteCachePath      string
	HTTPRateLimitRPS     int
	HTTPRateLimitBurst   int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8095"),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(getEnv("LOG_FORMAT", "text")),
		ResolverConfigPath:   getEnv("RESOLVER_CONFIG", ""),
		UserAgent:            getEnv("RESOLVER_USER_AGENT", ""),
		ResolveTimeout:       time.Duration(getEnvInt("RESOLVE_TIMEOUT_SECONDS", 120)) * time.Second,
		BatchConcurrency:     getEnvInt("BATCH_CONCURRENCY", 4),
		CacheBackend:         normalizeCacheBackend(getEnv("CACHE_BACKEND", string(CacheMemory))),
		CacheMaxEntries:      getEnvInt("CACHE_MAX_ENTRIES", 2000),
		RedisURL:             getEnv("REDIS_URL", ""),
		MongoURI:             getEnv("MONGO_URI", ""),
		MongoDatabase:        getEnv("MONGO_DATABASE", "playresolver"),
		MongoCacheCollection: getEnv("MONGO_CACHE_COLLECTION", "search_cache"),
		SQLiteCachePath:      getEnv("SQLITE_CACHE_PATH", "data/cache.db"),
		HTTPRateLimitRPS:     getEnvInt("HTTP_RATE_LIMIT_RPS", 50),
		HTTPRateLimitBurst:   getEnvInt("HTTP_RATE_LIMIT_BURST", 100),
	}
}

func normalizeCacheBackend(raw string) CacheBackend {
	switch backend := CacheBackend(strings.ToLower(strings.TrimSpace(raw))); backend {
	case CacheMemory, CacheRedis, CacheMongo, CacheSQLite, CacheNone:
		return backend
	default:
		return CacheMemory
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
