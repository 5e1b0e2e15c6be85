package config

import (
	"os"
	"strconv"
)

// Backend names accepted in STORE_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	HTTPAddr     string
	StoreBackend string
	SQLitePath   string
	RedisAddr    string
	CodeLen      int
}

func getenvStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func Load() Config {
	return Config{
		HTTPAddr:     getenvStr("HTTP_ADDR", ":8080"),
		StoreBackend: getenvStr("STORE_BACKEND", BackendMemory),
		SQLitePath:   getenvStr("SQLITE_PATH", "velha.db"),
		RedisAddr:    getenvStr("REDIS_ADDR", "localhost:6379"),
		CodeLen:      getenvInt("ROOM_CODE_LEN", 4),
	}
}
