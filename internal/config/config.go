package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        int
	DatabaseURL string
	ChatlogDir  string
	HTMLDir     string
	NatsURL     string
	NatsToken   string
	LogLevel    string
}

func Load() Config {
	return Config{
		Port:        envInt("CHATVAULT_PORT", 8820),
		DatabaseURL: envStr("DATABASE_URL", ""),
		ChatlogDir:  envStr("CHATLOG_DIR", "chatlog"),
		HTMLDir:     envStr("HTML_DIR", "chatlog/HTMLS"),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
