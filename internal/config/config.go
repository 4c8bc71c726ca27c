package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Target   TargetConfig
	Listen   ListenConfig
	Relay    RelayConfig
	LogLevel string
}

// TargetConfig is the default syslog destination and message header
type TargetConfig struct {
	Host     string
	Port     int
	Facility string
	Level    string
	Hostname string
}

type ListenConfig struct {
	Addr     string
	HTTPAddr string
}

type RelayConfig struct {
	Addr           string
	JWTSecret      string
	AllowedOrigins []string
}

func Load() *Config {
	return &Config{
		Target: TargetConfig{
			Host:     getEnv("SYSLOG_HOST", "127.0.0.1"),
			Port:     getEnvInt("SYSLOG_PORT", 514),
			Facility: getEnv("SYSLOG_FACILITY", "user"),
			Level:    getEnv("SYSLOG_LEVEL", "info"),
			Hostname: getEnv("SYSLOG_HOSTNAME", ""),
		},
		Listen: ListenConfig{
			Addr:     getEnv("LISTEN_ADDR", ":514"),
			HTTPAddr: getEnv("LISTEN_HTTP_ADDR", ""),
		},
		Relay: RelayConfig{
			Addr:           getEnv("RELAY_ADDR", ":8514"),
			JWTSecret:      getEnv("RELAY_JWT_SECRET", ""),
			AllowedOrigins: getEnvList("RELAY_ALLOWED_ORIGINS", []string{"*"}),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric environment value")
		return defaultValue
	}
	return n
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
