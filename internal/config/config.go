package config

import (
	"os"
	"strconv"
	"strings"
)

const (
	// StatusURLDefault is the upstream endpoint whose only consumed artifact
	// is the continuation token response header.
	StatusURLDefault = "https://duckduckgo.com/duckchat/v1/status"
	// ChatURLDefault is the upstream chat endpoint.
	ChatURLDefault = "https://duckduckgo.com/duckchat/v1/chat"
	// TokenHeader carries the opaque continuation token in both directions.
	TokenHeader = "x-vqd-4"
	// TokenAcceptHeader must be set on status requests for the upstream to
	// issue a token.
	TokenAcceptHeader = "x-vqd-accept"

	UserAgentDefault = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// ServerConfig holds all server configuration.
type ServerConfig struct {
	Host        string
	Port        int
	Verbose     bool
	Debug       bool
	AccessToken string

	StatusURL string
	ChatURL   string
	UserAgent string

	// RedisAddr selects the Redis continuity-cache backend when set;
	// otherwise an in-memory store is used.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DefaultFromEnv creates a ServerConfig with defaults from environment variables.
func DefaultFromEnv() *ServerConfig {
	return &ServerConfig{
		Host:          envOrDefault("DUCKGATE_HOST", "127.0.0.1"),
		Port:          envInt("DUCKGATE_PORT", 8080),
		Verbose:       envBool("DUCKGATE_VERBOSE"),
		Debug:         envBool("DUCKGATE_DEBUG"),
		AccessToken:   strings.TrimSpace(os.Getenv("DUCKGATE_ACCESS_TOKEN")),
		StatusURL:     envOrDefault("DUCKGATE_STATUS_URL", StatusURLDefault),
		ChatURL:       envOrDefault("DUCKGATE_CHAT_URL", ChatURLDefault),
		UserAgent:     envOrDefault("DUCKGATE_USER_AGENT", UserAgentDefault),
		RedisAddr:     strings.TrimSpace(os.Getenv("DUCKGATE_REDIS_ADDR")),
		RedisPassword: os.Getenv("DUCKGATE_REDIS_PASSWORD"),
		RedisDB:       envInt("DUCKGATE_REDIS_DB", 0),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
