// Package config loads runtime configuration from the environment,
// optionally populated from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names and their defaults.
const (
	EnvDbURL        = "BBBLB_DATABASE_URL"
	EnvDbURLDefault = "postgres://localhost/bbblb"

	EnvDbPoolSize        = "BBBLB_DATABASE_POOL_SIZE"
	EnvDbPoolSizeDefault = "8"

	EnvRedisURL        = "BBBLB_REDIS_URL"
	EnvRedisURLDefault = "redis://localhost:6379/0"

	EnvListenHTTP        = "BBBLB_LISTEN_HTTP"
	EnvListenHTTPDefault = ":8080"

	EnvLogLevel        = "BBBLB_LOG_LEVEL"
	EnvLogLevelDefault = "info"

	EnvLogFormat        = "BBBLB_LOG_FORMAT"
	EnvLogFormatDefault = "console"

	EnvSecret = "BBBLB_SHARED_SECRET"

	EnvAllowedHosts = "BBBLB_ALLOWED_HOSTS"

	EnvHostname = "BBBLB_HOSTNAME"

	EnvLogoutURL = "BBBLB_LOGOUT_URL"

	EnvSSHUser        = "BBBLB_SSH_USER"
	EnvSSHUserDefault = "bbb-poller"

	EnvPlayerAPIURL = "BBBLB_PLAYER_API_URL"
	EnvPlayerSecret = "BBBLB_PLAYER_SECRET"

	EnvPollInterval        = "BBBLB_POLL_INTERVAL"
	EnvPollIntervalDefault = "30s"
)

// EnvOpt reads key from the environment, returning fallback if unset
// or empty.
func EnvOpt(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// IsEnabled interprets a boolean-flavored environment value.
func IsEnabled(value string) bool {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// LoadEnv populates the process environment from the first of files
// that exists, without overriding variables already set. Safe to call
// when none of the files are present.
func LoadEnv(files []string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
		return
	}
}

// DatabaseConfig holds connection parameters for the relational store.
type DatabaseConfig struct {
	Engine   string
	Name     string
	Host     string
	Port     string
	User     string
	Password string
}

// PlayerConfig holds connection parameters for the recording player
// service client.
type PlayerConfig struct {
	APIURL    string
	RCPSecret string
}

// Config is the fully resolved runtime configuration for the daemon.
type Config struct {
	Database     DatabaseConfig
	DatabaseURL  string
	DatabasePool int32
	RedisURL     string

	AllowedHosts []string
	Secret       string

	Player PlayerConfig

	LogDir   string
	SSHUser  string
	Hostname string

	LogoutURL string

	ListenHTTP string
}

// Load resolves a Config from the current environment, having first
// attempted to populate it from one of envFiles.
func Load(envFiles []string) *Config {
	if EnvOpt(EnvDbURL, "unconfigured") == "unconfigured" {
		LoadEnv(envFiles)
	}

	var allowed []string
	if raw := os.Getenv(EnvAllowedHosts); raw != "" {
		for _, h := range strings.Split(raw, ",") {
			if h = strings.TrimSpace(h); h != "" {
				allowed = append(allowed, h)
			}
		}
	}

	poolSize, err := strconv.Atoi(EnvOpt(EnvDbPoolSize, EnvDbPoolSizeDefault))
	if err != nil {
		poolSize = 8
	}

	return &Config{
		DatabaseURL:  EnvOpt(EnvDbURL, EnvDbURLDefault),
		DatabasePool: int32(poolSize),
		RedisURL:     EnvOpt(EnvRedisURL, EnvRedisURLDefault),

		AllowedHosts: allowed,
		Secret:       os.Getenv(EnvSecret),

		Player: PlayerConfig{
			APIURL:    os.Getenv(EnvPlayerAPIURL),
			RCPSecret: os.Getenv(EnvPlayerSecret),
		},

		SSHUser:  EnvOpt(EnvSSHUser, EnvSSHUserDefault),
		Hostname: os.Getenv(EnvHostname),

		LogoutURL: os.Getenv(EnvLogoutURL),

		ListenHTTP: EnvOpt(EnvListenHTTP, EnvListenHTTPDefault),
	}
}
