// Package app holds process-level wiring: configuration and logging.
package app

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/luciancaetano/roomrelay"
)

// MinReadLimit is the smallest transport read limit accepted. Frames between
// roomrelay.MaxFrameSize and the read limit are answered with
// message_too_large instead of closing the connection.
const MinReadLimit = 2 * roomrelay.MaxFrameSize

type Config struct {
	Env      string
	Host     string
	Port     int
	LogLevel slog.Level

	AllowedOrigins []string // empty allows every origin
	ConnectRate    float64  // handshakes per second, 0 disables the limit
	ConnectBurst   int
	ReadLimit      int64

	Metrics         bool
	ShutdownTimeout time.Duration

	// Warnings collects problems found while loading, to be logged once a
	// logger exists.
	Warnings []string
}

// LoadDotEnv loads variables from the given files (".env" when none) without
// overriding ones already set. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// LoadConfig reads RELAY_* variables. The first positional argument, when
// present, overrides the port; an invalid one falls back to the default port.
func LoadConfig(args []string) Config {
	cfg := Config{
		Env:             getEnv("RELAY_ENV", "dev"),
		Host:            getEnv("RELAY_HOST", ""),
		AllowedOrigins:  splitCSV(getEnv("RELAY_ALLOWED_ORIGINS", "")),
		Metrics:         getEnv("RELAY_METRICS", "true") != "false",
		ShutdownTimeout: 10 * time.Second,
	}

	cfg.Port = cfg.parsePort("RELAY_PORT", getEnv("RELAY_PORT", ""))
	if len(args) > 0 {
		cfg.Port = cfg.parsePort("port argument", args[0])
	}

	defaultLevel := "debug"
	if cfg.Env == "prod" {
		defaultLevel = "info"
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("RELAY_LOG_LEVEL", defaultLevel))); err != nil {
		cfg.warn("invalid RELAY_LOG_LEVEL %q, using %s", os.Getenv("RELAY_LOG_LEVEL"), defaultLevel)
		cfg.LogLevel.UnmarshalText([]byte(defaultLevel))
	}

	cfg.ConnectRate = cfg.getEnvFloat("RELAY_CONNECT_RATE", 50)
	cfg.ConnectBurst = cfg.getEnvInt("RELAY_CONNECT_BURST", 100)
	cfg.ReadLimit = int64(cfg.getEnvInt("RELAY_READ_LIMIT", 64<<10))
	if cfg.ReadLimit < MinReadLimit {
		cfg.warn("RELAY_READ_LIMIT %d is below %d, using %d", cfg.ReadLimit, MinReadLimit, MinReadLimit)
		cfg.ReadLimit = MinReadLimit
	}
	cfg.ShutdownTimeout = cfg.getEnvDuration("RELAY_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	return cfg
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) warn(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func (c *Config) parsePort(source, v string) int {
	if v == "" {
		return roomrelay.DefaultPort
	}
	port, err := strconv.Atoi(v)
	if err != nil || port < 1 || port > 65535 {
		c.warn("invalid %s %q, using default port %d", source, v, roomrelay.DefaultPort)
		return roomrelay.DefaultPort
	}
	return port
}

// getEnv returns the env var or a default
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (c *Config) getEnvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		c.warn("invalid int value for %s: %s, using default: %d", k, v, def)
		return def
	}
	return i
}

func (c *Config) getEnvFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		c.warn("invalid number for %s: %s, using default: %g", k, v, def)
		return def
	}
	return f
}

func (c *Config) getEnvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		c.warn("invalid duration for %s: %s, using default: %s", k, v, def)
		return def
	}
	return d
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
