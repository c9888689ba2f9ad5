// config.go - Handles configuration for the CIMA backend

package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct { // Config holds all configuration values
	Port        string        // HTTP listen port
	DBPath      string        // Path to the SQLite database file
	JWTSecret   string        // Secret key for session and purpose tokens
	TokenTTL    time.Duration // Lifetime of login tokens
	FrontendURL string        // Base URL used in verification/reset links
	CORSOrigins []string      // Origins allowed to call the API

	LogLevel  string // zerolog level name
	LogFormat string // json or console

	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	SMTPFrom    string
	SMTPTLS     bool
	MailTimeout time.Duration // Upper bound for a single send

	MQTTBroker   string // Empty disables the MQTT bridge
	MQTTClientID string
	MQTTTopic    string

	CreateAdmin   bool // Bootstrap an admin account when none exists
	AdminEmail    string
	AdminPassword string
	AdminName     string

	Release bool // GIN_MODE=release
}

func Load() *Config { // Load reads config from environment variables or uses defaults
	frontend := getEnv("FRONTEND_URL", "http://localhost:5173")
	return &Config{
		Port:        getEnv("PORT", "5000"),
		DBPath:      getEnv("DB_PATH", "cima.db"),
		JWTSecret:   getEnv("JWT_SECRET", "supersecret"),
		TokenTTL:    getDuration("TOKEN_TTL", 30*24*time.Hour),
		FrontendURL: strings.TrimRight(frontend, "/"),
		CORSOrigins: getList("CORS_ORIGINS", []string{frontend}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		SMTPHost:    getEnv("SMTP_HOST", ""),
		SMTPPort:    getInt("SMTP_PORT", 587),
		SMTPUser:    getEnv("SMTP_USER", ""),
		SMTPPass:    getEnv("SMTP_PASS", ""),
		SMTPFrom:    getEnv("SMTP_FROM", ""),
		SMTPTLS:     getBool("SMTP_TLS", true),
		MailTimeout: getDuration("MAIL_TIMEOUT", 15*time.Second),

		MQTTBroker:   getEnv("MQTT_BROKER", ""),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "cima-backend"),
		MQTTTopic:    getEnv("MQTT_TOPIC", "cima/reports/new"),

		CreateAdmin:   getBool("CREATE_ADMIN", false),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),

		Release: getEnv("GIN_MODE", "") == "release",
	}
}

// Validate rejects combinations the server cannot run with.
func (c *Config) Validate() error {
	if c.Release && (c.JWTSecret == "" || c.JWTSecret == "supersecret") {
		return errors.New("JWT_SECRET must be set in release mode")
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		return errors.New("SMTP_FROM is required when SMTP_HOST is set")
	}
	if c.CreateAdmin && (c.AdminEmail == "" || c.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD are required when CREATE_ADMIN is true")
	}
	return nil
}

// MailEnabled reports whether an SMTP relay is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, fallback string) string { // Helper to get env var or fallback
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
