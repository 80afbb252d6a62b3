// Package config provides application configuration management.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the SAML token service.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	SAML     SAMLConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Environment     string
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	// AdminAPIKeyHash is the bcrypt hash of the shared admin API key
	// required to manage SSO connections.
	AdminAPIKeyHash string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds session-token configuration for the token issued to
// the host application after a SAML assertion validates successfully.
type JWTConfig struct {
	SecretKey         string
	AccessTokenExpiry time.Duration
	Issuer            string
	Audience          string
}

// SAMLConfig holds samltoken.Handler configuration plus the SP-side
// material needed to validate and issue assertions.
type SAMLConfig struct {
	MaxTokenSize   int
	ClockSkew      time.Duration
	SPEntityID     string
	ACSURL         string
	IssuerCertPath string
	IssuerKeyPath  string
	ReplayCacheTTL time.Duration
}

// Load creates a Config from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Environment:     getEnv("APP_ENV", "production"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AdminAPIKeyHash: getEnv("ADMIN_API_KEY_HASH", ""),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DATABASE_HOST", "localhost"),
			Port:         getEnvInt("DATABASE_PORT", 5432),
			User:         getEnv("DATABASE_USER", "postgres"),
			Password:     getEnv("DATABASE_PASSWORD", ""),
			Database:     getEnv("DATABASE_NAME", "samltoken"),
			SSLMode:      getEnv("DATABASE_SSL_MODE", "require"),
			MaxOpenConns: getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvDuration("DATABASE_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			SecretKey:         getEnv("JWT_SECRET_KEY", ""),
			AccessTokenExpiry: getEnvDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			Issuer:            getEnv("JWT_ISSUER", "samltoken"),
			Audience:          getEnv("JWT_AUDIENCE", "samltoken-clients"),
		},
		SAML: SAMLConfig{
			MaxTokenSize:   getEnvInt("SAML_MAX_TOKEN_SIZE", 1<<20),
			ClockSkew:      getEnvDuration("SAML_CLOCK_SKEW", 5*time.Minute),
			SPEntityID:     getEnv("SAML_SP_ENTITY_ID", "urn:samltoken:sp"),
			ACSURL:         getEnv("SAML_ACS_URL", "http://localhost:8080/sso/saml/acs"),
			IssuerCertPath: getEnv("SAML_ISSUER_CERT_PATH", ""),
			IssuerKeyPath:  getEnv("SAML_ISSUER_KEY_PATH", ""),
			ReplayCacheTTL: getEnvDuration("SAML_REPLAY_CACHE_TTL", 24*time.Hour),
		},
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		current := ""
		for _, char := range value {
			if char == ',' {
				if current != "" {
					result = append(result, current)
				}
				current = ""
			} else {
				current += string(char)
			}
		}
		if current != "" {
			result = append(result, current)
		}
		return result
	}
	return defaultValue
}
