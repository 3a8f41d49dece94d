package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds process-wide helpers shared across handlers.
type Config struct {
	Validator *validator.Validate
}

// AppConfig represents the application configuration, resolved once from
// the environment.
type AppConfig struct {
	Port string

	// Webhook authentication. SkipSignatureWhenUnset is the explicit
	// weak-trust fallback for local development: without it, an empty
	// secret still fails every signed request.
	WebhookSecret          string
	SkipSignatureWhenUnset bool

	// Payment gateway.
	GatewayName        string
	GatewayAccessToken string
	GatewayBaseURL     string
	GatewayTimeout     time.Duration

	// Order store.
	OrderDBPath string

	// Audit log / OpenSearch.
	OpenSearchURL    string
	OpenSearchUser   string
	OpenSearchPass   string
	EnableAuditIndex bool
	AuditIndexName   string
}

var (
	instance          *Config
	appConfigInstance *AppConfig
)

// App returns the shared config singleton.
func App() *Config {
	if instance == nil {
		instance = &Config{
			Validator: validator.New(),
		}
	}
	return instance
}

// GetAppConfig returns the application configuration.
func GetAppConfig() *AppConfig {
	if appConfigInstance == nil {
		appConfigInstance = &AppConfig{
			Port:                   GetEnv("APP_PORT", "9999"),
			WebhookSecret:          GetEnv("WEBHOOK_SECRET", ""),
			SkipSignatureWhenUnset: GetBoolEnv("WEBHOOK_ALLOW_UNSIGNED", false),
			GatewayName:            GetEnv("GATEWAY_NAME", "mercadopago"),
			GatewayAccessToken:     GetEnv("GATEWAY_ACCESS_TOKEN", ""),
			GatewayBaseURL:         GetEnv("GATEWAY_BASE_URL", ""),
			GatewayTimeout:         time.Duration(GetIntEnv("GATEWAY_TIMEOUT_SECONDS", 15)) * time.Second,
			OrderDBPath:            GetEnv("ORDER_DB_PATH", "data/orders.db"),
			OpenSearchURL:          GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
			OpenSearchUser:         GetEnv("OPENSEARCH_USER", ""),
			OpenSearchPass:         GetEnv("OPENSEARCH_PASSWORD", ""),
			EnableAuditIndex:       GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", true),
			AuditIndexName:         GetEnv("AUDIT_INDEX_NAME", "paycore-audit-logs"),
		}
	}
	return appConfigInstance
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
