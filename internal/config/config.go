package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Addressing
	EmailDomain   string
	DefaultRegion string
	SMSSubject    string

	// Address book
	AddressBookPath    string
	AddressBookSection string
	DatabaseURL        string

	// SMS providers
	SMSProvider              string
	TwilioAccountSID         string
	TwilioAuthToken          string
	TwilioValidateSignature  bool
	TelnyxAPIKey             string
	TelnyxMessagingProfileID string

	// Email providers
	EmailProvider      string
	SendGridAPIKey     string
	SendGridParseToken string
	SESFromName        string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Duplicate delivery guard
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DedupeTTL     time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory, when present, seeds variables that are not already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		EmailDomain:   strings.TrimSpace(getEnv("EMAIL_DOMAIN", "")),
		DefaultRegion: strings.ToUpper(strings.TrimSpace(getEnv("DEFAULT_REGION", "US"))),
		SMSSubject:    getEnv("SMS_EMAIL_SUBJECT", "Text message"),

		AddressBookPath:    getEnv("ADDRESS_BOOK_PATH", "address-book.cfg"),
		AddressBookSection: getEnv("ADDRESS_BOOK_SECTION", "users"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		SMSProvider:              strings.ToLower(strings.TrimSpace(getEnv("SMS_PROVIDER", "auto"))),
		TwilioAccountSID:         getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:          getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioValidateSignature:  getEnvAsBool("TWILIO_VALIDATE_SIGNATURE", false),
		TelnyxAPIKey:             getEnv("TELNYX_API_KEY", ""),
		TelnyxMessagingProfileID: getEnv("TELNYX_MESSAGING_PROFILE_ID", ""),

		EmailProvider:      strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		SendGridParseToken: getEnv("SENDGRID_PARSE_TOKEN", ""),
		SESFromName:        getEnv("SES_FROM_NAME", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DedupeTTL:     getEnvAsDuration("DEDUPE_TTL", 24*time.Hour),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
