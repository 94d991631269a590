package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	PublicBaseURL string

	// Staff authentication
	StaffJWTSecret string

	// Side-effect dispatch queue
	UseMemoryQueue     bool
	QueueBuffer        int
	WorkerCount        int
	SideEffectQueueURL string

	// AWS (SQS queue backend)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// SMS provider (document-POST gateway)
	SMSAPIURL   string
	SMSUsercode string
	SMSPassword string
	SMSFrom     string

	// Chat provider (token-authenticated JSON API)
	ChatAPIURL   string
	ChatAPIToken string

	// Automation engine
	AutomationBaseURL string

	// Redis (booking link cache)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SlugCacheTTL  time.Duration

	// Scheduling windows
	SlotLookaheadDays int
	DayStartHour      int
	DayEndHour        int

	// Campaign jobs
	CampaignRunAt       string
	RetentionDays       int
	TreatmentTypeMarker string

	// Ops email (campaign run summaries)
	SendGridAPIKey      string
	SendGridFromEmail   string
	SendGridFromName    string
	OpsSummaryRecipient string

	// HTTP edge
	CORSAllowedOrigins []string
	PublicRateLimit    float64
	PublicBurst        int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		StaffJWTSecret: getEnv("STAFF_JWT_SECRET", ""),

		UseMemoryQueue:     getEnvAsBool("USE_MEMORY_QUEUE", true),
		QueueBuffer:        getEnvAsInt("QUEUE_BUFFER", 256),
		WorkerCount:        getEnvAsInt("WORKER_COUNT", 2),
		SideEffectQueueURL: getEnv("SIDE_EFFECT_QUEUE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SMSAPIURL:   getEnv("SMS_API_URL", "https://smsgw.example.com/smspost"),
		SMSUsercode: getEnv("SMS_USERCODE", ""),
		SMSPassword: getEnv("SMS_PASSWORD", ""),
		SMSFrom:     getEnv("SMS_FROM", ""),

		ChatAPIURL:   getEnv("CHAT_API_URL", ""),
		ChatAPIToken: getEnv("CHAT_API_TOKEN", ""),

		AutomationBaseURL: getEnv("AUTOMATION_BASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SlugCacheTTL:  getEnvAsDuration("SLUG_CACHE_TTL", 5*time.Minute),

		SlotLookaheadDays: getEnvAsInt("SLOT_LOOKAHEAD_DAYS", 7),
		DayStartHour:      getEnvAsInt("DAY_START_HOUR", 9),
		DayEndHour:        getEnvAsInt("DAY_END_HOUR", 17),

		CampaignRunAt:       getEnv("CAMPAIGN_RUN_AT", "09:00"),
		RetentionDays:       getEnvAsInt("RETENTION_DAYS", 30),
		TreatmentTypeMarker: strings.ToLower(getEnv("TREATMENT_TYPE_MARKER", "treatment")),

		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:   getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:    getEnv("SENDGRID_FROM_NAME", "Clinic Platform"),
		OpsSummaryRecipient: getEnv("OPS_SUMMARY_RECIPIENT", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		PublicRateLimit:    getEnvAsFloat("PUBLIC_RATE_LIMIT", 5),
		PublicBurst:        getEnvAsInt("PUBLIC_BURST", 10),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
