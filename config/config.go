// config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Env            string // development | production
	LogLevel       string
	DatabaseURL    string
	AllowedOrigins string
	PublicBaseURL  string

	// Mail
	ResendAPIKey string
	MailFrom     string
	KanzleiEmail string

	// E-signature provider
	ESignAPIKey        string
	ESignAPIURL        string
	ESignTemplateID    string
	ESignRecipientRole string
	ESignWebhookSecret string

	// Sessions
	AdminSessionSecret string
	PartnerJWTSecret   string

	OutboundTimeout       time.Duration
	LeadUnitAmount        float64
	SignatureSyncInterval time.Duration
	TokenCleanupInterval  time.Duration

	// Optional R2 archive for signed documents
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := Config{
		Port:           getEnv("PORT", "5200"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		MailFrom:     getEnv("MAIL_FROM", "META Datenschutzklage <noreply@meta-datenschutzklage.de>"),
		KanzleiEmail: os.Getenv("KANZLEI_EMAIL"),

		ESignAPIKey:        os.Getenv("ESIGN_API_KEY"),
		ESignAPIURL:        strings.TrimRight(getEnv("ESIGN_API_URL", "https://api.pandadoc.com/public/v1"), "/"),
		ESignTemplateID:    os.Getenv("ESIGN_TEMPLATE_ID"),
		ESignRecipientRole: getEnv("ESIGN_RECIPIENT_ROLE", "Signer"),
		ESignWebhookSecret: os.Getenv("ESIGN_WEBHOOK_SECRET"),

		AdminSessionSecret: os.Getenv("ADMIN_SESSION_SECRET"),
		PartnerJWTSecret:   os.Getenv("PARTNER_JWT_SECRET"),

		OutboundTimeout:       getEnvDuration("OUTBOUND_TIMEOUT", 20*time.Second),
		LeadUnitAmount:        getEnvFloat("LEAD_UNIT_AMOUNT", 1.0),
		SignatureSyncInterval: getEnvDuration("SIGNATURE_SYNC_INTERVAL", 5*time.Minute),
		TokenCleanupInterval:  getEnvDuration("TOKEN_CLEANUP_INTERVAL", time.Hour),

		R2AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2Bucket:          os.Getenv("R2_BUCKET_NAME"),
	}

	// Partner sessions fall back to the admin secret; the audiences keep the two apart.
	if cfg.PartnerJWTSecret == "" {
		cfg.PartnerJWTSecret = cfg.AdminSessionSecret
	}

	return cfg
}

// Validate aborts start-up on missing required settings.
func (c Config) Validate() {
	if c.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	if c.AdminSessionSecret == "" {
		log.Fatal("ADMIN_SESSION_SECRET environment variable not set")
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// ESignEnabled reports whether documents can be originated from the template.
func (c Config) ESignEnabled() bool {
	return c.ESignAPIKey != "" && c.ESignTemplateID != ""
}

func (c Config) ArchiveEnabled() bool {
	return c.R2AccountID != "" && c.R2Bucket != "" && c.R2AccessKeyID != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64)
	if err != nil {
		log.Printf("⚠️  %s=%q is not a number, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// plain integers are seconds
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("⚠️  %s=%q is not a duration, using %s", key, v, fallback)
	return fallback
}
