package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the typed runtime configuration of the service.
type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"prod"`
	AppHost       string `env:"APP_HOST" envDefault:"0.0.0.0"`
	AppPort       string `env:"APP_PORT" envDefault:"8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	Database DatabaseConfig `envPrefix:"DB_"`
	Cache    CacheConfig    `envPrefix:"CACHE_"`
	Mail     MailConfig
	Stripe   StripeConfig   `envPrefix:"STRIPE_"`
	Google   GoogleConfig   `envPrefix:"GOOGLE_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
	Archive  ArchiveConfig  `envPrefix:"S3_"`
	Admin    AdminConfig    `envPrefix:"ADMIN_"`
	Queue    QueueConfig    `envPrefix:"QUEUE_"`
	Pricing  PricingConfig  `envPrefix:"PRICE_"`
	Bank     BankConfig     `envPrefix:"BANK_"`
}

type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"127.0.0.1"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

// DSN returns the pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

// URL returns the connection string in the form golang-migrate expects.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type CacheConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

func (c CacheConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type MailConfig struct {
	From         string  `env:"MAIL_FROM" envDefault:"noreply@example.com"`
	AdminAddress string  `env:"ADMIN_EMAIL"`
	SMTPHost     string  `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort     string  `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string  `env:"SMTP_USER"`
	SMTPPassword string  `env:"SMTP_PASSWORD"`
	ResendAPIKey string  `env:"RESEND_API_KEY"`
	ResendFrom   string  `env:"RESEND_FROM"`
	ResendRate   float64 `env:"MAIL_RESEND_RATE" envDefault:"2"`
	SMTPRate     float64 `env:"MAIL_SMTP_RATE" envDefault:"1"`
	Burst        int     `env:"MAIL_BURST" envDefault:"1"`
	// Inline sends notifications from a goroutine instead of the job queue.
	Inline bool `env:"MAIL_INLINE" envDefault:"false"`
}

func (c MailConfig) SMTPEnabled() bool {
	return c.SMTPUser != "" && c.SMTPPassword != ""
}

func (c MailConfig) ResendEnabled() bool {
	return c.ResendAPIKey != ""
}

type StripeConfig struct {
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	Currency      string `env:"CURRENCY" envDefault:"jpy"`
}

func (c StripeConfig) Enabled() bool {
	return c.SecretKey != ""
}

type GoogleConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RefreshToken string `env:"REFRESH_TOKEN"`
	CalendarID   string `env:"CALENDAR_ID" envDefault:"primary"`
	TimeZone     string `env:"TIME_ZONE" envDefault:"Asia/Tokyo"`
}

func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

type KafkaConfig struct {
	BootstrapServers string `env:"BOOTSTRAP_SERVERS"`
	PaymentsTopic    string `env:"PAYMENTS_TOPIC" envDefault:"successful_payments"`
}

func (c KafkaConfig) Enabled() bool {
	return strings.Trim(c.BootstrapServers, "\"") != ""
}

type ArchiveConfig struct {
	Enabled         bool   `env:"ARCHIVE_ENABLED" envDefault:"false"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	Region          string `env:"REGION" envDefault:"eu-central-1"`
	Bucket          string `env:"BUCKET"`
	Endpoint        string `env:"ENDPOINT"`
	Prefix          string `env:"PREFIX" envDefault:"webhooks"`
}

type AdminConfig struct {
	User         string `env:"USER" envDefault:"admin"`
	PasswordHash string `env:"PASSWORD_HASH"`
}

type QueueConfig struct {
	Workers int `env:"WORKERS" envDefault:"2"`
}

// PricingConfig holds session prices in the smallest currency unit.
type PricingConfig struct {
	Trial        int64 `env:"TRIAL" envDefault:"6000"`
	Continuation int64 `env:"CONTINUATION" envDefault:"40000"`
}

type BankConfig struct {
	Name          string        `env:"NAME"`
	Branch        string        `env:"BRANCH"`
	AccountType   string        `env:"ACCOUNT_TYPE" envDefault:"普通"`
	AccountNumber string        `env:"ACCOUNT_NUMBER"`
	AccountHolder string        `env:"ACCOUNT_HOLDER"`
	PaymentWindow time.Duration `env:"PAYMENT_WINDOW" envDefault:"72h"`
}

// Load parses the configuration from the given environment map.
func Load(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Kafka.BootstrapServers = strings.Trim(cfg.Kafka.BootstrapServers, "\"")
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &cfg, nil
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.User == "" || c.Database.Name == "" {
		errs = append(errs, errors.New("DB_USER and DB_NAME are required"))
	}
	if c.Stripe.Enabled() && c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set"))
	}
	if !c.Mail.SMTPEnabled() && !c.Mail.ResendEnabled() {
		errs = append(errs, errors.New("at least one mail transport (SMTP_USER/SMTP_PASSWORD or RESEND_API_KEY) is required"))
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET is required when S3_ARCHIVE_ENABLED is true"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}
