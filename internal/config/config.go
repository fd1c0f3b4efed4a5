package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Welcome delivery modes for the detached welcome task.
const (
	WelcomeModeLocal   = "local"
	WelcomeModeWebhook = "webhook"
	WelcomeModeSNS     = "sns"
	WelcomeModeOff     = "off"
)

// Config holds all runtime configuration loaded from environment variables.
// It is built once at startup and passed by pointer; nothing mutates it afterwards.
type Config struct {
	AppPort   string `env:"APP_PORT" env-default:"3000"`
	AppEnv    string `env:"APP_ENV" env-default:"development"`
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"json"`

	// Identity provider admin API.
	ProviderEndpoint string        `env:"APPWRITE_ENDPOINT" env-default:""`
	ProviderProject  string        `env:"APPWRITE_PROJECT" env-default:""`
	ProviderAPIKey   string        `env:"APPWRITE_API_KEY" env-default:""`
	ProviderTimeout  time.Duration `env:"PROVIDER_TIMEOUT" env-default:"10s"`

	TokenSecret          string        `env:"TOKEN_SECRET" env-default:""`
	TokenTTL             time.Duration `env:"TOKEN_TTL" env-default:"24h"`
	CredentialTTLSeconds int           `env:"CREDENTIAL_TTL_SECONDS" env-default:"120"`

	VerifyBase   string `env:"VERIFY_BASE" env-default:""`
	MobileScheme string `env:"MOBILE_DEEP_LINK_SCHEME" env-default:"petranker://auth/verified"`

	BrevoAPIKey   string `env:"BREVO_API_KEY" env-default:""`
	BrevoEndpoint string `env:"BREVO_ENDPOINT" env-default:"https://api.brevo.com/v3/smtp/email"`
	SenderEmail   string `env:"EMAIL_FROM" env-default:"noreply@yourapp.com"`
	SenderName    string `env:"EMAIL_FROM_NAME" env-default:"PetRanker"`

	SMTPHost     string `env:"SMTP_HOST" env-default:""`
	SMTPPort     int    `env:"SMTP_PORT" env-default:"587"`
	SMTPUsername string `env:"SMTP_USERNAME" env-default:""`
	SMTPPassword string `env:"SMTP_PASSWORD" env-default:""`
	SMTPTLS      bool   `env:"SMTP_TLS" env-default:"true"`

	WelcomeMode     string        `env:"WELCOME_MODE" env-default:"local"`
	WelcomeEndpoint string        `env:"VERIFY_WELCOME_ENDPOINT" env-default:""`
	WelcomeTimeout  time.Duration `env:"WELCOME_TIMEOUT" env-default:"15s"`

	AWSRegion       string `env:"AWS_REGION" env-default:"us-east-1"`
	AWSEndpointURL  string `env:"AWS_ENDPOINT_URL" env-default:""` // empty in prod, LocalStack URL in dev
	AWSAccessKeyID  string `env:"AWS_ACCESS_KEY_ID" env-default:""`
	AWSSecretKey    string `env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	WelcomeTopicARN string `env:"SNS_WELCOME_TOPIC_ARN" env-default:""`

	// Empty disables the consumed-token ledger; verification tokens then stay replayable until expiry.
	ConsumedTokensTable string `env:"DYNAMO_TABLE_CONSUMED_TOKENS" env-default:""`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-default:"*" env-separator:","`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	cfg.ProviderEndpoint = NormalizeEndpoint(cfg.ProviderEndpoint)
	cfg.VerifyBase = strings.TrimRight(strings.TrimSpace(cfg.VerifyBase), "/")
	switch cfg.WelcomeMode {
	case WelcomeModeLocal, WelcomeModeWebhook, WelcomeModeSNS, WelcomeModeOff:
	default:
		return nil, fmt.Errorf("unknown WELCOME_MODE %q", cfg.WelcomeMode)
	}
	return &cfg, nil
}

// NormalizeEndpoint strips trailing slashes and a trailing /v1 so that
// request paths can always be built as endpoint + "/v1/...".
func NormalizeEndpoint(e string) string {
	e = strings.TrimRight(strings.TrimSpace(e), "/")
	e = strings.TrimSuffix(e, "/v1")
	return strings.TrimRight(e, "/")
}

// ProviderConfigured reports whether all identity-provider admin settings are present.
func (c *Config) ProviderConfigured() bool {
	return c.ProviderEndpoint != "" && c.ProviderProject != "" && c.ProviderAPIKey != ""
}

// EmailConfigured reports whether any outbound email transport is configured.
func (c *Config) EmailConfigured() bool {
	return c.BrevoAPIKey != "" || c.SMTPHost != ""
}
