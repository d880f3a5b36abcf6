package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string
	DBDSN    string
	MediaDir string
	LogFile  string
	LogLevel string

	// SiteURL is the public origin used for checkout redirects and media links.
	SiteURL      string
	CookieSecure bool

	StripeSecretKey     string
	StripeWebhookSecret string

	AdminToken     string
	AdminTokenHash string
	JWTSecret      string
	AdminRateLimit int

	S3Bucket   string
	S3Endpoint string
	S3Region   string

	RedisURL string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	OTelEndpoint string
	ServiceName  string

	SweepInterval time.Duration
	SweepOnServe  bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_DSN", "sawtooth.db")
	v.SetDefault("MEDIA_DIR", "./web/media")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SITE_URL", "http://localhost:8080")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("ADMIN_RATE_LIMIT", 120)
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("OPENAI_MODEL", "gpt-4.1-mini")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("SERVICE_NAME", "sawtooth")
	v.SetDefault("SWEEP_INTERVAL", "6h")
	v.SetDefault("SWEEP_ON_SERVE", false)
}

// Load reads configuration from the environment, a .env file in the working
// directory and, when CONFIG_FILE is set, that file. Environment wins.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}
	return FromViper(v), nil
}

func FromViper(v *viper.Viper) Config {
	return Config{
		Port:                v.GetString("PORT"),
		DBDSN:               v.GetString("DB_DSN"),
		MediaDir:            v.GetString("MEDIA_DIR"),
		LogFile:             v.GetString("LOG_FILE"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		SiteURL:             strings.TrimRight(v.GetString("SITE_URL"), "/"),
		CookieSecure:        v.GetBool("COOKIE_SECURE"),
		StripeSecretKey:     v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		AdminToken:          v.GetString("ADMIN_TOKEN"),
		AdminTokenHash:      v.GetString("ADMIN_TOKEN_HASH"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		AdminRateLimit:      v.GetInt("ADMIN_RATE_LIMIT"),
		S3Bucket:            v.GetString("S3_BUCKET"),
		S3Endpoint:          v.GetString("S3_ENDPOINT"),
		S3Region:            v.GetString("S3_REGION"),
		RedisURL:            v.GetString("REDIS_URL"),
		OpenAIKey:           v.GetString("OPENAI_API_KEY"),
		OpenAIModel:         v.GetString("OPENAI_MODEL"),
		OpenAIBaseURL:       strings.TrimRight(v.GetString("OPENAI_BASE_URL"), "/"),
		OTelEndpoint:        v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:         v.GetString("SERVICE_NAME"),
		SweepInterval:       v.GetDuration("SWEEP_INTERVAL"),
		SweepOnServe:        v.GetBool("SWEEP_ON_SERVE"),
	}
}
