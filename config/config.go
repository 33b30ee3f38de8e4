package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"inua-fund-server/mpesa"
)

// Config is everything the server and CLI read from the environment.
type Config struct {
	Port     string
	GinMode  string
	LogLevel string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	MpesaEnvironment    string
	MpesaBaseURL        string
	MpesaShortCode      string
	MpesaPassKey        string
	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaCallbackURL    string
	MpesaTimezone       string

	CORSAllowedOrigins []string
	JWTSecret          string
	RedisURL           string
	NATSURL            string

	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	SMTPSender string

	WatiURL    string
	WatiAPIKey string

	// client side
	APIBaseURL      string
	PollInterval    time.Duration
	PollMaxAttempts int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DONATIONS_DB", "donations")
	v.SetDefault("MPESA_ENVIRONMENT", "sandbox")
	v.SetDefault("MPESA_SHORTCODE", mpesa.SandboxShortCode)
	v.SetDefault("MPESA_PASSKEY", mpesa.SandboxPassKey)
	v.SetDefault("MPESA_CALLBACK_URL", "http://localhost:8080/api/donations/payment-success")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("SMTP_PORT", 465)
	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("POLL_INTERVAL", "10s")
	v.SetDefault("POLL_MAX_ATTEMPTS", 15)
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// It's okay if the .env file isn't found; environment variables may be set elsewhere
		logrus.Debug("No .env file found or error loading .env file: ", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:     v.GetString("PORT"),
		GinMode:  v.GetString("GIN_MODE"),
		LogLevel: v.GetString("LOG_LEVEL"),

		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBName:     v.GetString("DONATIONS_DB"),

		MpesaEnvironment:    v.GetString("MPESA_ENVIRONMENT"),
		MpesaBaseURL:        v.GetString("MPESA_BASE_URL"),
		MpesaShortCode:      v.GetString("MPESA_SHORTCODE"),
		MpesaPassKey:        v.GetString("MPESA_PASSKEY"),
		MpesaConsumerKey:    v.GetString("MPESA_CONSUMER_KEY"),
		MpesaConsumerSecret: v.GetString("MPESA_CONSUMER_SECRET"),
		MpesaCallbackURL:    v.GetString("MPESA_CALLBACK_URL"),
		MpesaTimezone:       v.GetString("MPESA_TIMEZONE"),

		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		JWTSecret:          v.GetString("JWT_SECRET"),
		RedisURL:           v.GetString("REDIS_URL"),
		NATSURL:            v.GetString("NATS_URL"),

		SMTPHost:   v.GetString("SMTP_HOST"),
		SMTPPort:   v.GetInt("SMTP_PORT"),
		SMTPUser:   v.GetString("SMTP_USER"),
		SMTPPass:   v.GetString("SMTP_PASS"),
		SMTPSender: v.GetString("SMTP_SENDER"),

		WatiURL:    v.GetString("WATI_URL"),
		WatiAPIKey: v.GetString("WATI_API_KEY"),

		APIBaseURL:      strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		PollInterval:    v.GetDuration("POLL_INTERVAL"),
		PollMaxAttempts: v.GetInt("POLL_MAX_ATTEMPTS"),
	}

	if cfg.MpesaBaseURL == "" {
		cfg.MpesaBaseURL = mpesa.BaseURL(cfg.MpesaEnvironment)
	}
	cfg.MpesaBaseURL = strings.TrimRight(cfg.MpesaBaseURL, "/")

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location is the clock STK timestamps are rendered in.
func (c *Config) Location() (*time.Location, error) {
	if c.MpesaTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.MpesaTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid MPESA_TIMEZONE %q: %w", c.MpesaTimezone, err)
	}
	return loc, nil
}

// MpesaConfig builds the provider client settings.
func (c *Config) MpesaConfig() mpesa.Config {
	loc, _ := c.Location()
	return mpesa.Config{
		BaseURL:        c.MpesaBaseURL,
		ShortCode:      c.MpesaShortCode,
		PassKey:        c.MpesaPassKey,
		ConsumerKey:    c.MpesaConsumerKey,
		ConsumerSecret: c.MpesaConsumerSecret,
		CallbackURL:    c.MpesaCallbackURL,
		Location:       loc,
	}
}

// DSN is the MySQL connection string for the donations database.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
