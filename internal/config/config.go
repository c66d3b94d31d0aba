// Package config loads and validates jobwatch configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read when no env file is given. It may be absent.
const DefaultEnvFile = ".env"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
	Mail    MailConfig    `mapstructure:"mail"`
	DB      DBConfig      `mapstructure:"db"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SiteConfig describes the job board being watched.
type SiteConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Origin    string `mapstructure:"origin"`
	MaxPages  int    `mapstructure:"max_pages"`
	UserAgent string `mapstructure:"user_agent"`
}

// HTTPConfig configures page fetching.
type HTTPConfig struct {
	TimeoutSeconds    int  `mapstructure:"timeout_seconds"`
	Headless          bool `mapstructure:"headless"`
	NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
}

// StoreConfig locates the CSV listing store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig controls the log file and zap mode.
type LoggingConfig struct {
	Dir         string `mapstructure:"dir"`
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MailConfig holds the SMTP settings for the digest email.
type MailConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Recipient string `mapstructure:"recipient"`
	Subject   string `mapstructure:"subject"`
}

// DBConfig controls the optional Postgres listing mirror.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// MetricsConfig controls the optional Pushgateway push.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// Load builds a Config from defaults, an optional YAML file, an env file and
// the environment. Variables already set in the environment win over the env
// file. An empty envFile means DefaultEnvFile, which is skipped if absent.
func Load(path, envFile string) (Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("JOBWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindMailEnv(v); err != nil {
		return Config{}, err
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadEnvFile(envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}
	err := godotenv.Load(envFile)
	switch {
	case err == nil:
		return nil
	case !explicit && errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}
}

// bindMailEnv maps the conventional mail variables onto their keys. The
// prefixed form is checked first.
func bindMailEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"mail.user":      "EMAIL_USER",
		"mail.password":  "EMAIL_PASS",
		"mail.recipient": "RECIPIENT_EMAIL",
	}
	for key, env := range bindings {
		prefixed := "JOBWATCH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.iamexpat.nl/career/jobs-netherlands/amsterdam")
	v.SetDefault("site.origin", "https://www.iamexpat.nl")
	v.SetDefault("site.max_pages", 3)
	v.SetDefault("site.user_agent", "Mozilla/5.0")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.headless", false)
	v.SetDefault("http.nav_timeout_seconds", 45)
	v.SetDefault("store.path", "data/jobs.csv")
	v.SetDefault("logging.dir", "logs")
	v.SetDefault("logging.file", "job_scraper.log")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("mail.enabled", true)
	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.user", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.recipient", "")
	v.SetDefault("mail.subject", "New Job Listings Available!")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "listings")
	v.SetDefault("db.max_conns", 2)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "jobwatch")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.MaxPages <= 0 {
		return fmt.Errorf("site.max_pages must be > 0")
	}
	if err := absoluteURL(c.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url: %w", err)
	}
	if err := absoluteURL(c.Site.Origin); err != nil {
		return fmt.Errorf("site.origin: %w", err)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.Headless && c.HTTP.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("http.nav_timeout_seconds must be > 0 when headless is enabled")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Mail.Enabled {
		switch {
		case strings.TrimSpace(c.Mail.User) == "":
			return fmt.Errorf("mail.user (EMAIL_USER) must be set when mail is enabled")
		case c.Mail.Password == "":
			return fmt.Errorf("mail.password (EMAIL_PASS) must be set when mail is enabled")
		case strings.TrimSpace(c.Mail.Recipient) == "":
			return fmt.Errorf("mail.recipient (RECIPIENT_EMAIL) must be set when mail is enabled")
		case c.Mail.Port <= 0:
			return fmt.Errorf("mail.port must be > 0")
		}
	}
	if c.DB.MaxConns < 0 {
		return fmt.Errorf("db.max_conns must be >= 0")
	}
	if c.Metrics.PushgatewayURL != "" {
		if err := absoluteURL(c.Metrics.PushgatewayURL); err != nil {
			return fmt.Errorf("metrics.pushgateway_url: %w", err)
		}
	}
	return nil
}

// HTTPTimeout returns the per-request timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NavTimeout returns the headless navigation timeout.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.HTTP.NavTimeoutSeconds) * time.Second
}

func absoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", raw)
	}
	return nil
}
