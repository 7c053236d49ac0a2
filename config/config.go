package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"b2downloader/internal/models"
)

const (
	DefaultDownloadDir     = "/app/b2_downloads/"
	DefaultMailPort        = 587
	DefaultConcurrency     = 1
	DefaultTransferTimeout = 30 * time.Minute
	DefaultListTimeout     = 2 * time.Minute
	DefaultConnectTimeout  = time.Minute
	DefaultMailTimeout     = 30 * time.Second
)

type Config struct {
	KeyID       string
	AppKey      string
	BucketName  string
	Endpoint    string
	Region      string
	Include     []string
	DownloadDir string

	Concurrency     int
	RateLimit       float64
	TransferTimeout time.Duration
	ListTimeout     time.Duration
	ConnectTimeout  time.Duration

	Mail     Mail
	LogLevel string
}

type Mail struct {
	Server    string
	Port      int
	Sender    string
	Password  string
	Recipient string
	Timeout   time.Duration
}

// flagKeys maps CLI flag names onto configuration keys.
var flagKeys = map[string]string{
	"bucket":       "b2_bucket_name",
	"download-dir": "download_dir",
	"concurrency":  "download_concurrency",
	"log-level":    "log_level",
}

// Load reads .env (if present), the environment and any changed flags.
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Warn(".env file not found, using environment variables only")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{
		KeyID:           v.GetString("b2_application_key_id"),
		AppKey:          v.GetString("b2_application_key"),
		BucketName:      v.GetString("b2_bucket_name"),
		Endpoint:        v.GetString("b2_endpoint"),
		Region:          v.GetString("b2_region"),
		Include:         splitList(v.GetString("b2_include")),
		DownloadDir:     v.GetString("download_dir"),
		Concurrency:     v.GetInt("download_concurrency"),
		RateLimit:       v.GetFloat64("download_rate_limit"),
		TransferTimeout: v.GetDuration("transfer_timeout"),
		ListTimeout:     v.GetDuration("list_timeout"),
		ConnectTimeout:  v.GetDuration("connect_timeout"),
		Mail: Mail{
			Server:    v.GetString("mail_server"),
			Port:      v.GetInt("mail_port"),
			Sender:    v.GetString("mail_sender"),
			Password:  v.GetString("mail_password"),
			Recipient: v.GetString("mail_recipient"),
			Timeout:   v.GetDuration("mail_timeout"),
		},
		LogLevel: v.GetString("log_level"),
	}

	if cfg.Region == "" {
		cfg.Region = RegionFromEndpoint(cfg.Endpoint)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("b2_application_key_id", "")
	v.SetDefault("b2_application_key", "")
	v.SetDefault("b2_bucket_name", "")
	v.SetDefault("b2_endpoint", "")
	v.SetDefault("b2_region", "")
	v.SetDefault("b2_include", "")
	v.SetDefault("download_dir", DefaultDownloadDir)
	v.SetDefault("download_concurrency", DefaultConcurrency)
	v.SetDefault("download_rate_limit", 0)
	v.SetDefault("transfer_timeout", DefaultTransferTimeout)
	v.SetDefault("list_timeout", DefaultListTimeout)
	v.SetDefault("connect_timeout", DefaultConnectTimeout)
	v.SetDefault("mail_server", "")
	v.SetDefault("mail_port", DefaultMailPort)
	v.SetDefault("mail_sender", "")
	v.SetDefault("mail_password", "")
	v.SetDefault("mail_recipient", "")
	v.SetDefault("mail_timeout", DefaultMailTimeout)
	v.SetDefault("log_level", "info")
}

// ConfigError describes one invalid or missing setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Field + ": " + e.Message
}

// Validate checks every required setting and reports all problems at once.
// The returned error wraps models.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error
	if c.KeyID == "" {
		errs = append(errs, &ConfigError{Field: "B2_APPLICATION_KEY_ID", Message: "must be set"})
	}
	if c.AppKey == "" {
		errs = append(errs, &ConfigError{Field: "B2_APPLICATION_KEY", Message: "must be set"})
	}
	if c.BucketName == "" {
		errs = append(errs, &ConfigError{Field: "B2_BUCKET_NAME", Message: "must be set"})
	}
	if c.DownloadDir == "" {
		errs = append(errs, &ConfigError{Field: "DOWNLOAD_DIR", Message: "must not be empty"})
	}
	if c.Endpoint != "" {
		if u, err := url.Parse(c.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, &ConfigError{Field: "B2_ENDPOINT", Message: "must be an absolute URL"})
		}
	}
	for _, pattern := range c.Include {
		if !doublestar.ValidatePattern(pattern) {
			errs = append(errs, &ConfigError{Field: "B2_INCLUDE", Message: fmt.Sprintf("invalid pattern %q", pattern)})
		}
	}
	if c.Concurrency < 1 {
		errs = append(errs, &ConfigError{Field: "DOWNLOAD_CONCURRENCY", Message: "must be at least 1"})
	}
	if c.RateLimit < 0 {
		errs = append(errs, &ConfigError{Field: "DOWNLOAD_RATE_LIMIT", Message: "must not be negative"})
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", models.ErrConfiguration, errors.Join(errs...))
}

// MailConfigured reports whether the whole mail group is present.
func (c *Config) MailConfigured() bool {
	m := c.Mail
	return m.Server != "" && m.Sender != "" && m.Password != "" && m.Recipient != ""
}

// MailPortValid reports whether MAIL_PORT is a usable TCP port.
func (c *Config) MailPortValid() bool {
	return c.Mail.Port >= 1 && c.Mail.Port <= 65535
}

// MailPartial reports whether some, but not all, mail settings are present.
func (c *Config) MailPartial() bool {
	m := c.Mail
	anySet := m.Server != "" || m.Sender != "" || m.Password != "" || m.Recipient != ""
	return anySet && !c.MailConfigured()
}

// RegionFromEndpoint extracts the region from a B2 style endpoint such as
// https://s3.us-west-004.backblazeb2.com. It returns "" when no region is encoded.
func RegionFromEndpoint(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	parts := strings.Split(u.Hostname(), ".")
	if len(parts) < 4 || parts[0] != "s3" {
		return ""
	}
	return parts[1]
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
