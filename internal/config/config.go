// Package config loads crmcore settings from an optional .env file and
// CRMCORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"crmcore/internal/blob"
)

// DefaultEnvFile is loaded when present and no other file is named.
const DefaultEnvFile = ".env"

// Config is the resolved process configuration.
type Config struct {
	LogLevel  string
	LogFormat string
	Seed      uint64 // 0 draws a random seed
	Metrics   string // none, expvar or prometheus
	AuditFile string // JSON-lines audit log; empty disables it
	ReportDSN string // Postgres DSN for the report sink; empty disables it
	Blob      blob.Options
	Export    Export
	Events    Events
	Mail      Mail
}

// Export configures the export worker.
type Export struct {
	Formats   []string
	Prefix    string
	QueueSize int
	URLExpiry time.Duration
}

// Events configures the change event publisher.
type Events struct {
	Driver string // none, amqp or redis
	URL    string
	Topic  string
}

// Mail configures export notifications over SMTP.
type Mail struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// Enabled reports whether notifications should be sent.
func (m Mail) Enabled() bool { return m.Host != "" && len(m.To) > 0 }

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Metrics:   "none",
		Blob:      blob.Options{Driver: string(blob.DriverFilesystem)},
		Export: Export{
			Formats:   []string{"json", "csv"},
			Prefix:    "exports",
			QueueSize: 16,
			URLExpiry: 15 * time.Minute,
		},
		Events: Events{Driver: "none", Topic: "crmcore.changes"},
		Mail:   Mail{Port: 587, From: "crmcore@localhost"},
	}
}

// Load reads envFile into the process environment, without overriding
// variables that are already set, and then resolves the configuration. An
// empty envFile means DefaultEnvFile, which may be absent.
func Load(envFile string) (Config, error) {
	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if envFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup resolves the configuration from lookup, typically os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	r := reader{lookup: lookup}

	r.str("CRMCORE_LOG_LEVEL", &cfg.LogLevel)
	r.str("CRMCORE_LOG_FORMAT", &cfg.LogFormat)
	r.unsigned("CRMCORE_SEED", &cfg.Seed)
	r.str("CRMCORE_METRICS", &cfg.Metrics)
	r.str("CRMCORE_AUDIT_FILE", &cfg.AuditFile)
	r.str("CRMCORE_REPORT_POSTGRES_DSN", &cfg.ReportDSN)

	r.str("CRMCORE_BLOB_DRIVER", &cfg.Blob.Driver)
	r.str("CRMCORE_BLOB_FS_ROOT", &cfg.Blob.FSRoot)
	r.str("CRMCORE_BLOB_S3_BUCKET", &cfg.Blob.S3.Bucket)
	r.str("CRMCORE_BLOB_S3_REGION", &cfg.Blob.S3.Region)
	r.str("CRMCORE_BLOB_S3_ENDPOINT", &cfg.Blob.S3.Endpoint)
	r.str("CRMCORE_BLOB_S3_PREFIX", &cfg.Blob.S3.Prefix)
	r.str("CRMCORE_BLOB_S3_ACCESS_KEY_ID", &cfg.Blob.S3.AccessKeyID)
	r.str("CRMCORE_BLOB_S3_SECRET_ACCESS_KEY", &cfg.Blob.S3.SecretAccessKey)
	r.str("CRMCORE_BLOB_S3_SESSION_TOKEN", &cfg.Blob.S3.SessionToken)
	r.boolean("CRMCORE_BLOB_S3_PATH_STYLE", &cfg.Blob.S3.PathStyle)

	r.list("CRMCORE_EXPORT_FORMATS", &cfg.Export.Formats)
	r.str("CRMCORE_EXPORT_PREFIX", &cfg.Export.Prefix)
	r.integer("CRMCORE_EXPORT_QUEUE", &cfg.Export.QueueSize)
	r.duration("CRMCORE_EXPORT_URL_EXPIRY", &cfg.Export.URLExpiry)

	r.str("CRMCORE_EVENTS_DRIVER", &cfg.Events.Driver)
	r.str("CRMCORE_EVENTS_URL", &cfg.Events.URL)
	r.str("CRMCORE_EVENTS_TOPIC", &cfg.Events.Topic)

	r.str("CRMCORE_MAIL_HOST", &cfg.Mail.Host)
	r.integer("CRMCORE_MAIL_PORT", &cfg.Mail.Port)
	r.str("CRMCORE_MAIL_USER", &cfg.Mail.User)
	r.str("CRMCORE_MAIL_PASSWORD", &cfg.Mail.Password)
	r.str("CRMCORE_MAIL_FROM", &cfg.Mail.From)
	r.list("CRMCORE_MAIL_TO", &cfg.Mail.To)

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerated settings and cross-field requirements.
func (c Config) Validate() error {
	var errs []error
	if !oneOf(c.LogFormat, "text", "json") {
		errs = append(errs, fmt.Errorf("CRMCORE_LOG_FORMAT: unknown format %q", c.LogFormat))
	}
	if !oneOf(c.Metrics, "none", "expvar", "prometheus") {
		errs = append(errs, fmt.Errorf("CRMCORE_METRICS: unknown recorder %q", c.Metrics))
	}
	if d, err := blob.ParseDriver(c.Blob.Driver); err != nil {
		errs = append(errs, fmt.Errorf("CRMCORE_BLOB_DRIVER: %w", err))
	} else if d == blob.DriverS3 && c.Blob.S3.Bucket == "" {
		errs = append(errs, errors.New("CRMCORE_BLOB_S3_BUCKET is required for the s3 driver"))
	}
	for _, f := range c.Export.Formats {
		if !oneOf(f, "json", "csv", "sqlite") {
			errs = append(errs, fmt.Errorf("CRMCORE_EXPORT_FORMATS: unknown format %q", f))
		}
	}
	if c.Export.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("CRMCORE_EXPORT_QUEUE must be positive, got %d", c.Export.QueueSize))
	}
	if !oneOf(c.Events.Driver, "none", "amqp", "redis") {
		errs = append(errs, fmt.Errorf("CRMCORE_EVENTS_DRIVER: unknown driver %q", c.Events.Driver))
	} else if c.Events.Driver != "none" && c.Events.URL == "" {
		errs = append(errs, fmt.Errorf("CRMCORE_EVENTS_URL is required for the %s driver", c.Events.Driver))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// reader collects parse errors so that every bad variable is reported.
type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *reader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *reader) list(key string, dst *[]string) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	*dst = out
}

func (r *reader) integer(key string, dst *int) {
	if v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *reader) unsigned(key string, dst *uint64) {
	if v, ok := r.get(key); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (r *reader) boolean(key string, dst *bool) {
	if v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func (r *reader) duration(key string, dst *time.Duration) {
	if v, ok := r.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}
