package server

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/pavel-fokin/docs-stash/internal/fs"
)

type Config struct {
	Addr              string        `env:"DOCS_STASH_ADDR" envDefault:":8080" validate:"required"`
	UploadDir         string        `env:"DOCS_STASH_UPLOAD_DIR" envDefault:"uploads" validate:"required"`
	MaxSize           int64         `env:"DOCS_STASH_MAX_SIZE" envDefault:"52428800" validate:"gt=0"`
	AllowedExtensions []string      `env:"DOCS_STASH_ALLOWED_EXTENSIONS" envDefault:".pdf" envSeparator:"," validate:"min=1,dive,startswith=.,min=2"`
	DBDriver          string        `env:"DOCS_STASH_DB_DRIVER" envDefault:"sqlite" validate:"oneof=sqlite postgres"`
	DBDSN             string        `env:"DOCS_STASH_DB_DSN" envDefault:"docs-stash.db" validate:"required"`
	CORSOrigins       []string      `env:"DOCS_STASH_CORS_ORIGINS" envDefault:"*" envSeparator:","`
	LogLevel          string        `env:"DOCS_STASH_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat         string        `env:"DOCS_STASH_LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`
	StaticDir         string        `env:"DOCS_STASH_STATIC_DIR" envDefault:"static"`
	ShutdownTimeout   time.Duration `env:"DOCS_STASH_SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gt=0"`
}

var validate = validator.New()

// LoadConfig parses the environment into a validated Config.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config and lower-cases the allowed extensions.
func (c *Config) Validate() error {
	for i, ext := range c.AllowedExtensions {
		c.AllowedExtensions[i] = strings.ToLower(strings.TrimSpace(ext))
	}
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// Policy returns the upload policy enforced by the file store.
func (c *Config) Policy() fs.Policy {
	return fs.Policy{
		MaxSize:           c.MaxSize,
		AllowedExtensions: c.AllowedExtensions,
	}
}

func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

// NewLogger builds the process logger from the log level and format.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
