// Package config loads mailer configuration from YAML files with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up next to the executable and
// in the working directory.
const FileName = "mailer.yaml"

// defaultMaxAttachmentSize is 25 MiB.
const defaultMaxAttachmentSize = 25 * units.MiB

// ErrNoTransports is returned by Validate when nothing can deliver mail.
var ErrNoTransports = errors.New("no transports configured")

// Config holds the complete application configuration.
type Config struct {
	DefaultFrom       string            `yaml:"default_from"`
	DefaultFromName   string            `yaml:"default_from_name"`
	MaxAttachmentSize ByteSize          `yaml:"max_attachment_size"`
	Logging           LoggingConfig     `yaml:"logging"`
	Sentry            SentryConfig      `yaml:"sentry"`
	Transports        []TransportConfig `yaml:"transports"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SentryConfig holds error reporting configuration.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// ByteSize is a size in bytes that decodes from either an integer or a
// human-readable string such as "25MB". Suffixes are binary.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	size, err := units.RAMInBytes(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid size %q: %w", value.Line, value.Value, err)
	}
	*b = ByteSize(size)
	return nil
}

// String formats the size for humans.
func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

// Load builds a configuration from defaults, then each YAML file in order,
// then environment variables. Scalars in later files override earlier ones;
// transport lists are concatenated.
func Load(paths ...string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	for _, path := range paths {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads a single YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	return Load(path)
}

// SearchPaths returns the implicit configuration files that exist: FileName
// next to the executable, then in the working directory.
func SearchPaths() []string {
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), FileName))
	}
	candidates = append(candidates, FileName)

	var found []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		abs, err := filepath.Abs(c)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			found = append(found, abs)
		}
	}
	return found
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	previous := c.Transports
	c.Transports = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.Transports = append(previous, c.Transports...)
	return nil
}

// Validate checks that the configuration can deliver mail.
func (c *Config) Validate() error {
	if len(c.Transports) == 0 {
		return ErrNoTransports
	}
	if c.MaxAttachmentSize < 0 {
		return fmt.Errorf("max_attachment_size must not be negative")
	}
	var errs []error
	for i, t := range c.Transports {
		if err := t.validate(); err != nil {
			errs = append(errs, fmt.Errorf("transports[%d] (%s): %w", i, t.Type, err))
		}
	}
	return errors.Join(errs...)
}

// applyDefaults sets default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.MaxAttachmentSize = defaultMaxAttachmentSize
	c.Logging.Level = "info"
	c.Sentry.Environment = "production"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values. SMTP_HOST
// adds one more SMTP transport built from the SMTP_* variables.
func (c *Config) applyEnvVars() error {
	if v := os.Getenv("MAILER_DEFAULT_FROM"); v != "" {
		c.DefaultFrom = v
	}
	if v := os.Getenv("MAILER_MAX_ATTACHMENT_SIZE"); v != "" {
		size, err := units.RAMInBytes(v)
		if err != nil {
			return fmt.Errorf("MAILER_MAX_ATTACHMENT_SIZE: %w", err)
		}
		c.MaxAttachmentSize = ByteSize(size)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		c.Sentry.DSN = v
	}
	if v := os.Getenv("SENTRY_ENVIRONMENT"); v != "" {
		c.Sentry.Environment = v
	}

	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return nil
	}
	smtp := &SMTPTransport{
		Host:     host,
		Login:    os.Getenv("SMTP_LOGIN"),
		Password: os.Getenv("SMTP_PASSWORD"),
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %w", err)
		}
		smtp.Port = port
	}
	if v := os.Getenv("SMTP_SSL"); v != "" {
		ssl, err := parseFlag(v)
		if err != nil {
			return fmt.Errorf("SMTP_SSL: %w", err)
		}
		smtp.SSL = Flag(ssl)
	}
	if v := os.Getenv("SMTP_TIMEOUT"); v != "" {
		timeout, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("SMTP_TIMEOUT: %w", err)
		}
		smtp.Timeout = Duration(timeout)
	}
	c.Transports = append(c.Transports, TransportConfig{Type: TypeSMTP, SMTP: smtp})
	return nil
}
