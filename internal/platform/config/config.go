package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultEnvFile         = ".env"
	defaultPort            = "8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultOutboundTimeout = 15 * time.Second
	defaultPaymongoBaseURL = "https://api.paymongo.com"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	PSP      PSPConfig
	Services ServicesConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Outbound OutboundConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// PSPConfig collects payment provider credentials and endpoints.
type PSPConfig struct {
	PaymongoSecretKey string
	PaymongoBaseURL   string
}

// ServicesConfig lists the base URLs of the collaborating services.
type ServicesConfig struct {
	IdentityBaseURL string
	OrderingBaseURL string
	POSBaseURL      string
}

// DatabaseConfig stores Postgres connection parameters.
type DatabaseConfig struct {
	URL string
}

// CORSConfig controls the browser origin allowlist.
type CORSConfig struct {
	AllowedOrigins []string
}

// OutboundConfig bounds calls to downstream services.
type OutboundConfig struct {
	HTTPTimeout time.Duration
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		PSP: PSPConfig{
			PaymongoSecretKey: stringWithDefault(lookup, "API_PSP_PAYMONGO_SECRET_KEY", ""),
			PaymongoBaseURL:   stringWithDefault(lookup, "API_PSP_PAYMONGO_BASE_URL", defaultPaymongoBaseURL),
		},
		Services: ServicesConfig{
			IdentityBaseURL: stringWithDefault(lookup, "API_SERVICES_IDENTITY_BASE_URL", ""),
			OrderingBaseURL: stringWithDefault(lookup, "API_SERVICES_ORDERING_BASE_URL", ""),
			POSBaseURL:      stringWithDefault(lookup, "API_SERVICES_POS_BASE_URL", ""),
		},
		Database: DatabaseConfig{
			URL: stringWithDefault(lookup, "API_DATABASE_URL", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: csvWithDefault(lookup, "API_CORS_ALLOWED_ORIGINS"),
		},
		Outbound: OutboundConfig{
			HTTPTimeout: durationWithDefault(lookup, "API_OUTBOUND_HTTP_TIMEOUT", defaultOutboundTimeout),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if strings.TrimSpace(cfg.PSP.PaymongoSecretKey) == "" {
		missing = append(missing, "PSP.PaymongoSecretKey")
	}
	if strings.TrimSpace(cfg.PSP.PaymongoBaseURL) == "" {
		missing = append(missing, "PSP.PaymongoBaseURL")
	}
	if strings.TrimSpace(cfg.Services.IdentityBaseURL) == "" {
		missing = append(missing, "Services.IdentityBaseURL")
	}
	if strings.TrimSpace(cfg.Services.OrderingBaseURL) == "" {
		missing = append(missing, "Services.OrderingBaseURL")
	}
	if strings.TrimSpace(cfg.Services.POSBaseURL) == "" {
		missing = append(missing, "Services.POSBaseURL")
	}
	if strings.TrimSpace(cfg.Database.URL) == "" {
		missing = append(missing, "Database.URL")
	}
	if cfg.Outbound.HTTPTimeout <= 0 {
		missing = append(missing, "Outbound.HTTPTimeout")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
