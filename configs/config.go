package configs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/i2y/mcphub/internal/adapter/outbound/github"
	"github.com/i2y/mcphub/internal/adapter/outbound/staticsvc"
	"github.com/i2y/mcphub/internal/domain"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "mcphub"

// DefaultConfigFilePath is used when MCPHUB_CONFIG_FILE is not set. It may be absent.
const DefaultConfigFilePath = "configs/mcphub.yaml"

// fetchGitHub reads github:// config files.
var fetchGitHub = github.NewGHClient().FetchFile

// APIConfigs is the list of OpenAPI-described APIs. From the environment it is
// read as a JSON array.
type APIConfigs []domain.APIConfig

// Decode implements envconfig.Decoder.
func (a *APIConfigs) Decode(value string) error {
	var apis []domain.APIConfig
	if err := json.Unmarshal([]byte(value), &apis); err != nil {
		return fmt.Errorf("apis must be a JSON array: %w", err)
	}
	*a = apis
	return nil
}

// Config holds the application configuration, merged from file and environment variables.
// Environment variables carry the prefix "MCPHUB_" and override file settings.
// Defaults are applied last, to fields neither source set.
type Config struct {
	// Config File Path (env only)
	ConfigFilePath string `envconfig:"CONFIG_FILE" yaml:"-" toml:"-"`

	// Server
	ListenAddr         string        `envconfig:"LISTEN_ADDR" yaml:"listen_addr" toml:"listen_addr"`
	AdminListenAddr    string        `envconfig:"ADMIN_LISTEN_ADDR" yaml:"admin_listen_addr" toml:"admin_listen_addr"`
	HTTPClientTimeout  time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" yaml:"http_client_timeout" toml:"http_client_timeout"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	ServerReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" yaml:"server_read_timeout" toml:"server_read_timeout"`
	ServerWriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" yaml:"server_write_timeout" toml:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" yaml:"server_idle_timeout" toml:"server_idle_timeout"`

	// Observability
	OtelExporterOtlpEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" yaml:"otel_exporter_otlp_endpoint" toml:"otel_exporter_otlp_endpoint"`
	OtelExporterOtlpInsecure *bool  `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" yaml:"otel_exporter_otlp_insecure" toml:"otel_exporter_otlp_insecure"`
	LogLevel                 string `envconfig:"LOG_LEVEL" yaml:"log_level" toml:"log_level"`
	LogFile                  string `envconfig:"LOG_FILE" yaml:"log_file" toml:"log_file"`

	// OpenAPI documents. Certificates are not verified unless OpenAPIVerifyTLS is set.
	// A zero OpenAPICacheTTL fetches every document on every catalog build.
	APIs             APIConfigs    `envconfig:"APIS" yaml:"apis" toml:"apis"`
	OpenAPIVerifyTLS bool          `envconfig:"OPENAPI_VERIFY_TLS" yaml:"openapi_verify_tls" toml:"openapi_verify_tls"`
	OpenAPICacheTTL  time.Duration `envconfig:"OPENAPI_CACHE_TTL" yaml:"openapi_cache_ttl" toml:"openapi_cache_ttl"`

	// Storage
	SQLitePath string `envconfig:"SQLITE_PATH" yaml:"sqlite_path" toml:"sqlite_path"`

	// Sibling microservices
	ServiceNowServiceURL string `envconfig:"SERVICENOW_SERVICE_URL" yaml:"servicenow_service_url" toml:"servicenow_service_url"`
	GLPIServiceURL       string `envconfig:"GLPI_SERVICE_URL" yaml:"glpi_service_url" toml:"glpi_service_url"`

	// Native tools
	ServiceNowInstanceURL string `envconfig:"SERVICENOW_INSTANCE_URL" yaml:"servicenow_instance_url" toml:"servicenow_instance_url"`
	ServiceNowUsername    string `envconfig:"SERVICENOW_USERNAME" yaml:"servicenow_username" toml:"servicenow_username"`
	ServiceNowPassword    string `envconfig:"SERVICENOW_PASSWORD" yaml:"servicenow_password" toml:"servicenow_password"`
	OpenWeatherAPIKey     string `envconfig:"OPENWEATHER_API_KEY" yaml:"openweather_api_key" toml:"openweather_api_key"`
	OpenWeatherBaseURL    string `envconfig:"OPENWEATHER_BASE_URL" yaml:"openweather_base_url" toml:"openweather_base_url"`
	AlphaVantageAPIKey    string `envconfig:"ALPHAVANTAGE_API_KEY" yaml:"alphavantage_api_key" toml:"alphavantage_api_key"`
	AlphaVantageBaseURL   string `envconfig:"ALPHAVANTAGE_BASE_URL" yaml:"alphavantage_base_url" toml:"alphavantage_base_url"`
	FileShareRoot         string `envconfig:"FILE_SHARE_ROOT" yaml:"file_share_root" toml:"file_share_root"`
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// OtlpInsecure reports whether the OTLP exporter skips TLS. Defaults to true.
func (c *Config) OtlpInsecure() bool {
	return c.OtelExporterOtlpInsecure == nil || *c.OtelExporterOtlpInsecure
}

// Backends maps static backend names to the configured microservice base URLs.
// Unconfigured backends are left out.
func (c *Config) Backends() map[string]string {
	backends := make(map[string]string, 2)
	if c.ServiceNowServiceURL != "" {
		backends[staticsvc.BackendServiceNow] = c.ServiceNowServiceURL
	}
	if c.GLPIServiceURL != "" {
		backends[staticsvc.BackendGLPI] = c.GLPIServiceURL
	}
	return backends
}

// Validate checks the API list for entries that can never produce tools.
func (c *Config) Validate() error {
	var errs []error
	for i, api := range c.APIs {
		if api.Name == "" {
			errs = append(errs, fmt.Errorf("apis[%d]: name is required", i))
		}
		if api.BaseURL == "" && api.OpenAPIURL == "" {
			errs = append(errs, fmt.Errorf("apis[%d] %q: base_url or openapi_url is required", i, api.Name))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) applyDefaults() {
	setString := func(p *string, v string) {
		if *p == "" {
			*p = v
		}
	}
	setDuration := func(p *time.Duration, v time.Duration) {
		if *p == 0 {
			*p = v
		}
	}
	setString(&c.ListenAddr, ":8080")
	setString(&c.AdminListenAddr, ":8081")
	setDuration(&c.HTTPClientTimeout, 30*time.Second)
	setDuration(&c.ShutdownTimeout, 5*time.Second)
	setDuration(&c.ServerReadTimeout, 5*time.Second)
	setDuration(&c.ServerWriteTimeout, 60*time.Second)
	setDuration(&c.ServerIdleTimeout, 120*time.Second)
	setString(&c.LogLevel, "info")
	setString(&c.LogFile, "/tmp/mcphub.log")
	setString(&c.SQLitePath, "data/mcphub.db")
}

// Load loads configuration first from environment variables (to get file path),
// then from the specified YAML or TOML file, and finally overrides with environment variables again.
// The file path may be a github://owner/repo/path[@ref] reference.
func Load() (*Config, error) {
	// 1. Load initial config from Env (primarily to get ConfigFilePath)
	var initialCfg Config
	if err := envconfig.Process(EnvPrefix, &initialCfg); err != nil {
		return nil, fmt.Errorf("failed to process initial environment variables: %w", err)
	}
	path := initialCfg.ConfigFilePath
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilePath
	}

	// 2. Load config from file.
	var cfg Config
	data, format, err := readConfigFile(path)
	switch {
	case err == nil:
		if err := decodeFile(path, format, data, &cfg); err != nil {
			return nil, err
		}
		slog.Info("Loaded configuration from file.", "path", path)
	case !explicit && errors.Is(err, fs.ErrNotExist):
		slog.Info("No config file found, using defaults/env vars only.", "path", path)
	default:
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	cfg.ConfigFilePath = path

	// 3. Process environment variables AGAIN to allow overrides over file settings.
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process overriding environment variables: %w", err)
	}
	cfg.ConfigFilePath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// readConfigFile returns the file content and its extension.
func readConfigFile(path string) ([]byte, string, error) {
	if github.IsGitHubURL(path) {
		loc, err := github.ParseURL(path)
		if err != nil {
			return nil, "", err
		}
		data, err := fetchGitHub(context.Background(), path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config from GitHub: %w", err)
		}
		return data, filepath.Ext(loc.Path), nil
	}
	data, err := os.ReadFile(path)
	return data, filepath.Ext(path), err
}

func decodeFile(path, format string, data []byte, cfg *Config) error {
	switch strings.ToLower(format) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to unmarshal config file '%s': %w", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to unmarshal config file '%s': %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file format '%s'", format)
	}
	return nil
}
