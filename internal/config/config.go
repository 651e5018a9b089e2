package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Oracle providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Notify providers.
const (
	NotifyResend = "resend"
	NotifyLog    = "log"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Database        DatabaseConfig        `yaml:"database"`
	Oracle          OracleConfig          `yaml:"oracle"`
	Auth            AuthConfig            `yaml:"auth"`
	Agent           AgentConfig           `yaml:"agent"`
	Worker          WorkerConfig          `yaml:"worker"`
	Notify          NotifyConfig          `yaml:"notify"`
	SnapshotStorage SnapshotStorageConfig `yaml:"snapshot_storage"`
	Log             LogConfig             `yaml:"log"`
	CORS            CORSConfig            `yaml:"cors"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// OracleConfig contains language-model settings.
type OracleConfig struct {
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model"`
	APIKey       string  `yaml:"-"` // env-only, never in YAML
	Temperature  float32 `yaml:"temperature"`
	SystemPrompt string  `yaml:"system_prompt"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// AgentConfig bounds what the observer reads and how long a run may take.
type AgentConfig struct {
	ReminderLimit int      `yaml:"reminder_limit"`
	MemoryLimit   int      `yaml:"memory_limit"`
	RunTimeout    Duration `yaml:"run_timeout"`
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	DailyInterval    Duration `yaml:"daily_interval"`
	DailyConcurrency int      `yaml:"daily_concurrency"`
	SnapshotInterval Duration `yaml:"snapshot_interval"`
}

// NotifyConfig contains digest delivery settings.
type NotifyConfig struct {
	Provider     string `yaml:"provider"`
	APIKey       string `yaml:"-"` // env-only, never in YAML
	FromAddress  string `yaml:"from_address"`
	DashboardURL string `yaml:"dashboard_url"`
}

// SnapshotStorageConfig contains S3-compatible snapshot storage settings.
// An empty bucket disables uploads.
type SnapshotStorageConfig struct {
	Endpoint  string   `yaml:"endpoint"`
	Bucket    string   `yaml:"bucket"`
	Region    string   `yaml:"region"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
	UseSSL    *bool    `yaml:"use_ssl"`
	URLExpiry Duration `yaml:"url_expiry"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// envOverrides holds ORBIT_-prefixed environment variables.
// Unset variables leave their pointer nil so they never clobber YAML values.
type envOverrides struct {
	Port            *int           `envconfig:"PORT"`
	ReadTimeout     *time.Duration `envconfig:"READ_TIMEOUT"`
	WriteTimeout    *time.Duration `envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout *time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`

	DBPath *string `envconfig:"DB_PATH"`

	OracleProvider *string `envconfig:"ORACLE_PROVIDER"`
	OracleModel    *string `envconfig:"ORACLE_MODEL"`

	APIKey *string `envconfig:"API_KEY"`

	ReminderLimit *int           `envconfig:"REMINDER_LIMIT"`
	MemoryLimit   *int           `envconfig:"MEMORY_LIMIT"`
	RunTimeout    *time.Duration `envconfig:"RUN_TIMEOUT"`

	DailyInterval    *time.Duration `envconfig:"DAILY_INTERVAL"`
	DailyConcurrency *int           `envconfig:"DAILY_CONCURRENCY"`
	SnapshotInterval *time.Duration `envconfig:"SNAPSHOT_INTERVAL"`

	NotifyProvider *string `envconfig:"NOTIFY_PROVIDER"`
	NotifyFrom     *string `envconfig:"NOTIFY_FROM"`
	DashboardURL   *string `envconfig:"DASHBOARD_URL"`

	SnapshotBucket *string        `envconfig:"SNAPSHOT_BUCKET"`
	S3Endpoint     *string        `envconfig:"S3_ENDPOINT"`
	S3Region       *string        `envconfig:"S3_REGION"`
	S3AccessKey    *string        `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    *string        `envconfig:"S3_SECRET_KEY"`
	S3UseSSL       *bool          `envconfig:"S3_USE_SSL"`
	S3URLExpiry    *time.Duration `envconfig:"S3_URL_EXPIRY"`

	LogLevel  *string `envconfig:"LOG_LEVEL"`
	LogFormat *string `envconfig:"LOG_FORMAT"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS"`

	DevMode bool `envconfig:"DEV_MODE"`
}

// providerKeys holds the unprefixed, industry-convention API key variables.
type providerKeys struct {
	Gemini *string `envconfig:"GEMINI_API_KEY"`
	OpenAI *string `envconfig:"OPENAI_API_KEY"`
	Resend *string `envconfig:"RESEND_API_KEY"`
}

const envPrefix = "ORBIT"

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	// Determine config path
	configPath := getEnv("ORBIT_CONFIG_PATH", "config/orbit.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	return finish(cfg)
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	// Load YAML file (file must exist for this function)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	devMode, err := applyEnvOverrides(cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(devMode); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(90 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/orbit.db",
		},
		Oracle: OracleConfig{
			Provider:    ProviderGemini,
			Model:       "gemini-2.5-flash",
			Temperature: 0.2,
		},
		Agent: AgentConfig{
			ReminderLimit: 5,
			MemoryLimit:   5,
			RunTimeout:    Duration(60 * time.Second),
		},
		Worker: WorkerConfig{
			DailyInterval:    Duration(24 * time.Hour),
			DailyConcurrency: 4,
			SnapshotInterval: Duration(1 * time.Hour),
		},
		Notify: NotifyConfig{
			Provider:     NotifyResend,
			FromAddress:  "Orbit <onboarding@resend.dev>",
			DashboardURL: "http://localhost:3000/dashboard",
		},
		SnapshotStorage: SnapshotStorageConfig{
			Region:    "us-east-1",
			URLExpiry: Duration(15 * time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing file is OK; use defaults
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
// and reports whether dev mode is on.
func applyEnvOverrides(cfg *Config) (bool, error) {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return false, fmt.Errorf("parsing environment: %w", err)
	}
	var keys providerKeys
	if err := envconfig.Process("", &keys); err != nil {
		return false, fmt.Errorf("parsing environment: %w", err)
	}

	// Server
	setInt(&cfg.Server.Port, env.Port)
	setDuration(&cfg.Server.ReadTimeout, env.ReadTimeout)
	setDuration(&cfg.Server.WriteTimeout, env.WriteTimeout)
	setDuration(&cfg.Server.ShutdownTimeout, env.ShutdownTimeout)

	// Database
	setString(&cfg.Database.Path, env.DBPath)

	// Oracle: the key follows the selected provider
	setString(&cfg.Oracle.Provider, env.OracleProvider)
	setString(&cfg.Oracle.Model, env.OracleModel)
	switch cfg.Oracle.Provider {
	case ProviderOpenAI:
		setString(&cfg.Oracle.APIKey, keys.OpenAI)
	default:
		setString(&cfg.Oracle.APIKey, keys.Gemini)
	}

	// Auth
	setString(&cfg.Auth.APIKey, env.APIKey)

	// Agent
	setInt(&cfg.Agent.ReminderLimit, env.ReminderLimit)
	setInt(&cfg.Agent.MemoryLimit, env.MemoryLimit)
	setDuration(&cfg.Agent.RunTimeout, env.RunTimeout)

	// Worker
	setDuration(&cfg.Worker.DailyInterval, env.DailyInterval)
	setInt(&cfg.Worker.DailyConcurrency, env.DailyConcurrency)
	setDuration(&cfg.Worker.SnapshotInterval, env.SnapshotInterval)

	// Notify
	setString(&cfg.Notify.Provider, env.NotifyProvider)
	setString(&cfg.Notify.FromAddress, env.NotifyFrom)
	setString(&cfg.Notify.DashboardURL, env.DashboardURL)
	setString(&cfg.Notify.APIKey, keys.Resend)

	// Snapshot storage
	setString(&cfg.SnapshotStorage.Bucket, env.SnapshotBucket)
	setString(&cfg.SnapshotStorage.Endpoint, env.S3Endpoint)
	setString(&cfg.SnapshotStorage.Region, env.S3Region)
	setString(&cfg.SnapshotStorage.AccessKey, env.S3AccessKey)
	setString(&cfg.SnapshotStorage.SecretKey, env.S3SecretKey)
	if env.S3UseSSL != nil {
		cfg.SnapshotStorage.UseSSL = env.S3UseSSL
	}
	setDuration(&cfg.SnapshotStorage.URLExpiry, env.S3URLExpiry)

	// Log
	setString(&cfg.Log.Level, env.LogLevel)
	setString(&cfg.Log.Format, env.LogFormat)

	// CORS
	if len(env.CORSOrigins) > 0 {
		cfg.CORS.AllowedOrigins = env.CORSOrigins
	}

	return env.DevMode, nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *Duration, v *time.Duration) {
	if v != nil {
		*dst = Duration(*v)
	}
}

// validate checks that required configuration values are set.
// In dev mode (ORBIT_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate(devMode bool) error {
	switch c.Oracle.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown oracle provider %q", c.Oracle.Provider)
	}
	switch c.Notify.Provider {
	case NotifyResend, NotifyLog:
	default:
		return fmt.Errorf("unknown notify provider %q", c.Notify.Provider)
	}
	if c.Agent.ReminderLimit < 1 || c.Agent.MemoryLimit < 1 {
		return errors.New("agent reminder_limit and memory_limit must be positive")
	}
	if c.Worker.DailyConcurrency < 1 {
		return errors.New("worker daily_concurrency must be positive")
	}
	if c.Worker.DailyInterval <= 0 || c.Worker.SnapshotInterval <= 0 {
		return errors.New("worker daily_interval and snapshot_interval must be positive")
	}

	// Dev mode bypasses API key validation
	if devMode {
		return nil
	}

	if c.Oracle.APIKey == "" {
		if c.Oracle.Provider == ProviderOpenAI {
			return errors.New("OPENAI_API_KEY is required")
		}
		return errors.New("GEMINI_API_KEY is required")
	}
	if c.Auth.APIKey == "" {
		return errors.New("ORBIT_API_KEY is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
