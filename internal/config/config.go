// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Sections map 1:1 to
// top-level keys in the YAML file and to OIL_* environment variables.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Scanner  ScannerConfig  `mapstructure:"scanner" yaml:"scanner"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	Intents  IntentConfig   `mapstructure:"intents" yaml:"intents"`
	State    StateConfig    `mapstructure:"state" yaml:"state"`
	REPL     REPLConfig     `mapstructure:"repl" yaml:"repl"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ViewportConfig is the initial browser viewport.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath          string         `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent         string         `mapstructure:"user_agent" yaml:"user_agent"`
	DisableCache      bool           `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors   bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// ScannerConfig tunes the in-page scanner bridge. The retry knobs govern
// recovery when the page's execution context is torn down mid-evaluate
// (navigation, frame swap); the eval timeout doubles as the detector for
// pages blocked on a modal dialog.
type ScannerConfig struct {
	EvalTimeout       time.Duration `mapstructure:"eval_timeout" yaml:"eval_timeout"`
	ContextRetries    int           `mapstructure:"context_retries" yaml:"context_retries"`
	ContextRetryDelay time.Duration `mapstructure:"context_retry_delay" yaml:"context_retry_delay"`
}

// ResolverConfig pins the semantic policy table.
type ResolverConfig struct {
	PolicyVersion int `mapstructure:"policy_version" yaml:"policy_version"`
}

// ExecutorConfig tunes command orchestration.
type ExecutorConfig struct {
	WaitTimeout  time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	WaitInterval time.Duration `mapstructure:"wait_interval" yaml:"wait_interval"`
}

// HistoryConfig configures the optional command-history store. An empty
// DSN disables history entirely.
type HistoryConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// ProxyConfig defines the opt-in capture proxy.
type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
	CACert  string `mapstructure:"ca_cert" yaml:"ca_cert"`
	CAKey   string `mapstructure:"ca_key" yaml:"ca_key"`
}

// NetworkConfig tunes request capture and the outbound HTTP client.
type NetworkConfig struct {
	Timeout        time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	CaptureBuffer  int               `mapstructure:"capture_buffer" yaml:"capture_buffer"`
	CaptureBodies  bool              `mapstructure:"capture_bodies" yaml:"capture_bodies"`
	Headers        map[string]string `mapstructure:"headers" yaml:"headers"`
	Proxy          ProxyConfig       `mapstructure:"proxy" yaml:"proxy"`
	ProxyRateLimit float64           `mapstructure:"proxy_rate_limit" yaml:"proxy_rate_limit"`
}

// IntentConfig locates intent packs on disk.
type IntentConfig struct {
	PacksDir string `mapstructure:"packs_dir" yaml:"packs_dir"`
}

// StateConfig governs saved session state.
type StateConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir"`
	SigningKey string `mapstructure:"signing_key" yaml:"-"`
}

// REPLConfig tunes the interactive loop.
type REPLConfig struct {
	Prompt      string `mapstructure:"prompt" yaml:"prompt"`
	HistoryFile string `mapstructure:"history_file" yaml:"history_file"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "warn")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "oil")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", false)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 800)
	v.SetDefault("browser.navigation_timeout", "30s")

	// -- Scanner --
	v.SetDefault("scanner.eval_timeout", "10s")
	v.SetDefault("scanner.context_retries", 10)
	v.SetDefault("scanner.context_retry_delay", "100ms")

	// -- Resolver --
	v.SetDefault("resolver.policy_version", 1)

	// -- Executor --
	v.SetDefault("executor.wait_timeout", "10s")
	v.SetDefault("executor.wait_interval", "100ms")

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.capture_buffer", 500)
	v.SetDefault("network.capture_bodies", false)
	v.SetDefault("network.proxy.enabled", false)
	v.SetDefault("network.proxy_rate_limit", 100.0)

	// -- REPL --
	v.SetDefault("repl.prompt", "oil> ")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("history.dsn", "OIL_HISTORY_DSN")
	v.BindEnv("state.signing_key", "OIL_STATE_SIGNING_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Pick up the signing key even when the env var was set after binding.
	if cfg.State.SigningKey == "" {
		cfg.State.SigningKey = os.Getenv("OIL_STATE_SIGNING_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Browser.Viewport.Width <= 0 || c.Browser.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport dimensions must be positive integers")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if err := c.Scanner.Validate(); err != nil {
		return fmt.Errorf("scanner configuration invalid: %w", err)
	}
	if err := c.Executor.Validate(); err != nil {
		return fmt.Errorf("executor configuration invalid: %w", err)
	}
	if c.Network.CaptureBuffer <= 0 {
		return fmt.Errorf("network.capture_buffer must be a positive integer")
	}
	if c.Network.Proxy.Enabled && c.Network.Proxy.Address == "" {
		return fmt.Errorf("network.proxy.address is required when the capture proxy is enabled")
	}
	return nil
}

// Validate checks the scanner bridge settings.
func (s *ScannerConfig) Validate() error {
	if s.EvalTimeout <= 0 {
		return fmt.Errorf("eval_timeout must be a positive duration")
	}
	if s.ContextRetries < 0 {
		return fmt.Errorf("context_retries must not be negative")
	}
	if s.ContextRetries > 0 && s.ContextRetryDelay <= 0 {
		return fmt.Errorf("context_retry_delay must be a positive duration when retries are enabled")
	}
	return nil
}

// Validate checks the executor settings.
func (e *ExecutorConfig) Validate() error {
	if e.WaitTimeout <= 0 {
		return fmt.Errorf("wait_timeout must be a positive duration")
	}
	if e.WaitInterval <= 0 {
		return fmt.Errorf("wait_interval must be a positive duration")
	}
	if e.WaitInterval > e.WaitTimeout {
		return fmt.Errorf("wait_interval must not exceed wait_timeout")
	}
	return nil
}
