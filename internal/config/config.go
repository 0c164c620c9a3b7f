// Package config provides configuration types, defaults and persistence for
// mqttdesk.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/zjrosen/mqttdesk/internal/log"
	"github.com/zjrosen/mqttdesk/internal/mqtt"
	"github.com/zjrosen/mqttdesk/internal/store"
	"github.com/zjrosen/mqttdesk/internal/tracing"
)

// Theme values.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
	// ThemeAuto follows the terminal background.
	ThemeAuto = ""
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration options for mqttdesk.
type Config struct {
	Theme   string         `mapstructure:"theme"`
	Store   StoreConfig    `mapstructure:"store"`
	MQTT    MQTTConfig     `mapstructure:"mqtt"`
	UI      UIConfig       `mapstructure:"ui"`
	Log     LogConfig      `mapstructure:"log"`
	Tracing tracing.Config `mapstructure:"tracing"`
}

// StoreConfig selects the embedded store.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "sqlite" (default) or "bolt"
	Path    string `mapstructure:"path"`    // empty means DefaultStorePath()
}

// MQTTConfig tunes every session.
type MQTTConfig struct {
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// UIConfig holds user interface options.
type UIConfig struct {
	DoubleClickWindow time.Duration `mapstructure:"double_click_window"`
	ShowLog           bool          `mapstructure:"show_log"`
}

// LogConfig holds file logging options.
type LogConfig struct {
	Path  string `mapstructure:"path"`  // empty disables logging unless --debug
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// DefaultDir returns ~/.config/mqttdesk, or .mqttdesk when the home
// directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mqttdesk"
	}
	return filepath.Join(home, ".config", "mqttdesk")
}

// DefaultStorePath returns the store file inside DefaultDir.
func DefaultStorePath() string {
	return filepath.Join(DefaultDir(), "mqttdesk.db")
}

// DefaultTracesFilePath returns the trace file inside DefaultDir.
func DefaultTracesFilePath() string {
	return filepath.Join(DefaultDir(), "traces", "traces.jsonl")
}

// DefaultLogPath returns the debug log file inside DefaultDir.
func DefaultLogPath() string {
	return filepath.Join(DefaultDir(), "debug.log")
}

// Defaults returns a Config with default values.
func Defaults() Config {
	opts := mqtt.DefaultOptions()
	tr := tracing.DefaultConfig()
	tr.FilePath = DefaultTracesFilePath()
	return Config{
		Theme: ThemeDark,
		Store: StoreConfig{Backend: store.BackendSQLite},
		MQTT: MQTTConfig{
			KeepAlive:      opts.KeepAlive,
			RequestTimeout: opts.RequestTimeout,
			ConnectTimeout: opts.ConnectTimeout,
		},
		UI: UIConfig{
			DoubleClickWindow: 280 * time.Millisecond,
		},
		Log:     LogConfig{Level: "info"},
		Tracing: tr,
	}
}

// SetDefaults registers Defaults with v so missing keys fall back to them.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("theme", d.Theme)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("mqtt.keep_alive", d.MQTT.KeepAlive)
	v.SetDefault("mqtt.request_timeout", d.MQTT.RequestTimeout)
	v.SetDefault("mqtt.connect_timeout", d.MQTT.ConnectTimeout)
	v.SetDefault("ui.double_click_window", d.UI.DoubleClickWindow)
	v.SetDefault("ui.show_log", d.UI.ShowLog)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Load unmarshals v and validates the result.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	log.Debug(log.CatConfig, "config loaded", "file", v.ConfigFileUsed(), "store", cfg.Store.Backend)
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	return errors.Join(
		ValidateTheme(c.Theme),
		ValidateStore(c.Store),
		ValidateMQTT(c.MQTT),
		ValidateUI(c.UI),
		ValidateTracing(c.Tracing),
	)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// ValidateTheme accepts "dark", "light" and empty.
func ValidateTheme(theme string) error {
	switch theme {
	case ThemeDark, ThemeLight, ThemeAuto:
		return nil
	default:
		return invalid("theme must be %q or %q, got %q", ThemeDark, ThemeLight, theme)
	}
}

// ValidateStore checks the backend name.
func ValidateStore(s StoreConfig) error {
	switch s.Backend {
	case "", store.BackendSQLite, store.BackendBolt:
		return nil
	default:
		return invalid("store.backend must be %q or %q, got %q", store.BackendSQLite, store.BackendBolt, s.Backend)
	}
}

// ValidateMQTT rejects negative durations and keep-alives that do not fit
// the 16-bit field of CONNECT.
func ValidateMQTT(m MQTTConfig) error {
	switch {
	case m.KeepAlive < 0 || m.RequestTimeout < 0 || m.ConnectTimeout < 0:
		return invalid("mqtt durations must not be negative")
	case m.KeepAlive > 65535*time.Second:
		return invalid("mqtt.keep_alive must be at most 65535s, got %s", m.KeepAlive)
	}
	return nil
}

// ValidateUI checks the double-click window.
func ValidateUI(u UIConfig) error {
	if u.DoubleClickWindow < 0 || u.DoubleClickWindow > 2*time.Second {
		return invalid("ui.double_click_window must be between 0 and 2s, got %s", u.DoubleClickWindow)
	}
	return nil
}

// ValidateTracing checks the exporter and sample rate. Disabled tracing
// is always valid.
func ValidateTracing(t tracing.Config) error {
	if !t.Enabled {
		return nil
	}
	switch t.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return invalid("tracing.exporter %q is not one of none, file, stdout, otlp", t.Exporter)
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		return invalid("tracing.sample_rate must be between 0 and 1, got %v", t.SampleRate)
	}
	return nil
}

// StorePath returns the configured store path or the default.
func (c Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return DefaultStorePath()
}

// MQTTOptions converts the mqtt section to session options.
func (c Config) MQTTOptions() mqtt.Options {
	opts := mqtt.DefaultOptions()
	if c.MQTT.KeepAlive > 0 {
		opts.KeepAlive = c.MQTT.KeepAlive
	}
	if c.MQTT.RequestTimeout > 0 {
		opts.RequestTimeout = c.MQTT.RequestTimeout
	}
	if c.MQTT.ConnectTimeout > 0 {
		opts.ConnectTimeout = c.MQTT.ConnectTimeout
	}
	return opts
}

// DefaultConfigTemplate returns the default config file with comments.
func DefaultConfigTemplate() string {
	return `# mqttdesk configuration

# Colour theme: dark, light, or "" to follow the terminal background
theme: dark

store:
  # sqlite (default) or bolt
  backend: sqlite
  # Empty uses ~/.config/mqttdesk/mqttdesk.db
  path: ""

mqtt:
  keep_alive: 20s
  request_timeout: 10s
  connect_timeout: 10s

ui:
  # Two clicks on the same broker within this window open its tab
  double_click_window: 280ms
  show_log: false

log:
  # Empty disables logging unless --debug is given
  path: ""
  level: info

tracing:
  enabled: false
  # none, file, stdout or otlp
  exporter: file
  file_path: ""
  otlp_endpoint: localhost:4317
  sample_rate: 1.0
`
}

// WriteDefaultConfig writes DefaultConfigTemplate to path, creating the
// parent directory.
func WriteDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
