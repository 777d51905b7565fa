package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// InjectorConfig is the persisted host configuration. It is loaded once at
// startup and saved after every mutation.
type InjectorConfig struct {
	TeamsExePath        string `json:"TeamsExePath" yaml:"teams_exe_path"`
	RemoteDebuggingPort int    `json:"RemoteDebuggingPort" yaml:"remote_debugging_port"`
	EnableLogging       bool   `json:"EnableLogging" yaml:"enable_logging"`
	InitialDelayMs      int    `json:"InitialDelayMs" yaml:"initial_delay_ms"`
	ReInjectDelayMs     int    `json:"ReInjectDelayMs" yaml:"reinject_delay_ms"`
	ScriptsDirectory    string `json:"ScriptsDirectory" yaml:"scripts_directory"`
	WebSocketPort       int    `json:"WebSocketPort" yaml:"websocket_port"`
	MarketplaceAPIURL   string `json:"MarketplaceApiUrl" yaml:"marketplace_api_url"`
	AutoCheckUpdates    bool   `json:"AutoCheckUpdates" yaml:"auto_check_updates"`
	ActiveThemeID       string `json:"ActiveThemeId" yaml:"active_theme_id"`
	FirstTime           bool   `json:"FirstTime" yaml:"first_time"`

	DownloadAttempts  int    `json:"DownloadAttempts,omitempty" yaml:"download_attempts,omitempty"`
	DownloadBackoffMs int    `json:"DownloadBackoffMs,omitempty" yaml:"download_backoff_ms,omitempty"`
	PagePollMs        int    `json:"PagePollMs,omitempty" yaml:"page_poll_ms,omitempty"`
	WatchScripts      *bool  `json:"WatchScripts,omitempty" yaml:"watch_scripts,omitempty"`
	LogLevel          string `json:"LogLevel,omitempty" yaml:"log_level,omitempty"`
	LogFormat         string `json:"LogFormat,omitempty" yaml:"log_format,omitempty"`
	LogFile           string `json:"LogFile,omitempty" yaml:"log_file,omitempty"`
}

// DefaultInjectorConfig returns the configuration written on first run.
func DefaultInjectorConfig() *InjectorConfig {
	c := &InjectorConfig{
		EnableLogging:    true,
		AutoCheckUpdates: true,
		FirstTime:        true,
	}
	applyDefaults(c)
	return c
}

// Watching reports whether the scripts directory should be watched for
// out-of-band addon changes. Unset means yes.
func (c *InjectorConfig) Watching() bool {
	return c.WatchScripts == nil || *c.WatchScripts
}

// LoadInjectorConfig reads the injector config at path. A missing file yields
// the defaults, which are written back so the user has something to edit.
func LoadInjectorConfig(path string) (*InjectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c := DefaultInjectorConfig()
			if err := SaveInjectorConfig(path, c); err != nil {
				return nil, err
			}
			return c, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var c InjectorConfig
	if err := unmarshal(path, data, &c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&c)

	if err := ValidateInjectorConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// SaveInjectorConfig writes c to path through a temp file and rename.
func SaveInjectorConfig(path string, c *InjectorConfig) error {
	applyDefaults(c)

	content, err := marshal(path, c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return atomicWrite(path, content)
}

// ValidateInjectorConfig checks ranges that would otherwise fail much later.
func ValidateInjectorConfig(c *InjectorConfig) error {
	if err := validatePort("remote debugging port", c.RemoteDebuggingPort); err != nil {
		return err
	}
	if err := validatePort("websocket port", c.WebSocketPort); err != nil {
		return err
	}
	if c.RemoteDebuggingPort == c.WebSocketPort {
		return fmt.Errorf("remote debugging port and websocket port must differ (both %d)", c.WebSocketPort)
	}
	if !strings.HasPrefix(c.MarketplaceAPIURL, "http://") && !strings.HasPrefix(c.MarketplaceAPIURL, "https://") {
		return fmt.Errorf("invalid marketplace url: %q", c.MarketplaceAPIURL)
	}
	if c.InitialDelayMs < 0 || c.ReInjectDelayMs < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}

func validatePort(label string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid %s: %d", label, port)
	}
	return nil
}

func applyDefaults(c *InjectorConfig) {
	if c.RemoteDebuggingPort == 0 {
		c.RemoteDebuggingPort = DefaultDebuggingPort
	}
	if c.WebSocketPort == 0 {
		c.WebSocketPort = DefaultControlPort
	}
	if c.ScriptsDirectory == "" {
		c.ScriptsDirectory = DefaultScriptsDir
	}
	if c.MarketplaceAPIURL == "" {
		c.MarketplaceAPIURL = DefaultMarketplaceURL
	}
	c.MarketplaceAPIURL = strings.TrimRight(c.MarketplaceAPIURL, "/")
	if c.InitialDelayMs == 0 {
		c.InitialDelayMs = DefaultInitialDelayMs
	}
	if c.ReInjectDelayMs == 0 {
		c.ReInjectDelayMs = DefaultReInjectDelayMs
	}
	if c.DownloadAttempts < 1 {
		c.DownloadAttempts = DefaultDownloadAttempts
	}
	if c.DownloadBackoffMs <= 0 {
		c.DownloadBackoffMs = DefaultDownloadBackoffMs
	}
	if c.PagePollMs <= 0 {
		c.PagePollMs = DefaultPagePollMs
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// ResolveScriptsDir returns the absolute scripts root. A relative
// ScriptsDirectory is taken relative to base, normally the executable's
// directory.
func (c *InjectorConfig) ResolveScriptsDir(base string) string {
	if filepath.IsAbs(c.ScriptsDirectory) {
		return c.ScriptsDirectory
	}
	return filepath.Join(base, c.ScriptsDirectory)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

func unmarshal(path string, data []byte, v any) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

func marshal(path string, v any) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(v)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func atomicWrite(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, content, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("saving config: %w", err)
	}

	return nil
}
