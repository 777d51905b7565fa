package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Files locates the two config files and persists them. It is what the
// lifecycle manager saves through.
type Files struct {
	Dir string
}

// DefaultDir returns the per-user config directory, e.g.
// %LOCALAPPDATA%\BetterMsTeams on Windows.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(base, AppDirName), nil
}

// OpenFiles makes sure dir exists. Failure here is fatal for the process.
func OpenFiles(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return &Files{Dir: dir}, nil
}

// InjectorPath is BetterMsTeamsConfig.yaml or .yml when either exists in
// Dir, else the JSON file.
func (f *Files) InjectorPath() string {
	return f.locate(InjectorConfigFile)
}

func (f *Files) PluginPath() string {
	return f.locate(PluginConfigFile)
}

func (f *Files) locate(jsonName string) string {
	stem := strings.TrimSuffix(jsonName, filepath.Ext(jsonName))
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(f.Dir, stem+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(f.Dir, jsonName)
}

func (f *Files) LoadInjector() (*InjectorConfig, error) {
	return LoadInjectorConfig(f.InjectorPath())
}

func (f *Files) LoadPlugins() (*PluginConfig, error) {
	return LoadPluginConfig(f.PluginPath())
}

func (f *Files) SaveInjector(c *InjectorConfig) error {
	return SaveInjectorConfig(f.InjectorPath(), c)
}

func (f *Files) SavePlugins(c *PluginConfig) error {
	return SavePluginConfig(f.PluginPath(), c)
}
