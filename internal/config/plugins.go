package config

import (
	"errors"
	"fmt"
	"os"
)

// PluginConfig persists the plugin deny-list. Plugins not listed are active.
type PluginConfig struct {
	DeactivatedPluginIDs []string `json:"DeactivatedPluginIds" yaml:"deactivated_plugin_ids"`
}

// LoadPluginConfig reads the plugin config at path. A missing file means an
// empty deny-list.
func LoadPluginConfig(path string) (*PluginConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &PluginConfig{DeactivatedPluginIDs: []string{}}, nil
		}
		return nil, fmt.Errorf("reading plugin config: %w", err)
	}

	var c PluginConfig
	if err := unmarshal(path, data, &c); err != nil {
		return nil, fmt.Errorf("parsing plugin config: %w", err)
	}
	if c.DeactivatedPluginIDs == nil {
		c.DeactivatedPluginIDs = []string{}
	}
	return &c, nil
}

// SavePluginConfig writes c to path through a temp file and rename.
func SavePluginConfig(path string, c *PluginConfig) error {
	if c.DeactivatedPluginIDs == nil {
		c.DeactivatedPluginIDs = []string{}
	}
	content, err := marshal(path, c)
	if err != nil {
		return fmt.Errorf("marshaling plugin config: %w", err)
	}
	return atomicWrite(path, content)
}
