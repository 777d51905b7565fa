package controlchannel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/company/betterteams/internal/addon"
)

// Request verbs accepted from page scripts.
const (
	VerbPing                = "ping"
	VerbGetPlugins          = "get_plugins"
	VerbGetThemes           = "get_themes"
	VerbGetInstalledPlugins = "get_installed_plugins"
	VerbGetInstalledThemes  = "get_installed_themes"
	VerbInstallPlugin       = "install_plugin"
	VerbInstallTheme        = "install_theme"
	VerbUninstallPlugin     = "uninstall_plugin"
	VerbUninstallTheme      = "uninstall_theme"
	VerbActivatePlugin      = "activate_plugin"
	VerbDeactivatePlugin    = "deactivate_plugin"
	VerbActivatePluginAlt   = "activatePlugin"
	VerbDeactivatePluginAlt = "deactivatePlugin"
	VerbActivateTheme       = "activate_theme"
	VerbDeactivateTheme     = "deactivate_theme"
	VerbGetActiveTheme      = "get_active_theme"
	VerbCopyToClipboard     = "copyToClipboard"
)

// Reply and broadcast actions.
const (
	ActionError             = "error"
	ActionPong              = "pong"
	ActionAvailablePlugins  = "available_plugins"
	ActionAvailableThemes   = "available_themes"
	ActionInstalledPlugins  = "installed_plugins"
	ActionInstalledThemes   = "installed_themes"
	ActionPluginInstalled   = "plugin_installed"
	ActionThemeInstalled    = "theme_installed"
	ActionPluginUninstalled = "plugin_uninstalled"
	ActionThemeUninstalled  = "theme_uninstalled"
	ActionPluginActivated   = "plugin_activated"
	ActionPluginDeactivated = "plugin_deactivated"
	ActionThemeActivated    = "theme_activated"
	ActionThemeDeactivated  = "theme_deactivated"
	ActionActiveTheme       = "active_theme"
	ActionClipboardUpdated  = "clipboard_updated"
)

var (
	ErrMissingAction = errors.New("Missing 'action' property in message")
	ErrMissingID     = errors.New("Plugin ID is required")
)

// Message is the envelope of everything the server sends.
type Message struct {
	Action string `json:"Action"`
	Data   any    `json:"Data"`
}

// Request is one decoded client message. The concrete types below are the
// only implementations.
type Request interface {
	Verb() string
}

type PingRequest struct{}

type ListAvailableRequest struct{ Kind addon.Kind }

type ListInstalledRequest struct{ Kind addon.Kind }

type InstallRequest struct {
	Kind addon.Kind
	ID   string
}

type UninstallRequest struct {
	Kind addon.Kind
	ID   string
}

// PluginActivationRequest toggles a plugin. CamelCase marks requests sent
// with the activatePlugin/deactivatePlugin spelling, answered in kind.
type PluginActivationRequest struct {
	ID        string
	Active    bool
	CamelCase bool
}

type ActivateThemeRequest struct{ ID string }

type DeactivateThemeRequest struct{}

type ActiveThemeRequest struct{}

type ClipboardRequest struct {
	Type string
	URL  string
	Text string
}

func (PingRequest) Verb() string            { return VerbPing }
func (r ListAvailableRequest) Verb() string { return "get_" + r.Kind.Dir() }
func (r ListInstalledRequest) Verb() string { return "get_installed_" + r.Kind.Dir() }
func (r InstallRequest) Verb() string       { return "install_" + string(r.Kind) }
func (r UninstallRequest) Verb() string     { return "uninstall_" + string(r.Kind) }
func (r PluginActivationRequest) Verb() string {
	switch {
	case r.Active && r.CamelCase:
		return VerbActivatePluginAlt
	case r.Active:
		return VerbActivatePlugin
	case r.CamelCase:
		return VerbDeactivatePluginAlt
	}
	return VerbDeactivatePlugin
}
func (ActivateThemeRequest) Verb() string   { return VerbActivateTheme }
func (DeactivateThemeRequest) Verb() string { return VerbDeactivateTheme }
func (ActiveThemeRequest) Verb() string     { return VerbGetActiveTheme }
func (ClipboardRequest) Verb() string       { return VerbCopyToClipboard }

// wire is the raw client message. Fields may sit at the root or under data.
type wire struct {
	Action string          `json:"action"`
	ID     json.RawMessage `json:"id"`
	Type   string          `json:"type"`
	URL    string          `json:"url"`
	Text   string          `json:"text"`
	Data   *wireData       `json:"data"`
}

type wireData struct {
	ID   json.RawMessage `json:"id"`
	Type string          `json:"type"`
	URL  string          `json:"url"`
	Text string          `json:"text"`
}

// DecodeRequest parses a client message into its request type.
func DecodeRequest(raw []byte) (Request, error) {
	var w wire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("Invalid JSON: %v", err)
	}
	if strings.TrimSpace(w.Action) == "" {
		return nil, ErrMissingAction
	}
	if w.Data == nil {
		w.Data = &wireData{}
	}

	id := stringID(w.ID)
	if id == "" {
		id = stringID(w.Data.ID)
	}
	requireID := func() (string, error) {
		if id == "" {
			return "", ErrMissingID
		}
		return id, nil
	}

	switch w.Action {
	case VerbPing:
		return PingRequest{}, nil
	case VerbGetPlugins:
		return ListAvailableRequest{Kind: addon.Plugin}, nil
	case VerbGetThemes:
		return ListAvailableRequest{Kind: addon.Theme}, nil
	case VerbGetInstalledPlugins:
		return ListInstalledRequest{Kind: addon.Plugin}, nil
	case VerbGetInstalledThemes:
		return ListInstalledRequest{Kind: addon.Theme}, nil
	case VerbInstallPlugin, VerbInstallTheme, VerbUninstallPlugin, VerbUninstallTheme:
		id, err := requireID()
		if err != nil {
			return nil, err
		}
		kind := addon.Plugin
		if strings.HasSuffix(w.Action, "_theme") {
			kind = addon.Theme
		}
		if strings.HasPrefix(w.Action, "install_") {
			return InstallRequest{Kind: kind, ID: id}, nil
		}
		return UninstallRequest{Kind: kind, ID: id}, nil
	case VerbActivatePlugin, VerbActivatePluginAlt, VerbDeactivatePlugin, VerbDeactivatePluginAlt:
		id, err := requireID()
		if err != nil {
			return nil, err
		}
		return PluginActivationRequest{
			ID:        id,
			Active:    w.Action == VerbActivatePlugin || w.Action == VerbActivatePluginAlt,
			CamelCase: w.Action == VerbActivatePluginAlt || w.Action == VerbDeactivatePluginAlt,
		}, nil
	case VerbActivateTheme:
		// An empty id deactivates, like the console does.
		return ActivateThemeRequest{ID: id}, nil
	case VerbDeactivateTheme:
		return DeactivateThemeRequest{}, nil
	case VerbGetActiveTheme:
		return ActiveThemeRequest{}, nil
	case VerbCopyToClipboard:
		return ClipboardRequest{
			Type: firstNonEmpty(w.Type, w.Data.Type),
			URL:  firstNonEmpty(w.URL, w.Data.URL),
			Text: firstNonEmpty(w.Text, w.Data.Text),
		}, nil
	}
	return nil, fmt.Errorf("Unknown action: %s", w.Action)
}

// stringID accepts ids sent as strings or numbers.
func stringID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func errorMessage(msg string) Message {
	return Message{Action: ActionError, Data: ErrorData{Message: msg}}
}

// Payloads.

type ErrorData struct {
	Message string `json:"message"`
}

type PongData struct {
	Timestamp string `json:"timestamp"`
}

type PluginsData struct {
	Plugins []addon.Record `json:"Plugins"`
}

type ThemesData struct {
	Themes        []addon.Record `json:"Themes"`
	ActiveThemeID string         `json:"ActiveThemeId,omitempty"`
}

type ResultData struct {
	Success bool   `json:"Success"`
	ID      string `json:"Id,omitempty"`
	Name    string `json:"Name,omitempty"`
	Error   string `json:"Error,omitempty"`
}

type ThemeData struct {
	Success   bool   `json:"Success"`
	ThemeID   string `json:"ThemeId"`
	ThemeName string `json:"ThemeName"`
	Error     string `json:"Error,omitempty"`
}

type ClipboardData struct {
	Success bool   `json:"Success"`
	Message string `json:"Message"`
}
