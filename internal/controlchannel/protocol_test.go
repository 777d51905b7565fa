package controlchannel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/company/betterteams/internal/addon"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Request
	}{
		{"ping", `{"action":"ping"}`, PingRequest{}},
		{"available themes", `{"action":"get_themes"}`, ListAvailableRequest{Kind: addon.Theme}},
		{"installed plugins", `{"action":"get_installed_plugins"}`, ListInstalledRequest{Kind: addon.Plugin}},
		{"install id at root", `{"action":"install_plugin","id":"demo"}`, InstallRequest{Kind: addon.Plugin, ID: "demo"}},
		{"install id in data", `{"action":"install_theme","data":{"id":"dark"}}`, InstallRequest{Kind: addon.Theme, ID: "dark"}},
		{"uninstall", `{"action":"uninstall_theme","id":"dark"}`, UninstallRequest{Kind: addon.Theme, ID: "dark"}},
		{"activate snake", `{"action":"activate_plugin","id":"p"}`, PluginActivationRequest{ID: "p", Active: true}},
		{"deactivate camel", `{"action":"deactivatePlugin","data":{"id":"p"}}`, PluginActivationRequest{ID: "p", CamelCase: true}},
		{"numeric id", `{"action":"activatePlugin","id":42}`, PluginActivationRequest{ID: "42", Active: true, CamelCase: true}},
		{"activate theme", `{"action":"activate_theme","id":"dark"}`, ActivateThemeRequest{ID: "dark"}},
		{"deactivate theme", `{"action":"deactivate_theme"}`, DeactivateThemeRequest{}},
		{"active theme", `{"action":"get_active_theme"}`, ActiveThemeRequest{}},
		{"clipboard in data", `{"action":"copyToClipboard","data":{"type":"gif","url":"http://x/y.gif"}}`, ClipboardRequest{Type: "gif", URL: "http://x/y.gif"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRequest([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"invalid json", `{nope`, "Invalid JSON"},
		{"missing action", `{"id":"x"}`, "Missing 'action' property in message"},
		{"unknown action", `{"action":"fly"}`, "Unknown action: fly"},
		{"missing id", `{"action":"install_plugin"}`, "Plugin ID is required"},
		{"empty id", `{"action":"activatePlugin","data":{"id":"  "}}`, "Plugin ID is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRequestVerbRoundTrip(t *testing.T) {
	verbs := []string{
		VerbPing, VerbGetPlugins, VerbGetThemes, VerbGetInstalledPlugins, VerbGetInstalledThemes,
		VerbActivatePluginAlt, VerbDeactivatePlugin, VerbActivateTheme, VerbDeactivateTheme, VerbGetActiveTheme,
	}
	for _, verb := range verbs {
		req, err := DecodeRequest([]byte(`{"action":"` + verb + `","id":"x"}`))
		require.NoError(t, err, verb)
		assert.Equal(t, verb, req.Verb())
	}
}
