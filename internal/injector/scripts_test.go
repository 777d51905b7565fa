package injector

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/company/betterteams/internal/addon"
)

// pageStubs stands in for the browser globals the bootstrap touches. The
// socket never connects, and querySelectorAll counts theme removals.
const pageStubs = `
var window = this;
var console = { log: function () {}, warn: function () {}, error: function () {} };
var setTimeout = function () {};
var WebSocket = function () { throw new Error('offline'); };
var document = {
  body: null,
  getElementById: function () { return null; },
  querySelectorAll: function () { window.removed = (window.removed || 0) + 1; return []; }
};
`

func newPageVM(t *testing.T) *goja.Runtime {
	t.Helper()
	vm := goja.New()
	_, err := vm.RunString(pageStubs)
	require.NoError(t, err)
	_, err = vm.RunString(BootstrapScript(8097).Source)
	require.NoError(t, err)
	return vm
}

func evalInt(t *testing.T, vm *goja.Runtime, expr string) int64 {
	t.Helper()
	v, err := vm.RunString(expr)
	require.NoError(t, err)
	return v.ToInteger()
}

func evalString(t *testing.T, vm *goja.Runtime, expr string) string {
	t.Helper()
	v, err := vm.RunString(expr)
	require.NoError(t, err)
	return v.String()
}

func themeContent(version string) string {
	return "window.content = '" + version + "'; window.applied = (window.applied || 0) + 1;"
}

func TestThemeScriptActivates(t *testing.T) {
	vm := newPageVM(t)
	rec := addon.Record{ID: "dark", Kind: addon.Theme}

	_, err := vm.RunString(ThemeScript(rec, themeContent("v1")).Source)
	require.NoError(t, err)

	assert.Equal(t, "dark", evalString(t, vm, "window.BetterTeamsThemeManager.active"))
	assert.Equal(t, "v1", evalString(t, vm, "window.content"))
	assert.EqualValues(t, 1, evalInt(t, vm, "window.applied"))

	// Activating the same registration again is a no-op.
	_, err = vm.RunString("window.BetterTeamsThemeManager.activateTheme('dark')")
	require.NoError(t, err)
	assert.EqualValues(t, 1, evalInt(t, vm, "window.applied"))
	assert.EqualValues(t, 0, evalInt(t, vm, "window.removed || 0"))
}

func TestReinjectedThemeReplacesActiveOne(t *testing.T) {
	vm := newPageVM(t)
	rec := addon.Record{ID: "dark", Kind: addon.Theme}

	_, err := vm.RunString(ThemeScript(rec, themeContent("v1")).Source)
	require.NoError(t, err)
	_, err = vm.RunString(ThemeScript(rec, themeContent("v2")).Source)
	require.NoError(t, err)

	assert.Equal(t, "v2", evalString(t, vm, "window.content"), "new theme content must be applied")
	assert.EqualValues(t, 2, evalInt(t, vm, "window.applied"))
	assert.EqualValues(t, 1, evalInt(t, vm, "window.removed"), "old theme must be removed first")
	assert.Equal(t, "dark", evalString(t, vm, "window.BetterTeamsThemeManager.active"))
	assert.Equal(t, "null", evalString(t, vm, "String(window.BetterTeamsThemeManager.replaced)"))

	_, err = vm.RunString("window.BetterTeamsThemeManager.deactivateTheme()")
	require.NoError(t, err)
	assert.EqualValues(t, 2, evalInt(t, vm, "window.removed"))
	assert.Equal(t, "null", evalString(t, vm, "String(window.BetterTeamsThemeManager.active)"))
}

func TestSwitchingThemesRemovesPrevious(t *testing.T) {
	vm := newPageVM(t)

	_, err := vm.RunString(ThemeScript(addon.Record{ID: "dark"}, themeContent("dark")).Source)
	require.NoError(t, err)
	_, err = vm.RunString(ThemeScript(addon.Record{ID: "light"}, themeContent("light")).Source)
	require.NoError(t, err)

	assert.Equal(t, "light", evalString(t, vm, "window.BetterTeamsThemeManager.active"))
	assert.Equal(t, "light", evalString(t, vm, "window.content"))
	assert.EqualValues(t, 1, evalInt(t, vm, "window.removed"))
}
