package injector

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/company/betterteams/internal/addon"
)

//go:embed scripts/bootstrap.js
var bootstrapTemplate string

const portPlaceholder = "__BETTERTEAMS_PORT__"

// Script is one unit of evaluation in a page.
type Script struct {
	Name   string
	Source string
}

// BootstrapScript returns the control-channel client and theme manager
// pointed at port.
func BootstrapScript(port int) Script {
	return Script{
		Name:   "bootstrap",
		Source: strings.ReplaceAll(bootstrapTemplate, portPlaceholder, strconv.Itoa(port)),
	}
}

// ThemeScript wraps a theme so the page theme manager can apply and remove
// it, then activates it.
func ThemeScript(rec addon.Record, content string) Script {
	id := jsString(rec.ID)
	var b strings.Builder
	b.WriteString("(function () {\n")
	b.WriteString("  var manager = window.BetterTeamsThemeManager;\n")
	b.WriteString("  if (!manager) { console.error('[BetterTeams] theme manager missing'); return; }\n")
	fmt.Fprintf(&b, "  manager.registerTheme(%s, function () {\n", id)
	b.WriteString("    try {\n")
	b.WriteString(content)
	b.WriteString("\n      return true;\n")
	fmt.Fprintf(&b, "    } catch (e) { console.error('[BetterTeams] theme ' + %s + ' failed', e); return false; }\n", id)
	b.WriteString("  }, function () {\n")
	fmt.Fprintf(&b, "    document.querySelectorAll('[data-betterteams-theme=\"' + %s + '\"]').forEach(function (el) { el.remove(); });\n", id)
	b.WriteString("    return true;\n")
	b.WriteString("  });\n")
	fmt.Fprintf(&b, "  manager.activateTheme(%s);\n", id)
	b.WriteString("})();\n")
	return Script{Name: "theme:" + rec.ID, Source: b.String()}
}

func jsString(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}
