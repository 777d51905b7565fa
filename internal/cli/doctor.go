package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/company/betterteams/internal/addon"
)

const doctorTimeout = 5 * time.Second

func (a *App) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues",
		Run: func(cmd *cobra.Command, args []string) {
			a.runDoctor(cmd.Context())
		},
	}
}

func (a *App) runDoctor(ctx context.Context) bool {
	allOK := true

	// 1. Config files
	if _, err := os.Stat(a.files.InjectorPath()); err == nil {
		a.output.Success("%s found", a.files.InjectorPath())
	} else {
		a.output.Error("%s missing: %v", a.files.InjectorPath(), err)
		allOK = false
	}

	// 2. Scripts layout
	for _, kind := range addon.Kinds {
		dir := a.registry.KindDir(kind)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			a.output.Success("%s/ exists with %d %s", kind.Dir(), len(a.manager.ListInstalled(kind)), kind.Dir())
		} else {
			a.output.Error("%s missing", dir)
			allOK = false
		}
	}
	if _, err := a.registry.MainScript(); err == nil {
		a.output.Success("%s found", addon.MainScriptFile)
	} else {
		a.output.Error("%s missing from %s", addon.MainScriptFile, a.registry.Root())
		allOK = false
	}

	// 3. Addon scripts parse
	for _, kind := range addon.Kinds {
		for _, rec := range a.manager.ListInstalled(kind) {
			src, err := a.registry.Script(rec)
			if err != nil {
				a.output.Error("%s %s: %v", kind, rec.ID, err)
				allOK = false
				continue
			}
			name := filepath.Join(kind.Dir(), rec.FolderName, addon.ScriptFile)
			if err := addon.LintScript(name, src); err != nil {
				a.output.Warning("%s %s has a syntax error: %v", kind, rec.ID, err)
				allOK = false
			}
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	// 4. Marketplace reachable
	if err := a.market.Ping(checkCtx); err != nil {
		a.output.Error("Marketplace unreachable at %s: %v", a.market.BaseURL(), err)
		allOK = false
	} else {
		a.output.Success("Marketplace reachable at %s", a.market.BaseURL())
	}

	// 5. Control channel
	if a.server != nil {
		a.output.Success("Control channel on %s with %d clients", a.server.Addr(), a.server.Clients())
	}

	// 6. Debugger and pages
	if a.host != nil {
		if err := a.host.WaitForDebugger(checkCtx, time.Second); err != nil {
			a.output.Error("Debugger not reachable on port %d", a.host.DebugPort)
			a.output.Info("  Use 'restart' to relaunch Teams with remote debugging")
			allOK = false
		} else {
			a.output.Success("Debugger reachable on port %d", a.host.DebugPort)
		}
	}
	if a.orchestrator != nil {
		statuses, err := a.orchestrator.Verify(checkCtx)
		if err != nil {
			a.output.Error("Listing pages failed: %v", err)
			allOK = false
		}
		for _, st := range statuses {
			switch {
			case st.Err != nil:
				a.output.Error("%s: %v", st.PageURL, st.Err)
				allOK = false
			case st.Injected:
				a.output.Success("%s is injected", st.PageURL)
			default:
				a.output.Warning("%s is not injected; run 'reinject'", st.PageURL)
				allOK = false
			}
		}
	}

	if allOK {
		a.output.Println("")
		a.output.Success("Everything looks good")
	}
	return allOK
}
