package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/company/betterteams/internal/addon"
)

func (a *App) newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List installed plugins",
		Run: func(cmd *cobra.Command, args []string) {
			a.runListInstalled(addon.Plugin)
		},
	}
}

func (a *App) newInstallCmd(kind addon.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "install_" + string(kind) + " <id>",
		Short: fmt.Sprintf("Download and install a %s from the marketplace", kind),
		Args:  requireID(kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInstall(cmd.Context(), kind, args[0])
		},
	}
}

func (a *App) newUninstallCmd(kind addon.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall_" + string(kind) + " <id>",
		Short: fmt.Sprintf("Remove an installed %s", kind),
		Args:  requireID(kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUninstall(cmd.Context(), kind, args[0])
		},
	}
}

func (a *App) newActivatePluginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate_plugin <id>",
		Short: "Enable an installed plugin",
		Args:  requireID(addon.Plugin),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := a.manager.ActivatePlugin(cmd.Context(), id); err != nil {
				return fmt.Errorf("activating plugin %s: %w", id, err)
			}
			a.output.Success("Plugin %s activated", id)
			return nil
		},
	}
}

func (a *App) newDeactivatePluginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate_plugin <id>",
		Short: "Disable an installed plugin without removing it",
		Args:  requireID(addon.Plugin),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := a.manager.DeactivatePlugin(cmd.Context(), id); err != nil {
				return fmt.Errorf("deactivating plugin %s: %w", id, err)
			}
			a.output.Success("Plugin %s deactivated", id)
			return nil
		},
	}
}

func (a *App) runListInstalled(kind addon.Kind) {
	records := a.manager.ListInstalled(kind)
	if len(records) == 0 {
		a.output.Info("No %s installed", kind.Dir())
		return
	}

	headers := []string{"ID", "Name", "Version", "Author", "Status"}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		status := "inactive"
		if r.IsActive {
			status = "active"
		}
		rows = append(rows, []string{r.ID, r.Name, r.Version, r.Author, status})
	}
	a.output.Table(headers, rows)
}

func (a *App) runInstall(ctx context.Context, kind addon.Kind, id string) error {
	err := a.spin(ctx, fmt.Sprintf("Installing %s %s...", kind, id), func() error {
		return a.manager.Install(ctx, kind, id)
	})
	if err != nil {
		return fmt.Errorf("installing %s %s: %w", kind, id, err)
	}
	a.output.Success("%s %s installed", kind.Title(), id)
	return nil
}

func (a *App) runUninstall(ctx context.Context, kind addon.Kind, id string) error {
	if err := a.manager.Uninstall(ctx, kind, id); err != nil {
		return fmt.Errorf("uninstalling %s %s: %w", kind, id, err)
	}
	a.output.Success("%s %s uninstalled", kind.Title(), id)
	return nil
}
