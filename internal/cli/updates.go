package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func (a *App) newUpdatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "updates",
		Short: "Show installed addons with a newer marketplace version",
		Long:  "Compare installed manifest versions against the marketplace catalog. Reinstall an addon to update it.",
		Run: func(cmd *cobra.Command, args []string) {
			a.runUpdates(cmd.Context())
		},
	}
}

func (a *App) runUpdates(ctx context.Context) {
	updates := a.manager.Updates(ctx)
	if len(updates) == 0 {
		a.output.Success("All addons are up to date")
		return
	}

	headers := []string{"Kind", "ID", "Name", "Installed", "Available"}
	rows := make([][]string, 0, len(updates))
	for _, u := range updates {
		rows = append(rows, []string{string(u.Kind), u.ID, u.Name, u.Installed, u.Available})
	}
	a.output.Table(headers, rows)
	a.output.Info("Run install_plugin <id> or install_theme <id> to update")
}
