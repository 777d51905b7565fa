package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/company/betterteams/internal/addon"
)

func (a *App) newThemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List installed themes",
		Run: func(cmd *cobra.Command, args []string) {
			a.runListInstalled(addon.Theme)
		},
	}
}

func (a *App) newActivateThemeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate_theme <id>",
		Short: "Make an installed theme the active one",
		Args:  requireID(addon.Theme),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.manager.SetActiveTheme(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("activating theme %s: %w", args[0], err)
			}
			a.output.Success("Theme %s activated", rec.Name)
			return nil
		},
	}
}

func (a *App) newDeactivateThemeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate_theme",
		Short: "Turn off the active theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := a.manager.ActiveTheme(); !ok {
				a.output.Info("No theme is active")
				return nil
			}
			if err := a.manager.DeactivateTheme(cmd.Context()); err != nil {
				return fmt.Errorf("deactivating theme: %w", err)
			}
			a.output.Success("Theme deactivated")
			return nil
		},
	}
}
