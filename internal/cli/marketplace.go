package cli

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/company/betterteams/internal/addon"
)

func (a *App) newMarketplaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "marketplace [term]",
		Short: "Browse marketplace plugins and themes",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			a.runMarketplace(cmd.Context(), term)
		},
	}
}

func (a *App) runMarketplace(ctx context.Context, term string) {
	term = strings.ToLower(term)
	total := 0

	for _, kind := range addon.Kinds {
		available := a.manager.ListAvailable(ctx, kind)
		if term != "" {
			available = lo.Filter(available, func(r addon.Record, _ int) bool {
				return matches(r, term)
			})
		}
		if len(available) == 0 {
			continue
		}
		total += len(available)

		installed := lo.SliceToMap(a.manager.ListInstalled(kind), func(r addon.Record) (string, bool) {
			return r.ID, true
		})

		a.output.Section(kind.Title() + "s")
		headers := []string{"ID", "Name", "Version", "Author", "Description", ""}
		rows := make([][]string, 0, len(available))
		for _, r := range available {
			mark := ""
			if installed[r.ID] {
				mark = "installed"
			}
			rows = append(rows, []string{r.ID, r.Name, r.Version, r.Author, truncate(r.Description, 60), mark})
		}
		a.output.Table(headers, rows)
	}

	if total == 0 {
		if term != "" {
			a.output.Info("No addons matching %q", term)
		} else {
			a.output.Warning("Marketplace is empty or unreachable at %s", a.market.BaseURL())
		}
	}
}

func matches(r addon.Record, term string) bool {
	return strings.Contains(strings.ToLower(r.ID), term) ||
		strings.Contains(strings.ToLower(r.Name), term) ||
		strings.Contains(strings.ToLower(r.Description), term) ||
		strings.Contains(strings.ToLower(r.Author), term)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
