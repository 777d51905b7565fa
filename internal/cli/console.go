package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/company/betterteams/internal/addon"
)

// errExit stops the console loop.
var errExit = errors.New("exit")

const consolePrompt = "> "

// runConsole reads commands from in, one per line, until exit or EOF. Bad
// input is reported and the loop carries on.
func (a *App) runConsole(ctx context.Context, in io.Reader) error {
	a.output.Info("Type 'help' for available commands.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(a.output.Writer(), consolePrompt)
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := a.execLine(ctx, scanner.Text()); errors.Is(err, errExit) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// execLine runs one console line against a fresh command tree. Only errExit
// is returned; every other failure is printed.
func (a *App) execLine(ctx context.Context, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}

	root := a.newConsoleCmd()
	if cmd, _, err := root.Find(args); err != nil || cmd == root {
		a.output.Warning("Unknown command: %s. Type 'help' for available commands.", args[0])
		return nil
	}

	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if errors.Is(err, errExit) {
		return err
	}
	if err != nil {
		a.output.Error("%v", err)
	}
	return nil
}

func (a *App) newConsoleCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "betterteams",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(a.output.Writer())
	root.SetErr(a.output.Writer())

	help := a.newHelpCmd(root)
	root.SetHelpCommand(help)

	root.AddCommand(
		help,
		a.newReinjectCmd(),
		a.newRestartCmd(),
		a.newMarketplaceCmd(),
		a.newPluginsCmd(),
		a.newInstallCmd(addon.Plugin),
		a.newUninstallCmd(addon.Plugin),
		a.newActivatePluginCmd(),
		a.newDeactivatePluginCmd(),
		a.newThemesCmd(),
		a.newInstallCmd(addon.Theme),
		a.newUninstallCmd(addon.Theme),
		a.newActivateThemeCmd(),
		a.newDeactivateThemeCmd(),
		a.newUpdatesCmd(),
		a.newDoctorCmd(),
		a.newExitCmd(),
	)
	return root
}

func (a *App) newHelpCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help",
		Short: "Show available commands",
		Run: func(cmd *cobra.Command, args []string) {
			var rows [][]string
			for _, c := range root.Commands() {
				if c.Hidden {
					continue
				}
				rows = append(rows, []string{c.Use, c.Short})
			}
			a.output.Table([]string{"Command", "Description"}, rows)
		},
	}
}

func (a *App) newExitCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "exit",
		Aliases: []string{"quit"},
		Short:   "Stop injecting and quit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return errExit
		},
	}
}

func (a *App) newReinjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reinject",
		Short: "Inject scripts into every open page again",
		Run: func(cmd *cobra.Command, args []string) {
			a.injectAll(cmd.Context())
		},
	}
}

func (a *App) newRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart Teams and inject again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.launchHost(cmd.Context(), true); err != nil {
				return err
			}
			a.injectAll(cmd.Context())
			return nil
		},
	}
}

// requireID validates the single id argument of an addon command.
func requireID(kind addon.Kind) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
			return fmt.Errorf("%s ID required", kind.Title())
		}
		if len(args) > 1 {
			return fmt.Errorf("expected one %s ID, got %d", kind, len(args))
		}
		return nil
	}
}
