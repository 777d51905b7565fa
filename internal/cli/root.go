package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/company/betterteams/internal/addon"
	"github.com/company/betterteams/internal/config"
	"github.com/company/betterteams/internal/controlchannel"
	"github.com/company/betterteams/internal/host"
	"github.com/company/betterteams/internal/injector"
	"github.com/company/betterteams/internal/lifecycle"
	"github.com/company/betterteams/internal/marketplace"
	"github.com/company/betterteams/internal/ui"
)

// App is the dependency container for the process and the console.
type App struct {
	rootCmd *cobra.Command
	version string
	commit  string
	date    string
	output  *ui.Output
	stdin   io.Reader

	configDir      string
	scriptsDir     string
	marketplaceURL string
	port           int
	debugPort      int
	noLaunch       bool
	debug          bool

	// Wired by bootstrap.
	log          *slog.Logger
	logCloser    io.Closer
	files        *config.Files
	cfg          *config.InjectorConfig
	registry     *addon.Registry
	market       *marketplace.Client
	manager      *lifecycle.Manager
	server       *controlchannel.Server
	orchestrator *injector.Orchestrator
	runtime      *injector.CDPRuntime
	host         *host.Host
}

// NewApp creates the root command and registers all subcommands.
func NewApp(version, commit, date string) *App {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		output:  ui.NewOutput(),
		stdin:   os.Stdin,
	}

	root := &cobra.Command{
		Use:   "betterteams",
		Short: "Plugin and theme injector for Microsoft Teams",
		Long: "Restarts Teams with remote debugging enabled, injects the installed plugins and the " +
			"active theme into every page and serves the in-page addon manager over a local WebSocket.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is the normal case.
			_ = godotenv.Load()

			if dir := os.Getenv("BETTERTEAMS_CONFIG_DIR"); dir != "" && app.configDir == "" {
				app.configDir = dir
			}
			if url := os.Getenv("BETTERTEAMS_MARKETPLACE"); url != "" && app.marketplaceURL == "" {
				app.marketplaceURL = url
			}
			if port := os.Getenv("BETTERTEAMS_PORT"); port != "" && app.port == 0 {
				if n, err := strconv.Atoi(port); err == nil {
					app.port = n
				}
			}
			if os.Getenv("BETTERTEAMS_DEBUG") != "" {
				app.debug = true
			}
			if os.Getenv("BETTERTEAMS_NO_COLOR") != "" || os.Getenv("NO_COLOR") != "" {
				app.output.SetNoColor(true)
			}
			app.output.SetDebug(app.debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runStart(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.configDir, "config-dir", "", "config directory (overrides BETTERTEAMS_CONFIG_DIR)")
	flags.StringVar(&app.scriptsDir, "scripts-dir", "", "addon scripts directory")
	flags.StringVar(&app.marketplaceURL, "marketplace", "", "marketplace API URL (overrides BETTERTEAMS_MARKETPLACE)")
	flags.IntVar(&app.port, "port", 0, "control channel port")
	flags.IntVar(&app.debugPort, "debug-port", 0, "Teams remote debugging port")
	flags.BoolVar(&app.noLaunch, "no-launch", false, "attach to an already running Teams instead of restarting it")
	flags.BoolVar(&app.debug, "debug", false, "enable debug logging")

	root.AddCommand(app.newVersionCmd())

	app.rootCmd = root
	return app
}

// Execute runs the root command. Cancelling ctx shuts the session down.
func (a *App) Execute(ctx context.Context) error {
	return a.rootCmd.ExecuteContext(ctx)
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			a.output.Info("betterteams %s (commit: %s, built: %s)", a.version, a.commit, a.date)
		},
	}
}

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// debugf prints a debug message if debug mode is enabled.
func (a *App) debugf(format string, args ...any) {
	if a.debug {
		a.output.Debug(format, args...)
	}
}
