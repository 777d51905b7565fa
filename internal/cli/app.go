package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/company/betterteams/internal/addon"
	"github.com/company/betterteams/internal/config"
	"github.com/company/betterteams/internal/controlchannel"
	"github.com/company/betterteams/internal/exitcodes"
	"github.com/company/betterteams/internal/host"
	"github.com/company/betterteams/internal/injector"
	"github.com/company/betterteams/internal/lifecycle"
	"github.com/company/betterteams/internal/marketplace"
	"github.com/company/betterteams/internal/ui"
	"github.com/company/betterteams/pkg/logger"
)

const (
	debuggerTimeout  = 60 * time.Second
	debuggerInterval = 500 * time.Millisecond
	shutdownTimeout  = 5 * time.Second
	logFileName      = "betterteams.log"
)

// runStart is the whole life of the process: bootstrap, launch, inject,
// then the console until exit, EOF, a signal or a control channel failure.
func (a *App) runStart(ctx context.Context) error {
	if err := a.bootstrap(ctx); err != nil {
		return err
	}
	defer a.logCloser.Close()

	a.wire(ctx)
	if err := a.server.Start(); err != nil {
		return &ExitError{Code: exitcodes.NetworkError, Message: err.Error()}
	}
	a.output.Success("Control channel listening on %s", a.server.Addr())

	bgCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		a.shutdown()
	}()

	if err := a.launchHost(ctx, !a.noLaunch); err != nil {
		return err
	}

	a.injectAll(ctx)

	go func() {
		if err := a.orchestrator.Run(bgCtx); err != nil {
			a.log.Error("orchestrator stopped", "err", err)
		}
	}()
	if a.cfg.Watching() {
		w := injector.NewWatcher(
			[]string{a.registry.KindDir(addon.Plugin), a.registry.KindDir(addon.Theme)},
			a.orchestrator.Trigger,
			logger.Named(a.log, "watcher"),
		)
		go func() {
			if err := w.Run(bgCtx); err != nil {
				a.log.Warn("addon watcher stopped", "err", err)
			}
		}()
	}

	a.welcome()
	if a.cfg.AutoCheckUpdates {
		go a.reportUpdates(bgCtx)
	}

	consoleDone := make(chan error, 1)
	go func() {
		consoleDone <- a.runConsole(bgCtx, a.stdin)
	}()

	select {
	case err := <-consoleDone:
		return err
	case err := <-a.server.Done():
		if err != nil {
			return &ExitError{Code: exitcodes.NetworkError, Message: fmt.Sprintf("control channel failed: %v", err)}
		}
		return nil
	case <-ctx.Done():
		a.output.Println("")
		a.output.Info("Shutting down")
		return nil
	}
}

// bootstrap loads configuration and builds the long-lived components that
// do not touch the network.
func (a *App) bootstrap(ctx context.Context) error {
	dir := a.configDir
	if dir == "" {
		d, err := config.DefaultDir()
		if err != nil {
			return &ExitError{Code: exitcodes.ConfigError, Message: err.Error()}
		}
		dir = d
	}

	files, err := config.OpenFiles(dir)
	if err != nil {
		return &ExitError{Code: exitcodes.ConfigError, Message: err.Error()}
	}
	cfg, err := files.LoadInjector()
	if err != nil {
		return &ExitError{Code: exitcodes.ConfigError, Message: err.Error()}
	}
	plugins, err := files.LoadPlugins()
	if err != nil {
		return &ExitError{Code: exitcodes.ConfigError, Message: err.Error()}
	}

	a.applyOverrides(cfg)
	if err := config.ValidateInjectorConfig(cfg); err != nil {
		return &ExitError{Code: exitcodes.UsageError, Message: err.Error()}
	}

	log, closer, err := logger.New(a.loggerConfig(cfg, dir))
	if err != nil {
		return &ExitError{Code: exitcodes.ConfigError, Message: err.Error()}
	}
	a.log = log
	a.logCloser = closer
	a.files = files
	a.cfg = cfg
	a.debugf("config directory: %s", dir)

	scriptsDir := a.resolveScriptsDir(cfg)
	a.debugf("scripts directory: %s", scriptsDir)
	a.registry = addon.NewRegistry(scriptsDir, addon.NewActivation(plugins.DeactivatedPluginIDs), logger.Named(log, "addon"))
	if err := a.registry.EnsureLayout(); err != nil {
		return &ExitError{Code: exitcodes.ConfigError, Message: err.Error()}
	}

	a.market = marketplace.NewClient(
		marketplace.WithBaseURL(cfg.MarketplaceAPIURL),
		marketplace.WithLogger(logger.Named(log, "marketplace")),
		marketplace.WithUserAgent("betterteams/"+a.version),
	)
	downloader := marketplace.NewDownloader(a.market, a.registry,
		marketplace.WithAttempts(cfg.DownloadAttempts),
		marketplace.WithBackoff(cfg.DownloadBackoff()),
		marketplace.WithDownloadLogger(logger.Named(log, "download")),
	)
	a.manager = lifecycle.NewManager(lifecycle.Deps{
		Registry:  a.registry,
		Catalog:   a.market,
		Installer: downloader,
		Store:     files,
		Config:    cfg,
		Logger:    logger.Named(log, "lifecycle"),
	})

	a.host = &host.Host{
		ExePath:       cfg.TeamsExePath,
		DebugPort:     cfg.RemoteDebuggingPort,
		EnableLogging: cfg.EnableLogging,
		Log:           logger.Named(log, "host"),
	}
	if !a.noLaunch {
		if err := a.ensureExecutable(ctx); err != nil {
			return err
		}
	}
	return nil
}

// wire builds the control channel and the orchestrator and subscribes both
// to lifecycle events.
func (a *App) wire(ctx context.Context) {
	a.server = controlchannel.New(
		fmt.Sprintf("127.0.0.1:%d", a.cfg.WebSocketPort),
		a.manager,
		controlchannel.WithLogger(logger.Named(a.log, "controlchannel")),
	)
	a.runtime = injector.NewCDPRuntime(ctx, a.cfg.RemoteDebuggingPort)
	a.orchestrator = injector.New(a.runtime, a.manager, a.registry, injector.Options{
		Port:          a.cfg.WebSocketPort,
		ReInjectDelay: a.cfg.ReInjectDelay(),
		PollInterval:  a.cfg.PagePollInterval(),
		Logger:        logger.Named(a.log, "injector"),
	})
	a.manager.Subscribe(a.server)
	a.manager.Subscribe(a.orchestrator)
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if a.server != nil {
		if err := a.server.Stop(ctx); err != nil {
			a.log.Warn("stopping control channel", "err", err)
		}
	}
	if a.runtime != nil {
		a.runtime.Close()
	}
}

// applyOverrides copies command-line settings over the loaded file. They
// are saved with the file on the next mutation.
func (a *App) applyOverrides(cfg *config.InjectorConfig) {
	if a.marketplaceURL != "" {
		cfg.MarketplaceAPIURL = a.marketplaceURL
	}
	if a.port != 0 {
		cfg.WebSocketPort = a.port
	}
	if a.debugPort != 0 {
		cfg.RemoteDebuggingPort = a.debugPort
	}
	if a.scriptsDir != "" {
		cfg.ScriptsDirectory = a.scriptsDir
	}
	if a.debug {
		cfg.LogLevel = "debug"
	}
}

func (a *App) loggerConfig(cfg *config.InjectorConfig, dir string) logger.Config {
	path := cfg.LogFile
	if path == "" {
		path = filepath.Join(dir, logFileName)
	}
	outputs := []string{path}
	if a.debug {
		outputs = append(outputs, "stderr")
	}
	return logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		OutputPaths: outputs,
		AddSource:   a.debug,
	}
}

// resolveScriptsDir anchors a relative scripts directory at the working
// directory when given on the command line, else next to the executable.
func (a *App) resolveScriptsDir(cfg *config.InjectorConfig) string {
	base, _ := os.Getwd()
	if a.scriptsDir == "" {
		if exe, err := os.Executable(); err == nil {
			base = filepath.Dir(exe)
		}
	}
	return cfg.ResolveScriptsDir(base)
}

// ensureExecutable fills TeamsExePath from a running process or a prompt
// and saves it.
func (a *App) ensureExecutable(ctx context.Context) error {
	if a.cfg.TeamsExePath != "" {
		if _, err := os.Stat(a.cfg.TeamsExePath); err == nil {
			return nil
		}
		a.output.Warning("Configured Teams executable not found: %s", a.cfg.TeamsExePath)
	}

	path, found := a.host.DiscoverExecutable(ctx)
	if !found {
		if ui.IsCI() {
			return &ExitError{
				Code:    exitcodes.ConfigError,
				Message: "Teams executable not configured; set TeamsExePath in " + a.files.InjectorPath(),
			}
		}
		var err error
		path, err = ui.AskExecutablePath(path)
		if err != nil {
			return &ExitError{Code: exitcodes.UsageError, Message: fmt.Sprintf("reading executable path: %v", err)}
		}
	} else {
		a.output.Info("Found Teams at %s", path)
	}

	a.host.ExePath = path
	return a.manager.UpdateConfig(func(c *config.InjectorConfig) {
		c.TeamsExePath = path
	})
}

// launchHost restarts Teams with debugging enabled when restart is set, then
// waits for the debugger and the initial delay.
func (a *App) launchHost(ctx context.Context, restart bool) error {
	if restart {
		if a.host.ExePath == "" {
			return &ExitError{Code: exitcodes.ConfigError, Message: host.ErrNoExecutable.Error()}
		}
		err := a.spin(ctx, "Restarting Teams...", func() error {
			return a.host.Restart(ctx)
		})
		if err != nil {
			return &ExitError{Code: exitcodes.HostError, Message: fmt.Sprintf("restarting Teams: %v", err)}
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, debuggerTimeout)
	defer cancel()
	err := a.spin(ctx, "Waiting for the debugger...", func() error {
		return a.host.WaitForDebugger(waitCtx, debuggerInterval)
	})
	if err != nil {
		return &ExitError{Code: exitcodes.HostError, Message: err.Error()}
	}
	a.output.Success("Debugger reachable on port %d", a.cfg.RemoteDebuggingPort)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(a.cfg.InitialDelay()):
	}
	return nil
}

// injectAll runs one full injection pass and prints its outcome.
func (a *App) injectAll(ctx context.Context) {
	var report injector.Report
	err := a.spin(ctx, "Injecting scripts...", func() error {
		var err error
		report, err = a.orchestrator.InjectAll(ctx)
		return err
	})
	if err != nil {
		a.output.Error("Injection failed: %v", err)
		return
	}
	if report.OK() {
		a.output.Success("Injected %d scripts into %d pages", report.Scripts, report.Pages)
		return
	}
	a.output.Warning("Injected into %d pages with %d failures", report.Pages, len(report.Failures))
	for _, f := range report.Failures {
		a.debugf("%v", f)
	}
}

func (a *App) welcome() {
	if !a.cfg.FirstTime {
		return
	}
	a.output.Section("Welcome to BetterTeams")
	a.output.Println("Open the BetterTeams panel inside Teams or type 'help' to manage addons from here.")
	err := a.manager.UpdateConfig(func(c *config.InjectorConfig) {
		c.FirstTime = false
	})
	if err != nil {
		a.log.Warn("saving config", "err", err)
	}
}

func (a *App) reportUpdates(ctx context.Context) {
	updates := a.manager.Updates(ctx)
	if len(updates) == 0 {
		return
	}
	a.output.Info("%d addon updates available; type 'updates' for details", len(updates))
}

// spin shows a spinner only on an interactive terminal.
func (a *App) spin(ctx context.Context, title string, fn func() error) error {
	if a.stdin != os.Stdin {
		return fn()
	}
	return ui.WithSpinner(ctx, title, fn)
}
