// Package injector evaluates the bootstrap, main, plugin and theme scripts
// in every page of the host application.
package injector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/company/betterteams/internal/addon"
	"github.com/company/betterteams/internal/lifecycle"
)

// Source supplies what should be active.
type Source interface {
	ListActivePlugins() []addon.Record
	ActiveTheme() (addon.Record, bool)
}

// ScriptReader reads script files from the addon layout.
type ScriptReader interface {
	MainScript() ([]byte, error)
	Script(rec addon.Record) ([]byte, error)
}

// Failure is one (page, script) evaluation that did not succeed.
type Failure struct {
	PageID  string
	PageURL string
	Script  string
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s in %s: %v", f.Script, f.PageURL, f.Err)
}

// Report summarises one injection pass.
type Report struct {
	Pages    int
	Scripts  int
	Failures []Failure
}

func (r Report) OK() bool {
	return len(r.Failures) == 0
}

// Options tune an Orchestrator. Zero values get defaults.
type Options struct {
	Port          int
	ReInjectDelay time.Duration
	PollInterval  time.Duration
	Concurrency   int
	Logger        *slog.Logger
}

// Orchestrator injects scripts into pages and re-injects after changes.
type Orchestrator struct {
	runtime Runtime
	source  Source
	scripts ScriptReader
	opts    Options
	log     *slog.Logger

	trigger chan struct{}

	mu   sync.Mutex
	seen map[string]struct{}
}

func New(runtime Runtime, source Source, scripts ScriptReader, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		runtime: runtime,
		source:  source,
		scripts: scripts,
		opts:    opts,
		log:     log,
		trigger: make(chan struct{}, 1),
		seen:    make(map[string]struct{}),
	}
}

// Plan returns the scripts to evaluate in every page, in order: bootstrap,
// main script, active plugins, active theme. Unreadable files are logged
// and left out.
func (o *Orchestrator) Plan() []Script {
	plan := []Script{BootstrapScript(o.opts.Port)}

	if main, err := o.scripts.MainScript(); err != nil {
		o.log.Error("main script unavailable", "err", err)
	} else {
		plan = append(plan, Script{Name: addon.MainScriptFile, Source: string(main)})
	}

	for _, rec := range o.source.ListActivePlugins() {
		src, err := o.scripts.Script(rec)
		if err != nil {
			o.log.Warn("plugin script unavailable", "id", rec.ID, "err", err)
			continue
		}
		plan = append(plan, Script{Name: "plugin:" + rec.ID, Source: string(src)})
	}

	if theme, ok := o.source.ActiveTheme(); ok {
		src, err := o.scripts.Script(theme)
		if err != nil {
			o.log.Warn("theme script unavailable", "id", theme.ID, "err", err)
		} else {
			plan = append(plan, ThemeScript(theme, string(src)))
		}
	}

	return plan
}

// InjectPage evaluates every script of plan in page. Each evaluation stands
// alone: a failure is recorded and the next script still runs.
func (o *Orchestrator) InjectPage(ctx context.Context, page Page, plan []Script) []Failure {
	var failures []Failure
	for _, s := range plan {
		if ctx.Err() != nil {
			failures = append(failures, Failure{PageID: page.ID(), PageURL: page.URL(), Script: s.Name, Err: ctx.Err()})
			continue
		}
		if err := page.Evaluate(ctx, s.Source, nil); err != nil {
			o.log.Warn("script evaluation failed", "page", page.URL(), "script", s.Name, "err", err)
			failures = append(failures, Failure{PageID: page.ID(), PageURL: page.URL(), Script: s.Name, Err: err})
			continue
		}
		o.log.Debug("script injected", "page", page.URL(), "script", s.Name)
	}

	o.mu.Lock()
	o.seen[page.ID()] = struct{}{}
	o.mu.Unlock()
	return failures
}

// InjectAll injects into every current page concurrently. The error is
// only for a failure to enumerate pages.
func (o *Orchestrator) InjectAll(ctx context.Context) (Report, error) {
	pages, err := o.runtime.Pages(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing pages: %w", err)
	}
	return o.inject(ctx, pages), nil
}

func (o *Orchestrator) inject(ctx context.Context, pages []Page) Report {
	plan := o.Plan()
	report := Report{Pages: len(pages), Scripts: len(plan)}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for _, p := range pages {
		g.Go(func() error {
			failures := o.InjectPage(ctx, p, plan)
			mu.Lock()
			report.Failures = append(report.Failures, failures...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	o.log.Info("injection finished", "pages", report.Pages, "scripts", report.Scripts, "failures", len(report.Failures))
	return report
}

// PageStatus tells whether the bootstrap is present in a page.
type PageStatus struct {
	PageID   string
	PageURL  string
	Injected bool
	Err      error
}

// Verify checks each page for the control-channel client.
func (o *Orchestrator) Verify(ctx context.Context) ([]PageStatus, error) {
	pages, err := o.runtime.Pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	statuses := make([]PageStatus, 0, len(pages))
	for _, p := range pages {
		var ok bool
		err := p.Evaluate(ctx, "!!window.BetterTeamsWS", &ok)
		statuses = append(statuses, PageStatus{PageID: p.ID(), PageURL: p.URL(), Injected: ok, Err: err})
	}
	return statuses, nil
}

// AddonsChanged schedules a re-injection.
func (o *Orchestrator) AddonsChanged(_ context.Context, ev lifecycle.Event) {
	o.log.Debug("re-injection scheduled", "action", ev.Action, "id", ev.ID)
	o.Trigger()
}

// Trigger asks Run for a re-injection after the re-inject delay. Calls
// during the delay are coalesced.
func (o *Orchestrator) Trigger() {
	select {
	case o.trigger <- struct{}{}:
	default:
	}
}

// Run performs scheduled re-injections and injects pages that appear
// later, until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	poll := time.NewTicker(o.opts.PollInterval)
	defer poll.Stop()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-o.trigger:
			if pending == nil {
				pending = time.After(o.opts.ReInjectDelay)
			}

		case <-pending:
			pending = nil
			if _, err := o.InjectAll(ctx); err != nil {
				o.log.Warn("re-injection failed", "err", err)
			}

		case <-poll.C:
			o.injectNewPages(ctx)
		}
	}
}

func (o *Orchestrator) injectNewPages(ctx context.Context) {
	pages, err := o.runtime.Pages(ctx)
	if err != nil {
		o.log.Debug("polling pages failed", "err", err)
		return
	}

	live := make(map[string]struct{}, len(pages))
	var fresh []Page
	o.mu.Lock()
	for _, p := range pages {
		live[p.ID()] = struct{}{}
		if _, ok := o.seen[p.ID()]; !ok {
			fresh = append(fresh, p)
		}
	}
	for id := range o.seen {
		if _, ok := live[id]; !ok {
			delete(o.seen, id)
		}
	}
	o.mu.Unlock()

	if len(fresh) == 0 {
		return
	}
	o.log.Info("new pages detected", "count", len(fresh))
	o.inject(ctx, fresh)
}
