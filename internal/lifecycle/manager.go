// Package lifecycle coordinates addon installation and activation. Every
// mutation goes through Manager, which serializes them, persists the result
// and notifies listeners.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/company/betterteams/internal/addon"
	"github.com/company/betterteams/internal/config"
	"github.com/company/betterteams/internal/marketplace"
)

var (
	ErrNotInCatalog   = errors.New("not found in marketplace")
	ErrNotInstalled   = errors.New("not installed")
	ErrDownloadFailed = errors.New("download failed")
	ErrInvalidKind    = errors.New("invalid addon kind")
)

// Catalog is the marketplace side of the manager.
type Catalog interface {
	FetchAvailable(ctx context.Context, kind addon.Kind) []addon.Record
}

// Installer downloads a package into the addon layout.
type Installer interface {
	Download(ctx context.Context, kind addon.Kind, id string) error
}

// Store persists configuration after mutations.
type Store interface {
	SaveInjector(c *config.InjectorConfig) error
	SavePlugins(c *config.PluginConfig) error
}

// Manager owns addon state mutation.
type Manager struct {
	mu        sync.Mutex
	registry  *addon.Registry
	catalog   Catalog
	installer Installer
	store     Store
	cfg       *config.InjectorConfig
	log       *slog.Logger

	notifyMu  sync.RWMutex
	notifiers []Notifier
}

// Deps groups the collaborators of a Manager.
type Deps struct {
	Registry  *addon.Registry
	Catalog   Catalog
	Installer Installer
	Store     Store
	Config    *config.InjectorConfig
	Logger    *slog.Logger
}

func NewManager(d Deps) *Manager {
	log := d.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		registry:  d.Registry,
		catalog:   d.Catalog,
		installer: d.Installer,
		store:     d.Store,
		cfg:       d.Config,
		log:       log,
	}
}

// Subscribe registers n for every future event.
func (m *Manager) Subscribe(n Notifier) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

func (m *Manager) notify(ctx context.Context, ev Event) {
	m.notifyMu.RLock()
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.notifyMu.RUnlock()

	for _, n := range notifiers {
		n.AddonsChanged(ctx, ev)
	}
}

// ListInstalled returns installed addons with their activation state.
func (m *Manager) ListInstalled(kind addon.Kind) []addon.Record {
	records := m.registry.ListInstalled(kind)
	if kind != addon.Theme {
		return records
	}

	active := m.activeThemeID()
	for i := range records {
		records[i].IsActive = active != "" && records[i].ID == active
	}
	return records
}

// ListActivePlugins returns installed plugins not on the deny-list, in
// listing order.
func (m *Manager) ListActivePlugins() []addon.Record {
	return lo.Filter(m.registry.ListInstalled(addon.Plugin), func(r addon.Record, _ int) bool {
		return r.IsActive
	})
}

// ListAvailable returns the marketplace catalog, empty when unreachable.
func (m *Manager) ListAvailable(ctx context.Context, kind addon.Kind) []addon.Record {
	return m.catalog.FetchAvailable(ctx, kind)
}

// Install downloads kind/id from the marketplace. A freshly installed
// plugin is active.
func (m *Manager) Install(ctx context.Context, kind addon.Kind, id string) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}

	listing, ok := lo.Find(m.catalog.FetchAvailable(ctx, kind), func(r addon.Record) bool {
		return r.ID == id
	})
	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotInCatalog)
	}

	m.mu.Lock()
	err := m.install(ctx, kind, id)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.log.Info("addon installed", "kind", kind, "id", id)
	m.notify(ctx, Event{Action: Installed, Kind: kind, ID: id, Name: listing.Name})
	return nil
}

func (m *Manager) install(ctx context.Context, kind addon.Kind, id string) error {
	if err := m.installer.Download(ctx, kind, id); err != nil {
		m.log.Error("addon download failed", "kind", kind, "id", id, "err", err)
		return fmt.Errorf("%s %s: %w: %v", kind, id, ErrDownloadFailed, err)
	}

	if kind == addon.Plugin && m.registry.Activation().Allow(id) {
		if err := m.savePlugins(); err != nil {
			return err
		}
	}
	return nil
}

// Uninstall removes an installed addon. Removing the active theme clears
// the active theme.
func (m *Manager) Uninstall(ctx context.Context, kind addon.Kind, id string) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}

	m.mu.Lock()
	rec, ok := m.registry.Uninstall(kind, id)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotInstalled)
	}

	var err error
	if kind == addon.Theme && rec.ID != "" && m.cfg.ActiveThemeID == rec.ID {
		m.cfg.ActiveThemeID = ""
		err = m.store.SaveInjector(m.cfg)
	}
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	ev := Event{Action: Uninstalled, Kind: kind, ID: rec.ID, Name: rec.Name}
	if ev.ID == "" {
		ev.ID, ev.Name = id, id
	}
	m.log.Info("addon uninstalled", "kind", kind, "id", ev.ID, "folder", rec.FolderName)
	m.notify(ctx, ev)
	return nil
}

// ActivatePlugin removes id from the deny-list.
func (m *Manager) ActivatePlugin(ctx context.Context, id string) error {
	return m.setPluginActive(ctx, id, true)
}

// DeactivatePlugin adds id to the deny-list.
func (m *Manager) DeactivatePlugin(ctx context.Context, id string) error {
	return m.setPluginActive(ctx, id, false)
}

func (m *Manager) setPluginActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	var rec addon.Record
	var ok bool
	if active {
		rec, ok = m.registry.Activate(id)
	} else {
		rec, ok = m.registry.Deactivate(id)
	}
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("plugin %s: %w", id, ErrNotInstalled)
	}
	err := m.savePlugins()
	m.mu.Unlock()
	if err != nil {
		return err
	}

	ev := Event{Action: Deactivated, Kind: addon.Plugin, ID: rec.ID, Name: rec.Name}
	if active {
		ev.Action = Activated
	}
	m.log.Info("plugin "+string(ev.Action), "id", rec.ID, "folder", rec.FolderName)
	m.notify(ctx, ev)
	return nil
}

// SetActiveTheme makes id the single active theme. An empty id deactivates
// the current theme.
func (m *Manager) SetActiveTheme(ctx context.Context, id string) (addon.Record, error) {
	if id == "" {
		return addon.Record{}, m.DeactivateTheme(ctx)
	}

	m.mu.Lock()
	rec, ok := m.registry.Resolve(addon.Theme, id)
	if !ok {
		m.mu.Unlock()
		return addon.Record{}, fmt.Errorf("theme %s: %w", id, ErrNotInstalled)
	}
	m.cfg.ActiveThemeID = rec.ID
	err := m.store.SaveInjector(m.cfg)
	m.mu.Unlock()
	if err != nil {
		return addon.Record{}, fmt.Errorf("saving config: %w", err)
	}

	rec.IsActive = true
	m.log.Info("theme activated", "id", rec.ID, "name", rec.Name)
	m.notify(ctx, Event{Action: ThemeActivated, Kind: addon.Theme, ID: rec.ID, Name: rec.Name})
	return rec, nil
}

// DeactivateTheme clears the active theme. It succeeds when none is active.
func (m *Manager) DeactivateTheme(ctx context.Context) error {
	m.mu.Lock()
	previous := m.cfg.ActiveThemeID
	m.cfg.ActiveThemeID = ""
	err := m.store.SaveInjector(m.cfg)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	m.log.Info("theme deactivated", "previous", previous)
	m.notify(ctx, Event{Action: ThemeDeactivated, Kind: addon.Theme, ID: previous})
	return nil
}

// ActiveTheme returns the active theme. An id that no longer matches an
// installed theme is cleared.
func (m *Manager) ActiveTheme() (addon.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.cfg.ActiveThemeID
	if id == "" {
		return addon.Record{}, false
	}
	rec, ok := m.registry.Find(addon.Theme, id)
	if !ok {
		m.log.Warn("active theme is not installed, clearing", "id", id)
		m.cfg.ActiveThemeID = ""
		if err := m.store.SaveInjector(m.cfg); err != nil {
			m.log.Error("saving config failed", "err", err)
		}
		return addon.Record{}, false
	}
	rec.IsActive = true
	return rec, true
}

// Updates lists installed addons with a newer catalog version.
func (m *Manager) Updates(ctx context.Context) []marketplace.Update {
	var updates []marketplace.Update
	for _, kind := range addon.Kinds {
		installed := m.registry.ListInstalled(kind)
		if len(installed) == 0 {
			continue
		}
		updates = append(updates, marketplace.FindUpdates(installed, m.catalog.FetchAvailable(ctx, kind))...)
	}
	return updates
}

// Config returns a copy of the current injector config.
func (m *Manager) Config() config.InjectorConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.cfg
}

// UpdateConfig applies fn to the injector config and saves it.
func (m *Manager) UpdateConfig(fn func(c *config.InjectorConfig)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.cfg)
	return m.store.SaveInjector(m.cfg)
}

func (m *Manager) activeThemeID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.ActiveThemeID
}

func (m *Manager) savePlugins() error {
	pc := &config.PluginConfig{DeactivatedPluginIDs: m.registry.Activation().DeniedIDs()}
	if err := m.store.SavePlugins(pc); err != nil {
		return fmt.Errorf("saving plugin config: %w", err)
	}
	return nil
}
