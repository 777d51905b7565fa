package addon

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// Registry reads addon folders under a scripts root. Listings always go to
// disk; the only in-memory state is the activation overlay.
type Registry struct {
	root       string
	activation *Activation
	log        *slog.Logger
}

func NewRegistry(root string, activation *Activation, log *slog.Logger) *Registry {
	if activation == nil {
		activation = NewActivation(nil)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{root: root, activation: activation, log: log}
}

func (r *Registry) Root() string {
	return r.root
}

func (r *Registry) Activation() *Activation {
	return r.activation
}

// KindDir returns <root>/plugins or <root>/themes.
func (r *Registry) KindDir(kind Kind) string {
	return filepath.Join(r.root, kind.Dir())
}

// EnsureLayout creates the plugins and themes folders.
func (r *Registry) EnsureLayout() error {
	for _, kind := range Kinds {
		if err := os.MkdirAll(r.KindDir(kind), 0755); err != nil {
			return fmt.Errorf("creating %s directory: %w", kind.Dir(), err)
		}
	}
	return nil
}

// AddonDir returns the folder an addon with this id is installed into.
func (r *Registry) AddonDir(kind Kind, id string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("invalid addon kind: %q", kind)
	}
	if err := ValidatePathComponent(id, string(kind)+" ID"); err != nil {
		return "", err
	}
	dir := filepath.Join(r.KindDir(kind), id)
	if err := ValidateInsideDir(r.KindDir(kind), dir); err != nil {
		return "", err
	}
	return dir, nil
}

// ListInstalled returns every readable addon of kind, sorted by folder name.
// Unreadable manifests are logged and skipped. Themes are returned inactive.
func (r *Registry) ListInstalled(kind Kind) []Record {
	entries, err := os.ReadDir(r.KindDir(kind))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.log.Warn("listing addons failed", "kind", kind, "err", err)
		}
		return []Record{}
	}

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, ok := r.load(kind, entry.Name())
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (r *Registry) load(kind Kind, folder string) (Record, bool) {
	path := filepath.Join(r.KindDir(kind), folder, ManifestFile)
	m, raw, err := ReadManifest(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.log.Debug("skipping folder without manifest", "kind", kind, "folder", folder)
		} else {
			r.log.Warn("skipping addon with unreadable manifest", "kind", kind, "folder", folder, "err", err)
		}
		return Record{}, false
	}

	if strings.TrimSpace(m.ID) == "" {
		m.ID = GenerateID(m.Name, folder)
		if err := BackfillID(path, raw, m.ID); err != nil {
			r.log.Warn("could not persist generated addon id", "folder", folder, "id", m.ID, "err", err)
		} else {
			r.log.Debug("generated addon id", "folder", folder, "id", m.ID)
		}
	}

	rec := m.ToRecord(kind, folder)
	if kind == Plugin {
		rec.IsActive = r.activation.IsActive(rec.ID)
	}
	return rec, true
}

// Find resolves an addon by id: first a folder named id, then any listed
// addon carrying that id.
func (r *Registry) Find(kind Kind, id string) (Record, bool) {
	if id == "" {
		return Record{}, false
	}
	if dir, err := r.AddonDir(kind, id); err == nil {
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			if rec, ok := r.load(kind, id); ok && rec.ID == id {
				return rec, true
			}
		}
	}
	return lo.Find(r.ListInstalled(kind), func(rec Record) bool {
		return rec.ID == id
	})
}

// Resolve finds an addon by id, falling back to a folder named key. The
// returned record always carries the manifest id, which is what activation
// state and events are keyed on.
func (r *Registry) Resolve(kind Kind, key string) (Record, bool) {
	if rec, ok := r.Find(kind, key); ok {
		return rec, true
	}
	dir, err := r.AddonDir(kind, key)
	if err != nil {
		return Record{}, false
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return Record{}, false
	}
	return r.load(kind, key)
}

// Activate removes the plugin's id from the deny-list. key is an id or a
// folder name; false means no installed plugin matches.
func (r *Registry) Activate(key string) (Record, bool) {
	rec, ok := r.Resolve(Plugin, key)
	if !ok {
		return Record{}, false
	}
	r.activation.Allow(rec.ID)
	rec.IsActive = true
	return rec, true
}

// Deactivate adds the plugin's id to the deny-list.
func (r *Registry) Deactivate(key string) (Record, bool) {
	rec, ok := r.Resolve(Plugin, key)
	if !ok {
		return Record{}, false
	}
	r.activation.Deny(rec.ID)
	rec.IsActive = false
	return rec, true
}

// Uninstall removes the addon folder and returns the removed record. A
// folder without a readable manifest is removed too; its record then has
// only Kind and FolderName. Activation state is left alone.
func (r *Registry) Uninstall(kind Kind, key string) (Record, bool) {
	rec, ok := r.Resolve(kind, key)
	if !ok {
		rec = Record{Kind: kind, FolderName: key}
	}
	dir, err := r.AddonDir(kind, rec.FolderName)
	if err != nil {
		return Record{}, false
	}
	if _, err := os.Stat(dir); err != nil {
		return Record{}, false
	}
	if err := os.RemoveAll(dir); err != nil {
		r.log.Error("removing addon folder failed", "kind", kind, "folder", rec.FolderName, "err", err)
		return Record{}, false
	}
	return rec, true
}

// Script reads main.js of an installed addon.
func (r *Registry) Script(rec Record) ([]byte, error) {
	dir, err := r.AddonDir(rec.Kind, rec.FolderName)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(dir, ScriptFile))
}

// MainScriptPath is the always-injected script at the scripts root.
func (r *Registry) MainScriptPath() string {
	return filepath.Join(r.root, MainScriptFile)
}

func (r *Registry) MainScript() ([]byte, error) {
	return os.ReadFile(r.MainScriptPath())
}
