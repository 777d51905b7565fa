package addon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeAddon(t *testing.T, root string, kind Kind, folder, manifest string) {
	t.Helper()
	dir := filepath.Join(root, kind.Dir(), folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if manifest != "" {
		if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, ScriptFile), []byte("console.log('"+folder+"');"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestGenerateIDMatchesLegacyFormat(t *testing.T) {
	tests := []struct {
		name, folder, want string
	}{
		{"My Plugin", "my-plugin", "8010c89c-cc48-ad9c-7d93-6d73387cd9f4"},
		{"", "nameless", "106e0241-aa24-b86b-76ee-e11f66ce4c86"},
	}
	for _, tt := range tests {
		if got := GenerateID(tt.name, tt.folder); got != tt.want {
			t.Errorf("GenerateID(%q, %q) = %q, want %q", tt.name, tt.folder, got, tt.want)
		}
	}
}

func TestManifestToRecordDefaults(t *testing.T) {
	rec := Manifest{ID: "x"}.ToRecord(Theme, "x")

	if rec.Name != DefaultName {
		t.Errorf("Name = %q, want %q", rec.Name, DefaultName)
	}
	if rec.Version != DefaultVersion {
		t.Errorf("Version = %q, want %q", rec.Version, DefaultVersion)
	}
	if rec.Author != DefaultAuthor {
		t.Errorf("Author = %q, want %q", rec.Author, DefaultAuthor)
	}
	if rec.Kind != Theme || rec.FolderName != "x" {
		t.Errorf("Kind/FolderName = %q/%q, want theme/x", rec.Kind, rec.FolderName)
	}
}

func TestListInstalledBackfillsStableID(t *testing.T) {
	root := t.TempDir()
	writeAddon(t, root, Plugin, "my-plugin", `{"name": "My Plugin", "custom": {"keep": true}}`)

	reg := NewRegistry(root, nil, nil)

	first := reg.ListInstalled(Plugin)
	if len(first) != 1 {
		t.Fatalf("ListInstalled() len = %d, want 1", len(first))
	}
	want := GenerateID("My Plugin", "my-plugin")
	if first[0].ID != want {
		t.Errorf("ID = %q, want %q", first[0].ID, want)
	}

	second := reg.ListInstalled(Plugin)
	if second[0].ID != first[0].ID {
		t.Errorf("second listing ID = %q, want %q", second[0].ID, first[0].ID)
	}

	data, err := os.ReadFile(filepath.Join(root, "plugins", "my-plugin", ManifestFile))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("backfilled manifest is not JSON: %v", err)
	}
	if raw["id"] != want {
		t.Errorf("manifest id = %v, want %q", raw["id"], want)
	}
	if _, ok := raw["custom"]; !ok {
		t.Error("backfill should preserve unknown keys")
	}
}

func TestListInstalledSkipsBadManifests(t *testing.T) {
	root := t.TempDir()
	writeAddon(t, root, Plugin, "a-good", `{"id": "good", "name": "Good"}`)
	writeAddon(t, root, Plugin, "b-broken", `{"id": "broken",`)
	writeAddon(t, root, Plugin, "c-missing", "")
	writeAddon(t, root, Plugin, "d-also-good", `{"id": "other"}`)

	reg := NewRegistry(root, nil, nil)
	records := reg.ListInstalled(Plugin)

	if len(records) != 2 {
		t.Fatalf("ListInstalled() len = %d, want 2: %+v", len(records), records)
	}
	if records[0].ID != "good" || records[1].ID != "other" {
		t.Errorf("ids = %q, %q, want good, other", records[0].ID, records[1].ID)
	}
	if records[1].Name != DefaultName {
		t.Errorf("Name = %q, want %q", records[1].Name, DefaultName)
	}
}

func TestListInstalledMissingRoot(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "nope"), nil, nil)
	if got := reg.ListInstalled(Theme); len(got) != 0 {
		t.Errorf("ListInstalled() = %v, want empty", got)
	}
}

func TestActivateDeactivate(t *testing.T) {
	root := t.TempDir()
	writeAddon(t, root, Plugin, "demo", `{"id": "demo"}`)
	writeAddon(t, root, Plugin, "legacy-folder", `{"id": "legacy-id"}`)

	act := NewActivation(nil)
	reg := NewRegistry(root, act, nil)

	if _, ok := reg.Deactivate("demo"); !ok {
		t.Fatal("Deactivate(demo) = false, want true")
	}
	if act.IsActive("demo") {
		t.Error("demo should be inactive")
	}
	if reg.ListInstalled(Plugin)[0].IsActive {
		t.Error("listing should report demo inactive")
	}

	if rec, ok := reg.Deactivate("legacy-id"); !ok || rec.FolderName != "legacy-folder" {
		t.Errorf("Deactivate(legacy-id) = %+v, %v; want the legacy-folder record", rec, ok)
	}

	if _, ok := reg.Activate("demo"); !ok {
		t.Fatal("Activate(demo) = false, want true")
	}
	if !act.IsActive("demo") {
		t.Error("demo should be active")
	}

	if _, ok := reg.Activate("never-installed"); ok {
		t.Error("Activate on unknown id should return false")
	}
	if _, ok := reg.Deactivate("never-installed"); ok {
		t.Error("Deactivate on unknown id should return false")
	}
}

func TestDeactivateByFolderNameUsesManifestID(t *testing.T) {
	root := t.TempDir()
	writeAddon(t, root, Plugin, "hand", `{"id": "abc"}`)

	act := NewActivation(nil)
	reg := NewRegistry(root, act, nil)

	rec, ok := reg.Deactivate("hand")
	if !ok {
		t.Fatal("Deactivate(hand) = false, want true")
	}
	if rec.ID != "abc" {
		t.Errorf("record id = %q, want abc", rec.ID)
	}
	if ids := act.DeniedIDs(); len(ids) != 1 || ids[0] != "abc" {
		t.Errorf("DeniedIDs() = %v, want [abc]", ids)
	}
	if listed := reg.ListInstalled(Plugin); len(listed) != 1 || listed[0].IsActive {
		t.Errorf("listing should report abc inactive, got %+v", listed)
	}

	if _, ok := reg.Activate("hand"); !ok {
		t.Fatal("Activate(hand) = false, want true")
	}
	if !reg.ListInstalled(Plugin)[0].IsActive {
		t.Error("abc should be active again")
	}
}

func TestResolveFolderWithoutManifestFails(t *testing.T) {
	root := t.TempDir()
	writeAddon(t, root, Plugin, "bare", "")
	reg := NewRegistry(root, nil, nil)

	if _, ok := reg.Resolve(Plugin, "bare"); ok {
		t.Error("Resolve should fail for a folder without manifest")
	}
	if _, ok := reg.Deactivate("bare"); ok {
		t.Error("Deactivate should fail for a folder without manifest")
	}
}

func TestUninstall(t *testing.T) {
	root := t.TempDir()
	writeAddon(t, root, Theme, "dark", `{"id": "dark"}`)
	reg := NewRegistry(root, nil, nil)

	if _, ok := reg.Uninstall(Theme, "dark"); !ok {
		t.Fatal("Uninstall() = false, want true")
	}
	if _, err := os.Stat(filepath.Join(root, "themes", "dark")); !os.IsNotExist(err) {
		t.Error("theme folder should be removed")
	}
	if _, ok := reg.Uninstall(Theme, "dark"); ok {
		t.Error("second Uninstall() should return false")
	}
}

func TestUninstallByFolderNameReturnsManifestID(t *testing.T) {
	root := t.TempDir()
	writeAddon(t, root, Theme, "mytheme", `{"id": "abc", "name": "Mine"}`)
	writeAddon(t, root, Theme, "bare", "")
	reg := NewRegistry(root, nil, nil)

	rec, ok := reg.Uninstall(Theme, "mytheme")
	if !ok {
		t.Fatal("Uninstall(mytheme) = false, want true")
	}
	if rec.ID != "abc" || rec.FolderName != "mytheme" {
		t.Errorf("removed record = %+v, want id abc in folder mytheme", rec)
	}

	rec, ok = reg.Uninstall(Theme, "bare")
	if !ok || rec.ID != "" || rec.FolderName != "bare" {
		t.Errorf("Uninstall(bare) = %+v, %v; want folder-only record", rec, ok)
	}
}

func TestOrphanDenyEntryIgnored(t *testing.T) {
	root := t.TempDir()
	act := NewActivation([]string{"gone"})
	reg := NewRegistry(root, act, nil)

	if got := reg.ListInstalled(Plugin); len(got) != 0 {
		t.Errorf("ListInstalled() = %v, want empty", got)
	}
	if ids := act.DeniedIDs(); len(ids) != 1 || ids[0] != "gone" {
		t.Errorf("DeniedIDs() = %v, want [gone]", ids)
	}
}

func TestAddonDirRejectsTraversal(t *testing.T) {
	reg := NewRegistry(t.TempDir(), nil, nil)

	for _, id := range []string{"", "..", "../x", "a/b", `a\b`, "/abs"} {
		if _, err := reg.AddonDir(Plugin, id); err == nil {
			t.Errorf("AddonDir(%q) should fail", id)
		}
	}
	if _, err := reg.AddonDir(Kind("widget"), "x"); err == nil {
		t.Error("AddonDir with invalid kind should fail")
	}
}

func TestLintScript(t *testing.T) {
	if err := LintScript("ok.js", []byte("(function(){ console.log('hi'); })();")); err != nil {
		t.Errorf("LintScript() error: %v", err)
	}
	if err := LintScript("bad.js", []byte("function (")); err == nil {
		t.Error("LintScript() should fail on a syntax error")
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"plugin": Plugin, "Plugins": Plugin, "theme": Theme, "themes": Theme} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("widget"); err == nil {
		t.Error("ParseKind(widget) should fail")
	}
}
