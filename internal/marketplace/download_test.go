package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/company/betterteams/internal/addon"
)

func newTestDownloader(t *testing.T, handler http.Handler) (*Downloader, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	root := t.TempDir()
	reg := addon.NewRegistry(root, nil, nil)
	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	return NewDownloader(client, reg, WithAttempts(2), WithBackoff(0)), root
}

func TestDownload(t *testing.T) {
	d, root := newTestDownloader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plugins/download/demo/manifest.json":
			w.Write([]byte(`{"name": "Demo", "version": "1.0.0"}`))
		case "/plugins/download/demo/main.js":
			w.Write([]byte("console.log('demo');"))
		default:
			http.Error(w, "not found", 404)
		}
	}))

	if err := d.Download(context.Background(), addon.Plugin, "demo"); err != nil {
		t.Fatalf("Download() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "plugins", "demo", addon.ManifestFile))
	if err != nil {
		t.Fatalf("manifest should exist: %v", err)
	}
	var m addon.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m.ID != "demo" {
		t.Errorf("manifest id = %q, want %q", m.ID, "demo")
	}

	script, err := os.ReadFile(filepath.Join(root, "plugins", "demo", addon.ScriptFile))
	if err != nil {
		t.Fatalf("main.js should exist: %v", err)
	}
	if string(script) != "console.log('demo');" {
		t.Errorf("main.js = %q", script)
	}
}

func TestDownloadReplacesStaleFiles(t *testing.T) {
	d, root := newTestDownloader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "dark"}`))
	}))

	stale := filepath.Join(root, "themes", "dark", "old.css")
	if err := os.MkdirAll(filepath.Dir(stale), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := d.Download(context.Background(), addon.Theme, "dark"); err != nil {
			t.Fatalf("Download() #%d error: %v", i+1, err)
		}
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("reinstall should remove files from the previous version")
	}
	entries, err := os.ReadDir(filepath.Join(root, "themes", "dark"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("addon folder has %d entries, want 2", len(entries))
	}
}

func TestDownloadRetriesThenCleansUp(t *testing.T) {
	var scriptHits int32
	d, root := newTestDownloader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/main.js") {
			atomic.AddInt32(&scriptHits, 1)
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"id": "flaky"}`))
	}))

	err := d.Download(context.Background(), addon.Plugin, "flaky")
	if err == nil {
		t.Fatal("Download() should fail")
	}
	if got := atomic.LoadInt32(&scriptHits); got != 2 {
		t.Errorf("main.js requests = %d, want 2", got)
	}
	if _, statErr := os.Stat(filepath.Join(root, "plugins", "flaky")); !os.IsNotExist(statErr) {
		t.Error("failed download should leave no folder behind")
	}
}

func TestDownloadSucceedsOnSecondAttempt(t *testing.T) {
	var manifestHits int32
	d, root := newTestDownloader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/manifest.json") && atomic.AddInt32(&manifestHits, 1) == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id": "retry"}`))
	}))

	if err := d.Download(context.Background(), addon.Plugin, "retry"); err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "plugins", "retry", addon.ScriptFile)); err != nil {
		t.Errorf("main.js should exist: %v", err)
	}
}

func TestDownloadRejectsPathTraversal(t *testing.T) {
	d, _ := newTestDownloader(t, http.NotFoundHandler())

	for _, id := range []string{"../escape", "a/b", ""} {
		if err := d.Download(context.Background(), addon.Plugin, id); err == nil {
			t.Errorf("Download(%q) should fail", id)
		}
	}
}
