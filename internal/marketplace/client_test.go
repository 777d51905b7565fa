package marketplace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/company/betterteams/internal/addon"
)

const pluginCatalog = `[
  {"id": "demo", "name": "Demo", "description": "A demo", "version": "1.2.0", "author": "kio", "repository": "https://example.com/demo"},
  {"id": "", "name": "Broken"},
  {"id": "bare"}
]`

func setupTestServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/plugins", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(pluginCatalog))
	})
	mux.HandleFunc("/api/themes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>login</html>"))
	})

	return httptest.NewServer(mux)
}

func TestFetchCatalog(t *testing.T) {
	var hits int32
	server := setupTestServer(t, &hits)
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL+"/api/"),
		WithHTTPClient(server.Client()),
	)

	ctx := context.Background()
	records, err := client.FetchCatalog(ctx, addon.Plugin)
	if err != nil {
		t.Fatalf("FetchCatalog() error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("FetchCatalog() len = %d, want 2", len(records))
	}
	if records[0].ID != "demo" || records[0].Version != "1.2.0" {
		t.Errorf("records[0] = %+v, want demo 1.2.0", records[0])
	}
	if records[1].Name != addon.DefaultName || records[1].Version != addon.DefaultVersion {
		t.Errorf("records[1] defaults not applied: %+v", records[1])
	}
	if records[0].Kind != addon.Plugin {
		t.Errorf("Kind = %q, want plugin", records[0].Kind)
	}

	// Second call is served from cache
	if _, err := client.FetchCatalog(ctx, addon.Plugin); err != nil {
		t.Fatalf("cached FetchCatalog() error: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("catalog requests = %d, want 1", got)
	}

	client.Invalidate()
	if _, err := client.FetchCatalog(ctx, addon.Plugin); err != nil {
		t.Fatalf("FetchCatalog() after Invalidate error: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("catalog requests = %d, want 2", got)
	}
}

func TestFetchCatalogRejectsHTML(t *testing.T) {
	server := setupTestServer(t, nil)
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL+"/api"), WithHTTPClient(server.Client()))

	if _, err := client.FetchCatalog(context.Background(), addon.Theme); err == nil {
		t.Fatal("FetchCatalog() should reject HTML responses")
	}
	if got := client.FetchAvailable(context.Background(), addon.Theme); got == nil || len(got) != 0 {
		t.Errorf("FetchAvailable() = %v, want empty non-nil", got)
	}
}

func TestFetchAvailableUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(
		WithBaseURL(url),
		WithHTTPClient(&http.Client{Timeout: time.Second}),
	)

	for _, kind := range addon.Kinds {
		if got := client.FetchAvailable(context.Background(), kind); len(got) != 0 {
			t.Errorf("FetchAvailable(%s) = %v, want empty", kind, got)
		}
	}
}

func TestFindUpdates(t *testing.T) {
	installed := []addon.Record{
		{ID: "a", Name: "A", Version: "1.0.0", Kind: addon.Plugin},
		{ID: "b", Name: "B", Version: "2.0.0", Kind: addon.Plugin},
		{ID: "c", Name: "C", Version: "weird", Kind: addon.Plugin},
		{ID: "local", Name: "Local", Version: "1.0.0", Kind: addon.Plugin},
	}
	catalog := []addon.Record{
		{ID: "a", Version: "1.1.0"},
		{ID: "b", Version: "1.9.9"},
		{ID: "c", Version: "other"},
	}

	updates := FindUpdates(installed, catalog)

	if len(updates) != 2 {
		t.Fatalf("FindUpdates() len = %d, want 2: %+v", len(updates), updates)
	}
	if updates[0].ID != "a" || updates[0].Available != "1.1.0" {
		t.Errorf("updates[0] = %+v, want a -> 1.1.0", updates[0])
	}
	if updates[1].ID != "c" {
		t.Errorf("updates[1].ID = %q, want c", updates[1].ID)
	}
}
