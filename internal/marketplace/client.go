// Package marketplace talks to the remote addon catalog and downloads
// packages into the local addon layout.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/company/betterteams/internal/addon"
	"github.com/company/betterteams/internal/config"
)

const maxResponseSize = 10 << 20 // 10 MB

// Option configures a Client.
type Option func(*Client)

// Client fetches catalogs and package files from the marketplace.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	cache      *Cache
	log        *slog.Logger
}

// NewClient creates a new marketplace client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    config.DefaultMarketplaceURL,
		userAgent:  "betterteams",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      NewCache(5 * time.Minute),
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithBaseURL sets the catalog base, e.g. https://api.example.com/api/betterteams.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = NewCache(ttl) }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) catalogURL(kind addon.Kind) string {
	return c.baseURL + "/" + kind.Dir()
}

func (c *Client) fileURL(kind addon.Kind, id, filename string) string {
	return fmt.Sprintf("%s/download/%s/%s", c.catalogURL(kind), url.PathEscape(id), url.PathEscape(filename))
}

// FetchCatalog fetches and parses the catalog for kind.
func (c *Client) FetchCatalog(ctx context.Context, kind addon.Kind) ([]addon.Record, error) {
	if cached, ok := c.cache.GetCatalog(kind); ok {
		return cached, nil
	}

	data, err := c.get(ctx, c.catalogURL(kind))
	if err != nil {
		return nil, fmt.Errorf("fetching %s catalog: %w", kind, err)
	}

	var listings []Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("parsing %s catalog: %w", kind, err)
	}

	records := make([]addon.Record, 0, len(listings))
	for _, l := range listings {
		if l.ID == "" {
			c.log.Debug("ignoring catalog entry without id", "kind", kind, "name", l.Name)
			continue
		}
		records = append(records, l.Record(kind))
	}

	c.cache.SetCatalog(kind, records)
	return records, nil
}

// FetchAvailable is FetchCatalog for callers that treat an unreachable
// marketplace as an empty one.
func (c *Client) FetchAvailable(ctx context.Context, kind addon.Kind) []addon.Record {
	records, err := c.FetchCatalog(ctx, kind)
	if err != nil {
		c.log.Warn("marketplace unavailable", "kind", kind, "err", err)
		return []addon.Record{}
	}
	return records
}

// Invalidate forgets cached catalogs so the next fetch hits the network.
func (c *Client) Invalidate() {
	c.cache.Invalidate()
}

// DownloadFile downloads one file of a package.
func (c *Client) DownloadFile(ctx context.Context, kind addon.Kind, id, filename string) ([]byte, error) {
	return c.get(ctx, c.fileURL(kind, id, filename))
}

// Ping checks the catalog endpoint answers at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, c.catalogURL(addon.Plugin))
	return err
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}

	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "text/html") {
		return nil, fmt.Errorf("received HTML response from %s; check the marketplace URL", url)
	}

	return data, nil
}
