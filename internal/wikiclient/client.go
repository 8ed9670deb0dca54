// Package wikiclient fetches wikitext, resolves Q-codes and redirects, and
// classifies link status against Wikipedia, Wikidata, and the Baidu
// Baike / China Digital Times fallbacks (spec §4.2).
package wikiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Tangerg/wikigraph/internal/chinese"
	"github.com/Tangerg/wikigraph/internal/ratelimit"
)

// Status is a link-status classification result (spec §4.2).
type Status string

const (
	StatusOK                Status = "OK"
	StatusSimpTradRedirect   Status = "SIMP_TRAD_REDIRECT"
	StatusRedirect           Status = "REDIRECT"
	StatusDisambig           Status = "DISAMBIG"
	StatusNoPage             Status = "NO_PAGE"
	StatusError              Status = "ERROR"
	StatusBaidu              Status = "BAIDU"
	StatusCDT                Status = "CDT"
)

// Config configures a Client's endpoints and fallback behavior.
type Config struct {
	UserAgent     string
	BaiduBaseURL  string // default https://baike.baidu.com/item/
	CDTBaseURL    string // default https://chinadigitaltimes.net/space/
	CacheDir      string
	HTTPTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaiduBaseURL == "" {
		c.BaiduBaseURL = "https://baike.baidu.com/item/"
	}
	if c.CDTBaseURL == "" {
		c.CDTBaseURL = "https://chinadigitaltimes.net/space/"
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 20 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "wikigraph/1.0 (+https://github.com/Tangerg/wikigraph)"
	}
	return c
}

// ListUpdater lets the client report a title's redirect target back to the
// watch-list (spec §4.2 getQcode step 5: "call ListStore.updateTitle").
// internal/liststore.Store satisfies this.
type ListUpdater interface {
	UpdateTitle(oldTitle, newTitle string) error
}

// Client is the WikiClient component: two persistent caches plus the
// Wikipedia/Wikidata/fallback operations of spec §4.2.
type Client struct {
	cfg    Config
	logger *slog.Logger
	http   *http.Client
	cffi   *http.Client // the "browser-impersonating" client for Baidu probes
	conv   *chinese.Converter
	pace   *ratelimit.WikiLimiter
	list   ListUpdater

	mu             sync.Mutex
	qcodeCache     map[string][]string      // Q -> titles
	qcodeCacheDirty bool
	titleToQcode   map[string]string        // reverse map, built at load
	linkCache      map[string]linkCacheEntry // title -> status
	linkCacheDirty bool
}

type linkCacheEntry struct {
	Status    Status `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

// New constructs a Client, loading both caches from disk.
func New(logger *slog.Logger, conv *chinese.Converter, pace *ratelimit.WikiLimiter, list ListUpdater, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:    cfg,
		logger: logger,
		conv:   conv,
		pace:   pace,
		list:   list,
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
		cffi:   newImpersonatingClient(cfg.HTTPTimeout),
	}

	qc, err := loadJSONCache[map[string][]string](c.qcodeCachePath())
	if err != nil {
		return nil, err
	}
	c.qcodeCache = qc
	c.titleToQcode = buildReverseCache(qc)

	lc, err := loadLinkCache(c.linkCachePath())
	if err != nil {
		return nil, err
	}
	c.linkCache = lc

	return c, nil
}

func (c *Client) qcodeCachePath() string { return filepath.Join(c.cfg.CacheDir, "qcode_cache.json") }
func (c *Client) linkCachePath() string  { return filepath.Join(c.cfg.CacheDir, "wiki_link_status_cache.json") }

func buildReverseCache(qcodeCache map[string][]string) map[string]string {
	reverse := make(map[string]string)
	for qcode, titles := range qcodeCache {
		for _, title := range titles {
			reverse[title] = qcode
		}
	}
	return reverse
}

func loadJSONCache[T any](path string) (T, error) {
	var zero T
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, nil
		}
		return zero, nil // corrupt cache is non-fatal, mirrors _load_cache
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, nil
	}
	return out, nil
}

func loadLinkCache(path string) (map[string]linkCacheEntry, error) {
	m, err := loadJSONCache[map[string]linkCacheEntry](path)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = make(map[string]linkCacheEntry)
	}
	return m, nil
}

// SaveCaches persists both caches if they have pending ("dirty") changes,
// mirroring save_caches.
func (c *Client) SaveCaches() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.qcodeCacheDirty {
		if err := writeJSONCache(c.qcodeCachePath(), c.qcodeCache); err != nil {
			return fmt.Errorf("wikiclient: save qcode cache: %w", err)
		}
		c.qcodeCacheDirty = false
	}
	if c.linkCacheDirty {
		if err := writeJSONCache(c.linkCachePath(), c.linkCache); err != nil {
			return fmt.Errorf("wikiclient: save link cache: %w", err)
		}
		c.linkCacheDirty = false
	}
	return nil
}

// PruneStaleLinkCache removes link-status cache entries older than maxAge,
// returning the number removed (spec §4.7 step 7, "Stale-cache GC"). Entries
// with an unparsable timestamp are treated as stale and removed.
func (c *Client) PruneStaleLinkCache(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for title, entry := range c.linkCache {
		t, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil || t.Before(cutoff) {
			delete(c.linkCache, title)
			removed++
		}
	}
	if removed > 0 {
		c.linkCacheDirty = true
	}
	return removed
}

func writeJSONCache(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// wikiAPIURL builds the action=query endpoint for a MediaWiki language
// edition, e.g. https://zh.wikipedia.org/w/api.php.
func wikiAPIURL(lang string) string {
	return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
}

func buildRawURL(lang, title string) string {
	u := url.URL{
		Scheme:   "https",
		Host:     lang + ".wikipedia.org",
		Path:     "/w/index.php",
		RawQuery: "title=" + url.QueryEscape(title) + "&action=raw",
	}
	return u.String()
}

var redirectLinkPattern = regexp.MustCompile(`\[\[(.*?)\]\]`)
var disambigMarkers = []string{"{{disambig", "{{hndis"}

func startsWithRedirectMarker(content string) bool {
	lowered := strings.ToLower(strings.TrimSpace(content))
	return strings.HasPrefix(lowered, "#redirect") || strings.HasPrefix(lowered, "#重定向")
}

func extractRedirectTarget(content string) (string, bool) {
	m := redirectLinkPattern.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	target := strings.TrimSpace(m[1])
	if i := strings.Index(target, "#"); i >= 0 {
		target = target[:i]
	}
	return target, true
}

func containsDisambigMarker(loweredContent string) bool {
	for _, marker := range disambigMarkers {
		if strings.Contains(loweredContent, marker) {
			return true
		}
	}
	return false
}

// withPacing acquires the leaky-bucket/semaphore pair around fn, mirroring
// every @wiki_sync_limiter.limit-decorated method in the original.
func (c *Client) withPacing(ctx context.Context, fn func() error) error {
	if err := c.pace.Acquire(ctx); err != nil {
		return err
	}
	defer c.pace.Release()
	return fn()
}
