package wikiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GetQcode resolves a Wikipedia article title to its Wikidata Q-code and the
// API-resolved final title, retrying with the traditional-Chinese form on
// failure for zh (spec §4.2 getQcode). A disambiguation page yields empty
// strings and a nil error. The in-memory reverse map is consulted first.
func (c *Client) GetQcode(ctx context.Context, title, lang string) (qcode, finalTitle string, err error) {
	c.mu.Lock()
	if q, ok := c.titleToQcode[title]; ok {
		c.mu.Unlock()
		return q, title, nil
	}
	c.mu.Unlock()

	qcode, finalTitle, disambig, err := c.fetchQcodeFromAPI(ctx, title, lang)
	if err != nil {
		return "", "", err
	}
	if disambig {
		return "", "", nil
	}

	traditional := ""
	if qcode == "" && lang == "zh" {
		t, convErr := c.conv.ToTraditional(title)
		if convErr == nil && t != title {
			traditional = t
			c.logger.Info("qcode lookup falling back to traditional form", "title", title, "traditional", traditional)
			qcode, finalTitle, disambig, err = c.fetchQcodeFromAPI(ctx, traditional, lang)
			if err != nil {
				return "", "", err
			}
			if disambig {
				return "", "", nil
			}
		}
	}

	if qcode == "" {
		return "", "", nil
	}
	if finalTitle == "" {
		finalTitle = title
	}

	if finalTitle != title && c.list != nil {
		if err := c.list.UpdateTitle(title, finalTitle); err != nil {
			c.logger.Warn("list update after redirect failed", "old", title, "new", finalTitle, "error", err)
		}
	}

	c.mu.Lock()
	titles := c.qcodeCache[qcode]
	updated := false
	for _, t := range append([]string{title, finalTitle}, nonEmpty(traditional, title)...) {
		if !contains(titles, t) {
			titles = append(titles, t)
			c.titleToQcode[t] = qcode
			updated = true
		}
	}
	if updated {
		c.qcodeCache[qcode] = titles
		c.qcodeCacheDirty = true
	}
	c.mu.Unlock()

	return qcode, finalTitle, nil
}

func nonEmpty(s, skip string) []string {
	if s == "" || s == skip {
		return nil
	}
	return []string{s}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

type queryPagePropsResponse struct {
	Query struct {
		Redirects []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"redirects"`
		Pages []struct {
			Title      string `json:"title"`
			Missing    bool   `json:"missing"`
			PageProps  struct {
				WikibaseItem   string `json:"wikibase_item"`
				Disambiguation *struct{} `json:"disambiguation"`
			} `json:"pageprops"`
		} `json:"pages"`
	} `json:"query"`
}

// fetchQcodeFromAPI issues the pageprops lookup and reports the Q-code, the
// API-resolved final title (after server-side redirect following), and
// whether the page is a disambiguation page.
func (c *Client) fetchQcodeFromAPI(ctx context.Context, title, lang string) (qcode, finalTitle string, disambig bool, err error) {
	err = c.withPacing(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, wikiAPIURL(lang), nil)
		if err != nil {
			return err
		}
		q := url.Values{
			"action":        {"query"},
			"prop":          {"pageprops"},
			"ppprop":        {"wikibase_item|disambiguation"},
			"titles":        {title},
			"format":        {"json"},
			"formatversion": {"2"},
			"redirects":     {"1"},
		}
		req.URL.RawQuery = q.Encode()

		resp, err := c.http.Do(req)
		if err != nil {
			return nil // transient network error: spec §7, the call returns null/absent
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil
		}
		var parsed queryPagePropsResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil
		}
		if len(parsed.Query.Pages) == 0 || parsed.Query.Pages[0].Missing {
			return nil
		}
		page := parsed.Query.Pages[0]
		if page.PageProps.Disambiguation != nil {
			disambig = true
			return nil
		}
		qcode = page.PageProps.WikibaseItem
		finalTitle = page.Title
		if len(parsed.Query.Redirects) > 0 {
			finalTitle = parsed.Query.Redirects[len(parsed.Query.Redirects)-1].To
		}
		return nil
	})
	return qcode, finalTitle, disambig, err
}

// GetWikitext fetches the wikitext for title, following a simplified/
// traditional self-redirect once and converting zh content to simplified
// form (spec §4.2 getWikitext).
func (c *Client) GetWikitext(ctx context.Context, title, lang string) (wikitext, finalTitle string, err error) {
	current := title
	if _, resolved, qErr := c.GetQcode(ctx, title, lang); qErr == nil && resolved != "" {
		current = resolved
	}

	var content string
	err = c.withPacing(ctx, func() error {
		body, fetchErr := c.fetchRaw(ctx, buildRawURL(lang, current))
		if fetchErr != nil {
			return fetchErr
		}
		content = body
		return nil
	})
	if err != nil {
		return "", "", nil
	}

	if lang == "zh" {
		if startsWithRedirectMarker(content) {
			if target, ok := extractRedirectTarget(content); ok {
				simplifiedTarget, _ := c.conv.ToSimplified(target)
				simplifiedOriginal, _ := c.conv.ToSimplified(current)
				if normalizeForCompare(simplifiedTarget) == normalizeForCompare(simplifiedOriginal) {
					current = target
					err = c.withPacing(ctx, func() error {
						body, fetchErr := c.fetchRaw(ctx, buildRawURL(lang, current))
						if fetchErr != nil {
							return fetchErr
						}
						content = body
						return nil
					})
					if err != nil {
						return "", "", nil
					}
				}
			}
		}
		simplified, convErr := c.conv.ToSimplified(content)
		if convErr != nil {
			return "", "", fmt.Errorf("wikiclient: simplify wikitext: %w", convErr)
		}
		return simplified, current, nil
	}

	return content, current, nil
}

func normalizeForCompare(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", " "))
}

func (c *Client) fetchRaw(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("wikiclient: fetch %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetLatestRevisionTime returns the page's latest revision timestamp, or the
// zero time if unavailable (spec §4.2 getLatestRevisionTime).
func (c *Client) GetLatestRevisionTime(ctx context.Context, title, lang string) (time.Time, error) {
	var ts time.Time
	err := c.withPacing(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, wikiAPIURL(lang), nil)
		if err != nil {
			return err
		}
		req.URL.RawQuery = url.Values{
			"action":  {"query"},
			"prop":    {"revisions"},
			"titles":  {title},
			"rvlimit": {"1"},
			"rvprop":  {"timestamp"},
			"format":  {"json"},
			"formatversion": {"2"},
		}.Encode()

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn("revision lookup failed", "title", title, "lang", lang, "error", err)
			return nil
		}
		defer resp.Body.Close()

		var parsed struct {
			Query struct {
				Pages []struct {
					Revisions []struct {
						Timestamp string `json:"timestamp"`
					} `json:"revisions"`
				} `json:"pages"`
			} `json:"query"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil
		}
		if len(parsed.Query.Pages) == 0 || len(parsed.Query.Pages[0].Revisions) == 0 {
			return nil
		}
		t, err := time.Parse(time.RFC3339, parsed.Query.Pages[0].Revisions[0].Timestamp)
		if err == nil {
			ts = t
		}
		return nil
	})
	return ts, err
}

// CheckLinkStatus classifies title's status, cache-first, falling back to
// Baidu Baike / China Digital Times for zh titles absent from Wikipedia
// (spec §4.2 checkLinkStatus).
func (c *Client) CheckLinkStatus(ctx context.Context, title, lang string) (Status, string, error) {
	c.mu.Lock()
	if entry, ok := c.linkCache[title]; ok {
		c.mu.Unlock()
		return entry.Status, entry.Detail, nil
	}
	c.mu.Unlock()

	status, detail, err := c.checkWikiStatusAPI(ctx, title, lang)
	if err != nil {
		return "", "", err
	}

	if (status == StatusNoPage || status == StatusError) && lang == "zh" {
		if ok, _ := c.checkGenericURL(ctx, c.cfg.BaiduBaseURL, title, true); ok {
			status = StatusBaidu
		} else if ok, _ := c.checkGenericURL(ctx, c.cfg.CDTBaseURL, title, false); ok {
			status = StatusCDT
		}
	}

	if status != StatusNoPage && status != StatusError {
		c.mu.Lock()
		c.linkCache[title] = linkCacheEntry{Status: status, Detail: detail, Timestamp: time.Now().Format(time.RFC3339)}
		c.linkCacheDirty = true
		c.mu.Unlock()
	}

	return status, detail, nil
}

func (c *Client) checkWikiStatusAPI(ctx context.Context, title, lang string) (Status, string, error) {
	var status Status
	var detail string
	err := c.withPacing(ctx, func() error {
		encoded := url.QueryEscape(toWikiURLTitle(title))
		rawURL := fmt.Sprintf("https://%s.wikipedia.org/w/index.php?title=%s&action=raw", lang, encoded)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			status, detail = StatusError, err.Error()
			return nil
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			status = StatusNoPage
			return nil
		}
		if resp.StatusCode >= 400 {
			status, detail = StatusError, fmt.Sprintf("status %d", resp.StatusCode)
			return nil
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			status, detail = StatusError, err.Error()
			return nil
		}
		content := strings.TrimSpace(string(body))
		if content == "" {
			status = StatusNoPage
			return nil
		}

		if startsWithRedirectMarker(content) {
			target, ok := extractRedirectTarget(content)
			if !ok {
				status, detail = StatusError, "malformed redirect"
				return nil
			}
			if lang == "zh" {
				simplifiedTarget, _ := c.conv.ToSimplified(target)
				if normalizeForCompare(simplifiedTarget) == normalizeForCompare(title) {
					status, detail = StatusSimpTradRedirect, target
				} else {
					status, detail = StatusRedirect, target
				}
			} else {
				status, detail = StatusRedirect, target
			}
			return nil
		}

		if containsDisambigMarker(strings.ToLower(content)) {
			status = StatusDisambig
			return nil
		}
		status = StatusOK
		return nil
	})
	return status, detail, err
}

// toWikiURLTitle converts a title's spaces to underscores, as MediaWiki's
// URL scheme expects.
func toWikiURLTitle(s string) string {
	return strings.ReplaceAll(s, " ", "_")
}

// checkGenericURL probes whether a secondary-source page exists; for Baidu
// it uses the browser-impersonating client and the mandated randomized
// 1.0-2.5s post-request delay (spec §4.2 step 3).
func (c *Client) checkGenericURL(ctx context.Context, baseURL, title string, impersonate bool) (bool, error) {
	target := baseURL + url.QueryEscape(toWikiURLTitle(title))
	var ok bool
	err := c.withPacing(ctx, func() error {
		client := c.http
		if impersonate {
			client = c.cffi
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if impersonate {
			delay := 1.0 + rand.Float64()*1.5
			time.Sleep(time.Duration(delay * float64(time.Second)))
		}
		if err != nil {
			ok = false
			return nil
		}
		defer resp.Body.Close()
		ok = resp.StatusCode < 400
		return nil
	})
	return ok, err
}

// AuthoritativeStatus is the outcome of a single authoritative-title check
// (spec §4.2 getAuthoritativeTitleAndStatus / getAuthoritativeTitleByQcode).
type AuthoritativeStatus string

const (
	AuthoritativeOK        AuthoritativeStatus = "OK"
	AuthoritativeDisambig  AuthoritativeStatus = "DISAMBIG"
	AuthoritativeNotFound  AuthoritativeStatus = "NOT_FOUND"
	AuthoritativeError     AuthoritativeStatus = "ERROR"
)

// GetAuthoritativeTitleAndStatus resolves title's final API title and
// whether it is a disambiguation page, in a single call (spec §4.2). Used by
// maintenance to refresh names and prune pages that no longer resolve.
func (c *Client) GetAuthoritativeTitleAndStatus(ctx context.Context, title, lang string) (finalTitle string, status AuthoritativeStatus, err error) {
	_, resolved, disambig, fetchErr := c.fetchQcodeFromAPI(ctx, title, lang)
	if fetchErr != nil {
		return "", AuthoritativeError, fetchErr
	}
	if disambig {
		return "", AuthoritativeDisambig, nil
	}
	if resolved == "" {
		return "", AuthoritativeNotFound, nil
	}
	return resolved, AuthoritativeOK, nil
}

type wbGetEntitiesResponse struct {
	Entities map[string]struct {
		Sitelinks map[string]struct {
			Title string `json:"title"`
		} `json:"sitelinks"`
	} `json:"entities"`
}

// GetAuthoritativeTitleByQcode resolves qcode to its sitelink title for lang
// via Wikidata's wbgetentities, then verifies the target page still resolves
// cleanly (spec §4.2 getAuthoritativeTitleByQcode). Used by the master-graph
// name refresh maintenance step.
func (c *Client) GetAuthoritativeTitleByQcode(ctx context.Context, qcode, lang string) (title string, status AuthoritativeStatus, err error) {
	site := lang + "wiki"
	var sitelinkTitle string
	err = c.withPacing(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.wikidata.org/w/api.php", nil)
		if reqErr != nil {
			return reqErr
		}
		req.URL.RawQuery = url.Values{
			"action":        {"wbgetentities"},
			"ids":           {qcode},
			"props":         {"sitelinks"},
			"sitefilter":    {site},
			"format":        {"json"},
			"formatversion": {"2"},
		}.Encode()

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			return doErr
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("wikiclient: wbgetentities %s: status %d", qcode, resp.StatusCode)
		}
		var parsed wbGetEntitiesResponse
		if decErr := json.NewDecoder(resp.Body).Decode(&parsed); decErr != nil {
			return decErr
		}
		entity, ok := parsed.Entities[qcode]
		if !ok {
			return nil
		}
		link, ok := entity.Sitelinks[site]
		if !ok {
			return nil
		}
		sitelinkTitle = link.Title
		return nil
	})
	if err != nil {
		return "", AuthoritativeError, err
	}
	if sitelinkTitle == "" {
		return "", AuthoritativeNotFound, nil
	}

	finalTitle, pageStatus, err := c.GetAuthoritativeTitleAndStatus(ctx, sitelinkTitle, lang)
	if err != nil {
		return "", AuthoritativeError, err
	}
	if pageStatus != AuthoritativeOK {
		return "", pageStatus, nil
	}
	return finalTitle, AuthoritativeOK, nil
}
