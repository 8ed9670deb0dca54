package wikiclient

import (
	"net/http"
	"time"
)

// newImpersonatingClient builds the HTTP client used for Baidu Baike probes.
// The Python original used curl_cffi's impersonate="chrome110" to present a
// real browser's TLS/JA3 fingerprint; no Go library in this lineage offers
// that (see DESIGN.md / SPEC_FULL.md §3.10). This client instead presents a
// realistic browser User-Agent and Accept-Language set over a standard
// net/http.Transport — a weaker anti-throttling measure, paired with the
// spec-mandated randomized post-request delay in checkGenericURL.
func newImpersonatingClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &browserHeaderTransport{
			base: http.DefaultTransport,
		},
	}
}

type browserHeaderTransport struct {
	base http.RoundTripper
}

func (t *browserHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	return t.base.RoundTrip(req)
}
