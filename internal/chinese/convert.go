// Package chinese wraps simplified/traditional Chinese conversion, needed by
// WikiClient's zh-retry-on-traditional lookup, wikitext normalization,
// ListStore's simplified-form dedup, and Maintainer's list-name reconciliation
// (spec §4.2, §4.4, §4.7). No OpenCC-equivalent library appears anywhere in
// this module's lineage; gocc is named directly (see DESIGN.md §internal/chinese).
package chinese

import (
	"fmt"
	"strings"
	"sync"

	"github.com/liuzl/gocc"
)

// Converter performs simplified<->traditional conversion, mirroring the
// Python original's two OpenCC instances (OpenCC('t2s'), OpenCC('s2t')).
type Converter struct {
	mu  sync.Mutex
	t2s *gocc.OpenCC
	s2t *gocc.OpenCC
}

// New builds a Converter, initializing both conversion directions eagerly so
// later calls never pay model-load latency mid-pipeline.
func New() (*Converter, error) {
	t2s, err := gocc.New("t2s")
	if err != nil {
		return nil, fmt.Errorf("chinese: load t2s: %w", err)
	}
	s2t, err := gocc.New("s2t")
	if err != nil {
		return nil, fmt.Errorf("chinese: load s2t: %w", err)
	}
	return &Converter{t2s: t2s, s2t: s2t}, nil
}

// ToSimplified converts traditional Chinese text to simplified.
func (c *Converter) ToSimplified(text string) (string, error) {
	if text == "" {
		return "", nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t2s.Convert(text)
}

// ToTraditional converts simplified Chinese text to traditional.
func (c *Converter) ToTraditional(text string) (string, error) {
	if text == "" {
		return "", nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s2t.Convert(text)
}

// SimplifiedEqual reports whether a and b denote the same title once both
// are normalized to simplified form and whitespace/underscore differences
// are ignored — the "Simplified-form dedup" comparator from the Glossary.
func (c *Converter) SimplifiedEqual(a, b string) bool {
	na, err := c.ToSimplified(normalize(a))
	if err != nil {
		na = normalize(a)
	}
	nb, err := c.ToSimplified(normalize(b))
	if err != nil {
		nb = normalize(b)
	}
	return na == nb
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
}
