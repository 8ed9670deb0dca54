// Package listprocessor is the ListProcessor component (spec §4.5): it
// screens the watch-list by freshness and a weighted sample, fetches and
// parses the selected entries, and writes one fragment JSON per entity.
package listprocessor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tangerg/wikigraph/internal/liststore"
	"github.com/Tangerg/wikigraph/internal/llm"
	"github.com/Tangerg/wikigraph/internal/pool"
	"github.com/Tangerg/wikigraph/pkg/safe"
)

// WikiClient is the subset of wikiclient.Client that ListProcessor calls,
// narrowed to an interface so tests can substitute a deterministic stub.
type WikiClient interface {
	GetLatestRevisionTime(ctx context.Context, title, lang string) (time.Time, error)
	GetWikitext(ctx context.Context, title, lang string) (wikitext, finalTitle string, err error)
}

// Config bounds ListProcessor's freshness policy, sampling, and
// concurrency (spec §4.5, §9's named constants).
type Config struct {
	DataDir  string
	Timezone *time.Location

	ProbStartDay   int
	ProbEndDay     int
	ProbStartValue float64
	ProbEndValue   float64

	MaxListItemsToCheck int
	MaxListItemsPerRun  int
	SampleWeights       WeightParams

	ScreenConcurrency int
	PoolBackend       pool.Backend
}

func (c Config) location() *time.Location {
	if c.Timezone == nil {
		return time.UTC
	}
	return c.Timezone
}

// DefaultConfig mirrors config.py's PROB_* constants and a 1/12..0.9 ramp.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:             dataDir,
		Timezone:            time.UTC,
		ProbStartDay:        7,
		ProbEndDay:          30,
		ProbStartValue:      1.0 / 12.0,
		ProbEndValue:        0.9,
		MaxListItemsToCheck: 200,
		MaxListItemsPerRun:  30,
		SampleWeights:       WeightParams{MinW: 1, MaxW: 10, Exponent: 2},
		ScreenConcurrency:   32,
		PoolBackend:         pool.Ants,
	}
}

// Processor is the ListProcessor component.
type Processor struct {
	logger    *slog.Logger
	wiki      WikiClient
	llmSvc    llm.ServiceAPI
	cfg       Config
	pageviews PageviewsCache
}

// New constructs a Processor. pageviews may be nil, in which case sampling
// falls back to uniform random selection.
func New(logger *slog.Logger, wiki WikiClient, llmSvc llm.ServiceAPI, cfg Config, pageviews PageviewsCache) *Processor {
	return &Processor{logger: logger, wiki: wiki, llmSvc: llmSvc, cfg: cfg, pageviews: pageviews}
}

type candidate struct {
	title    string
	category string
	lang     string
}

// Run executes one full ListProcessor pass over categories (as returned by
// liststore.Store.Categories): narrow, screen, sample, fetch+parse+write.
// Per-item errors are caught and logged; they never fail the run (spec §4.5
// step 3).
func (p *Processor) Run(ctx context.Context, categories map[string][]liststore.Entry) error {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	var universe []candidate
	for cat, entries := range categories {
		for _, e := range entries {
			if e.IsComment {
				continue
			}
			universe = append(universe, candidate{title: e.DisplayName, category: cat, lang: e.Lang})
		}
	}
	if len(universe) == 0 {
		logger.Info("watch-list empty, nothing to process")
		return nil
	}

	narrowed := p.sampleCandidates(universe, p.cfg.MaxListItemsToCheck)
	logger.Info("narrowed candidate pool", "universe", len(universe), "narrowed", len(narrowed))

	eligible := p.screen(ctx, narrowed)
	logger.Info("pre-screened candidates", "narrowed", len(narrowed), "eligible", len(eligible))

	selected := p.sampleCandidates(eligible, p.cfg.MaxListItemsPerRun)
	logger.Info("selected candidates for this run", "eligible", len(eligible), "selected", len(selected))

	workPool, err := pool.New(p.cfg.PoolBackend, p.cfg.ScreenConcurrency)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, c := range selected {
		c := c
		wg.Add(1)
		task := safe.WithRecover(func() {
			defer wg.Done()
			p.processOne(ctx, c, runID)
		}, func(err error) {
			logger.Error("panic while processing item", "item", c.title, "error", err)
		})
		if err := workPool.Submit(task); err != nil {
			wg.Done()
			logger.Error("failed to submit item to worker pool", "item", c.title, "error", err)
		}
	}
	wg.Wait()

	logger.Info("list processing run complete", "processed", len(selected))
	return nil
}

// sampleCandidates narrows pool to at most n entries using the pageviews
// cache when available (spec §4.5 Sampling).
func (p *Processor) sampleCandidates(pool []candidate, n int) []candidate {
	if n <= 0 || len(pool) <= n {
		return pool
	}
	titles := make([]string, len(pool))
	byTitle := make(map[string]candidate, len(pool))
	for i, c := range pool {
		titles[i] = c.title
		byTitle[c.title] = c
	}
	picked := sampleWeighted(titles, p.pageviews, n, p.cfg.SampleWeights)
	out := make([]candidate, 0, len(picked))
	for _, t := range picked {
		out = append(out, byTitle[t])
	}
	return out
}

// screen fans shouldProcess out over a worker pool (spec §4.5 step 1, ~32
// workers, each making at most one wiki revision-time call).
func (p *Processor) screen(ctx context.Context, candidates []candidate) []candidate {
	if len(candidates) == 0 {
		return nil
	}
	workPool, err := pool.New(p.cfg.PoolBackend, p.cfg.ScreenConcurrency)
	if err != nil {
		p.logger.Error("failed to build screening pool", "error", err)
		return nil
	}

	var mu sync.Mutex
	var eligible []candidate
	var wg sync.WaitGroup
	for _, c := range candidates {
		c := c
		wg.Add(1)
		task := safe.WithRecover(func() {
			defer wg.Done()
			if p.shouldProcess(ctx, c.title, c.category, c.lang) {
				mu.Lock()
				eligible = append(eligible, c)
				mu.Unlock()
			}
		}, func(err error) {
			p.logger.Error("panic during freshness screening", "item", c.title, "error", err)
		})
		if err := workPool.Submit(task); err != nil {
			wg.Done()
			p.logger.Error("failed to submit screening task", "item", c.title, "error", err)
		}
	}
	wg.Wait()
	return eligible
}

func (p *Processor) processOne(ctx context.Context, c candidate, runID string) {
	logger := p.logger.With("item", c.title, "category", c.category, "run_id", runID)

	wikitext, _, err := p.wiki.GetWikitext(ctx, c.title, c.lang)
	if err != nil {
		logger.Warn("failed to fetch wikitext, skipping", "error", err)
		return
	}
	if wikitext == "" {
		logger.Warn("empty wikitext, skipping")
		return
	}

	frag, err := p.llmSvc.ParseWikitext(ctx, wikitext)
	if err != nil {
		logger.Warn("parseWikitext failed, skipping", "error", err)
		return
	}
	if frag == nil || (len(frag.Nodes) == 0 && len(frag.Relationships) == 0) {
		logger.Warn("parser returned no structured data, skipping")
		return
	}

	if err := writeFragment(p.cfg.DataDir, c.category, c.title, frag, p.cfg.location(), runID, logger); err != nil {
		logger.Error("failed to persist fragment", "error", err)
		return
	}
	logger.Info("fragment written")
}
