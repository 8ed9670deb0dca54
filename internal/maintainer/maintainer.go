// Package maintainer is the Maintainer component (spec §4.7): an
// eight-step, idempotent deep-maintenance pass over the whole master graph
// and watch list — name refresh, type correction, relationship pruning,
// schema validation, an LLM single-relation audit, cache GC, and temp-ID
// upgrade.
package maintainer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Tangerg/wikigraph/internal/chinese"
	"github.com/Tangerg/wikigraph/internal/graph"
	"github.com/Tangerg/wikigraph/internal/liststore"
	"github.com/Tangerg/wikigraph/internal/llm"
	"github.com/Tangerg/wikigraph/internal/pool"
	"github.com/Tangerg/wikigraph/internal/wikiclient"
)

// WikiClient is the subset of wikiclient.Client the Maintainer depends on.
type WikiClient interface {
	GetQcode(ctx context.Context, title, lang string) (qcode, finalTitle string, err error)
	GetAuthoritativeTitleAndStatus(ctx context.Context, title, lang string) (finalTitle string, status wikiclient.AuthoritativeStatus, err error)
	GetAuthoritativeTitleByQcode(ctx context.Context, qcode, lang string) (title string, status wikiclient.AuthoritativeStatus, err error)
	PruneStaleLinkCache(maxAge time.Duration) int
	SaveCaches() error
}

// Config bounds every named constant the eight steps use (spec §9).
type Config struct {
	MasterGraphPath        string
	FalseRelationsCachePath string

	MasterGraphUpdateLimit int           // MASTER_GRAPH_UPDATE_LIMIT
	ListUpdateLimit        int           // LIST_UPDATE_LIMIT
	UpdateConcurrency      int           // MAX_UPDATE_WORKERS

	RelCleanNum            int           // REL_CLEAN_NUM
	RelCleanSkipDays       int           // REL_CLEAN_SKIP_DAYS
	RelCleanProbStartDays  int           // REL_CLEAN_PROB_START_DAYS
	RelCleanProbEndDays    int           // REL_CLEAN_PROB_END_DAYS
	RelCleanProbStartValue float64       // REL_CLEAN_PROB_START_VALUE
	RelCleanProbEndValue   float64       // REL_CLEAN_PROB_END_VALUE
	AuditBatchSize         int
	AuditMaxRounds         int
	AuditCooldown          time.Duration

	StaleCacheMaxAge time.Duration
	PoolBackend      pool.Backend
}

// DefaultConfig mirrors config.py's maintenance-related constants.
func DefaultConfig(masterGraphPath, falseRelCachePath string) Config {
	return Config{
		MasterGraphPath:         masterGraphPath,
		FalseRelationsCachePath: falseRelCachePath,
		MasterGraphUpdateLimit:  500,
		ListUpdateLimit:         500,
		UpdateConcurrency:       16,
		RelCleanNum:             300,
		RelCleanSkipDays:        30,
		RelCleanProbStartDays:   30,
		RelCleanProbEndDays:     90,
		RelCleanProbStartValue:  0.1,
		RelCleanProbEndValue:    1.0,
		AuditBatchSize:          30,
		AuditMaxRounds:          20,
		AuditCooldown:           30 * time.Second,
		StaleCacheMaxAge:        30 * 24 * time.Hour,
		PoolBackend:             pool.Ants,
	}
}

// Maintainer is the Maintainer component.
type Maintainer struct {
	logger *slog.Logger
	wiki   WikiClient
	llmSvc llm.ServiceAPI
	list   *liststore.Store
	conv   *chinese.Converter
	cfg    Config
}

func New(logger *slog.Logger, wiki WikiClient, llmSvc llm.ServiceAPI, list *liststore.Store, conv *chinese.Converter, cfg Config) *Maintainer {
	return &Maintainer{logger: logger, wiki: wiki, llmSvc: llmSvc, list: list, conv: conv, cfg: cfg}
}

type cacheEntry struct {
	Timestamp string `json:"timestamp"`
}

func (m *Maintainer) loadFalseRelCache() (map[string]cacheEntry, error) {
	data, err := os.ReadFile(m.cfg.FalseRelationsCachePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]cacheEntry{}, nil
		}
		m.logger.Warn("failed to read false-relations cache, starting empty", "error", err)
		return map[string]cacheEntry{}, nil
	}
	var out map[string]cacheEntry
	if err := json.Unmarshal(data, &out); err != nil {
		m.logger.Warn("failed to parse false-relations cache, starting empty", "error", err)
		return map[string]cacheEntry{}, nil
	}
	return out, nil
}

func (m *Maintainer) saveFalseRelCache(cache map[string]cacheEntry) error {
	if err := os.MkdirAll(filepath.Dir(m.cfg.FalseRelationsCachePath), 0o755); err != nil {
		return fmt.Errorf("maintainer: mkdir false-relations cache dir: %w", err)
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("maintainer: marshal false-relations cache: %w", err)
	}
	return os.WriteFile(m.cfg.FalseRelationsCachePath, data, 0o644)
}

// Run executes one complete eight-step maintenance pass (spec §4.7).
func (m *Maintainer) Run(ctx context.Context) error {
	g, err := graph.Load(m.logger, m.cfg.MasterGraphPath)
	if err != nil {
		return err
	}
	falseRelCache, err := m.loadFalseRelCache()
	if err != nil {
		return err
	}

	m.logger.Info("maintenance step 1/8: master-graph name refresh")
	g = m.refreshMasterGraphNames(ctx, g)

	m.logger.Info("maintenance step 2/8: watch-list refresh")
	if m.list != nil {
		m.refreshWatchList(ctx)
	}

	m.logger.Info("maintenance step 3/8: type correction from list")
	if m.list != nil {
		g.Nodes = m.correctTypesFromList(g.Nodes)
	}

	m.logger.Info("maintenance step 4/8: prune descriptionless relationships")
	g.Relationships = pruneDescriptionlessRelationships(g.Relationships)

	m.logger.Info("maintenance step 5/8: schema validation")
	cleaned, report := graph.ValidateAndClean(g)
	for _, issue := range report.Issues {
		m.logger.Warn("validation issue", "kind", issue.Kind, "id", issue.ID, "reason", issue.Reason)
	}
	g = cleaned

	m.logger.Info("maintenance step 6/8: single-relation LLM audit")
	g.Relationships, falseRelCache = m.auditRelationships(ctx, g.Nodes, g.Relationships, falseRelCache)

	m.logger.Info("maintenance step 7/8: stale-cache GC")
	removed := m.wiki.PruneStaleLinkCache(m.cfg.StaleCacheMaxAge)
	m.logger.Info("pruned stale link-cache entries", "count", removed)

	m.logger.Info("maintenance step 8/8: temp-id upgrade")
	g.Nodes, g.Relationships = m.upgradeTempIDs(ctx, g.Nodes, g.Relationships)

	if err := graph.Save(m.logger, m.cfg.MasterGraphPath, g); err != nil {
		return err
	}
	if err := m.saveFalseRelCache(falseRelCache); err != nil {
		m.logger.Warn("failed to save false-relations cache", "error", err)
	}
	if err := m.wiki.SaveCaches(); err != nil {
		m.logger.Warn("failed to save wiki client caches", "error", err)
	}
	m.logger.Info("maintenance pass complete", "nodes", len(g.Nodes), "relationships", len(g.Relationships))
	return nil
}
