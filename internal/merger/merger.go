// Package merger is the Merger component (spec §4.6): it folds fragment
// JSON files produced by ListProcessor into the master graph, resolving
// node identity through Wikidata Q-codes, name maps, and a temp-ID
// fallback, merging properties with LLMService, and deduplicating
// relationships by their canonical key.
package merger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Tangerg/wikigraph/internal/chinese"
	"github.com/Tangerg/wikigraph/internal/graph"
	"github.com/Tangerg/wikigraph/internal/liststore"
	"github.com/Tangerg/wikigraph/internal/llm"
	"github.com/Tangerg/wikigraph/internal/wikiclient"
)

// WikiClient is the subset of wikiclient.Client the Merger depends on.
type WikiClient interface {
	GetQcode(ctx context.Context, title, lang string) (qcode, finalTitle string, err error)
	CheckLinkStatus(ctx context.Context, title, lang string) (wikiclient.Status, string, error)
	SaveCaches() error
}

// Config configures Merger construction.
type Config struct {
	DataDir         string
	MasterGraphPath string
	ProcessedLogPath string
}

// Merger is the Merger component. It is not safe for concurrent Run calls —
// spec §4.6's state (nodes_map, name_to_id, relationship index) is mutated
// in place over the whole master-graph scan, matching GraphMerger's
// single-pass-per-invocation design.
type Merger struct {
	logger *slog.Logger
	wiki   WikiClient
	llmSvc llm.ServiceAPI
	list   *liststore.Store
	conv   *chinese.Converter
	cfg    Config
}

func New(logger *slog.Logger, wiki WikiClient, llmSvc llm.ServiceAPI, list *liststore.Store, conv *chinese.Converter, cfg Config) *Merger {
	return &Merger{logger: logger, wiki: wiki, llmSvc: llmSvc, list: list, conv: conv, cfg: cfg}
}

// state is the per-run working set, loaded once (spec §4.6 "State").
type state struct {
	nodesByID map[string]graph.Node
	nameToID  map[string]string
	relsByKey map[[3]string]graph.Relationship
	relOrder  [][3]string // first-seen order, so output relationship order is stable
}

func (m *Merger) loadState(g graph.Graph) *state {
	s := &state{
		nodesByID: make(map[string]graph.Node, len(g.Nodes)),
		nameToID:  make(map[string]string),
		relsByKey: make(map[[3]string]graph.Relationship, len(g.Relationships)),
	}
	for _, n := range g.Nodes {
		if n.ID == "" {
			continue
		}
		s.nodesByID[n.ID] = n
		for _, names := range n.Name {
			for _, name := range names {
				if name == "" {
					continue
				}
				if _, exists := s.nameToID[name]; !exists {
					s.nameToID[name] = n.ID
				}
			}
		}
	}
	for _, r := range g.Relationships {
		key := graph.CanonicalKey(r.Source, r.Target, r.Type)
		if _, exists := s.relsByKey[key]; !exists {
			s.relOrder = append(s.relOrder, key)
		}
		s.relsByKey[key] = r
	}
	return s
}

func (m *Merger) loadProcessedLog() (map[string]bool, error) {
	processed := make(map[string]bool)
	data, err := os.ReadFile(m.cfg.ProcessedLogPath)
	if err != nil {
		if os.IsNotExist(err) {
			return processed, nil
		}
		return nil, fmt.Errorf("merger: read processed log: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			processed[line] = true
		}
	}
	return processed, nil
}

func (m *Merger) appendProcessedLog(filenames []string) error {
	if len(filenames) == 0 {
		return nil
	}
	f, err := os.OpenFile(m.cfg.ProcessedLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("merger: open processed log: %w", err)
	}
	defer f.Close()
	for _, name := range filenames {
		if _, err := fmt.Fprintln(f, name); err != nil {
			return fmt.Errorf("merger: append processed log: %w", err)
		}
	}
	return nil
}

// discoverFragments walks the data directory for *.json fragment files not
// already in the processed log, skipping the .meta.json run-id sidecars
// this lineage writes alongside each fragment (spec §4.6 "Inputs").
func (m *Merger) discoverFragments(processed map[string]bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(m.cfg.DataDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".meta.json") {
			return nil
		}
		if processed[name] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("merger: walk data dir: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Run executes one full Merger pass (spec §4.6).
func (m *Merger) Run(ctx context.Context) error {
	master, err := graph.Load(m.logger, m.cfg.MasterGraphPath)
	if err != nil {
		return err
	}
	processed, err := m.loadProcessedLog()
	if err != nil {
		return err
	}
	fragments, err := m.discoverFragments(processed)
	if err != nil {
		return err
	}
	if len(fragments) == 0 {
		m.logger.Info("no new fragments to merge")
		return nil
	}
	m.logger.Info("merging fragments", "count", len(fragments))

	st := m.loadState(master)
	var processedThisRun []string
	for _, path := range fragments {
		if err := m.processFragment(ctx, st, path); err != nil {
			m.logger.Error("failed to process fragment, skipping", "path", path, "error", err)
			continue
		}
		processedThisRun = append(processedThisRun, filepath.Base(path))
	}

	result := graph.Graph{
		Nodes:         flattenNodes(st.nodesByID),
		Relationships: flattenRelationships(st),
	}
	if err := graph.Save(m.logger, m.cfg.MasterGraphPath, result); err != nil {
		return err
	}
	if err := m.appendProcessedLog(processedThisRun); err != nil {
		return err
	}
	if err := m.wiki.SaveCaches(); err != nil {
		m.logger.Warn("failed to save wiki client caches", "error", err)
	}
	m.logger.Info("merge run complete", "fragments_processed", len(processedThisRun))
	return nil
}

func flattenNodes(byID map[string]graph.Node) []graph.Node {
	out := make([]graph.Node, 0, len(byID))
	for _, n := range byID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func flattenRelationships(st *state) []graph.Relationship {
	out := make([]graph.Relationship, 0, len(st.relsByKey))
	for _, key := range st.relOrder {
		if r, ok := st.relsByKey[key]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (m *Merger) processFragment(ctx context.Context, st *state, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fragment: %w", err)
	}
	var frag graph.Graph
	if err := json.Unmarshal(data, &frag); err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}

	localIDs := make(map[string]string, len(frag.Nodes))
	for _, n := range frag.Nodes {
		m.mergeNode(ctx, st, n, localIDs)
	}
	for _, r := range frag.Relationships {
		m.mergeRelationship(ctx, st, r, localIDs)
	}
	return nil
}
