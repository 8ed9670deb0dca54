package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrMasterGraphIO marks failures persisting the master graph, which spec §7
// treats as fatal: "I/O failure on master graph or caches: fatal; process
// terminates so no partial state is observed downstream."
var ErrMasterGraphIO = errors.New("master graph I/O failure")

// Load reads the master graph from path. A missing or corrupt file is not an
// error here — it logs a warning and returns an empty, structurally valid
// graph, matching graph_io.py's load_master_graph.
func Load(logger *slog.Logger, path string) (Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("master graph file does not exist, starting from an empty graph", "path", path)
			return Graph{Nodes: []Node{}, Relationships: []Relationship{}}, nil
		}
		return Graph{}, fmt.Errorf("%w: read %s: %w", ErrMasterGraphIO, path, err)
	}

	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		logger.Warn("master graph file is corrupt, starting from an empty graph", "path", path, "error", err)
		return Graph{Nodes: []Node{}, Relationships: []Relationship{}}, nil
	}
	if g.Nodes == nil {
		g.Nodes = []Node{}
	}
	if g.Relationships == nil {
		g.Relationships = []Relationship{}
	}
	logger.Info("loaded master graph", "path", path, "nodes", len(g.Nodes), "relationships", len(g.Relationships))
	return g, nil
}

// Save writes the master graph to path as indented, non-ASCII-escaped JSON,
// creating parent directories as needed. Failures here are fatal per spec §7
// — the caller is expected to propagate the error up to process exit.
func Save(logger *slog.Logger, path string, g Graph) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", ErrMasterGraphIO, filepath.Dir(path), err)
	}

	// json.Encoder with SetEscapeHTML(false) mirrors Python's
	// json.dump(..., ensure_ascii=False): Chinese text is written as UTF-8,
	// not \uXXXX-escaped.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("%w: marshal: %w", ErrMasterGraphIO, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		logger.Error("failed to save master graph", "path", path, "error", err)
		return fmt.Errorf("%w: write %s: %w", ErrMasterGraphIO, path, err)
	}
	logger.Info("saved master graph", "path", path, "nodes", len(g.Nodes), "relationships", len(g.Relationships))
	return nil
}
