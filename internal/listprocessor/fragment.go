package listprocessor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/Tangerg/wikigraph/internal/graph"
)

type fragmentMeta struct {
	RunID    string `json:"run_id"`
	Item     string `json:"item"`
	Category string `json:"category"`
}

// writeFragment persists frag to
// <dataDir>/<category>/<sanitized-item>/<sanitized-item>_<timestamp>.json,
// alongside a sibling .meta.json carrying the run-correlation id (spec §4.5
// step 2; SPEC_FULL.md §3.6 run-id tagging), then deletes any older
// fragments left in that directory.
func writeFragment(dataDir, category, item string, frag *graph.Graph, loc *time.Location, runID string, logger *slog.Logger) error {
	safeName := sanitizeFilename(item)
	dir := filepath.Join(dataDir, category, safeName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("listprocessor: create fragment dir: %w", err)
	}

	timestamp := time.Now().In(loc).Format(fragmentTimestampLayout)
	baseName := fmt.Sprintf("%s_%s", safeName, timestamp)
	jsonName := baseName + ".json"

	data, err := json.MarshalIndent(frag, "", "  ")
	if err != nil {
		return fmt.Errorf("listprocessor: marshal fragment: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, jsonName), data, 0o644); err != nil {
		return fmt.Errorf("listprocessor: write fragment: %w", err)
	}

	meta, err := json.MarshalIndent(fragmentMeta{RunID: runID, Item: item, Category: category}, "", "  ")
	if err == nil {
		_ = os.WriteFile(filepath.Join(dir, baseName+".meta.json"), meta, 0o644)
	}

	deleteOlderFragments(dir, jsonName, logger)
	return nil
}

var metaTimestampPattern = regexp.MustCompile(`_(\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2})\.meta\.json$`)

func deleteOlderFragments(dir, keep string, logger *slog.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	keepMeta := strippedExt(keep) + ".meta.json"
	for _, e := range entries {
		name := e.Name()
		if name == keep || name == keepMeta {
			continue
		}
		if !fragmentTimestampPattern.MatchString(name) && !metaTimestampPattern.MatchString(name) {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			logger.Warn("failed to delete stale fragment", "path", path, "error", err)
		}
	}
}

func strippedExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}
