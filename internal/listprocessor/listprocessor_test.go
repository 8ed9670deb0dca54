package listprocessor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tangerg/wikigraph/internal/graph"
	"github.com/Tangerg/wikigraph/internal/liststore"
	"github.com/Tangerg/wikigraph/internal/llm/llmtest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubWiki struct {
	revisionTime time.Time
	revisionErr  error
	wikitext     string
	wikitextErr  error
}

func (w *stubWiki) GetLatestRevisionTime(_ context.Context, _, _ string) (time.Time, error) {
	return w.revisionTime, w.revisionErr
}

func (w *stubWiki) GetWikitext(_ context.Context, title, _ string) (string, string, error) {
	return w.wikitext, title, w.wikitextErr
}

func writeFragmentFile(t *testing.T, dataDir, category, item, timestamp string) {
	t.Helper()
	dir := filepath.Join(dataDir, category, sanitizeFilename(item))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	name := sanitizeFilename(item) + "_" + timestamp + ".json"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`{"nodes":[],"relationships":[]}`), 0o644))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "A_B_C", sanitizeFilename(`A/B\C`))
	assert.Equal(t, "a_b", sanitizeFilename("a?b"))
}

func TestShouldProcess_NeverProcessedIsYes(t *testing.T) {
	dataDir := t.TempDir()
	p := &Processor{logger: discardLogger(), wiki: &stubWiki{}, cfg: DefaultConfig(dataDir)}
	assert.True(t, p.shouldProcess(context.Background(), "Example", "person", "zh"))
}

func TestShouldProcess_WithinCooldownIsNo(t *testing.T) {
	dataDir := t.TempDir()
	timestamp := time.Now().Add(-3 * 24 * time.Hour).Format(fragmentTimestampLayout)
	writeFragmentFile(t, dataDir, "person", "Example", timestamp)

	cfg := DefaultConfig(dataDir)
	p := &Processor{logger: discardLogger(), wiki: &stubWiki{}, cfg: cfg}
	assert.False(t, p.shouldProcess(context.Background(), "Example", "person", "zh"))
}

func TestShouldProcess_WikiUnchangedIsNo(t *testing.T) {
	dataDir := t.TempDir()
	last := time.Now().Add(-40 * 24 * time.Hour)
	writeFragmentFile(t, dataDir, "person", "Example", last.Format(fragmentTimestampLayout))

	cfg := DefaultConfig(dataDir)
	p := &Processor{logger: discardLogger(), wiki: &stubWiki{revisionTime: last.Add(-time.Hour)}, cfg: cfg}
	assert.False(t, p.shouldProcess(context.Background(), "Example", "person", "zh"))
}

func TestShouldProcess_PastRampIsYes(t *testing.T) {
	dataDir := t.TempDir()
	last := time.Now().Add(-40 * 24 * time.Hour)
	writeFragmentFile(t, dataDir, "person", "Example", last.Format(fragmentTimestampLayout))

	cfg := DefaultConfig(dataDir)
	p := &Processor{logger: discardLogger(), wiki: &stubWiki{revisionTime: time.Now()}, cfg: cfg}
	assert.True(t, p.shouldProcess(context.Background(), "Example", "person", "zh"))
}

func TestSampleWeighted_UniformFallbackReturnsRequestedCount(t *testing.T) {
	candidates := []string{"A", "B", "C", "D", "E"}
	picked := sampleWeighted(candidates, nil, 3, WeightParams{MinW: 1, MaxW: 10, Exponent: 2})
	assert.Len(t, picked, 3)
	seen := map[string]bool{}
	for _, c := range picked {
		assert.False(t, seen[c], "duplicate pick %s", c)
		seen[c] = true
	}
}

func TestSampleWeighted_AllReturnedWhenNExceedsPool(t *testing.T) {
	candidates := []string{"A", "B"}
	picked := sampleWeighted(candidates, nil, 5, WeightParams{MinW: 1, MaxW: 10, Exponent: 2})
	assert.ElementsMatch(t, candidates, picked)
}

func TestWriteFragment_DeletesOlderAndWritesMeta(t *testing.T) {
	dataDir := t.TempDir()
	old := time.Now().Add(-time.Hour).Format(fragmentTimestampLayout)
	writeFragmentFile(t, dataDir, "person", "Example", old)

	frag := &graph.Graph{Nodes: []graph.Node{{ID: "Q1", Type: graph.Person}}}
	require.NoError(t, writeFragment(dataDir, "person", "Example", frag, time.UTC, "run-1", discardLogger()))

	dir := filepath.Join(dataDir, "person", "Example")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var jsonCount, metaCount int
	for _, e := range entries {
		switch {
		case fragmentTimestampPattern.MatchString(e.Name()):
			jsonCount++
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			var got graph.Graph
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Len(t, got.Nodes, 1)
		case metaTimestampPattern.MatchString(e.Name()):
			metaCount++
		}
	}
	assert.Equal(t, 1, jsonCount, "older fragment should have been deleted")
	assert.Equal(t, 1, metaCount)
}

func TestProcessor_Run_WritesFragmentForEligibleItem(t *testing.T) {
	dataDir := t.TempDir()
	cfg := DefaultConfig(dataDir)
	cfg.MaxListItemsToCheck = 10
	cfg.MaxListItemsPerRun = 10

	wiki := &stubWiki{wikitext: "some wikitext"}
	stub := llmtest.New()
	stub.ParseResults = []*graph.Graph{{Nodes: []graph.Node{{ID: "Q1", Type: graph.Person}}}}

	p := New(discardLogger(), wiki, stub, cfg, nil)
	categories := map[string][]liststore.Entry{
		"person": {{DisplayName: "Deng Xiaoping", Lang: "zh"}},
	}

	require.NoError(t, p.Run(context.Background(), categories))

	dir := filepath.Join(dataDir, "person", sanitizeFilename("Deng Xiaoping"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestProcessor_Run_EmptyWatchListIsNoop(t *testing.T) {
	p := New(discardLogger(), &stubWiki{}, llmtest.New(), DefaultConfig(t.TempDir()), nil)
	require.NoError(t, p.Run(context.Background(), map[string][]liststore.Entry{}))
}
