package merger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tangerg/wikigraph/internal/chinese"
	"github.com/Tangerg/wikigraph/internal/graph"
	"github.com/Tangerg/wikigraph/internal/liststore"
	"github.com/Tangerg/wikigraph/internal/llm/llmtest"
	"github.com/Tangerg/wikigraph/internal/wikiclient"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubWiki struct {
	qcodes     map[string]string // "name|lang" -> qcode
	qcodeErr   map[string]error
	statuses   map[string]wikiclient.Status
	statusDetail map[string]string
	statusErr  map[string]error
}

func newStubWiki() *stubWiki {
	return &stubWiki{
		qcodes:   map[string]string{},
		qcodeErr: map[string]error{},
		statuses: map[string]wikiclient.Status{},
		statusDetail: map[string]string{},
		statusErr: map[string]error{},
	}
}

func (w *stubWiki) GetQcode(_ context.Context, title, lang string) (string, string, error) {
	key := title + "|" + lang
	if err, ok := w.qcodeErr[key]; ok {
		return "", "", err
	}
	return w.qcodes[key], title, nil
}

func (w *stubWiki) CheckLinkStatus(_ context.Context, title, lang string) (wikiclient.Status, string, error) {
	key := title + "|" + lang
	if err, ok := w.statusErr[key]; ok {
		return "", "", err
	}
	status, ok := w.statuses[key]
	if !ok {
		status = wikiclient.StatusNoPage
	}
	return status, w.statusDetail[key], nil
}

func (w *stubWiki) SaveCaches() error { return nil }

func newTestMerger(t *testing.T, wiki WikiClient, llmSvc *llmtest.Stub) *Merger {
	t.Helper()
	conv, err := chinese.New()
	require.NoError(t, err)
	listPath := filepath.Join(t.TempDir(), "list.md")
	list, err := liststore.Open(conv, listPath)
	require.NoError(t, err)
	return New(discardLogger(), wiki, llmSvc, list, conv, Config{})
}

func node(id string, names map[string][]string) graph.Node {
	return graph.Node{ID: id, Type: graph.Person, Name: names}
}

func TestMergeNode_CreatesViaQcode(t *testing.T) {
	wiki := newStubWiki()
	wiki.qcodes["Alice|en"] = "Q1"
	m := newTestMerger(t, wiki, llmtest.New())
	st := m.loadState(graph.Graph{})
	local := map[string]string{}

	m.mergeNode(context.Background(), st, node("", map[string][]string{"en": {"Alice"}}), local)

	require.Contains(t, st.nodesByID, "Q1")
	assert.Equal(t, "Q1", local["Alice"])
	assert.Equal(t, []string{"Alice"}, st.nodesByID["Q1"].Name["en"])
}

func TestMergeNode_MergesIntoExistingQcode(t *testing.T) {
	wiki := newStubWiki()
	wiki.qcodes["Alice|en"] = "Q1"
	llmSvc := llmtest.New()
	llmSvc.MergeItemsFunc = func(existing, new map[string]any, _ string) map[string]any {
		merged := map[string]any{}
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range new {
			merged[k] = v
		}
		return merged
	}
	m := newTestMerger(t, wiki, llmSvc)
	existing := graph.Graph{Nodes: []graph.Node{
		node("Q1", map[string][]string{"en": {"Alice"}}),
	}}
	st := m.loadState(existing)
	local := map[string]string{}

	newNode := node("", map[string][]string{"en": {"Alice"}})
	newNode.Properties = map[string]any{"role": "scientist"}
	m.mergeNode(context.Background(), st, newNode, local)

	require.Contains(t, st.nodesByID, "Q1")
	assert.Equal(t, "Q1", local["Alice"])
	assert.Equal(t, "scientist", st.nodesByID["Q1"].Properties["role"])
}

func TestMergeNode_FallsBackToNameMap(t *testing.T) {
	wiki := newStubWiki()
	wiki.qcodeErr["Bob|en"] = assertErr("wikidata down")
	m := newTestMerger(t, wiki, llmtest.New())
	existing := graph.Graph{Nodes: []graph.Node{
		node("TEMP1", map[string][]string{"en": {"Bob"}}),
	}}
	st := m.loadState(existing)
	local := map[string]string{}

	m.mergeNode(context.Background(), st, node("", map[string][]string{"en": {"Bob"}}), local)

	assert.Equal(t, "TEMP1", local["Bob"])
}

func TestMergeNode_FallsBackToBaiduTempID(t *testing.T) {
	wiki := newStubWiki()
	wiki.statuses["Carol|zh"] = wikiclient.StatusBaidu
	m := newTestMerger(t, wiki, llmtest.New())
	st := m.loadState(graph.Graph{})
	local := map[string]string{}

	m.mergeNode(context.Background(), st, node("", map[string][]string{"zh-cn": {"Carol"}}), local)

	assert.Equal(t, "BAIDU:Carol", local["Carol"])
	require.Contains(t, st.nodesByID, "BAIDU:Carol")
}

func TestMergeNode_DropsOnRedirectOrDisambig(t *testing.T) {
	wiki := newStubWiki()
	wiki.statuses["Dave|en"] = wikiclient.StatusDisambig
	m := newTestMerger(t, wiki, llmtest.New())
	st := m.loadState(graph.Graph{})
	local := map[string]string{}

	m.mergeNode(context.Background(), st, node("", map[string][]string{"en": {"Dave"}}), local)

	assert.Empty(t, st.nodesByID)
	assert.Empty(t, local)
}

func TestMergeRelationship_ResolvesAndDedups(t *testing.T) {
	wiki := newStubWiki()
	m := newTestMerger(t, wiki, llmtest.New())
	st := m.loadState(graph.Graph{})
	local := map[string]string{"Alice": "Q1", "Bob": "Q2"}

	r := graph.Relationship{Source: "Alice", Target: "Bob", Type: graph.FriendOf}
	m.mergeRelationship(context.Background(), st, r, local)
	m.mergeRelationship(context.Background(), st, r, local)

	assert.Len(t, st.relsByKey, 1)
	key := graph.CanonicalKey("Q1", "Q2", graph.FriendOf)
	require.Contains(t, st.relsByKey, key)
	assert.Equal(t, "Q1", st.relsByKey[key].Source)
}

func TestMergeRelationship_DropsUnresolvedEndpoint(t *testing.T) {
	wiki := newStubWiki()
	m := newTestMerger(t, wiki, llmtest.New())
	st := m.loadState(graph.Graph{})
	local := map[string]string{"Alice": "Q1"}

	r := graph.Relationship{Source: "Alice", Target: "Ghost", Type: graph.FriendOf}
	m.mergeRelationship(context.Background(), st, r, local)

	assert.Empty(t, st.relsByKey)
}

func TestRun_ProcessesFragmentsAndSkipsAlreadyProcessed(t *testing.T) {
	wiki := newStubWiki()
	wiki.qcodes["Alice|en"] = "Q1"
	m := newTestMerger(t, wiki, llmtest.New())
	dataDir := t.TempDir()
	m.cfg.DataDir = dataDir
	m.cfg.MasterGraphPath = filepath.Join(dataDir, "master.json")
	m.cfg.ProcessedLogPath = filepath.Join(dataDir, "processed.log")

	frag := graph.Graph{Nodes: []graph.Node{node("", map[string][]string{"en": {"Alice"}})}}
	data, err := json.Marshal(frag)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "frag1.json"), data, 0o644))

	require.NoError(t, m.Run(context.Background()))

	saved, err := graph.Load(discardLogger(), m.cfg.MasterGraphPath)
	require.NoError(t, err)
	require.Len(t, saved.Nodes, 1)
	assert.Equal(t, "Q1", saved.Nodes[0].ID)

	// second run: fragment already in the processed log, no new nodes added.
	require.NoError(t, m.Run(context.Background()))
	saved2, err := graph.Load(discardLogger(), m.cfg.MasterGraphPath)
	require.NoError(t, err)
	assert.Len(t, saved2.Nodes, 1)
}

type stubErr string

func (e stubErr) Error() string { return string(e) }

func assertErr(msg string) error { return stubErr(msg) }
