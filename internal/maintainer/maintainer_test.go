package maintainer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tangerg/wikigraph/internal/chinese"
	"github.com/Tangerg/wikigraph/internal/graph"
	"github.com/Tangerg/wikigraph/internal/liststore"
	"github.com/Tangerg/wikigraph/internal/llm"
	"github.com/Tangerg/wikigraph/internal/llm/llmtest"
	"github.com/Tangerg/wikigraph/internal/pool"
	"github.com/Tangerg/wikigraph/internal/wikiclient"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubWiki struct {
	qcodes        map[string]string // "title|lang" -> qcode
	authByQcode   map[string]string // "qcode|lang" -> title
	authStatus    map[string]wikiclient.AuthoritativeStatus
	authTitleSelf map[string]string // "title|lang" -> final title (GetAuthoritativeTitleAndStatus)
	prunedCalls   int
}

func newStubWiki() *stubWiki {
	return &stubWiki{
		qcodes:        map[string]string{},
		authByQcode:   map[string]string{},
		authStatus:    map[string]wikiclient.AuthoritativeStatus{},
		authTitleSelf: map[string]string{},
	}
}

func (w *stubWiki) GetQcode(_ context.Context, title, lang string) (string, string, error) {
	return w.qcodes[title+"|"+lang], title, nil
}

func (w *stubWiki) GetAuthoritativeTitleAndStatus(_ context.Context, title, lang string) (string, wikiclient.AuthoritativeStatus, error) {
	key := title + "|" + lang
	status, ok := w.authStatus[key]
	if !ok {
		status = wikiclient.AuthoritativeOK
	}
	final, ok := w.authTitleSelf[key]
	if !ok {
		final = title
	}
	return final, status, nil
}

func (w *stubWiki) GetAuthoritativeTitleByQcode(_ context.Context, qcode, lang string) (string, wikiclient.AuthoritativeStatus, error) {
	key := qcode + "|" + lang
	status, ok := w.authStatus[key]
	if !ok {
		status = wikiclient.AuthoritativeOK
	}
	return w.authByQcode[key], status, nil
}

func (w *stubWiki) PruneStaleLinkCache(_ time.Duration) int {
	w.prunedCalls++
	return 0
}

func (w *stubWiki) SaveCaches() error { return nil }

func newTestMaintainer(t *testing.T, wiki WikiClient, llmSvc *llmtest.Stub, listContent string) *Maintainer {
	t.Helper()
	conv, err := chinese.New()
	require.NoError(t, err)
	dir := t.TempDir()
	listPath := filepath.Join(dir, "list.md")
	if listContent != "" {
		require.NoError(t, os.WriteFile(listPath, []byte(listContent), 0o644))
	}
	list, err := liststore.Open(conv, listPath)
	require.NoError(t, err)
	cfg := DefaultConfig(filepath.Join(dir, "master.json"), filepath.Join(dir, "false_rels.json"))
	cfg.AuditCooldown = time.Millisecond
	cfg.AuditMaxRounds = 3
	cfg.PoolBackend = pool.NoPool
	return New(discardLogger(), wiki, llmSvc, list, conv, cfg)
}

func TestRefreshMasterGraphNames_DropsNodeWithNoValidatedLanguage(t *testing.T) {
	wiki := newStubWiki()
	wiki.authStatus["Q1|zh"] = wikiclient.AuthoritativeDisambig
	wiki.authStatus["Q1|en"] = wikiclient.AuthoritativeDisambig
	m := newTestMaintainer(t, wiki, llmtest.New(), "")

	g := graph.Graph{
		Nodes: []graph.Node{{ID: "Q1", Type: graph.Person, Name: map[string][]string{"en": {"Ghost"}}}},
	}
	out := m.refreshMasterGraphNames(context.Background(), g)

	assert.Empty(t, out.Nodes)
}

func TestRefreshMasterGraphNames_UpdatesCanonicalName(t *testing.T) {
	wiki := newStubWiki()
	wiki.authByQcode["Q1|en"] = "Alice Authoritative"
	wiki.authStatus["Q1|en"] = wikiclient.AuthoritativeOK
	wiki.authStatus["Q1|zh"] = wikiclient.AuthoritativeError
	m := newTestMaintainer(t, wiki, llmtest.New(), "")

	g := graph.Graph{
		Nodes: []graph.Node{{ID: "Q1", Type: graph.Person, Name: map[string][]string{"en": {"Alice"}}}},
	}
	out := m.refreshMasterGraphNames(context.Background(), g)

	require.Len(t, out.Nodes, 1)
	assert.Equal(t, "Alice Authoritative", out.Nodes[0].Name["en"][0])
}

func TestRefreshWatchList_PreservesCommentsAndHeaders(t *testing.T) {
	content := "## new\n// keep this comment\nAlice\n\n## person\nBob\n"
	wiki := newStubWiki()
	m := newTestMaintainer(t, wiki, llmtest.New(), content)

	m.refreshWatchList(context.Background())

	cats := m.list.Categories()
	require.Contains(t, cats, "new")
	var sawComment bool
	for _, e := range cats["new"] {
		if e.IsComment {
			sawComment = true
			assert.Equal(t, "// keep this comment", e.OriginalLine)
		}
	}
	assert.True(t, sawComment)
}

func TestRefreshWatchList_DropsDisambigEntry(t *testing.T) {
	content := "## new\nGhost\n"
	wiki := newStubWiki()
	wiki.authStatus["Ghost|zh"] = wikiclient.AuthoritativeDisambig
	m := newTestMaintainer(t, wiki, llmtest.New(), content)

	m.refreshWatchList(context.Background())

	cats := m.list.Categories()
	for _, e := range cats["new"] {
		assert.NotEqual(t, "Ghost", e.DisplayName)
	}
}

func TestCorrectTypesFromList(t *testing.T) {
	content := "## organization\nAcme\n"
	wiki := newStubWiki()
	m := newTestMaintainer(t, wiki, llmtest.New(), content)

	nodes := []graph.Node{{ID: "Q1", Type: graph.Person, Name: map[string][]string{"zh-cn": {"Acme"}}}}
	out := m.correctTypesFromList(nodes)

	require.Len(t, out, 1)
	assert.Equal(t, graph.Organization, out[0].Type)
}

func TestPruneDescriptionlessRelationships(t *testing.T) {
	rels := []graph.Relationship{
		{Source: "Q1", Target: "Q2", Type: graph.FriendOf},
		{Source: "Q1", Target: "Q3", Type: graph.FriendOf, Properties: map[string]any{
			"description": map[string]any{"en": "they met in college"},
		}},
		{Source: "Q1", Target: "Q4", Type: graph.FriendOf, Properties: map[string]any{
			"description": map[string]any{"en": "   "},
		}},
	}

	kept := pruneDescriptionlessRelationships(rels)

	require.Len(t, kept, 1)
	assert.Equal(t, "Q3", kept[0].Target)
}

func TestAuditRelationships_DeleteKeepAndRetryThenGiveUp(t *testing.T) {
	rels := []graph.Relationship{
		{Source: "Q1", Target: "Q2", Type: graph.FriendOf},
		{Source: "Q1", Target: "Q3", Type: graph.FriendOf},
		{Source: "Q1", Target: "Q4", Type: graph.FriendOf},
	}
	llmSvc := llmtest.New()
	llmSvc.RelationFunc = func(rel graph.Relationship, _ map[string]graph.Node) llm.RelationDecision {
		switch rel.Target {
		case "Q2":
			return llm.RelationDelete
		case "Q3":
			return llm.RelationKeep
		default:
			return llm.RelationRetry
		}
	}
	wiki := newStubWiki()
	m := newTestMaintainer(t, wiki, llmSvc, "")
	m.cfg.RelCleanSkipDays = -1 // force every relationship to be a candidate regardless of cache age

	out, cache := m.auditRelationships(context.Background(), nil, rels, map[string]cacheEntry{})

	var targets []string
	for _, r := range out {
		targets = append(targets, r.Target)
	}
	assert.Contains(t, targets, "Q3")
	assert.Contains(t, targets, "Q4") // retry-forever entries survive after max rounds
	assert.NotContains(t, targets, "Q2")
	assert.Contains(t, cache, canonicalRelKey(graph.Relationship{Source: "Q1", Target: "Q3", Type: graph.FriendOf}))
}

func TestUpgradeTempIDs_MergesIntoExistingQcode(t *testing.T) {
	wiki := newStubWiki()
	wiki.qcodes["Carol|zh"] = "Q9"
	m := newTestMaintainer(t, wiki, llmtest.New(), "")

	nodes := []graph.Node{
		{ID: "Q9", Type: graph.Person, Name: map[string][]string{"zh-cn": {"Carol"}}, Properties: map[string]any{
			"description": map[string]any{"en": "existing"},
		}},
		{ID: "BAIDU:Carol", Type: graph.Person, Name: map[string][]string{"zh-cn": {"Carol"}}, Properties: map[string]any{
			"description": map[string]any{"zh": "新的"},
		}},
	}
	rels := []graph.Relationship{{Source: "BAIDU:Carol", Target: "Q9", Type: graph.FriendOf}}

	outNodes, outRels := m.upgradeTempIDs(context.Background(), nodes, rels)

	require.Len(t, outNodes, 1)
	assert.Equal(t, "Q9", outNodes[0].ID)
	desc := outNodes[0].Properties["description"].(map[string]any)
	assert.Equal(t, "existing", desc["en"])
	assert.Equal(t, "新的", desc["zh"])
	assert.Equal(t, "Q9", outRels[0].Source)
	assert.Equal(t, "Q9", outRels[0].Target)
}

func TestUpgradeTempIDs_RenamesInPlaceWhenNoExistingQcode(t *testing.T) {
	wiki := newStubWiki()
	wiki.qcodes["Dave|zh"] = "Q10"
	m := newTestMaintainer(t, wiki, llmtest.New(), "")

	nodes := []graph.Node{
		{ID: "CDT:Dave", Type: graph.Person, Name: map[string][]string{"zh-cn": {"Dave"}}},
	}
	rels := []graph.Relationship{{Source: "CDT:Dave", Target: "CDT:Dave", Type: graph.FriendOf}}

	outNodes, outRels := m.upgradeTempIDs(context.Background(), nodes, rels)

	require.Len(t, outNodes, 1)
	assert.Equal(t, "Q10", outNodes[0].ID)
	assert.Equal(t, "Q10", outRels[0].Source)
	assert.Equal(t, "Q10", outRels[0].Target)
}
