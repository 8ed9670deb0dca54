package merger

import (
	"context"
	"sort"
	"strings"

	"github.com/Tangerg/wikigraph/internal/graph"
	"github.com/Tangerg/wikigraph/internal/wikiclient"
)

// primaryLangAndName picks the node's primary-language primary name,
// following PrimaryName's zh-cn -> en -> first-other-language priority
// (graph/types.go), but also returning which language key won so the
// caller can derive the right API language for it.
func primaryLangAndName(n graph.Node) (lang, name string, ok bool) {
	if names, present := n.Name["zh-cn"]; present && len(names) > 0 {
		return "zh-cn", names[0], true
	}
	if names, present := n.Name["en"]; present && len(names) > 0 {
		return "en", names[0], true
	}
	langs := make([]string, 0, len(n.Name))
	for l := range n.Name {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	for _, l := range langs {
		if names := n.Name[l]; len(names) > 0 {
			return l, names[0], true
		}
	}
	return "", "", false
}

// apiLangFor collapses any zh-* variant to the single "zh" WikiClient expects.
func apiLangFor(lang string) string {
	if strings.HasPrefix(lang, "zh") {
		return "zh"
	}
	return lang
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// mergeNode resolves one fragment node's canonical identity and folds it
// into st (spec §4.6 step 1, "Identity resolution").
func (m *Merger) mergeNode(ctx context.Context, st *state, newNode graph.Node, localIDs map[string]string) {
	primaryLang, primaryName, ok := primaryLangAndName(newNode)
	if !ok {
		return
	}
	apiLang := apiLangFor(primaryLang)

	qcode, _, err := m.wiki.GetQcode(ctx, primaryName, apiLang)
	if err != nil {
		m.logger.Warn("getQcode failed, falling back to name map", "name", primaryName, "error", err)
		qcode = ""
	}

	var finalID string
	switch {
	case qcode != "":
		finalID = qcode
		if existing, found := st.nodesByID[qcode]; found {
			st.nodesByID[qcode] = m.mergeNodeInto(ctx, st, existing, newNode, primaryLang, apiLang, primaryName, qcode)
		} else {
			newNode.ID = qcode
			newNode.Name = m.mergeAndUpdateNames(st, newNode, nil, qcode, primaryLang, "")
			st.nodesByID[qcode] = newNode
			if m.list != nil {
				if apiLang == "zh" {
					_ = m.list.AddTitle(primaryName)
				} else {
					_ = m.list.AddTitleWithLang(primaryName, apiLang)
				}
			}
		}

	case st.nameToID[primaryName] != "":
		existingID := st.nameToID[primaryName]
		existing := st.nodesByID[existingID]
		st.nodesByID[existingID] = m.mergeNodeInto(ctx, st, existing, newNode, primaryLang, apiLang, primaryName, existingID)
		finalID = existingID

	default:
		status, _, err := m.wiki.CheckLinkStatus(ctx, primaryName, apiLang)
		if err != nil {
			m.logger.Warn("checkLinkStatus failed, dropping node", "name", primaryName, "error", err)
			return
		}
		switch status {
		case wikiclient.StatusRedirect, wikiclient.StatusDisambig:
			m.logger.Warn("dropping redirect/disambiguation node", "name", primaryName, "status", status)
			return
		case wikiclient.StatusBaidu:
			finalID = "BAIDU:" + primaryName
		case wikiclient.StatusCDT:
			finalID = "CDT:" + primaryName
		default:
			m.logger.Warn("dropping node with no resolvable identity", "name", primaryName, "status", status)
			return
		}
		newNode.ID = finalID
		newNode.Name = m.mergeAndUpdateNames(st, newNode, nil, finalID, primaryLang, "")
		st.nodesByID[finalID] = newNode
	}

	if finalID != "" {
		localIDs[primaryName] = finalID
	}
}

// canonicalOverride detects a simplified/traditional self-redirect and
// returns the converted target as the canonical-name override (spec §4.6
// step 2 "(a) explicit override").
func (m *Merger) canonicalOverride(ctx context.Context, primaryName, apiLang string) string {
	status, detail, err := m.wiki.CheckLinkStatus(ctx, primaryName, apiLang)
	if err != nil || status != wikiclient.StatusSimpTradRedirect || detail == "" {
		return ""
	}
	if apiLang == "zh" && m.conv != nil {
		if simplified, convErr := m.conv.ToSimplified(detail); convErr == nil {
			return simplified
		}
	}
	return detail
}

// mergeNodeInto merges newNode into existing: name merge (step 2) then
// property merge via LLMService (step 3).
func (m *Merger) mergeNodeInto(ctx context.Context, st *state, existing, newNode graph.Node, primaryLang, apiLang, primaryName, id string) graph.Node {
	override := m.canonicalOverride(ctx, primaryName, apiLang)
	existingCopy := existing
	existingCopy.Name = m.mergeAndUpdateNames(st, newNode, &existing, id, primaryLang, override)

	if m.llmSvc.ShouldMerge(ctx, nonNilMap(existingCopy.Properties), nonNilMap(newNode.Properties)) {
		merged := m.llmSvc.MergeItems(ctx, nonNilMap(existingCopy.Properties), nonNilMap(newNode.Properties), "node")
		if merged != nil {
			if existingCopy.Properties == nil {
				existingCopy.Properties = make(map[string]any, len(merged))
			}
			for k, v := range merged {
				existingCopy.Properties[k] = v
			}
		}
	}
	return existingCopy
}
