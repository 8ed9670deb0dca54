package maintainer

import (
	"strings"

	"github.com/Tangerg/wikigraph/internal/graph"
)

// correctTypesFromList parses the watch list into simplified-name ->
// category and corrects any node whose primary canonical name matches, by
// simplified form, an entry under a non-"new" category (spec §4.7 step 3,
// ported from _correct_node_types_from_list).
func (m *Maintainer) correctTypesFromList(nodes []graph.Node) []graph.Node {
	nameToType := make(map[string]graph.NodeType)
	for cat, entries := range m.list.Categories() {
		cat = strings.ToLower(strings.TrimSpace(cat))
		if cat == "" || cat == "new" {
			continue
		}
		nodeType := categoryToNodeType(cat)
		if nodeType == "" {
			continue
		}
		for _, e := range entries {
			if e.IsComment || e.DisplayName == "" {
				continue
			}
			key := e.DisplayName
			if m.conv != nil {
				if s, err := m.conv.ToSimplified(e.DisplayName); err == nil {
					key = s
				}
			}
			nameToType[key] = nodeType
		}
	}
	if len(nameToType) == 0 {
		return nodes
	}

	corrected := 0
	for i, n := range nodes {
		canonical, ok := primaryCanonicalName(n)
		if !ok {
			continue
		}
		key := canonical
		if m.conv != nil {
			if s, err := m.conv.ToSimplified(canonical); err == nil {
				key = s
			}
		}
		correctType, ok := nameToType[key]
		if !ok || n.Type == correctType {
			continue
		}
		m.logger.Info("correcting node type from watch list", "id", n.ID, "name", canonical, "from", n.Type, "to", correctType)
		n.Type = correctType
		nodes[i] = n
		corrected++
	}
	if corrected > 0 {
		m.logger.Info("type correction complete", "corrected", corrected)
	}
	return nodes
}

func categoryToNodeType(category string) graph.NodeType {
	for _, t := range graph.NodeTypes {
		if strings.EqualFold(string(t), category) {
			return t
		}
	}
	return ""
}

// primaryCanonicalName returns a node's zh-cn[0]-then-en[0] canonical name,
// matching clean_data.py's type-correction lookup key (deliberately
// narrower than graph.PrimaryName, which also falls back to other
// languages and the id).
func primaryCanonicalName(n graph.Node) (string, bool) {
	if names, ok := n.Name["zh-cn"]; ok && len(names) > 0 {
		return names[0], true
	}
	if names, ok := n.Name["en"]; ok && len(names) > 0 {
		return names[0], true
	}
	return "", false
}

// pruneDescriptionlessRelationships drops any relationship whose
// properties.description is absent, empty, or blank-valued everywhere
// (spec §4.7 step 4).
func pruneDescriptionlessRelationships(rels []graph.Relationship) []graph.Relationship {
	kept := make([]graph.Relationship, 0, len(rels))
	for _, r := range rels {
		desc, ok := r.Properties["description"].(map[string]any)
		if !ok || len(desc) == 0 {
			continue
		}
		hasContent := false
		for _, v := range desc {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				hasContent = true
				break
			}
		}
		if !hasContent {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
