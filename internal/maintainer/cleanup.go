package maintainer

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/Tangerg/wikigraph/internal/graph"
)

// upgradeTempIDs retries getQcode for every BAIDU:/CDT: node, renaming it to
// the resolved Q-code (or merging into an existing Q-code node's properties,
// deep-merging any map-of-maps property like description) and remapping
// every relationship that referenced the old temporary id (spec §4.7 step
// 8, ported from _resolve_temporary_nodes).
func (m *Maintainer) upgradeTempIDs(ctx context.Context, nodes []graph.Node, rels []graph.Relationship) ([]graph.Node, []graph.Relationship) {
	nodesByID := make(map[string]graph.Node, len(nodes))
	for _, n := range nodes {
		nodesByID[n.ID] = n
	}

	idRemap := make(map[string]string)
	toDelete := make(map[string]bool)
	upgraded := 0

	for _, n := range nodes {
		originalName, isTemp := tempIDOriginalName(n.ID)
		if !isTemp {
			continue
		}
		qcode, _, err := m.wiki.GetQcode(ctx, originalName, "zh")
		if err != nil || qcode == "" {
			continue
		}
		m.logger.Info("upgraded temp-id node", "old_id", n.ID, "qcode", qcode)
		idRemap[n.ID] = qcode
		toDelete[n.ID] = true
		upgraded++

		if existing, found := nodesByID[qcode]; found {
			merged := existing
			merged.Properties = deepMergeProperties(existing.Properties, n.Properties)
			nodesByID[qcode] = merged
		} else {
			renamed := n
			renamed.ID = qcode
			nodesByID[qcode] = renamed
		}
	}

	if upgraded == 0 {
		return nodes, rels
	}

	finalNodes := make([]graph.Node, 0, len(nodes))
	for _, n := range nodes {
		if toDelete[n.ID] {
			continue
		}
		if updated, ok := nodesByID[n.ID]; ok {
			finalNodes = append(finalNodes, updated)
		} else {
			finalNodes = append(finalNodes, n)
		}
	}
	for _, newID := range idRemap {
		if n, ok := nodesByID[newID]; ok && !lo.ContainsBy(finalNodes, func(fn graph.Node) bool { return fn.ID == newID }) {
			finalNodes = append(finalNodes, n)
		}
	}

	for i, r := range rels {
		if newID, ok := idRemap[r.Source]; ok {
			r.Source = newID
		}
		if newID, ok := idRemap[r.Target]; ok {
			r.Target = newID
		}
		rels[i] = r
	}

	m.logger.Info("temp-id upgrade complete", "upgraded", upgraded)
	return finalNodes, rels
}

func tempIDOriginalName(id string) (string, bool) {
	if strings.HasPrefix(id, "BAIDU:") {
		return strings.TrimPrefix(id, "BAIDU:"), true
	}
	if strings.HasPrefix(id, "CDT:") {
		return strings.TrimPrefix(id, "CDT:"), true
	}
	return "", false
}

// deepMergeProperties overlays extra onto base, deep-merging any key present
// as a map-of-maps on both sides (e.g. properties.description, keyed by
// language) instead of letting one side clobber the other entirely.
func deepMergeProperties(base, extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]any, len(extra))
	}
	for k, v := range extra {
		existing, existsAsMap := base[k].(map[string]any)
		incoming, incomingIsMap := v.(map[string]any)
		if existsAsMap && incomingIsMap {
			for innerK, innerV := range incoming {
				existing[innerK] = innerV
			}
			base[k] = existing
			continue
		}
		base[k] = v
	}
	return base
}
