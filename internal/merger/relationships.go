package merger

import (
	"context"

	"github.com/Tangerg/wikigraph/internal/graph"
)

// mergeRelationship resolves a fragment relationship's endpoints against
// this fragment's freshly-minted IDs and the graph-wide name map, then
// dedups it by canonical key (spec §4.6 step 4).
func (m *Merger) mergeRelationship(ctx context.Context, st *state, newRel graph.Relationship, localIDs map[string]string) {
	sourceID := resolveID(newRel.Source, localIDs, st.nameToID)
	targetID := resolveID(newRel.Target, localIDs, st.nameToID)
	if sourceID == "" || targetID == "" {
		m.logger.Warn("relationship endpoint unresolved, dropping", "source", newRel.Source, "target", newRel.Target, "type", newRel.Type)
		return
	}
	newRel.Source = sourceID
	newRel.Target = targetID

	key := graph.CanonicalKey(sourceID, targetID, newRel.Type)
	existing, exists := st.relsByKey[key]
	if !exists {
		st.relsByKey[key] = newRel
		st.relOrder = append(st.relOrder, key)
		return
	}

	if m.llmSvc.ShouldMerge(ctx, nonNilMap(existing.Properties), nonNilMap(newRel.Properties)) {
		merged := m.llmSvc.MergeItems(ctx, nonNilMap(existing.Properties), nonNilMap(newRel.Properties), "relationship")
		if merged != nil {
			if existing.Properties == nil {
				existing.Properties = make(map[string]any, len(merged))
			}
			for k, v := range merged {
				existing.Properties[k] = v
			}
			st.relsByKey[key] = existing
		}
	}
}

// resolveID prefers the ID this fragment just minted (local, by raw name)
// over the graph-wide name map, since the fragment's own new nodes may not
// have reached st.nameToID's dedup-on-first-seen insert yet under the same
// name spelling the relationship uses.
func resolveID(name string, local, global map[string]string) string {
	if id, ok := local[name]; ok {
		return id
	}
	if id, ok := global[name]; ok {
		return id
	}
	return ""
}
