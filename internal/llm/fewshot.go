package llm

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/Tangerg/wikigraph/internal/graph"
)

type fewShotExample struct {
	Nodes         []graph.Node         `json:"nodes"`
	Relationships []graph.Relationship `json:"relationships"`
}

// buildFewShotExamples samples nodes/relationships from the master graph and
// rewrites their ids to human-readable primary names, matching
// LLMService._get_few_shot_examples. Returns "" if the master graph is
// absent, empty, or anything goes wrong — few-shot injection is best-effort.
func (s *Service) buildFewShotExamples() string {
	if s.masterGraphPath == "" {
		return ""
	}
	g, err := graph.Load(s.logger, s.masterGraphPath)
	if err != nil || len(g.Nodes) == 0 || len(g.Relationships) == 0 {
		return ""
	}

	idToName := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		idToName[n.ID] = graph.PrimaryName(n)
	}

	nodeSamples := sampleNodes(g.Nodes, s.fewShot.NodeSamples)
	relSamples := sampleRelationships(g.Relationships, s.fewShot.RelSamples)
	if len(nodeSamples) == 0 && len(relSamples) == 0 {
		return ""
	}

	readableNodes := make([]graph.Node, 0, len(nodeSamples))
	for _, n := range nodeSamples {
		n.ID = idToName[n.ID]
		if n.Properties != nil {
			props := make(map[string]any, len(n.Properties))
			for k, v := range n.Properties {
				if k == "verified_node" {
					continue
				}
				props[k] = v
			}
			n.Properties = props
		}
		readableNodes = append(readableNodes, n)
	}

	readableRels := make([]graph.Relationship, 0, len(relSamples))
	for _, r := range relSamples {
		if name, ok := idToName[r.Source]; ok {
			r.Source = name
		}
		if name, ok := idToName[r.Target]; ok {
			r.Target = name
		}
		readableRels = append(readableRels, r)
	}

	example := fewShotExample{Nodes: readableNodes, Relationships: readableRels}
	payload, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		s.logger.Warn("few-shot example marshal failed", "error", err)
		return ""
	}

	return fmt.Sprintf(
		"\nRefer to the following JSON sample when constructing your output.\n--- JSON SAMPLE START ---\n%s\n--- JSON SAMPLE END ---\n",
		string(payload),
	)
}

func sampleNodes(nodes []graph.Node, n int) []graph.Node {
	if n <= 0 || len(nodes) == 0 {
		return nil
	}
	idx := rand.Perm(len(nodes))
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]graph.Node, n)
	for i, j := range idx[:n] {
		out[i] = nodes[j]
	}
	return out
}

func sampleRelationships(rels []graph.Relationship, n int) []graph.Relationship {
	if n <= 0 || len(rels) == 0 {
		return nil
	}
	idx := rand.Perm(len(rels))
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]graph.Relationship, n)
	for i, j := range idx[:n] {
		out[i] = rels[j]
	}
	return out
}
