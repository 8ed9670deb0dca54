package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Tangerg/wikigraph/internal/graph"
	"github.com/Tangerg/wikigraph/internal/ratelimit"
)

// RelationDecision is IsRelationDeletable's three-valued result: a plain
// bool cannot express "retry needed", so the zero value must be
// distinguishable from both Keep and Delete.
type RelationDecision int

const (
	RelationRetry RelationDecision = iota
	RelationDelete
	RelationKeep
)

// IsRelationDeletable asks the relation-cleaner model whether a single
// relationship should be pruned, giving it human-readable endpoint context
// instead of raw ids (spec §4.3 isRelationDeletable / Maintainer step 6).
func (s *Service) IsRelationDeletable(ctx context.Context, rel graph.Relationship, idToNode map[string]graph.Node) RelationDecision {
	if rel.Source == "" || rel.Target == "" {
		s.logger.Warn("relation missing source/target id, marking deletable", "relationship", rel)
		return RelationDelete
	}

	result, _ := ratelimit.Limit(
		s.limits.RelationCleaner,
		"is_relation_deletable",
		func() RelationDecision { return RelationRetry },
		func(d RelationDecision) bool { return d == RelationRetry },
		func() (RelationDecision, error) {
			return s.doIsRelationDeletable(ctx, rel, idToNode), nil
		},
	)
	return result
}

func formatNodeInfo(id string, idToNode map[string]graph.Node) string {
	node, ok := idToNode[id]
	if !ok {
		if id == "" {
			return "Unknown"
		}
		return id
	}
	return fmt.Sprintf("%s (Type: %s)", graph.PrimaryName(node), node.Type)
}

func (s *Service) doIsRelationDeletable(ctx context.Context, rel graph.Relationship, idToNode map[string]graph.Node) RelationDecision {
	readable := map[string]any{
		"source":     formatNodeInfo(rel.Source, idToNode),
		"target":     formatNodeInfo(rel.Target, idToNode),
		"type":       rel.Type,
		"properties": rel.Properties,
	}
	payload, err := json.MarshalIndent(readable, "", "  ")
	if err != nil {
		return RelationRetry
	}

	prompt := s.prompts.CleanSingleRelation + "\n" + string(payload)
	s.logger.Info("sending relation audit request to LLM", "relationship", string(payload))

	text, err := s.chatText(ctx, s.models.RelationCleaner, "", prompt, false)
	if err != nil {
		s.logger.Warn("is_relation_deletable API call failed", "error", err)
		return RelationRetry
	}
	s.logger.Info("LLM relation audit response", "raw", text)
	if text == "" {
		return RelationRetry
	}

	decision := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case strings.Contains(decision, "FALSE"):
		return RelationKeep
	case strings.Contains(decision, "TRUE"):
		return RelationDelete
	default:
		return RelationRetry
	}
}
