// Package llmtest provides a deterministic, network-free stand-in for
// internal/llm.Service, for use in merger/maintainer/listprocessor tests.
package llmtest

import (
	"context"

	"github.com/Tangerg/wikigraph/internal/graph"
	"github.com/Tangerg/wikigraph/internal/llm"
)

// Stub implements the subset of internal/llm.Service's method surface that
// callers depend on, as plain fields so a test can script exact responses
// per call (FIFO) or fall back to a default.
type Stub struct {
	ParseResults    []*graph.Graph
	ShouldMergeFunc func(existing, new map[string]any) bool
	MergeItemsFunc  func(existing, new map[string]any, itemType string) map[string]any
	RelationFunc    func(rel graph.Relationship, idToNode map[string]graph.Node) llm.RelationDecision
	ValidatePRFunc  func(diff, fileName string) string

	parseCalls int
}

func New() *Stub { return &Stub{} }

func (s *Stub) ParseWikitext(_ context.Context, _ string) (*graph.Graph, error) {
	if s.parseCalls >= len(s.ParseResults) {
		return nil, nil
	}
	g := s.ParseResults[s.parseCalls]
	s.parseCalls++
	return g, nil
}

func (s *Stub) ShouldMerge(_ context.Context, existing, new map[string]any) bool {
	if s.ShouldMergeFunc != nil {
		return s.ShouldMergeFunc(existing, new)
	}
	return true
}

func (s *Stub) MergeItems(_ context.Context, existing, new map[string]any, itemType string) map[string]any {
	if s.MergeItemsFunc != nil {
		return s.MergeItemsFunc(existing, new, itemType)
	}
	return existing
}

func (s *Stub) IsRelationDeletable(_ context.Context, rel graph.Relationship, idToNode map[string]graph.Node) llm.RelationDecision {
	if s.RelationFunc != nil {
		return s.RelationFunc(rel, idToNode)
	}
	return llm.RelationKeep
}

func (s *Stub) ValidatePRDiff(_ context.Context, diff, fileName string) string {
	if s.ValidatePRFunc != nil {
		return s.ValidatePRFunc(diff, fileName)
	}
	return ""
}
