package llm

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Tangerg/wikigraph/internal/graph"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFormatNodeInfo_KnownNode(t *testing.T) {
	idToNode := map[string]graph.Node{
		"Q1": {ID: "Q1", Type: graph.Person, Name: map[string][]string{"en": {"Example Person"}}},
	}
	assert.Equal(t, "Example Person (Type: Person)", formatNodeInfo("Q1", idToNode))
}

func TestFormatNodeInfo_UnknownNode(t *testing.T) {
	assert.Equal(t, "Q999", formatNodeInfo("Q999", map[string]graph.Node{}))
}

func TestFormatNodeInfo_EmptyID(t *testing.T) {
	assert.Equal(t, "Unknown", formatNodeInfo("", map[string]graph.Node{}))
}

func TestIsRelationDeletable_MissingEndpointsMarksDeletable(t *testing.T) {
	s := &Service{logger: discardLogger()}
	decision := s.IsRelationDeletable(nil, graph.Relationship{Source: "", Target: "Q2"}, nil)
	assert.Equal(t, RelationDelete, decision)
}
