package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Tangerg/wikigraph/internal/graph"
)

func TestSampleNodes_BoundsToAvailable(t *testing.T) {
	nodes := []graph.Node{{ID: "Q1"}, {ID: "Q2"}, {ID: "Q3"}}
	out := sampleNodes(nodes, 10)
	assert.Len(t, out, 3)
}

func TestSampleNodes_Empty(t *testing.T) {
	assert.Nil(t, sampleNodes(nil, 5))
	assert.Nil(t, sampleNodes([]graph.Node{{ID: "Q1"}}, 0))
}

func TestSampleRelationships_BoundsToAvailable(t *testing.T) {
	rels := []graph.Relationship{{Source: "a", Target: "b"}}
	out := sampleRelationships(rels, 5)
	assert.Len(t, out, 1)
}

func TestBuildFewShotExamples_NoMasterGraphPath(t *testing.T) {
	s := &Service{fewShot: FewShotConfig{}.withDefaults()}
	assert.Equal(t, "", s.buildFewShotExamples())
}
