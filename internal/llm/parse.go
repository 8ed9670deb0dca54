package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Tangerg/wikigraph/internal/graph"
	"github.com/Tangerg/wikigraph/internal/ratelimit"
)

// ParseWikitext extracts entities and relationships from wikitext using the
// parser model, injecting few-shot examples drawn from the master graph
// (spec §4.3 parseWikitext / §4.5 pipeline step 2). Returns a nil graph
// pointer on any failure — a quota rejection, a transport error, or an
// unparsable response all collapse to the same "try again later" outcome.
func (s *Service) ParseWikitext(ctx context.Context, wikitext string) (*graph.Graph, error) {
	return ratelimit.Limit(
		s.limits.Parser,
		"parse_wikitext",
		func() *graph.Graph { return nil },
		func(g *graph.Graph) bool { return g == nil },
		func() (*graph.Graph, error) {
			return s.doParseWikitext(ctx, wikitext)
		},
	)
}

func (s *Service) doParseWikitext(ctx context.Context, wikitext string) (*graph.Graph, error) {
	fewShot := s.buildFewShotExamples()
	userPrompt := fmt.Sprintf(
		"%s\nFollow your core instructions strictly, and extract entities and relationships from the following wikitext using your knowledge and the text below.\n--- WIKITEXT START ---\n%s\n--- WIKITEXT END ---",
		fewShot, wikitext,
	)
	if fewShot != "" {
		s.logger.Info("injected few-shot examples", "nodes", s.fewShot.NodeSamples, "relationships", s.fewShot.RelSamples)
	}
	s.logger.Info("parsing wikitext via LLM", "model", s.models.Parser)

	systemPrompt := s.prompts.ParserSystem
	if s.graphSchema != "" {
		systemPrompt += "\n\nYour JSON output must conform to this schema:\n" + s.graphSchema
	}

	text, err := s.chatText(ctx, s.models.Parser, systemPrompt, userPrompt, true)
	if err != nil {
		s.logger.Error("parse_wikitext API call failed", "error", err)
		return nil, nil
	}
	if text == "" {
		return nil, nil
	}

	var g graph.Graph
	if err := json.Unmarshal([]byte(text), &g); err != nil {
		s.logger.Error("parse_wikitext returned unparsable JSON", "error", err)
		return nil, nil
	}
	return &g, nil
}
