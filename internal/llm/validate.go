package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Tangerg/wikigraph/internal/ratelimit"
)

// maxDiffTokens caps validate_pr_diff's input; the Python original sliced
// diff_content to 15000 characters, a rough proxy for "keep the prompt
// within budget" — here the cap is counted in tokens instead via tiktoken,
// which the domain stack wires in for exactly this purpose.
const maxDiffTokens = 6000

// ValidatePRDiff asks the PR-validation model whether a diff is acceptable,
// returning "True", "False", or "" on any ambiguous/failed response (spec
// §4.3 validatePRDiff).
func (s *Service) ValidatePRDiff(ctx context.Context, diffContent, fileName string) string {
	result, _ := ratelimit.Limit(
		s.limits.ValidatePR,
		"validate_pr_diff",
		func() string { return "" },
		func(v string) bool { return v == "" },
		func() (string, error) {
			return s.doValidatePRDiff(ctx, diffContent, fileName), nil
		},
	)
	return result
}

func (s *Service) doValidatePRDiff(ctx context.Context, diffContent, fileName string) string {
	truncated := s.truncateToTokens(diffContent, maxDiffTokens)
	// Prompts.ValidatePR is a two-verb template, %s file name then %s diff
	// content — the Python original used named .format() placeholders;
	// Go's fmt verbs are positional, so the template must place them in
	// that order.
	prompt := fmt.Sprintf(s.prompts.ValidatePR, fileName, truncated)

	text, err := s.chatText(ctx, s.models.ValidatePR, "", prompt, false)
	if err != nil {
		s.logger.Error("validate_pr_diff API call failed", "error", err)
		return ""
	}
	decision := strings.TrimSpace(text)
	if decision != "True" && decision != "False" {
		return ""
	}
	return decision
}
