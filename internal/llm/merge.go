package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Tangerg/wikigraph/internal/ratelimit"
)

// identityKeys are excluded from the properties-only view the merge methods
// send the model, matching should_merge/merge_items' keys_to_remove set.
var identityKeys = map[string]bool{"id": true, "name": true, "source": true, "target": true}

func propertiesOnly(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		if identityKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// ShouldMerge asks whether newItem carries information not already present
// in existingItem. On any failure it defaults to true, so data is never
// silently dropped (spec §4.3 shouldMerge).
func (s *Service) ShouldMerge(ctx context.Context, existingItem, newItem map[string]any) bool {
	result, _ := ratelimit.Limit(
		s.limits.MergeCheck,
		"should_merge",
		func() bool { return true },
		func(bool) bool { return false }, // a bool result is never "null"; quota path alone decides the default
		func() (bool, error) {
			return s.doShouldMerge(ctx, existingItem, newItem), nil
		},
	)
	return result
}

func (s *Service) doShouldMerge(ctx context.Context, existingItem, newItem map[string]any) bool {
	existingJSON, err := json.MarshalIndent(propertiesOnly(existingItem), "", "  ")
	if err != nil {
		return true
	}
	newJSON, err := json.MarshalIndent(propertiesOnly(newItem), "", "  ")
	if err != nil {
		return true
	}

	prompt := s.prompts.MergeCheck + "\n" +
		"--- EXISTING JSON OBJECT ---\n" + string(existingJSON) + "\n" +
		"--- NEW JSON OBJECT ---\n" + string(newJSON) + "\n" +
		"--- Does the new object provide valuable new information? (answer YES or NO) ---"

	text, err := s.chatText(ctx, s.models.MergeCheck, "", prompt, false)
	if err != nil || text == "" {
		return true
	}
	return strings.ToUpper(strings.TrimSpace(text)) == "YES"
}

// MergeItems executes an LLM-assisted merge of two conflicting items,
// preserving existingItem's identity fields and overlaying the merged
// properties on top. Returns existingItem unchanged on any failure (spec
// §4.3 mergeItems).
func (s *Service) MergeItems(ctx context.Context, existingItem, newItem map[string]any, itemType string) map[string]any {
	result, _ := ratelimit.Limit(
		s.limits.MergeExecute,
		"merge_items",
		func() map[string]any { return existingItem },
		func(map[string]any) bool { return false },
		func() (map[string]any, error) {
			return s.doMergeItems(ctx, existingItem, newItem, itemType), nil
		},
	)
	return result
}

func (s *Service) doMergeItems(ctx context.Context, existingItem, newItem map[string]any, itemType string) map[string]any {
	existingJSON, err := json.MarshalIndent(propertiesOnly(existingItem), "", "  ")
	if err != nil {
		return existingItem
	}
	newJSON, err := json.MarshalIndent(propertiesOnly(newItem), "", "  ")
	if err != nil {
		return existingItem
	}

	prompt := "--- EXISTING " + itemType + " ---\n" + string(existingJSON) + "\n" +
		"--- NEW " + itemType + " ---\n" + string(newJSON) + "\n" +
		"--- MERGED FINAL JSON ---\n"

	text, err := s.chatText(ctx, s.models.MergeExecute, s.prompts.MergeExecute, prompt, true)
	if err != nil {
		s.logger.Error("merge_items API call failed", "error", err)
		return existingItem
	}
	if text == "" {
		return existingItem
	}

	var mergedProps map[string]any
	if err := json.Unmarshal([]byte(text), &mergedProps); err != nil {
		s.logger.Error("merge_items returned unparsable JSON", "error", err)
		return existingItem
	}

	final := make(map[string]any, len(existingItem)+len(mergedProps))
	for k, v := range existingItem {
		final[k] = v
	}
	for k, v := range mergedProps {
		final[k] = v
	}
	return final
}
