package merger

import (
	"sort"

	"github.com/Tangerg/wikigraph/internal/graph"
)

// mergeAndUpdateNames folds newNode's per-language name lists into existing's
// (nil when creating a fresh node), choosing one canonical name per language
// and registering every surviving name in st.nameToID (spec §4.6 step 2,
// mirroring _merge_and_update_names). Priority for the canonical name is:
// (a) override, when lang is the node's primary language and a simp/trad
// redirect target was found, (b) existing's canonical, (c) new's canonical.
// The remaining names for that language become sorted aliases.
func (m *Merger) mergeAndUpdateNames(st *state, newNode graph.Node, existing *graph.Node, id, primaryLang, override string) map[string][]string {
	merged := make(map[string][]string)
	if existing != nil {
		for lang, names := range existing.Name {
			cp := make([]string, len(names))
			copy(cp, names)
			merged[lang] = cp
		}
	}

	langs := make(map[string]bool, len(merged)+len(newNode.Name))
	for l := range merged {
		langs[l] = true
	}
	for l := range newNode.Name {
		langs[l] = true
	}

	for lang := range langs {
		existingNames := merged[lang]
		newNames := newNode.Name[lang]

		var canonical string
		switch {
		case lang == primaryLang && override != "":
			canonical = override
		case len(existingNames) > 0:
			canonical = existingNames[0]
		case len(newNames) > 0:
			canonical = newNames[0]
		}

		set := make(map[string]bool, len(existingNames)+len(newNames)+1)
		for _, n := range existingNames {
			if n != "" {
				set[n] = true
			}
		}
		for _, n := range newNames {
			if n != "" {
				set[n] = true
			}
		}
		if canonical == "" {
			if len(set) == 0 {
				delete(merged, lang)
				continue
			}
			merged[lang] = sortedKeys(set)
			continue
		}

		delete(set, canonical)
		aliases := sortedKeys(set)
		merged[lang] = append([]string{canonical}, aliases...)
	}

	for _, names := range merged {
		for _, name := range names {
			if name == "" {
				continue
			}
			if _, exists := st.nameToID[name]; !exists {
				st.nameToID[name] = id
			}
		}
	}
	return merged
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
