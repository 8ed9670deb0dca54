package graph

import (
	"regexp"

	"github.com/samber/lo"
)

var qcodePattern = regexp.MustCompile(`^Q\d+$`)

// IsQcode reports whether id is a Wikidata Q-code of the form Q\d+.
func IsQcode(id string) bool {
	return qcodePattern.MatchString(id)
}

// ValidationIssue is one dropped-or-sanitized item surfaced during schema
// validation (spec §7: "surfaced as per-item log warnings").
type ValidationIssue struct {
	Kind   string // "node" | "relationship"
	ID     string
	Reason string
}

// ValidationReport collects every issue found during a validation pass
// without aborting it, matching spec §7's "no step blocks the pipeline on a
// single bad entity".
type ValidationReport struct {
	Issues []ValidationIssue
}

func (r *ValidationReport) add(kind, id, reason string) {
	r.Issues = append(r.Issues, ValidationIssue{Kind: kind, ID: id, Reason: reason})
}

// personOnlyProps and nonPersonOnlyProps partition the recognized property
// keys per spec §3: Person carries lifetime/gender/birth_place/death_place,
// everything else carries period/location — description is shared.
var personOnlyProps = map[string]bool{"lifetime": true, "gender": true, "birth_place": true, "death_place": true}
var nonPersonOnlyProps = map[string]bool{"period": true, "location": true}

// mapLangStringProps are properties whose value must be map<lang,string>.
var mapLangStringProps = map[string]bool{"birth_place": true, "death_place": true, "description": true, "location": true}

// ValidateAndClean enforces invariants 1, 2, 6, strips unknown keys, and
// returns a cleaned copy alongside every issue found — ported from
// clean_data.py's _validate_and_clean_schema.
func ValidateAndClean(g Graph) (Graph, ValidationReport) {
	var report ValidationReport
	validIDs := make(map[string]NodeType, len(g.Nodes))
	cleanedNodes := make([]Node, 0, len(g.Nodes))

	for _, n := range g.Nodes {
		if n.ID == "" || !n.Type.Valid() {
			report.add("node", n.ID, "missing id or invalid type")
			continue
		}
		if len(n.Name) == 0 {
			report.add("node", n.ID, "empty name map")
			continue
		}
		n = cleanNodeProperties(n)
		cleanedNodes = append(cleanedNodes, n)
		validIDs[n.ID] = n.Type
	}

	cleanedRels := make([]Relationship, 0, len(g.Relationships))
	for _, r := range g.Relationships {
		if r.Source == "" || r.Target == "" || r.Type == "" {
			report.add("relationship", r.Source+"-"+r.Target, "missing source/target/type")
			continue
		}
		srcType, srcOK := validIDs[r.Source]
		tgtType, tgtOK := validIDs[r.Target]
		if !srcOK || !tgtOK {
			report.add("relationship", r.Source+"-"+r.Target, "dangling reference")
			continue
		}
		rule, known := RelationshipTypeRules[r.Type]
		if !known {
			report.add("relationship", r.Source+"-"+r.Target, "unknown relationship type: "+string(r.Type))
			continue
		}
		if !typeAllowed(rule.Source, srcType) || !typeAllowed(rule.Target, tgtType) {
			report.add("relationship", r.Source+"-"+r.Target, "type rule violation for "+string(r.Type))
			continue
		}
		cleanedRels = append(cleanedRels, cleanRelProperties(r))
	}

	return Graph{Nodes: cleanedNodes, Relationships: cleanedRels}, report
}

func typeAllowed(allowed []NodeType, t NodeType) bool {
	if len(allowed) == 0 {
		return true
	}
	return lo.Contains(allowed, t)
}

func cleanNodeProperties(n Node) Node {
	if n.Properties == nil {
		return n
	}
	cleaned := make(map[string]any, len(n.Properties))
	for k, v := range n.Properties {
		if n.Type == Person {
			if nonPersonOnlyProps[k] {
				continue
			}
		} else {
			if personOnlyProps[k] {
				continue
			}
		}
		if k == "gender" {
			if s, ok := v.(string); !ok || (s != "Male" && s != "Female") {
				continue
			}
		}
		if mapLangStringProps[k] {
			m, ok := stringMap(v)
			if !ok || len(m) == 0 {
				continue
			}
			cleaned[k] = m
			continue
		}
		cleaned[k] = v
	}
	n.Properties = cleaned
	return n
}

func cleanRelProperties(r Relationship) Relationship {
	if r.Properties == nil {
		return r
	}
	cleaned := make(map[string]any, len(r.Properties))
	for k, v := range r.Properties {
		switch k {
		case "start_date", "end_date":
			cleaned[k] = v
		case "position", "degree", "description":
			m, ok := stringMap(v)
			if !ok || len(m) == 0 {
				continue
			}
			cleaned[k] = m
		}
	}
	r.Properties = cleaned
	return r
}

// stringMap copies v's non-empty string values into a new map[string]any,
// dropping every other value,
// mirroring clean_data.py's per-language value filtering.
func stringMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(m))
	for lang, val := range m {
		if s, ok := val.(string); ok && s != "" {
			out[lang] = s
		}
	}
	return out, true
}
