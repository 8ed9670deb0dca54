// Package graph defines the master knowledge-graph data model: typed nodes
// and relationships, their validation rules, and JSON persistence.
package graph

import "sort"

// NodeType is the fixed set of entity kinds a Node can carry.
type NodeType string

const (
	Person       NodeType = "Person"
	Organization NodeType = "Organization"
	Movement     NodeType = "Movement"
	Event        NodeType = "Event"
	Location     NodeType = "Location"
	Document     NodeType = "Document"
)

// NodeTypes is the complete, ordered set of valid node types.
var NodeTypes = []NodeType{Person, Organization, Movement, Event, Location, Document}

func (t NodeType) Valid() bool {
	for _, v := range NodeTypes {
		if v == t {
			return true
		}
	}
	return false
}

// RelType is the fixed relation vocabulary from spec §6.
type RelType string

const (
	SpouseOf     RelType = "SPOUSE_OF"
	ChildOf      RelType = "CHILD_OF"
	SiblingOf    RelType = "SIBLING_OF"
	LoverOf      RelType = "LOVER_OF"
	RelativeOf   RelType = "RELATIVE_OF"
	MetWith      RelType = "MET_WITH"
	BornIn       RelType = "BORN_IN"
	AlumnusOf    RelType = "ALUMNUS_OF"
	MemberOf     RelType = "MEMBER_OF"
	SubordinateOf RelType = "SUBORDINATE_OF"
	FriendOf     RelType = "FRIEND_OF"
	EnemyOf      RelType = "ENEMY_OF"
	Founded      RelType = "FOUNDED"
	Pushed       RelType = "PUSHED"
	Blocked      RelType = "BLOCKED"
	Influenced   RelType = "INFLUENCED"
)

// TypeRule constrains the node types allowed on either end of a relationship.
// A nil set means "no constraint on this side".
type TypeRule struct {
	Source []NodeType
	Target []NodeType
}

func allNodeTypes() []NodeType { return NodeTypes }

func personOnly() []NodeType { return []NodeType{Person} }

// RelationshipTypeRules is the authoritative {source types, target types}
// table for every RelType in the fixed vocabulary (spec §6). Not sourced
// from original_source (its RELATIONSHIP_TYPE_RULES constants file was not
// part of the retrieved snapshot) — authored directly against spec §3's node
// taxonomy and each relation's plain-English meaning.
var RelationshipTypeRules = map[RelType]TypeRule{
	SpouseOf:      {Source: personOnly(), Target: personOnly()},
	ChildOf:       {Source: personOnly(), Target: personOnly()},
	SiblingOf:     {Source: personOnly(), Target: personOnly()},
	LoverOf:       {Source: personOnly(), Target: personOnly()},
	RelativeOf:    {Source: personOnly(), Target: personOnly()},
	MetWith:       {Source: personOnly(), Target: personOnly()},
	BornIn:        {Source: personOnly(), Target: []NodeType{Location}},
	AlumnusOf:     {Source: personOnly(), Target: []NodeType{Organization}},
	MemberOf:      {Source: personOnly(), Target: []NodeType{Organization, Movement}},
	SubordinateOf: {Source: personOnly(), Target: personOnly()},
	FriendOf:      {Source: personOnly(), Target: personOnly()},
	EnemyOf:       {Source: personOnly(), Target: personOnly()},
	Founded:       {Source: personOnly(), Target: []NodeType{Organization, Movement, Event}},
	Pushed:        {Source: personOnly(), Target: []NodeType{Event, Movement}},
	Blocked:       {Source: personOnly(), Target: []NodeType{Event, Movement}},
	Influenced:    {Source: allNodeTypes(), Target: allNodeTypes()},
}

// UndirectedRelTypes is the subset of RelType for which (A,B) and (B,A) are
// the same relationship (spec §3).
var UndirectedRelTypes = map[RelType]bool{
	SpouseOf:   true,
	SiblingOf:  true,
	LoverOf:    true,
	RelativeOf: true,
	FriendOf:   true,
	EnemyOf:    true,
	MetWith:    true,
}

// Node is one entity in the master graph.
type Node struct {
	ID         string              `json:"id"`
	Type       NodeType            `json:"type"`
	Name       map[string][]string `json:"name"`
	Properties map[string]any      `json:"properties,omitempty"`
}

// Relationship is one directed (or canonically-ordered undirected) edge.
type Relationship struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       RelType        `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Graph is the full master graph: `{nodes, relationships}` (spec §6).
type Graph struct {
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}

// CanonicalKey returns the deduplication key for a relationship: directed
// types key on (source,target,type); undirected types key on
// (min(source,target),max(source,target),type) (spec §3 invariant 5).
func CanonicalKey(source, target string, typ RelType) [3]string {
	if UndirectedRelTypes[typ] {
		if source > target {
			source, target = target, source
		}
	}
	return [3]string{source, target, string(typ)}
}

// PrimaryName returns the canonical display name for a node, preferring
// zh-cn, then en, then any remaining language, then falling back to the id
// itself (ported from services/llm_service.py's _get_primary_name).
func PrimaryName(n Node) string {
	if names, ok := n.Name["zh-cn"]; ok && len(names) > 0 {
		return names[0]
	}
	if names, ok := n.Name["en"]; ok && len(names) > 0 {
		return names[0]
	}
	var langs []string
	for lang := range n.Name {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		if names := n.Name[lang]; len(names) > 0 {
			return names[0]
		}
	}
	return n.ID
}

// IsTempID reports whether id is a temporary (non-Q-code) identifier of the
// form BAIDU:<name> or CDT:<name> (spec §6 temp-ID grammar).
func IsTempID(id string) bool {
	return (len(id) > 6 && id[:6] == "BAIDU:") || (len(id) > 4 && id[:4] == "CDT:")
}
