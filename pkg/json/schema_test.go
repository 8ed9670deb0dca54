package json

import (
	"encoding/json"
	"strings"
	"testing"
)

type fixtureNode struct {
	ID   string `json:"id" jsonschema:"required"`
	Type string `json:"type" jsonschema:"required"`
}

func TestStringDefSchemaOf_ExpandsStructInline(t *testing.T) {
	schema, err := StringDefSchemaOf(fixtureNode{})
	if err != nil {
		t.Fatalf("StringDefSchemaOf returned error: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(schema), &parsed); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}

	if _, hasSchemaVersion := parsed["$schema"]; hasSchemaVersion {
		t.Error("schema should not include a $schema version field")
	}
	if strings.Contains(schema, "$ref") {
		t.Error("schema should inline definitions rather than reference them")
	}

	props, ok := parsed["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map in schema, got %v", parsed["properties"])
	}
	if _, ok := props["id"]; !ok {
		t.Error("expected \"id\" property in schema")
	}
	if _, ok := props["type"]; !ok {
		t.Error("expected \"type\" property in schema")
	}
}

func TestStringDefSchemaOf_NilValue(t *testing.T) {
	_, err := StringDefSchemaOf(nil)
	if err == nil {
		t.Error("expected an error for a nil value")
	}
}

func TestStringDefSchemaOf_PointerAndValueAgree(t *testing.T) {
	valueSchema, err := StringDefSchemaOf(fixtureNode{})
	if err != nil {
		t.Fatalf("value schema: %v", err)
	}
	pointerSchema, err := StringDefSchemaOf(&fixtureNode{})
	if err != nil {
		t.Fatalf("pointer schema: %v", err)
	}
	if valueSchema != pointerSchema {
		t.Errorf("schema for a pointer should match the schema for its value:\n%s\nvs\n%s", pointerSchema, valueSchema)
	}
}
