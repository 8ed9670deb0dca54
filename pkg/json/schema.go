// Package json generates the JSON-schema string the parser prompt hands the
// model as its structured-output contract, so ParseWikitext's response can
// be unmarshaled straight into a graph.Graph.
package json

import (
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// schemaConfig fixes the jsonschema.Reflector options the parser schema
// needs: every definition inlined (no $ref hops) and no extra "$schema"
// field, since the value goes straight into a prompt, not a validator.
var schemaConfig = struct {
	Anonymous      bool
	ExpandedStruct bool
	DoNotReference bool
}{
	Anonymous:      true,
	ExpandedStruct: false,
	DoNotReference: true,
}

// StringDefSchemaOf renders v's JSON schema as a string, expanding struct
// definitions inline. Used once at startup to build the entity/relationship
// schema graph.Graph embeds in the parser system prompt.
func StringDefSchemaOf(v any) (string, error) {
	schema, err := generateSchema(v)
	if err != nil {
		return "", fmt.Errorf("generate schema: %w", err)
	}

	marshalJSON, err := schema.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal schema to JSON: %w", err)
	}

	return string(marshalJSON), nil
}

func generateSchema(v any) (*jsonschema.Schema, error) {
	if v == nil {
		return nil, fmt.Errorf("cannot generate schema for nil value")
	}

	r := &jsonschema.Reflector{
		Anonymous:      schemaConfig.Anonymous,
		ExpandedStruct: schemaConfig.ExpandedStruct,
		DoNotReference: schemaConfig.DoNotReference,
	}

	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		r.ExpandedStruct = true
	}

	schema := r.Reflect(v)
	if schema == nil {
		return nil, fmt.Errorf("failed to reflect schema for type %T", v)
	}
	schema.Version = ""

	return schema, nil
}
