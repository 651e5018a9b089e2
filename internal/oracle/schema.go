package oracle

import "google.golang.org/genai"

// SchemaType is the JSON type of a schema node.
type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
)

// Schema describes the shape of structured model output. It is a subset of
// JSON Schema that every backend can express.
type Schema struct {
	Type        SchemaType
	Description string
	Enum        []string
	Nullable    bool
	Properties  map[string]*Schema
	// Order lists property names in the order the model should emit them.
	Order    []string
	Required []string
	Items    *Schema
}

// toGenai converts the schema into the Gemini response schema form.
func (s *Schema) toGenai() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:             genaiType(s.Type),
		Description:      s.Description,
		Enum:             s.Enum,
		Required:         s.Required,
		PropertyOrdering: s.Order,
		Items:            s.Items.toGenai(),
	}
	if s.Nullable {
		out.Nullable = genai.Ptr(true)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = prop.toGenai()
		}
	}
	return out
}

func genaiType(t SchemaType) genai.Type {
	switch t {
	case TypeObject:
		return genai.TypeObject
	case TypeArray:
		return genai.TypeArray
	case TypeNumber:
		return genai.TypeNumber
	case TypeInteger:
		return genai.TypeInteger
	case TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// JSONSchema renders the schema as a JSON Schema document. Nullable nodes
// become a type union with "null".
func (s *Schema) JSONSchema() map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{}
	if s.Nullable {
		out["type"] = []string{string(s.Type), "null"}
	} else {
		out["type"] = string(s.Type)
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = prop.JSONSchema()
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	return out
}
