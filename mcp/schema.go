package mcp

import (
	"reflect"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects the Go struct type A into a ToolInputSchema. Struct
// field json tags become property names; jsonschema struct tags contribute
// descriptions and enums. Non-object types yield an empty object schema,
// since tool inputs must be object-shaped.
func SchemaFor[A any](allowAdditional bool) ToolInputSchema {
	// The reflector assumes a struct root in expanded mode; anything else
	// must be rejected before reflection.
	rt := reflect.TypeFor[A]()
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct {
		return ToolInputSchema{
			Type:                 "object",
			Properties:           map[string]SchemaProperty{},
			AdditionalProperties: allowAdditional,
		}
	}

	r := &jsonschema.Reflector{
		DoNotReference:            true, // inline defs
		ExpandedStruct:            true, // put struct at root
		AllowAdditionalProperties: allowAdditional,
	}
	s := r.ReflectFromType(rt)

	if s == nil || s.Type != "object" {
		return ToolInputSchema{
			Type:                 "object",
			Properties:           map[string]SchemaProperty{},
			AdditionalProperties: allowAdditional,
		}
	}

	props := make(map[string]SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toSchemaProperty(el.Value)
		}
	}
	var required []string
	if len(s.Required) > 0 {
		required = append(required, s.Required...)
	}

	return ToolInputSchema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: allowAdditional,
	}
}

func toSchemaProperty(s *jsonschema.Schema) SchemaProperty {
	if s == nil {
		return SchemaProperty{}
	}
	p := SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == "array" && s.Items != nil {
		item := toSchemaProperty(s.Items)
		p.Items = &item
	}
	if s.Type == "object" && s.Properties != nil {
		m := make(map[string]SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toSchemaProperty(el.Value)
		}
		p.Properties = m
	}
	return p
}
