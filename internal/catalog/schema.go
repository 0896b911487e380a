package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bobmcallan/openapi-bridge/internal/apispec"
)

// maxSchemaDepth bounds $ref expansion; deeper (or cyclic) schemas become open.
const maxSchemaDepth = 16

// maxRefChain bounds parameter/request-body ref chains (A -> B -> C ...).
const maxRefChain = 8

// ErrUnresolvedRef marks a $ref that does not point at a known component.
var ErrUnresolvedRef = errors.New("unresolved reference")

// resolver expands $ref pointers against a description's components.
type resolver struct {
	desc *apispec.Description
}

func (r *resolver) parameter(p *apispec.Parameter) (*apispec.Parameter, error) {
	for i := 0; p != nil && p.Ref != ""; i++ {
		if i >= maxRefChain {
			return nil, fmt.Errorf("%w: parameter ref chain too long at %s", ErrUnresolvedRef, p.Ref)
		}
		key, ok := apispec.RefName(p.Ref, apispec.ParameterRefPrefix)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedRef, p.Ref)
		}
		next, exists := r.desc.Components.Parameters[key]
		if !exists || next == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedRef, p.Ref)
		}
		p = next
	}
	if p == nil {
		return nil, errors.New("empty parameter entry")
	}
	return p, nil
}

func (r *resolver) requestBody(b *apispec.RequestBody) (*apispec.RequestBody, error) {
	for i := 0; b != nil && b.Ref != ""; i++ {
		if i >= maxRefChain {
			return nil, fmt.Errorf("%w: request body ref chain too long at %s", ErrUnresolvedRef, b.Ref)
		}
		key, ok := apispec.RefName(b.Ref, apispec.RequestBodyRefPrefix)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedRef, b.Ref)
		}
		next, exists := r.desc.Components.RequestBodies[key]
		if !exists || next == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedRef, b.Ref)
		}
		b = next
	}
	return b, nil
}

// schema converts s into a plain JSON-schema map with every local ref inlined.
// A nil schema yields nil.
func (r *resolver) schema(s *apispec.Schema) (map[string]any, error) {
	return r.expand(s, 0, nil)
}

func (r *resolver) expand(s *apispec.Schema, depth int, stack []string) (map[string]any, error) {
	if s == nil {
		return nil, nil
	}
	if depth > maxSchemaDepth {
		return map[string]any{}, nil
	}

	if s.Ref != "" {
		key, ok := apispec.RefName(s.Ref, apispec.SchemaRefPrefix)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedRef, s.Ref)
		}
		for _, seen := range stack {
			if seen == key {
				return map[string]any{}, nil
			}
		}
		target, exists := r.desc.Components.Schemas[key]
		if !exists || target == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedRef, s.Ref)
		}
		return r.expand(target, depth+1, append(stack, key))
	}

	out := map[string]any{}
	switch len(s.Type) {
	case 0:
	case 1:
		out["type"] = s.Type[0]
	default:
		out["type"] = []string(s.Type)
	}
	setIf(out, "format", s.Format)
	setIf(out, "title", s.Title)
	setIf(out, "description", s.Description)
	setIf(out, "pattern", s.Pattern)
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Default != nil {
		out["default"] = s.Default
	}
	if s.Nullable {
		out["nullable"] = true
	}
	if s.Minimum != nil {
		out["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		out["maximum"] = *s.Maximum
	}
	if s.MinLength != nil {
		out["minLength"] = *s.MinLength
	}
	if s.MaxLength != nil {
		out["maxLength"] = *s.MaxLength
	}
	if s.MinItems != nil {
		out["minItems"] = *s.MinItems
	}
	if s.MaxItems != nil {
		out["maxItems"] = *s.MaxItems
	}

	if s.Items != nil {
		items, err := r.expand(s.Items, depth+1, stack)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out["items"] = items
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			expanded, err := r.expand(prop, depth+1, stack)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", name, err)
			}
			if expanded == nil {
				expanded = map[string]any{}
			}
			props[name] = expanded
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = append([]string(nil), s.Required...)
	}
	if s.AdditionalProperties != nil {
		// bool or a raw nested schema map, passed through untouched
		out["additionalProperties"] = s.AdditionalProperties
	}

	for key, list := range map[string][]*apispec.Schema{"allOf": s.AllOf, "anyOf": s.AnyOf, "oneOf": s.OneOf} {
		if len(list) == 0 {
			continue
		}
		expanded := make([]any, 0, len(list))
		for i, sub := range list {
			m, err := r.expand(sub, depth+1, stack)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
			}
			if m != nil {
				expanded = append(expanded, m)
			}
		}
		out[key] = expanded
	}
	return out, nil
}

func setIf(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// schemaType returns the primary "type" of an expanded schema map.
func schemaType(m map[string]any) string {
	switch t := m["type"].(type) {
	case string:
		return t
	case []string:
		for _, v := range t {
			if v != "null" {
				return v
			}
		}
	}
	if _, ok := m["properties"]; ok {
		return "object"
	}
	if _, ok := m["items"]; ok {
		return "array"
	}
	return ""
}

// isJSONMediaType matches application/json and structured-syntax +json types.
func isJSONMediaType(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
