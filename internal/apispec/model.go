// Package apispec acquires, parses and sanitizes OpenAPI-style API descriptions.
package apispec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Methods is the fixed set of HTTP verbs compiled into tools, in output order.
var Methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

// Description is the parsed form of an API contract.
type Description struct {
	OpenAPI    string               `json:"openapi,omitempty" yaml:"openapi,omitempty"`
	Info       Info                 `json:"info" yaml:"info"`
	Servers    []Server             `json:"servers,omitempty" yaml:"servers,omitempty"`
	Paths      map[string]*PathItem `json:"paths" yaml:"paths"`
	Components Components           `json:"components,omitempty" yaml:"components,omitempty"`
}

// Info contains API metadata.
type Info struct {
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Server is one declared base URL.
type Server struct {
	URL         string `json:"url" yaml:"url"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Components holds reusable fragments referenced by $ref.
type Components struct {
	Parameters    map[string]*Parameter   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Schemas       map[string]*Schema      `json:"schemas,omitempty" yaml:"schemas,omitempty"`
	RequestBodies map[string]*RequestBody `json:"requestBodies,omitempty" yaml:"requestBodies,omitempty"`
}

// PathItem holds the operations declared on one path template.
type PathItem struct {
	Parameters []*Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Get        *Operation   `json:"get,omitempty" yaml:"get,omitempty"`
	Post       *Operation   `json:"post,omitempty" yaml:"post,omitempty"`
	Put        *Operation   `json:"put,omitempty" yaml:"put,omitempty"`
	Patch      *Operation   `json:"patch,omitempty" yaml:"patch,omitempty"`
	Delete     *Operation   `json:"delete,omitempty" yaml:"delete,omitempty"`
}

// Operation returns the operation declared for method, or nil.
func (p *PathItem) Operation(method string) *Operation {
	if p == nil {
		return nil
	}
	switch strings.ToUpper(method) {
	case "GET":
		return p.Get
	case "POST":
		return p.Post
	case "PUT":
		return p.Put
	case "PATCH":
		return p.Patch
	case "DELETE":
		return p.Delete
	}
	return nil
}

// Operation is one HTTP endpoint+verb.
type Operation struct {
	OperationID string               `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Summary     string               `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string             `json:"tags,omitempty" yaml:"tags,omitempty"`
	Deprecated  bool                 `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Parameters  []*Parameter         `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody         `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]*Response `json:"responses,omitempty" yaml:"responses,omitempty"`
}

// Parameter is either an inline parameter or a $ref to components.parameters.
type Parameter struct {
	Ref         string  `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Name        string  `json:"name,omitempty" yaml:"name,omitempty"`
	In          string  `json:"in,omitempty" yaml:"in,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool    `json:"required,omitempty" yaml:"required,omitempty"`
	Explode     *bool   `json:"explode,omitempty" yaml:"explode,omitempty"`
	Schema      *Schema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// RequestBody describes an operation payload.
type RequestBody struct {
	Ref         string                `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool                  `json:"required,omitempty" yaml:"required,omitempty"`
	Content     map[string]*MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

// Response describes one declared response.
type Response struct {
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Content     map[string]*MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

// MediaType wraps the schema for one content type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Schema is the subset of JSON Schema the compiler understands.
type Schema struct {
	Ref                  string             `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Type                 TypeSet            `json:"type,omitempty" yaml:"type,omitempty"`
	Format               string             `json:"format,omitempty" yaml:"format,omitempty"`
	Title                string             `json:"title,omitempty" yaml:"title,omitempty"`
	Description          string             `json:"description,omitempty" yaml:"description,omitempty"`
	Enum                 []any              `json:"enum,omitempty" yaml:"enum,omitempty"`
	Default              any                `json:"default,omitempty" yaml:"default,omitempty"`
	Example              any                `json:"example,omitempty" yaml:"example,omitempty"`
	Nullable             bool               `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Items                *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required             []string           `json:"required,omitempty" yaml:"required,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`
	AllOf                []*Schema          `json:"allOf,omitempty" yaml:"allOf,omitempty"`
	AnyOf                []*Schema          `json:"anyOf,omitempty" yaml:"anyOf,omitempty"`
	OneOf                []*Schema          `json:"oneOf,omitempty" yaml:"oneOf,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	MinLength            *int               `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength            *int               `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	MinItems             *int               `json:"minItems,omitempty" yaml:"minItems,omitempty"`
	MaxItems             *int               `json:"maxItems,omitempty" yaml:"maxItems,omitempty"`
	Pattern              string             `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// TypeSet accepts both `type: string` and the OpenAPI 3.1 `type: [string, "null"]` forms.
type TypeSet []string

// Primary returns the first non-null type, or "".
func (t TypeSet) Primary() string {
	for _, v := range t {
		if v != "null" {
			return v
		}
	}
	return ""
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TypeSet) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TypeSet{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("schema type must be a string or list of strings: %w", err)
	}
	*t = many
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t TypeSet) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TypeSet) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*t = TypeSet{node.Value}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*t = many
		return nil
	}
	return fmt.Errorf("line %d: schema type must be a string or list of strings", node.Line)
}

// OperationRef pairs an operation with the path and method it is declared on.
type OperationRef struct {
	Path   string
	Method string
	Item   *PathItem
	Op     *Operation
}

// Operations returns every declared operation sorted by path, then by Methods order.
func (d *Description) Operations() []OperationRef {
	paths := make([]string, 0, len(d.Paths))
	for p := range d.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var refs []OperationRef
	for _, p := range paths {
		item := d.Paths[p]
		for _, m := range Methods {
			if op := item.Operation(m); op != nil {
				refs = append(refs, OperationRef{Path: p, Method: m, Item: item, Op: op})
			}
		}
	}
	return refs
}

// DefaultServerURL returns the first declared server URL, or "".
func (d *Description) DefaultServerURL() string {
	for _, s := range d.Servers {
		if s.URL != "" {
			return s.URL
		}
	}
	return ""
}

// ParameterRefPrefix is the local pointer prefix for shared parameters.
const ParameterRefPrefix = "#/components/parameters/"

// SchemaRefPrefix is the local pointer prefix for shared schemas.
const SchemaRefPrefix = "#/components/schemas/"

// RequestBodyRefPrefix is the local pointer prefix for shared request bodies.
const RequestBodyRefPrefix = "#/components/requestBodies/"

// RefName returns the component key of a local $ref with the given prefix.
func RefName(ref, prefix string) (string, bool) {
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(ref, prefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return unescapePointer(name), true
}

// unescapePointer decodes JSON pointer escapes (~1 = '/', ~0 = '~').
func unescapePointer(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}
