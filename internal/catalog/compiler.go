// Package catalog compiles a sanitized API description into a registry of tools.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bobmcallan/openapi-bridge/internal/apispec"
	common "github.com/bobmcallan/openapi-bridge/internal/common"
)

// maxToolNameLen is the longest tool name MCP clients accept.
const maxToolNameLen = 64

var (
	// ErrNameCollision is returned when two operations derive the same tool name.
	ErrNameCollision = errors.New("tool name collision")
	// ErrInvalidParameter is returned for a parameter without a name or with an unknown location.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Naming selects how tool names are derived.
type Naming string

const (
	// NamingPath derives names from method and path: GET /search/gene -> get_search_gene.
	NamingPath Naming = "path"
	// NamingOperationID uses the operationId when present, falling back to NamingPath.
	NamingOperationID Naming = "operation_id"
)

// Options configures a Compiler.
type Options struct {
	Naming    Naming
	Forbidden apispec.ForbiddenPolicy
}

// CompilationError reports one operation that could not be compiled.
type CompilationError struct {
	Tool   string
	Method string
	Path   string
	Err    error
}

func (e *CompilationError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Method, e.Path, e.Tool, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *CompilationError) Unwrap() error { return e.Err }

// Compiler turns descriptions into registries.
type Compiler struct {
	opts   Options
	logger *common.Logger
}

// NewCompiler creates a Compiler. A nil logger discards output.
func NewCompiler(opts Options, logger *common.Logger) *Compiler {
	if opts.Naming == "" {
		opts.Naming = NamingPath
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Compiler{opts: opts, logger: logger}
}

// Compile builds one ToolDefinition per (path, method). Operations that fail
// are returned as errors and left out; the rest still compile.
func (c *Compiler) Compile(desc *apispec.Description) (*Registry, []*CompilationError) {
	if desc == nil {
		return newRegistry(nil), nil
	}

	res := &resolver{desc: desc}
	seen := map[string]bool{}
	var defs []*ToolDefinition
	var errs []*CompilationError

	for _, ref := range desc.Operations() {
		name := c.toolName(ref)
		if seen[name] {
			errs = append(errs, &CompilationError{Tool: name, Method: ref.Method, Path: ref.Path, Err: ErrNameCollision})
			continue
		}
		def, err := c.compileOperation(res, ref, name)
		if err != nil {
			errs = append(errs, &CompilationError{Tool: name, Method: ref.Method, Path: ref.Path, Err: err})
			continue
		}
		seen[name] = true
		defs = append(defs, def)
	}
	return newRegistry(defs), errs
}

func (c *Compiler) compileOperation(res *resolver, ref apispec.OperationRef, name string) (*ToolDefinition, error) {
	op := ref.Op
	def := &ToolDefinition{
		Name:        name,
		Method:      ref.Method,
		Path:        ref.Path,
		OperationID: op.OperationID,
		ReadOnly:    ref.Method == "GET",
		Deprecated:  op.Deprecated,
	}
	def.Title = op.Summary
	if def.Title == "" {
		def.Title = ref.Method + " " + ref.Path
	}
	def.Description = toolDescription(ref)

	params, err := c.mergeParameters(res, ref)
	if err != nil {
		return nil, err
	}
	params = addImplicitPathParams(ref.Path, params)
	disambiguate(params)

	if op.RequestBody != nil {
		body, bodyParams, err := c.compileBody(res, op.RequestBody, params)
		if err != nil {
			return nil, fmt.Errorf("request body: %w", err)
		}
		def.Body = body
		params = append(params, bodyParams...)
	}
	def.Params = params
	def.InputSchema = inputSchema(params)
	def.OutputSchema = c.outputSchema(res, ref, name)
	return def, nil
}

// mergeParameters resolves path-level then operation-level parameters; an
// operation parameter replaces a path-level one with the same (name, in).
func (c *Compiler) mergeParameters(res *resolver, ref apispec.OperationRef) ([]Param, error) {
	var out []Param
	index := map[string]int{}

	add := func(list []*apispec.Parameter) error {
		for _, raw := range list {
			p, err := res.parameter(raw)
			if err != nil {
				return err
			}
			if p.Name == "" {
				return fmt.Errorf("%w: missing name", ErrInvalidParameter)
			}
			switch p.In {
			case "query", "path", "header", "cookie":
			default:
				return fmt.Errorf("%w: %s has unsupported location %q", ErrInvalidParameter, p.Name, p.In)
			}
			if c.opts.Forbidden.Matches(p) {
				continue
			}

			schema, err := res.schema(p.Schema)
			if err != nil {
				return fmt.Errorf("parameter %s: %w", p.Name, err)
			}
			if schema == nil {
				schema = map[string]any{"type": "string"}
			}
			if p.Description != "" {
				if _, ok := schema["description"]; !ok {
					schema["description"] = p.Description
				}
			}

			param := Param{
				Name:        p.Name,
				WireName:    p.Name,
				In:          p.In,
				Kind:        kindOf(schemaType(schema)),
				Required:    p.Required || p.In == "path",
				Explode:     p.Explode == nil || *p.Explode,
				Description: p.Description,
				Schema:      schema,
			}
			key := p.In + ":" + p.Name
			if i, ok := index[key]; ok {
				out[i] = param
				continue
			}
			index[key] = len(out)
			out = append(out, param)
		}
		return nil
	}

	if err := add(ref.Item.Parameters); err != nil {
		return nil, err
	}
	if err := add(ref.Op.Parameters); err != nil {
		return nil, err
	}
	return out, nil
}

var pathVarPattern = regexp.MustCompile(`\{([^{}/]+)\}`)

// addImplicitPathParams declares a required string for every template
// variable the description forgot to declare.
func addImplicitPathParams(path string, params []Param) []Param {
	declared := map[string]bool{}
	for _, p := range params {
		if p.In == "path" {
			declared[p.WireName] = true
		}
	}
	for _, m := range pathVarPattern.FindAllStringSubmatch(path, -1) {
		name := m[1]
		if declared[name] {
			continue
		}
		declared[name] = true
		params = append(params, Param{
			Name:     name,
			WireName: name,
			In:       "path",
			Kind:     KindString,
			Required: true,
			Schema:   map[string]any{"type": "string"},
		})
	}
	return params
}

// disambiguate renames arguments whose names clash across locations to
// name_<in>, adding a numeric suffix when that name is also taken.
func disambiguate(params []Param) {
	counts := map[string]int{}
	for _, p := range params {
		counts[p.Name]++
	}
	taken := map[string]bool{}
	for _, p := range params {
		if counts[p.Name] == 1 {
			taken[p.Name] = true
		}
	}
	for i := range params {
		if counts[params[i].Name] < 2 {
			continue
		}
		base := params[i].Name + "_" + params[i].In
		name := base
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		taken[name] = true
		params[i].Name = name
	}
}

func (c *Compiler) compileBody(res *resolver, raw *apispec.RequestBody, params []Param) (*Body, []Param, error) {
	rb, err := res.requestBody(raw)
	if err != nil {
		return nil, nil, err
	}
	if rb == nil {
		return nil, nil, nil
	}

	contentType, media := pickMedia(rb.Content)
	if contentType == "" {
		contentType = "application/json"
	}
	var schema map[string]any
	if media != nil {
		schema, err = res.schema(media.Schema)
		if err != nil {
			return nil, nil, err
		}
	}
	if schema == nil {
		schema = map[string]any{}
	}

	body := &Body{Required: rb.Required, ContentType: contentType, Schema: schema}

	taken := map[string]bool{}
	for _, p := range params {
		taken[p.Name] = true
	}

	props, _ := schema["properties"].(map[string]any)
	if isJSONMediaType(contentType) && schemaType(schema) == "object" && len(props) > 0 && !clashes(props, taken) {
		body.Flattened = true
		required := map[string]bool{}
		if list, ok := schema["required"].([]string); ok {
			for _, r := range list {
				required[r] = true
			}
		}
		names := make([]string, 0, len(props))
		for n := range props {
			names = append(names, n)
		}
		sort.Strings(names)

		out := make([]Param, 0, len(names))
		for _, n := range names {
			ps, _ := props[n].(map[string]any)
			if ps == nil {
				ps = map[string]any{}
			}
			desc, _ := ps["description"].(string)
			out = append(out, Param{
				Name:        n,
				WireName:    n,
				In:          "body",
				Kind:        kindOf(schemaType(ps)),
				Required:    rb.Required && required[n],
				Description: desc,
				Schema:      ps,
			})
		}
		return body, out, nil
	}

	name := "body"
	if taken[name] {
		name = "request_body"
	}
	kind := kindOf(schemaType(schema))
	if schemaType(schema) == "" && isJSONMediaType(contentType) {
		kind = KindObject
	}
	argSchema := copySchema(schema)
	if rb.Description != "" {
		if _, ok := argSchema["description"]; !ok {
			argSchema["description"] = rb.Description
		}
	}
	if _, ok := argSchema["type"]; !ok {
		argSchema["type"] = string(kind)
	}
	return body, []Param{{
		Name:        name,
		In:          "body",
		Kind:        kind,
		Required:    rb.Required,
		Description: rb.Description,
		Schema:      argSchema,
	}}, nil
}

func clashes(props map[string]any, taken map[string]bool) bool {
	for n := range props {
		if taken[n] {
			return true
		}
	}
	return false
}

// pickMedia prefers a JSON media type, otherwise the first in sorted order.
func pickMedia(content map[string]*apispec.MediaType) (string, *apispec.MediaType) {
	if len(content) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if isJSONMediaType(k) {
			return k, content[k]
		}
	}
	return keys[0], content[keys[0]]
}

// outputSchema returns the first declared 2xx (or default) JSON schema.
// Unresolvable schemas degrade to open output instead of failing the tool.
func (c *Compiler) outputSchema(res *resolver, ref apispec.OperationRef, name string) map[string]any {
	codes := make([]string, 0, len(ref.Op.Responses))
	for code := range ref.Op.Responses {
		if strings.HasPrefix(code, "2") {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	if len(codes) == 0 {
		if _, ok := ref.Op.Responses["default"]; ok {
			codes = append(codes, "default")
		}
	}

	for _, code := range codes {
		resp := ref.Op.Responses[code]
		if resp == nil {
			continue
		}
		_, media := pickMedia(resp.Content)
		if media == nil || media.Schema == nil {
			continue
		}
		schema, err := res.schema(media.Schema)
		if err != nil {
			c.logger.Warn().
				Str("tool", name).
				Str("status", code).
				Str("error", err.Error()).
				Msg("response schema unresolved, output left open")
			return nil
		}
		return schema
	}
	return nil
}

func inputSchema(params []Param) map[string]any {
	props := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		props[p.Name] = p.Schema
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func toolDescription(ref apispec.OperationRef) string {
	op := ref.Op
	parts := make([]string, 0, 3)
	if op.Summary != "" {
		parts = append(parts, op.Summary)
	}
	if op.Description != "" && op.Description != op.Summary {
		parts = append(parts, strings.TrimSpace(op.Description))
	}
	if len(parts) == 0 {
		parts = append(parts, ref.Method+" "+ref.Path)
	}
	if op.Deprecated {
		parts = append(parts, "(deprecated)")
	}
	return strings.Join(parts, "\n\n")
}

func (c *Compiler) toolName(ref apispec.OperationRef) string {
	if c.opts.Naming == NamingOperationID && ref.Op.OperationID != "" {
		if name := cleanName(ref.Op.OperationID, false); name != "" {
			return truncateName(name)
		}
	}
	return PathToolName(ref.Method, ref.Path)
}

// PathToolName derives the default tool name for a method and path template.
func PathToolName(method, path string) string {
	p := cleanName(path, true)
	if p == "" {
		p = "root"
	}
	return truncateName(strings.ToLower(method) + "_" + p)
}

// cleanName collapses every run of characters outside [A-Za-z0-9] into one underscore.
func cleanName(s string, lower bool) string {
	if lower {
		s = strings.ToLower(s)
	}
	var b strings.Builder
	pending := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

func truncateName(name string) string {
	if len(name) > maxToolNameLen {
		name = strings.TrimRight(name[:maxToolNameLen], "_")
	}
	return name
}

func copySchema(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}
