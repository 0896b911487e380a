package catalog

import (
	"errors"
	"os"
	"regexp"
	"testing"

	"pgregory.net/rapid"

	"github.com/bobmcallan/openapi-bridge/internal/apispec"
)

func parseDesc(t *testing.T, doc string) *apispec.Description {
	t.Helper()
	desc, err := apispec.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("failed to parse description: %v", err)
	}
	return desc
}

func compile(t *testing.T, desc *apispec.Description) (*Registry, []*CompilationError) {
	t.Helper()
	c := NewCompiler(Options{Forbidden: apispec.DefaultForbiddenPolicy()}, nil)
	return c.Compile(desc)
}

func requiredList(def *ToolDefinition) []string {
	list, _ := def.InputSchema["required"].([]string)
	return list
}

func TestCompile_Fixture(t *testing.T) {
	data, err := os.ReadFile("../apispec/testdata/togovar.yml")
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}
	desc, err := apispec.Parse(data)
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	// Deliberately not sanitized: the compiler must still drop pretty.
	reg, errs := compile(t, desc)
	if len(errs) != 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}

	want := []string{"get_search_gene", "post_search_variant", "get_variant_id"}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("expected tools %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tool %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	for _, def := range reg.List() {
		if _, ok := def.Param("pretty"); ok {
			t.Errorf("%s advertises pretty", def.Name)
		}
		props := def.InputSchema["properties"].(map[string]any)
		if _, ok := props["pretty"]; ok {
			t.Errorf("%s input schema contains pretty", def.Name)
		}
	}

	gene, _ := reg.Lookup("get_search_gene")
	if !gene.ReadOnly {
		t.Error("expected GET tool to be read-only")
	}
	if gene.Title != "Search genes" {
		t.Errorf("unexpected title %q", gene.Title)
	}
	term, ok := gene.Param("term")
	if !ok || !term.Required || term.In != "query" || term.Kind != KindString {
		t.Errorf("unexpected term param %+v", term)
	}
	if gene.OutputSchema == nil || gene.OutputSchema["type"] != "array" {
		t.Errorf("expected resolved array output schema, got %v", gene.OutputSchema)
	}
	items, _ := gene.OutputSchema["items"].(map[string]any)
	if items == nil || items["type"] != "object" {
		t.Errorf("expected GeneList items to be inlined, got %v", gene.OutputSchema["items"])
	}

	variant, _ := reg.Lookup("post_search_variant")
	if variant.Body == nil || !variant.Body.Flattened || !variant.Body.Required {
		t.Fatalf("expected required flattened body, got %+v", variant.Body)
	}
	if limit, ok := variant.Param("limit"); !ok || limit.Kind != KindInteger || limit.Required {
		t.Errorf("unexpected limit param %+v", limit)
	}
	if q, ok := variant.Param("query"); !ok || q.In != "body" || !q.Required || q.Kind != KindObject {
		t.Errorf("unexpected query param %+v", q)
	}
	if off, ok := variant.Param("offset"); !ok || off.Required {
		t.Errorf("unexpected offset param %+v", off)
	}
	if variant.OutputSchema != nil {
		t.Errorf("expected open output schema, got %v", variant.OutputSchema)
	}

	one, _ := reg.Lookup("get_variant_id")
	if req := requiredList(one); len(req) != 1 || req[0] != "id" {
		t.Errorf("expected id required, got %v", req)
	}
}

func TestCompile_UnresolvedRefExcludesOnlyThatOperation(t *testing.T) {
	desc := parseDesc(t, `
openapi: 3.0.3
paths:
  /broken:
    get:
      parameters:
        - $ref: '#/components/parameters/Missing'
  /fine:
    get:
      parameters:
        - {in: query, name: q, schema: {type: string}}
`)
	reg, errs := compile(t, desc)
	if reg.Len() != 1 {
		t.Fatalf("expected 1 tool, got %v", reg.Names())
	}
	if _, ok := reg.Lookup("get_fine"); !ok {
		t.Error("expected get_fine to compile")
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 compile error, got %v", errs)
	}
	if !errors.Is(errs[0], ErrUnresolvedRef) {
		t.Errorf("expected ErrUnresolvedRef, got %v", errs[0])
	}
	if errs[0].Path != "/broken" || errs[0].Method != "GET" {
		t.Errorf("unexpected error location %+v", errs[0])
	}
}

func TestCompile_NameCollision(t *testing.T) {
	desc := parseDesc(t, `
paths:
  /a-b:
    get: {summary: first}
  /a_b:
    get: {summary: second}
`)
	reg, errs := compile(t, desc)
	if reg.Len() != 1 {
		t.Fatalf("expected 1 tool, got %v", reg.Names())
	}
	def, _ := reg.Lookup("get_a_b")
	if def.Path != "/a-b" {
		t.Errorf("expected first path to win, got %s", def.Path)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrNameCollision) {
		t.Fatalf("expected a collision error, got %v", errs)
	}
}

func TestCompile_ZeroParameters(t *testing.T) {
	desc := parseDesc(t, `
paths:
  /status:
    get: {}
`)
	reg, errs := compile(t, desc)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	def, ok := reg.Lookup("get_status")
	if !ok {
		t.Fatal("expected get_status")
	}
	if def.InputSchema["type"] != "object" {
		t.Errorf("expected object input schema, got %v", def.InputSchema)
	}
	if props := def.InputSchema["properties"].(map[string]any); len(props) != 0 {
		t.Errorf("expected no properties, got %v", props)
	}
	if _, ok := def.InputSchema["required"]; ok {
		t.Error("expected no required list")
	}
	if def.Description != "GET /status" {
		t.Errorf("unexpected fallback description %q", def.Description)
	}
}

func TestCompile_BodyClashUsesSingleArgument(t *testing.T) {
	desc := parseDesc(t, `
paths:
  /items/{id}:
    put:
      parameters:
        - {in: path, name: id, schema: {type: integer}}
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                id: {type: integer}
                name: {type: string}
`)
	reg, _ := compile(t, desc)
	def, ok := reg.Lookup("put_items_id")
	if !ok {
		t.Fatalf("expected put_items_id, got %v", reg.Names())
	}
	if def.Body.Flattened {
		t.Error("expected clashing body to stay unflattened")
	}
	body, ok := def.Param("body")
	if !ok || body.Kind != KindObject || body.Required {
		t.Errorf("unexpected body param %+v", body)
	}
	if id, _ := def.Param("id"); !id.Required || id.Kind != KindInteger {
		t.Errorf("expected required integer path id, got %+v", id)
	}
}

func TestCompile_ImplicitPathParameter(t *testing.T) {
	desc := parseDesc(t, `
paths:
  /genes/{symbol}/variants:
    get: {}
`)
	reg, _ := compile(t, desc)
	def, ok := reg.Lookup("get_genes_symbol_variants")
	if !ok {
		t.Fatalf("unexpected names %v", reg.Names())
	}
	p, ok := def.Param("symbol")
	if !ok || p.In != "path" || !p.Required {
		t.Errorf("expected implicit required path param, got %+v", p)
	}
}

func TestCompile_OperationLevelOverridesPathLevel(t *testing.T) {
	desc := parseDesc(t, `
paths:
  /things:
    parameters:
      - {in: query, name: limit, schema: {type: string}}
    get:
      parameters:
        - {in: query, name: limit, required: true, schema: {type: integer}}
        - {in: header, name: limit, schema: {type: string}}
`)
	reg, _ := compile(t, desc)
	def, _ := reg.Lookup("get_things")
	if len(def.Params) != 2 {
		t.Fatalf("expected 2 params, got %+v", def.Params)
	}
	q, ok := def.Param("limit_query")
	if !ok || q.Kind != KindInteger || !q.Required || q.WireName != "limit" {
		t.Errorf("unexpected query limit %+v", q)
	}
	if h, ok := def.Param("limit_header"); !ok || h.WireName != "limit" {
		t.Errorf("unexpected header limit %+v", h)
	}
}

func TestCompile_RenamedArgumentStaysUnique(t *testing.T) {
	desc := parseDesc(t, `
paths:
  /things:
    get:
      parameters:
        - {in: query, name: id, schema: {type: string}}
        - {in: header, name: id, schema: {type: string}}
        - {in: query, name: id_header, schema: {type: integer}}
`)
	reg, errs := compile(t, desc)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	def, _ := reg.Lookup("get_things")

	want := map[string]struct{ in, wire string }{
		"id_query":    {"query", "id"},
		"id_header_2": {"header", "id"},
		"id_header":   {"query", "id_header"},
	}
	if len(def.Params) != len(want) {
		t.Fatalf("expected %d params, got %+v", len(want), def.Params)
	}
	for name, w := range want {
		p, ok := def.Param(name)
		if !ok || p.In != w.in || p.WireName != w.wire {
			t.Errorf("param %s = %+v, want in=%s wire=%s", name, p, w.in, w.wire)
		}
	}
	props, _ := def.InputSchema["properties"].(map[string]any)
	if len(props) != len(want) {
		t.Errorf("expected %d input properties, got %v", len(want), props)
	}
}

func TestCompile_SanitizedAliasChainStillCompiles(t *testing.T) {
	desc := parseDesc(t, `
paths:
  /search/gene:
    get:
      parameters:
        - $ref: '#/components/parameters/Format'
        - {in: query, name: term, required: true, schema: {type: string}}
components:
  parameters:
    Pretty: {in: query, name: pretty, schema: {type: boolean}}
    Fmt: {$ref: '#/components/parameters/Pretty'}
    Format: {$ref: '#/components/parameters/Fmt'}
`)
	apispec.NewSanitizer(apispec.DefaultForbiddenPolicy()).Sanitize(desc)

	reg, errs := compile(t, desc)
	if len(errs) != 0 {
		t.Fatalf("alias chain left a dangling ref: %v", errs)
	}
	def, ok := reg.Lookup("get_search_gene")
	if !ok {
		t.Fatal("expected get_search_gene to compile")
	}
	if len(def.Params) != 1 || def.Params[0].Name != "term" {
		t.Errorf("unexpected params %+v", def.Params)
	}
}

func TestCompile_OperationIDNaming(t *testing.T) {
	desc := parseDesc(t, `
paths:
  /search/gene:
    get: {operationId: searchGene}
  /search/variant:
    get: {}
`)
	c := NewCompiler(Options{Naming: NamingOperationID}, nil)
	reg, errs := c.Compile(desc)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if _, ok := reg.Lookup("searchGene"); !ok {
		t.Errorf("expected operationId name, got %v", reg.Names())
	}
	if _, ok := reg.Lookup("get_search_variant"); !ok {
		t.Errorf("expected path fallback name, got %v", reg.Names())
	}
}

func TestCompile_RecursiveSchemaTerminates(t *testing.T) {
	desc := parseDesc(t, `
paths:
  /tree:
    post:
      requestBody:
        content:
          application/json:
            schema: {$ref: '#/components/schemas/Node'}
components:
  schemas:
    Node:
      type: object
      properties:
        children:
          type: array
          items: {$ref: '#/components/schemas/Node'}
`)
	reg, errs := compile(t, desc)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	def, _ := reg.Lookup("post_tree")
	children, ok := def.Param("children")
	if !ok || children.Kind != KindArray {
		t.Fatalf("expected flattened children array, got %+v", def.Params)
	}
	items, _ := children.Schema["items"].(map[string]any)
	if items == nil || len(items) != 0 {
		t.Errorf("expected cycle to be cut to an open schema, got %v", items)
	}
}

func TestCompile_UnresolvedResponseSchemaLeavesOutputOpen(t *testing.T) {
	desc := parseDesc(t, `
paths:
  /x:
    get:
      responses:
        '200':
          content:
            application/json:
              schema: {$ref: '#/components/schemas/Nope'}
`)
	reg, errs := compile(t, desc)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	def, _ := reg.Lookup("get_x")
	if def.OutputSchema != nil {
		t.Errorf("expected open output, got %v", def.OutputSchema)
	}
}

func TestPathToolName(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{"GET", "/search/gene", "get_search_gene"},
		{"POST", "/search/variant", "post_search_variant"},
		{"DELETE", "/variant/{id}", "delete_variant_id"},
		{"GET", "/", "get_root"},
		{"PATCH", "/API/v1//Items.json", "patch_api_v1_items_json"},
	}
	for _, tt := range tests {
		if got := PathToolName(tt.method, tt.path); got != tt.want {
			t.Errorf("PathToolName(%s, %s) = %s, want %s", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestPathToolName_AlwaysValid(t *testing.T) {
	valid := regexp.MustCompile(`^[a-z0-9_]{1,64}$`)
	rapid.Check(t, func(rt *rapid.T) {
		method := rapid.SampledFrom(apispec.Methods).Draw(rt, "method")
		path := rapid.String().Draw(rt, "path")
		name := PathToolName(method, path)
		if !valid.MatchString(name) {
			rt.Fatalf("invalid tool name %q for %q", name, path)
		}
	})
}

func TestKindAccepts(t *testing.T) {
	tests := []struct {
		kind Kind
		v    any
		want bool
	}{
		{KindString, "x", true},
		{KindString, 1.5, true},
		{KindString, []any{}, false},
		{KindInteger, 3.0, true},
		{KindInteger, 3.5, false},
		{KindNumber, "3", false},
		{KindBoolean, true, true},
		{KindBoolean, "true", false},
		{KindArray, []any{"a"}, true},
		{KindObject, map[string]any{}, true},
		{KindObject, "x", false},
	}
	for _, tt := range tests {
		if got := tt.kind.Accepts(tt.v); got != tt.want {
			t.Errorf("%s.Accepts(%v) = %v, want %v", tt.kind, tt.v, got, tt.want)
		}
	}
}
