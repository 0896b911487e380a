package catalog

// Param is one caller-facing argument and where it goes on the wire.
type Param struct {
	Name        string         // argument key in the tool input
	WireName    string         // name sent to the backend
	In          string         // path, query, header, cookie or body
	Kind        Kind           //
	Required    bool           //
	Explode     bool           // arrays repeat the query key when true
	Description string         //
	Schema      map[string]any // expanded JSON schema for the argument
}

// Body describes how body-located arguments are serialized.
type Body struct {
	Required    bool
	ContentType string
	// Flattened is true when each top-level body property is its own argument;
	// otherwise the whole payload is the single argument named by Param.
	Flattened bool
	Schema    map[string]any
}

// ToolDefinition is the compiled, read-only view of one operation.
type ToolDefinition struct {
	Name         string
	Title        string
	Description  string
	Method       string
	Path         string
	OperationID  string
	Params       []Param
	Body         *Body
	InputSchema  map[string]any
	OutputSchema map[string]any // nil means untyped pass-through
	ReadOnly     bool
	Deprecated   bool
}

// RequiredArgs returns the names of every required argument.
func (t *ToolDefinition) RequiredArgs() []string {
	var out []string
	for _, p := range t.Params {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

// Param returns the argument with the given name.
func (t *ToolDefinition) Param(name string) (Param, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Registry maps tool names to definitions. It is populated once by the
// compiler and never mutated afterwards, so it is safe for concurrent reads.
type Registry struct {
	tools map[string]*ToolDefinition
	order []string
}

func newRegistry(defs []*ToolDefinition) *Registry {
	r := &Registry{
		tools: make(map[string]*ToolDefinition, len(defs)),
		order: make([]string, 0, len(defs)),
	}
	for _, d := range defs {
		r.tools[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (*ToolDefinition, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns every tool in compile order.
func (r *Registry) List() []*ToolDefinition {
	out := make([]*ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns every tool name in compile order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}
