package tool

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/chatloop/internal/util"
	"github.com/hupe1980/chatloop/model"
)

// Registry maps tool names to implementations. It is built once from a fixed
// set of tools and is read-only afterwards, so it is safe for concurrent use.
// Argument schemas are compiled at construction.
type Registry struct {
	tools      map[string]Tool
	validators map[string]*util.SchemaValidator
	names      []string
}

// NewRegistry builds a registry. Empty or duplicate names and schemas that do
// not compile are rejected.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools:      make(map[string]Tool, len(tools)),
		validators: make(map[string]*util.SchemaValidator, len(tools)),
		names:      make([]string, 0, len(tools)),
	}

	for _, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("nil tool")
		}
		name := t.Name()
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}

		v, err := util.CompileSchema(t.Parameters())
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", name, err)
		}

		r.tools[name] = t
		r.validators[name] = v
		r.names = append(r.names, name)
	}

	sort.Strings(r.names)

	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. Intended for static
// tool sets in main packages and tests.
func MustRegistry(tools ...Tool) *Registry {
	r, err := NewRegistry(tools...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Validate checks args against the schema of the named tool.
func (r *Registry) Validate(name string, args map[string]any) error {
	if _, ok := r.Lookup(name); !ok {
		return NewToolError(name, "tool is not registered", CodeUnknownTool)
	}
	return r.validators[name].Validate(args)
}

// Declarations returns the tool declarations advertised to the model, sorted by name.
func (r *Registry) Declarations() []model.ToolDefinition {
	if r == nil {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(r.names))
	for _, name := range r.names {
		t := r.tools[name]
		params := t.Parameters()
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		defs = append(defs, model.NewToolDefinition(name, t.Description(), params))
	}
	return defs
}
