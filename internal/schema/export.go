package schema

import (
	"github.com/getkin/kin-openapi/openapi3"

	"swashark/internal/openapi"
)

// Export renders the schema at ref as a self-contained JSON Schema document
// with references inlined. Recursive targets are emitted once under $defs
// and recursive edges point there.
func (r *Resolver) Export(ref *openapi3.SchemaRef, ptr string) map[string]any {
	e := &exporter{r: r, defs: map[string]map[string]any{}}
	out := e.export(ref, ptr, nil)
	for len(e.pending) > 0 {
		name := e.pending[0]
		e.pending = e.pending[1:]
		e.defs[name] = e.export(ComponentRef(name), openapi.SchemaPointer(name), nil)
	}
	if len(e.defs) > 0 {
		defs := make(map[string]any, len(e.defs))
		for name, def := range e.defs {
			defs[name] = def
		}
		out["$defs"] = defs
	}
	return out
}

type exporter struct {
	r       *Resolver
	defs    map[string]map[string]any
	pending []string
}

// edge returns the $defs reference for a recursive edge and queues its
// target. A reference that names no component becomes an empty schema.
func (e *exporter) edge(ref *openapi3.SchemaRef) map[string]any {
	name, ok := openapi.SchemaRefName(ref.Ref)
	if !ok {
		return map[string]any{}
	}
	if _, queued := e.defs[name]; !queued {
		e.defs[name] = nil
		e.pending = append(e.pending, name)
	}
	return map[string]any{"$ref": "#/$defs/" + openapi.EscapePointer(name)}
}

func (e *exporter) export(ref *openapi3.SchemaRef, ptr string, trail Trail) map[string]any {
	node, next, cyclic, err := e.r.Step(ref, ptr, trail)
	if err != nil {
		return map[string]any{}
	}
	if cyclic {
		return e.edge(ref)
	}

	out := map[string]any{}
	if node.Type != "" {
		out["type"] = node.Type
	}
	if node.Format != "" {
		out["format"] = node.Format
	}
	if s := node.Schema; s != nil {
		if s.Description != "" {
			out["description"] = s.Description
		}
		if s.Example != nil {
			out["example"] = s.Example
		}
		if s.Min != nil {
			out["minimum"] = *s.Min
		}
		if s.Max != nil {
			out["maximum"] = *s.Max
		}
		if s.MinLength > 0 {
			out["minLength"] = s.MinLength
		}
		if s.MaxLength != nil {
			out["maxLength"] = *s.MaxLength
		}
		if s.Pattern != "" {
			out["pattern"] = s.Pattern
		}
		if node.Nullable() {
			out["nullable"] = true
		}
	}
	if len(node.Enum) > 0 {
		out["enum"] = node.Enum
	}

	switch node.Kind {
	case KindObject:
		props := map[string]any{}
		var required []string
		for _, p := range node.Properties {
			props[p.Name] = e.export(p.Schema, p.Pointer, next)
			if p.Required {
				required = append(required, p.Name)
			}
		}
		out["properties"] = props
		if len(required) > 0 {
			out["required"] = required
		}
	case KindArray:
		if node.Items != nil {
			out["items"] = e.export(node.Items, node.ItemsPointer, next)
		}
	}
	return out
}

// ComponentRef builds a reference to a named component schema.
func ComponentRef(name string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Ref: openapi.SchemaPointer(name)}
}
