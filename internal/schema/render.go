package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"swashark/internal/openapi"
)

// ItemsSegment is the path segment of an array's item schema.
const ItemsSegment = "[]"

type Constraint struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RenderNode is one line of a schema structure view. Path is stable across
// renders: "" for the root, "/prop" for properties, "/[]" for array items.
type RenderNode struct {
	Name        string        `json:"name,omitempty"`
	Path        string        `json:"path"`
	Type        string        `json:"type"`
	Format      string        `json:"format,omitempty"`
	Description string        `json:"description,omitempty"`
	Ref         string        `json:"ref,omitempty"`
	Required    bool          `json:"required,omitempty"`
	Constraints []Constraint  `json:"constraints,omitempty"`
	Enum        []any         `json:"enum,omitempty"`
	Cycle       bool          `json:"cycle,omitempty"`
	Unresolved  bool          `json:"unresolved,omitempty"`
	Error       string        `json:"error,omitempty"`
	Expandable  bool          `json:"expandable,omitempty"`
	Expanded    bool          `json:"expanded,omitempty"`
	Children    []*RenderNode `json:"children,omitempty"`
}

// ExpandState stores toggled nodes by path. Absent paths use the default:
// the root open, everything below it closed.
type ExpandState map[string]bool

func (e ExpandState) IsExpanded(path string) bool {
	if open, ok := e[path]; ok {
		return open
	}
	return path == ""
}

func (e ExpandState) Toggle(path string) {
	e[path] = !e.IsExpanded(path)
}

type RenderOptions struct {
	Expand ExpandState
	// ExpandAll opens every node except recursive edges.
	ExpandAll bool
}

// Render builds the structure tree of the schema at ref. Children of closed
// nodes are not built.
func (r *Resolver) Render(ref *openapi3.SchemaRef, ptr string, opts RenderOptions) *RenderNode {
	if opts.Expand == nil {
		opts.Expand = ExpandState{}
	}
	return r.render("", "", ref, ptr, false, nil, opts)
}

func (r *Resolver) render(name, path string, ref *openapi3.SchemaRef, ptr string, required bool, trail Trail, opts RenderOptions) *RenderNode {
	out := &RenderNode{Name: name, Path: path, Required: required}

	node, next, cyclic, err := r.Step(ref, ptr, trail)
	switch {
	case err != nil:
		out.Type = "unknown schema"
		out.Unresolved = true
		out.Error = err.Error()
		if ref != nil {
			out.Ref = refLabel(ref.Ref)
		}
		return out
	case cyclic:
		out.Cycle = true
		out.Ref = refLabel(ref.Ref)
		out.Type = openapi3.TypeObject
		if target, err := r.Resolve(ref, ptr); err == nil {
			out.Type = typeLabel(target)
			out.Description = firstLine(target.Schema)
		}
		return out
	}

	out.Ref = node.Ref
	out.Type = typeLabel(node)
	out.Format = node.Format
	out.Enum = node.Enum
	if node.Schema != nil {
		out.Description = strings.TrimSpace(node.Schema.Description)
	}
	out.Constraints = constraints(node)

	switch node.Kind {
	case KindObject:
		out.Expandable = len(node.Properties) > 0
	case KindArray:
		out.Expandable = node.Items != nil
	}
	if !out.Expandable {
		return out
	}
	out.Expanded = opts.ExpandAll || opts.Expand.IsExpanded(path)
	if !out.Expanded {
		return out
	}

	switch node.Kind {
	case KindObject:
		for _, p := range node.Properties {
			childPath := path + "/" + openapi.EscapePointer(p.Name)
			out.Children = append(out.Children, r.render(p.Name, childPath, p.Schema, p.Pointer, p.Required, next, opts))
		}
	case KindArray:
		out.Children = append(out.Children, r.render("items", path+"/"+ItemsSegment, node.Items, node.ItemsPointer, false, next, opts))
	}
	return out
}

func typeLabel(n *Node) string {
	switch n.Kind {
	case KindObject:
		return openapi3.TypeObject
	case KindArray:
		return openapi3.TypeArray
	}
	if n.Type == "" {
		return "any"
	}
	return n.Type
}

func refLabel(ref string) string {
	if name, ok := openapi.SchemaRefName(ref); ok {
		return name
	}
	return ref
}

func firstLine(s *openapi3.Schema) string {
	if s == nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(s.Description), "\n")
	return line
}

func constraints(n *Node) []Constraint {
	s := n.Schema
	if s == nil {
		return nil
	}
	var out []Constraint
	add := func(name, value string) {
		out = append(out, Constraint{Name: name, Value: value})
	}
	flag := func(name string, on bool) {
		if on {
			add(name, "true")
		}
	}

	flag("nullable", n.Nullable())
	flag("readOnly", s.ReadOnly)
	flag("writeOnly", s.WriteOnly)
	flag("deprecated", s.Deprecated)
	if s.Default != nil {
		add("default", jsonText(s.Default))
	}
	if s.Min != nil {
		name := "minimum"
		if s.ExclusiveMin {
			name = "exclusiveMinimum"
		}
		add(name, formatFloat(*s.Min))
	}
	if s.Max != nil {
		name := "maximum"
		if s.ExclusiveMax {
			name = "exclusiveMaximum"
		}
		add(name, formatFloat(*s.Max))
	}
	if s.MultipleOf != nil {
		add("multipleOf", formatFloat(*s.MultipleOf))
	}
	if s.MinLength > 0 {
		add("minLength", strconv.FormatUint(s.MinLength, 10))
	}
	if s.MaxLength != nil {
		add("maxLength", strconv.FormatUint(*s.MaxLength, 10))
	}
	if s.Pattern != "" {
		add("pattern", s.Pattern)
	}
	if s.MinItems > 0 {
		add("minItems", strconv.FormatUint(s.MinItems, 10))
	}
	if s.MaxItems != nil {
		add("maxItems", strconv.FormatUint(*s.MaxItems, 10))
	}
	flag("uniqueItems", s.UniqueItems)
	if len(n.Enum) > 0 {
		vals := make([]string, len(n.Enum))
		for i, v := range n.Enum {
			vals[i] = jsonText(v)
		}
		add("enum", strings.Join(vals, " | "))
	}
	if n.Alternatives > 1 {
		add(n.Composition, fmt.Sprintf("first of %d alternatives", n.Alternatives))
	}
	if s.Example != nil {
		add("example", jsonText(s.Example))
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
