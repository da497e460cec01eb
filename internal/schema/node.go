// Package schema walks OpenAPI schema graphs: it resolves named references
// lazily, synthesizes example values, and renders collapsible structure trees.
package schema

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Kind is the variant of a schema node. Classification follows a fixed
// precedence: reference, enum, array, object, primitive.
type Kind int

const (
	KindPrimitive Kind = iota
	KindReference
	KindEnum
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindReference:
		return "reference"
	case KindEnum:
		return "enum"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "primitive"
	}
}

type Property struct {
	Name     string
	Required bool
	Schema   *openapi3.SchemaRef
	Pointer  string
}

// Node is one level of a resolved schema. Children (properties, items) are
// left unresolved until a caller steps into them.
type Node struct {
	Kind Kind
	// Ref is the component name the node was reached through; Chain holds
	// every name of a ref-to-ref chain, Ref being the last.
	Ref     string
	Chain   []string
	Pointer string
	Schema  *openapi3.Schema

	Type   string
	Format string

	Properties   []Property
	Items        *openapi3.SchemaRef
	ItemsPointer string
	Enum         []any

	// Composition is "oneOf" or "anyOf" when the node stands for the first of
	// Alternatives schemas.
	Composition  string
	Alternatives int
}

// Classify determines the variant of a single schema without following
// references.
func Classify(ref *openapi3.SchemaRef) Kind {
	if ref == nil {
		return KindPrimitive
	}
	if ref.Ref != "" {
		return KindReference
	}
	return classifySchema(ref.Value)
}

func classifySchema(s *openapi3.Schema) Kind {
	switch {
	case s == nil:
		return KindPrimitive
	case len(s.Enum) > 0:
		return KindEnum
	case hasType(s, openapi3.TypeArray) || s.Items != nil:
		return KindArray
	case len(s.Properties) > 0 || hasType(s, openapi3.TypeObject) || len(s.AllOf) > 0:
		return KindObject
	default:
		return KindPrimitive
	}
}

func schemaTypes(s *openapi3.Schema) []string {
	if s == nil || s.Type == nil {
		return nil
	}
	return s.Type.Slice()
}

func hasType(s *openapi3.Schema, typ string) bool {
	for _, t := range schemaTypes(s) {
		if t == typ {
			return true
		}
	}
	return false
}

// primaryType is the first declared type other than "null".
func primaryType(s *openapi3.Schema) string {
	for _, t := range schemaTypes(s) {
		if t != openapi3.TypeNull {
			return t
		}
	}
	return ""
}

// IsBinary reports a string schema carrying file content.
func (n *Node) IsBinary() bool {
	return n != nil && n.Kind == KindPrimitive && n.Type == openapi3.TypeString &&
		(n.Format == "binary" || n.Format == "base64")
}

// Required reports whether the object node lists name as required.
func (n *Node) Required(name string) bool {
	for _, p := range n.Properties {
		if p.Name == name {
			return p.Required
		}
	}
	return false
}

// Nullable covers both the 3.0 keyword and a 3.1 "null" type.
func (n *Node) Nullable() bool {
	if n == nil || n.Schema == nil {
		return false
	}
	return n.Schema.Nullable || hasType(n.Schema, openapi3.TypeNull)
}
