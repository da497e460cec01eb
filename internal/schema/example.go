package schema

import (
	"bytes"
	"encoding/json"

	"github.com/getkin/kin-openapi/openapi3"
)

// ExampleDateTime is the value synthesized for date-time strings.
const ExampleDateTime = "2024-01-01T00:00:00Z"

type Member struct {
	Name  string
	Value any
}

// Object is a JSON object that keeps its members in schema declaration order.
type Object []Member

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(m.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o Object) Get(name string) (any, bool) {
	for _, m := range o {
		if m.Name == name {
			return m.Value, true
		}
	}
	return nil, false
}

// Set replaces the member called name, or appends it.
func (o Object) Set(name string, value any) Object {
	for i := range o {
		if o[i].Name == name {
			o[i].Value = value
			return o
		}
	}
	return append(o, Member{Name: name, Value: value})
}

// Example synthesizes a representative value for the schema at ref:
// an explicit example wins, then the first enum value, then a structural
// value built from every declared property or the array items, then a
// per-type default.
func (r *Resolver) Example(ref *openapi3.SchemaRef, ptr string) any {
	return r.example(ref, ptr, nil)
}

// ExampleJSON is Example rendered as indented JSON.
func (r *Resolver) ExampleJSON(ref *openapi3.SchemaRef, ptr string) (string, error) {
	b, err := json.MarshalIndent(r.Example(ref, ptr), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Resolver) example(ref *openapi3.SchemaRef, ptr string, trail Trail) any {
	node, next, cyclic, err := r.Step(ref, ptr, trail)
	if err != nil {
		return nil
	}
	if cyclic {
		return r.cycleValue(ref, ptr)
	}
	return r.exampleNode(node, next)
}

// ExampleNode synthesizes from an already resolved node.
func (r *Resolver) ExampleNode(node *Node) any {
	return r.exampleNode(node, Trail(nil).With(node.Chain...))
}

func (r *Resolver) exampleNode(node *Node, trail Trail) any {
	if node.Schema != nil && node.Schema.Example != nil {
		return node.Schema.Example
	}
	switch node.Kind {
	case KindEnum:
		return node.Enum[0]
	case KindObject:
		obj := Object{}
		for _, p := range node.Properties {
			obj = append(obj, Member{Name: p.Name, Value: r.example(p.Schema, p.Pointer, trail)})
		}
		return obj
	case KindArray:
		return []any{r.example(node.Items, node.ItemsPointer, trail)}
	default:
		return PrimitiveDefault(node.Type, node.Format)
	}
}

// cycleValue stands in for a recursive edge: an empty container of the
// target's kind, or null.
func (r *Resolver) cycleValue(ref *openapi3.SchemaRef, ptr string) any {
	node, err := r.Resolve(ref, ptr)
	if err != nil {
		return nil
	}
	switch node.Kind {
	case KindObject:
		return Object{}
	case KindArray:
		return []any{}
	default:
		return r.exampleNode(node, nil)
	}
}

// PrimitiveDefault is the fallback value for a primitive type.
func PrimitiveDefault(typ, format string) any {
	switch typ {
	case openapi3.TypeString:
		if format == "date-time" {
			return ExampleDateTime
		}
		return "string"
	case openapi3.TypeInteger:
		return 0
	case openapi3.TypeNumber:
		return float64(0)
	case openapi3.TypeBoolean:
		return true
	default:
		return nil
	}
}
