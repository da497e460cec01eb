package openapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

const schemaRefPrefix = "#/components/schemas/"

// Document is a parsed OpenAPI document. It is never mutated after Parse.
type Document struct {
	T     *openapi3.T
	order KeyOrder
}

// Parse decodes a JSON or YAML OpenAPI 3.x document. References are left
// unresolved: kin-openapi's loader would reject a document with a dangling
// $ref, and schemas are resolved lazily by the schema package instead.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty openapi document")
	}
	if data[0] != '{' {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse yaml document: %w", err)
		}
		data = converted
	}

	order, err := indexKeyOrder(data)
	if err != nil {
		return nil, fmt.Errorf("parse json document: %w", err)
	}

	var t openapi3.T
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode openapi document: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(t.OpenAPI), "3") {
		return nil, fmt.Errorf("unsupported openapi version %q (want 3.x)", t.OpenAPI)
	}

	return &Document{T: &t, order: order}, nil
}

// NewDocument wraps a document built in code. Declaration order falls back
// to lexical order.
func NewDocument(t *openapi3.T) *Document {
	return &Document{T: t, order: KeyOrder{}}
}

func (d *Document) Order() KeyOrder {
	if d == nil {
		return nil
	}
	return d.order
}

func (d *Document) Title() string {
	if d == nil || d.T == nil || d.T.Info == nil {
		return ""
	}
	return d.T.Info.Title
}

func (d *Document) Version() string {
	if d == nil || d.T == nil || d.T.Info == nil {
		return ""
	}
	return d.T.Info.Version
}

// Schemas returns components.schemas, or nil when the document has none.
func (d *Document) Schemas() openapi3.Schemas {
	if d == nil || d.T == nil || d.T.Components == nil {
		return nil
	}
	return d.T.Components.Schemas
}

// SchemaPointer is the JSON pointer of a named component schema.
func SchemaPointer(name string) string {
	return schemaRefPrefix + EscapePointer(name)
}

// SchemaRefName extracts the component name from a local schema reference.
func SchemaRefName(ref string) (string, bool) {
	name, ok := strings.CutPrefix(ref, schemaRefPrefix)
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return UnescapePointer(name), true
}

func componentName(ref, kind string) (string, bool) {
	name, ok := strings.CutPrefix(ref, "#/components/"+kind+"/")
	if !ok || name == "" {
		return "", false
	}
	return UnescapePointer(name), true
}

func yamlToJSON(data []byte) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeYAMLNode(&buf, &root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeYAMLNode emits n as JSON, keeping mapping key order.
func writeYAMLNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeYAMLNode(buf, n.Content[0])
	case yaml.AliasNode:
		return writeYAMLNode(buf, n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(n.Content[i].Value)
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeYAMLNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeYAMLNode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		return writeYAMLScalar(buf, n)
	default:
		return fmt.Errorf("unsupported yaml node kind %d at line %d", n.Kind, n.Line)
	}
	return nil
}

func writeYAMLScalar(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.ShortTag() {
	case "!!null":
		buf.WriteString("null")
		return nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return err
		}
		buf.WriteString(strconv.FormatBool(b))
		return nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			buf.WriteString(strconv.FormatInt(i, 10))
			return nil
		}
	case "!!float":
		var f float64
		if err := n.Decode(&f); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
			return nil
		}
	}
	s, _ := json.Marshal(n.Value)
	buf.Write(s)
	return nil
}
