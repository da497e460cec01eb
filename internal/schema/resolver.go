package schema

import (
	"fmt"
	"slices"

	"github.com/getkin/kin-openapi/openapi3"

	"swashark/internal/openapi"
)

type Reason int

const (
	ReasonMissing Reason = iota
	ReasonCyclic
)

// ResolutionError reports a reference that cannot be turned into a concrete
// schema. Callers render a placeholder instead of failing.
type ResolutionError struct {
	Ref    string
	Reason Reason
}

func (e *ResolutionError) Error() string {
	if e.Reason == ReasonCyclic {
		return fmt.Sprintf("cyclic schema reference %q", e.Ref)
	}
	return fmt.Sprintf("unresolvable schema reference %q", e.Ref)
}

// Resolver expands references of one document on demand.
type Resolver struct {
	schemas openapi3.Schemas
	order   openapi.KeyOrder
}

func NewResolver(doc *openapi.Document) *Resolver {
	return &Resolver{schemas: doc.Schemas(), order: doc.Order()}
}

// Trail holds the names of the referenced schemas a traversal is currently
// inside of.
type Trail []string

func (t Trail) Contains(name string) bool { return slices.Contains(t, name) }

func (t Trail) With(names ...string) Trail {
	out := make(Trail, len(t), len(t)+len(names))
	copy(out, t)
	return append(out, names...)
}

// Resolve follows ref to a concrete node, one level deep.
func (r *Resolver) Resolve(ref *openapi3.SchemaRef, ptr string) (*Node, error) {
	return r.resolve(ref, ptr, nil)
}

// resolve continues a resolution already inside the schemas named by chain.
func (r *Resolver) resolve(ref *openapi3.SchemaRef, ptr string, chain []string) (*Node, error) {
	chain = slices.Clip(chain)
	for ref != nil && ref.Ref != "" {
		name, ok := openapi.SchemaRefName(ref.Ref)
		if !ok {
			return nil, &ResolutionError{Ref: ref.Ref, Reason: ReasonMissing}
		}
		if slices.Contains(chain, name) {
			return nil, &ResolutionError{Ref: ref.Ref, Reason: ReasonCyclic}
		}
		chain = append(chain, name)
		target := r.schemas[name]
		if target == nil {
			return nil, &ResolutionError{Ref: ref.Ref, Reason: ReasonMissing}
		}
		ref, ptr = target, openapi.SchemaPointer(name)
	}

	var s *openapi3.Schema
	if ref != nil {
		s = ref.Value
	}
	node, err := r.build(s, ptr, chain)
	if err != nil {
		return nil, err
	}
	if len(chain) > 0 {
		// an alternative resolved below may have extended the chain
		if len(node.Chain) < len(chain) {
			node.Chain = chain
		}
		node.Ref = chain[len(chain)-1]
	}
	return node, nil
}

// Step resolves a child of a traversal. cyclic is true when ref leads back
// to a schema already on the trail; the caller then emits a closed marker.
func (r *Resolver) Step(ref *openapi3.SchemaRef, ptr string, trail Trail) (node *Node, next Trail, cyclic bool, err error) {
	if ref != nil && ref.Ref != "" {
		if name, ok := openapi.SchemaRefName(ref.Ref); ok && trail.Contains(name) {
			return nil, trail, true, nil
		}
	}
	node, err = r.Resolve(ref, ptr)
	if err != nil {
		return nil, trail, false, err
	}
	for _, name := range node.Chain {
		if trail.Contains(name) {
			return nil, trail, true, nil
		}
	}
	return node, trail.With(node.Chain...), false, nil
}

func (r *Resolver) build(s *openapi3.Schema, ptr string, chain []string) (*Node, error) {
	node := &Node{Pointer: ptr, Schema: s}
	if s == nil {
		return node, nil
	}

	// A bare oneOf/anyOf stands for its first alternative.
	if classifySchema(s) == KindPrimitive && primaryType(s) == "" {
		comp, alts := "oneOf", s.OneOf
		if len(alts) == 0 {
			comp, alts = "anyOf", s.AnyOf
		}
		if len(alts) > 0 {
			alt, err := r.resolve(alts[0], fmt.Sprintf("%s/%s/0", ptr, comp), chain)
			if err != nil {
				return nil, err
			}
			alt.Composition = comp
			alt.Alternatives = len(alts)
			return alt, nil
		}
	}

	node.Kind = classifySchema(s)
	node.Type = primaryType(s)
	node.Format = s.Format

	switch node.Kind {
	case KindEnum:
		node.Enum = s.Enum
	case KindArray:
		node.Type = openapi3.TypeArray
		node.Items = s.Items
		node.ItemsPointer = ptr + "/items"
	case KindObject:
		node.Type = openapi3.TypeObject
		props, err := r.properties(s, ptr, chain)
		if err != nil {
			return nil, err
		}
		node.Properties = props
	}
	return node, nil
}

// properties collects own and allOf-inherited properties in declaration
// order. A later declaration of a name replaces the earlier one in place.
func (r *Resolver) properties(s *openapi3.Schema, ptr string, chain []string) ([]Property, error) {
	var out []Property
	index := map[string]int{}
	required := map[string]bool{}

	var collect func(s *openapi3.Schema, ptr string, seen []string) error
	collect = func(s *openapi3.Schema, ptr string, seen []string) error {
		if s == nil {
			return nil
		}
		for _, name := range s.Required {
			required[name] = true
		}
		for i, member := range s.AllOf {
			mptr := fmt.Sprintf("%s/allOf/%d", ptr, i)
			mseen := seen
			for member != nil && member.Ref != "" {
				name, ok := openapi.SchemaRefName(member.Ref)
				if !ok || r.schemas[name] == nil {
					return &ResolutionError{Ref: member.Ref, Reason: ReasonMissing}
				}
				if slices.Contains(mseen, name) {
					return &ResolutionError{Ref: member.Ref, Reason: ReasonCyclic}
				}
				mseen = append(slices.Clone(mseen), name)
				member, mptr = r.schemas[name], openapi.SchemaPointer(name)
			}
			if member != nil {
				if err := collect(member.Value, mptr, mseen); err != nil {
					return err
				}
			}
		}

		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		for _, name := range r.order.Sort(ptr+"/properties", names) {
			p := Property{
				Name:    name,
				Schema:  s.Properties[name],
				Pointer: ptr + "/properties/" + openapi.EscapePointer(name),
			}
			if i, ok := index[name]; ok {
				out[i] = p
				continue
			}
			index[name] = len(out)
			out = append(out, p)
		}
		return nil
	}
	if err := collect(s, ptr, chain); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Required = required[out[i].Name]
	}
	return out, nil
}
