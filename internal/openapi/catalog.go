package openapi

import (
	"errors"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"swashark/internal/model"
)

// ErrNoPaths reports a document without a paths object. The catalog built
// for it is empty but usable.
var ErrNoPaths = errors.New("openapi document has no paths")

type TagGroup struct {
	Name      string           `json:"name"`
	Endpoints []model.Endpoint `json:"endpoints"`
}

// Catalog is the display index of a document: operations grouped by tag,
// plus a lookup by method and path.
type Catalog struct {
	Title   string                          `json:"title"`
	Version string                          `json:"version"`
	Tags    []TagGroup                      `json:"tags"`
	Schemes map[string]model.SecurityScheme `json:"securitySchemes"`

	operations map[string]*Operation
	keys       []string
}

// BuildCatalog indexes every operation of doc. Untagged operations land in
// the "Default" group and multi-tag operations appear once per tag. Tags are
// sorted alphabetically, endpoints keep declaration order.
func BuildCatalog(doc *Document) (*Catalog, error) {
	c := &Catalog{
		Title:      doc.Title(),
		Version:    doc.Version(),
		Schemes:    doc.SecuritySchemes(),
		operations: map[string]*Operation{},
	}
	if doc == nil || doc.T == nil || doc.T.Paths == nil {
		return c, ErrNoPaths
	}

	groups := map[string][]model.Endpoint{}
	for _, op := range doc.Operations() {
		key := op.Key()
		c.operations[key] = op
		c.keys = append(c.keys, key)

		tags := op.Tags
		if len(tags) == 0 {
			tags = []string{model.DefaultTag}
		}
		seen := map[string]bool{}
		for _, tag := range tags {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				tag = model.DefaultTag
			}
			if seen[tag] {
				continue
			}
			seen[tag] = true
			groups[tag] = append(groups[tag], model.Endpoint{
				Tag:          tag,
				Method:       op.Method,
				Path:         op.Path,
				Summary:      op.Summary,
				OperationID:  op.OperationID,
				RequiresAuth: op.RequiresAuth(),
				Deprecated:   op.Deprecated,
			})
		}
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	collate.New(language.English, collate.IgnoreCase).SortStrings(names)
	for _, name := range names {
		c.Tags = append(c.Tags, TagGroup{Name: name, Endpoints: groups[name]})
	}
	return c, nil
}

// Lookup finds an operation by method and path template.
func (c *Catalog) Lookup(method, path string) (*Operation, bool) {
	if c == nil {
		return nil, false
	}
	op, ok := c.operations[model.OperationKey(method, path)]
	return op, ok
}

// Len is the number of distinct operations.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Endpoints flattens the tag groups in display order.
func (c *Catalog) Endpoints() []model.Endpoint {
	if c == nil {
		return nil
	}
	var out []model.Endpoint
	for _, g := range c.Tags {
		out = append(out, g.Endpoints...)
	}
	return out
}

// Operations returns every distinct operation in declaration order.
func (c *Catalog) Operations() []*Operation {
	if c == nil {
		return nil
	}
	out := make([]*Operation, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.operations[k])
	}
	return out
}

// Get finds an operation by its "METHOD:path" key.
func (c *Catalog) Get(key string) (*Operation, bool) {
	if c == nil {
		return nil, false
	}
	op, ok := c.operations[key]
	return op, ok
}
