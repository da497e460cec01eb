package openapi

import (
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"swashark/internal/model"
)

// SecuritySchemes returns components.securitySchemes keyed by scheme name.
func (d *Document) SecuritySchemes() map[string]model.SecurityScheme {
	out := map[string]model.SecurityScheme{}
	if d == nil || d.T == nil || d.T.Components == nil {
		return out
	}
	for name, ref := range d.T.Components.SecuritySchemes {
		if ref == nil {
			continue
		}
		s := ref.Value
		if s == nil && ref.Ref != "" {
			if target, ok := componentName(ref.Ref, "securitySchemes"); ok {
				if t := d.T.Components.SecuritySchemes[target]; t != nil {
					s = t.Value
				}
			}
		}
		if s == nil {
			continue
		}
		out[name] = model.SecurityScheme{
			Name:         name,
			Type:         model.SchemeType(s.Type),
			Scheme:       strings.ToLower(strings.TrimSpace(s.Scheme)),
			BearerFormat: s.BearerFormat,
			In:           strings.ToLower(s.In),
			ParamName:    s.Name,
			Description:  strings.TrimSpace(s.Description),
		}
	}
	return out
}

func (d *Document) effectiveSecurity(op *openapi3.Operation) []model.Requirement {
	if op != nil && op.Security != nil {
		return requirements(*op.Security)
	}
	if d == nil || d.T == nil {
		return nil
	}
	return requirements(d.T.Security)
}

func requirements(reqs openapi3.SecurityRequirements) []model.Requirement {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]model.Requirement, 0, len(reqs))
	for _, req := range reqs {
		names := make([]string, 0, len(req))
		for name := range req {
			names = append(names, name)
		}
		sort.Strings(names)
		out = append(out, model.Requirement(names))
	}
	return out
}

// SchemeNames lists every scheme named by any alternative, without duplicates.
func SchemeNames(reqs []model.Requirement) []string {
	seen := map[string]bool{}
	var out []string
	for _, req := range reqs {
		for _, name := range req {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}
