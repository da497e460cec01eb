package httpclient

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"swashark/internal/model"
	"swashark/internal/openapi"
	"swashark/internal/schema"
	"swashark/internal/validate"
)

var ErrNoBaseURL = errors.New("base URL unknown (document has no usable servers entry; configure a base URL)")

type queryPair struct {
	name  string
	value string
}

// Builder turns an operation plus user input into a Request.
type Builder struct {
	resolver  *schema.Resolver
	validator *validate.Validator
	schemes   map[string]model.SecurityScheme
	creds     CredentialSource
	baseURL   string
}

func NewBuilder(resolver *schema.Resolver, schemes map[string]model.SecurityScheme, creds CredentialSource, baseURL string) *Builder {
	return &Builder{
		resolver:  resolver,
		validator: validate.New(resolver),
		schemes:   schemes,
		creds:     creds,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

func (b *Builder) BaseURL() string { return b.baseURL }

// Validate checks every declared parameter. It returns *validate.Errors.
func (b *Builder) Validate(op *openapi.Operation, in Input) error {
	return b.validator.Params(op.Parameters, in.Params)
}

// Build assembles the request. It assumes Validate passed.
func (b *Builder) Build(op *openapi.Operation, in Input) (Request, error) {
	if b.baseURL == "" {
		return Request{}, ErrNoBaseURL
	}

	path := op.Path
	for _, p := range op.Params(model.ParamInPath) {
		v := strings.TrimSpace(in.Params[p.Name])
		if v == "" {
			return Request{}, fmt.Errorf("missing required path param: %s", p.Name)
		}
		path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(v))
	}

	var query []queryPair
	for _, p := range op.Params(model.ParamInQuery) {
		v := strings.TrimSpace(in.Params[p.Name])
		if v == "" {
			continue
		}
		query = append(query, queryPair{name: p.Name, value: v})
	}

	req := Request{Method: strings.ToUpper(op.Method)}
	var cookies []string

	if accept := acceptType(op); accept != "" {
		req.Headers = append(req.Headers, model.Header{Key: "accept", Value: accept})
	}

	if len(op.RequestBody) > 0 {
		ct := in.ContentType
		if ct == "" {
			ct = op.RequestBody[0].ContentType
		}
		mt, ok := op.MediaType(ct)
		if !ok {
			return Request{}, fmt.Errorf("operation does not accept content type %q", ct)
		}
		if err := b.buildBody(&req, mt, in); err != nil {
			return Request{}, err
		}
	}

	for _, p := range op.Params(model.ParamInHeader) {
		if v := strings.TrimSpace(in.Params[p.Name]); v != "" {
			req.Headers = append(req.Headers, model.Header{Key: p.Name, Value: v})
		}
	}
	for _, p := range op.Params(model.ParamInCookie) {
		if v := strings.TrimSpace(in.Params[p.Name]); v != "" {
			cookies = append(cookies, p.Name+"="+v)
		}
	}

	for _, c := range authFor(op.Security, b.schemes, b.creds) {
		switch {
		case c.query != nil:
			query = append(query, *c.query)
		case c.cookie != "":
			cookies = append(cookies, c.cookie)
		default:
			req.Headers = setHeader(req.Headers, c.header)
		}
	}
	if len(cookies) > 0 {
		req.Headers = setHeader(req.Headers, model.Header{Key: "Cookie", Value: strings.Join(cookies, "; ")})
	}

	for _, h := range in.Headers {
		if strings.TrimSpace(h.Key) == "" {
			continue
		}
		if req.Multipart && strings.EqualFold(h.Key, "Content-Type") {
			continue
		}
		req.Headers = setHeader(req.Headers, h)
	}

	req.URL = b.baseURL + path + encodeQuery(query)
	return req, nil
}

func (b *Builder) buildBody(req *Request, mt openapi.MediaType, in Input) error {
	switch {
	case IsMultipart(mt.ContentType):
		req.Multipart = true
		req.Form = b.formParts(mt, in, true)
	case IsURLEncoded(mt.ContentType):
		var pairs []queryPair
		for _, part := range b.formParts(mt, in, false) {
			pairs = append(pairs, queryPair{name: part.Name, value: part.Value})
		}
		req.Body = []byte(strings.TrimPrefix(encodeQuery(pairs), "?"))
		req.Headers = append(req.Headers, model.Header{Key: "Content-Type", Value: mt.ContentType})
	default:
		if in.Body == "" {
			return nil
		}
		req.Body = []byte(in.Body)
		req.Headers = append(req.Headers, model.Header{Key: "Content-Type", Value: mt.ContentType})
	}
	return nil
}

// formParts collects declared form fields in schema order. File fields take
// one file for a binary string property and every selected file for an
// array of them.
func (b *Builder) formParts(mt openapi.MediaType, in Input, files bool) []FormPart {
	fields := b.FormFields(mt)
	if fields == nil {
		return looseFormParts(in, files)
	}
	var out []FormPart
	for _, f := range fields {
		if f.File {
			if !files {
				continue
			}
			paths := in.Files[f.Name]
			if !f.Multiple && len(paths) > 1 {
				paths = paths[:1]
			}
			for _, p := range paths {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, FormPart{Name: f.Name, FilePath: p})
				}
			}
			continue
		}
		if v := in.FormValues[f.Name]; v != "" {
			out = append(out, FormPart{Name: f.Name, Value: v})
		}
	}
	return out
}

// FormField describes one field of a form media type.
type FormField struct {
	Name     string `json:"name"`
	Required bool   `json:"required,omitempty"`
	File     bool   `json:"file,omitempty"`
	Multiple bool   `json:"multiple,omitempty"`
	Type     string `json:"type"`
}

// FormFields lists the properties of a form body schema. A schema that is
// not an object yields nothing.
func (b *Builder) FormFields(mt openapi.MediaType) []FormField {
	node, err := b.resolver.Resolve(mt.Schema, mt.Pointer)
	if err != nil || node.Kind != schema.KindObject {
		return nil
	}
	var out []FormField
	for _, p := range node.Properties {
		f := FormField{Name: p.Name, Required: p.Required, Type: "unknown"}
		child, err := b.resolver.Resolve(p.Schema, p.Pointer)
		if err == nil {
			f.Type = child.Type
			switch {
			case child.IsBinary():
				f.File = true
			case child.Kind == schema.KindArray && child.Items != nil:
				if item, err := b.resolver.Resolve(child.Items, child.ItemsPointer); err == nil && item.IsBinary() {
					f.File, f.Multiple = true, true
				}
			}
		}
		out = append(out, f)
	}
	return out
}

func acceptType(op *openapi.Operation) string {
	var fallback string
	for _, r := range op.Responses {
		if len(r.Content) == 0 {
			continue
		}
		if strings.HasPrefix(r.Status, "2") {
			return r.Content[0].ContentType
		}
		if fallback == "" {
			fallback = r.Content[0].ContentType
		}
	}
	return fallback
}

func setHeader(headers []model.Header, h model.Header) []model.Header {
	for i := range headers {
		if strings.EqualFold(headers[i].Key, h.Key) {
			headers[i] = h
			return headers
		}
	}
	return append(headers, h)
}

func encodeQuery(pairs []queryPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = url.QueryEscape(p.name) + "=" + url.QueryEscape(p.value)
	}
	return "?" + strings.Join(parts, "&")
}

// looseFormParts sends whatever was entered when the body schema declares
// no fields, in name order.
func looseFormParts(in Input, files bool) []FormPart {
	var out []FormPart
	names := make([]string, 0, len(in.FormValues))
	for k := range in.FormValues {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := in.FormValues[name]; v != "" {
			out = append(out, FormPart{Name: name, Value: v})
		}
	}
	if !files {
		return out
	}
	names = names[:0]
	for k := range in.Files {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, p := range in.Files[name] {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, FormPart{Name: name, FilePath: p})
			}
		}
	}
	return out
}
