package openapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"swashark/internal/model"
)

var ErrUnknownOperation = errors.New("unknown operation")

// methodOrder is used when the document carries no key order.
var methodOrder = []string{
	http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete,
	http.MethodOptions, http.MethodHead, http.MethodPatch, http.MethodTrace,
}

type Parameter struct {
	Name        string
	In          model.ParamLocation
	Required    bool
	Description string
	Deprecated  bool
	Example     any
	Schema      *openapi3.SchemaRef
	// Pointer locates Schema inside the document.
	Pointer string
}

type MediaType struct {
	ContentType string
	Schema      *openapi3.SchemaRef
	Pointer     string
	Example     any
}

type Response struct {
	Status      string
	Description string
	Content     []MediaType
}

// Operation is one HTTP method on one path, with its references to
// parameters, request bodies and responses already followed.
type Operation struct {
	Method      string
	Path        string
	Summary     string
	Description string
	OperationID string
	Tags        []string
	Deprecated  bool

	Parameters   []Parameter
	RequestBody  []MediaType
	BodyRequired bool
	Responses    []Response

	// Security is the effective requirement list: the operation's own when
	// declared, otherwise the document's.
	Security []model.Requirement

	// Warnings lists references that could not be followed.
	Warnings []string
}

func (o *Operation) Key() string { return model.OperationKey(o.Method, o.Path) }

func (o *Operation) RequiresAuth() bool { return len(o.Security) > 0 }

// Params returns the parameters declared in the given location.
func (o *Operation) Params(in model.ParamLocation) []Parameter {
	var out []Parameter
	for _, p := range o.Parameters {
		if p.In == in {
			out = append(out, p)
		}
	}
	return out
}

// MediaType returns the request body media type with the given content type.
func (o *Operation) MediaType(contentType string) (MediaType, bool) {
	for _, mt := range o.RequestBody {
		if strings.EqualFold(mt.ContentType, contentType) {
			return mt, true
		}
	}
	return MediaType{}, false
}

// Operations lists every operation in document declaration order.
func (d *Document) Operations() []*Operation {
	if d == nil || d.T == nil || d.T.Paths == nil {
		return nil
	}
	paths := d.T.Paths.Map()
	keys := make([]string, 0, len(paths))
	for p := range paths {
		keys = append(keys, p)
	}

	var out []*Operation
	for _, path := range d.order.Sort("#/paths", keys) {
		item := paths[path]
		if item == nil {
			continue
		}
		itemPtr := "#/paths/" + EscapePointer(path)
		ops := item.Operations()
		for _, method := range d.methodsOf(itemPtr, ops) {
			out = append(out, d.buildOperation(path, itemPtr, item, method, ops[method]))
		}
	}
	return out
}

// Operation finds a single operation by method and path template.
func (d *Document) Operation(method, path string) (*Operation, error) {
	if d != nil && d.T != nil && d.T.Paths != nil {
		if item := d.T.Paths.Value(path); item != nil {
			method = strings.ToUpper(method)
			if op := item.GetOperation(method); op != nil {
				return d.buildOperation(path, "#/paths/"+EscapePointer(path), item, method, op), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s %s", ErrUnknownOperation, strings.ToUpper(method), path)
}

func (d *Document) methodsOf(itemPtr string, ops map[string]*openapi3.Operation) []string {
	var methods []string
	for _, key := range d.order.Keys(itemPtr) {
		m := strings.ToUpper(key)
		if _, ok := ops[m]; ok {
			methods = append(methods, m)
		}
	}
	if len(methods) == len(ops) {
		return methods
	}
	methods = methods[:0]
	for _, m := range methodOrder {
		if _, ok := ops[m]; ok {
			methods = append(methods, m)
		}
	}
	return methods
}

func (d *Document) buildOperation(path, itemPtr string, item *openapi3.PathItem, method string, op *openapi3.Operation) *Operation {
	opPtr := itemPtr + "/" + strings.ToLower(method)
	out := &Operation{
		Method:      method,
		Path:        path,
		Summary:     strings.TrimSpace(op.Summary),
		Description: strings.TrimSpace(op.Description),
		OperationID: strings.TrimSpace(op.OperationID),
		Tags:        op.Tags,
		Deprecated:  op.Deprecated,
		Security:    d.effectiveSecurity(op),
	}

	// Operation-level parameters override path-level ones with the same name and location.
	seen := map[string]int{}
	add := func(p Parameter) {
		key := string(p.In) + ":" + p.Name
		if i, ok := seen[key]; ok {
			out.Parameters[i] = p
			return
		}
		seen[key] = len(out.Parameters)
		out.Parameters = append(out.Parameters, p)
	}
	for i, ref := range item.Parameters {
		if p, ok := d.parameter(ref, itemPtr+"/parameters/"+strconv.Itoa(i), out); ok {
			add(p)
		}
	}
	for i, ref := range op.Parameters {
		if p, ok := d.parameter(ref, opPtr+"/parameters/"+strconv.Itoa(i), out); ok {
			add(p)
		}
	}

	if op.RequestBody != nil {
		body, bodyPtr := op.RequestBody.Value, opPtr+"/requestBody"
		if op.RequestBody.Ref != "" {
			body, bodyPtr = d.requestBody(op.RequestBody.Ref)
			if body == nil {
				out.Warnings = append(out.Warnings, "unresolved request body "+op.RequestBody.Ref)
			}
		}
		if body != nil {
			out.BodyRequired = body.Required
			out.RequestBody = d.mediaTypes(body.Content, bodyPtr+"/content")
		}
	}

	if op.Responses != nil {
		responses := op.Responses.Map()
		codes := make([]string, 0, len(responses))
		for code := range responses {
			codes = append(codes, code)
		}
		for _, code := range d.order.Sort(opPtr+"/responses", codes) {
			ref := responses[code]
			if ref == nil {
				continue
			}
			resp, respPtr := ref.Value, opPtr+"/responses/"+EscapePointer(code)
			if ref.Ref != "" {
				resp, respPtr = d.response(ref.Ref)
			}
			if resp == nil {
				out.Warnings = append(out.Warnings, fmt.Sprintf("unresolved response %s for %s", ref.Ref, code))
				continue
			}
			r := Response{Status: code, Content: d.mediaTypes(resp.Content, respPtr+"/content")}
			if resp.Description != nil {
				r.Description = strings.TrimSpace(*resp.Description)
			}
			out.Responses = append(out.Responses, r)
		}
	}

	return out
}

func (d *Document) parameter(ref *openapi3.ParameterRef, ptr string, op *Operation) (Parameter, bool) {
	if ref == nil {
		return Parameter{}, false
	}
	p := ref.Value
	if ref.Ref != "" {
		name, ok := componentName(ref.Ref, "parameters")
		if ok && d.T.Components != nil {
			if target := d.T.Components.Parameters[name]; target != nil {
				p = target.Value
				ptr = "#/components/parameters/" + EscapePointer(name)
			}
		}
		if !ok || p == nil {
			op.Warnings = append(op.Warnings, "unresolved parameter "+ref.Ref)
			return Parameter{}, false
		}
	}
	if p == nil {
		return Parameter{}, false
	}

	out := Parameter{
		Name:        p.Name,
		In:          model.ParamLocation(strings.ToLower(p.In)),
		Required:    p.Required || p.In == openapi3.ParameterInPath,
		Description: strings.TrimSpace(p.Description),
		Deprecated:  p.Deprecated,
		Example:     p.Example,
		Schema:      p.Schema,
		Pointer:     ptr + "/schema",
	}
	if out.Schema == nil {
		// content-based parameters carry their schema under a single media type.
		for _, mt := range d.mediaTypes(p.Content, ptr+"/content") {
			out.Schema, out.Pointer = mt.Schema, mt.Pointer
			break
		}
	}
	return out, true
}

func (d *Document) requestBody(ref string) (*openapi3.RequestBody, string) {
	name, ok := componentName(ref, "requestBodies")
	if !ok || d.T.Components == nil {
		return nil, ""
	}
	target := d.T.Components.RequestBodies[name]
	if target == nil {
		return nil, ""
	}
	return target.Value, "#/components/requestBodies/" + EscapePointer(name)
}

func (d *Document) response(ref string) (*openapi3.Response, string) {
	name, ok := componentName(ref, "responses")
	if !ok || d.T.Components == nil {
		return nil, ""
	}
	target := d.T.Components.Responses[name]
	if target == nil {
		return nil, ""
	}
	return target.Value, "#/components/responses/" + EscapePointer(name)
}

func (d *Document) mediaTypes(content openapi3.Content, ptr string) []MediaType {
	if len(content) == 0 {
		return nil
	}
	keys := make([]string, 0, len(content))
	for ct := range content {
		keys = append(keys, ct)
	}
	var out []MediaType
	for _, ct := range d.order.Sort(ptr, keys) {
		mt := content[ct]
		if mt == nil {
			continue
		}
		out = append(out, MediaType{
			ContentType: ct,
			Schema:      mt.Schema,
			Pointer:     ptr + "/" + EscapePointer(ct) + "/schema",
			Example:     mt.Example,
		})
	}
	return out
}
