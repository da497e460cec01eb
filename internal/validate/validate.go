// Package validate checks user-entered parameter values against their
// OpenAPI schemas before a request is built.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"net/netip"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/getkin/kin-openapi/openapi3"

	"swashark/internal/model"
	"swashark/internal/openapi"
	"swashark/internal/schema"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// FieldError is a problem with one parameter value.
type FieldError struct {
	Field   string              `json:"field"`
	In      model.ParamLocation `json:"in"`
	Message string              `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s parameter %q: %s", e.In, e.Field, e.Message)
}

// Errors collects every failing field of one validation pass.
type Errors struct {
	Fields []FieldError
}

func (e *Errors) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return "invalid parameters: " + strings.Join(msgs, "; ")
}

// For returns the errors reported for one field.
func (e *Errors) For(field string) []FieldError {
	var out []FieldError
	for _, f := range e.Fields {
		if f.Field == field {
			out = append(out, f)
		}
	}
	return out
}

type Validator struct {
	resolver *schema.Resolver
	// patterns caches compiled regex patterns (sync.Map[string, *regexp.Regexp])
	patterns sync.Map
}

func New(resolver *schema.Resolver) *Validator {
	return &Validator{resolver: resolver}
}

// Params validates every declared parameter against values, keyed by
// parameter name. It returns *Errors when any field fails.
func (v *Validator) Params(params []openapi.Parameter, values map[string]string) error {
	var errs []FieldError
	for _, p := range params {
		errs = append(errs, v.Param(p, values[p.Name])...)
	}
	if len(errs) > 0 {
		return &Errors{Fields: errs}
	}
	return nil
}

// Param validates one raw value. Constraints are checked the same way for
// every location.
func (v *Validator) Param(p openapi.Parameter, raw string) []FieldError {
	fail := func(format string, args ...any) []FieldError {
		return []FieldError{{Field: p.Name, In: p.In, Message: fmt.Sprintf(format, args...)}}
	}

	if strings.TrimSpace(raw) == "" {
		if p.Required {
			return fail("required parameter %q is missing", p.Name)
		}
		return nil
	}
	if p.Schema == nil {
		return nil
	}
	node, err := v.resolver.Resolve(p.Schema, p.Pointer)
	if err != nil {
		// Nothing to check against; the request goes out as typed.
		return nil
	}

	var msgs []string
	switch node.Kind {
	case schema.KindArray:
		msgs = v.checkArray(node, raw)
	case schema.KindObject:
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			msgs = []string{"must be a JSON object"}
		}
	default:
		msgs = v.checkScalar(node, raw)
	}

	out := make([]FieldError, len(msgs))
	for i, m := range msgs {
		out[i] = FieldError{Field: p.Name, In: p.In, Message: m}
	}
	return out
}

// checkArray validates a comma-separated list (style=form / simple).
func (v *Validator) checkArray(node *schema.Node, raw string) []string {
	items := strings.Split(raw, ",")
	s := node.Schema

	var msgs []string
	if s.MinItems > 0 && uint64(len(items)) < s.MinItems {
		msgs = append(msgs, fmt.Sprintf("must have at least %d items, got %d", s.MinItems, len(items)))
	}
	if s.MaxItems != nil && uint64(len(items)) > *s.MaxItems {
		msgs = append(msgs, fmt.Sprintf("must have at most %d items, got %d", *s.MaxItems, len(items)))
	}
	if s.UniqueItems {
		seen := map[string]bool{}
		for _, it := range items {
			it = strings.TrimSpace(it)
			if seen[it] {
				msgs = append(msgs, fmt.Sprintf("items must be unique, %q repeats", it))
				break
			}
			seen[it] = true
		}
	}
	if node.Items == nil {
		return msgs
	}
	itemNode, err := v.resolver.Resolve(node.Items, node.ItemsPointer)
	if err != nil || itemNode.Kind == schema.KindArray || itemNode.Kind == schema.KindObject {
		return msgs
	}
	for i, it := range items {
		for _, m := range v.checkScalar(itemNode, strings.TrimSpace(it)) {
			msgs = append(msgs, fmt.Sprintf("item %d: %s", i+1, m))
		}
	}
	return msgs
}

func (v *Validator) checkScalar(node *schema.Node, raw string) []string {
	var msgs []string
	s := node.Schema

	switch node.Type {
	case openapi3.TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return []string{fmt.Sprintf("must be an integer, got %q", raw)}
		}
		if node.Format == "int32" && (n < math.MinInt32 || n > math.MaxInt32) {
			msgs = append(msgs, fmt.Sprintf("value %d is out of int32 range", n))
		}
		msgs = append(msgs, checkBounds(float64(n), s)...)
	case openapi3.TypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return []string{fmt.Sprintf("must be a number, got %q", raw)}
		}
		msgs = append(msgs, checkBounds(f, s)...)
	case openapi3.TypeBoolean:
		if raw != "true" && raw != "false" {
			return []string{fmt.Sprintf("must be true or false, got %q", raw)}
		}
	default:
		msgs = append(msgs, v.checkString(raw, node)...)
	}

	if len(node.Enum) > 0 && !enumContains(node.Enum, raw) {
		vals := make([]string, len(node.Enum))
		for i, e := range node.Enum {
			vals[i] = enumText(e)
		}
		msgs = append(msgs, fmt.Sprintf("must be one of %s", strings.Join(vals, ", ")))
	}
	return msgs
}

func (v *Validator) checkString(raw string, node *schema.Node) []string {
	var msgs []string
	s := node.Schema
	if s == nil {
		return nil
	}
	n := uint64(utf8.RuneCountInString(raw))
	if s.MinLength > 0 && n < s.MinLength {
		msgs = append(msgs, fmt.Sprintf("length %d is less than minimum %d", n, s.MinLength))
	}
	if s.MaxLength != nil && n > *s.MaxLength {
		msgs = append(msgs, fmt.Sprintf("length %d exceeds maximum %d", n, *s.MaxLength))
	}
	if s.Pattern != "" {
		re, err := v.pattern(s.Pattern)
		switch {
		case err != nil:
			msgs = append(msgs, fmt.Sprintf("invalid pattern %q in schema", s.Pattern))
		case !re.MatchString(raw):
			msgs = append(msgs, fmt.Sprintf("does not match pattern %q", s.Pattern))
		}
	}
	if m := checkFormat(node.Format, raw); m != "" {
		msgs = append(msgs, m)
	}
	return msgs
}

func (v *Validator) pattern(p string) (*regexp.Regexp, error) {
	if cached, ok := v.patterns.Load(p); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}
	v.patterns.Store(p, re)
	return re, nil
}

func checkBounds(f float64, s *openapi3.Schema) []string {
	if s == nil {
		return nil
	}
	var msgs []string
	if s.Min != nil {
		switch {
		case s.ExclusiveMin && f <= *s.Min:
			msgs = append(msgs, fmt.Sprintf("must be greater than %s", formatNumber(*s.Min)))
		case f < *s.Min:
			msgs = append(msgs, fmt.Sprintf("must be at least %s", formatNumber(*s.Min)))
		}
	}
	if s.Max != nil {
		switch {
		case s.ExclusiveMax && f >= *s.Max:
			msgs = append(msgs, fmt.Sprintf("must be less than %s", formatNumber(*s.Max)))
		case f > *s.Max:
			msgs = append(msgs, fmt.Sprintf("must be at most %s", formatNumber(*s.Max)))
		}
	}
	if s.MultipleOf != nil && *s.MultipleOf > 0 {
		q := f / *s.MultipleOf
		if math.Abs(q-math.Round(q)) > 1e-9 {
			msgs = append(msgs, fmt.Sprintf("must be a multiple of %s", formatNumber(*s.MultipleOf)))
		}
	}
	return msgs
}

func checkFormat(format, raw string) string {
	switch format {
	case "email":
		addr, err := mail.ParseAddress(raw)
		if err != nil || addr.Address != raw {
			return fmt.Sprintf("%q is not a valid email address", raw)
		}
	case "uri", "url":
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
			return fmt.Sprintf("%q is not a valid absolute URI", raw)
		}
	case "uuid":
		if !uuidPattern.MatchString(raw) {
			return fmt.Sprintf("%q is not a valid UUID", raw)
		}
	case "date":
		if _, err := time.Parse(time.DateOnly, raw); err != nil {
			return fmt.Sprintf("%q is not a valid date (YYYY-MM-DD)", raw)
		}
	case "date-time":
		if _, err := time.Parse(time.RFC3339, raw); err != nil {
			return fmt.Sprintf("%q is not a valid RFC 3339 date-time", raw)
		}
	case "ipv4":
		if a, err := netip.ParseAddr(raw); err != nil || !a.Is4() {
			return fmt.Sprintf("%q is not a valid IPv4 address", raw)
		}
	case "ipv6":
		if a, err := netip.ParseAddr(raw); err != nil || !a.Is6() {
			return fmt.Sprintf("%q is not a valid IPv6 address", raw)
		}
	}
	return ""
}

func enumContains(enum []any, raw string) bool {
	for _, e := range enum {
		if enumText(e) == raw {
			return true
		}
	}
	return false
}

func enumText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return formatNumber(t)
	case nil:
		return "null"
	default:
		return fmt.Sprint(t)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
