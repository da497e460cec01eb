package model

import "strings"

type ParamLocation string

const (
	ParamInPath   ParamLocation = "path"
	ParamInQuery  ParamLocation = "query"
	ParamInHeader ParamLocation = "header"
	ParamInCookie ParamLocation = "cookie"
)

// DefaultTag groups operations that declare no tags.
const DefaultTag = "Default"

// Endpoint is one catalog entry. An operation with several tags yields one
// Endpoint per tag.
type Endpoint struct {
	Tag          string `json:"tag"`
	Method       string `json:"method"`
	Path         string `json:"path"`
	Summary      string `json:"summary,omitempty"`
	OperationID  string `json:"operationId,omitempty"`
	RequiresAuth bool   `json:"requiresAuth"`
	Deprecated   bool   `json:"deprecated,omitempty"`
}

// Key is the session cache key for the endpoint.
func (e Endpoint) Key() string {
	return OperationKey(e.Method, e.Path)
}

// OperationKey builds the "METHOD:path" key shared by the cache and the
// catalog lookup.
func OperationKey(method, path string) string {
	return strings.ToUpper(method) + ":" + path
}

type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SchemeType mirrors the OpenAPI security scheme "type" values.
type SchemeType string

const (
	SchemeHTTP          SchemeType = "http"
	SchemeAPIKey        SchemeType = "apiKey"
	SchemeOAuth2        SchemeType = "oauth2"
	SchemeOpenIDConnect SchemeType = "openIdConnect"
)

type SecurityScheme struct {
	Name         string     `json:"name"`
	Type         SchemeType `json:"type"`
	Scheme       string     `json:"scheme,omitempty"` // http: bearer, basic
	BearerFormat string     `json:"bearerFormat,omitempty"`
	In           string     `json:"in,omitempty"`        // apiKey: header, query, cookie
	ParamName    string     `json:"paramName,omitempty"` // apiKey: header/query/cookie name
	Description  string     `json:"description,omitempty"`
}

// Requirement is one alternative of an OpenAPI security requirement list:
// every scheme named in it applies together.
type Requirement []string

type CachedResponse struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	DurationMs int64  `json:"durationMs"`
	Body       string `json:"body"`
	Curl       string `json:"curl"`
}

// CachedInteraction is the persisted state of the last visit to one operation.
type CachedInteraction struct {
	Parameters    map[string]string `json:"parameters"`
	RequestBody   *string           `json:"requestBody"`
	ContentType   string            `json:"contentType"`
	CustomHeaders []Header          `json:"customHeaders"`
	Response      *CachedResponse   `json:"response"`
}
