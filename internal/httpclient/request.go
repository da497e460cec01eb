package httpclient

import (
	"mime"
	"strings"

	"swashark/internal/model"
)

// FormPart is one multipart field. FilePath is set for file uploads.
type FormPart struct {
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	FilePath string `json:"filePath,omitempty"`
}

func (p FormPart) IsFile() bool { return p.FilePath != "" }

// Request is a fully built call, ready for a Transport. For multipart
// requests Form is set, Body is nil and no Content-Type header is present;
// the transport adds one with its boundary.
type Request struct {
	Method    string         `json:"method"`
	URL       string         `json:"url"`
	Headers   []model.Header `json:"headers"`
	Body      []byte         `json:"-"`
	Multipart bool           `json:"multipart,omitempty"`
	Form      []FormPart     `json:"form,omitempty"`
}

// Header returns the first header called key, case-insensitively.
func (r Request) Header(key string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}

// Input is what the user entered for one execution.
type Input struct {
	// Params holds path, query, header and cookie parameter values by name.
	Params map[string]string `json:"parameters"`
	// ContentType selects the request body media type.
	ContentType string `json:"contentType"`
	// Body is the raw editor text, sent as-is for non-form media types.
	Body string `json:"body"`
	// FormValues and Files feed form media types: text fields by name and
	// local file paths per file field.
	FormValues map[string]string   `json:"formValues,omitempty"`
	Files      map[string][]string `json:"files,omitempty"`
	Headers    []model.Header      `json:"headers,omitempty"`
}

func mediaBase(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsMultipart reports multipart/* media types.
func IsMultipart(contentType string) bool {
	return strings.HasPrefix(mediaBase(contentType), "multipart/")
}

// IsURLEncoded reports application/x-www-form-urlencoded.
func IsURLEncoded(contentType string) bool {
	return mediaBase(contentType) == "application/x-www-form-urlencoded"
}

// IsForm reports media types whose body is assembled from fields.
func IsForm(contentType string) bool {
	return IsMultipart(contentType) || IsURLEncoded(contentType)
}

// IsJSON reports application/json and +json media types.
func IsJSON(contentType string) bool {
	mt := mediaBase(contentType)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
