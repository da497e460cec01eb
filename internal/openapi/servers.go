package openapi

import (
	"net/url"
	"path"
	"strings"
)

// BaseURL picks the URL requests are sent to: the document's first concrete
// server (relative ones resolved against the spec URL), else the directory
// the spec was served from.
func BaseURL(doc *Document, specSource string) string {
	if u := serverURL(doc, specSource); u != "" {
		return u
	}
	return baseURLFromSpecURL(specSource)
}

// NormalizeBaseURL adds a scheme to bare host:port values.
func NormalizeBaseURL(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	if strings.HasPrefix(in, "http://") || strings.HasPrefix(in, "https://") {
		return strings.TrimRight(in, "/")
	}
	return "http://" + strings.TrimRight(in, "/")
}

func serverURL(doc *Document, specSource string) string {
	if doc == nil || doc.T == nil || len(doc.T.Servers) == 0 || doc.T.Servers[0] == nil {
		return ""
	}
	raw := strings.TrimSpace(doc.T.Servers[0].URL)
	// Templated servers ({scheme}://...) are not expanded.
	if raw == "" || strings.Contains(raw, "{") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		base, err := url.Parse(specSource)
		if err != nil || !base.IsAbs() {
			return ""
		}
		u = base.ResolveReference(u)
	}
	u.Fragment = ""
	u.RawQuery = ""
	return strings.TrimRight(u.String(), "/")
}

func baseURLFromSpecURL(specURL string) string {
	specURL = strings.TrimSpace(specURL)
	if !strings.HasPrefix(specURL, "http://") && !strings.HasPrefix(specURL, "https://") {
		return ""
	}
	u, err := url.Parse(specURL)
	if err != nil {
		return ""
	}
	u.Fragment = ""
	u.RawQuery = ""
	u.Path = path.Dir(u.Path)
	if u.Path == "." || u.Path == "/" {
		u.Path = ""
	}
	return strings.TrimRight(u.String(), "/")
}
