package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swashark/internal/aigen"
	"swashark/internal/config"
	"swashark/internal/session"
	"swashark/internal/store"
)

const specTemplate = `{
  "openapi": "3.0.3",
  "info": {"title": "Pets <API>", "version": "1"},
  "servers": [{"url": %q}],
  "paths": {
    "/pets/{id}": {
      "get": {
        "tags": ["pets"],
        "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "integer", "maximum": 100}}],
        "responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Pet"}}}}}
      }
    },
    "/pets": {
      "post": {
        "tags": ["pets"],
        "security": [{"bearer": []}],
        "requestBody": {"content": {"application/json": {"schema": {"$ref": "#/components/schemas/Pet"}}}},
        "responses": {"201": {"description": "created"}}
      }
    },
    "/pets/{id}/adopt": {
      "post": {
        "tags": ["pets"],
        "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "integer"}}],
        "requestBody": {"content": {
          "application/x-www-form-urlencoded": {"schema": {"type": "object", "required": ["owner"], "properties": {"owner": {"type": "string"}, "visits": {"type": "integer"}}}},
          "multipart/form-data": {"schema": {"type": "object", "properties": {"note": {"type": "string"}, "photo": {"type": "string", "format": "binary"}}}}
        }},
        "responses": {"204": {"description": "adopted"}}
      }
    }
  },
  "components": {
    "securitySchemes": {"bearer": {"type": "http", "scheme": "bearer"}},
    "schemas": {"Pet": {"type": "object", "properties": {"name": {"type": "string"}, "age": {"type": "integer"}}}}
  }
}`

type harness struct {
	srv     *httptest.Server
	backend *httptest.Server
	cache   *store.SessionCache
	creds   *store.Credentials

	mu       sync.Mutex
	hits     int
	lastAuth string
	lastType string
	lastBody string
}

func (h *harness) lastRequest() (string, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastType, h.lastBody
}

func (h *harness) backendCalls() (int, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits, h.lastAuth
}

func newHarness(t *testing.T, open bool) *harness {
	t.Helper()
	h := &harness{}
	h.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.hits++
		h.lastAuth = r.Header.Get("Authorization")
		h.lastType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		h.lastBody = string(b)
		h.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":7,"name":"Rex"}`)
	}))
	t.Cleanup(h.backend.Close)

	dir := t.TempDir()
	path := filepath.Join(dir, "openapi.json")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(specTemplate, h.backend.URL)), 0o600))

	kv := store.NewMemoryKV()
	h.cache = store.NewSessionCache(kv, zerolog.Nop())
	h.creds = store.NewCredentials(kv, zerolog.Nop())
	ui := store.NewUIState(kv, zerolog.Nop())
	sessions := session.NewManager(session.Options{
		Versions: []config.Version{{Name: "v1", File: path}, {Name: "v2", File: path}},
		Cache:    h.cache,
		Creds:    h.creds,
		Log:      zerolog.Nop(),
	})
	if open {
		_, err := sessions.Open(context.Background(), "v1")
		require.NoError(t, err)
	}
	gen := aigen.NewGenerator(nil, zerolog.Nop())
	s := New(Options{RoutePrefix: "/docs/"}, sessions, h.cache, h.creds, ui, gen, zerolog.Nop())
	h.srv = httptest.NewServer(s.Handler())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	}
	req, err := http.NewRequest(method, h.srv.URL+path, r)
	require.NoError(t, err)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestIndexSubstitutesTokens(t *testing.T) {
	h := newHarness(t, true)

	resp := h.do(t, "GET", "/docs/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(b)

	assert.NotContains(t, page, "{{")
	assert.Contains(t, page, "<title>Pets &lt;API&gt;</title>")
	assert.Contains(t, page, `href="/docs/static/app.css"`)
	assert.Contains(t, page, `data-spec="/docs/openapi.json"`)
	assert.Contains(t, page, `<option value="v1" selected>v1</option>`)
	assert.Contains(t, page, `data-theme="dark"`)

	resp = h.do(t, "GET", "/docs", nil)
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)

	resp = h.do(t, "GET", "/docs/static/app.js", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNoSessionIsUnavailable(t *testing.T) {
	h := newHarness(t, false)
	resp := h.do(t, "GET", "/docs/api/catalog", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCatalogAndDocument(t *testing.T) {
	h := newHarness(t, true)

	resp := h.do(t, "GET", "/docs/api/catalog", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var catalog struct {
		Title string `json:"title"`
		Tags  []struct {
			Name      string `json:"name"`
			Endpoints []struct {
				Method       string `json:"method"`
				Path         string `json:"path"`
				RequiresAuth bool   `json:"requiresAuth"`
			} `json:"endpoints"`
		} `json:"tags"`
	}
	decodeBody(t, resp, &catalog)
	assert.Equal(t, "Pets <API>", catalog.Title)
	require.Len(t, catalog.Tags, 1)
	require.Len(t, catalog.Tags[0].Endpoints, 3)
	assert.Equal(t, "/pets/{id}", catalog.Tags[0].Endpoints[0].Path)
	assert.True(t, catalog.Tags[0].Endpoints[1].RequiresAuth)

	resp = h.do(t, "GET", "/docs/openapi.json", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]any
	decodeBody(t, resp, &doc)
	assert.Equal(t, "3.0.3", doc["openapi"])

	resp = h.do(t, "GET", "/docs/api/versions", nil)
	var versions []versionView
	decodeBody(t, resp, &versions)
	require.Len(t, versions, 2)
	assert.True(t, versions[0].Current)
	assert.False(t, versions[1].Current)
}

func TestOperationView(t *testing.T) {
	h := newHarness(t, true)

	q := url.Values{"method": {"POST"}, "path": {"/pets"}}
	resp := h.do(t, "GET", "/docs/api/operation?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view struct {
		Key         string `json:"key"`
		BaseURL     string `json:"baseUrl"`
		RequestBody []struct {
			ContentType string `json:"contentType"`
			Example     string `json:"example"`
			Schema      struct {
				Ref      string `json:"ref"`
				Children []struct {
					Name string `json:"name"`
				} `json:"children"`
			} `json:"schema"`
		} `json:"requestBody"`
	}
	decodeBody(t, resp, &view)
	assert.Equal(t, "POST:/pets", view.Key)
	assert.Equal(t, h.backend.URL, view.BaseURL)
	require.Len(t, view.RequestBody, 1)
	assert.Equal(t, "{\n  \"name\": \"string\",\n  \"age\": 0\n}", view.RequestBody[0].Example)
	assert.Equal(t, "Pet", view.RequestBody[0].Schema.Ref)
	assert.Len(t, view.RequestBody[0].Schema.Children, 2)

	q = url.Values{"method": {"DELETE"}, "path": {"/pets"}}
	resp = h.do(t, "GET", "/docs/api/operation?"+q.Encode(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExecute(t *testing.T) {
	h := newHarness(t, true)

	resp := h.do(t, "PUT", "/docs/api/credentials/bearer", map[string]string{"value": "abc123"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(t, "POST", "/docs/api/execute", map[string]any{
		"method": "POST",
		"path":   "/pets",
		"input":  map[string]any{"contentType": "application/json", "body": `{"name":"Rex"}`},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reply struct {
		State     string `json:"state"`
		Execution struct {
			Curl     string `json:"curl"`
			Response struct {
				Status int    `json:"status"`
				Body   string `json:"body"`
				IsJSON bool   `json:"isJson"`
			} `json:"response"`
		} `json:"execution"`
	}
	decodeBody(t, resp, &reply)
	assert.Equal(t, "succeeded", reply.State)
	assert.Equal(t, 200, reply.Execution.Response.Status)
	assert.True(t, reply.Execution.Response.IsJSON)
	assert.Contains(t, reply.Execution.Curl, "-H 'Authorization: Bearer abc123'")
	hits, auth := h.backendCalls()
	assert.Equal(t, 1, hits)
	assert.Equal(t, "Bearer abc123", auth)

	rec, ok := h.cache.Get("POST:/pets")
	require.True(t, ok)
	assert.Equal(t, `{"name":"Rex"}`, *rec.RequestBody)
	assert.Equal(t, 200, rec.Response.Status)
}

func TestFormBodies(t *testing.T) {
	h := newHarness(t, true)

	q := url.Values{"method": {"POST"}, "path": {"/pets/{id}/adopt"}}
	resp := h.do(t, "GET", "/docs/api/operation?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view struct {
		RequestBody []struct {
			ContentType string `json:"contentType"`
			Fields      []struct {
				Name     string `json:"name"`
				Required bool   `json:"required"`
				File     bool   `json:"file"`
			} `json:"fields"`
		} `json:"requestBody"`
	}
	decodeBody(t, resp, &view)
	require.Len(t, view.RequestBody, 2)
	require.Len(t, view.RequestBody[0].Fields, 2)
	assert.Equal(t, "owner", view.RequestBody[0].Fields[0].Name)
	assert.True(t, view.RequestBody[0].Fields[0].Required)
	require.Len(t, view.RequestBody[1].Fields, 2)
	assert.True(t, view.RequestBody[1].Fields[1].File)

	resp = h.do(t, "POST", "/docs/api/execute", map[string]any{
		"method": "POST",
		"path":   "/pets/{id}/adopt",
		"input": map[string]any{
			"parameters":  map[string]string{"id": "3"},
			"contentType": "application/x-www-form-urlencoded",
			"formValues":  map[string]string{"owner": "Ann Lee", "visits": "2"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ct, body := h.lastRequest()
	assert.Equal(t, "application/x-www-form-urlencoded", ct)
	assert.Equal(t, "owner=Ann+Lee&visits=2", body)

	photo := filepath.Join(t.TempDir(), "rex.png")
	require.NoError(t, os.WriteFile(photo, []byte("PNGDATA"), 0o600))
	resp = h.do(t, "POST", "/docs/api/execute", map[string]any{
		"method": "POST",
		"path":   "/pets/{id}/adopt",
		"input": map[string]any{
			"parameters":  map[string]string{"id": "3"},
			"contentType": "multipart/form-data",
			"formValues":  map[string]string{"note": "friendly"},
			"files":       map[string][]string{"photo": {photo}},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ct, body = h.lastRequest()
	assert.True(t, strings.HasPrefix(ct, "multipart/form-data; boundary="), ct)
	assert.Contains(t, body, `name="note"`)
	assert.Contains(t, body, "friendly")
	assert.Contains(t, body, `filename="rex.png"`)
	assert.Contains(t, body, "PNGDATA")
}

func TestExecuteValidationFailure(t *testing.T) {
	h := newHarness(t, true)

	resp := h.do(t, "POST", "/docs/api/execute", map[string]any{
		"method": "GET",
		"path":   "/pets/{id}",
		"input":  map[string]any{"parameters": map[string]string{"id": "500"}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var reply struct {
		State  string `json:"state"`
		Fields []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"fields"`
	}
	decodeBody(t, resp, &reply)
	assert.Equal(t, "validation failed", reply.State)
	require.Len(t, reply.Fields, 1)
	assert.Equal(t, "id", reply.Fields[0].Field)
	assert.Equal(t, "must be at most 100", reply.Fields[0].Message)

	_, ok := h.cache.Get("GET:/pets/{id}")
	assert.False(t, ok)
	hits, _ := h.backendCalls()
	assert.Zero(t, hits)
}

func TestGenerateFallsBackToSynthesizer(t *testing.T) {
	h := newHarness(t, true)
	resp := h.do(t, "POST", "/docs/api/generate", map[string]any{
		"method": "POST",
		"path":   "/pets",
		"pinned": map[string]any{"name": "Rex"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Example   string `json:"example"`
		Generated bool   `json:"generated"`
	}
	decodeBody(t, resp, &out)
	assert.False(t, out.Generated)
	assert.Equal(t, "{\n  \"name\": \"Rex\",\n  \"age\": 0\n}", out.Example)
}

func TestCacheEndpoints(t *testing.T) {
	h := newHarness(t, true)

	body := `{"name":"x"}`
	resp := h.do(t, "PUT", "/docs/api/cache", map[string]any{
		"method":        "post",
		"path":          "/pets",
		"parameters":    map[string]string{"dry": "1"},
		"requestBody":   body,
		"contentType":   "application/json",
		"customHeaders": []map[string]string{{"key": "X-A", "value": "1"}},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	q := url.Values{"method": {"POST"}, "path": {"/pets"}}
	resp = h.do(t, "GET", "/docs/api/cache?"+q.Encode(), nil)
	var rec struct {
		Parameters    map[string]string `json:"parameters"`
		RequestBody   *string           `json:"requestBody"`
		CustomHeaders []struct {
			Key string `json:"key"`
		} `json:"customHeaders"`
	}
	decodeBody(t, resp, &rec)
	assert.Equal(t, "1", rec.Parameters["dry"])
	require.NotNil(t, rec.RequestBody)
	assert.Equal(t, body, *rec.RequestBody)
	require.Len(t, rec.CustomHeaders, 1)

	resp = h.do(t, "DELETE", "/docs/api/cache", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ok := h.cache.Get("POST:/pets")
	assert.False(t, ok)
}

func TestCacheSavesPartialEdits(t *testing.T) {
	h := newHarness(t, true)

	resp := h.do(t, "PUT", "/docs/api/cache", map[string]any{
		"method":     "GET",
		"path":       "/pets/{id}",
		"parameters": map[string]string{"id": "4"},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	rec, ok := h.cache.Get("GET:/pets/{id}")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"id": "4"}, rec.Parameters)
	assert.Nil(t, rec.RequestBody)

	resp = h.do(t, "PUT", "/docs/api/cache", map[string]any{
		"method":        "GET",
		"path":          "/pets/{id}",
		"customHeaders": []map[string]string{{"key": "X-Trace", "value": "on"}},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	rec, ok = h.cache.Get("GET:/pets/{id}")
	require.True(t, ok)
	assert.Equal(t, "4", rec.Parameters["id"])
	require.Len(t, rec.CustomHeaders, 1)
	assert.Equal(t, "X-Trace", rec.CustomHeaders[0].Key)

	resp = h.do(t, "PUT", "/docs/api/cache", map[string]any{
		"method":      "POST",
		"path":        "/pets/{id}/adopt",
		"contentType": "multipart/form-data",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	rec, ok = h.cache.Get("POST:/pets/{id}/adopt")
	require.True(t, ok)
	assert.Equal(t, "multipart/form-data", rec.ContentType)
	assert.Nil(t, rec.RequestBody)
}

func TestCredentialsEndpoints(t *testing.T) {
	h := newHarness(t, true)

	h.creds.Set("bearer", "supersecret")
	resp := h.do(t, "GET", "/docs/api/credentials", nil)
	var creds []credentialView
	decodeBody(t, resp, &creds)
	require.Len(t, creds, 1)
	assert.Equal(t, "bearer", creds[0].Scheme)
	assert.True(t, creds[0].Set)
	assert.Equal(t, "*******cret", creds[0].Masked)
	assert.Nil(t, creds[0].Token)

	resp = h.do(t, "DELETE", "/docs/api/credentials/bearer", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ok := h.creds.Get("bearer")
	assert.False(t, ok)
}

func TestTheme(t *testing.T) {
	h := newHarness(t, true)

	resp := h.do(t, "PUT", "/docs/api/theme", map[string]string{"theme": "neon"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, "PUT", "/docs/api/theme", map[string]string{"theme": "Light"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(t, "GET", "/docs/", nil)
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), `data-theme="light"`)
}

func TestSwitchVersion(t *testing.T) {
	h := newHarness(t, true)

	resp := h.do(t, "POST", "/docs/api/versions/v2", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, "POST", "/docs/api/versions/v9", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(t, "GET", "/docs/", nil)
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), `<option value="v2" selected>v2</option>`)
}
