package openapi

import (
	"errors"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swashark/internal/model"
)

const petstore = `{
  "openapi": "3.0.3",
  "info": {"title": "Petstore", "version": "1.0.0"},
  "servers": [{"url": "/api/v1"}],
  "security": [{"bearer": []}],
  "paths": {
    "/pets/{id}": {
      "get": {
        "summary": "Get pet",
        "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "integer"}}],
        "responses": {
          "200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/Pet"}}}},
          "404": {"$ref": "#/components/responses/NotFound"}
        }
      }
    },
    "/pets": {
      "post": {
        "tags": ["pets", "admin"],
        "requestBody": {
          "required": true,
          "content": {
            "application/json": {"schema": {"$ref": "#/components/schemas/Pet"}},
            "application/xml": {"schema": {"$ref": "#/components/schemas/Pet"}}
          }
        },
        "responses": {"201": {"description": "created"}}
      },
      "get": {
        "tags": ["pets"],
        "parameters": [{"$ref": "#/components/parameters/Limit"}, {"$ref": "#/components/parameters/Missing"}],
        "responses": {"200": {"description": "ok"}}
      }
    },
    "/health": {
      "get": {"security": [], "responses": {"200": {"description": "ok"}}}
    }
  },
  "components": {
    "parameters": {"Limit": {"name": "limit", "in": "query", "schema": {"type": "integer", "maximum": 10}}},
    "responses": {"NotFound": {"description": "not found"}},
    "securitySchemes": {"bearer": {"type": "http", "scheme": "bearer"}},
    "schemas": {
      "Pet": {"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}, "age": {"type": "integer"}}}
    }
  }
}`

func parsePetstore(t *testing.T) *Document {
	t.Helper()
	doc, err := Parse([]byte(petstore))
	require.NoError(t, err)
	return doc
}

func TestBuildCatalogGroupsByTag(t *testing.T) {
	c, err := BuildCatalog(parsePetstore(t))
	require.NoError(t, err)

	assert.Equal(t, "Petstore", c.Title)
	assert.Equal(t, "1.0.0", c.Version)
	assert.Equal(t, 4, c.Len())

	var names []string
	for _, g := range c.Tags {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{"admin", model.DefaultTag, "pets"}, names)

	byTag := map[string][]string{}
	for _, g := range c.Tags {
		for _, ep := range g.Endpoints {
			byTag[g.Name] = append(byTag[g.Name], ep.Method+" "+ep.Path)
		}
	}
	assert.Equal(t, []string{"GET /pets/{id}", "GET /health"}, byTag[model.DefaultTag])
	assert.Equal(t, []string{"POST /pets", "GET /pets"}, byTag["pets"])
	assert.Equal(t, []string{"POST /pets"}, byTag["admin"])
}

func TestCatalogMultiTagOperationIsOneOperation(t *testing.T) {
	c, err := BuildCatalog(parsePetstore(t))
	require.NoError(t, err)

	assert.Len(t, c.Endpoints(), 5)
	assert.Len(t, c.Operations(), 4)

	op, ok := c.Get("POST:/pets")
	require.True(t, ok)
	assert.Equal(t, []string{"pets", "admin"}, op.Tags)
}

func TestCatalogRequiresAuthFollowsGlobalSecurity(t *testing.T) {
	c, err := BuildCatalog(parsePetstore(t))
	require.NoError(t, err)

	op, ok := c.Lookup("get", "/pets/{id}")
	require.True(t, ok)
	assert.True(t, op.RequiresAuth())
	assert.Equal(t, []model.Requirement{{"bearer"}}, op.Security)

	health, ok := c.Lookup("GET", "/health")
	require.True(t, ok)
	assert.False(t, health.RequiresAuth(), "an empty operation security list opts out")

	require.Contains(t, c.Schemes, "bearer")
	assert.Equal(t, model.SchemeHTTP, c.Schemes["bearer"].Type)
	assert.Equal(t, "bearer", c.Schemes["bearer"].Scheme)
}

func TestCatalogLookupUnknown(t *testing.T) {
	c, err := BuildCatalog(parsePetstore(t))
	require.NoError(t, err)

	_, ok := c.Lookup("DELETE", "/pets/{id}")
	assert.False(t, ok)

	_, err = parsePetstore(t).Operation("DELETE", "/pets/{id}")
	assert.True(t, errors.Is(err, ErrUnknownOperation))
}

func TestBuildCatalogWithoutPaths(t *testing.T) {
	doc, err := Parse([]byte(`{"openapi": "3.0.0", "info": {"title": "Empty", "version": "0"}}`))
	require.NoError(t, err)

	c, err := BuildCatalog(doc)
	assert.ErrorIs(t, err, ErrNoPaths)
	require.NotNil(t, c)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Endpoints())
	assert.Equal(t, "Empty", c.Title)
}

func TestOperationFollowsComponentReferences(t *testing.T) {
	doc := parsePetstore(t)

	list, err := doc.Operation("GET", "/pets")
	require.NoError(t, err)
	require.Len(t, list.Parameters, 1)
	assert.Equal(t, "limit", list.Parameters[0].Name)
	assert.Equal(t, model.ParamInQuery, list.Parameters[0].In)
	assert.Equal(t, "#/components/parameters/Limit/schema", list.Parameters[0].Pointer)
	assert.Equal(t, []string{"unresolved parameter #/components/parameters/Missing"}, list.Warnings)

	get, err := doc.Operation("GET", "/pets/{id}")
	require.NoError(t, err)
	require.Len(t, get.Responses, 2)
	assert.Equal(t, "200", get.Responses[0].Status)
	assert.Equal(t, "404", get.Responses[1].Status)
	assert.Equal(t, "not found", get.Responses[1].Description)
	assert.True(t, get.Parameters[0].Required)

	create, err := doc.Operation("POST", "/pets")
	require.NoError(t, err)
	assert.True(t, create.BodyRequired)
	require.Len(t, create.RequestBody, 2)
	assert.Equal(t, "application/json", create.RequestBody[0].ContentType)
	assert.Equal(t, "application/xml", create.RequestBody[1].ContentType)

	mt, ok := create.MediaType("APPLICATION/XML")
	assert.True(t, ok)
	assert.Equal(t, "application/xml", mt.ContentType)
}

func TestBaseURL(t *testing.T) {
	doc := parsePetstore(t)
	bare := NewDocument(&openapi3.T{OpenAPI: "3.0.0"})
	absolute := NewDocument(&openapi3.T{OpenAPI: "3.0.0", Servers: openapi3.Servers{{URL: "https://api.example.com/v2/"}}})
	templated := NewDocument(&openapi3.T{OpenAPI: "3.0.0", Servers: openapi3.Servers{{URL: "{scheme}://example.com"}}})

	tests := []struct {
		name   string
		doc    *Document
		source string
		want   string
	}{
		{"relative server against spec url", doc, "http://host:8080/spec/openapi.json", "http://host:8080/api/v1"},
		{"relative server from file", doc, "@/tmp/openapi.json", ""},
		{"absolute server", absolute, "@/tmp/openapi.json", "https://api.example.com/v2"},
		{"no servers uses spec directory", bare, "http://host/spec/openapi.json", "http://host/spec"},
		{"spec at root", bare, "http://host/openapi.json", "http://host"},
		{"templated server is skipped", templated, "http://host/docs/openapi.json", "http://host/docs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseURL(tt.doc, tt.source))
		})
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := map[string]string{
		"":                         "",
		"localhost:8000":           "http://localhost:8000",
		" https://api.example/ ":   "https://api.example",
		"http://127.0.0.1:9000/v1": "http://127.0.0.1:9000/v1",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeBaseURL(in), "input %q", in)
	}
}

func TestSchemeNames(t *testing.T) {
	got := SchemeNames([]model.Requirement{{"apiKey", "bearer"}, {"bearer"}, {"oauth"}})
	assert.Equal(t, []string{"apiKey", "bearer", "oauth"}, got)
}
