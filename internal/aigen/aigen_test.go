package aigen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swashark/internal/openapi"
	"swashark/internal/schema"
)

const doc = `{
  "openapi": "3.0.3",
  "info": {"title": "Gen", "version": "1"},
  "paths": {},
  "components": {
    "schemas": {
      "User": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string"},
          "age": {"type": "integer"},
          "email": {"type": "string", "format": "email"}
        }
      },
      "Tags": {"type": "array", "items": {"type": "string"}}
    }
  }
}`

func resolver(t *testing.T) *schema.Resolver {
	t.Helper()
	d, err := openapi.Parse([]byte(doc))
	require.NoError(t, err)
	return schema.NewResolver(d)
}

func marshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestNewClientWithoutURL(t *testing.T) {
	assert.Nil(t, NewClient(Config{}, nil))
	assert.False(t, NewGenerator(nil, zerolog.Nop()).Enabled())

	var g *Generator
	assert.False(t, g.Enabled())
}

func TestExampleWithoutGeneratorSynthesizes(t *testing.T) {
	r := resolver(t)
	g := NewGenerator(nil, zerolog.Nop())

	got := g.Example(context.Background(), r, schema.ComponentRef("User"), "", "", nil)
	assert.Equal(t, `{"name":"string","age":0,"email":"string"}`, marshal(t, got))

	got = g.Example(context.Background(), r, schema.ComponentRef("User"), "", "", map[string]any{"age": 5, "nickname": "bo"})
	assert.Equal(t, `{"name":"string","age":5,"email":"string","nickname":"bo"}`, marshal(t, got))
}

func TestExampleMergesGeneratedObject(t *testing.T) {
	var got generateRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"example": {"email": "ada@example.com", "age": 36, "extra": true}}`))
	}))
	defer srv.Close()

	g := NewGenerator(NewClient(Config{URL: srv.URL, APIKey: "secret"}, srv.Client()), zerolog.Nop())
	require.True(t, g.Enabled())

	out := g.Example(context.Background(), resolver(t), schema.ComponentRef("User"), "", "a mathematician", map[string]any{"age": 7})
	assert.Equal(t, `{"name":"string","age":7,"email":"ada@example.com"}`, marshal(t, out))

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "a mathematician", got.Context)
	assert.Equal(t, "object", got.Schema["type"])
	assert.Equal(t, map[string]any{"age": float64(7)}, got.Pinned)
}

func TestExampleKeepsNonObjectReplies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"example": ["red", "green"]}`))
	}))
	defer srv.Close()

	g := NewGenerator(NewClient(Config{URL: srv.URL}, srv.Client()), zerolog.Nop())
	out := g.Example(context.Background(), resolver(t), schema.ComponentRef("Tags"), "", "", nil)
	assert.Equal(t, []any{"red", "green"}, out)

	// an array for an object schema is rejected
	out = g.Example(context.Background(), resolver(t), schema.ComponentRef("User"), "", "", nil)
	assert.Equal(t, `{"name":"string","age":0,"email":"string"}`, marshal(t, out))
}

func TestExampleFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"null example", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"example": null}`))
		}},
		{"missing example", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			g := NewGenerator(NewClient(Config{URL: srv.URL}, srv.Client()), zerolog.Nop())
			out := g.Example(context.Background(), resolver(t), schema.ComponentRef("User"), "", "", map[string]any{"name": "pinned"})
			assert.Equal(t, `{"name":"pinned","age":0,"email":"string"}`, marshal(t, out))
		})
	}
}

func TestGenerateReportsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"example": null}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{URL: srv.URL}, srv.Client()).Generate(context.Background(), map[string]any{}, "", nil)
	assert.ErrorIs(t, err, errNoExample)
}
