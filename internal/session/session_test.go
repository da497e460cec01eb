package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swashark/internal/config"
	"swashark/internal/openapi"
	"swashark/internal/store"
)

const spec = `{
  "openapi": "3.0.3",
  "info": {"title": "Pets", "version": "1"},
  "servers": [{"url": "/api"}],
  "paths": {
    "/pets": {"get": {"tags": ["pets"], "responses": {"200": {"description": "ok"}}}}
  }
}`

func newManager(t *testing.T, versions ...config.Version) *Manager {
	t.Helper()
	kv := store.NewMemoryKV()
	return NewManager(Options{
		Versions: versions,
		Cache:    store.NewSessionCache(kv, zerolog.Nop()),
		Creds:    store.NewCredentials(kv, zerolog.Nop()),
		Log:      zerolog.Nop(),
	})
}

func TestOpenFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openapi.json")
	require.NoError(t, os.WriteFile(path, []byte(spec), 0o600))

	m := newManager(t, config.Version{Name: "v1", File: path})
	assert.Nil(t, m.Current())

	s, err := m.Open(context.Background(), "v1")
	require.NoError(t, err)
	assert.Same(t, s, m.Current())
	assert.Equal(t, "v1", s.Version)
	assert.Equal(t, "@"+path, s.Source)
	assert.Equal(t, 1, s.Catalog.Len())
	assert.Equal(t, "", s.BaseURL, "a relative server cannot be resolved against a file")
	assert.NotNil(t, s.Builder())

	_, ok := s.Current()
	assert.False(t, ok)
	op, err := s.Select("get", "/pets")
	require.NoError(t, err)
	cur, ok := s.Current()
	require.True(t, ok)
	assert.Same(t, op, cur)

	_, err = s.Select("DELETE", "/pets")
	assert.ErrorIs(t, err, openapi.ErrUnknownOperation)
}

func TestOpenUnknownVersion(t *testing.T) {
	m := newManager(t, config.Version{Name: "v1", URL: "http://unused"})
	_, err := m.Open(context.Background(), "v9")
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestSwitchRefetches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(spec))
	}))
	defer srv.Close()

	m := newManager(t,
		config.Version{Name: "v1", URL: srv.URL + "/v1/openapi.json"},
		config.Version{Name: "v2", URL: srv.URL + "/v2/openapi.json"},
	)
	ctx := context.Background()

	s1, err := m.Open(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/api", s1.BaseURL)
	_, err = m.Open(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "open reuses the memoized document")

	s2, err := m.Switch(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", s2.Version)
	assert.Equal(t, int32(2), hits.Load())

	s3, err := m.Switch(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
	assert.NotSame(t, s1, s3)
	assert.Same(t, s3, m.Current())

	assert.Len(t, m.Versions(), 2)
}

func TestConfiguredBaseURLWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openapi.json")
	require.NoError(t, os.WriteFile(path, []byte(spec), 0o600))

	m := NewManager(Options{
		Versions: []config.Version{{Name: "v1", File: path}},
		BaseURL:  "localhost:9000/",
		Log:      zerolog.Nop(),
	})
	s, err := m.Open(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", s.BaseURL)
	assert.Equal(t, "http://localhost:9000", s.Builder().BaseURL())
}

func TestDocumentWithoutPathsOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openapi.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"openapi": "3.0.0", "info": {"title": "x", "version": "1"}}`), 0o600))

	m := newManager(t, config.Version{Name: "v1", File: path})
	s, err := m.Open(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Catalog.Len())
}

func TestExpandStatePerView(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openapi.json")
	require.NoError(t, os.WriteFile(path, []byte(spec), 0o600))
	s, err := newManager(t, config.Version{Name: "v1", File: path}).Open(context.Background(), "v1")
	require.NoError(t, err)

	req := s.Expand("GET:/pets#request")
	assert.True(t, req.IsExpanded(""))
	assert.False(t, req.IsExpanded("/items"))

	s.Toggle("GET:/pets#request", "/items")
	s.Toggle("GET:/pets#request", "")
	assert.True(t, s.Expand("GET:/pets#request").IsExpanded("/items"))
	assert.False(t, s.Expand("GET:/pets#request").IsExpanded(""))
	assert.False(t, s.Expand("GET:/pets#response:200").IsExpanded("/items"))

	assert.False(t, s.Minimized("schemas"))
	s.SetMinimized("schemas", true)
	assert.True(t, s.Minimized("schemas"))
	s.SetMinimized("schemas", false)
	assert.False(t, s.Minimized("schemas"))
}
