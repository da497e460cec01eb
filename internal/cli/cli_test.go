package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swashark/internal/store"
)

const spec = `{
  "openapi": "3.0.3",
  "info": {"title": "Pets", "version": "1.2"},
  "security": [{"bearer": []}],
  "paths": {
    "/pets": {"get": {"tags": ["pets"], "summary": "List pets", "responses": {"200": {"description": "ok"}}}},
    "/health": {"get": {"security": [], "responses": {"200": {"description": "ok"}}}}
  },
  "components": {"securitySchemes": {"bearer": {"type": "http", "scheme": "bearer"}}}
}`

func newTestCLI(env map[string]string) (*CLI, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	c := New(&out, &errOut)
	c.getenv = func(k string) string { return env[k] }
	return c, &out, &errOut
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigPrecedence(t *testing.T) {
	cfgPath := writeFile(t, "swashark.yaml", `
spec_url: http://file/openapi.json
base_url: http://file
debug: false
versions:
  - name: v1
    url: http://file/v1.json
`)
	c, _, _ := newTestCLI(map[string]string{
		"SWASHARK_CONFIG":   cfgPath,
		"SWASHARK_BASE_URL": "http://env",
		"SWASHARK_DEBUG":    "true",
	})

	require.NoError(t, c.rootCmd.ParseFlags(nil))
	cfg, err := c.loadConfig(c.rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "http://env", cfg.BaseURL)
	assert.True(t, cfg.Debug)
	require.Len(t, cfg.VersionList(), 1)
	assert.Equal(t, "v1", cfg.VersionList()[0].Name)

	c, _, _ = newTestCLI(map[string]string{"SWASHARK_CONFIG": cfgPath, "SWASHARK_BASE_URL": "http://env"})
	require.NoError(t, c.rootCmd.ParseFlags([]string{"--base-url", "http://flag", "--spec-url", "http://flag/openapi.json", "--debug=false"}))
	cfg, err = c.loadConfig(c.rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "http://flag", cfg.BaseURL)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "http://flag/openapi.json", cfg.SpecURL)
	assert.Empty(t, cfg.Versions, "a spec flag replaces configured versions")
	assert.Equal(t, "default", cfg.VersionList()[0].Name)
}

func TestLoadConfigBadFile(t *testing.T) {
	c, _, _ := newTestCLI(nil)
	require.NoError(t, c.rootCmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}))
	_, err := c.loadConfig(c.rootCmd)
	assert.Error(t, err)
}

func TestEndpointsCommand(t *testing.T) {
	specPath := writeFile(t, "openapi.json", spec)
	state := filepath.Join(t.TempDir(), "state.json")

	c, out, _ := newTestCLI(nil)
	c.SetArgs([]string{"endpoints", "--spec-file", specPath, "--state-file", state})
	require.NoError(t, c.Execute())

	text := out.String()
	assert.Contains(t, text, "Pets 1.2")
	assert.Regexp(t, `Default\s+GET\s+/health`, text)
	assert.Regexp(t, `pets\s+GET\s+/pets\s+auth\s+List pets`, text)
}

func TestEndpointsWithoutSpec(t *testing.T) {
	c, _, _ := newTestCLI(nil)
	c.SetArgs([]string{"endpoints", "--state-file", filepath.Join(t.TempDir(), "state.json")})
	err := c.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spec required")
}

func TestCacheClearCommand(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state.json")
	kv, err := store.OpenFileKV(state)
	require.NoError(t, err)
	store.NewSessionCache(kv, zerolog.Nop()).SaveParameters("GET:/pets", map[string]string{"limit": "1"})
	store.NewCredentials(kv, zerolog.Nop()).Set("bearer", "tok")

	c, out, _ := newTestCLI(nil)
	c.SetArgs([]string{"cache", "clear", "--state-file", state})
	require.NoError(t, c.Execute())
	assert.Contains(t, out.String(), "session cache cleared")

	kv, err = store.OpenFileKV(state)
	require.NoError(t, err)
	_, ok := store.NewSessionCache(kv, zerolog.Nop()).Get("GET:/pets")
	assert.False(t, ok)
	_, ok = store.NewCredentials(kv, zerolog.Nop()).Get("bearer")
	assert.True(t, ok)
}
