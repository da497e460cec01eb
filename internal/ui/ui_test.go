package ui

import (
	"context"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swashark/internal/httpclient"
	"swashark/internal/model"
	"swashark/internal/openapi"
	"swashark/internal/schema"
	"swashark/internal/store"
)

var ansiRe = regexp.MustCompile("\033\\[[0-9;]*m")

func stripANSI(s string) string { return ansiRe.ReplaceAllString(s, "") }

func TestFilterEndpoints(t *testing.T) {
	eps := []model.Endpoint{
		{Tag: "pets", Method: "GET", Path: "/pets", Summary: "List pets"},
		{Tag: "pets", Method: "POST", Path: "/pets", Summary: "Create pet"},
		{Tag: "users", Method: "GET", Path: "/users/{id}", OperationID: "getUser"},
	}

	assert.Equal(t, []int{0, 1, 2}, filterEndpoints(eps, "  "))
	assert.Equal(t, []int{2}, filterEndpoints(eps, "getuser"))
	assert.Equal(t, []int{1}, filterEndpoints(eps, "post"))
	assert.Empty(t, filterEndpoints(eps, "zzz"))

	got := filterEndpoints(eps, "pets")
	assert.ElementsMatch(t, []int{0, 1}, got)
}

func TestFuzzyMatchScore(t *testing.T) {
	_, ok := fuzzyMatchScore("gpt", "GET /pets")
	assert.True(t, ok)
	_, ok = fuzzyMatchScore("tpg", "GET /pets")
	assert.False(t, ok)

	tight, _ := fuzzyMatchScore("pets", "GET /pets")
	loose, _ := fuzzyMatchScore("pets", "GET /p/e/t/s")
	assert.Less(t, tight, loose)
}

func TestFormatBodyKeepsMemberOrder(t *testing.T) {
	out := stripANSI(formatBody(`{"z":1,"a":{"k":[true,null]},"s":"<x>"}`, true))
	assert.Equal(t, "{\n"+
		"  \"z\": 1,\n"+
		"  \"a\": {\n"+
		"    \"k\": [\n"+
		"      true,\n"+
		"      null\n"+
		"    ]\n"+
		"  },\n"+
		"  \"s\": \"<x>\"\n"+
		"}", out)

	assert.Equal(t, "plain", formatBody("plain", false))
	assert.Equal(t, "{broken", formatBody("{broken", true))
}

func TestEditedBodyKeepsText(t *testing.T) {
	raw := "{\"b\":1,   \"a\":[1,2]}\n"
	out, err := editedBody(raw, "application/json")
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,   "a":[1,2]}`, out)

	out, err = editedBody("   \n", "application/json")
	require.NoError(t, err)
	assert.Equal(t, "   ", out)

	out, err = editedBody(`{"a":`+"\n", "application/json")
	assert.Error(t, err)
	assert.Equal(t, `{"a":`, out)

	out, err = editedBody(`{} {}`, "application/json")
	assert.Error(t, err)
	assert.Equal(t, `{} {}`, out)

	out, err = editedBody("<pet/>\n\n", "application/xml")
	require.NoError(t, err)
	assert.Equal(t, "<pet/>", out)
}

func TestSplitCommand(t *testing.T) {
	assert.Equal(t, []string{"vi"}, splitCommand(""))
	assert.Equal(t, []string{"code", "--wait"}, splitCommand(" code  --wait "))
}

func TestCloneInputIsIndependent(t *testing.T) {
	in := httpclient.Input{
		Params:     map[string]string{"id": "1"},
		FormValues: map[string]string{"note": "a"},
		Files:      map[string][]string{"file": {"/a"}},
		Headers:    []model.Header{{Key: "X", Value: "1"}},
		Body:       "{}",
	}
	out := cloneInput(in)
	in.Params["id"] = "2"
	in.FormValues["note"] = "b"
	in.Files["file"][0] = "/b"
	in.Headers[0].Value = "2"

	assert.Equal(t, "1", out.Params["id"])
	assert.Equal(t, "a", out.FormValues["note"])
	assert.Equal(t, []string{"/a"}, out.Files["file"])
	assert.Equal(t, "1", out.Headers[0].Value)
	assert.Equal(t, "{}", out.Body)
}

func TestColorHelpers(t *testing.T) {
	assert.Equal(t, "GET    ", stripANSI(colorizeMethod("GET")))
	assert.Equal(t, "404 Not Found", stripANSI(colorizeStatus(404, "Not Found")))
	assert.Equal(t, "/pets/{id}", stripANSI(highlightPathParams("/pets/{id}")))
	assert.True(t, isJSONText(` {"a":1} `))
	assert.False(t, isJSONText("nope"))
	assert.Equal(t, "b", firstNonEmpty(" ", "b"))
}

type deadlineTransport struct {
	hasDeadline bool
}

func (d *deadlineTransport) Do(ctx context.Context, _ httpclient.Request) (httpclient.RawResponse, error) {
	_, d.hasDeadline = ctx.Deadline()
	return httpclient.RawResponse{Status: 200, StatusText: "OK"}, nil
}

func TestSendHasNoDeadline(t *testing.T) {
	doc, err := openapi.Parse([]byte(`{
  "openapi": "3.0.3",
  "info": {"title": "Slow", "version": "1"},
  "paths": {"/report": {"get": {"responses": {"200": {"description": "ok"}}}}}
}`))
	require.NoError(t, err)
	catalog, err := openapi.BuildCatalog(doc)
	require.NoError(t, err)
	op, ok := catalog.Lookup("GET", "/report")
	require.True(t, ok)

	transport := &deadlineTransport{}
	builder := httpclient.NewBuilder(schema.NewResolver(doc), catalog.Schemes, nil, "http://slow.test")
	cache := store.NewSessionCache(store.NewMemoryKV(), zerolog.Nop())
	exec := httpclient.NewExecutor(builder, transport, cache, zerolog.Nop())

	ex, err := send(exec, op, httpclient.Input{})
	require.NoError(t, err)
	assert.Equal(t, httpclient.StateSucceeded, ex.State)
	assert.False(t, transport.hasDeadline)
}
