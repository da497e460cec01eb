// Package aigen asks an external service for a realistic example payload.
// It is only ever an enrichment: every failure falls back to the
// deterministic synthesizer.
package aigen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog"

	"swashark/internal/schema"
)

const defaultTimeout = 30 * time.Second

var errNoExample = errors.New("generator reply has no example")

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the generator endpoint: it POSTs
// {"schema": ..., "context": ..., "pinned": ...} and expects
// {"example": ...} back.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

// NewClient returns nil when no URL is configured.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{url: strings.TrimSpace(cfg.URL), apiKey: cfg.APIKey, http: httpClient}
}

type generateRequest struct {
	Schema  map[string]any `json:"schema"`
	Context string         `json:"context,omitempty"`
	Pinned  map[string]any `json:"pinned,omitempty"`
}

type generateReply struct {
	Example json.RawMessage `json:"example"`
}

func (c *Client) Generate(ctx context.Context, schemaDoc map[string]any, hint string, pinned map[string]any) (any, error) {
	payload, err := json.Marshal(generateRequest{Schema: schemaDoc, Context: hint, Pinned: pinned})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read generator reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("generator returned %s", resp.Status)
	}

	var reply generateReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("decode generator reply: %w", err)
	}
	if len(reply.Example) == 0 || string(reply.Example) == "null" {
		return nil, errNoExample
	}
	var example any
	if err := json.Unmarshal(reply.Example, &example); err != nil {
		return nil, fmt.Errorf("decode generator example: %w", err)
	}
	return example, nil
}

// Generator merges generated examples with the synthesizer.
type Generator struct {
	client *Client
	log    zerolog.Logger
}

// NewGenerator accepts a nil client; Example then always synthesizes.
func NewGenerator(client *Client, log zerolog.Logger) *Generator {
	return &Generator{client: client, log: log}
}

func (g *Generator) Enabled() bool { return g != nil && g.client != nil }

// Example produces an example for the schema at ref. Pinned values always
// win over generated ones, and required properties the generator left out
// are filled from the synthesizer.
func (g *Generator) Example(ctx context.Context, r *schema.Resolver, ref *openapi3.SchemaRef, ptr, hint string, pinned map[string]any) any {
	fallback := func() any { return pin(r.Example(ref, ptr), pinned) }
	if !g.Enabled() {
		return fallback()
	}

	start := time.Now()
	generated, err := g.client.Generate(ctx, r.Export(ref, ptr), hint, pinned)
	if err != nil {
		g.log.Warn().Err(err).Msg("example generation failed, using synthesized example")
		return fallback()
	}
	g.log.Debug().Dur("elapsed", time.Since(start)).Msg("example generated")

	node, err := r.Resolve(ref, ptr)
	if err != nil || node.Kind != schema.KindObject {
		return generated
	}
	obj, ok := generated.(map[string]any)
	if !ok {
		g.log.Warn().Msg("generator returned a non-object for an object schema, using synthesized example")
		return fallback()
	}
	return merge(r, node, obj, pinned)
}

// merge orders the generated object by declared properties. Undeclared
// generated members are dropped; undeclared pinned ones are kept.
func merge(r *schema.Resolver, node *schema.Node, generated, pinned map[string]any) schema.Object {
	out := schema.Object{}
	for _, p := range node.Properties {
		if v, ok := pinned[p.Name]; ok {
			out = append(out, schema.Member{Name: p.Name, Value: v})
			continue
		}
		if v, ok := generated[p.Name]; ok {
			out = append(out, schema.Member{Name: p.Name, Value: v})
			continue
		}
		if p.Required {
			out = append(out, schema.Member{Name: p.Name, Value: r.Example(p.Schema, p.Pointer)})
		}
	}
	return appendPinned(out, pinned)
}

func pin(example any, pinned map[string]any) any {
	if len(pinned) == 0 {
		return example
	}
	obj, ok := example.(schema.Object)
	if !ok {
		return example
	}
	return appendPinned(obj, pinned)
}

func appendPinned(obj schema.Object, pinned map[string]any) schema.Object {
	names := make([]string, 0, len(pinned))
	for k := range pinned {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		obj = obj.Set(name, pinned[name])
	}
	return obj
}
