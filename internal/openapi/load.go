package openapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 10 * time.Second

// Load reads an OpenAPI document from an http(s) URL or, when source starts
// with "@", from a local file.
func Load(ctx context.Context, client *http.Client, source string) (*Document, error) {
	source = strings.TrimSpace(source)
	if path, ok := strings.CutPrefix(source, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spec file: %w", err)
		}
		return Parse(data)
	}
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return nil, fmt.Errorf("unsupported spec source %q (want http(s) URL or @file)", source)
	}

	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: %s", source, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read spec body: %w", err)
	}
	return Parse(data)
}

// Fetcher memoizes the document of one source. Callers arriving while a
// fetch is in flight share its result; Refresh drops both the memoized
// document and the in-flight call.
type Fetcher struct {
	source string
	client *http.Client
	log    zerolog.Logger

	group singleflight.Group

	mu  sync.Mutex
	doc *Document
	gen uint64
}

func NewFetcher(source string, client *http.Client, log zerolog.Logger) *Fetcher {
	return &Fetcher{source: strings.TrimSpace(source), client: client, log: log}
}

func (f *Fetcher) Source() string { return f.source }

func (f *Fetcher) Get(ctx context.Context) (*Document, error) {
	f.mu.Lock()
	if f.doc != nil {
		doc := f.doc
		f.mu.Unlock()
		return doc, nil
	}
	gen := f.gen
	f.mu.Unlock()

	v, err, shared := f.group.Do(f.key(gen), func() (any, error) {
		start := time.Now()
		doc, err := Load(ctx, f.client, f.source)
		if err != nil {
			f.log.Warn().Err(err).Str("source", f.source).Msg("spec fetch failed")
			return nil, err
		}
		f.log.Debug().Str("source", f.source).Dur("elapsed", time.Since(start)).Msg("spec fetched")

		f.mu.Lock()
		if f.gen == gen {
			f.doc = doc
		}
		f.mu.Unlock()
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		f.log.Debug().Str("source", f.source).Msg("spec fetch shared with in-flight caller")
	}
	return v.(*Document), nil
}

func (f *Fetcher) Refresh() {
	f.mu.Lock()
	old := f.gen
	f.doc = nil
	f.gen++
	f.mu.Unlock()
	f.group.Forget(f.key(old))
}

func (f *Fetcher) key(gen uint64) string {
	return fmt.Sprintf("%s#%d", f.source, gen)
}
