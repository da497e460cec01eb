// Package session owns everything derived from one selected document
// version: the parsed document, its catalog, the resolver and request
// builder, and per-view UI state. A version switch discards the session
// and builds a new one.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"swashark/internal/config"
	"swashark/internal/httpclient"
	"swashark/internal/openapi"
	"swashark/internal/schema"
	"swashark/internal/store"
)

var ErrUnknownVersion = errors.New("unknown version")

// Session is the state of one selected version.
type Session struct {
	Version  string
	Source   string
	BaseURL  string
	Doc      *openapi.Document
	Catalog  *openapi.Catalog
	Resolver *schema.Resolver
	Executor *httpclient.Executor

	mu        sync.Mutex
	current   string
	expand    map[string]schema.ExpandState
	minimized map[string]bool
}

// Builder is the session's request builder.
func (s *Session) Builder() *httpclient.Builder { return s.Executor.Builder() }

// Select records the operation being viewed. It must exist in the catalog.
func (s *Session) Select(method, path string) (*openapi.Operation, error) {
	op, ok := s.Catalog.Lookup(method, path)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", openapi.ErrUnknownOperation, method, path)
	}
	s.mu.Lock()
	s.current = op.Key()
	s.mu.Unlock()
	return op, nil
}

// Current returns the selected operation, if any.
func (s *Session) Current() (*openapi.Operation, bool) {
	s.mu.Lock()
	key := s.current
	s.mu.Unlock()
	if key == "" {
		return nil, false
	}
	return s.Catalog.Get(key)
}

// Expand returns the expand state of one render tree, identified by an
// arbitrary view id such as "GET:/pets#request".
func (s *Session) Expand(view string) schema.ExpandState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.expand[view]
	if !ok {
		st = schema.ExpandState{}
		s.expand[view] = st
	}
	return st
}

// Toggle flips one node of one render tree.
func (s *Session) Toggle(view, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.expand[view]
	if !ok {
		st = schema.ExpandState{}
		s.expand[view] = st
	}
	st.Toggle(path)
}

func (s *Session) Minimized(panel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minimized[panel]
}

func (s *Session) SetMinimized(panel string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.minimized[panel] = true
	} else {
		delete(s.minimized, panel)
	}
}

// Options carry the collaborators shared by every session.
type Options struct {
	Versions  []config.Version
	BaseURL   string
	Client    *http.Client
	Transport httpclient.Transport
	Cache     *store.SessionCache
	Creds     httpclient.CredentialSource
	Log       zerolog.Logger
}

// Manager switches between versions. Each version keeps its own memoized
// fetcher; switching refreshes it so the document is fetched anew.
type Manager struct {
	opts     Options
	fetchers map[string]*openapi.Fetcher

	mu      sync.Mutex
	current *Session
}

func NewManager(opts Options) *Manager {
	if opts.Transport == nil {
		opts.Transport = httpclient.NewHTTPTransport(nil)
	}
	m := &Manager{opts: opts, fetchers: map[string]*openapi.Fetcher{}}
	for _, v := range opts.Versions {
		m.fetchers[v.Name] = openapi.NewFetcher(v.Source(), opts.Client, opts.Log.With().Str("version", v.Name).Logger())
	}
	return m
}

func (m *Manager) Versions() []config.Version {
	out := make([]config.Version, len(m.opts.Versions))
	copy(out, m.opts.Versions)
	return out
}

// Current returns the active session, or nil before the first Open.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Open builds a session for name from the memoized document, fetching it on
// first use.
func (m *Manager) Open(ctx context.Context, name string) (*Session, error) {
	return m.open(ctx, name, false)
}

// Switch tears down the current session and builds one for name from a
// freshly fetched document.
func (m *Manager) Switch(ctx context.Context, name string) (*Session, error) {
	return m.open(ctx, name, true)
}

func (m *Manager) open(ctx context.Context, name string, refresh bool) (*Session, error) {
	f, ok := m.fetchers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, name)
	}
	if refresh {
		f.Refresh()
	}
	doc, err := f.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	s, err := m.build(name, f.Source(), doc)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	m.opts.Log.Info().Str("version", name).Int("operations", s.Catalog.Len()).Msg("session opened")
	return s, nil
}

func (m *Manager) build(name, source string, doc *openapi.Document) (*Session, error) {
	catalog, err := openapi.BuildCatalog(doc)
	if err != nil && !errors.Is(err, openapi.ErrNoPaths) {
		return nil, err
	}
	if errors.Is(err, openapi.ErrNoPaths) {
		m.opts.Log.Warn().Str("version", name).Msg("document declares no paths")
	}

	baseURL := openapi.NormalizeBaseURL(m.opts.BaseURL)
	if baseURL == "" {
		baseURL = openapi.BaseURL(doc, source)
	}

	resolver := schema.NewResolver(doc)
	builder := httpclient.NewBuilder(resolver, catalog.Schemes, m.opts.Creds, baseURL)
	log := m.opts.Log.With().Str("version", name).Logger()
	return &Session{
		Version:   name,
		Source:    source,
		BaseURL:   baseURL,
		Doc:       doc,
		Catalog:   catalog,
		Resolver:  resolver,
		Executor:  httpclient.NewExecutor(builder, m.opts.Transport, m.opts.Cache, log),
		expand:    map[string]schema.ExpandState{},
		minimized: map[string]bool{},
	}, nil
}
