// Package server is the thin HTML host: it serves the shell page with its
// template tokens filled in, the static assets, and a JSON API over the
// session core.
package server

import (
	"context"
	"embed"
	"errors"
	"html"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"swashark/internal/aigen"
	"swashark/internal/session"
	"swashark/internal/store"
)

//go:embed assets
var assets embed.FS

type Options struct {
	Title       string
	RoutePrefix string
}

type Server struct {
	opts     Options
	sessions *session.Manager
	cache    *store.SessionCache
	creds    *store.Credentials
	ui       *store.UIState
	gen      *aigen.Generator
	log      zerolog.Logger
	mux      *http.ServeMux
}

func New(opts Options, sessions *session.Manager, cache *store.SessionCache, creds *store.Credentials, ui *store.UIState, gen *aigen.Generator, log zerolog.Logger) *Server {
	opts.RoutePrefix = strings.TrimRight(strings.TrimSpace(opts.RoutePrefix), "/")
	s := &Server{
		opts:     opts,
		sessions: sessions,
		cache:    cache,
		creds:    creds,
		ui:       ui,
		gen:      gen,
		log:      log,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	p := s.opts.RoutePrefix
	static, _ := fs.Sub(assets, "assets")

	s.mux.HandleFunc("GET "+p+"/{$}", s.handleIndex)
	if p != "" {
		s.mux.Handle("GET "+p, http.RedirectHandler(p+"/", http.StatusMovedPermanently))
	}
	s.mux.Handle("GET "+p+"/static/", http.StripPrefix(p+"/static/", http.FileServerFS(static)))
	s.mux.HandleFunc("GET "+p+"/openapi.json", s.handleDocument)

	s.mux.HandleFunc("GET "+p+"/api/versions", s.handleVersions)
	s.mux.HandleFunc("POST "+p+"/api/versions/{name}", s.handleSwitch)
	s.mux.HandleFunc("GET "+p+"/api/catalog", s.handleCatalog)
	s.mux.HandleFunc("GET "+p+"/api/operation", s.handleOperation)
	s.mux.HandleFunc("POST "+p+"/api/execute", s.handleExecute)
	s.mux.HandleFunc("POST "+p+"/api/generate", s.handleGenerate)
	s.mux.HandleFunc("GET "+p+"/api/cache", s.handleCacheGet)
	s.mux.HandleFunc("PUT "+p+"/api/cache", s.handleCachePut)
	s.mux.HandleFunc("DELETE "+p+"/api/cache", s.handleCacheClear)
	s.mux.HandleFunc("GET "+p+"/api/credentials", s.handleCredentials)
	s.mux.HandleFunc("PUT "+p+"/api/credentials/{scheme}", s.handleCredentialSet)
	s.mux.HandleFunc("DELETE "+p+"/api/credentials/{scheme}", s.handleCredentialDelete)
	s.mux.HandleFunc("PUT "+p+"/api/theme", s.handleTheme)
}

func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Str("prefix", s.opts.RoutePrefix+"/").Msg("serving")

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	tpl, err := assets.ReadFile("assets/index.html")
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(s.renderShell(string(tpl))))
}

// renderShell substitutes the template tokens of the shell page.
func (s *Server) renderShell(tpl string) string {
	title := s.opts.Title
	if title == "" {
		if cur := s.sessions.Current(); cur != nil && cur.Catalog.Title != "" {
			title = cur.Catalog.Title
		} else {
			title = "API explorer"
		}
	}
	return strings.NewReplacer(
		"{{DOCUMENT_TITLE}}", html.EscapeString(title),
		"{{ROUTE_PREFIX}}", html.EscapeString(s.opts.RoutePrefix),
		"{{SWAGGER_ENDPOINT}}", html.EscapeString(s.opts.RoutePrefix+"/openapi.json"),
		"{{VERSION_SELECTOR}}", s.versionSelector(),
		"{{THEME}}", s.theme(),
	).Replace(tpl)
}

func (s *Server) theme() string {
	if s.ui == nil {
		return store.ThemeDark
	}
	return s.ui.Theme()
}

func (s *Server) versionSelector() string {
	versions := s.sessions.Versions()
	if len(versions) < 2 {
		return ""
	}
	current := ""
	if cur := s.sessions.Current(); cur != nil {
		current = cur.Version
	}
	var b strings.Builder
	b.WriteString(`<select id="version-selector" class="version-selector">`)
	for _, v := range versions {
		name := html.EscapeString(v.Name)
		b.WriteString(`<option value="` + name + `"`)
		if v.Name == current {
			b.WriteString(` selected`)
		}
		b.WriteString(`>` + name + `</option>`)
	}
	b.WriteString(`</select>`)
	return b.String()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("http")
	})
}
