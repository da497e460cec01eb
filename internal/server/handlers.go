package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"swashark/internal/httpclient"
	"swashark/internal/model"
	"swashark/internal/openapi"
	"swashark/internal/schema"
	"swashark/internal/session"
	"swashark/internal/store"
	"swashark/internal/validate"
)

const maxBodyBytes = 8 << 20

type errorBody struct {
	Error  string                `json:"error"`
	Fields []validate.FieldError `json:"fields,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("encode response")
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func sortedSchemes(schemes map[string]model.SecurityScheme) []string {
	names := make([]string, 0, len(schemes))
	for name := range schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// current returns the active session or writes 503.
func (s *Server) current(w http.ResponseWriter) *session.Session {
	cur := s.sessions.Current()
	if cur == nil {
		s.fail(w, http.StatusServiceUnavailable, errors.New("no document loaded"))
	}
	return cur
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	cur := s.current(w)
	if cur == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, cur.Doc.T)
}

type versionView struct {
	Name    string `json:"name"`
	Source  string `json:"source"`
	Current bool   `json:"current"`
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	current := ""
	if cur := s.sessions.Current(); cur != nil {
		current = cur.Version
	}
	out := []versionView{}
	for _, v := range s.sessions.Versions() {
		out = append(out, versionView{Name: v.Name, Source: v.Source(), Current: v.Name == current})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	cur, err := s.sessions.Switch(r.Context(), name)
	switch {
	case errors.Is(err, session.ErrUnknownVersion):
		s.fail(w, http.StatusNotFound, err)
		return
	case err != nil:
		s.fail(w, http.StatusBadGateway, err)
		return
	}
	if s.ui != nil {
		s.ui.SetLastVersion(name)
	}
	s.writeJSON(w, http.StatusOK, cur.Catalog)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cur := s.current(w)
	if cur == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, cur.Catalog)
}

type parameterView struct {
	Name        string              `json:"name"`
	In          model.ParamLocation `json:"in"`
	Required    bool                `json:"required"`
	Description string              `json:"description,omitempty"`
	Deprecated  bool                `json:"deprecated,omitempty"`
	Schema      *schema.RenderNode  `json:"schema"`
	Example     any                 `json:"example,omitempty"`
}

type mediaView struct {
	ContentType string                 `json:"contentType"`
	Schema      *schema.RenderNode     `json:"schema"`
	Example     string                 `json:"example"`
	Fields      []httpclient.FormField `json:"fields,omitempty"`
}

type responseView struct {
	Status      string      `json:"status"`
	Description string      `json:"description,omitempty"`
	Content     []mediaView `json:"content,omitempty"`
}

type operationView struct {
	Key          string                   `json:"key"`
	Method       string                   `json:"method"`
	Path         string                   `json:"path"`
	Summary      string                   `json:"summary,omitempty"`
	Description  string                   `json:"description,omitempty"`
	OperationID  string                   `json:"operationId,omitempty"`
	Deprecated   bool                     `json:"deprecated,omitempty"`
	Security     []model.Requirement      `json:"security,omitempty"`
	Parameters   []parameterView          `json:"parameters"`
	RequestBody  []mediaView              `json:"requestBody,omitempty"`
	BodyRequired bool                     `json:"bodyRequired,omitempty"`
	Responses    []responseView           `json:"responses"`
	Warnings     []string                 `json:"warnings,omitempty"`
	BaseURL      string                   `json:"baseUrl"`
	Cached       *model.CachedInteraction `json:"cached,omitempty"`
	Running      bool                     `json:"running,omitempty"`
}

// expandOptions reads toggled tree paths from the "expand" and "collapse"
// query values. "expandAll=1" opens everything.
func expandOptions(r *http.Request) schema.RenderOptions {
	opts := schema.RenderOptions{Expand: schema.ExpandState{}, ExpandAll: r.URL.Query().Get("expandAll") == "1"}
	for _, p := range r.URL.Query()["expand"] {
		opts.Expand[p] = true
	}
	for _, p := range r.URL.Query()["collapse"] {
		opts.Expand[p] = false
	}
	return opts
}

func (s *Server) lookup(w http.ResponseWriter, cur *session.Session, method, path string) *openapi.Operation {
	op, err := cur.Select(method, path)
	if err != nil {
		s.fail(w, http.StatusNotFound, err)
		return nil
	}
	return op
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	cur := s.current(w)
	if cur == nil {
		return
	}
	q := r.URL.Query()
	op := s.lookup(w, cur, q.Get("method"), q.Get("path"))
	if op == nil {
		return
	}

	opts := expandOptions(r)
	res := cur.Resolver
	view := operationView{
		Key:          op.Key(),
		Method:       op.Method,
		Path:         op.Path,
		Summary:      op.Summary,
		Description:  op.Description,
		OperationID:  op.OperationID,
		Deprecated:   op.Deprecated,
		Security:     op.Security,
		Parameters:   []parameterView{},
		BodyRequired: op.BodyRequired,
		Responses:    []responseView{},
		Warnings:     op.Warnings,
		BaseURL:      cur.BaseURL,
		Running:      cur.Executor.Running(op.Key()),
	}
	for _, p := range op.Parameters {
		view.Parameters = append(view.Parameters, parameterView{
			Name:        p.Name,
			In:          p.In,
			Required:    p.Required,
			Description: p.Description,
			Deprecated:  p.Deprecated,
			Schema:      res.Render(p.Schema, p.Pointer, opts),
			Example:     p.Example,
		})
	}
	for _, mt := range op.RequestBody {
		view.RequestBody = append(view.RequestBody, s.mediaView(cur, mt, opts, true))
	}
	for _, resp := range op.Responses {
		rv := responseView{Status: resp.Status, Description: resp.Description}
		for _, mt := range resp.Content {
			rv.Content = append(rv.Content, s.mediaView(cur, mt, opts, false))
		}
		view.Responses = append(view.Responses, rv)
	}
	if rec, ok := s.cache.Get(op.Key()); ok {
		view.Cached = rec
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) mediaView(cur *session.Session, mt openapi.MediaType, opts schema.RenderOptions, request bool) mediaView {
	v := mediaView{ContentType: mt.ContentType, Schema: cur.Resolver.Render(mt.Schema, mt.Pointer, opts)}
	if mt.Example != nil {
		if b, err := json.MarshalIndent(mt.Example, "", "  "); err == nil {
			v.Example = string(b)
		}
	} else if ex, err := cur.Resolver.ExampleJSON(mt.Schema, mt.Pointer); err == nil {
		v.Example = ex
	}
	if request && httpclient.IsForm(mt.ContentType) {
		v.Fields = cur.Builder().FormFields(mt)
	}
	return v
}

type executeRequest struct {
	Method string           `json:"method"`
	Path   string           `json:"path"`
	Input  httpclient.Input `json:"input"`
}

type executeReply struct {
	State     string                `json:"state"`
	Execution *httpclient.Execution `json:"execution"`
	Error     string                `json:"error,omitempty"`
	Fields    []validate.FieldError `json:"fields,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	cur := s.current(w)
	if cur == nil {
		return
	}
	var req executeRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	op := s.lookup(w, cur, req.Method, req.Path)
	if op == nil {
		return
	}

	ex, err := cur.Executor.Execute(r.Context(), op, req.Input)
	if errors.Is(err, httpclient.ErrInFlight) {
		s.fail(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	reply := executeReply{State: ex.State.String(), Execution: ex}
	if ex.Err != nil {
		reply.Error = ex.Err.Error()
		var verr *validate.Errors
		if errors.As(ex.Err, &verr) {
			reply.Fields = verr.Fields
		}
	}
	status := http.StatusOK
	if ex.State == httpclient.StateValidationFailed {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, reply)
}

type generateRequest struct {
	Method      string         `json:"method"`
	Path        string         `json:"path"`
	ContentType string         `json:"contentType"`
	Context     string         `json:"context"`
	Pinned      map[string]any `json:"pinned"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	cur := s.current(w)
	if cur == nil {
		return
	}
	var req generateRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	op := s.lookup(w, cur, req.Method, req.Path)
	if op == nil {
		return
	}
	ct := req.ContentType
	if ct == "" && len(op.RequestBody) > 0 {
		ct = op.RequestBody[0].ContentType
	}
	mt, ok := op.MediaType(ct)
	if !ok {
		s.fail(w, http.StatusBadRequest, errors.New("operation has no request body of type "+ct))
		return
	}

	example := s.gen.Example(r.Context(), cur.Resolver, mt.Schema, mt.Pointer, req.Context, req.Pinned)
	b, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"example": string(b), "generated": s.gen.Enabled()})
}

func (s *Server) handleCacheGet(w http.ResponseWriter, r *http.Request) {
	key := model.OperationKey(r.URL.Query().Get("method"), r.URL.Query().Get("path"))
	rec, ok := s.cache.Get(key)
	if !ok {
		s.writeJSON(w, http.StatusOK, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// cacheEdit saves the fields a user edited without executing. Absent fields
// are left as they are; a content type without a body is a form body.
type cacheEdit struct {
	Method        string            `json:"method"`
	Path          string            `json:"path"`
	Parameters    map[string]string `json:"parameters,omitempty"`
	RequestBody   *string           `json:"requestBody,omitempty"`
	ContentType   string            `json:"contentType,omitempty"`
	CustomHeaders []model.Header    `json:"customHeaders,omitempty"`
}

func (s *Server) handleCachePut(w http.ResponseWriter, r *http.Request) {
	var edit cacheEdit
	if err := decode(w, r, &edit); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	key := model.OperationKey(edit.Method, edit.Path)
	if edit.Parameters != nil {
		s.cache.SaveParameters(key, edit.Parameters)
	}
	if edit.RequestBody != nil || edit.ContentType != "" {
		s.cache.SaveBody(key, edit.RequestBody, edit.ContentType)
	}
	if edit.CustomHeaders != nil {
		s.cache.SaveHeaders(key, edit.CustomHeaders)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.cache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

type credentialView struct {
	Scheme      string           `json:"scheme"`
	Type        model.SchemeType `json:"type"`
	Description string           `json:"description,omitempty"`
	Set         bool             `json:"set"`
	Masked      string           `json:"masked,omitempty"`
	Token       *store.TokenInfo `json:"token,omitempty"`
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	cur := s.current(w)
	if cur == nil {
		return
	}
	out := []credentialView{}
	for _, name := range sortedSchemes(cur.Catalog.Schemes) {
		scheme := cur.Catalog.Schemes[name]
		v := credentialView{Scheme: name, Type: scheme.Type, Description: scheme.Description}
		if value, ok := s.creds.Get(name); ok {
			v.Set = true
			v.Masked = store.Mask(value)
			if info, ok := store.DescribeToken(value, time.Now()); ok {
				v.Token = &info
			}
		}
		out = append(out, v)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCredentialSet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := decode(w, r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	s.creds.Set(r.PathValue("scheme"), body.Value)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCredentialDelete(w http.ResponseWriter, r *http.Request) {
	s.creds.Remove(r.PathValue("scheme"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Theme string `json:"theme"`
	}
	if err := decode(w, r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	theme := strings.ToLower(body.Theme)
	if theme != store.ThemeDark && theme != store.ThemeLight {
		s.fail(w, http.StatusBadRequest, errors.New("theme must be dark or light"))
		return
	}
	if s.ui != nil {
		s.ui.SetTheme(theme)
	}
	w.WriteHeader(http.StatusNoContent)
}
