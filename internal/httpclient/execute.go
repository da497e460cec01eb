package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"swashark/internal/model"
	"swashark/internal/openapi"
	"swashark/internal/store"
)

// ErrInFlight is returned when the same operation is already executing.
var ErrInFlight = errors.New("an execution of this operation is already in progress")

// State is a step of one execution. Executions only move forward.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateValidationFailed
	StateBuilding
	StateSending
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateValidationFailed:
		return "validation failed"
	case StateBuilding:
		return "building"
	case StateSending:
		return "sending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

func (s State) Terminal() bool {
	return s == StateValidationFailed || s == StateSucceeded || s == StateFailed
}

type Response struct {
	Status      int               `json:"status"`
	StatusText  string            `json:"statusText"`
	Duration    time.Duration     `json:"-"`
	DurationMs  int64             `json:"durationMs"`
	ContentType string            `json:"contentType,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	// Body is pretty-printed when IsJSON.
	Body   string `json:"body"`
	IsJSON bool   `json:"isJson"`
}

// Execution is the outcome of one run through the state machine. Err is a
// *validate.Errors after StateValidationFailed and a *TransportError (or a
// build error) after StateFailed.
type Execution struct {
	Key      string    `json:"key"`
	State    State     `json:"-"`
	Request  Request   `json:"request"`
	Curl     string    `json:"curl,omitempty"`
	Response *Response `json:"response,omitempty"`
	Err      error     `json:"-"`
}

// Executor runs executions and records them in the session cache.
type Executor struct {
	builder   *Builder
	transport Transport
	cache     *store.SessionCache
	log       zerolog.Logger

	// OnState, when set, observes every state transition.
	OnState func(key string, s State)

	mu       sync.Mutex
	inflight map[string]bool
}

func NewExecutor(builder *Builder, transport Transport, cache *store.SessionCache, log zerolog.Logger) *Executor {
	return &Executor{
		builder:   builder,
		transport: transport,
		cache:     cache,
		log:       log,
		inflight:  map[string]bool{},
	}
}

func (e *Executor) Builder() *Builder { return e.builder }

// Running reports whether op is currently executing.
func (e *Executor) Running(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight[key]
}

// Execute validates, builds and sends one request for op. The returned
// error is only ErrInFlight; every other outcome is described by the
// Execution.
func (e *Executor) Execute(ctx context.Context, op *openapi.Operation, in Input) (*Execution, error) {
	key := op.Key()
	e.mu.Lock()
	if e.inflight[key] {
		e.mu.Unlock()
		return nil, ErrInFlight
	}
	e.inflight[key] = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.inflight, key)
		e.mu.Unlock()
	}()

	ex := &Execution{Key: key, State: StateIdle}
	log := e.log.With().Str("op", key).Logger()

	e.transition(ex, StateValidating)
	if err := e.builder.Validate(op, in); err != nil {
		ex.Err = err
		e.transition(ex, StateValidationFailed)
		log.Debug().Err(err).Msg("validation failed")
		return ex, nil
	}

	e.transition(ex, StateBuilding)
	req, err := e.builder.Build(op, in)
	if err != nil {
		ex.Err = err
		e.transition(ex, StateFailed)
		log.Warn().Err(err).Msg("build failed")
		return ex, nil
	}
	ex.Request = req
	ex.Curl = Curl(req)

	e.transition(ex, StateSending)
	start := time.Now()
	raw, err := e.transport.Do(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		ex.Err = &TransportError{Err: err}
		e.transition(ex, StateFailed)
		log.Warn().Err(err).Dur("elapsed", elapsed).Msg("request failed")
		e.record(key, in, nil)
		return ex, nil
	}

	ex.Response = classify(raw, elapsed)
	e.transition(ex, StateSucceeded)
	log.Info().Int("status", raw.Status).Dur("elapsed", elapsed).Msg("request completed")
	e.record(key, in, &model.CachedResponse{
		Status:     ex.Response.Status,
		StatusText: ex.Response.StatusText,
		DurationMs: ex.Response.DurationMs,
		Body:       ex.Response.Body,
		Curl:       ex.Curl,
	})
	return ex, nil
}

func (e *Executor) transition(ex *Execution, s State) {
	ex.State = s
	if s.Terminal() {
		e.log.Debug().Str("op", ex.Key).Stringer("state", s).Msg("execution finished")
	}
	if e.OnState != nil {
		e.OnState(ex.Key, s)
	}
}

func (e *Executor) record(key string, in Input, resp *model.CachedResponse) {
	if e.cache == nil {
		return
	}
	var body *string
	if !IsForm(in.ContentType) {
		b := in.Body
		body = &b
	}
	e.cache.RecordExecution(key, in.Params, body, in.ContentType, resp)
}

// classify turns a raw response into a displayable one. Bodies are treated
// as JSON when the content type says so or when they parse as JSON anyway.
func classify(raw RawResponse, elapsed time.Duration) *Response {
	resp := &Response{
		Status:      raw.Status,
		StatusText:  raw.StatusText,
		Duration:    elapsed,
		DurationMs:  elapsed.Milliseconds(),
		ContentType: raw.Headers.Get("Content-Type"),
		Headers:     map[string]string{},
		Body:        string(raw.Body),
	}
	for k := range raw.Headers {
		resp.Headers[strings.ToLower(k)] = raw.Headers.Get(k)
	}

	trimmed := bytes.TrimSpace(raw.Body)
	if len(trimmed) == 0 {
		return resp
	}
	if IsJSON(resp.ContentType) || json.Valid(trimmed) {
		var out bytes.Buffer
		if err := json.Indent(&out, trimmed, "", "  "); err == nil {
			resp.Body = out.String()
			resp.IsJSON = true
		}
	}
	return resp
}
