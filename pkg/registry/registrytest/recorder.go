// Package registrytest provides a recording handler for tests of code built on the registry.
package registrytest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/morezero/resource-fetcher/pkg/registry"
)

// metaPrefix marks params that the echo responder turns into completion meta.
const metaPrefix = "meta."

// Invocation is one call received by a Recorder.
type Invocation struct {
	Ctx       context.Context
	Operation registry.Operation
	Resource  string
	Params    registry.Params
	Body      registry.Body
	Config    registry.Config
}

// Echo is the payload the default responder resolves with.
type Echo struct {
	Operation string          `json:"operation"`
	Resource  string          `json:"resource"`
	Params    registry.Params `json:"params"`
	Body      registry.Body   `json:"body,omitempty"`
	Config    registry.Config `json:"config"`
}

// Responder settles the completion for an invocation.
type Responder func(inv Invocation, done *registry.Completion)

// Recorder is a registry.Handler that records every invocation and settles through a
// Responder. The default responder echoes the call back.
type Recorder struct {
	name    string
	version string
	respond Responder

	mu    sync.Mutex
	calls []Invocation
}

// NewRecorder creates a Recorder registered under name.
func NewRecorder(name string) *Recorder {
	return &Recorder{name: name, respond: EchoResponder}
}

// WithVersion sets the version the Recorder declares.
func (r *Recorder) WithVersion(v string) *Recorder {
	r.version = v
	return r
}

// WithResponder replaces the default echo responder.
func (r *Recorder) WithResponder(fn Responder) *Recorder {
	r.respond = fn
	return r
}

func (r *Recorder) Name() string    { return r.name }
func (r *Recorder) Version() string { return r.version }

func (r *Recorder) Read(ctx context.Context, req *registry.ReadRequest, done *registry.Completion) {
	r.handle(Invocation{Ctx: ctx, Operation: registry.OpRead, Resource: req.Resource, Params: req.Params, Config: req.Config}, done)
}

func (r *Recorder) Create(ctx context.Context, req *registry.WriteRequest, done *registry.Completion) {
	r.handle(Invocation{Ctx: ctx, Operation: registry.OpCreate, Resource: req.Resource, Params: req.Params, Body: req.Body, Config: req.Config}, done)
}

func (r *Recorder) Update(ctx context.Context, req *registry.WriteRequest, done *registry.Completion) {
	r.handle(Invocation{Ctx: ctx, Operation: registry.OpUpdate, Resource: req.Resource, Params: req.Params, Body: req.Body, Config: req.Config}, done)
}

func (r *Recorder) Delete(ctx context.Context, req *registry.ReadRequest, done *registry.Completion) {
	r.handle(Invocation{Ctx: ctx, Operation: registry.OpDelete, Resource: req.Resource, Params: req.Params, Config: req.Config}, done)
}

func (r *Recorder) handle(inv Invocation, done *registry.Completion) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	respond := r.respond
	r.mu.Unlock()
	respond(inv, done)
}

// Calls returns a copy of the recorded invocations.
func (r *Recorder) Calls() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Invocation(nil), r.calls...)
}

// Count returns the number of recorded invocations.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Last returns the most recent invocation.
func (r *Recorder) Last() (Invocation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return Invocation{}, false
	}
	return r.calls[len(r.calls)-1], true
}

// EchoResponder resolves with an Echo of the call and meta built from "meta." params:
// meta.statusCode sets the status and meta.headers.<Name> sets a header.
func EchoResponder(inv Invocation, done *registry.Completion) {
	_ = done.Resolve(Echo{
		Operation: inv.Operation.String(),
		Resource:  inv.Resource,
		Params:    inv.Params,
		Body:      inv.Body,
		Config:    inv.Config,
	}, MetaFromParams(inv.Params))
}

// Resolve returns a Responder that resolves with data and meta.
func Resolve(data any, meta *registry.Meta) Responder {
	return func(_ Invocation, done *registry.Completion) {
		_ = done.Resolve(data, meta)
	}
}

// Reject returns a Responder that rejects with err.
func Reject(err error) Responder {
	return func(_ Invocation, done *registry.Completion) {
		_ = done.Reject(err)
	}
}

// Never returns a Responder that leaves the completion pending.
func Never() Responder {
	return func(Invocation, *registry.Completion) {}
}

// MetaFromParams extracts completion meta from "meta." params, or nil when there are none.
func MetaFromParams(params registry.Params) *registry.Meta {
	var meta *registry.Meta
	for k, v := range params {
		if !strings.HasPrefix(k, metaPrefix) {
			continue
		}
		if meta == nil {
			meta = &registry.Meta{}
		}
		key := strings.TrimPrefix(k, metaPrefix)
		switch {
		case key == "statusCode":
			meta.StatusCode = toInt(v)
		case strings.HasPrefix(key, "headers."):
			if meta.Headers == nil {
				meta.Headers = map[string]string{}
			}
			meta.Headers[strings.TrimPrefix(key, "headers.")] = fmt.Sprint(v)
		}
	}
	return meta
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}
