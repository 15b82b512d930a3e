package dispatcher

import (
	"context"

	"github.com/morezero/resource-fetcher/pkg/registry"
)

// Fetcher is the programmatic CRUD client. Each method dispatches one call and returns its
// completion; use Completion.Wait to block for the result.
type Fetcher struct {
	d   *Dispatcher
	ctx context.Context
}

// CallOption adjusts a call built by Fetcher.
type CallOption func(*Call)

// WithConfig sets the per-call config.
func WithConfig(cfg registry.Config) CallOption {
	return func(c *Call) {
		c.Config = cfg
	}
}

// WithCompletion settles into done instead of a fresh completion.
func WithCompletion(done *registry.Completion) CallOption {
	return func(c *Call) {
		c.Done = done
	}
}

// Fetcher returns a client whose calls are dispatched with ctx.
func (d *Dispatcher) Fetcher(ctx context.Context) *Fetcher {
	return &Fetcher{d: d, ctx: ctx}
}

// Read fetches resource.
func (f *Fetcher) Read(resource string, params registry.Params, opts ...CallOption) *registry.Completion {
	return f.call(registry.OpRead, resource, params, nil, opts)
}

// Create creates resource from body.
func (f *Fetcher) Create(resource string, params registry.Params, body registry.Body, opts ...CallOption) *registry.Completion {
	return f.call(registry.OpCreate, resource, params, body, opts)
}

// Update updates resource with body.
func (f *Fetcher) Update(resource string, params registry.Params, body registry.Body, opts ...CallOption) *registry.Completion {
	return f.call(registry.OpUpdate, resource, params, body, opts)
}

// Delete deletes resource.
func (f *Fetcher) Delete(resource string, params registry.Params, opts ...CallOption) *registry.Completion {
	return f.call(registry.OpDelete, resource, params, nil, opts)
}

func (f *Fetcher) call(op registry.Operation, resource string, params registry.Params, body registry.Body, opts []CallOption) *registry.Completion {
	call := &Call{Resource: resource, Operation: op.String(), Params: params, Body: body}
	for _, opt := range opts {
		opt(call)
	}
	return f.d.Dispatch(f.ctx, call)
}
