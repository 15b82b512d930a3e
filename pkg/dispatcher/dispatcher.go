package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/morezero/resource-fetcher/pkg/events"
	"github.com/morezero/resource-fetcher/pkg/registry"
	"github.com/morezero/resource-fetcher/pkg/semver"
)

const logPrefix = "dispatcher:dispatch"

// ConfigHandlerVersion is the config key carrying a semver constraint the resolved handler
// must satisfy.
const ConfigHandlerVersion = "handlerVersion"

// Dispatcher routes calls to registry handlers and hands back their completions.
type Dispatcher struct {
	registry  *registry.Registry
	logger    *slog.Logger
	publisher events.EventPublisher
	inst      *instruments
}

// NewDispatcher creates a new Dispatcher over reg.
func NewDispatcher(reg *registry.Registry, opts ...Option) *Dispatcher {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	if o.publisher == nil {
		o.publisher = &events.NoOpPublisher{}
	}
	return &Dispatcher{
		registry:  reg,
		logger:    o.logger,
		publisher: o.publisher,
		inst:      newInstruments(o.meterProvider, o.tracerProvider),
	}
}

// Registry returns the handler table the dispatcher resolves against.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Dispatch resolves the handler for call and invokes the operation. It never blocks on the
// handler and never returns an error directly: unknown resources, unsupported operations and
// handler failures all settle the returned completion.
func (d *Dispatcher) Dispatch(ctx context.Context, call *Call) *registry.Completion {
	call.normalize()
	key := registry.HandlerKey(call.Resource)

	ctx, span := d.inst.startSpan(ctx, call, key)
	start := time.Now()
	call.Done.OnComplete(func(r registry.Result) {
		d.inst.record(ctx, span, call, key, start, r)
		d.settled(ctx, call, key, start, r)
	})

	d.logger.Debug(fmt.Sprintf("%s - id=%s operation=%s resource=%s", logPrefix, call.ID, call.Operation, call.Resource))

	h, err := d.registry.Resolve(key)
	if err != nil {
		_ = call.Done.Reject(err)
		return call.Done
	}

	op, err := registry.ParseOperation(call.Operation)
	if err != nil {
		_ = call.Done.Reject(err)
		return call.Done
	}

	if err := checkVersion(h, key, call.Config); err != nil {
		_ = call.Done.Reject(err)
		return call.Done
	}

	d.invoke(ctx, h, op, call)
	return call.Done
}

func (d *Dispatcher) invoke(ctx context.Context, h registry.Handler, op registry.Operation, call *Call) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error(fmt.Sprintf("%s - handler %s panicked on %s: %v", logPrefix, h.Name(), op, rec))
			_ = call.Done.Reject(registry.NewHandlerError(http.StatusInternalServerError,
				fmt.Sprintf("handler %s failed", h.Name())))
		}
	}()

	switch op {
	case registry.OpRead:
		h.Read(ctx, &registry.ReadRequest{Resource: call.Resource, Params: call.Params, Config: call.Config}, call.Done)
	case registry.OpDelete:
		h.Delete(ctx, &registry.ReadRequest{Resource: call.Resource, Params: call.Params, Config: call.Config}, call.Done)
	case registry.OpCreate, registry.OpUpdate:
		body := call.Body
		if body == nil {
			body = registry.Body{}
		}
		req := &registry.WriteRequest{Resource: call.Resource, Params: call.Params, Body: body, Config: call.Config}
		if op == registry.OpCreate {
			h.Create(ctx, req, call.Done)
		} else {
			h.Update(ctx, req, call.Done)
		}
	}
}

// settled logs the outcome and emits a change event for successful writes.
func (d *Dispatcher) settled(ctx context.Context, call *Call, key string, start time.Time, r registry.Result) {
	elapsed := time.Since(start)
	if r.Err != nil {
		d.logger.Debug(fmt.Sprintf("%s - id=%s resource=%s failed after %s: %v", logPrefix, call.ID, call.Resource, elapsed, r.Err))
		return
	}
	d.logger.Debug(fmt.Sprintf("%s - id=%s resource=%s completed in %s", logPrefix, call.ID, call.Resource, elapsed))

	op, err := registry.ParseOperation(call.Operation)
	if err != nil || op == registry.OpRead {
		return
	}
	event := &events.ResourceChangedEvent{
		ID:        call.ID,
		Handler:   key,
		Resource:  call.Resource,
		Operation: op.String(),
		Params:    call.Params,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := d.publisher.PublishChanged(context.WithoutCancel(ctx), event); err != nil {
		d.logger.Warn(fmt.Sprintf("%s - failed to publish change event for %s: %v", logPrefix, call.Resource, err))
	}
}

// checkVersion enforces the optional handlerVersion constraint in cfg.
func checkVersion(h registry.Handler, key string, cfg registry.Config) error {
	raw, ok := cfg[ConfigHandlerVersion]
	if !ok {
		return nil
	}
	constraint, ok := raw.(string)
	if !ok {
		return registry.NewHandlerError(http.StatusBadRequest, fmt.Sprintf("%s must be a string", ConfigHandlerVersion))
	}
	if constraint == "" {
		return nil
	}

	notFound := registry.NewNotFoundError(key)
	notFound.Message = fmt.Sprintf("Handler not found: %q satisfying %q", key, constraint)

	v, ok := h.(registry.Versioned)
	if !ok || v.Version() == "" {
		return notFound
	}
	match, err := semver.Satisfies(v.Version(), constraint)
	if err != nil {
		return registry.NewHandlerError(http.StatusBadRequest, fmt.Sprintf("invalid %s %q", ConfigHandlerVersion, constraint))
	}
	if !match {
		return notFound
	}
	return nil
}
