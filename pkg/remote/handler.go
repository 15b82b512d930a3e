package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	comms "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/propagation"

	"github.com/morezero/resource-fetcher/pkg/commsutil"
	"github.com/morezero/resource-fetcher/pkg/registry"
)

const logPrefix = "remote:handler"

// DefaultTimeout bounds a forwarded call when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Options configures a remote Handler.
type Options struct {
	Name    string
	Subject string
	Version string
	Timeout time.Duration
	// Target is the name the remote side registered the handler under. Set it when Name
	// is an alias; resource keys are rewritten from Name to Target before forwarding.
	Target string
}

// Handler is a registry.Handler that forwards every operation to a remote service.
type Handler struct {
	nc         *comms.Conn
	name       string
	subject    string
	target     string
	version    string
	timeout    time.Duration
	propagator propagation.TextMapPropagator
}

// NewHandler creates a remote Handler. Subject defaults to fetcher.handler.<name>.
func NewHandler(nc *comms.Conn, opts Options) (*Handler, error) {
	if nc == nil {
		return nil, fmt.Errorf("%s - connection is nil", logPrefix)
	}
	if opts.Name == "" {
		return nil, registry.NewConfigurationError("remote handler has no name")
	}
	if opts.Target == "" {
		opts.Target = opts.Name
	}
	if opts.Subject == "" {
		opts.Subject = commsutil.BuildHandlerSubject("", opts.Target)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Handler{
		nc:         nc,
		name:       opts.Name,
		subject:    opts.Subject,
		target:     opts.Target,
		version:    opts.Version,
		timeout:    opts.Timeout,
		propagator: newPropagator(),
	}, nil
}

func (h *Handler) Name() string    { return h.name }
func (h *Handler) Version() string { return h.version }
func (h *Handler) Remote() bool    { return true }

// Subject returns the subject calls are forwarded to.
func (h *Handler) Subject() string { return h.subject }

func (h *Handler) Read(ctx context.Context, req *registry.ReadRequest, done *registry.Completion) {
	h.forward(ctx, &RemoteRequest{Operation: registry.OpRead.String(), Resource: h.targetResource(req.Resource), Params: req.Params, Config: req.Config}, done)
}

func (h *Handler) Create(ctx context.Context, req *registry.WriteRequest, done *registry.Completion) {
	h.forward(ctx, &RemoteRequest{Operation: registry.OpCreate.String(), Resource: h.targetResource(req.Resource), Params: req.Params, Body: req.Body, Config: req.Config}, done)
}

func (h *Handler) Update(ctx context.Context, req *registry.WriteRequest, done *registry.Completion) {
	h.forward(ctx, &RemoteRequest{Operation: registry.OpUpdate.String(), Resource: h.targetResource(req.Resource), Params: req.Params, Body: req.Body, Config: req.Config}, done)
}

func (h *Handler) Delete(ctx context.Context, req *registry.ReadRequest, done *registry.Completion) {
	h.forward(ctx, &RemoteRequest{Operation: registry.OpDelete.String(), Resource: h.targetResource(req.Resource), Params: req.Params, Config: req.Config}, done)
}

// targetResource swaps the alias key of resource for the target name.
func (h *Handler) targetResource(resource string) string {
	if h.target == h.name || registry.HandlerKey(resource) != h.name {
		return resource
	}
	return h.target + strings.TrimPrefix(resource, h.name)
}

// forward sends the request on its own goroutine and settles done with the reply.
func (h *Handler) forward(ctx context.Context, req *RemoteRequest, done *registry.Completion) {
	data, err := commsutil.EncodePayload(req)
	if err != nil {
		_ = done.Reject(registry.NewHandlerError(http.StatusBadRequest, "request is not serializable"))
		return
	}

	msg := comms.NewMsg(h.subject)
	msg.Data = data
	h.propagator.Inject(ctx, propagation.HeaderCarrier(msg.Header))

	go func() {
		reqCtx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()

		reply, err := h.nc.RequestMsgWithContext(reqCtx, msg)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - %s %s via %s failed: %v", logPrefix, req.Operation, req.Resource, h.subject, err))
			_ = done.Reject(transportError(err))
			return
		}

		var rr RemoteReply
		if err := commsutil.DecodePayload(reply.Data, &rr); err != nil {
			_ = done.Reject(registry.NewHandlerError(http.StatusBadGateway, "invalid reply from "+h.name))
			return
		}
		if rr.Error != nil {
			_ = done.Reject(rr.Error.Err())
			return
		}
		_ = done.Resolve(rr.Data, rr.Meta)
	}()
}

func transportError(err error) error {
	switch {
	case errors.Is(err, comms.ErrNoResponders):
		return registry.NewHandlerError(http.StatusServiceUnavailable, "handler unavailable")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, comms.ErrTimeout):
		return registry.NewHandlerError(http.StatusGatewayTimeout, "request timed out")
	default:
		return registry.NewHandlerError(http.StatusBadGateway, "remote call failed")
	}
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}
