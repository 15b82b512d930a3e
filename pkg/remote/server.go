package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	comms "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/propagation"

	"github.com/morezero/resource-fetcher/pkg/commsutil"
	"github.com/morezero/resource-fetcher/pkg/dispatcher"
	"github.com/morezero/resource-fetcher/pkg/registry"
)

const serverLogPrefix = "remote:server"

// ServeOptions configures Serve. Zero values use defaults.
type ServeOptions struct {
	Subject string
	Queue   string
	Timeout time.Duration
}

// Server answers RemoteRequests for one local handler.
type Server struct {
	nc         *comms.Conn
	d          *dispatcher.Dispatcher
	subject    string
	timeout    time.Duration
	propagator propagation.TextMapPropagator
	sub        *comms.Subscription
}

// Serve exposes h on a COMMS subject so that remote Handlers in other processes can call it.
// Extra dispatcher options (logging, metrics, events) apply to the served calls.
func Serve(nc *comms.Conn, h registry.Handler, opts ServeOptions, dopts ...dispatcher.Option) (*Server, error) {
	reg := registry.NewRegistry()
	if err := reg.Register(h); err != nil {
		return nil, err
	}
	if opts.Subject == "" {
		opts.Subject = commsutil.BuildHandlerSubject("", h.Name())
	}
	if opts.Queue == "" {
		opts.Queue = commsutil.QueueGroup
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	s := &Server{
		nc:         nc,
		d:          dispatcher.NewDispatcher(reg, dopts...),
		subject:    opts.Subject,
		timeout:    opts.Timeout,
		propagator: newPropagator(),
	}
	sub, err := nc.QueueSubscribe(opts.Subject, opts.Queue, func(msg *comms.Msg) {
		go s.serve(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", serverLogPrefix, opts.Subject, err)
	}
	s.sub = sub
	slog.Info(fmt.Sprintf("%s - Serving %s on %s", serverLogPrefix, h.Name(), opts.Subject))
	return s, nil
}

// Subject returns the subject the server listens on.
func (s *Server) Subject() string { return s.subject }

// Close drains the subscription.
func (s *Server) Close() error {
	return s.sub.Drain()
}

func (s *Server) serve(msg *comms.Msg) {
	ctx := context.Background()
	if msg.Header != nil {
		ctx = s.propagator.Extract(ctx, propagation.HeaderCarrier(msg.Header))
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply := s.handle(ctx, msg.Data)
	data, err := commsutil.EncodePayload(reply)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode reply: %v", serverLogPrefix, err))
		data, _ = commsutil.EncodePayload(&RemoteReply{Error: dispatcher.NewErrorDetail(
			registry.NewHandlerError(http.StatusInternalServerError, "failed to encode reply"), http.StatusInternalServerError)})
	}
	if err := msg.Respond(data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to respond: %v", serverLogPrefix, err))
	}
}

func (s *Server) handle(ctx context.Context, data []byte) *RemoteReply {
	var req RemoteRequest
	if err := commsutil.DecodePayload(data, &req); err != nil {
		return errorReply(registry.NewHandlerError(http.StatusBadRequest, "invalid request"))
	}

	res, err := s.d.Dispatch(ctx, &dispatcher.Call{
		Resource:  req.Resource,
		Operation: req.Operation,
		Params:    req.Params,
		Body:      req.Body,
		Config:    req.Config,
	}).Wait(ctx)
	if err != nil {
		return errorReply(registry.NewHandlerError(http.StatusGatewayTimeout, "request timed out"))
	}
	if res.Err != nil {
		return errorReply(res.Err)
	}
	return &RemoteReply{Data: res.Data, Meta: res.Meta}
}

func errorReply(err error) *RemoteReply {
	return &RemoteReply{Error: dispatcher.NewErrorDetail(err, http.StatusBadRequest)}
}
