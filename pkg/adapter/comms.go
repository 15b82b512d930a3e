package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/resource-fetcher/pkg/commsutil"
	"github.com/morezero/resource-fetcher/pkg/dispatcher"
	"github.com/morezero/resource-fetcher/pkg/registry"
)

const commsLogPrefix = "adapter:comms"

// CommsOptions configures CommsAdapter. Zero values use defaults.
type CommsOptions struct {
	Subject string
	Queue   string
	Timeout time.Duration
}

// CommsResponse is the reply to a batch request received over COMMS.
type CommsResponse map[string]any

// CommsAdapter serves batch requests received on a COMMS subject.
type CommsAdapter struct {
	nc      *comms.Conn
	d       *dispatcher.Dispatcher
	subject string
	queue   string
	timeout time.Duration
	sub     *comms.Subscription
}

// NewCommsAdapter creates a CommsAdapter; call Start to subscribe.
func NewCommsAdapter(nc *comms.Conn, d *dispatcher.Dispatcher, opts CommsOptions) *CommsAdapter {
	if opts.Subject == "" {
		opts.Subject = commsutil.SubjectFetcher
	}
	if opts.Queue == "" {
		opts.Queue = commsutil.QueueGroup
	}
	return &CommsAdapter{nc: nc, d: d, subject: opts.Subject, queue: opts.Queue, timeout: opts.Timeout}
}

// Subject returns the subject the adapter listens on.
func (a *CommsAdapter) Subject() string {
	return a.subject
}

// Start subscribes to the fetcher subject in the adapter's queue group.
func (a *CommsAdapter) Start() error {
	sub, err := a.nc.QueueSubscribe(a.subject, a.queue, func(msg *comms.Msg) {
		go a.serve(msg)
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", commsLogPrefix, a.subject, err)
	}
	a.sub = sub
	slog.Info(fmt.Sprintf("%s - Subscribed to %s (queue %s)", commsLogPrefix, a.subject, a.queue))
	return nil
}

// Stop drains the subscription.
func (a *CommsAdapter) Stop() error {
	if a.sub == nil {
		return nil
	}
	return a.sub.Drain()
}

func (a *CommsAdapter) serve(msg *comms.Msg) {
	a.respond(msg, a.handle(msg.Data))
}

// handle decodes one batch envelope, dispatches g0 and waits for the result.
func (a *CommsAdapter) handle(data []byte) CommsResponse {
	var batch BatchRequest
	if err := commsutil.DecodePayload(data, &batch); err != nil {
		slog.Debug(fmt.Sprintf("%s - invalid batch payload: %v", commsLogPrefix, err))
		return errorResponse(registry.NewHandlerError(http.StatusBadRequest, "invalid request"))
	}
	req, err := batch.Single()
	if err != nil {
		return errorResponse(err)
	}

	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	call := batchCall(req)
	res, err := a.d.Dispatch(ctx, call).Wait(ctx)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - %s %s timed out after %s", commsLogPrefix, call.Operation, call.Resource, a.timeout))
		return errorResponse(registry.NewHandlerError(http.StatusGatewayTimeout, "request timed out"))
	}
	if res.Err != nil {
		return errorResponse(res.Err)
	}
	return CommsResponse{DefaultGUID: BatchResult{Data: res.Data, Meta: res.Meta}}
}

func (a *CommsAdapter) respond(msg *comms.Msg, resp CommsResponse) {
	if msg.Reply == "" {
		return
	}
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", commsLogPrefix, err))
		data, _ = commsutil.EncodePayload(errorResponse(registry.NewHandlerError(http.StatusInternalServerError, "failed to encode response")))
	}
	if err := msg.Respond(data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to respond: %v", commsLogPrefix, err))
	}
}

func errorResponse(err error) CommsResponse {
	return CommsResponse{"error": dispatcher.NewErrorDetail(err, http.StatusBadRequest)}
}
