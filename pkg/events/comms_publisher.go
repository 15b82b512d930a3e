package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/resource-fetcher/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// GlobalChangeSubject overrides the global change event subject (e.g. from FETCHER_CHANGE_EVENT_SUBJECT).
	GlobalChangeSubject string
	// ChangeSubjectPattern templates the per-change subject with {handler} and {operation}.
	ChangeSubjectPattern string
}

// CommsPublisher publishes resource change events to COMMS subjects.
type CommsPublisher struct {
	nc                  *comms.Conn
	globalChangeSubject string
	pattern             string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	p := &CommsPublisher{nc: nc, globalChangeSubject: commsutil.SubjectChangeEvent}
	if opts != nil {
		if opts.GlobalChangeSubject != "" {
			p.globalChangeSubject = opts.GlobalChangeSubject
		}
		p.pattern = opts.ChangeSubjectPattern
	}
	return p
}

// PublishChanged publishes a ResourceChangedEvent to both the granular
// (per handler and operation) and global change event subjects.
func (p *CommsPublisher) PublishChanged(_ context.Context, event *ResourceChangedEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	granularSubject := commsutil.ExpandChangeSubject(p.pattern, event.Handler, event.Operation)
	for _, subject := range []string{granularSubject, p.globalChangeSubject} {
		if err := p.nc.Publish(subject, data); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
			return fmt.Errorf("%s - publish %s: %w", commsPublisherLogPrefix, subject, err)
		}
	}

	slog.Debug(fmt.Sprintf("%s - Published change event for %s (%s)", commsPublisherLogPrefix, event.Resource, event.Operation))
	return nil
}
