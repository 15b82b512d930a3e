// Package adapter exposes the dispatcher over HTTP and COMMS.
package adapter

import (
	"net/http"

	"github.com/morezero/resource-fetcher/pkg/dispatcher"
	"github.com/morezero/resource-fetcher/pkg/registry"
)

// DefaultGUID is the only batch key that is processed.
const DefaultGUID = "g0"

// BatchRequest is the body of a non-GET call: keyed requests, of which only g0 is served.
type BatchRequest struct {
	Requests map[string]*dispatcher.Request `json:"requests"`
}

// Single returns the g0 request. A missing or empty batch is a 400.
func (b *BatchRequest) Single() (*dispatcher.Request, error) {
	if b == nil || len(b.Requests) == 0 {
		return nil, registry.NewHandlerError(http.StatusBadRequest, "no requests")
	}
	req, ok := b.Requests[DefaultGUID]
	if !ok || req == nil {
		return nil, registry.NewHandlerError(http.StatusBadRequest, "missing request "+DefaultGUID)
	}
	return req, nil
}

// BatchResult is the payload of one served batch key.
type BatchResult struct {
	Data any            `json:"data"`
	Meta *registry.Meta `json:"meta,omitempty"`
}

// batchCall turns the g0 request into a call; the body defaults to an empty map.
func batchCall(req *dispatcher.Request) *dispatcher.Call {
	call := req.Call()
	if call.Body == nil {
		call.Body = registry.Body{}
	}
	return call
}
