// Package remote forwards resource calls to handlers running in other services over COMMS.
package remote

import (
	"github.com/morezero/resource-fetcher/pkg/dispatcher"
	"github.com/morezero/resource-fetcher/pkg/registry"
)

// RemoteRequest is sent to a remote handler's subject.
type RemoteRequest struct {
	Operation string          `json:"operation"`
	Resource  string          `json:"resource"`
	Params    registry.Params `json:"params,omitempty"`
	Body      registry.Body   `json:"body,omitempty"`
	Config    registry.Config `json:"config,omitempty"`
}

// RemoteReply is what a remote handler answers with: Error, or Data with optional Meta.
type RemoteReply struct {
	Data  any                     `json:"data,omitempty"`
	Meta  *registry.Meta          `json:"meta,omitempty"`
	Error *dispatcher.ErrorDetail `json:"error,omitempty"`
}
