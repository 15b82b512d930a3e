// Package dispatcher normalizes resource calls and routes them to registered handlers.
package dispatcher

import (
	"errors"

	"github.com/google/uuid"

	"github.com/morezero/resource-fetcher/pkg/registry"
)

// Request is the JSON envelope of one call as it arrives over HTTP or COMMS.
type Request struct {
	Resource  string          `json:"resource"`
	Operation string          `json:"operation"`
	Params    registry.Params `json:"params,omitempty"`
	Body      registry.Body   `json:"body,omitempty"`
	Config    registry.Config `json:"config,omitempty"`
}

// Call converts the envelope into a Call with a fresh completion.
func (r *Request) Call() *Call {
	return &Call{
		Resource:  r.Resource,
		Operation: r.Operation,
		Params:    r.Params,
		Body:      r.Body,
		Config:    r.Config,
	}
}

// ErrorDetail is the wire form of a failed call.
type ErrorDetail struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
}

// NewErrorDetail renders err for the wire. def is the status used when err carries none.
func NewErrorDetail(err error, def int) *ErrorDetail {
	detail := &ErrorDetail{
		StatusCode: registry.StatusCode(err, def),
		Message:    registry.Message(err),
	}
	var regErr *registry.RegistryError
	if errors.As(err, &regErr) {
		detail.Code = regErr.Code
	}
	return detail
}

// Err rebuilds a registry error from the wire form.
func (e *ErrorDetail) Err() error {
	code := e.Code
	if code == "" {
		code = registry.CodeHandler
	}
	return &registry.RegistryError{Code: code, Message: e.Message, StatusCode: e.StatusCode}
}

// Call is one normalized invocation. Operation is validated at dispatch time; nil maps are
// replaced with empty ones and a missing Done gets a fresh completion.
type Call struct {
	ID        string
	Resource  string
	Operation string
	Params    registry.Params
	Body      registry.Body
	Config    registry.Config
	Done      *registry.Completion
}

func (c *Call) normalize() {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Params == nil {
		c.Params = registry.Params{}
	}
	if c.Config == nil {
		c.Config = registry.Config{}
	}
	if c.Done == nil {
		c.Done = registry.NewCompletion()
	}
}
