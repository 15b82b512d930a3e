// Package registry holds the handler SPI and the table that maps resource names to handlers.
package registry

import (
	"context"
	"fmt"
	"strings"
)

// Operation is one of the four CRUD operations a handler serves.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"

	// opDeleteAlias is what older clients send for delete.
	opDeleteAlias = "del"
)

// Operations lists every supported operation in CRUD order.
var Operations = []Operation{OpCreate, OpRead, OpUpdate, OpDelete}

// ParseOperation validates s against the operation enumeration. Matching is exact.
func ParseOperation(s string) (Operation, error) {
	switch s {
	case string(OpRead):
		return OpRead, nil
	case string(OpCreate):
		return OpCreate, nil
	case string(OpUpdate):
		return OpUpdate, nil
	case string(OpDelete), opDeleteAlias:
		return OpDelete, nil
	default:
		return "", NewUnsupportedOperationError(s)
	}
}

// HasBody reports whether the operation carries a request body.
func (o Operation) HasBody() bool {
	return o == OpCreate || o == OpUpdate
}

func (o Operation) String() string { return string(o) }

// Params identify the resource; they merge matrix and query parameters on the HTTP path.
type Params map[string]any

// Config holds per-call options.
type Config map[string]any

// Body is the resource data carried by create and update.
type Body map[string]any

// Meta is optional completion metadata. StatusCode and Headers shape the HTTP response.
type Meta struct {
	StatusCode int               `json:"statusCode,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// ReadRequest is the argument set for read and delete.
type ReadRequest struct {
	Resource string
	Params   Params
	Config   Config
}

// WriteRequest is the argument set for create and update.
type WriteRequest struct {
	Resource string
	Params   Params
	Body     Body
	Config   Config
}

// Handler serves every operation for one resource family. Each method must settle done
// exactly once, synchronously or from another goroutine.
type Handler interface {
	Name() string
	Read(ctx context.Context, req *ReadRequest, done *Completion)
	Create(ctx context.Context, req *WriteRequest, done *Completion)
	Update(ctx context.Context, req *WriteRequest, done *Completion)
	Delete(ctx context.Context, req *ReadRequest, done *Completion)
}

// Versioned is implemented by handlers that declare a semantic version. An empty version
// counts as unversioned.
type Versioned interface {
	Version() string
}

// Remote is implemented by handlers that forward calls out of process.
type Remote interface {
	Remote() bool
}

// HandlerInfo describes a registered handler.
type HandlerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Remote  bool   `json:"remote"`
}

// HandlerKey returns the registry key of a resource name: the text before the first dot.
func HandlerKey(resource string) string {
	if idx := strings.Index(resource, "."); idx >= 0 {
		return resource[:idx]
	}
	return resource
}

// String renders a request for log lines.
func (r *ReadRequest) String() string {
	return fmt.Sprintf("resource=%s params=%d", r.Resource, len(r.Params))
}

// String renders a request for log lines.
func (r *WriteRequest) String() string {
	return fmt.Sprintf("resource=%s params=%d body=%d", r.Resource, len(r.Params), len(r.Body))
}
