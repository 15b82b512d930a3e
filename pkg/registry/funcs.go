package registry

import (
	"context"
	"fmt"
	"net/http"
)

// ReadFunc serves read or delete.
type ReadFunc func(ctx context.Context, req *ReadRequest, done *Completion)

// WriteFunc serves create or update.
type WriteFunc func(ctx context.Context, req *WriteRequest, done *Completion)

// HandlerFuncs adapts plain functions to Handler. Operations left nil reject with 405.
type HandlerFuncs struct {
	HandlerName string
	HandlerVer  string
	ReadFn      ReadFunc
	CreateFn    WriteFunc
	UpdateFn    WriteFunc
	DeleteFn    ReadFunc
}

func (h *HandlerFuncs) Name() string { return h.HandlerName }

func (h *HandlerFuncs) Read(ctx context.Context, req *ReadRequest, done *Completion) {
	if h.ReadFn == nil {
		rejectNotAllowed(done, h.HandlerName, OpRead)
		return
	}
	h.ReadFn(ctx, req, done)
}

func (h *HandlerFuncs) Create(ctx context.Context, req *WriteRequest, done *Completion) {
	if h.CreateFn == nil {
		rejectNotAllowed(done, h.HandlerName, OpCreate)
		return
	}
	h.CreateFn(ctx, req, done)
}

func (h *HandlerFuncs) Update(ctx context.Context, req *WriteRequest, done *Completion) {
	if h.UpdateFn == nil {
		rejectNotAllowed(done, h.HandlerName, OpUpdate)
		return
	}
	h.UpdateFn(ctx, req, done)
}

func (h *HandlerFuncs) Delete(ctx context.Context, req *ReadRequest, done *Completion) {
	if h.DeleteFn == nil {
		rejectNotAllowed(done, h.HandlerName, OpDelete)
		return
	}
	h.DeleteFn(ctx, req, done)
}

// Version returns HandlerVer; an empty version means the handler is unversioned.
func (h *HandlerFuncs) Version() string { return h.HandlerVer }

func rejectNotAllowed(done *Completion, name string, op Operation) {
	_ = done.Reject(NewHandlerError(http.StatusMethodNotAllowed,
		fmt.Sprintf("%s does not support %s", name, op)))
}
