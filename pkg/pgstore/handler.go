// Package pgstore is a registry.Handler that keeps JSON documents in Postgres.
//
// Every resource under the handler's key shares one table; the full resource name is stored
// with each document, so "notes.personal" and "notes.work" are listed separately while both
// resolve to the "notes" handler.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/morezero/resource-fetcher/pkg/db"
	"github.com/morezero/resource-fetcher/pkg/registry"
)

const logPrefix = "pgstore:handler"

// Param and config keys understood by the handler.
const (
	ParamID       = "id"
	ParamLimit    = "limit"
	ParamOffset   = "offset"
	ConfigReplace = "replace"
)

// Store is the persistence the handler runs on. *db.Repository implements it.
type Store interface {
	GetDocument(ctx context.Context, handler, id string) (*db.Document, error)
	ListDocuments(ctx context.Context, params db.ListDocumentsParams) ([]db.Document, error)
	InsertDocument(ctx context.Context, params db.InsertDocumentParams) (*db.Document, error)
	UpdateDocument(ctx context.Context, params db.UpdateDocumentParams) (*db.Document, error)
	DeleteDocument(ctx context.Context, handler, id string) (*db.Document, error)
}

// Options configures a Handler.
type Options struct {
	Name    string
	Version string
}

// Handler serves CRUD over stored documents. Store calls run on their own goroutine so the
// dispatcher never waits on the database.
type Handler struct {
	store   Store
	name    string
	version string
}

// NewHandler creates a Handler named opts.Name over store.
func NewHandler(store Store, opts Options) (*Handler, error) {
	if store == nil {
		return nil, fmt.Errorf("%s - store is nil", logPrefix)
	}
	if opts.Name == "" {
		return nil, registry.NewConfigurationError("document handler has no name")
	}
	return &Handler{store: store, name: opts.Name, version: opts.Version}, nil
}

func (h *Handler) Name() string    { return h.name }
func (h *Handler) Version() string { return h.version }

// Read returns one document when an id param is given, otherwise a page of documents.
func (h *Handler) Read(ctx context.Context, req *registry.ReadRequest, done *registry.Completion) {
	if _, ok := req.Params[ParamID]; ok {
		id, err := documentID(req.Params)
		if err != nil {
			_ = done.Reject(err)
			return
		}
		go func() {
			doc, err := h.store.GetDocument(ctx, h.name, id)
			h.settle(done, doc, err)
		}()
		return
	}

	limit, err := intParam(req.Params, ParamLimit)
	if err != nil {
		_ = done.Reject(err)
		return
	}
	offset, err := intParam(req.Params, ParamOffset)
	if err != nil {
		_ = done.Reject(err)
		return
	}
	params := db.ListDocumentsParams{Handler: h.name, Limit: limit, Offset: offset}
	if req.Resource != h.name {
		params.Resource = req.Resource
	}
	go func() {
		docs, err := h.store.ListDocuments(ctx, params)
		if err != nil {
			_ = done.Reject(h.storeError("list", err))
			return
		}
		_ = done.Resolve(docs, nil)
	}()
}

// Create stores the body as a new document and answers 201 with a Location header.
func (h *Handler) Create(ctx context.Context, req *registry.WriteRequest, done *registry.Completion) {
	go func() {
		doc, err := h.store.InsertDocument(ctx, db.InsertDocumentParams{
			Handler:  h.name,
			Resource: req.Resource,
			Body:     req.Body,
		})
		if err != nil {
			_ = done.Reject(h.storeError("insert", err))
			return
		}
		_ = done.Resolve(doc, &registry.Meta{
			StatusCode: http.StatusCreated,
			Headers:    map[string]string{"Location": Location(doc)},
		})
	}()
}

// Update merges the body into the stored document, or replaces it when config.replace is true.
func (h *Handler) Update(ctx context.Context, req *registry.WriteRequest, done *registry.Completion) {
	id, err := documentID(req.Params)
	if err != nil {
		_ = done.Reject(err)
		return
	}
	replace, _ := req.Config[ConfigReplace].(bool)
	go func() {
		doc, err := h.store.UpdateDocument(ctx, db.UpdateDocumentParams{
			Handler: h.name,
			ID:      id,
			Body:    req.Body,
			Merge:   !replace,
		})
		h.settle(done, doc, err)
	}()
}

// Delete removes the document and resolves with its last state.
func (h *Handler) Delete(ctx context.Context, req *registry.ReadRequest, done *registry.Completion) {
	id, err := documentID(req.Params)
	if err != nil {
		_ = done.Reject(err)
		return
	}
	go func() {
		doc, err := h.store.DeleteDocument(ctx, h.name, id)
		h.settle(done, doc, err)
	}()
}

// Location is the GET path of a stored document.
func Location(doc *db.Document) string {
	return "/resource/" + url.PathEscape(doc.Resource) + ";" + ParamID + "=" + doc.ID
}

func (h *Handler) settle(done *registry.Completion, doc *db.Document, err error) {
	if errors.Is(err, db.ErrNotFound) {
		_ = done.Reject(registry.NewHandlerError(http.StatusNotFound, "document not found"))
		return
	}
	if err != nil {
		_ = done.Reject(h.storeError("store", err))
		return
	}
	_ = done.Resolve(doc, nil)
}

func (h *Handler) storeError(op string, err error) error {
	slog.Error(fmt.Sprintf("%s - %s %s failed: %v", logPrefix, h.name, op, err))
	return registry.NewHandlerError(http.StatusInternalServerError, "storage error")
}

func documentID(params registry.Params) (string, error) {
	raw, ok := params[ParamID].(string)
	if !ok || raw == "" {
		return "", registry.NewHandlerError(http.StatusBadRequest, "id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", registry.NewHandlerError(http.StatusBadRequest, fmt.Sprintf("invalid id %q", raw))
	}
	return id.String(), nil
}

// intParam reads a non-negative integer sent either as a matrix string or a JSON number.
func intParam(params registry.Params, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, nil
	}
	var n int
	switch t := v.(type) {
	case string:
		parsed, err := strconv.Atoi(t)
		if err != nil {
			return 0, registry.NewHandlerError(http.StatusBadRequest, fmt.Sprintf("%s must be an integer", key))
		}
		n = parsed
	case float64:
		n = int(t)
	case int:
		n = t
	default:
		return 0, registry.NewHandlerError(http.StatusBadRequest, fmt.Sprintf("%s must be an integer", key))
	}
	if n < 0 {
		return 0, registry.NewHandlerError(http.StatusBadRequest, fmt.Sprintf("%s must not be negative", key))
	}
	return n, nil
}
