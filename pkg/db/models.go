package db

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no document matches the handler and id.
var ErrNotFound = errors.New("db:repository - document not found")

// Document represents a row in the resources table.
type Document struct {
	ID       string         `json:"id"`
	Handler  string         `json:"handler"`
	Resource string         `json:"resource"`
	Body     map[string]any `json:"body"`
	Revision int            `json:"revision"`
	Created  time.Time      `json:"created"`
	Modified time.Time      `json:"modified"`
}

// InsertDocumentParams holds parameters for InsertDocument.
type InsertDocumentParams struct {
	Handler  string
	Resource string
	Body     map[string]any
}

// UpdateDocumentParams holds parameters for UpdateDocument. Merge folds Body into the stored
// body at the top level; otherwise Body replaces it.
type UpdateDocumentParams struct {
	Handler string
	ID      string
	Body    map[string]any
	Merge   bool
}

// ListDocumentsParams holds parameters for ListDocuments. Resource filters on the full
// resource name when set.
type ListDocumentsParams struct {
	Handler  string
	Resource string
	Limit    int
	Offset   int
}
