package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

// DefaultListLimit applies when ListDocumentsParams.Limit is not positive.
const DefaultListLimit = 50

const documentColumns = `id::text, handler, resource, body, revision, created, modified`

// Repository provides database access for stored documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetDocument finds a document by handler and id.
func (r *Repository) GetDocument(ctx context.Context, handler, id string) (*Document, error) {
	slog.Debug(fmt.Sprintf("%s - GetDocument handler=%s id=%s", repoLogPrefix, handler, id))

	row := r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+`
		 FROM resources
		 WHERE handler = $1 AND id = $2::uuid
		 LIMIT 1`, handler, id)

	return scanDocument(row)
}

// ListDocuments returns documents for a handler, newest first.
func (r *Repository) ListDocuments(ctx context.Context, params ListDocumentsParams) ([]Document, error) {
	limit := params.Limit
	if limit < 1 {
		limit = DefaultListLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + documentColumns + ` FROM resources WHERE handler = $1`
	args := []any{params.Handler}
	argIdx := 2

	if params.Resource != "" {
		query += fmt.Sprintf(` AND resource = $%d`, argIdx)
		args = append(args, params.Resource)
		argIdx++
	}

	query += ` ORDER BY modified DESC`
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s - ListDocuments query failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - ListDocuments rows failed: %w", repoLogPrefix, err)
	}
	return docs, nil
}

// InsertDocument stores a new document and returns it with its generated id.
func (r *Repository) InsertDocument(ctx context.Context, params InsertDocumentParams) (*Document, error) {
	slog.Info(fmt.Sprintf("%s - InsertDocument handler=%s resource=%s", repoLogPrefix, params.Handler, params.Resource))

	body, err := encodeBody(params.Body)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO resources (handler, resource, body)
		 VALUES ($1, $2, $3::jsonb)
		 RETURNING `+documentColumns,
		params.Handler, params.Resource, body)

	return scanDocument(row)
}

// UpdateDocument changes the body of an existing document and bumps its revision.
func (r *Repository) UpdateDocument(ctx context.Context, params UpdateDocumentParams) (*Document, error) {
	slog.Info(fmt.Sprintf("%s - UpdateDocument handler=%s id=%s merge=%t", repoLogPrefix, params.Handler, params.ID, params.Merge))

	body, err := encodeBody(params.Body)
	if err != nil {
		return nil, err
	}

	set := `body = $3::jsonb`
	if params.Merge {
		set = `body = resources.body || $3::jsonb`
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE resources SET `+set+`,
		   revision = resources.revision + 1,
		   modified = now()
		 WHERE handler = $1 AND id = $2::uuid
		 RETURNING `+documentColumns,
		params.Handler, params.ID, body)

	return scanDocument(row)
}

// DeleteDocument removes a document and returns its last state.
func (r *Repository) DeleteDocument(ctx context.Context, handler, id string) (*Document, error) {
	slog.Info(fmt.Sprintf("%s - DeleteDocument handler=%s id=%s", repoLogPrefix, handler, id))

	row := r.pool.QueryRow(ctx,
		`DELETE FROM resources
		 WHERE handler = $1 AND id = $2::uuid
		 RETURNING `+documentColumns, handler, id)

	return scanDocument(row)
}

func encodeBody(body map[string]any) (string, error) {
	if body == nil {
		return "{}", nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%s - encode body failed: %w", repoLogPrefix, err)
	}
	return string(data), nil
}

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	var body []byte
	err := row.Scan(&d.ID, &d.Handler, &d.Resource, &body, &d.Revision, &d.Created, &d.Modified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan document failed: %w", repoLogPrefix, err)
	}
	d.Body = map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &d.Body); err != nil {
			return nil, fmt.Errorf("%s - decode body failed: %w", repoLogPrefix, err)
		}
	}
	return &d, nil
}
