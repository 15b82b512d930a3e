package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/morezero/resource-fetcher/pkg/dispatcher"
	"github.com/morezero/resource-fetcher/pkg/registry"
)

const logPrefix = "adapter:http"

// DefaultMaxBodyBytes bounds batch bodies when HTTPOptions.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20

const resourcePrefix = "/resource/"

// HTTPOptions configures HTTPAdapter.
type HTTPOptions struct {
	// Timeout bounds the wait for a completion; zero waits until the client goes away.
	Timeout time.Duration
	// MaxBodyBytes bounds batch request bodies.
	MaxBodyBytes int64
}

// HTTPAdapter serves resource calls over HTTP.
type HTTPAdapter struct {
	d            *dispatcher.Dispatcher
	timeout      time.Duration
	maxBodyBytes int64
}

// NewHTTPAdapter creates an HTTPAdapter over d.
func NewHTTPAdapter(d *dispatcher.Dispatcher, opts HTTPOptions) *HTTPAdapter {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &HTTPAdapter{d: d, timeout: opts.Timeout, maxBodyBytes: opts.MaxBodyBytes}
}

// Routes mounts the resource endpoints on r.
func (a *HTTPAdapter) Routes(r chi.Router) {
	r.Get("/resources", a.handleList)
	r.Get("/resource/*", a.handleRead)
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		r.Method(method, "/resource", http.HandlerFunc(a.handleBatch))
		r.Method(method, "/resource/*", http.HandlerFunc(a.handleBatch))
	}
}

// Handler returns a standalone router serving Routes.
func (a *HTTPAdapter) Handler() http.Handler {
	r := chi.NewRouter()
	a.Routes(r)
	return r
}

// handleRead serves GET /resource/<name>;<matrix>?<query>. Query params override matrix params.
func (a *HTTPAdapter) handleRead(w http.ResponseWriter, r *http.Request) {
	resource, params, err := ParseResourcePath(escapedWildcard(r))
	if err != nil {
		writeError(w, registry.NewHandlerError(http.StatusBadRequest, "invalid matrix parameters"))
		return
	}
	mergeValues(params, r.URL.Query())

	call := &dispatcher.Call{
		Resource:  resource,
		Operation: registry.OpRead.String(),
		Params:    params,
		Config:    registry.Config{},
	}
	res, ok := a.dispatch(w, r, call)
	if !ok {
		return
	}
	if res.Err != nil {
		writeError(w, res.Err)
		return
	}
	writeResult(w, res.Data, res.Meta)
}

// handleBatch serves the g0 request of a batch body.
func (a *HTTPAdapter) handleBatch(w http.ResponseWriter, r *http.Request) {
	var batch BatchRequest
	body := http.MaxBytesReader(w, r.Body, a.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&batch); err != nil {
		slog.Debug(fmt.Sprintf("%s - invalid batch body: %v", logPrefix, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	req, err := batch.Single()
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	res, ok := a.dispatch(w, r, batchCall(req))
	if !ok {
		return
	}
	if res.Err != nil {
		writeError(w, res.Err)
		return
	}
	writeResult(w, map[string]BatchResult{DefaultGUID: {Data: res.Data}}, res.Meta)
}

// handleList serves GET /resources.
func (a *HTTPAdapter) handleList(w http.ResponseWriter, _ *http.Request) {
	writeResult(w, map[string]any{"handlers": a.d.Registry().Describe()}, nil)
}

// dispatch runs call and waits for it. It returns false when the response was already written
// (timeout) or the client went away.
func (a *HTTPAdapter) dispatch(w http.ResponseWriter, r *http.Request, call *dispatcher.Call) (registry.Result, bool) {
	ctx := withRequest(r.Context(), r)
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	done := a.d.Dispatch(ctx, call)
	res, err := done.Wait(ctx)
	if err == nil {
		return res, true
	}
	if errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil {
		slog.Warn(fmt.Sprintf("%s - %s %s timed out after %s", logPrefix, call.Operation, call.Resource, a.timeout))
		writeError(w, registry.NewHandlerError(http.StatusGatewayTimeout, "request timed out"))
		return res, false
	}
	slog.Debug(fmt.Sprintf("%s - client went away during %s %s", logPrefix, call.Operation, call.Resource))
	return res, false
}

func writeResult(w http.ResponseWriter, data any, meta *registry.Meta) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
		writeError(w, registry.NewHandlerError(http.StatusInternalServerError, "failed to encode response"))
		return
	}
	status := http.StatusOK
	if meta != nil {
		for k, v := range meta.Headers {
			w.Header().Set(k, v)
		}
		status = statusIf(meta.StatusCode, http.StatusOK)
	}
	writeJSON(w, payload, status)
}

func writeJSON(w http.ResponseWriter, payload []byte, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// writeError sends the error's carried status (default 400) and message as plain text.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(registry.StatusCode(err, http.StatusBadRequest))
	_, _ = w.Write([]byte(registry.Message(err)))
}

func statusIf(s, def int) int {
	if s > 0 {
		return s
	}
	return def
}
