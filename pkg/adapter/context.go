package adapter

import (
	"context"
	"net/http"
)

type requestKey struct{}

// RequestFromContext returns the inbound HTTP request a call was made for, if any.
func RequestFromContext(ctx context.Context) (*http.Request, bool) {
	r, ok := ctx.Value(requestKey{}).(*http.Request)
	return r, ok
}

func withRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}
