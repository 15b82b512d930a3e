package dispatcher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morezero/resource-fetcher/pkg/dispatcher"
	"github.com/morezero/resource-fetcher/pkg/registry"
	"github.com/morezero/resource-fetcher/pkg/registry/registrytest"
)

func TestFetcher_Operations(t *testing.T) {
	t.Parallel()

	users := registrytest.NewRecorder("users")
	d := newDispatcher(t, users)
	f := d.Fetcher(context.Background())

	tests := []struct {
		name string
		call func() *registry.Completion
		op   registry.Operation
		body registry.Body
	}{
		{"read", func() *registry.Completion { return f.Read("users.1", registry.Params{"id": 1}) }, registry.OpRead, nil},
		{"create", func() *registry.Completion { return f.Create("users", nil, registry.Body{"n": "a"}) }, registry.OpCreate, registry.Body{"n": "a"}},
		{"update", func() *registry.Completion { return f.Update("users.1", nil, registry.Body{"n": "b"}) }, registry.OpUpdate, registry.Body{"n": "b"}},
		{"delete", func() *registry.Completion { return f.Delete("users.1", nil) }, registry.OpDelete, nil},
	}
	for _, tt := range tests {
		r := wait(t, tt.call())
		require.NoError(t, r.Err, tt.name)

		echo, ok := r.Data.(registrytest.Echo)
		require.True(t, ok, tt.name)
		assert.Equal(t, tt.op.String(), echo.Operation, tt.name)
		assert.Equal(t, tt.body, echo.Body, tt.name)
	}
	assert.Equal(t, 4, users.Count())
}

func TestFetcher_WithConfig(t *testing.T) {
	t.Parallel()

	users := registrytest.NewRecorder("users")
	d := newDispatcher(t, users)

	wait(t, d.Fetcher(context.Background()).Read("users", nil, dispatcher.WithConfig(registry.Config{"timeout": 500})))
	inv, _ := users.Last()
	assert.Equal(t, registry.Config{"timeout": 500}, inv.Config)

	// omitted config is an empty map, never nil
	wait(t, d.Fetcher(context.Background()).Read("users", nil))
	inv, _ = users.Last()
	assert.NotNil(t, inv.Config)
}

func TestFetcher_MetaFromParams(t *testing.T) {
	t.Parallel()

	d := newDispatcher(t, registrytest.NewRecorder("fake_fetcher"))
	r := wait(t, d.Fetcher(context.Background()).Read("fake_fetcher", registry.Params{
		"meta.statusCode":      "201",
		"meta.headers.x-cache": "hit",
		"regular":              "value",
	}))
	require.NoError(t, r.Err)
	require.NotNil(t, r.Meta)
	assert.Equal(t, 201, r.Meta.StatusCode)
	assert.Equal(t, map[string]string{"x-cache": "hit"}, r.Meta.Headers)
}

func TestFetcher_WithCompletionObserver(t *testing.T) {
	t.Parallel()

	d := newDispatcher(t, registrytest.NewRecorder("users"))
	done := registry.NewCompletion()
	called := make(chan registry.Result, 1)
	done.OnComplete(func(r registry.Result) { called <- r })

	d.Fetcher(context.Background()).Read("users", nil, dispatcher.WithCompletion(done))
	r := <-called
	assert.NoError(t, r.Err)
}
