package dispatcher_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morezero/resource-fetcher/pkg/dispatcher"
	"github.com/morezero/resource-fetcher/pkg/events"
	"github.com/morezero/resource-fetcher/pkg/registry"
	"github.com/morezero/resource-fetcher/pkg/registry/registrytest"
)

func newDispatcher(t *testing.T, handlers ...registry.Handler) *dispatcher.Dispatcher {
	t.Helper()
	reg := registry.NewRegistry()
	for _, h := range handlers {
		require.NoError(t, reg.Register(h))
	}
	return dispatcher.NewDispatcher(reg)
}

func wait(t *testing.T, done *registry.Completion) registry.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := done.Wait(ctx)
	require.NoError(t, err, "completion did not settle")
	return r
}

func TestDispatch_ReadRoutesByPrefix(t *testing.T) {
	t.Parallel()

	widgets := registrytest.NewRecorder("widgets")
	d := newDispatcher(t, widgets)

	r := wait(t, d.Dispatch(context.Background(), &dispatcher.Call{
		Resource:  "widgets.123",
		Operation: "read",
		Params:    registry.Params{"id": "123"},
	}))

	require.NoError(t, r.Err)
	require.Equal(t, 1, widgets.Count())
	inv, _ := widgets.Last()
	assert.Equal(t, registry.OpRead, inv.Operation)
	assert.Equal(t, "widgets.123", inv.Resource)
	assert.Equal(t, registry.Params{"id": "123"}, inv.Params)
	assert.Equal(t, registry.Config{}, inv.Config)
	assert.Nil(t, inv.Body)
}

func TestDispatch_CreatePassesBodyAndEmptyDefaults(t *testing.T) {
	t.Parallel()

	widgets := registrytest.NewRecorder("widgets").
		WithResponder(registrytest.Resolve(map[string]int{"id": 1}, nil))
	d := newDispatcher(t, widgets)

	r := wait(t, d.Dispatch(context.Background(), &dispatcher.Call{
		Resource:  "widgets",
		Operation: "create",
		Body:      registry.Body{"name": "x"},
	}))
	require.NoError(t, r.Err)
	assert.Equal(t, map[string]int{"id": 1}, r.Data)

	inv, _ := widgets.Last()
	assert.Equal(t, registry.Body{"name": "x"}, inv.Body)
	assert.Equal(t, registry.Params{}, inv.Params)

	// nil body becomes an empty body
	wait(t, d.Dispatch(context.Background(), &dispatcher.Call{Resource: "widgets", Operation: "update"}))
	inv, _ = widgets.Last()
	assert.Equal(t, registry.OpUpdate, inv.Operation)
	assert.NotNil(t, inv.Body)
	assert.Empty(t, inv.Body)
}

func TestDispatch_DeleteAndAlias(t *testing.T) {
	t.Parallel()

	widgets := registrytest.NewRecorder("widgets")
	d := newDispatcher(t, widgets)

	for _, op := range []string{"delete", "del"} {
		r := wait(t, d.Dispatch(context.Background(), &dispatcher.Call{Resource: "widgets.9", Operation: op}))
		require.NoError(t, r.Err)
		inv, _ := widgets.Last()
		assert.Equal(t, registry.OpDelete, inv.Operation, op)
	}
}

func TestDispatch_UnknownResource(t *testing.T) {
	t.Parallel()

	widgets := registrytest.NewRecorder("widgets")
	d := newDispatcher(t, widgets)

	for _, resource := range []string{"gadgets", "gadgets.1", ""} {
		r := wait(t, d.Dispatch(context.Background(), &dispatcher.Call{Resource: resource, Operation: "read"}))
		require.Error(t, r.Err)
		assert.True(t, registry.IsCode(r.Err, registry.CodeNotFound), resource)
		assert.Equal(t, http.StatusNotFound, registry.StatusCode(r.Err, 400))
	}
	assert.Zero(t, widgets.Count(), "no handler may be invoked for an unknown resource")
}

func TestDispatch_UnsupportedOperation(t *testing.T) {
	t.Parallel()

	widgets := registrytest.NewRecorder("widgets")
	d := newDispatcher(t, widgets)

	for _, op := range []string{"patch", "", "READ"} {
		r := wait(t, d.Dispatch(context.Background(), &dispatcher.Call{Resource: "widgets", Operation: op}))
		require.Error(t, r.Err)
		assert.True(t, registry.IsCode(r.Err, registry.CodeUnsupportedOperation), op)
	}
	assert.Zero(t, widgets.Count(), "no handler may be invoked for an unsupported operation")
}

func TestDispatch_HandlerErrorPassesThrough(t *testing.T) {
	t.Parallel()

	handlerErr := registry.NewHandlerError(http.StatusNotFound, "no widget 7")
	widgets := registrytest.NewRecorder("widgets").WithResponder(registrytest.Reject(handlerErr))
	d := newDispatcher(t, widgets)

	r := wait(t, d.Dispatch(context.Background(), &dispatcher.Call{Resource: "widgets.7", Operation: "read"}))
	assert.Same(t, handlerErr, r.Err)
}

func TestDispatch_AsyncHandler(t *testing.T) {
	t.Parallel()

	widgets := registrytest.NewRecorder("widgets").WithResponder(func(inv registrytest.Invocation, done *registry.Completion) {
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = done.Resolve("late", &registry.Meta{StatusCode: http.StatusAccepted})
		}()
	})
	d := newDispatcher(t, widgets)

	done := d.Dispatch(context.Background(), &dispatcher.Call{Resource: "widgets", Operation: "read"})
	assert.False(t, done.Settled(), "dispatch must not block on the handler")

	r := wait(t, done)
	assert.Equal(t, "late", r.Data)
	assert.Equal(t, http.StatusAccepted, r.Meta.StatusCode)
}

func TestDispatch_PanicRecovered(t *testing.T) {
	t.Parallel()

	widgets := registrytest.NewRecorder("widgets").WithResponder(func(registrytest.Invocation, *registry.Completion) {
		panic("boom")
	})
	d := newDispatcher(t, widgets)

	r := wait(t, d.Dispatch(context.Background(), &dispatcher.Call{Resource: "widgets", Operation: "read"}))
	require.Error(t, r.Err)
	assert.Equal(t, http.StatusInternalServerError, registry.StatusCode(r.Err, 400))
}

func TestDispatch_UsesSuppliedCompletion(t *testing.T) {
	t.Parallel()

	d := newDispatcher(t, registrytest.NewRecorder("widgets"))
	done := registry.NewCompletion()
	got := d.Dispatch(context.Background(), &dispatcher.Call{Resource: "widgets", Operation: "read", Done: done})
	assert.Same(t, done, got)
}

func TestDispatch_HandlerVersionConstraint(t *testing.T) {
	t.Parallel()

	d := newDispatcher(t,
		registrytest.NewRecorder("widgets").WithVersion("2.3.0"),
		registrytest.NewRecorder("plain"),
	)

	tests := []struct {
		name     string
		resource string
		cfg      registry.Config
		wantCode string
	}{
		{"major match", "widgets", registry.Config{"handlerVersion": "2"}, ""},
		{"caret match", "widgets", registry.Config{"handlerVersion": "^2.1.0"}, ""},
		{"empty constraint", "widgets", registry.Config{"handlerVersion": ""}, ""},
		{"major mismatch", "widgets", registry.Config{"handlerVersion": "3"}, registry.CodeNotFound},
		{"unversioned handler", "plain", registry.Config{"handlerVersion": "1"}, registry.CodeNotFound},
		{"invalid constraint", "widgets", registry.Config{"handlerVersion": "not a range"}, registry.CodeHandler},
		{"non-string constraint", "widgets", registry.Config{"handlerVersion": 2}, registry.CodeHandler},
	}
	for _, tt := range tests {
		r := wait(t, d.Fetcher(context.Background()).Read(tt.resource, nil, dispatcher.WithConfig(tt.cfg)))
		if tt.wantCode == "" {
			assert.NoError(t, r.Err, tt.name)
			continue
		}
		assert.True(t, registry.IsCode(r.Err, tt.wantCode), "%s: got %v", tt.name, r.Err)
	}
}

func TestDispatch_PublishesChangeEvents(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var got []*events.ResourceChangedEvent
	pub := events.NewCallbackPublisher(func(_ context.Context, e *events.ResourceChangedEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
		return nil
	})

	reg := registry.NewRegistry()
	reg.MustRegister(registrytest.NewRecorder("widgets"))
	reg.MustRegister(registrytest.NewRecorder("broken").WithResponder(registrytest.Reject(errors.New("nope"))))
	d := dispatcher.NewDispatcher(reg, dispatcher.WithPublisher(pub))
	f := d.Fetcher(context.Background())

	wait(t, f.Read("widgets.1", nil))
	wait(t, f.Create("widgets", registry.Params{"id": "2"}, registry.Body{"a": 1}))
	wait(t, f.Update("widgets.2", nil, registry.Body{"a": 2}))
	wait(t, f.Delete("widgets.2", nil))
	wait(t, f.Create("broken", nil, nil))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3, "only successful writes publish")
	assert.Equal(t, []string{"create", "update", "delete"}, []string{got[0].Operation, got[1].Operation, got[2].Operation})
	assert.Equal(t, "widgets", got[0].Handler)
	assert.Equal(t, "2", got[0].Params["id"])
	assert.NotEmpty(t, got[0].ID)
	assert.NotEmpty(t, got[0].Timestamp)
}

func TestDispatch_PublisherErrorDoesNotFailCall(t *testing.T) {
	t.Parallel()

	reg := registry.NewRegistry()
	reg.MustRegister(registrytest.NewRecorder("widgets"))
	pub := events.NewCallbackPublisher(func(context.Context, *events.ResourceChangedEvent) error {
		return errors.New("bus down")
	})
	d := dispatcher.NewDispatcher(reg, dispatcher.WithPublisher(pub))

	r := wait(t, d.Fetcher(context.Background()).Create("widgets", nil, nil))
	assert.NoError(t, r.Err)
}
