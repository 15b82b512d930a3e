package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func newFuncs(name string) *HandlerFuncs {
	return &HandlerFuncs{
		HandlerName: name,
		ReadFn: func(_ context.Context, req *ReadRequest, done *Completion) {
			_ = done.Resolve(req.Resource, nil)
		},
	}
}

func TestRegister_ResolveReturnsSameInstance(t *testing.T) {
	reg := NewRegistry()
	names := []string{"widgets", "users", "fake_fetcher"}
	handlers := make(map[string]Handler, len(names))
	for _, n := range names {
		h := newFuncs(n)
		handlers[n] = h
		if err := reg.Register(h); err != nil {
			t.Fatalf("registry:registry_test - Register(%s) failed: %v", n, err)
		}
	}

	for _, n := range names {
		got, err := reg.Resolve(n)
		if err != nil {
			t.Fatalf("registry:registry_test - Resolve(%s) failed: %v", n, err)
		}
		if got != handlers[n] {
			t.Errorf("registry:registry_test - Resolve(%s) returned a different instance", n)
		}
	}
	if reg.Len() != 3 {
		t.Errorf("registry:registry_test - Len = %d, want 3", reg.Len())
	}
}

func TestResolve_NotFound(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newFuncs("widgets"))

	for _, key := range []string{"", "gadgets", "widgets.123", "Widgets"} {
		_, err := reg.Resolve(key)
		if err == nil {
			t.Fatalf("registry:registry_test - Resolve(%q) expected error", key)
		}
		if !IsCode(err, CodeNotFound) {
			t.Errorf("registry:registry_test - Resolve(%q) code = %v, want NOT_FOUND", key, err)
		}
	}
}

func TestRegister_ConfigurationErrors(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newFuncs("widgets"))

	tests := []struct {
		name    string
		handler Handler
	}{
		{"nil handler", nil},
		{"typed nil handler", (*HandlerFuncs)(nil)},
		{"empty name", newFuncs("")},
		{"blank name", newFuncs("   ")},
		{"dotted name", newFuncs("widgets.v2")},
		{"padded name", newFuncs(" gadgets")},
		{"duplicate name", newFuncs("widgets")},
		{"invalid version", &HandlerFuncs{HandlerName: "versioned", HandlerVer: "one"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.handler)
			if err == nil {
				t.Fatalf("registry:registry_test - expected configuration error")
			}
			if !IsCode(err, CodeConfiguration) {
				t.Errorf("registry:registry_test - code = %v, want CONFIGURATION_ERROR", err)
			}
		})
	}
	if reg.Len() != 1 {
		t.Errorf("registry:registry_test - Len = %d after failed registrations, want 1", reg.Len())
	}
}

func TestRegister_DuplicateKeepsFirst(t *testing.T) {
	reg := NewRegistry()
	first := newFuncs("widgets")
	reg.MustRegister(first)
	_ = reg.Register(newFuncs("widgets"))

	got, _ := reg.Resolve("widgets")
	if got != first {
		t.Error("registry:registry_test - duplicate registration replaced the first handler")
	}
}

func TestMustRegister_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("registry:registry_test - expected panic")
		}
	}()
	NewRegistry().MustRegister(newFuncs(""))
}

type remoteStub struct{ *HandlerFuncs }

func (remoteStub) Remote() bool    { return true }
func (remoteStub) Version() string { return "2.1.0" }

func TestDescribe(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newFuncs("zeta"))
	reg.MustRegister(remoteStub{newFuncs("alpha")})
	reg.MustRegister(&HandlerFuncs{HandlerName: "mid", HandlerVer: "1.0.0"})

	infos := reg.Describe()
	want := []HandlerInfo{
		{Name: "alpha", Version: "2.1.0", Remote: true},
		{Name: "mid", Version: "1.0.0"},
		{Name: "zeta"},
	}
	if len(infos) != len(want) {
		t.Fatalf("registry:registry_test - Describe len = %d, want %d", len(infos), len(want))
	}
	for i := range want {
		if infos[i] != want[i] {
			t.Errorf("registry:registry_test - Describe[%d] = %+v, want %+v", i, infos[i], want[i])
		}
	}

	names := reg.Names()
	if fmt.Sprint(names) != "[alpha mid zeta]" {
		t.Errorf("registry:registry_test - Names = %v", names)
	}
}

func TestRegistry_ConcurrentResolve(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("h%d", i)
			if err := reg.Register(newFuncs(name)); err != nil {
				t.Errorf("registry:registry_test - Register(%s): %v", name, err)
				return
			}
			if _, err := reg.Resolve(name); err != nil {
				t.Errorf("registry:registry_test - Resolve(%s) after Register: %v", name, err)
			}
		}(i)
	}
	wg.Wait()
	if reg.Len() != 20 {
		t.Errorf("registry:registry_test - Len = %d, want 20", reg.Len())
	}
}

func TestHandlerFuncs_MissingOperationRejects(t *testing.T) {
	h := newFuncs("widgets")
	done := NewCompletion()
	h.Create(context.Background(), &WriteRequest{Resource: "widgets"}, done)

	r, ok := done.Result()
	if !ok {
		t.Fatal("registry:registry_test - expected completion to settle")
	}
	if StatusCode(r.Err, 0) != 405 {
		t.Errorf("registry:registry_test - status = %d, want 405", StatusCode(r.Err, 0))
	}
}
