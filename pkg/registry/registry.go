package registry

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/morezero/resource-fetcher/pkg/semver"
)

const logPrefix = "registry:registry"

// Registry maps handler names to handlers. It is built by the application root and passed to
// the dispatcher; entries are never removed.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register stores h under its declared name. Names must be non-empty, dot-free and unique.
func (r *Registry) Register(h Handler) error {
	if isNilHandler(h) {
		return NewConfigurationError("handler is nil")
	}
	name := h.Name()
	if strings.TrimSpace(name) == "" {
		return NewConfigurationError("handler %T has no name", h)
	}
	if name != strings.TrimSpace(name) || strings.Contains(name, ".") {
		return NewConfigurationError("handler name %q must not contain dots or surrounding spaces", name)
	}
	if v, ok := h.(Versioned); ok && v.Version() != "" {
		if _, err := semver.Parse(v.Version()); err != nil {
			return NewConfigurationError("handler %q has invalid version %q: %v", name, v.Version(), err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return NewConfigurationError("handler %q is already registered", name)
	}
	r.handlers[name] = h
	slog.Debug(fmt.Sprintf("%s - handler %s added", logPrefix, name))
	return nil
}

// isNilHandler also catches a nil pointer stored in the interface.
func isNilHandler(h Handler) bool {
	if h == nil {
		return true
	}
	switch v := reflect.ValueOf(h); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// MustRegister is Register for static wiring; it panics on a configuration error.
func (r *Registry) MustRegister(h Handler) {
	if err := r.Register(h); err != nil {
		panic(err)
	}
}

// Resolve returns the handler registered under key.
func (r *Registry) Resolve(key string) (Handler, error) {
	if key == "" {
		return nil, NewNotFoundError(key)
	}
	r.mu.RLock()
	h, ok := r.handlers[key]
	r.mu.RUnlock()
	if !ok {
		return nil, NewNotFoundError(key)
	}
	return h, nil
}

// Names returns the registered handler names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Describe returns one HandlerInfo per registered handler, sorted by name.
func (r *Registry) Describe() []HandlerInfo {
	r.mu.RLock()
	out := make([]HandlerInfo, 0, len(r.handlers))
	for name, h := range r.handlers {
		info := HandlerInfo{Name: name}
		if v, ok := h.(Versioned); ok {
			info.Version = v.Version()
		}
		if rm, ok := h.(Remote); ok {
			info.Remote = rm.Remote()
		}
		out = append(out, info)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
