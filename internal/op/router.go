package op

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Router maps operation names to handlers. Names are opaque byte strings,
// compared case-sensitively, never normalized. Registration is expected
// before traffic begins but the map is guarded so concurrent use cannot
// corrupt it.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register stores the handler for name, overwriting any prior registration.
// Last writer wins; entries are never implicitly removed.
func (r *Router) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Dispatch invokes the handler registered for name. A missing handler, a
// handler error, and a handler panic all surface as a Ko result; nothing
// escapes to the caller, and the registry is never mutated on a miss.
func (r *Router) Dispatch(ctx context.Context, name string, req *Request) Result {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return Ko(fmt.Sprintf("Operation '%s' not found.", name))
	}
	return invoke(ctx, h, req)
}

// Names returns registered operation names in sorted order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// invoke isolates one handler call: errors and panics become Ko results. The
// handler's own error text is surfaced to the caller by contract.
func invoke(ctx context.Context, h Handler, req *Request) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Ko(fmt.Sprint(rec))
		}
	}()
	res, err := h(ctx, req)
	if err != nil {
		return Ko(err.Error())
	}
	return res
}
