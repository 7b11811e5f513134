// Package shutdown implements the single ordered list of disposer
// functions spec.md §5 describes: handlers register cleanup via a shared
// hook registry, and a SIGINT/SIGTERM listener runs them once before the
// process exits. No direct teacher analogue exists (the teacher has no
// shutdown-hook registry at all); written in the mutex-guarded-struct idiom
// of internal/registry and the goneat ops-registry example.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Disposer is a cleanup function registered to run on shutdown.
type Disposer func()

// Handle lets a caller deregister its own disposer before it would
// otherwise run.
type Handle struct {
	registry *Registry
	id       int
}

// Deregister removes the disposer this Handle refers to, if still present.
func (h Handle) Deregister() {
	h.registry.remove(h.id)
}

// Registry is the process-wide ordered disposer list.
type Registry struct {
	mu       sync.Mutex
	next     int
	order    []int
	disposed map[int]Disposer
	ran      bool
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{disposed: map[int]Disposer{}}
}

// Register appends d to the ordered list and returns a Handle that can
// deregister it.
func (r *Registry) Register(d Disposer) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.order = append(r.order, id)
	r.disposed[id] = d
	return Handle{registry: r, id: id}
}

func (r *Registry) remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.disposed, id)
}

// RunOnce executes every still-registered disposer, in registration order,
// exactly once per Registry even if called multiple times.
func (r *Registry) RunOnce() {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return
	}
	r.ran = true
	order := append([]int(nil), r.order...)
	disposed := r.disposed
	r.mu.Unlock()

	for _, id := range order {
		if d, ok := disposed[id]; ok {
			d()
		}
	}
}

// ListenAndRunOnSignal wires SIGINT/SIGTERM to a single call to RunOnce,
// then exits the process with exitCode. This is the host's one shutdown
// path (spec.md §5): "A handler that never returns... the shutdown hook is
// its only termination path."
func (r *Registry) ListenAndRunOnSignal(exitCode int) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		r.RunOnce()
		os.Exit(exitCode)
	}()
}
