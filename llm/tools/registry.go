package tools

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRegistrySealed is returned by Register after an Invoker took the registry.
var ErrRegistrySealed = errors.New("tool registry is sealed")

type entry struct {
	spec    ToolSpec
	limiter *rate.Limiter
}

// Registry maps tool names to specs, in registration order.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	sealed  bool
	logger  *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger.With(zap.String("component", "tool_registry")),
	}
}

// Register adds a spec. Names must be unique and non-empty.
func (r *Registry) Register(spec ToolSpec) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if spec.Func == nil {
		return fmt.Errorf("tool %s has no callable", name)
	}
	spec.Name = name
	if spec.Timeout <= 0 {
		spec.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(spec.FailureMessage) == "" {
		spec.FailureMessage = DefaultFailureMessage
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	e := &entry{spec: spec}
	if rl := spec.RateLimit; rl != nil && rl.MaxCalls > 0 && rl.Window > 0 {
		burst := rl.Burst
		if burst <= 0 {
			burst = rl.MaxCalls
		}
		e.limiter = rate.NewLimiter(rate.Limit(float64(rl.MaxCalls)/rl.Window.Seconds()), burst)
	}
	r.entries[name] = e
	r.order = append(r.order, name)

	r.logger.Info("tool registered", zap.String("name", name), zap.Duration("timeout", spec.Timeout))
	return nil
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Get returns the spec registered under name.
func (r *Registry) Get(name string) (ToolSpec, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return ToolSpec{}, false
	}
	return e.spec, true
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Specs returns specs in registration order.
func (r *Registry) Specs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].spec)
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
