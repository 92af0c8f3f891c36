package workflow

import (
	"fmt"
	"sort"
)

// Registry maps step method names to implementations. It is built
// once at startup from a static list; steps do not self-register.
type Registry struct {
	steps map[string]StepFunc
}

// NewRegistry builds a registry holding the builtin step methods.
func NewRegistry() *Registry {
	return &Registry{steps: builtinSteps()}
}

// Register adds or replaces a step method. Used by tests and by
// embedders extending the builtin set.
func (r *Registry) Register(method string, fn StepFunc) {
	r.steps[method] = fn
}

// Get resolves a method name.
func (r *Registry) Get(method string) (StepFunc, error) {
	fn, ok := r.steps[method]
	if !ok {
		return nil, fmt.Errorf("unknown step method %q", method)
	}
	return fn, nil
}

// Methods lists registered method names, sorted.
func (r *Registry) Methods() []string {
	out := make([]string, 0, len(r.steps))
	for name := range r.steps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
