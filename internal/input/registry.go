package input

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Kind names the two independently-selectable metadata kinds, used as map
// keys and in log/error messages.
type Kind string

const (
	SEIKind  Kind = "sei"
	SCTEKind Kind = "scte"
)

// Registry holds the full, stable set of configured inputs plus the
// virtual clear input, and tracks which input is currently selected for
// each kind. The input set itself never changes after construction;
// selection changes are lock-free per kind.
type Registry struct {
	mu      sync.RWMutex
	byID    map[ID]Input
	byName  map[string]Input
	current map[Kind]*atomic.Uint32
	logger  *slog.Logger
}

// NewRegistry builds a Registry from the given configured inputs, adding
// the virtual clear input automatically. Input ids and names must be
// unique, and no configured input may use the reserved name "clear" or id 0.
func NewRegistry(logger *slog.Logger, inputs []Input) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		byID:   make(map[ID]Input),
		byName: make(map[string]Input),
		current: map[Kind]*atomic.Uint32{
			SEIKind:  {},
			SCTEKind: {},
		},
		logger: logger.With("component", "input.registry"),
	}

	clear := NewClear()
	r.byID[clear.Spec().ID] = clear
	r.byName[clear.Spec().Name] = clear

	for _, in := range inputs {
		spec := in.Spec()
		if spec.ID == ClearID {
			return nil, fmt.Errorf("input: id 0 is reserved for the virtual clear input")
		}
		if spec.Name == clearName {
			return nil, fmt.Errorf("input: name %q is reserved for the virtual clear input", clearName)
		}
		if _, exists := r.byID[spec.ID]; exists {
			return nil, fmt.Errorf("input: duplicate input id %d", spec.ID)
		}
		if _, exists := r.byName[spec.Name]; exists {
			return nil, fmt.Errorf("input: duplicate input name %q", spec.Name)
		}
		r.byID[spec.ID] = in
		r.byName[spec.Name] = in
	}

	return r, nil
}

// ByID looks up an input by id.
func (r *Registry) ByID(id ID) (Input, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.byID[id]
	return in, ok
}

// ByName looks up an input by name.
func (r *Registry) ByName(name string) (Input, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.byName[name]
	return in, ok
}

// All returns every registered input, including the virtual clear input,
// in no particular order.
func (r *Registry) All() []Input {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Input, 0, len(r.byID))
	for _, in := range r.byID {
		out = append(out, in)
	}
	return out
}

// Current returns the id currently selected for kind.
func (r *Registry) Current(kind Kind) ID {
	return r.current[kind].Load()
}

// CurrentInput returns the input currently selected for kind.
func (r *Registry) CurrentInput(kind Kind) Input {
	id := r.Current(kind)
	in, ok := r.ByID(id)
	if !ok {
		// The clear input (id 0) is always present and is the zero value
		// of the atomic, so this can only happen if construction failed.
		return NewClear()
	}
	return in
}

// SetCurrent selects id as the current input for kind. It fails if id is
// not a registered input; it logs (but does not fail) if the target input
// has not declared the capability for kind.
func (r *Registry) SetCurrent(kind Kind, id ID) error {
	in, ok := r.ByID(id)
	if !ok {
		return fmt.Errorf("input: id %d is not registered", id)
	}
	if !in.Caps().Has(string(kind)) {
		r.logger.Warn("input does not declare capability", "id", id, "name", in.Spec().Name, "kind", kind)
	}

	prev := r.current[kind].Swap(id)
	if prev != id {
		r.logger.Info("changed current input", "kind", kind, "id", id, "name", in.Spec().Name)
	}
	return nil
}

// SetCurrentByName is SetCurrent resolved through the input's name instead
// of its id.
func (r *Registry) SetCurrentByName(kind Kind, name string) error {
	in, ok := r.ByName(name)
	if !ok {
		return fmt.Errorf("input: unknown input name %q", name)
	}
	return r.SetCurrent(kind, in.Spec().ID)
}
