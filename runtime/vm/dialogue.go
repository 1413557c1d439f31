package vm

import (
	"github.com/spindle-lang/spindle/core/ir"
	"github.com/spindle-lang/spindle/core/library"
)

// Dialogue binds a program, a variable store, and a function library
// into the event-producing surface hosts embed. The zero configuration
// is useful on its own: in-memory storage and the standard library.
type Dialogue struct {
	vm      *VM
	storage VariableStorage
	library *library.Library
}

// DialogueOption configures a Dialogue at construction.
type DialogueOption func(*Dialogue)

// WithVariableStorage substitutes the host's own store for the default
// in-memory one.
func WithVariableStorage(storage VariableStorage) DialogueOption {
	return func(d *Dialogue) { d.storage = storage }
}

// WithLibrary registers the host's functions on top of the standard
// library. Host registrations win on name collisions.
func WithLibrary(lib *library.Library) DialogueOption {
	return func(d *Dialogue) { d.library.Extend(lib) }
}

// NewDialogue creates a dialogue over a compiled program.
func NewDialogue(program *ir.Program, opts ...DialogueOption) *Dialogue {
	d := &Dialogue{
		storage: NewMemoryVariableStorage(),
		library: library.Standard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.vm = New(program, d.storage, d.library)
	return d
}

// SetNode positions the dialogue at the start of a node.
func (d *Dialogue) SetNode(name string) error { return d.vm.SetNode(name) }

// Continue runs until the next suspension point.
func (d *Dialogue) Continue() ([]Event, error) { return d.vm.Continue() }

// SelectOption answers a pending option set.
func (d *Dialogue) SelectOption(id int) error { return d.vm.SelectOption(id) }

// Stop halts the dialogue from any state.
func (d *Dialogue) Stop() []Event { return d.vm.Stop() }

// State exposes the underlying execution state.
func (d *Dialogue) State() ExecutionState { return d.vm.State() }

// IsActive reports whether the dialogue is mid-run.
func (d *Dialogue) IsActive() bool { return d.vm.State() != Stopped }

// CurrentNode returns the node being executed, if any.
func (d *Dialogue) CurrentNode() (string, bool) { return d.vm.CurrentNode() }

// VariableStorage returns the store backing this dialogue, for hosts
// that persist or inspect state.
func (d *Dialogue) VariableStorage() VariableStorage { return d.storage }
