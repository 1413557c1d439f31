// Package library holds the registry of host-callable functions.
//
// Scripts reach host code exclusively through registered functions:
// user registrations, plus the built-in operator functions the code
// generator lowers arithmetic and comparisons to. The registry is
// read-only once handed to a running dialogue.
package library

import (
	"fmt"
	"sort"

	"github.com/spindle-lang/spindle/core/types"
)

// Func is the host side of a script-callable function.
type Func func(args []types.Value) (types.Value, error)

// Function pairs a callable with the metadata the compiler needs for
// arity and type checking.
type Function struct {
	Name    string
	Params  []types.Type
	Returns types.Type
	Call    Func
}

// Type returns the function's place in the type lattice.
func (f Function) Type() types.Type {
	return types.FunctionType(f.Params, f.Returns)
}

// Library is a name-keyed set of Functions.
type Library struct {
	funcs map[string]Function
}

func New() *Library {
	return &Library{funcs: make(map[string]Function)}
}

// Register adds fn under fn.Name, replacing any previous registration.
func (l *Library) Register(fn Function) *Library {
	l.funcs[fn.Name] = fn
	return l
}

// RegisterFunc is a shorthand for registering a callable with its
// signature in one call.
func (l *Library) RegisterFunc(name string, params []types.Type, returns types.Type, call Func) *Library {
	return l.Register(Function{Name: name, Params: params, Returns: returns, Call: call})
}

// Extend copies every function from other into l. Later registrations
// win on name collisions.
func (l *Library) Extend(other *Library) *Library {
	if other == nil {
		return l
	}
	for _, name := range other.Names() {
		fn, _ := other.Lookup(name)
		l.funcs[name] = fn
	}
	return l
}

// Lookup returns the function registered under name.
func (l *Library) Lookup(name string) (Function, bool) {
	fn, ok := l.funcs[name]
	return fn, ok
}

// Names returns all registered names, sorted, so that anything iterating
// the library observes a deterministic order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.funcs))
	for name := range l.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered functions.
func (l *Library) Len() int {
	return len(l.funcs)
}

// Declarations derives compiler declarations from the registry, one per
// function, typed with its full signature.
func (l *Library) Declarations() []types.Declaration {
	decls := make([]types.Declaration, 0, len(l.funcs))
	for _, name := range l.Names() {
		fn := l.funcs[name]
		decls = append(decls, types.Declaration{
			Name:        name,
			Type:        fn.Type(),
			Description: fmt.Sprintf("host function %s", name),
		})
	}
	return decls
}
