package ir

import (
	"sort"

	"github.com/spindle-lang/spindle/core/types"
)

// Program is the compiled, immutable artifact: every node keyed by
// name, plus the initial values for declared variables. Only read
// accessors are exposed after construction; VMs share one Program
// freely.
type Program struct {
	nodes         map[string]*Node
	initialValues map[string]types.Value
}

// NewProgram builds a program from compiled nodes and variable
// defaults. The maps are taken over by the program; callers must not
// mutate them afterwards.
func NewProgram(nodes map[string]*Node, initialValues map[string]types.Value) *Program {
	if nodes == nil {
		nodes = make(map[string]*Node)
	}
	if initialValues == nil {
		initialValues = make(map[string]types.Value)
	}
	return &Program{nodes: nodes, initialValues: initialValues}
}

// Node returns the named node.
func (p *Program) Node(name string) (*Node, bool) {
	n, ok := p.nodes[name]
	return n, ok
}

// NodeNames returns all node names in sorted order.
func (p *Program) NodeNames() []string {
	names := make([]string, 0, len(p.nodes))
	for name := range p.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeCount returns the number of nodes.
func (p *Program) NodeCount() int {
	return len(p.nodes)
}

// InitialValue returns the declared default for a variable.
func (p *Program) InitialValue(name string) (types.Value, bool) {
	v, ok := p.initialValues[name]
	return v, ok
}

// InitialValueNames returns the declared variable names in sorted order.
func (p *Program) InitialValueNames() []string {
	names := make([]string, 0, len(p.initialValues))
	for name := range p.initialValues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
