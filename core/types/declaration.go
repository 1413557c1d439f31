package types

import "strings"

// Declaration records a known symbol: a script variable (conventionally
// prefixed with $) or a host function. Declarations come from three
// places: the embedding host, <<declare>> statements, and inference over
// <<set>> statements; the last kind is marked implicit.
type Declaration struct {
	Name           string
	Type           Type
	DefaultValue   Value
	Description    string
	SourceFileName string
	SourceNodeName string
	Range          Range
	IsImplicit     bool
}

// IsVariable reports whether the declaration names a script variable
// rather than a function symbol.
func (d Declaration) IsVariable() bool {
	return strings.HasPrefix(d.Name, "$")
}

// DeclarationSet accumulates declarations by name, preserving insertion
// order so diagnostics and emitted tables stay deterministic.
type DeclarationSet struct {
	byName map[string]int
	decls  []Declaration
}

func NewDeclarationSet() *DeclarationSet {
	return &DeclarationSet{byName: make(map[string]int)}
}

// Add inserts or replaces the declaration for d.Name. An explicit
// declaration always wins over an implicit one; an implicit declaration
// never overwrites an explicit one.
func (s *DeclarationSet) Add(d Declaration) {
	if i, ok := s.byName[d.Name]; ok {
		if s.decls[i].IsImplicit || !d.IsImplicit {
			s.decls[i] = d
		}
		return
	}
	s.byName[d.Name] = len(s.decls)
	s.decls = append(s.decls, d)
}

// Lookup returns the declaration for name, if any.
func (s *DeclarationSet) Lookup(name string) (Declaration, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Declaration{}, false
	}
	return s.decls[i], true
}

// All returns the declarations in insertion order. The slice is shared;
// callers must not mutate it.
func (s *DeclarationSet) All() []Declaration {
	return s.decls
}

// Len returns the number of distinct declared names.
func (s *DeclarationSet) Len() int {
	return len(s.decls)
}
