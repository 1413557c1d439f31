// Package analysis implements the semantic passes that run between
// parsing and code generation: declaration collection, type checking
// with inference, string table generation, and last-line tagging.
//
// Each pass is a plain function over the syntax tree plus a shared
// State; passes accumulate diagnostics instead of failing fast.
package analysis

import (
	"fmt"
	"strings"

	"github.com/spindle-lang/spindle/core/library"
	"github.com/spindle-lang/spindle/core/types"
	"github.com/spindle-lang/spindle/runtime/parser"
)

// State threads the accumulated knowledge through the passes.
type State struct {
	Declarations *types.DeclarationSet
	Diagnostics  []types.Diagnostic
}

func NewState() *State {
	return &State{Declarations: types.NewDeclarationSet()}
}

func (s *State) errorf(kind types.DiagnosticKind, file *parser.File, r types.Range, format string, args ...any) {
	s.Diagnostics = append(s.Diagnostics, types.Diagnostic{
		Kind:         kind,
		Severity:     types.SeverityError,
		Message:      fmt.Sprintf(format, args...),
		FileName:     file.FileName,
		Range:        r,
		ContextLines: types.ContextAround(file.Source, r.Start),
	})
}

func (s *State) warnf(kind types.DiagnosticKind, file *parser.File, r types.Range, format string, args ...any) {
	s.Diagnostics = append(s.Diagnostics, types.Diagnostic{
		Kind:         kind,
		Severity:     types.SeverityWarning,
		Message:      fmt.Sprintf(format, args...),
		FileName:     file.FileName,
		Range:        r,
		ContextLines: types.ContextAround(file.Source, r.Start),
	})
}

// reservedPrefixes cover the synthetic operator namespaces the code
// generator lowers into; user declarations must stay out of them.
var reservedPrefixes = []string{"Number.", "String.", "Bool."}

func isReservedName(name string) bool {
	trimmed := strings.TrimPrefix(name, "$")
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// RegisterInitialDeclarations seeds the state with caller-supplied
// declarations and the signatures of every library handed to the
// compiler.
func RegisterInitialDeclarations(state *State, decls []types.Declaration, libs ...*library.Library) {
	for _, d := range decls {
		state.Declarations.Add(d)
	}
	for _, lib := range libs {
		if lib == nil {
			continue
		}
		for _, d := range lib.Declarations() {
			state.Declarations.Add(d)
		}
	}
}

// CollectDeclarations walks every file: each <<declare>> contributes an
// explicit declaration, and each <<set>> to an undeclared variable
// contributes an implicit one, typed Any when the value's type cannot be
// inferred here (the type checker may narrow it later).
func CollectDeclarations(state *State, files []*parser.File) {
	for _, file := range files {
		for _, node := range file.Nodes {
			c := &declCollector{state: state, file: file, node: node}
			c.block(node.Body)
		}
	}
}

type declCollector struct {
	state *State
	file  *parser.File
	node  *parser.NodeDecl
}

func (c *declCollector) block(b *parser.Block) {
	if b == nil {
		return
	}
	for _, stmt := range b.Statements {
		switch s := stmt.(type) {
		case *parser.DeclareStmt:
			c.declare(s)
		case *parser.SetStmt:
			c.set(s)
		case *parser.IfStmt:
			for _, clause := range s.Clauses {
				c.block(clause.Body)
			}
			c.block(s.ElseBody)
		case *parser.ShortcutGroup:
			for _, opt := range s.Options {
				c.block(opt.Body)
			}
		}
	}
}

func (c *declCollector) declare(s *parser.DeclareStmt) {
	if isReservedName(s.Variable) {
		c.state.errorf(types.ReservedName, c.file, s.VarRange,
			"%s is a reserved name", s.Variable)
		return
	}
	value, valueType, ok := ConstantValue(s.Default)
	if !ok {
		c.state.errorf(types.TypeMismatch, c.file, s.Default.Span(),
			"the default value of %s must be a constant expression", s.Variable)
		return
	}
	declared := valueType
	if s.TypeName != "" {
		annotated, known := types.ParseTypeName(s.TypeName)
		if !known {
			c.state.errorf(types.TypeMismatch, c.file, s.Range,
				"unknown type %q in declare", s.TypeName)
			return
		}
		if !annotated.AssignableFrom(valueType) {
			c.state.errorf(types.TypeMismatch, c.file, s.Default.Span(),
				"%s is declared as %s but its default value is %s",
				s.Variable, annotated, valueType)
			return
		}
		declared = annotated
	}
	if existing, ok := c.state.Declarations.Lookup(s.Variable); ok && !existing.IsImplicit {
		c.state.errorf(types.ReservedName, c.file, s.VarRange,
			"%s was already declared in %s", s.Variable, existing.SourceFileName)
		return
	}
	c.state.Declarations.Add(types.Declaration{
		Name:           s.Variable,
		Type:           declared,
		DefaultValue:   value,
		SourceFileName: c.file.FileName,
		SourceNodeName: c.node.Title,
		Range:          s.Range,
	})
}

func (c *declCollector) set(s *parser.SetStmt) {
	if _, ok := c.state.Declarations.Lookup(s.Variable); ok {
		return
	}
	if isReservedName(s.Variable) {
		c.state.errorf(types.ReservedName, c.file, s.VarRange,
			"%s is a reserved name", s.Variable)
		return
	}
	// An uninferable value still declares the variable, as Any; the
	// type pass narrows it once usage pins the type down.
	inferred := InferType(s.Value, c.state.Declarations)
	c.state.Declarations.Add(types.Declaration{
		Name:           s.Variable,
		Type:           inferred,
		DefaultValue:   zeroValue(inferred),
		SourceFileName: c.file.FileName,
		SourceNodeName: c.node.Title,
		Range:          s.Range,
		IsImplicit:     true,
	})
}

// ConstantValue folds an expression into a compile-time value, when it
// is one. Only literals and unary minus over a number literal qualify.
func ConstantValue(e parser.Expr) (types.Value, types.Type, bool) {
	switch v := e.(type) {
	case *parser.NumberLit:
		return types.NumberValue(v.Value), types.NumberType, true
	case *parser.StringLit:
		return types.StringValue(v.Value), types.StringType, true
	case *parser.BoolLit:
		return types.BoolValue(v.Value), types.BoolType, true
	case *parser.NullLit:
		return types.Null, types.AnyType, true
	case *parser.UnaryExpr:
		if v.Op != "-" {
			return types.Null, types.AnyType, false
		}
		if n, ok := v.Operand.(*parser.NumberLit); ok {
			return types.NumberValue(-n.Value), types.NumberType, true
		}
	}
	return types.Null, types.AnyType, false
}

// InferType computes the type of an expression from literals, known
// declarations, and operator result types, without reporting errors.
func InferType(e parser.Expr, decls *types.DeclarationSet) types.Type {
	switch v := e.(type) {
	case *parser.NumberLit:
		return types.NumberType
	case *parser.StringLit:
		return types.StringType
	case *parser.BoolLit:
		return types.BoolType
	case *parser.NullLit:
		return types.AnyType
	case *parser.VarExpr:
		if d, ok := decls.Lookup(v.Name); ok {
			return d.Type
		}
		return types.AnyType
	case *parser.UnaryExpr:
		if v.Op == "-" {
			return types.NumberType
		}
		return types.BoolType
	case *parser.BinaryExpr:
		switch v.Op {
		case "+":
			left := InferType(v.Left, decls)
			if left.Kind != types.TypeAny {
				return left
			}
			return InferType(v.Right, decls)
		case "-", "*", "/", "%":
			return types.NumberType
		default:
			return types.BoolType
		}
	case *parser.FuncCallExpr:
		if d, ok := decls.Lookup(v.Name); ok && d.Type.Kind == types.TypeFunction && d.Type.Returns != nil {
			return *d.Type.Returns
		}
		return types.AnyType
	default:
		return types.AnyType
	}
}

func zeroValue(t types.Type) types.Value {
	switch t.Kind {
	case types.TypeNumber:
		return types.NumberValue(0)
	case types.TypeString:
		return types.StringValue("")
	case types.TypeBool:
		return types.BoolValue(false)
	default:
		return types.Null
	}
}
