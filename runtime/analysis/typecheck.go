package analysis

import (
	"github.com/spindle-lang/spindle/core/types"
	"github.com/spindle-lang/spindle/runtime/parser"
)

// CheckTypes unifies every expression bottom-up against the operator
// signature sets, narrowing implicitly declared variables as evidence
// accumulates, and annotates operator nodes with the operand type the
// emitter lowers against.
func CheckTypes(state *State, files []*parser.File) {
	for _, file := range files {
		for _, node := range file.Nodes {
			tc := &typeChecker{state: state, file: file}
			tc.block(node.Body)
		}
	}
}

type typeChecker struct {
	state *State
	file  *parser.File
}

func (tc *typeChecker) block(b *parser.Block) {
	if b == nil {
		return
	}
	for _, stmt := range b.Statements {
		switch s := stmt.(type) {
		case *parser.LineStmt:
			for _, part := range s.Parts {
				if part.Expr != nil {
					tc.expr(part.Expr)
				}
			}
		case *parser.SetStmt:
			tc.set(s)
		case *parser.DeclareStmt:
			// handled by the declaration pass
		case *parser.IfStmt:
			for _, clause := range s.Clauses {
				tc.condition(clause.Condition)
				tc.block(clause.Body)
			}
			tc.block(s.ElseBody)
		case *parser.ShortcutGroup:
			for _, opt := range s.Options {
				for _, part := range opt.Line.Parts {
					if part.Expr != nil {
						tc.expr(part.Expr)
					}
				}
				if opt.Condition != nil {
					tc.condition(opt.Condition)
				}
				tc.block(opt.Body)
			}
		case *parser.JumpStmt:
			if s.TargetExpr != nil {
				t := tc.expr(s.TargetExpr)
				tc.require(s.TargetExpr, t, types.StringType, "jump target")
			}
		case *parser.CommandStmt:
			for _, part := range s.Parts {
				if part.Expr != nil {
					tc.expr(part.Expr)
				}
			}
		case *parser.CallStmt:
			tc.expr(s.Call)
		}
	}
}

func (tc *typeChecker) set(s *parser.SetStmt) {
	valueType := tc.expr(s.Value)
	decl, ok := tc.state.Declarations.Lookup(s.Variable)
	if !ok {
		tc.state.errorf(types.UndeclaredVariable, tc.file, s.VarRange,
			"%s is set but never declared, and its type could not be inferred", s.Variable)
		return
	}
	if decl.Type.Kind == types.TypeAny && valueType.Kind != types.TypeAny {
		tc.narrow(s.Variable, valueType)
		return
	}
	if !decl.Type.AssignableFrom(valueType) {
		tc.state.errorf(types.TypeMismatch, tc.file, s.Value.Span(),
			"%s is %s but is being set to %s", s.Variable, decl.Type, valueType)
	}
}

func (tc *typeChecker) condition(e parser.Expr) {
	t := tc.expr(e)
	tc.require(e, t, types.BoolType, "condition")
}

func (tc *typeChecker) require(e parser.Expr, got, want types.Type, what string) {
	if got.Kind == types.TypeAny {
		tc.narrowExpr(e, want)
		return
	}
	if !want.AssignableFrom(got) {
		tc.state.errorf(types.TypeMismatch, tc.file, e.Span(),
			"%s must be %s, got %s", what, want, got)
	}
}

// narrow rewrites an implicit Any declaration to a concrete type once
// usage pins it down.
func (tc *typeChecker) narrow(name string, t types.Type) {
	decl, ok := tc.state.Declarations.Lookup(name)
	if !ok || decl.Type.Kind != types.TypeAny {
		return
	}
	decl.Type = t
	decl.DefaultValue = zeroValue(t)
	decl.IsImplicit = true
	tc.state.Declarations.Add(decl)
}

func (tc *typeChecker) narrowExpr(e parser.Expr, t types.Type) {
	if v, ok := e.(*parser.VarExpr); ok {
		tc.narrow(v.Name, t)
	}
}

// expr type-checks one expression tree and returns its type. Errors
// yield Any so a single fault does not cascade.
func (tc *typeChecker) expr(e parser.Expr) types.Type {
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
		decl, ok := tc.state.Declarations.Lookup(v.Name)
		if !ok {
			tc.state.errorf(types.UndeclaredVariable, tc.file, v.Range,
				"%s is not declared", v.Name)
			return types.AnyType
		}
		return decl.Type
	case *parser.UnaryExpr:
		return tc.unary(v)
	case *parser.BinaryExpr:
		return tc.binary(v)
	case *parser.FuncCallExpr:
		return tc.call(v)
	default:
		return types.AnyType
	}
}

func (tc *typeChecker) unary(e *parser.UnaryExpr) types.Type {
	operand := tc.expr(e.Operand)
	switch e.Op {
	case "-":
		tc.require(e.Operand, operand, types.NumberType, "operand of unary -")
		e.OperandType = types.NumberType
		return types.NumberType
	default: // !
		tc.require(e.Operand, operand, types.BoolType, "operand of !")
		e.OperandType = types.BoolType
		return types.BoolType
	}
}

// signature is one operator overload.
type signature struct {
	operand types.Type
	result  types.Type
}

// binaryOverloads lists the signature set per operator; both operands
// share one type in every overload the language has.
var binaryOverloads = map[string][]signature{
	"+":  {{types.NumberType, types.NumberType}, {types.StringType, types.StringType}},
	"-":  {{types.NumberType, types.NumberType}},
	"*":  {{types.NumberType, types.NumberType}},
	"/":  {{types.NumberType, types.NumberType}},
	"%":  {{types.NumberType, types.NumberType}},
	"<":  {{types.NumberType, types.BoolType}},
	"<=": {{types.NumberType, types.BoolType}},
	">":  {{types.NumberType, types.BoolType}},
	">=": {{types.NumberType, types.BoolType}},
	"&&": {{types.BoolType, types.BoolType}},
	"||": {{types.BoolType, types.BoolType}},
}

func (tc *typeChecker) binary(e *parser.BinaryExpr) types.Type {
	left := tc.expr(e.Left)
	right := tc.expr(e.Right)

	if e.Op == "==" || e.Op == "!=" {
		return tc.equality(e, left, right)
	}

	overloads := binaryOverloads[e.Op]
	// Keep the overloads either operand could inhabit.
	var surviving []signature
	for _, sig := range overloads {
		if sig.operand.AssignableFrom(left) && sig.operand.AssignableFrom(right) {
			surviving = append(surviving, sig)
		}
	}
	switch len(surviving) {
	case 0:
		tc.state.errorf(types.TypeMismatch, tc.file, e.Range,
			"operator %s cannot be applied to %s and %s", e.Op, left, right)
		return types.AnyType
	case 1:
		sig := surviving[0]
		tc.narrowExpr(e.Left, sig.operand)
		tc.narrowExpr(e.Right, sig.operand)
		e.OperandType = sig.operand
		return sig.result
	default:
		// Tie-break: prefer the overload whose operand type was
		// already concrete at the call site.
		concrete := left
		if concrete.Kind == types.TypeAny {
			concrete = right
		}
		if concrete.Kind != types.TypeAny {
			for _, sig := range surviving {
				if sig.operand.Equal(concrete) {
					tc.narrowExpr(e.Left, sig.operand)
					tc.narrowExpr(e.Right, sig.operand)
					e.OperandType = sig.operand
					return sig.result
				}
			}
		}
		tc.state.errorf(types.AmbiguousType, tc.file, e.Range,
			"operator %s is ambiguous here; declare the operand types", e.Op)
		return types.AnyType
	}
}

func (tc *typeChecker) equality(e *parser.BinaryExpr, left, right types.Type) types.Type {
	switch {
	case left.Kind != types.TypeAny && right.Kind != types.TypeAny:
		if !left.Equal(right) {
			tc.state.errorf(types.TypeMismatch, tc.file, e.Range,
				"operator %s cannot compare %s with %s", e.Op, left, right)
			return types.BoolType
		}
		e.OperandType = left
	case left.Kind != types.TypeAny:
		tc.narrowExpr(e.Right, left)
		e.OperandType = left
	case right.Kind != types.TypeAny:
		tc.narrowExpr(e.Left, right)
		e.OperandType = right
	default:
		tc.state.errorf(types.AmbiguousType, tc.file, e.Range,
			"operator %s is ambiguous here; declare the operand types", e.Op)
	}
	return types.BoolType
}

func (tc *typeChecker) call(e *parser.FuncCallExpr) types.Type {
	argTypes := make([]types.Type, len(e.Args))
	for i, arg := range e.Args {
		argTypes[i] = tc.expr(arg)
	}
	decl, ok := tc.state.Declarations.Lookup(e.Name)
	if !ok {
		tc.state.warnf(types.UndeclaredVariable, tc.file, e.Range,
			"function %s is not declared; it must be registered with the host before running", e.Name)
		return types.AnyType
	}
	if decl.Type.Kind != types.TypeFunction {
		tc.state.errorf(types.TypeMismatch, tc.file, e.Range,
			"%s is not a function", e.Name)
		return types.AnyType
	}
	if len(argTypes) != len(decl.Type.Params) {
		tc.state.errorf(types.TypeMismatch, tc.file, e.Range,
			"%s takes %d arguments, got %d", e.Name, len(decl.Type.Params), len(argTypes))
	} else {
		for i, want := range decl.Type.Params {
			if want.AssignableFrom(argTypes[i]) {
				tc.narrowExpr(e.Args[i], want)
				continue
			}
			tc.state.errorf(types.TypeMismatch, tc.file, e.Args[i].Span(),
				"argument %d of %s must be %s, got %s", i+1, e.Name, want, argTypes[i])
		}
	}
	if decl.Type.Returns != nil {
		return *decl.Type.Returns
	}
	return types.AnyType
}
