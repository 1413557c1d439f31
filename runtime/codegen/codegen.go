// Package codegen lowers the checked syntax tree to stack-machine
// bytecode.
//
// The emitter walks statements once, emitting with symbolic labels,
// then patches every jump with its resolved program counter. There are
// no arithmetic opcodes: operators lower to CALL_FUNC against the
// built-in operator functions, picked by the operand type the type
// pass annotated.
package codegen

import (
	"fmt"
	"strings"

	"github.com/spindle-lang/spindle/core/ir"
	"github.com/spindle-lang/spindle/core/types"
	"github.com/spindle-lang/spindle/runtime/parser"
)

// EmitNode compiles one node declaration to bytecode.
func EmitNode(file *parser.File, decl *parser.NodeDecl) (*ir.Node, []types.Diagnostic) {
	e := &emitter{
		file: file,
		node: &ir.Node{
			Name:       decl.Title,
			Labels:     make(map[string]int),
			Tags:       decl.Tags,
			SourceFile: file.FileName,
		},
	}
	for _, h := range decl.Headers {
		e.node.Headers = append(e.node.Headers, ir.Header{Key: h.Key, Value: h.Value})
	}
	e.block(decl.Body)
	e.emit(ir.Instruction{Op: ir.OpStop})
	e.patchJumps()
	return e.node, e.diags
}

type emitter struct {
	file   *parser.File
	node   *ir.Node
	labels int
	diags  []types.Diagnostic
}

func (e *emitter) emit(in ir.Instruction) {
	e.node.Instructions = append(e.node.Instructions, in)
}

func (e *emitter) newLabel(hint string) string {
	e.labels++
	return fmt.Sprintf("L%d_%s", e.labels, hint)
}

func (e *emitter) defineLabel(name string) {
	e.node.Labels[name] = len(e.node.Instructions)
}

// patchJumps resolves every symbolic label to its program counter.
// An unresolvable label is an emitter bug, reported as an internal
// diagnostic rather than a panic.
func (e *emitter) patchJumps() {
	for i := range e.node.Instructions {
		in := &e.node.Instructions[i]
		switch in.Op {
		case ir.OpJumpTo, ir.OpJumpIfFalse, ir.OpAddOption:
			if in.Label == "" {
				continue
			}
			pc, ok := e.node.Labels[in.Label]
			if !ok {
				e.diags = append(e.diags, types.Diagnostic{
					Kind:     types.InternalError,
					Severity: types.SeverityError,
					Message:  fmt.Sprintf("node %s: unresolved label %s", e.node.Name, in.Label),
					FileName: e.file.FileName,
				})
				continue
			}
			in.Dest = pc
		}
	}
}

func (e *emitter) block(b *parser.Block) {
	if b == nil {
		return
	}
	for _, stmt := range b.Statements {
		e.statement(stmt)
	}
}

func (e *emitter) statement(stmt parser.Stmt) {
	switch s := stmt.(type) {
	case *parser.LineStmt:
		k := e.substitutions(s.Parts)
		e.emit(ir.Instruction{Op: ir.OpRunLine, Str: s.LineID, Count: k})
	case *parser.SetStmt:
		e.expr(s.Value)
		e.emit(ir.Instruction{Op: ir.OpStoreVariable, Str: s.Variable})
		e.emit(ir.Instruction{Op: ir.OpPop})
	case *parser.DeclareStmt:
		// Declarations are compile-time only; they emit nothing.
	case *parser.IfStmt:
		e.ifStmt(s)
	case *parser.ShortcutGroup:
		e.shortcutGroup(s)
	case *parser.JumpStmt:
		if s.TargetExpr != nil {
			e.expr(s.TargetExpr)
		} else {
			e.emit(ir.Instruction{Op: ir.OpPushString, Str: s.Target})
		}
		e.emit(ir.Instruction{Op: ir.OpRunNode})
	case *parser.CommandStmt:
		k := e.substitutions(s.Parts)
		e.emit(ir.Instruction{Op: ir.OpRunCommand, Str: renderCommandText(s.Parts), Count: k})
	case *parser.CallStmt:
		for _, arg := range s.Call.Args {
			e.expr(arg)
		}
		e.emit(ir.Instruction{Op: ir.OpCallFunc, Str: s.Call.Name, Count: len(s.Call.Args)})
		e.emit(ir.Instruction{Op: ir.OpPop})
	}
}

// substitutions emits the embedded expressions of a line or command in
// order and returns how many values were pushed.
func (e *emitter) substitutions(parts []parser.LinePart) int {
	k := 0
	for _, part := range parts {
		if part.Expr != nil {
			e.expr(part.Expr)
			k++
		}
	}
	return k
}

// renderCommandText flattens command parts into the host-facing text,
// with positional placeholders standing in for the expressions.
func renderCommandText(parts []parser.LinePart) string {
	var b strings.Builder
	expr := 0
	for _, part := range parts {
		if part.Expr != nil {
			fmt.Fprintf(&b, "{%d}", expr)
			expr++
			continue
		}
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}

func (e *emitter) ifStmt(s *parser.IfStmt) {
	end := e.newLabel("endif")
	for _, clause := range s.Clauses {
		next := e.newLabel("skipclause")
		e.expr(clause.Condition)
		e.emit(ir.Instruction{Op: ir.OpJumpIfFalse, Label: next})
		e.block(clause.Body)
		e.emit(ir.Instruction{Op: ir.OpJumpTo, Label: end})
		e.defineLabel(next)
	}
	e.block(s.ElseBody)
	e.defineLabel(end)
}

func (e *emitter) shortcutGroup(s *parser.ShortcutGroup) {
	end := e.newLabel("groupend")
	dests := make([]string, len(s.Options))
	for i, opt := range s.Options {
		dests[i] = e.newLabel("option")
		k := e.substitutions(opt.Line.Parts)
		hasCondition := opt.Condition != nil
		if hasCondition {
			e.expr(opt.Condition)
		}
		e.emit(ir.Instruction{
			Op:    ir.OpAddOption,
			Str:   opt.Line.LineID,
			Label: dests[i],
			Count: k,
			Flag:  hasCondition,
		})
	}
	e.emit(ir.Instruction{Op: ir.OpShowOptions})
	for i, opt := range s.Options {
		e.defineLabel(dests[i])
		e.block(opt.Body)
		e.emit(ir.Instruction{Op: ir.OpJumpTo, Label: end})
	}
	e.defineLabel(end)
}

func (e *emitter) expr(expr parser.Expr) {
	switch v := expr.(type) {
	case *parser.NumberLit:
		e.emit(ir.Instruction{Op: ir.OpPushFloat, Float: v.Value})
	case *parser.StringLit:
		e.emit(ir.Instruction{Op: ir.OpPushString, Str: v.Value})
	case *parser.BoolLit:
		e.emit(ir.Instruction{Op: ir.OpPushBool, Flag: v.Value})
	case *parser.NullLit:
		e.emit(ir.Instruction{Op: ir.OpPushNull})
	case *parser.VarExpr:
		e.emit(ir.Instruction{Op: ir.OpPushVariable, Str: v.Name})
	case *parser.UnaryExpr:
		e.expr(v.Operand)
		name := "Bool.Not"
		if v.Op == "-" {
			name = "Number.UnaryMinus"
		}
		e.emit(ir.Instruction{Op: ir.OpCallFunc, Str: name, Count: 1})
	case *parser.BinaryExpr:
		e.expr(v.Left)
		e.expr(v.Right)
		e.emit(ir.Instruction{Op: ir.OpCallFunc, Str: operatorFunc(v.Op, v.OperandType), Count: 2})
	case *parser.FuncCallExpr:
		for _, arg := range v.Args {
			e.expr(arg)
		}
		e.emit(ir.Instruction{Op: ir.OpCallFunc, Str: v.Name, Count: len(v.Args)})
	}
}

// operatorFunc maps an operator and its resolved operand type to the
// built-in library function it lowers to.
func operatorFunc(op string, operand types.Type) string {
	switch op {
	case "+":
		if operand.Kind == types.TypeString {
			return "String.Concat"
		}
		return "Number.Add"
	case "-":
		return "Number.Minus"
	case "*":
		return "Number.Multiply"
	case "/":
		return "Number.Divide"
	case "%":
		return "Number.Modulo"
	case "<":
		return "Number.LessThan"
	case "<=":
		return "Number.LessThanOrEqualTo"
	case ">":
		return "Number.GreaterThan"
	case ">=":
		return "Number.GreaterThanOrEqualTo"
	case "&&":
		return "Bool.And"
	case "||":
		return "Bool.Or"
	case "==", "!=":
		prefix := "Number"
		switch operand.Kind {
		case types.TypeString:
			prefix = "String"
		case types.TypeBool:
			prefix = "Bool"
		}
		if op == "==" {
			return prefix + ".EqualTo"
		}
		return prefix + ".NotEqualTo"
	default:
		return "Number.Add"
	}
}
