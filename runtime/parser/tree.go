package parser

import (
	"github.com/spindle-lang/spindle/core/types"
)

// File is the concrete syntax tree for one source file.
type File struct {
	FileName string
	Source   string
	Nodes    []*NodeDecl
}

// NodeDecl is one `headers --- body ===` block.
type NodeDecl struct {
	Title      string
	TitleRange types.Range
	Headers    []HeaderDecl
	Tags       []string // split from the tags: header
	Body       *Block
}

// HeaderDecl is one `key: value` line before ---.
type HeaderDecl struct {
	Key   string
	Value string
	Range types.Range
}

// Block is a statement list sharing one indentation level. It is the
// unit the last-line tagger walks: a line and an option group are
// adjacent only when they sit in the same Block.
type Block struct {
	Statements []Stmt
}

// Stmt is the tagged union of statements; dispatch is by type switch.
type Stmt interface {
	stmtNode()
	Span() types.Range
}

// LinePart is one fragment of a line: either literal text or an
// embedded expression. Exactly one of Text/Expr is meaningful.
type LinePart struct {
	Text string
	Expr Expr
}

// Hashtag is trailing `#tag` metadata.
type Hashtag struct {
	Text  string
	Range types.Range
}

// LineStmt is a player-facing utterance.
type LineStmt struct {
	Character string // optional speaker prefix, without the colon
	Parts     []LinePart
	Hashtags  []Hashtag
	LineID    string // explicit #line: tag; otherwise assigned by the compiler
	Range     types.Range
}

// ShortcutGroup is a run of consecutive -> options at one level,
// compiled into one option set.
type ShortcutGroup struct {
	Options []*ShortcutOption
	Range   types.Range
}

// ShortcutOption is a single -> entry with its optional condition and
// indented body.
type ShortcutOption struct {
	Line      *LineStmt
	Condition Expr   // nil when unconditional
	Body      *Block // nil when the option has no indented body
	Once      bool   // spelled ->> instead of ->
}

// IfStmt is an if/elseif/else/endif chain.
type IfStmt struct {
	Clauses  []IfClause
	ElseBody *Block // nil when there is no else
	Range    types.Range
}

// IfClause pairs one condition with its body.
type IfClause struct {
	Condition Expr
	Body      *Block
}

// SetStmt is `<<set $v = expr>>` (or `to` in place of `=`).
type SetStmt struct {
	Variable string
	VarRange types.Range
	Value    Expr
	Range    types.Range
}

// DeclareStmt is `<<declare $v = expr (as type)?>>`.
type DeclareStmt struct {
	Variable string
	VarRange types.Range
	Default  Expr
	TypeName string // the `as` annotation, empty when inferred
	Range    types.Range
}

// JumpStmt is `<<jump Node>>` or `<<jump {expr}>>`. Exactly one of
// Target/TargetExpr is set; a static target is checked at compile time.
type JumpStmt struct {
	Target     string
	TargetExpr Expr
	Range      types.Range
}

// CommandStmt is a free-form `<<verb rest>>` handed to the host, with
// interpolated expressions preserved as parts.
type CommandStmt struct {
	Parts    []LinePart
	Hashtags []Hashtag
	Range    types.Range
}

// Name returns the command verb: the first word of the leading text
// part.
func (c *CommandStmt) Name() string {
	if len(c.Parts) == 0 || c.Parts[0].Expr != nil {
		return ""
	}
	text := c.Parts[0].Text
	for i := 0; i < len(text); i++ {
		if text[i] == ' ' || text[i] == '\t' {
			return text[:i]
		}
	}
	return text
}

// CallStmt is `<<call fn(args)>>`.
type CallStmt struct {
	Call  *FuncCallExpr
	Range types.Range
}

func (*LineStmt) stmtNode()      {}
func (*ShortcutGroup) stmtNode() {}
func (*IfStmt) stmtNode()        {}
func (*SetStmt) stmtNode()       {}
func (*DeclareStmt) stmtNode()   {}
func (*JumpStmt) stmtNode()      {}
func (*CommandStmt) stmtNode()   {}
func (*CallStmt) stmtNode()      {}

func (s *LineStmt) Span() types.Range      { return s.Range }
func (s *ShortcutGroup) Span() types.Range { return s.Range }
func (s *IfStmt) Span() types.Range        { return s.Range }
func (s *SetStmt) Span() types.Range       { return s.Range }
func (s *DeclareStmt) Span() types.Range   { return s.Range }
func (s *JumpStmt) Span() types.Range      { return s.Range }
func (s *CommandStmt) Span() types.Range   { return s.Range }
func (s *CallStmt) Span() types.Range      { return s.Range }

// Expr is the tagged union of expressions.
type Expr interface {
	exprNode()
	Span() types.Range
}

type NumberLit struct {
	Value float32
	Raw   string
	Range types.Range
}

type StringLit struct {
	Value string
	Range types.Range
}

type BoolLit struct {
	Value bool
	Range types.Range
}

type NullLit struct {
	Range types.Range
}

type VarExpr struct {
	Name  string // includes the leading $
	Range types.Range
}

// UnaryExpr is `-x` or `!x` / `not x`.
type UnaryExpr struct {
	Op      string
	Operand Expr
	Range   types.Range

	// OperandType is filled in by type analysis and drives which
	// library function the emitter lowers the operator to.
	OperandType types.Type
}

// BinaryExpr is any infix operation. Word aliases are normalized to
// their symbol spelling (and → &&, or → ||, is → ==).
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
	Range types.Range

	// OperandType is filled in by type analysis and drives which
	// library function the emitter lowers the operator to.
	OperandType types.Type
}

type FuncCallExpr struct {
	Name  string
	Args  []Expr
	Range types.Range
}

func (*NumberLit) exprNode()    {}
func (*StringLit) exprNode()    {}
func (*BoolLit) exprNode()      {}
func (*NullLit) exprNode()      {}
func (*VarExpr) exprNode()      {}
func (*UnaryExpr) exprNode()    {}
func (*BinaryExpr) exprNode()   {}
func (*FuncCallExpr) exprNode() {}

func (e *NumberLit) Span() types.Range    { return e.Range }
func (e *StringLit) Span() types.Range    { return e.Range }
func (e *BoolLit) Span() types.Range      { return e.Range }
func (e *NullLit) Span() types.Range      { return e.Range }
func (e *VarExpr) Span() types.Range      { return e.Range }
func (e *UnaryExpr) Span() types.Range    { return e.Range }
func (e *BinaryExpr) Span() types.Range   { return e.Range }
func (e *FuncCallExpr) Span() types.Range { return e.Range }
