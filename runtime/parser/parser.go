// Package parser turns a token stream into a concrete syntax tree.
//
// The parser is recursive descent with bounded lookahead. It never
// stops at the first problem: a statement that fails to parse is
// reported, the parser skips to the next synchronizing token (>>, end
// of line, ===), and parsing continues so that one malformed line does
// not hide diagnostics further down the file.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spindle-lang/spindle/core/types"
	"github.com/spindle-lang/spindle/runtime/lexer"
)

// Parse lexes and parses one source file. Diagnostics from both stages
// are merged in source order.
func Parse(fileName, source string) (*File, []types.Diagnostic) {
	tokens, diags := lexer.New(fileName, source).Tokens()
	p := &parser{
		fileName: fileName,
		source:   source,
		tokens:   tokens,
		diags:    diags,
	}
	file := p.parseFile()
	return file, p.diags
}

type parser struct {
	fileName string
	source   string
	tokens   []lexer.Token
	pos      int
	diags    []types.Diagnostic
}

func (p *parser) current() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *parser) peek(n int) lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) at(tt lexer.TokenType) bool { return p.current().Type == tt }

func (p *parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) accept(tt lexer.TokenType) (lexer.Token, bool) {
	if p.at(tt) {
		return p.advance(), true
	}
	return lexer.Token{}, false
}

func (p *parser) expect(tt lexer.TokenType, what string) (lexer.Token, bool) {
	if tok, ok := p.accept(tt); ok {
		return tok, true
	}
	p.errorf("expected %s, got %s", what, p.current())
	return lexer.Token{}, false
}

func (p *parser) errorf(format string, args ...any) {
	tok := p.current()
	p.diags = append(p.diags, types.Diagnostic{
		Kind:         types.SyntaxError,
		Severity:     types.SeverityError,
		Message:      fmt.Sprintf(format, args...),
		FileName:     p.fileName,
		Range:        tok.Range(),
		ContextLines: types.ContextAround(p.source, tok.Pos),
	})
}

// syncLine skips ahead to the next token that can start a fresh
// statement: past the current line or out of the current construct.
func (p *parser) syncLine() {
	for {
		switch p.current().Type {
		case lexer.EOF, lexer.NODE_END, lexer.DEDENT:
			return
		case lexer.NEWLINE:
			p.advance()
			return
		case lexer.COMMAND_END:
			p.advance()
			return
		default:
			p.advance()
		}
	}
}

func (p *parser) parseFile() *File {
	file := &File{FileName: p.fileName, Source: p.source}
	for !p.at(lexer.EOF) {
		switch p.current().Type {
		case lexer.NEWLINE, lexer.INDENT, lexer.DEDENT:
			p.advance()
		case lexer.IDENT:
			if node := p.parseNode(); node != nil {
				file.Nodes = append(file.Nodes, node)
			}
		default:
			p.errorf("expected a node header, got %s", p.current())
			p.syncLine()
		}
	}
	return file
}

func (p *parser) parseNode() *NodeDecl {
	node := &NodeDecl{}
	for p.at(lexer.IDENT) {
		keyTok := p.advance()
		if _, ok := p.expect(lexer.COLON, "':' after header name"); !ok {
			p.syncLine()
			continue
		}
		valueTok, _ := p.expect(lexer.TEXT, "header value")
		p.accept(lexer.NEWLINE)
		header := HeaderDecl{
			Key:   keyTok.Text,
			Value: strings.TrimSpace(valueTok.Text),
			Range: types.Range{Start: keyTok.Pos, End: valueTok.End},
		}
		node.Headers = append(node.Headers, header)
		switch header.Key {
		case "title":
			node.Title = header.Value
			node.TitleRange = header.Range
		case "tags":
			node.Tags = strings.Fields(header.Value)
		}
	}
	if _, ok := p.expect(lexer.HEADER_DELIM, "'---' after node headers"); !ok {
		p.syncLine()
	}
	if node.Title == "" {
		p.diags = append(p.diags, types.Diagnostic{
			Kind:     types.SyntaxError,
			Severity: types.SeverityError,
			Message:  "node is missing a title header",
			FileName: p.fileName,
			Range:    p.current().Range(),
		})
	}
	node.Body = p.parseBlock()
	if _, ok := p.accept(lexer.NODE_END); !ok {
		p.expect(lexer.NODE_END, "'===' to close the node")
		p.syncLine()
	}
	return node
}

// blockEnd reports whether the current token terminates the block
// being parsed: a dedent, the node end, or an elseif/else/endif command
// belonging to an enclosing if.
func (p *parser) blockEnd() bool {
	switch p.current().Type {
	case lexer.EOF, lexer.NODE_END, lexer.DEDENT:
		return true
	case lexer.COMMAND_START:
		switch p.peek(1).Type {
		case lexer.KW_ELSEIF, lexer.KW_ELSE, lexer.KW_ENDIF:
			return true
		}
	}
	return false
}

func (p *parser) parseBlock() *Block {
	block := &Block{}
	for !p.blockEnd() {
		switch p.current().Type {
		case lexer.NEWLINE:
			p.advance()
		case lexer.INDENT:
			// Indentation is structural only around option bodies;
			// elsewhere deeper lines belong to the same block.
			p.advance()
			inner := p.parseBlock()
			p.accept(lexer.DEDENT)
			block.Statements = append(block.Statements, inner.Statements...)
		default:
			if stmt := p.parseStatement(); stmt != nil {
				block.Statements = append(block.Statements, stmt)
			}
		}
	}
	return block
}

func (p *parser) parseStatement() Stmt {
	switch p.current().Type {
	case lexer.ARROW, lexer.ARROW_ONCE:
		return p.parseShortcutGroup()
	case lexer.COMMAND_START:
		switch p.peek(1).Type {
		case lexer.KW_IF:
			return p.parseIf()
		case lexer.KW_SET:
			return p.parseSet()
		case lexer.KW_DECLARE:
			return p.parseDeclare()
		case lexer.KW_JUMP:
			return p.parseJump()
		case lexer.KW_CALL:
			return p.parseCall()
		default:
			return p.parseCommand()
		}
	case lexer.TEXT, lexer.EXPR_START, lexer.HASHTAG:
		line, _ := p.parseLine(false)
		return line
	default:
		p.errorf("unexpected %s", p.current())
		p.syncLine()
		return nil
	}
}

// parseLine consumes one prose line up to its newline. When
// allowCondition is set (option lines), a trailing <<if expr>> is
// parsed as the option's condition rather than rejected.
func (p *parser) parseLine(allowCondition bool) (*LineStmt, Expr) {
	start := p.current()
	line := &LineStmt{}
	var condition Expr
	for {
		switch p.current().Type {
		case lexer.TEXT:
			tok := p.advance()
			line.Parts = append(line.Parts, LinePart{Text: tok.Text})
		case lexer.EXPR_START:
			p.advance()
			expr := p.parseExpression()
			p.expect(lexer.EXPR_END, "'}' to close the expression")
			line.Parts = append(line.Parts, LinePart{Expr: expr})
		case lexer.HASHTAG:
			tok := p.advance()
			if strings.HasPrefix(tok.Text, "line:") {
				line.LineID = tok.Text
			} else {
				line.Hashtags = append(line.Hashtags, Hashtag{Text: tok.Text, Range: tok.Range()})
			}
		case lexer.COMMAND_START:
			if allowCondition && p.peek(1).Type == lexer.KW_IF {
				p.advance() // <<
				p.advance() // if
				condition = p.parseExpression()
				p.expect(lexer.COMMAND_END, "'>>' to close the option condition")
				continue
			}
			p.errorf("commands must start their own line")
			p.syncLine()
			line.Range = types.Range{Start: start.Pos, End: p.current().Pos}
			p.trimLine(line)
			return line, condition
		case lexer.NEWLINE:
			end := p.advance()
			line.Range = types.Range{Start: start.Pos, End: end.Pos}
			p.splitCharacter(line)
			p.trimLine(line)
			return line, condition
		default:
			line.Range = types.Range{Start: start.Pos, End: p.current().Pos}
			p.splitCharacter(line)
			p.trimLine(line)
			return line, condition
		}
	}
}

// splitCharacter peels a leading `Name:` speaker prefix off the first
// text part.
func (p *parser) splitCharacter(line *LineStmt) {
	if len(line.Parts) == 0 || line.Parts[0].Expr != nil {
		return
	}
	text := line.Parts[0].Text
	colon := strings.IndexByte(text, ':')
	if colon <= 0 {
		return
	}
	name := text[:colon]
	if !isIdentifier(name) {
		return
	}
	line.Character = name
	line.Parts[0].Text = strings.TrimLeft(text[colon+1:], " \t")
	if line.Parts[0].Text == "" && len(line.Parts) > 1 {
		line.Parts = line.Parts[1:]
	}
}

// trimLine strips the whitespace that separated the prose from
// trailing hashtags or conditions.
func (p *parser) trimLine(line *LineStmt) {
	if len(line.Parts) == 0 {
		return
	}
	last := &line.Parts[len(line.Parts)-1]
	if last.Expr == nil {
		last.Text = strings.TrimRight(last.Text, " \t")
		if last.Text == "" {
			line.Parts = line.Parts[:len(line.Parts)-1]
		}
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_',
			'a' <= c && c <= 'z',
			'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (p *parser) parseShortcutGroup() Stmt {
	start := p.current()
	group := &ShortcutGroup{}
	for p.at(lexer.ARROW) || p.at(lexer.ARROW_ONCE) {
		arrow := p.advance()
		line, condition := p.parseLine(true)
		opt := &ShortcutOption{
			Line:      line,
			Condition: condition,
			Once:      arrow.Type == lexer.ARROW_ONCE,
		}
		if _, ok := p.accept(lexer.INDENT); ok {
			opt.Body = p.parseBlock()
			p.expect(lexer.DEDENT, "the end of the option body")
		}
		group.Options = append(group.Options, opt)
		for p.at(lexer.NEWLINE) {
			p.advance()
		}
	}
	group.Range = types.Range{Start: start.Pos, End: p.current().Pos}
	return group
}

func (p *parser) parseIf() Stmt {
	start := p.advance() // <<
	p.advance()          // if
	stmt := &IfStmt{}
	cond := p.parseExpression()
	p.expect(lexer.COMMAND_END, "'>>' after the if condition")
	p.accept(lexer.NEWLINE)
	stmt.Clauses = append(stmt.Clauses, IfClause{Condition: cond, Body: p.parseBlock()})

	for p.at(lexer.COMMAND_START) && p.peek(1).Type == lexer.KW_ELSEIF {
		p.advance()
		p.advance()
		cond := p.parseExpression()
		p.expect(lexer.COMMAND_END, "'>>' after the elseif condition")
		p.accept(lexer.NEWLINE)
		stmt.Clauses = append(stmt.Clauses, IfClause{Condition: cond, Body: p.parseBlock()})
	}
	if p.at(lexer.COMMAND_START) && p.peek(1).Type == lexer.KW_ELSE {
		p.advance()
		p.advance()
		p.expect(lexer.COMMAND_END, "'>>' after else")
		p.accept(lexer.NEWLINE)
		stmt.ElseBody = p.parseBlock()
	}
	if p.at(lexer.COMMAND_START) && p.peek(1).Type == lexer.KW_ENDIF {
		p.advance()
		p.advance()
		p.expect(lexer.COMMAND_END, "'>>' after endif")
		p.accept(lexer.NEWLINE)
	} else {
		p.errorf("expected '<<endif>>' to close the if")
	}
	stmt.Range = types.Range{Start: start.Pos, End: p.current().Pos}
	return stmt
}

func (p *parser) parseSet() Stmt {
	start := p.advance() // <<
	p.advance()          // set
	stmt := &SetStmt{}
	varTok, ok := p.expect(lexer.VARIABLE, "a $variable after set")
	if !ok {
		p.syncLine()
		return nil
	}
	stmt.Variable = varTok.Text
	stmt.VarRange = varTok.Range()
	if _, ok := p.accept(lexer.EQUALS); !ok {
		if _, ok := p.accept(lexer.KW_TO); !ok {
			p.errorf("expected '=' or 'to' in set, got %s", p.current())
			p.syncLine()
			return nil
		}
	}
	stmt.Value = p.parseExpression()
	p.expect(lexer.COMMAND_END, "'>>' to close the set")
	stmt.Range = types.Range{Start: start.Pos, End: p.current().Pos}
	return stmt
}

func (p *parser) parseDeclare() Stmt {
	start := p.advance() // <<
	p.advance()          // declare
	stmt := &DeclareStmt{}
	varTok, ok := p.expect(lexer.VARIABLE, "a $variable after declare")
	if !ok {
		p.syncLine()
		return nil
	}
	stmt.Variable = varTok.Text
	stmt.VarRange = varTok.Range()
	if _, ok := p.accept(lexer.EQUALS); !ok {
		if _, ok := p.accept(lexer.KW_TO); !ok {
			p.errorf("expected '=' or 'to' in declare, got %s", p.current())
			p.syncLine()
			return nil
		}
	}
	stmt.Default = p.parseExpression()
	if _, ok := p.accept(lexer.KW_AS); ok {
		typeTok, ok := p.expect(lexer.IDENT, "a type name after as")
		if ok {
			stmt.TypeName = typeTok.Text
		}
	}
	p.expect(lexer.COMMAND_END, "'>>' to close the declare")
	stmt.Range = types.Range{Start: start.Pos, End: p.current().Pos}
	return stmt
}

func (p *parser) parseJump() Stmt {
	start := p.advance() // <<
	p.advance()          // jump
	stmt := &JumpStmt{}
	switch p.current().Type {
	case lexer.IDENT:
		stmt.Target = p.advance().Text
	case lexer.EXPR_START:
		p.advance()
		stmt.TargetExpr = p.parseExpression()
		p.expect(lexer.EXPR_END, "'}' to close the jump target expression")
	default:
		p.errorf("expected a node name or {expression} after jump, got %s", p.current())
		p.syncLine()
		return nil
	}
	p.expect(lexer.COMMAND_END, "'>>' to close the jump")
	stmt.Range = types.Range{Start: start.Pos, End: p.current().Pos}
	return stmt
}

func (p *parser) parseCall() Stmt {
	start := p.advance() // <<
	p.advance()          // call
	nameTok, ok := p.expect(lexer.IDENT, "a function name after call")
	if !ok {
		p.syncLine()
		return nil
	}
	call := p.parseCallArgs(nameTok)
	p.expect(lexer.COMMAND_END, "'>>' to close the call")
	return &CallStmt{
		Call:  call,
		Range: types.Range{Start: start.Pos, End: p.current().Pos},
	}
}

func (p *parser) parseCommand() Stmt {
	start := p.advance() // <<
	stmt := &CommandStmt{}
	for {
		switch p.current().Type {
		case lexer.COMMAND_TEXT:
			tok := p.advance()
			stmt.Parts = append(stmt.Parts, LinePart{Text: tok.Text})
		case lexer.EXPR_START:
			p.advance()
			expr := p.parseExpression()
			p.expect(lexer.EXPR_END, "'}' to close the expression")
			stmt.Parts = append(stmt.Parts, LinePart{Expr: expr})
		case lexer.KW_RETURN:
			tok := p.advance()
			stmt.Parts = append(stmt.Parts, LinePart{Text: tok.Text})
		case lexer.COMMAND_END:
			p.advance()
			for p.at(lexer.HASHTAG) {
				tok := p.advance()
				stmt.Hashtags = append(stmt.Hashtags, Hashtag{Text: tok.Text, Range: tok.Range()})
			}
			stmt.Range = types.Range{Start: start.Pos, End: p.current().Pos}
			if len(stmt.Parts) == 0 {
				p.errorf("empty command")
				return nil
			}
			return stmt
		case lexer.NEWLINE, lexer.EOF, lexer.NODE_END:
			stmt.Range = types.Range{Start: start.Pos, End: p.current().Pos}
			if len(stmt.Parts) == 0 {
				return nil
			}
			return stmt
		default:
			p.errorf("unexpected %s in command", p.current())
			p.syncLine()
			return nil
		}
	}
}

// Expression parsing: precedence climbing, lowest first.

func (p *parser) parseExpression() Expr {
	return p.parseOr()
}

func (p *parser) parseOr() Expr {
	left := p.parseAnd()
	for p.at(lexer.OR_OR) || p.at(lexer.KW_OR) {
		p.advance()
		right := p.parseAnd()
		left = p.binary("||", left, right)
	}
	return left
}

func (p *parser) parseAnd() Expr {
	left := p.parseEquality()
	for p.at(lexer.AND_AND) || p.at(lexer.KW_AND) {
		p.advance()
		right := p.parseEquality()
		left = p.binary("&&", left, right)
	}
	return left
}

func (p *parser) parseEquality() Expr {
	left := p.parseComparison()
	for {
		var op string
		switch p.current().Type {
		case lexer.EQ_EQ, lexer.KW_IS:
			op = "=="
		case lexer.NOT_EQ:
			op = "!="
		default:
			return left
		}
		p.advance()
		right := p.parseComparison()
		left = p.binary(op, left, right)
	}
}

func (p *parser) parseComparison() Expr {
	left := p.parseAdditive()
	for {
		var op string
		switch p.current().Type {
		case lexer.LT:
			op = "<"
		case lexer.LT_EQ:
			op = "<="
		case lexer.GT:
			op = ">"
		case lexer.GT_EQ:
			op = ">="
		default:
			return left
		}
		p.advance()
		right := p.parseAdditive()
		left = p.binary(op, left, right)
	}
}

func (p *parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for p.at(lexer.PLUS) || p.at(lexer.MINUS) {
		tok := p.advance()
		op := "+"
		if tok.Type == lexer.MINUS {
			op = "-"
		}
		right := p.parseMultiplicative()
		left = p.binary(op, left, right)
	}
	return left
}

func (p *parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for {
		var op string
		switch p.current().Type {
		case lexer.STAR:
			op = "*"
		case lexer.SLASH:
			op = "/"
		case lexer.PERCENT:
			op = "%"
		default:
			return left
		}
		p.advance()
		right := p.parseUnary()
		left = p.binary(op, left, right)
	}
}

func (p *parser) parseUnary() Expr {
	switch p.current().Type {
	case lexer.MINUS:
		tok := p.advance()
		operand := p.parseUnary()
		return &UnaryExpr{
			Op:      "-",
			Operand: operand,
			Range:   types.Range{Start: tok.Pos, End: operand.Span().End},
		}
	case lexer.BANG, lexer.KW_NOT:
		tok := p.advance()
		operand := p.parseUnary()
		return &UnaryExpr{
			Op:      "!",
			Operand: operand,
			Range:   types.Range{Start: tok.Pos, End: operand.Span().End},
		}
	default:
		return p.parsePrimary()
	}
}

func (p *parser) parsePrimary() Expr {
	tok := p.current()
	switch tok.Type {
	case lexer.NUMBER:
		p.advance()
		f, err := strconv.ParseFloat(tok.Text, 32)
		if err != nil {
			p.errorf("malformed number %q", tok.Text)
		}
		return &NumberLit{Value: float32(f), Raw: tok.Text, Range: tok.Range()}
	case lexer.STRING:
		p.advance()
		return &StringLit{Value: tok.Text, Range: tok.Range()}
	case lexer.TRUE:
		p.advance()
		return &BoolLit{Value: true, Range: tok.Range()}
	case lexer.FALSE:
		p.advance()
		return &BoolLit{Value: false, Range: tok.Range()}
	case lexer.NULL:
		p.advance()
		return &NullLit{Range: tok.Range()}
	case lexer.VARIABLE:
		p.advance()
		return &VarExpr{Name: tok.Text, Range: tok.Range()}
	case lexer.IDENT:
		p.advance()
		return p.parseCallArgs(tok)
	case lexer.LPAREN:
		p.advance()
		expr := p.parseExpression()
		p.expect(lexer.RPAREN, "')' to close the parenthesized expression")
		return expr
	default:
		p.errorf("expected an expression, got %s", tok)
		p.advance()
		return &NullLit{Range: tok.Range()}
	}
}

// parseCallArgs parses `(args?)` following a function name. The name
// token has already been consumed.
func (p *parser) parseCallArgs(nameTok lexer.Token) *FuncCallExpr {
	call := &FuncCallExpr{Name: nameTok.Text}
	if _, ok := p.expect(lexer.LPAREN, "'(' after the function name"); !ok {
		call.Range = nameTok.Range()
		return call
	}
	if !p.at(lexer.RPAREN) {
		call.Args = append(call.Args, p.parseExpression())
		for p.at(lexer.COMMA) {
			p.advance()
			call.Args = append(call.Args, p.parseExpression())
		}
	}
	end, _ := p.expect(lexer.RPAREN, "')' to close the argument list")
	call.Range = types.Range{Start: nameTok.Pos, End: end.End}
	return call
}

func (p *parser) binary(op string, left, right Expr) Expr {
	return &BinaryExpr{
		Op:    op,
		Left:  left,
		Right: right,
		Range: types.Range{Start: left.Span().Start, End: right.Span().End},
	}
}
