// Package lexer tokenizes dialogue source text.
//
// The surface syntax mixes prose with structured fragments, so the
// lexer runs a mode stack: Header before ---, Body inside a node,
// Command inside << >>, Expression inside { }, Option after ->, and
// Hashtag for trailing #tags. Entering a construct pushes a mode and
// its terminator pops it. Whitespace is significant only as
// indentation and line endings in Body mode; INDENT and DEDENT tokens
// frame option bodies.
package lexer

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spindle-lang/spindle/core/types"
)

// Mode is one entry of the lexer's mode stack.
type Mode int

const (
	ModeHeader Mode = iota
	ModeBody
	ModeCommand
	ModeExpression
	ModeOption
	ModeHashtag
)

const tabStop = 8

// Lexer scans one source file eagerly and accumulates tokens and
// diagnostics. On an unrecognized character it reports a syntax error,
// skips the character, and keeps going.
type Lexer struct {
	fileName string
	input    string
	pos      int // byte offset
	line     int
	col      int

	modes   []Mode
	indents []int

	tokens []Token
	diags  []types.Diagnostic

	logger *slog.Logger
}

// New creates a lexer for one file.
func New(fileName, source string) *Lexer {
	logLevel := slog.LevelInfo
	if os.Getenv("SPINDLE_DEBUG_LEXER") != "" {
		logLevel = slog.LevelDebug
	}
	return &Lexer{
		fileName: fileName,
		input:    source,
		line:     1,
		col:      1,
		modes:    []Mode{ModeHeader},
		indents:  []int{0},
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		})),
	}
}

// Tokens scans the whole input and returns the token stream and any
// diagnostics. The stream always ends with an EOF token.
func (l *Lexer) Tokens() ([]Token, []types.Diagnostic) {
	for !l.atEOF() {
		switch l.mode() {
		case ModeHeader:
			l.lexHeaderLine()
		default:
			l.lexBodyLine()
		}
	}
	l.closeIndents()
	l.emit(EOF, "", l.position())
	return l.tokens, l.diags
}

func (l *Lexer) mode() Mode          { return l.modes[len(l.modes)-1] }
func (l *Lexer) push(m Mode)         { l.modes = append(l.modes, m) }
func (l *Lexer) pop()                { l.modes = l.modes[:len(l.modes)-1] }
func (l *Lexer) setMode(m Mode)      { l.modes[len(l.modes)-1] = m }
func (l *Lexer) atEOF() bool         { return l.pos >= len(l.input) }
func (l *Lexer) position() types.Position {
	return types.Position{Line: l.line, Column: l.col, Offset: l.pos}
}

func (l *Lexer) peek() byte {
	if l.atEOF() {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) hasPrefix(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

// advance consumes one rune and keeps line/column bookkeeping.
func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else if r == '\t' {
		l.col = ((l.col-1)/tabStop+1)*tabStop + 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skip(n int) {
	for i := 0; i < n && !l.atEOF(); i++ {
		l.advance()
	}
}

func (l *Lexer) emit(tt TokenType, text string, start types.Position) {
	l.tokens = append(l.tokens, Token{Type: tt, Text: text, Pos: start, End: l.position()})
	l.logger.Debug("token", "type", tt.String(), "text", text, "line", start.Line)
}

func (l *Lexer) errorf(pos types.Position, format string, args ...any) {
	l.diags = append(l.diags, types.Diagnostic{
		Kind:         types.SyntaxError,
		Severity:     types.SeverityError,
		Message:      fmt.Sprintf(format, args...),
		FileName:     l.fileName,
		Range:        types.Range{Start: pos, End: pos},
		ContextLines: types.ContextAround(l.input, pos),
	})
}

// lexHeaderLine handles one line before the --- separator.
func (l *Lexer) lexHeaderLine() {
	l.skipSpaces()
	if l.atEOF() {
		return
	}
	if l.peek() == '\n' {
		l.advance()
		return
	}
	start := l.position()
	if l.hasPrefix("---") {
		l.skip(3)
		l.emit(HEADER_DELIM, "---", start)
		l.consumeToEOL()
		l.setMode(ModeBody)
		l.indents = []int{0}
		return
	}
	name := l.readWhile(isIdentPart)
	if name == "" {
		l.errorf(start, "expected a header name")
		l.advance()
		l.consumeToEOL()
		return
	}
	l.emit(IDENT, name, start)
	l.skipSpaces()
	if l.peek() != ':' {
		l.errorf(l.position(), "expected ':' after header %q", name)
		l.consumeToEOL()
		return
	}
	colonStart := l.position()
	l.advance()
	l.emit(COLON, ":", colonStart)
	l.skipSpaces()
	restStart := l.position()
	rest := strings.TrimRight(l.readUntil('\n'), " \t\r")
	l.emit(TEXT, rest, restStart)
	nlStart := l.position()
	if !l.atEOF() {
		l.advance()
	}
	l.emit(NEWLINE, "", nlStart)
}

// lexBodyLine handles one full body line, including any modes pushed
// and popped along the way.
func (l *Lexer) lexBodyLine() {
	indent := l.measureIndent()
	if l.atEOF() {
		return
	}
	if l.peek() == '\n' {
		l.advance() // blank line carries no tokens
		return
	}
	start := l.position()
	if l.hasPrefix("===") {
		l.closeIndents()
		l.skip(3)
		l.emit(NODE_END, "===", start)
		l.consumeToEOL()
		l.setMode(ModeHeader)
		return
	}
	l.applyIndent(indent)
	l.lexLineContent()
}

// measureIndent consumes leading whitespace and returns the column
// width, widening tabs to the next tab stop.
func (l *Lexer) measureIndent() int {
	width := 0
	for !l.atEOF() {
		switch l.peek() {
		case ' ':
			width++
			l.advance()
		case '\t':
			width = (width/tabStop + 1) * tabStop
			l.advance()
		case '\r':
			l.advance()
		default:
			return width
		}
	}
	return width
}

func (l *Lexer) applyIndent(indent int) {
	top := l.indents[len(l.indents)-1]
	pos := l.position()
	if indent > top {
		l.indents = append(l.indents, indent)
		l.emit(INDENT, "", pos)
		return
	}
	for indent < l.indents[len(l.indents)-1] {
		l.indents = l.indents[:len(l.indents)-1]
		l.emit(DEDENT, "", pos)
	}
	if indent != l.indents[len(l.indents)-1] {
		l.errorf(pos, "inconsistent indentation")
		l.indents = append(l.indents, indent)
	}
}

func (l *Lexer) closeIndents() {
	pos := l.position()
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.emit(DEDENT, "", pos)
	}
}

// lexLineContent scans from the first non-blank column to the line end.
func (l *Lexer) lexLineContent() {
	if l.hasPrefix("->>") {
		start := l.position()
		l.skip(3)
		l.emit(ARROW_ONCE, "->>", start)
		l.push(ModeOption)
		l.skipSpaces()
	} else if l.hasPrefix("->") {
		start := l.position()
		l.skip(2)
		l.emit(ARROW, "->", start)
		l.push(ModeOption)
		l.skipSpaces()
	}

	var text strings.Builder
	textStart := l.position()
	flush := func() {
		if text.Len() > 0 {
			l.emit(TEXT, text.String(), textStart)
			text.Reset()
		}
	}

	for !l.atEOF() && l.peek() != '\n' {
		switch {
		case l.hasPrefix("<<"):
			flush()
			l.lexCommand()
			textStart = l.position()
		case l.peek() == '{':
			flush()
			l.lexInterpolation()
			textStart = l.position()
		case l.peek() == '#':
			flush()
			l.lexHashtag()
			textStart = l.position()
		case l.peek() == '\\':
			if text.Len() == 0 {
				textStart = l.position()
			}
			l.lexEscape(&text)
		case l.peek() == '\r':
			l.advance()
		default:
			if text.Len() == 0 {
				textStart = l.position()
			}
			text.WriteRune(l.advance())
		}
	}
	flush()
	nlStart := l.position()
	if !l.atEOF() {
		l.advance()
	}
	l.emit(NEWLINE, "", nlStart)
	if l.mode() == ModeOption {
		l.pop()
	}
}

var lineEscapes = map[byte]byte{
	'{': '{', '}': '}', '<': '<', '>': '>', '#': '#', '\\': '\\',
}

func (l *Lexer) lexEscape(text *strings.Builder) {
	pos := l.position()
	l.advance() // backslash
	if l.atEOF() || l.peek() == '\n' {
		l.errorf(pos, "trailing backslash")
		return
	}
	c := l.peek()
	if escaped, ok := lineEscapes[c]; ok {
		text.WriteByte(escaped)
		l.advance()
		return
	}
	l.diags = append(l.diags, types.Diagnostic{
		Kind:         types.InvalidEscape,
		Severity:     types.SeverityError,
		Message:      fmt.Sprintf("invalid escape '\\%c'", c),
		FileName:     l.fileName,
		Range:        types.Range{Start: pos, End: l.position()},
		ContextLines: types.ContextAround(l.input, pos),
	})
	l.advance()
}

func (l *Lexer) lexHashtag() {
	start := l.position()
	l.push(ModeHashtag)
	l.advance() // #
	tag := l.readWhile(func(c byte) bool {
		return c != ' ' && c != '\t' && c != '\n' && c != '\r' && c != '#'
	})
	l.emit(HASHTAG, tag, start)
	l.pop()
	l.skipSpaces()
}

// lexCommand scans << ... >>. A first word that is a language keyword
// switches to structured tokenization; anything else is free-form text
// handed to the host, with { } interpolation still recognized.
func (l *Lexer) lexCommand() {
	start := l.position()
	l.skip(2)
	l.emit(COMMAND_START, "<<", start)
	l.push(ModeCommand)
	l.skipSpaces()

	word := l.peekWord()
	if structuredCommands[word] {
		l.lexStructured(ModeCommand)
		return
	}

	var text strings.Builder
	textStart := l.position()
	flush := func() {
		if text.Len() > 0 {
			l.emit(COMMAND_TEXT, text.String(), textStart)
			text.Reset()
		}
	}
	for !l.atEOF() && l.peek() != '\n' {
		switch {
		case l.hasPrefix(">>"):
			flush()
			endStart := l.position()
			l.skip(2)
			l.emit(COMMAND_END, ">>", endStart)
			l.pop()
			return
		case l.peek() == '{':
			flush()
			l.lexInterpolation()
			textStart = l.position()
		case l.peek() == '\\':
			if text.Len() == 0 {
				textStart = l.position()
			}
			l.lexEscape(&text)
		case l.peek() == '\r':
			l.advance()
		default:
			if text.Len() == 0 {
				textStart = l.position()
			}
			text.WriteRune(l.advance())
		}
	}
	flush()
	l.errorf(l.position(), "unterminated command, expected '>>'")
	l.pop()
}

// lexInterpolation scans { expr }.
func (l *Lexer) lexInterpolation() {
	start := l.position()
	l.advance() // {
	l.emit(EXPR_START, "{", start)
	l.push(ModeExpression)
	l.lexStructured(ModeExpression)
}

// lexStructured emits expression tokens until the current mode's
// terminator: >> for Command, } for Expression. Reaching the line end
// first is a syntax error; the mode is popped so the next line starts
// clean.
func (l *Lexer) lexStructured(m Mode) {
	for {
		l.skipSpaces()
		if l.atEOF() || l.peek() == '\n' {
			switch m {
			case ModeCommand:
				l.errorf(l.position(), "unterminated command, expected '>>'")
			default:
				l.errorf(l.position(), "unterminated expression, expected '}'")
			}
			l.pop()
			return
		}
		if m == ModeCommand && l.hasPrefix(">>") {
			start := l.position()
			l.skip(2)
			l.emit(COMMAND_END, ">>", start)
			l.pop()
			return
		}
		if m == ModeExpression && l.peek() == '}' {
			start := l.position()
			l.advance()
			l.emit(EXPR_END, "}", start)
			l.pop()
			return
		}
		l.lexExprToken()
	}
}

// lexExprToken scans a single token of expression syntax.
func (l *Lexer) lexExprToken() {
	start := l.position()
	c := l.peek()
	switch {
	case isIdentStart(c):
		word := l.readWhile(isIdentPart)
		if kw, ok := keywords[word]; ok {
			l.emit(kw, word, start)
		} else {
			l.emit(IDENT, word, start)
		}
	case c == '$':
		l.advance()
		name := l.readWhile(isIdentPart)
		if name == "" {
			l.errorf(start, "expected a variable name after '$'")
			return
		}
		l.emit(VARIABLE, "$"+name, start)
	case isDigit(c):
		l.emit(NUMBER, l.readNumber(), start)
	case c == '"':
		l.lexString()
	case c == '{':
		l.lexInterpolation()
	default:
		l.lexOperator()
	}
}

func (l *Lexer) lexOperator() {
	start := l.position()
	two := ""
	if l.pos+1 < len(l.input) {
		two = l.input[l.pos : l.pos+2]
	}
	switch two {
	case "==":
		l.skip(2)
		l.emit(EQ_EQ, two, start)
		return
	case "!=":
		l.skip(2)
		l.emit(NOT_EQ, two, start)
		return
	case "<=":
		l.skip(2)
		l.emit(LT_EQ, two, start)
		return
	case ">=":
		l.skip(2)
		l.emit(GT_EQ, two, start)
		return
	case "&&":
		l.skip(2)
		l.emit(AND_AND, two, start)
		return
	case "||":
		l.skip(2)
		l.emit(OR_OR, two, start)
		return
	}
	single := map[byte]TokenType{
		'+': PLUS, '-': MINUS, '*': STAR, '/': SLASH, '%': PERCENT,
		'=': EQUALS, '<': LT, '>': GT, '!': BANG,
		'(': LPAREN, ')': RPAREN, ',': COMMA, ':': COLON,
	}
	c := l.peek()
	if tt, ok := single[c]; ok {
		l.advance()
		l.emit(tt, string(c), start)
		return
	}
	l.errorf(start, "unrecognized character %q", string(rune(c)))
	l.advance()
}

var stringEscapes = map[byte]byte{
	'"': '"', '\\': '\\', 'n': '\n', 't': '\t', '{': '{', '}': '}',
}

func (l *Lexer) lexString() {
	start := l.position()
	l.advance() // opening quote
	var b strings.Builder
	for {
		if l.atEOF() || l.peek() == '\n' {
			l.errorf(start, "unterminated string")
			break
		}
		c := l.peek()
		if c == '"' {
			l.advance()
			break
		}
		if c == '\\' {
			escPos := l.position()
			l.advance()
			e := l.peek()
			if escaped, ok := stringEscapes[e]; ok {
				b.WriteByte(escaped)
				l.advance()
			} else {
				l.diags = append(l.diags, types.Diagnostic{
					Kind:         types.InvalidEscape,
					Severity:     types.SeverityError,
					Message:      fmt.Sprintf("invalid escape '\\%c' in string", e),
					FileName:     l.fileName,
					Range:        types.Range{Start: escPos, End: l.position()},
					ContextLines: types.ContextAround(l.input, escPos),
				})
				l.advance()
			}
			continue
		}
		b.WriteRune(l.advance())
	}
	l.emit(STRING, b.String(), start)
}

func (l *Lexer) readNumber() string {
	start := l.pos
	for !l.atEOF() && isDigit(l.peek()) {
		l.advance()
	}
	if !l.atEOF() && l.peek() == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]) {
		l.advance()
		for !l.atEOF() && isDigit(l.peek()) {
			l.advance()
		}
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readWhile(pred func(byte) bool) string {
	start := l.pos
	for !l.atEOF() && pred(l.peek()) {
		l.advance()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readUntil(stop byte) string {
	start := l.pos
	for !l.atEOF() && l.peek() != stop {
		l.advance()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) peekWord() string {
	end := l.pos
	for end < len(l.input) && isIdentPart(l.input[end]) {
		end++
	}
	return l.input[l.pos:end]
}

func (l *Lexer) skipSpaces() {
	for !l.atEOF() {
		c := l.peek()
		if c == ' ' || c == '\t' || c == '\r' {
			l.advance()
		} else {
			return
		}
	}
}

func (l *Lexer) consumeToEOL() {
	for !l.atEOF() && l.peek() != '\n' {
		l.advance()
	}
	if !l.atEOF() {
		l.advance()
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }
