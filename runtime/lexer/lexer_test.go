package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-lang/spindle/core/types"
)

// kinds strips tokens down to their types for shape assertions.
func kinds(tokens []Token) []TokenType {
	out := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Type
	}
	return out
}

func lex(t *testing.T, source string) ([]Token, []types.Diagnostic) {
	t.Helper()
	return New("test.yarn", source).Tokens()
}

func lexClean(t *testing.T, source string) []Token {
	t.Helper()
	tokens, diags := lex(t, source)
	require.Empty(t, diags)
	return tokens
}

func TestLexMinimalNode(t *testing.T) {
	tokens := lexClean(t, "title:Start\n---\nfoo\nbar\n===\n")
	assert.Equal(t, []TokenType{
		IDENT, COLON, TEXT, NEWLINE,
		HEADER_DELIM,
		TEXT, NEWLINE,
		TEXT, NEWLINE,
		NODE_END,
		EOF,
	}, kinds(tokens))
	assert.Equal(t, "title", tokens[0].Text)
	assert.Equal(t, "Start", tokens[2].Text)
	assert.Equal(t, "foo", tokens[5].Text)
}

func TestLexHashtags(t *testing.T) {
	tokens := lexClean(t, "title:S\n---\nhi there #line:1 #mood:happy\n===\n")
	assert.Equal(t, []TokenType{
		IDENT, COLON, TEXT, NEWLINE,
		HEADER_DELIM,
		TEXT, HASHTAG, HASHTAG, NEWLINE,
		NODE_END,
		EOF,
	}, kinds(tokens))
	assert.Equal(t, "hi there ", tokens[5].Text)
	assert.Equal(t, "line:1", tokens[6].Text)
	assert.Equal(t, "mood:happy", tokens[7].Text)
}

func TestLexInterpolation(t *testing.T) {
	tokens := lexClean(t, "title:S\n---\nyou have {$gold} gold\n===\n")
	assert.Equal(t, []TokenType{
		IDENT, COLON, TEXT, NEWLINE,
		HEADER_DELIM,
		TEXT, EXPR_START, VARIABLE, EXPR_END, TEXT, NEWLINE,
		NODE_END,
		EOF,
	}, kinds(tokens))
	assert.Equal(t, "$gold", tokens[7].Text)
}

func TestLexStructuredCommand(t *testing.T) {
	tokens := lexClean(t, "title:S\n---\n<<set $x = 1.5>>\n===\n")
	assert.Equal(t, []TokenType{
		IDENT, COLON, TEXT, NEWLINE,
		HEADER_DELIM,
		COMMAND_START, KW_SET, VARIABLE, EQUALS, NUMBER, COMMAND_END, NEWLINE,
		NODE_END,
		EOF,
	}, kinds(tokens))
	assert.Equal(t, "1.5", tokens[9].Text)
}

func TestLexFreeFormCommand(t *testing.T) {
	tokens := lexClean(t, "title:S\n---\n<<wait 1>>\n===\n")
	assert.Equal(t, []TokenType{
		IDENT, COLON, TEXT, NEWLINE,
		HEADER_DELIM,
		COMMAND_START, COMMAND_TEXT, COMMAND_END, NEWLINE,
		NODE_END,
		EOF,
	}, kinds(tokens))
	assert.Equal(t, "wait 1", tokens[6].Text)
}

func TestLexFreeFormCommandWithInterpolation(t *testing.T) {
	tokens := lexClean(t, "title:S\n---\n<<fade {$secs}>>\n===\n")
	assert.Equal(t, []TokenType{
		IDENT, COLON, TEXT, NEWLINE,
		HEADER_DELIM,
		COMMAND_START, COMMAND_TEXT, EXPR_START, VARIABLE, EXPR_END, COMMAND_END, NEWLINE,
		NODE_END,
		EOF,
	}, kinds(tokens))
}

func TestLexOptionsWithIndentedBody(t *testing.T) {
	source := "title:S\n---\n-> yes\n    sure\n-> no\n===\n"
	tokens := lexClean(t, source)
	assert.Equal(t, []TokenType{
		IDENT, COLON, TEXT, NEWLINE,
		HEADER_DELIM,
		ARROW, TEXT, NEWLINE,
		INDENT, TEXT, NEWLINE,
		DEDENT, ARROW, TEXT, NEWLINE,
		NODE_END,
		EOF,
	}, kinds(tokens))
}

func TestLexArrowOnce(t *testing.T) {
	tokens := lexClean(t, "title:S\n---\n->> once\n===\n")
	assert.Equal(t, ARROW_ONCE, tokens[5].Type)
}

func TestLexTabsWidenToTabStops(t *testing.T) {
	// One tab and eight spaces land options on the same indent level.
	source := "title:S\n---\n-> a\n\tdeep a\n-> b\n        deep b\n===\n"
	tokens := lexClean(t, source)
	var indents, dedents int
	for _, tok := range tokens {
		switch tok.Type {
		case INDENT:
			indents++
		case DEDENT:
			dedents++
		}
	}
	assert.Equal(t, 2, indents)
	assert.Equal(t, 2, dedents)
}

func TestLexExpressionOperators(t *testing.T) {
	tokens := lexClean(t, "title:S\n---\n<<if $a >= 2 && !$b or $c is 3>>\nx\n<<endif>>\n===\n")
	assert.Equal(t, []TokenType{
		IDENT, COLON, TEXT, NEWLINE,
		HEADER_DELIM,
		COMMAND_START, KW_IF, VARIABLE, GT_EQ, NUMBER, AND_AND, BANG, VARIABLE,
		KW_OR, VARIABLE, KW_IS, NUMBER, COMMAND_END, NEWLINE,
		TEXT, NEWLINE,
		COMMAND_START, KW_ENDIF, COMMAND_END, NEWLINE,
		NODE_END,
		EOF,
	}, kinds(tokens))
}

func TestLexStringEscapes(t *testing.T) {
	tokens := lexClean(t, "title:S\n---\n<<set $s = \"a\\\"b\\nc\">>\n===\n")
	var str Token
	for _, tok := range tokens {
		if tok.Type == STRING {
			str = tok
		}
	}
	assert.Equal(t, "a\"b\nc", str.Text)
}

func TestLexInvalidStringEscape(t *testing.T) {
	_, diags := lex(t, "title:S\n---\n<<set $s = \"a\\qb\">>\n===\n")
	require.Len(t, diags, 1)
	assert.Equal(t, types.InvalidEscape, diags[0].Kind)
}

func TestLexTextEscapes(t *testing.T) {
	tokens := lexClean(t, "title:S\n---\nbraces \\{not an expr\\} and \\#not a tag\n===\n")
	assert.Equal(t, TEXT, tokens[5].Type)
	assert.Equal(t, "braces {not an expr} and #not a tag", tokens[5].Text)
}

func TestLexUnrecognizedCharacterRecovers(t *testing.T) {
	tokens, diags := lex(t, "title:S\n---\n<<set $x = 1 ^ 2>>\n===\n")
	require.Len(t, diags, 1)
	assert.Equal(t, types.SyntaxError, diags[0].Kind)
	assert.Equal(t, 3, diags[0].Line())

	// Recovery keeps lexing: both numbers and the command end survive.
	numbers := 0
	commandEnds := 0
	for _, tok := range tokens {
		switch tok.Type {
		case NUMBER:
			numbers++
		case COMMAND_END:
			commandEnds++
		}
	}
	assert.Equal(t, 2, numbers)
	assert.Equal(t, 1, commandEnds)
}

func TestLexUnterminatedCommand(t *testing.T) {
	_, diags := lex(t, "title:S\n---\n<<set $x = 1\nnext\n===\n")
	require.NotEmpty(t, diags)
	assert.Equal(t, types.SyntaxError, diags[0].Kind)
}

func TestLexPositions(t *testing.T) {
	tokens := lexClean(t, "title:Start\n---\nfoo\n===\n")
	// "foo" sits on line 3, column 1.
	var text Token
	for _, tok := range tokens {
		if tok.Type == TEXT && tok.Text == "foo" {
			text = tok
		}
	}
	assert.Equal(t, 3, text.Pos.Line)
	assert.Equal(t, 1, text.Pos.Column)
}

func TestLexMultipleNodes(t *testing.T) {
	tokens := lexClean(t, "title:A\n---\none\n===\ntitle:B\n---\ntwo\n===\n")
	nodeEnds := 0
	headers := 0
	for _, tok := range tokens {
		switch tok.Type {
		case NODE_END:
			nodeEnds++
		case HEADER_DELIM:
			headers++
		}
	}
	assert.Equal(t, 2, nodeEnds)
	assert.Equal(t, 2, headers)
}
