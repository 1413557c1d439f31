package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-lang/spindle/core/ir"
	"github.com/spindle-lang/spindle/runtime/parser"
)

// tagTable compiles a node body far enough to run the tagger and
// returns the resulting string table.
func tagTable(t *testing.T, bodySource string) ir.StringTable {
	t.Helper()
	file, diags := parser.Parse("test.yarn", "title:Start\n---\n"+bodySource+"===\n")
	require.Empty(t, diags)

	state := NewState()
	table := make(ir.StringTable)
	GenerateStringTable(state, []*parser.File{file}, table)
	require.Empty(t, state.Diagnostics)
	TagLastLines([]*parser.File{file}, table)
	return table
}

func hasLastLine(table ir.StringTable, id string) bool {
	return table[id].HasTag(ir.LastLineTag)
}

func TestNoOptionsLineNotTagged(t *testing.T) {
	table := tagTable(t, "line without options #line:1\n")
	assert.False(t, hasLastLine(table, "line:1"))
}

func TestLineBeforeOptionsTagged(t *testing.T) {
	table := tagTable(t, "line before options #line:1\n-> option 1\n-> option 2\n")
	assert.True(t, hasLastLine(table, "line:1"))
}

func TestLineNotDirectlyBeforeOptionsNotTagged(t *testing.T) {
	table := tagTable(t, "early line #line:0\nline before options #line:1\n-> option 1\n-> option 2\n")
	assert.False(t, hasLastLine(table, "line:0"))
	assert.True(t, hasLastLine(table, "line:1"))
}

func TestLineAfterOptionsNotTagged(t *testing.T) {
	table := tagTable(t, "line before options #line:1\n-> option 1\n-> option 2\nline after options #line:2\n")
	assert.True(t, hasLastLine(table, "line:1"))
	assert.False(t, hasLastLine(table, "line:2"))
}

func TestNestedOptionBodiesTaggedRecursively(t *testing.T) {
	source := "line before options #line:1\n" +
		"-> option 1\n" +
		"    line 1a #line:1a\n" +
		"    line 1b #line:1b\n" +
		"    -> option 1a\n" +
		"    -> option 1b\n" +
		"-> option 2\n" +
		"-> option 3\n"
	table := tagTable(t, source)
	assert.True(t, hasLastLine(table, "line:1"))
	assert.False(t, hasLastLine(table, "line:1a"))
	assert.True(t, hasLastLine(table, "line:1b"))
}

func TestLineInsideOptionBodyWithoutOptionsNotTagged(t *testing.T) {
	source := "-> option 1\n    inside options #line:1a\n-> option 2\n"
	table := tagTable(t, source)
	assert.False(t, hasLastLine(table, "line:1a"))
}

func TestSetBetweenLineAndOptionsBreaksTag(t *testing.T) {
	table := tagTable(t, "line before #line:0\n<<set $x = 1>>\n-> a\n-> b\n")
	assert.False(t, hasLastLine(table, "line:0"))
}

func TestCommandBetweenLineAndOptionsBreaksTag(t *testing.T) {
	table := tagTable(t, "line before #line:0\n<<camera shake>>\n-> a\n-> b\n")
	assert.False(t, hasLastLine(table, "line:0"))
}

func TestDeclareBetweenLineAndOptionsBreaksTag(t *testing.T) {
	table := tagTable(t, "line before #line:0\n<<declare $x = 1>>\n-> a\n-> b\n")
	assert.False(t, hasLastLine(table, "line:0"))
}

func TestCallBetweenLineAndOptionsBreaksTag(t *testing.T) {
	table := tagTable(t, "line before #line:0\n<<call ping()>>\n-> a\n-> b\n")
	assert.False(t, hasLastLine(table, "line:0"))
}

func TestOptionsInsideIfTagInteriorLine(t *testing.T) {
	table := tagTable(t, "<<if true>>\nline before options #line:0\n-> option 1\n-> option 2\n<<endif>>\n")
	assert.True(t, hasLastLine(table, "line:0"))
}

func TestIfFollowedByOptionsTagsTrailingClauseLines(t *testing.T) {
	// The options directly follow the if block, so the last line of
	// each branch is the one on screen when they appear.
	source := "<<if $a>>\nbranch a #line:a\n<<else>>\nbranch b #line:b\n<<endif>>\n-> option 1\n-> option 2\n"
	table := tagTable(t, source)
	assert.True(t, hasLastLine(table, "line:a"))
	assert.True(t, hasLastLine(table, "line:b"))
}

func TestLineBeforeIfContainingOptionsNotTagged(t *testing.T) {
	source := "line before if #line:0\n<<if true>>\n-> option 1\n-> option 2\n<<endif>>\n"
	table := tagTable(t, source)
	assert.False(t, hasLastLine(table, "line:0"))
}

func TestLastLineOfNodeNotTagged(t *testing.T) {
	// Options in another node never tag a line here.
	file, diags := parser.Parse("test.yarn",
		"title:First\n---\nlast line #line:0\n===\ntitle:Second\n---\n-> a\n-> b\n===\n")
	require.Empty(t, diags)
	state := NewState()
	table := make(ir.StringTable)
	GenerateStringTable(state, []*parser.File{file}, table)
	TagLastLines([]*parser.File{file}, table)
	assert.False(t, hasLastLine(table, "line:0"))
}
