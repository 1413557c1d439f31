package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-lang/spindle/core/ir"
	"github.com/spindle-lang/spindle/core/library"
	"github.com/spindle-lang/spindle/core/types"
)

func compileSource(t *testing.T, source string) *Compilation {
	t.Helper()
	return New().AddFile(File{FileName: "test.yarn", Source: source}).Compile()
}

func requireClean(t *testing.T, result *Compilation) {
	t.Helper()
	for _, d := range result.Diagnostics {
		require.NotEqual(t, types.SeverityError, d.Severity, d.Error())
	}
	require.NotNil(t, result.Program)
}

func TestCompileMinimalNode(t *testing.T) {
	result := compileSource(t, "title:Start\n---\nfoo\nbar\n===\n")
	requireClean(t, result)
	assert.Equal(t, 1, result.Program.NodeCount())

	node, ok := result.Program.Node("Start")
	require.True(t, ok)
	assert.Equal(t, ir.OpStop, node.Instructions[len(node.Instructions)-1].Op)
	assert.Len(t, result.StringTable, 2)
}

func TestCompileIsDeterministic(t *testing.T) {
	source := "title:Start\n---\n<<declare $g = 3>>\nyou have {$g}\n-> a\n-> b\n===\ntitle:Two\n---\nx\n===\n"
	first := compileSource(t, source)
	second := compileSource(t, source)
	requireClean(t, first)
	requireClean(t, second)

	var a, b bytes.Buffer
	require.NoError(t, ir.WriteProgram(&a, first.Program))
	require.NoError(t, ir.WriteProgram(&b, second.Program))
	assert.Equal(t, a.Bytes(), b.Bytes())

	var csvA, csvB bytes.Buffer
	require.NoError(t, first.StringTable.WriteCSV(&csvA))
	require.NoError(t, second.StringTable.WriteCSV(&csvB))
	assert.Equal(t, csvA.String(), csvB.String())
}

func TestCompileMultipleFiles(t *testing.T) {
	result := New().
		AddFile(File{FileName: "a.yarn", Source: "title:A\n---\n<<jump B>>\n===\n"}).
		AddFile(File{FileName: "b.yarn", Source: "title:B\n---\nhi\n===\n"}).
		Compile()
	requireClean(t, result)
	assert.Equal(t, 2, result.Program.NodeCount())
}

func TestCompileDuplicateNodeAcrossFiles(t *testing.T) {
	result := New().
		AddFile(File{FileName: "a.yarn", Source: "title:Start\n---\none\n===\n"}).
		AddFile(File{FileName: "b.yarn", Source: "title:Start\n---\ntwo\n===\n"}).
		Compile()
	assert.Nil(t, result.Program)
	require.NotEmpty(t, result.Diagnostics)
	var found *types.Diagnostic
	for i, d := range result.Diagnostics {
		if d.Kind == types.DuplicateNode {
			found = &result.Diagnostics[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "b.yarn", found.FileName)
	assert.Contains(t, found.Message, "a.yarn")
}

func TestCompileUnknownJumpTarget(t *testing.T) {
	result := compileSource(t, "title:Start\n---\n<<jump Sceond>>\n===\ntitle:Second\n---\nhi\n===\n")
	assert.Nil(t, result.Program)
	var diag types.Diagnostic
	for _, d := range result.Diagnostics {
		if d.Kind == types.UnknownNode {
			diag = d
		}
	}
	assert.Equal(t, types.UnknownNode, diag.Kind)
	assert.Contains(t, diag.Message, "Second", "close misspellings should be suggested")
}

func TestCompileDynamicJumpNotCheckedStatically(t *testing.T) {
	result := compileSource(t, "title:Start\n---\n<<set $where = \"X\">>\n<<jump {$where}>>\n===\n")
	requireClean(t, result)
}

func TestCompileErrorsSuppressProgram(t *testing.T) {
	result := compileSource(t, "title:Start\n---\n<<set $x = >>\n===\n")
	assert.Nil(t, result.Program)
	assert.True(t, types.HasErrors(result.Diagnostics))
	// The string table is still produced for what parsed.
	assert.NotNil(t, result.StringTable)
}

func TestDeclarationsOnlyMode(t *testing.T) {
	result := New().
		AddFile(File{FileName: "a.yarn", Source: "title:A\n---\n<<declare $gold = 10>>\n<<set $seen = true>>\n===\n"}).
		WithMode(DeclarationsOnly).
		Compile()
	assert.Nil(t, result.Program)
	assert.Empty(t, result.StringTable)

	byName := map[string]types.Declaration{}
	for _, d := range result.Declarations {
		byName[d.Name] = d
	}
	require.Contains(t, byName, "$gold")
	assert.Equal(t, types.NumberType, byName["$gold"].Type)
	assert.False(t, byName["$gold"].IsImplicit)
	require.Contains(t, byName, "$seen")
	assert.True(t, byName["$seen"].IsImplicit)
}

func TestStringsOnlyMode(t *testing.T) {
	result := New().
		AddFile(File{FileName: "a.yarn", Source: "title:A\n---\nhi #line:1\n-> yes\n-> no\n===\n"}).
		WithMode(StringsOnly).
		Compile()
	assert.Nil(t, result.Program)
	require.Contains(t, result.StringTable, "line:1")
	assert.True(t, result.StringTable["line:1"].HasTag(ir.LastLineTag))
}

func TestCompileRegistersLibrarySignatures(t *testing.T) {
	lib := library.New()
	lib.RegisterFunc("triplicate", []types.Type{types.StringType}, types.StringType, nil)

	bad := New().
		AddFile(File{FileName: "a.yarn", Source: "title:A\n---\nx: {triplicate(1)}\n===\n"}).
		ExtendLibrary(lib).
		Compile()
	assert.True(t, types.HasErrors(bad.Diagnostics), "number argument must fail the string parameter")

	good := New().
		AddFile(File{FileName: "a.yarn", Source: "title:A\n---\nx: {triplicate(\"a\")}\n===\n"}).
		ExtendLibrary(lib).
		Compile()
	requireClean(t, good)
}

func TestCompileCallerDeclarations(t *testing.T) {
	result := New().
		AddFile(File{FileName: "a.yarn", Source: "title:A\n---\ngold: {$gold}\n===\n"}).
		DeclareVariable(types.Declaration{
			Name: "$gold", Type: types.NumberType, DefaultValue: types.NumberValue(7),
		}).
		Compile()
	requireClean(t, result)

	v, ok := result.Program.InitialValue("$gold")
	require.True(t, ok)
	n, _ := v.AsNumber()
	assert.Equal(t, float32(7), n)
}

func TestCompileInitialValuesMatchDeclaredTypes(t *testing.T) {
	result := compileSource(t, "title:A\n---\n<<declare $name = \"Mae\">>\n<<declare $hp = 5>>\nhi\n===\n")
	requireClean(t, result)

	name, _ := result.Program.InitialValue("$name")
	assert.Equal(t, types.KindString, name.Kind())
	hp, _ := result.Program.InitialValue("$hp")
	assert.Equal(t, types.KindNumber, hp.Kind())
}

func TestCompileGeneratedLineIDsAreStable(t *testing.T) {
	source := "title:Start\n---\nfirst\nsecond\n===\n"
	first := compileSource(t, source)
	second := compileSource(t, source)
	requireClean(t, first)
	assert.Equal(t, first.StringTable.IDs(), second.StringTable.IDs())
	for _, id := range first.StringTable.IDs() {
		assert.True(t, strings.HasPrefix(id, "line:"), id)
	}
}

func TestCompileStringTableMetadata(t *testing.T) {
	result := compileSource(t, "title:Start\n---\nMae: hello {$x} #line:7 #mood:happy\n<<set $x = 1>>\n===\n")
	requireClean(t, result)

	info, ok := result.StringTable["line:7"]
	require.True(t, ok)
	assert.Equal(t, "Mae: hello {0}", info.Text)
	assert.Equal(t, "Start", info.NodeName)
	assert.Equal(t, "test.yarn", info.FileName)
	assert.Contains(t, info.Metadata, "mood:happy")
	assert.Equal(t, 3, info.LineNumber)
}
