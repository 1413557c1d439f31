package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-lang/spindle/core/library"
	"github.com/spindle-lang/spindle/core/types"
	"github.com/spindle-lang/spindle/runtime/parser"
)

func analyze(t *testing.T, bodySource string, libs ...*library.Library) *State {
	t.Helper()
	file, diags := parser.Parse("test.yarn", "title:Start\n---\n"+bodySource+"===\n")
	require.Empty(t, diags)

	state := NewState()
	RegisterInitialDeclarations(state, nil, append([]*library.Library{library.Standard()}, libs...)...)
	files := []*parser.File{file}
	CollectDeclarations(state, files)
	CheckTypes(state, files)
	return state
}

func errorKinds(state *State) []types.DiagnosticKind {
	var kinds []types.DiagnosticKind
	for _, d := range state.Diagnostics {
		if d.Severity == types.SeverityError {
			kinds = append(kinds, d.Kind)
		}
	}
	return kinds
}

func TestDeclareRegistersTypedVariable(t *testing.T) {
	state := analyze(t, "<<declare $gold = 10>>\n<<set $gold = $gold + 5>>\n")
	assert.Empty(t, errorKinds(state))

	decl, ok := state.Declarations.Lookup("$gold")
	require.True(t, ok)
	assert.Equal(t, types.NumberType, decl.Type)
	assert.False(t, decl.IsImplicit)
	n, err := decl.DefaultValue.AsNumber()
	require.NoError(t, err)
	assert.Equal(t, float32(10), n)
	assert.Equal(t, "test.yarn", decl.SourceFileName)
	assert.Equal(t, "Start", decl.SourceNodeName)
}

func TestSetInfersImplicitDeclaration(t *testing.T) {
	state := analyze(t, "<<set $greeting = \"hello\">>\n")
	assert.Empty(t, errorKinds(state))

	decl, ok := state.Declarations.Lookup("$greeting")
	require.True(t, ok)
	assert.True(t, decl.IsImplicit)
	assert.Equal(t, types.StringType, decl.Type)
}

func TestDeclareTypeAnnotationMismatch(t *testing.T) {
	state := analyze(t, "<<declare $x = \"text\" as number>>\n")
	assert.Contains(t, errorKinds(state), types.TypeMismatch)
}

func TestRedeclarationReported(t *testing.T) {
	state := analyze(t, "<<declare $x = 1>>\n<<declare $x = 2>>\n")
	assert.Contains(t, errorKinds(state), types.ReservedName)
}

func TestReservedNameRejected(t *testing.T) {
	state := analyze(t, "<<declare $Number.Add = 1>>\n")
	assert.Contains(t, errorKinds(state), types.ReservedName)
}

func TestUndeclaredVariableReported(t *testing.T) {
	state := analyze(t, "gold: {$gold}\n")
	assert.Contains(t, errorKinds(state), types.UndeclaredVariable)
}

func TestSetTypeConflictReported(t *testing.T) {
	state := analyze(t, "<<declare $x = 1>>\n<<set $x = \"oops\">>\n")
	assert.Contains(t, errorKinds(state), types.TypeMismatch)
}

func TestOperatorOverloadsByOperandType(t *testing.T) {
	state := analyze(t,
		"<<declare $a = 1>>\n<<declare $s = \"x\">>\n"+
			"<<set $a = $a + 2>>\n<<set $s = $s + \"y\">>\n")
	assert.Empty(t, errorKinds(state))
}

func TestPlusRejectsMixedOperands(t *testing.T) {
	state := analyze(t, "<<declare $a = 1>>\n<<set $a = $a + \"y\">>\n")
	assert.Contains(t, errorKinds(state), types.TypeMismatch)
}

func TestComparisonRequiresNumbers(t *testing.T) {
	state := analyze(t, "<<declare $s = \"x\">>\n<<if $s < \"y\">>\nhi\n<<endif>>\n")
	assert.Contains(t, errorKinds(state), types.TypeMismatch)
}

func TestConditionMustBeBool(t *testing.T) {
	state := analyze(t, "<<if 3>>\nhi\n<<endif>>\n")
	assert.Contains(t, errorKinds(state), types.TypeMismatch)
}

func TestEqualityNarrowsImplicitVariable(t *testing.T) {
	// $x starts as an implicit Any via set from a function whose
	// declared return type is Any; comparing with a number narrows it.
	lib := library.New()
	lib.RegisterFunc("mystery", nil, types.AnyType, nil)
	state := analyze(t, "<<set $x = mystery()>>\n<<if $x == 3>>\nhi\n<<endif>>\n", lib)
	assert.Empty(t, errorKinds(state))

	decl, ok := state.Declarations.Lookup("$x")
	require.True(t, ok)
	assert.Equal(t, types.NumberType, decl.Type)
}

func TestAmbiguousEqualityReported(t *testing.T) {
	lib := library.New()
	lib.RegisterFunc("mystery", nil, types.AnyType, nil)
	state := analyze(t, "<<set $x = mystery()>>\n<<set $y = mystery()>>\n<<if $x == $y>>\nhi\n<<endif>>\n", lib)
	assert.Contains(t, errorKinds(state), types.AmbiguousType)
}

func TestFunctionArityChecked(t *testing.T) {
	lib := library.New()
	lib.RegisterFunc("double", []types.Type{types.NumberType}, types.NumberType, nil)
	state := analyze(t, "x: {double(1, 2)}\n", lib)
	assert.Contains(t, errorKinds(state), types.TypeMismatch)
}

func TestFunctionArgumentTypeChecked(t *testing.T) {
	lib := library.New()
	lib.RegisterFunc("double", []types.Type{types.NumberType}, types.NumberType, nil)
	state := analyze(t, "x: {double(\"two\")}\n", lib)
	assert.Contains(t, errorKinds(state), types.TypeMismatch)
}

func TestUnknownFunctionIsWarningOnly(t *testing.T) {
	state := analyze(t, "x: {later_registered(1)}\n")
	assert.Empty(t, errorKinds(state))
	require.NotEmpty(t, state.Diagnostics)
	assert.Equal(t, types.SeverityWarning, state.Diagnostics[0].Severity)
}

func TestFunctionReturnTypeFlowsIntoInference(t *testing.T) {
	lib := library.New()
	lib.RegisterFunc("count", nil, types.NumberType, nil)
	state := analyze(t, "<<set $n = count()>>\n<<set $n = $n + 1>>\n", lib)
	assert.Empty(t, errorKinds(state))

	decl, _ := state.Declarations.Lookup("$n")
	assert.Equal(t, types.NumberType, decl.Type)
}

func TestJumpTargetExpressionMustBeString(t *testing.T) {
	state := analyze(t, "<<declare $n = 3>>\n<<jump {$n}>>\n")
	assert.Contains(t, errorKinds(state), types.TypeMismatch)
}
