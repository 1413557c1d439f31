package ir

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-lang/spindle/core/types"
)

func sampleProgram() *Program {
	node := &Node{
		Name: "Start",
		Instructions: []Instruction{
			{Op: OpPushString, Str: "hello"},
			{Op: OpRunLine, Str: "line:1", Count: 1},
			{Op: OpJumpTo, Label: "L1_end", Dest: 3},
			{Op: OpStop},
		},
		Labels:     map[string]int{"L1_end": 3},
		Tags:       []string{"intro"},
		Headers:    []Header{{Key: "title", Value: "Start"}, {Key: "tags", Value: "intro"}},
		SourceFile: "intro.yarn",
	}
	return NewProgram(
		map[string]*Node{"Start": node},
		map[string]types.Value{
			"$count": types.NumberValue(3),
			"$name":  types.StringValue("Mae"),
			"$seen":  types.BoolValue(false),
		},
	)
}

func TestProgramRoundTrip(t *testing.T) {
	program := sampleProgram()

	var buf bytes.Buffer
	require.NoError(t, WriteProgram(&buf, program))

	decoded, err := ReadProgram(&buf)
	require.NoError(t, err)

	require.Equal(t, program.NodeNames(), decoded.NodeNames())
	want, _ := program.Node("Start")
	got, ok := decoded.Node("Start")
	require.True(t, ok)
	assert.Empty(t, cmp.Diff(want, got))

	for _, name := range program.InitialValueNames() {
		wantValue, _ := program.InitialValue(name)
		gotValue, ok := decoded.InitialValue(name)
		require.True(t, ok, name)
		assert.True(t, wantValue.Equal(gotValue), name)
	}
}

func TestProgramSerializationIsDeterministic(t *testing.T) {
	program := sampleProgram()
	var a, b bytes.Buffer
	require.NoError(t, WriteProgram(&a, program))
	require.NoError(t, WriteProgram(&b, program))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestReadProgramRejectsWrongVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, encMode.NewEncoder(&buf).Encode(programWire{Version: FormatVersion + 1}))
	_, err := ReadProgram(&buf)
	assert.Error(t, err)

	// A truncated or foreign payload must not decode either.
	_, err = ReadProgram(bytes.NewReader([]byte{0xff, 0x00}))
	assert.Error(t, err)
}

func TestOpCodeNames(t *testing.T) {
	assert.Equal(t, "RUN_LINE", OpRunLine.String())
	assert.Equal(t, "ADD_SALTY_DETERMINISTIC_SHUFFLE_TO_QUEUE",
		OpAddSaltyDeterministicShuffleToQueue.String())
	assert.True(t, OpStop.Valid())
	assert.False(t, OpCode(99).Valid())
}

func TestStringTableCSVRoundTrip(t *testing.T) {
	table := StringTable{
		"line:1": {
			Text:       "hi {0}",
			NodeName:   "Start",
			LineNumber: 3,
			FileName:   "intro.yarn",
			Metadata:   []string{"lastline", "mood:happy"},
		},
		"line:2": {
			Text:       "bye",
			NodeName:   "Start",
			LineNumber: 9,
			FileName:   "intro.yarn",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(&buf))

	decoded, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(table, decoded))
}

func TestStringInfoHasTag(t *testing.T) {
	info := StringInfo{Metadata: []string{"lastline"}}
	assert.True(t, info.HasTag(LastLineTag))
	assert.False(t, info.HasTag("missing"))
}
