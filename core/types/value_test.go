package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueAsString(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"whole number prints minimally", NumberValue(3), "3"},
		{"fractional number", NumberValue(2.5), "2.5"},
		{"string passes through", StringValue("hello"), "hello"},
		{"true", BoolValue(true), "true"},
		{"false", BoolValue(false), "false"},
		{"null is empty", Null, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.AsString())
		})
	}
}

func TestValueAsNumber(t *testing.T) {
	n, err := NumberValue(4.5).AsNumber()
	require.NoError(t, err)
	assert.Equal(t, float32(4.5), n)

	n, err = BoolValue(true).AsNumber()
	require.NoError(t, err)
	assert.Equal(t, float32(1), n)

	n, err = StringValue("12.25").AsNumber()
	require.NoError(t, err)
	assert.Equal(t, float32(12.25), n)

	_, err = StringValue("not a number").AsNumber()
	require.Error(t, err)
	var conv *ConversionError
	require.ErrorAs(t, err, &conv)
	assert.Equal(t, NumberType, conv.To)

	_, err = Null.AsNumber()
	assert.Error(t, err)
}

func TestValueAsBool(t *testing.T) {
	b, err := BoolValue(true).AsBool()
	require.NoError(t, err)
	assert.True(t, b)

	b, err = NumberValue(0).AsBool()
	require.NoError(t, err)
	assert.False(t, b)

	b, err = NumberValue(-2).AsBool()
	require.NoError(t, err)
	assert.True(t, b)

	_, err = StringValue("true").AsBool()
	assert.Error(t, err, "strings do not convert to bool")
}

func TestValueEqual(t *testing.T) {
	assert.True(t, NumberValue(1).Equal(NumberValue(1)))
	assert.False(t, NumberValue(1).Equal(NumberValue(2)))
	assert.True(t, StringValue("a").Equal(StringValue("a")))
	assert.True(t, Null.Equal(Null))

	// Equality is by variant first: 1 and "1" are different values.
	assert.False(t, NumberValue(1).Equal(StringValue("1")))
	assert.False(t, BoolValue(false).Equal(Null))
}

func TestValueType(t *testing.T) {
	assert.Equal(t, NumberType, NumberValue(0).Type())
	assert.Equal(t, StringType, StringValue("").Type())
	assert.Equal(t, BoolType, BoolValue(false).Type())
	assert.Equal(t, AnyType, Null.Type())
}
