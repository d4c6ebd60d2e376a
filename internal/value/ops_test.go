package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryArithmetic(t *testing.T) {
	v, err := Binary(Add, Int(2), Int(3))
	require.NoError(t, err)
	require.Equal(t, Int(5), v)

	v, err = Binary(Div, Int(7), Int(2))
	require.NoError(t, err)
	require.Equal(t, Int(3), v)

	_, err = Binary(Div, Int(1), Int(0))
	require.ErrorContains(t, err, "division by zero")

	_, err = Binary(Mod, Float(1), Float(2))
	require.ErrorContains(t, err, "modulo is not defined for float")
}

func TestBinaryRejectsMixedOperandTypes(t *testing.T) {
	_, err := Binary(Add, Int(1), Float(1))
	require.ErrorContains(t, err, "type error")
}

func TestBinaryStringConcatenation(t *testing.T) {
	v, err := Binary(Add, String("foo"), String("bar"))
	require.NoError(t, err)
	require.Equal(t, String("foobar"), v)

	_, err = Binary(Sub, String("foo"), String("bar"))
	require.Error(t, err)
}

func TestBinaryComparisons(t *testing.T) {
	v, err := Binary(Lt, Int(1), Int(2))
	require.NoError(t, err)
	require.Equal(t, Bool(true), v)

	v, err = Binary(Gte, Int(2), Int(2))
	require.NoError(t, err)
	require.Equal(t, Bool(true), v)
}

func TestBinaryLogical(t *testing.T) {
	v, err := Binary(And, Bool(true), Bool(false))
	require.NoError(t, err)
	require.Equal(t, Bool(false), v)

	v, err = Binary(Or, Bool(true), Bool(false))
	require.NoError(t, err)
	require.Equal(t, Bool(true), v)

	_, err = Binary(And, Int(1), Bool(true))
	require.Error(t, err)
}

func TestUnary(t *testing.T) {
	v, err := Unary(true, Int(5))
	require.NoError(t, err)
	require.Equal(t, Int(-5), v)

	v, err = Unary(false, Bool(true))
	require.NoError(t, err)
	require.Equal(t, Bool(false), v)

	_, err = Unary(false, Int(1))
	require.Error(t, err)
}

func TestEqNeqAcrossTypesNeverErrors(t *testing.T) {
	v, err := Binary(Eq, Int(1), String("1"))
	require.NoError(t, err)
	require.Equal(t, Bool(false), v)

	v, err = Binary(Neq, Int(1), String("1"))
	require.NoError(t, err)
	require.Equal(t, Bool(true), v)
}
