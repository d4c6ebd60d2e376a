package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScalarEquality(t *testing.T) {
	require.True(t, Int(3).Equal(Int(3)))
	require.False(t, Int(3).Equal(Int(4)))
	require.False(t, Int(3).Equal(String("3")))
	require.True(t, Bool(true).Equal(Bool(true)))
	require.True(t, Null{}.Equal(Null{}))
}

func TestFloatNaNCollapsesToOneOrderedBits(t *testing.T) {
	a := Float(math.NaN())
	b := Float(math.NaN())
	require.True(t, a.Equal(b))
	require.Equal(t, Hash(a), Hash(b))
}

func TestFloatOrderedBitsPreservesSignOrder(t *testing.T) {
	neg := Float(-1.5).orderedBits()
	zero := Float(0).orderedBits()
	pos := Float(1.5).orderedBits()
	require.Less(t, neg, zero)
	require.Less(t, zero, pos)
}

func TestTupleEqualityIsElementwise(t *testing.T) {
	a := Tuple{Int(1), String("x")}
	b := Tuple{Int(1), String("x")}
	c := Tuple{Int(1), String("y")}
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestListCloneIsIndependent(t *testing.T) {
	l := &List{ElemType: IntT(), Items: []Value{Int(1), Int(2)}}
	clone := l.Clone()
	clone.Items[0] = Int(99)
	require.Equal(t, Int(1), l.Items[0])
	require.True(t, l.Equal(&List{ElemType: IntT(), Items: []Value{Int(1), Int(2)}}))
}

func TestHashDistinguishesDifferentValues(t *testing.T) {
	require.NotEqual(t, Hash(Int(1)), Hash(Int(2)))
	require.NotEqual(t, Hash(Int(1)), Hash(Float(1)))
	require.Equal(t, Hash(Tuple{Int(1)}), Hash(Tuple{Int(1)}))
}

func TestDatatypeEqual(t *testing.T) {
	require.True(t, ListT(IntT()).Equal(ListT(IntT())))
	require.False(t, ListT(IntT()).Equal(ListT(StringT())))
	require.True(t, ProcessT("worker").Equal(ProcessT("worker")))
	require.False(t, ProcessT("worker").Equal(ProcessT("other")))
}

func TestDefaultValues(t *testing.T) {
	require.Equal(t, Int(0), Default(IntT()))
	require.Equal(t, Bool(false), Default(BoolT()))
	require.Equal(t, Process{Program: "p", PID: -1}, Default(ProcessT("p")))
}
