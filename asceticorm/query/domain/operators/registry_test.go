package operators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Money struct {
	amount   int
	currency string
}

func (m Money) Equal(other EqualOperand) bool {
	o, ok := other.(Money)
	return ok && m.amount == o.amount && m.currency == o.currency
}

func (m Money) GreaterThan(other GreaterThanOperand) bool {
	o, ok := other.(Money)
	return ok && m.amount > o.amount
}

func (m Money) GreaterThanEqual(other GreaterThanEqualOperand) bool {
	o, ok := other.(Money)
	return ok && m.amount >= o.amount
}

func (m Money) LessThan(other LessThanOperand) bool {
	o, ok := other.(Money)
	return ok && m.amount < o.amount
}

func (m Money) LessThanEqual(other LessThanEqualOperand) bool {
	o, ok := other.(Money)
	return ok && m.amount <= o.amount
}

func TestExecBinary(t *testing.T) {
	reg := NewDefaultRegistry()
	cases := []struct {
		name  string
		left  any
		op    Operator
		right any
		want  any
	}{
		{"int eq", 1, OperatorEq, 1, true},
		{"int add", 2, OperatorAdd, 3, 5},
		{"widened int", 2, OperatorLt, int64(3), true},
		{"widened float", 2, OperatorMul, 1.5, 3.0},
		{"string concat", "a", OperatorConcat, "b", "ab"},
		{"like prefix", "alice", OperatorLike, "al%", true},
		{"like single", "bob", OperatorLike, "b_b", true},
		{"like miss", "carol", OperatorLike, "al%", false},
		{"null eq", nil, OperatorEq, 1, nil},
		{"null is null", nil, OperatorIs, nil, true},
		{"null and false", nil, OperatorAnd, false, false},
		{"null and true", nil, OperatorAnd, true, nil},
		{"null or true", nil, OperatorOr, true, true},
		{"null or false", nil, OperatorOr, false, nil},
		{"time before", time.Unix(1, 0), OperatorLt, time.Unix(2, 0), true},
		{"money eq", Money{100, "USD"}, OperatorEq, Money{100, "USD"}, true},
		{"money ne", Money{100, "USD"}, OperatorNe, Money{100, "EUR"}, true},
		{"money gt", Money{200, "USD"}, OperatorGt, Money{100, "USD"}, true},
		{"money lte", Money{200, "USD"}, OperatorLte, Money{100, "USD"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := reg.ExecBinary(c.left, c.op, c.right)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestExecBinary_Unsupported(t *testing.T) {
	reg := NewDefaultRegistry()
	_, err := reg.ExecBinary("a", OperatorSub, 1)
	assert.EqualError(t, err, `operator "-" is not supported for string and int`)
}

func TestExecUnary(t *testing.T) {
	reg := NewDefaultRegistry()

	got, err := reg.ExecUnary(OperatorNot, true)
	require.NoError(t, err)
	assert.Equal(t, false, got)

	got, err = reg.ExecUnary(OperatorIsNull, nil)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = reg.ExecUnary(OperatorNot, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = reg.ExecUnary(OperatorNeg, 4)
	require.NoError(t, err)
	assert.Equal(t, -4, got)
}

func TestOperatorClassification(t *testing.T) {
	assert.True(t, OperatorEq.IsComparison())
	assert.True(t, OperatorLike.IsComparison())
	assert.False(t, OperatorAdd.IsComparison())
	assert.True(t, OperatorAnd.IsLogical())
	assert.False(t, OperatorEq.IsLogical())
}
