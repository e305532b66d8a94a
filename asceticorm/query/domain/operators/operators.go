package operators

type Operator string

const (
	// Comparison

	OperatorEq   Operator = "="
	OperatorGt   Operator = ">"
	OperatorLt   Operator = "<"
	OperatorGte  Operator = ">="
	OperatorLte  Operator = "<="
	OperatorNe   Operator = "!="
	OperatorIs   Operator = "IS"
	OperatorLike Operator = "LIKE"

	// Logical operators

	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
	OperatorNot Operator = "NOT"

	// Mathematical

	OperatorAdd Operator = "+"
	OperatorSub Operator = "-"
	OperatorMul Operator = "*"
	OperatorDiv Operator = "/"
	OperatorMod Operator = "%"

	OperatorPos Operator = "+pos"
	OperatorNeg Operator = "-neg"

	// Bitwise

	OperatorLshift Operator = "<<"
	OperatorRshift Operator = ">>"

	// String

	OperatorConcat Operator = "||"
	OperatorEscape Operator = "ESCAPE"

	// Postfix

	OperatorIsNull    Operator = "IS NULL"
	OperatorIsNotNull Operator = "IS NOT NULL"
)

// IsComparison reports whether op yields a boolean from two operands.
func (op Operator) IsComparison() bool {
	switch op {
	case OperatorEq, OperatorNe, OperatorGt, OperatorGte, OperatorLt, OperatorLte, OperatorIs, OperatorLike:
		return true
	}
	return false
}

func (op Operator) IsLogical() bool {
	return op == OperatorAnd || op == OperatorOr || op == OperatorNot
}
