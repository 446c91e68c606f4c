package crud

import "fmt"

// Operator defines a comparison operator used when expanding a cursor into
// the keyset continuation predicate.
type Operator string

func (o Operator) Valid() bool {
	return o == OperatorLT || o == OperatorGT || o == OperatorGTE
}

func (o Operator) ForOrdering() Direction {
	switch o {
	case OperatorGT, OperatorGTE:
		return DirectionASC
	case OperatorLT:
		return DirectionDESC
	default:
		panic(fmt.Errorf("cannot map operator '%s' to ordering", o))
	}
}

const (
	OperatorGT Operator = ">"
	OperatorLT Operator = "<"

	// OperatorGTE resumes a page inclusively. It is applied to the cursor
	// column because the cursor is minted from the overflow row, which must
	// be the first row of the next page.
	OperatorGTE Operator = ">="

	// operatorEq is the equality operator. It is private because we use it
	// ONLY while building filtering conditions.
	operatorEq Operator = "="
)
