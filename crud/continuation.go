package crud

import (
	"database/sql/driver"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// continuation is the keyset resume predicate derived from a decoded cursor.
//
// For order fields f1..fn with the minted row's values v1..vn and cursor
// column value c, the predicate is the OR of:
//
//	f1 > v1
//	f1 = v1 AND f2 > v2
//	...
//	f1 = v1 AND ... AND f(n-1) = v(n-1) AND fn > vn
//	f1 = v1 AND ... AND fn = vn AND cursor_col >= c
//
// with > flipped to < for descending fields. The final clause is inclusive
// because the cursor is minted from the overflow row, which must open the
// next page. Without a custom ordering it degenerates to "cursor_col >= c".
type continuation struct {
	elements []CursorElement
}

// CursorElement is a (column expression, value, operator) triple. The
// elements are a compressed set of filter conditions: they cannot be applied
// to the dataset directly and are inflated into the full DNF predicate while
// paginating.
type CursorElement struct {
	Column   string
	Value    any
	Operator Operator
}

func (c *CursorElement) toConjunctWithEqualityCondition() tConjunct {
	return tConjunct{
		Column:   c.Column,
		Value:    c.Value,
		Operator: operatorEq,
	}
}

// newContinuation binds a decoded cursor to the resolved orderings and the
// cursor column. The tie-break count is validated by decodeCursor, so the
// element lists always line up.
func newContinuation(decoded *cursor, resolved orderings, cursorColumn string, cursorValue any) continuation {
	elements := make([]CursorElement, 0, len(resolved)+1)
	for i, ord := range resolved {
		elements = append(elements, CursorElement{
			Column:   ord.expr,
			Value:    decoded.TieBreaks[i].Value,
			Operator: ord.field.Order.ForOperator(),
		})
	}

	elements = append(elements, CursorElement{
		Column:   cursorColumn,
		Value:    cursorValue,
		Operator: OperatorGTE,
	})

	return continuation{elements: elements}
}

// Apply applies the continuation predicate to a gorm query.
func (c continuation) Apply(db *gorm.DB) *gorm.DB {
	exp := c.toDNF().toGORMExpression()
	if exp == nil {
		return db
	}

	return db.Where(exp)
}

// ToSQL returns the string form of the predicate, suitable for debug logging.
func (c continuation) ToSQL() (string, []driver.Value) {
	return c.toDNF().toSQLClause()
}

// toDNF inflates the element triples [(C1,O1,V1) ... (Cn,On,Vn)] into the
// disjunctive normal form
//
//	(C1 O1 V1) OR (C1 = V1 AND C2 O2 V2) OR ...
//
// which pins down the exact position to resume the selection from.
func (c continuation) toDNF() tDNF {
	if len(c.elements) == 0 {
		return nil
	}

	dnf := make(tDNF, 0, len(c.elements))
	for i := range c.elements {
		previousElementsWithEqualityCondition := lo.Map(c.elements[:i], func(item CursorElement, _ int) tConjunct {
			return item.toConjunctWithEqualityCondition()
		})

		disjunct := make(tDisjunct, 0, len(previousElementsWithEqualityCondition)+1)
		disjunct = append(disjunct, previousElementsWithEqualityCondition...)
		disjunct = append(disjunct, tConjunct(c.elements[i]))

		dnf = append(dnf, disjunct)
	}

	return dnf
}
