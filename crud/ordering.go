package crud

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gorm.io/gorm"
)

// Direction defines the sort direction for the requested dataset.
type Direction string

const (
	DirectionASC  Direction = "ASC"
	DirectionDESC Direction = "DESC"
)

func (o Direction) Valid() bool {
	return o == DirectionASC || o == DirectionDESC
}

func (o Direction) ForOperator() Operator {
	switch o {
	case DirectionASC:
		return OperatorGT
	case DirectionDESC:
		return OperatorLT
	default:
		panic(fmt.Errorf("cannot map direction '%s' to operator", o))
	}
}

// UnmarshalJSON accepts the wire forms "ascending"/"descending" as well as
// "asc"/"desc", case-insensitively.
func (o *Direction) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "asc", "ascending":
		*o = DirectionASC
	case "desc", "descending":
		*o = DirectionDESC
	default:
		return fmt.Errorf("invalid ordering direction '%s'", raw)
	}

	return nil
}

func (o Direction) MarshalJSON() ([]byte, error) {
	switch o {
	case DirectionDESC:
		return json.Marshal("descending")
	default:
		return json.Marshal("ascending")
	}
}

// OrderField is one element of a client-supplied ordering.
type OrderField struct {
	ColumnName string    `json:"column_name"`
	Order      Direction `json:"order"`
	// ByLength sorts by the length of the column's textual or array
	// representation instead of its raw value.
	ByLength bool `json:"by_length,omitempty"`
}

// OrderRequest is an ordered list of fields to sort the dataset by.
type OrderRequest struct {
	Fields []OrderField `json:"fields"`
}

func (r *OrderRequest) IsZero() bool {
	return r == nil || len(r.Fields) == 0
}

// Fingerprint returns a stable hash of the order request. Cursors embed it so
// that a cursor minted under one ordering fails validation when replayed
// under another. A zero request hashes to the constant "null".
func (r *OrderRequest) Fingerprint() string {
	if r.IsZero() {
		return "null"
	}

	parts := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		direction := f.Order
		if !direction.Valid() {
			direction = DirectionASC
		}
		parts = append(parts, fmt.Sprintf("%s:%s:%t", f.ColumnName, direction, f.ByLength))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:8])
}

// ordering is an OrderField resolved against the order registry: the SQL
// expression to sort and compare by plus the column definition for tie-break
// re-hydration.
type ordering struct {
	field OrderField
	col   *OrderColumn
	expr  string
}

type orderings []ordering

// Resolve validates an order request against the registry and resolves each
// field to its SQL expression. Unknown columns are collected into one batched
// ValidationError with a closest-name suggestion.
func (r *OrderRegistry) Resolve(req *OrderRequest) (orderings, error) {
	if req.IsZero() {
		return nil, nil
	}

	var (
		issues   []string
		resolved = make(orderings, 0, len(req.Fields))
	)
	for _, f := range req.Fields {
		col, ok := r.lookup(f.ColumnName)
		if !ok {
			issues = append(issues, fmt.Sprintf(
				"Column '%s' not supported. Closest: '%s'",
				f.ColumnName, closestName(f.ColumnName, r.names),
			))
			continue
		}

		if !f.Order.Valid() {
			f.Order = DirectionASC
		}

		if f.ByLength && col.Length == LengthNone {
			issues = append(issues, fmt.Sprintf(
				"Column '%s' does not support ordering by length", f.ColumnName,
			))
			continue
		}

		resolved = append(resolved, ordering{
			field: f,
			col:   col,
			expr:  col.expression(f.ByLength),
		})
	}

	if len(issues) != 0 {
		return nil, NewValidationError(issues...)
	}

	return resolved, nil
}

// ToSQLSlice converts orderings to a slice of strings in the form
// "<order_expression> <order_direction>" suitable for SQL query builders.
func (o orderings) ToSQLSlice() []string {
	ret := make([]string, 0, len(o))
	for _, ord := range o {
		ret = append(ret, fmt.Sprintf("%s %s", ord.expr, ord.field.Order))
	}

	return ret
}

// ToSQL converts orderings to a single string suitable for embedding into an
// SQL query. Example: for [{"a", ASC}, {"b", DESC}] returns "a ASC, b DESC".
func (o orderings) ToSQL() string {
	return strings.Join(o.ToSQLSlice(), ", ")
}

// Apply applies the ordering to a gorm query.
func (o orderings) Apply(db *gorm.DB) *gorm.DB {
	if len(o) == 0 {
		return db
	}

	return db.Order(o.ToSQL())
}

func closestName(input string, dataSet []string) string {
	minDist := math.MaxInt
	closest := ""

	for _, candidate := range dataSet {
		dist := levenshtein([]rune(candidate), []rune(input))
		if dist < minDist {
			minDist = dist
			closest = candidate
		}
	}

	return closest
}
