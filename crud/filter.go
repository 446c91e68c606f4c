package crud

import (
	"encoding/json"
	"fmt"
	"slices"

	"gorm.io/gorm/clause"
)

// maxFilterDepth bounds filter tree nesting, counted from the root list at
// depth 1. Validation rejects a tree once recursion reaches this depth.
const maxFilterDepth = 5

// SearchRequest is the body of a search call: a list of filter nodes combined
// with an implicit AND.
type SearchRequest struct {
	Filters []FilterNode `json:"filters"`
}

// FilterNode is a tagged union over the two node kinds of a filter
// expression: exactly one of Leaf or Join is set.
type FilterNode struct {
	Leaf *FilterLeaf
	Join *FilterJoin
}

// FilterLeaf filters one column by one operation. SearchValue is absent for
// the null-check operations.
type FilterLeaf struct {
	ColumnName  string `json:"column_name"`
	Operation   string `json:"operation"`
	SearchValue any    `json:"search_value,omitempty"`
}

// FilterJoin combines exactly two child nodes with "and" or "or".
type FilterJoin struct {
	Operand string       `json:"operand"`
	Filters []FilterNode `json:"filters"`
}

const (
	JoinAnd = "and"
	JoinOr  = "or"
)

// UnmarshalJSON decides the node kind by shape: objects carrying an "operand"
// key are joins, everything else is a leaf.
func (n *FilterNode) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if _, isJoin := probe["operand"]; isJoin {
		var join FilterJoin
		if err := json.Unmarshal(data, &join); err != nil {
			return err
		}
		n.Join = &join
		return nil
	}

	var leaf FilterLeaf
	if err := json.Unmarshal(data, &leaf); err != nil {
		return err
	}
	n.Leaf = &leaf
	return nil
}

func (n FilterNode) MarshalJSON() ([]byte, error) {
	switch {
	case n.Join != nil:
		return json.Marshal(n.Join)
	case n.Leaf != nil:
		return json.Marshal(n.Leaf)
	default:
		return nil, fmt.Errorf("filter node has no kind set")
	}
}

// ValidateFilters checks a filter expression tree against the registry.
// Issues are accumulated across the whole tree rather than failing on the
// first one, so a single response reports every problem. Excessive nesting
// aborts immediately.
func (r *FilterRegistry) ValidateFilters(nodes []FilterNode) error {
	var issues []string
	if err := r.validateFilters(nodes, 1, &issues); err != nil {
		return err
	}

	if len(issues) != 0 {
		return NewValidationError(issues...)
	}

	return nil
}

func (r *FilterRegistry) validateFilters(nodes []FilterNode, depth int, issues *[]string) error {
	if depth >= maxFilterDepth {
		return NewValidationError("Your nesting is too big, refusing to honour this filter request.")
	}

	for _, node := range nodes {
		switch {
		case node.Join != nil:
			join := node.Join
			if join.Operand != JoinAnd && join.Operand != JoinOr {
				*issues = append(*issues, fmt.Sprintf("Value '%s' is not a supported join operand.", join.Operand))
			}

			if len(join.Filters) != 2 {
				*issues = append(*issues, fmt.Sprintf("Join '%s' requires two parameters", join.Operand))
			}

			if err := r.validateFilters(join.Filters, depth+1, issues); err != nil {
				return err
			}

		case node.Leaf != nil:
			leaf := node.Leaf
			col, ok := r.lookup(leaf.ColumnName)
			if !ok {
				*issues = append(*issues, fmt.Sprintf("Column '%s' not supported", leaf.ColumnName))
				continue
			}

			if !slices.Contains(col.operations, leaf.Operation) {
				*issues = append(*issues, fmt.Sprintf(
					"Operation '%s' not supported on column '%s'", leaf.Operation, leaf.ColumnName,
				))
				continue
			}

			// Null checks consume no value.
			if leaf.Operation == OpIsNull || leaf.Operation == OpIsNotNull {
				continue
			}

			if _, err := col.validate(leaf.SearchValue); err != nil {
				*issues = append(*issues, fmt.Sprintf(
					"Value '%v' not a supported type for column '%s'. Expected '%s', got '%s'",
					leaf.SearchValue, leaf.ColumnName, col.Type, err,
				))
				continue
			}

		default:
			*issues = append(*issues, "Filter entry is neither a column filter nor a join")
		}
	}

	return nil
}

// CompileFilters validates a filter expression and compiles it into a single
// query predicate. No partial predicate is ever returned on failure.
func (r *FilterRegistry) CompileFilters(nodes []FilterNode) (clause.Expression, error) {
	if err := r.ValidateFilters(nodes); err != nil {
		return nil, err
	}

	compiled := r.compileNodes(nodes)
	switch len(compiled) {
	case 0:
		return nil, nil
	case 1:
		return compiled[0], nil
	default:
		return clause.And(compiled...), nil
	}
}

func (r *FilterRegistry) compileNodes(nodes []FilterNode) []clause.Expression {
	output := make([]clause.Expression, 0, len(nodes))
	for _, node := range nodes {
		switch {
		case node.Join != nil:
			children := r.compileNodes(node.Join.Filters)
			if node.Join.Operand == JoinOr {
				output = append(output, clause.Or(children...))
			} else {
				output = append(output, clause.And(children...))
			}

		case node.Leaf != nil:
			output = append(output, r.compileLeaf(node.Leaf))
		}
	}

	return output
}

func (r *FilterRegistry) compileLeaf(leaf *FilterLeaf) clause.Expression {
	col, _ := r.lookup(leaf.ColumnName)

	switch leaf.Operation {
	case OpIsNull:
		return clause.Expr{SQL: fmt.Sprintf("%s IS NULL", col.Column)}
	case OpIsNotNull:
		return clause.Expr{SQL: fmt.Sprintf("%s IS NOT NULL", col.Column)}
	}

	value, _ := col.validate(leaf.SearchValue)

	var sql string
	switch leaf.Operation {
	case OpEquals:
		sql = fmt.Sprintf("%s = ?", col.Column)
	case OpNotEquals:
		sql = fmt.Sprintf("%s <> ?", col.Column)
	case OpGreaterThan:
		sql = fmt.Sprintf("%s > ?", col.Column)
	case OpGreaterThanEqual:
		sql = fmt.Sprintf("%s >= ?", col.Column)
	case OpLessThan:
		sql = fmt.Sprintf("%s < ?", col.Column)
	case OpLessThanEqual:
		sql = fmt.Sprintf("%s <= ?", col.Column)
	case OpStartsWith:
		sql, value = fmt.Sprintf("%s ILIKE ?", col.Column), fmt.Sprintf("%v%%", value)
	case OpNotStartsWith:
		sql, value = fmt.Sprintf("%s NOT ILIKE ?", col.Column), fmt.Sprintf("%v%%", value)
	case OpEndsWith:
		sql, value = fmt.Sprintf("%s ILIKE ?", col.Column), fmt.Sprintf("%%%v", value)
	case OpNotEndsWith:
		sql, value = fmt.Sprintf("%s NOT ILIKE ?", col.Column), fmt.Sprintf("%%%v", value)
	case OpContains:
		sql, value = fmt.Sprintf("%s ILIKE ?", col.Column), fmt.Sprintf("%%%v%%", value)
	case OpNotContains:
		sql, value = fmt.Sprintf("%s NOT ILIKE ?", col.Column), fmt.Sprintf("%%%v%%", value)
	default:
		// Unreachable after validation.
		return clause.Expr{SQL: "1 = 0"}
	}

	return clause.Expr{SQL: sql, Vars: []any{value}}
}
