package crud

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Filter operation names as referenced by clients.
const (
	OpIsNull           = "is_null"
	OpIsNotNull        = "is_not_null"
	OpEquals           = "equals"
	OpNotEquals        = "not_equals"
	OpGreaterThan      = "greater_than"
	OpLessThan         = "less_than"
	OpGreaterThanEqual = "greater_than_equal"
	OpLessThanEqual    = "less_than_equal"
	OpStartsWith       = "starts_with"
	OpNotStartsWith    = "not_starts_with"
	OpEndsWith         = "ends_with"
	OpNotEndsWith      = "not_ends_with"
	OpContains         = "contains"
	OpNotContains      = "not_contains"
)

// ColumnType names the value type a column validates against. Validators are
// resolved once at registry construction time, not per request.
type ColumnType string

const (
	ColumnTypeString ColumnType = "string"
	ColumnTypeInt    ColumnType = "int"
	ColumnTypeFloat  ColumnType = "float"
	ColumnTypeBool   ColumnType = "bool"
	ColumnTypeTime   ColumnType = "datetime"
	ColumnTypeUUID   ColumnType = "uuid"
)

func (t ColumnType) Valid() bool {
	switch t {
	case ColumnTypeString, ColumnTypeInt, ColumnTypeFloat, ColumnTypeBool, ColumnTypeTime, ColumnTypeUUID:
		return true
	default:
		return false
	}
}

// valueValidator checks a loosely typed inbound value against a column type
// and returns the coerced value to compare with.
type valueValidator func(value any) (any, error)

var _truthyStrings = map[string]bool{
	"true": true, "t": true, "1": true, "on": true, "yes": true, "y": true,
	"false": false, "f": false, "0": false, "off": false, "no": false, "n": false,
}

// validatorFor resolves the validator for a column type. Coercion is lenient
// where search values commonly arrive as query-parameter strings: booleans
// parse from truthy strings and numeric columns accept numeric strings and
// JSON numbers. String columns are strict.
func validatorFor(t ColumnType) valueValidator {
	switch t {
	case ColumnTypeString:
		return func(value any) (any, error) {
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("expected a string, got %T", value)
			}
			return s, nil
		}
	case ColumnTypeInt:
		return func(value any) (any, error) {
			switch v := value.(type) {
			case int:
				return int64(v), nil
			case int64:
				return v, nil
			case float64:
				if v != float64(int64(v)) {
					return nil, fmt.Errorf("expected an integer, got fraction %v", v)
				}
				return int64(v), nil
			case string:
				parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
				if err != nil {
					return nil, fmt.Errorf("expected an integer, got '%s'", v)
				}
				return parsed, nil
			default:
				return nil, fmt.Errorf("expected an integer, got %T", value)
			}
		}
	case ColumnTypeFloat:
		return func(value any) (any, error) {
			switch v := value.(type) {
			case float64:
				return v, nil
			case int:
				return float64(v), nil
			case int64:
				return float64(v), nil
			case string:
				parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
				if err != nil {
					return nil, fmt.Errorf("expected a number, got '%s'", v)
				}
				return parsed, nil
			default:
				return nil, fmt.Errorf("expected a number, got %T", value)
			}
		}
	case ColumnTypeBool:
		return func(value any) (any, error) {
			switch v := value.(type) {
			case bool:
				return v, nil
			case string:
				parsed, ok := _truthyStrings[strings.ToLower(strings.TrimSpace(v))]
				if !ok {
					return nil, fmt.Errorf("expected a boolean, got '%s'", v)
				}
				return parsed, nil
			default:
				return nil, fmt.Errorf("expected a boolean, got %T", value)
			}
		}
	case ColumnTypeTime:
		return func(value any) (any, error) {
			switch v := value.(type) {
			case time.Time:
				return v, nil
			case string:
				var dst time.Time
				if err := dst.UnmarshalText([]byte(v)); err != nil {
					return nil, fmt.Errorf("expected an RFC3339 datetime, got '%s'", v)
				}
				return dst, nil
			default:
				return nil, fmt.Errorf("expected a datetime, got %T", value)
			}
		}
	case ColumnTypeUUID:
		return func(value any) (any, error) {
			switch v := value.(type) {
			case uuid.UUID:
				return v, nil
			case string:
				parsed, err := uuid.Parse(v)
				if err != nil {
					return nil, fmt.Errorf("expected a uuid, got '%s'", v)
				}
				return parsed, nil
			default:
				return nil, fmt.Errorf("expected a uuid, got %T", value)
			}
		}
	default:
		return func(any) (any, error) {
			return nil, fmt.Errorf("unsupported column type '%s'", t)
		}
	}
}

var _availableColumnNameSymbols = append([]rune("_.'`\""), lo.AlphanumericCharset...)

// validateColumnName guards against SQL injection by restricting allowed
// characters in column names. Registry columns end up embedded in ORDER BY
// and comparison clauses verbatim.
func validateColumnName(column string) error {
	if column == "" {
		return fmt.Errorf("empty column name")
	}

	if !lo.Every(_availableColumnNameSymbols, []rune(column)) {
		return fmt.Errorf("column name contains forbidden symbols '%s'", column)
	}

	return nil
}

// FilterColumn declares a searchable column: the public name clients use, the
// underlying SQL column, the value type and the operation capabilities. All
// negated operations are derived from their positive flags, i.e. if
// SupportsEquals is set then not_equals is supported as well.
type FilterColumn struct {
	Name   string
	Column string
	Type   ColumnType

	SupportsIsNull           bool
	SupportsEquals           bool
	SupportsGreaterThan      bool
	SupportsGreaterThanEqual bool
	SupportsLessThan         bool
	SupportsLessThanEqual    bool
	SupportsStartsWith       bool
	SupportsEndsWith         bool
	SupportsContains         bool

	operations []string
	validate   valueValidator
}

func (c FilterColumn) deriveOperations() []string {
	data := make([]string, 0, 14)
	if c.SupportsIsNull {
		data = append(data, OpIsNull, OpIsNotNull)
	}
	if c.SupportsEquals {
		data = append(data, OpEquals, OpNotEquals)
	}
	if c.SupportsGreaterThan {
		data = append(data, OpGreaterThan)
	}
	if c.SupportsLessThan {
		data = append(data, OpLessThan)
	}
	if c.SupportsGreaterThanEqual {
		data = append(data, OpGreaterThanEqual)
	}
	if c.SupportsLessThanEqual {
		data = append(data, OpLessThanEqual)
	}
	if c.SupportsStartsWith {
		data = append(data, OpStartsWith, OpNotStartsWith)
	}
	if c.SupportsEndsWith {
		data = append(data, OpEndsWith, OpNotEndsWith)
	}
	if c.SupportsContains {
		data = append(data, OpContains, OpNotContains)
	}

	return data
}

// FilterOption is the self-discovery shape served by the filter-metadata
// endpoint.
type FilterOption struct {
	ColumnName       string   `json:"column_name"`
	ExpectedType     string   `json:"expected_type"`
	SupportedFilters []string `json:"supported_filters"`
}

// FilterRegistry maps public column names to searchable column definitions.
// Immutable once built; safe for concurrent use.
type FilterRegistry struct {
	columns map[string]*FilterColumn
	names   []string
}

func NewFilterRegistry(columns ...FilterColumn) (*FilterRegistry, error) {
	reg := &FilterRegistry{
		columns: make(map[string]*FilterColumn, len(columns)),
		names:   make([]string, 0, len(columns)),
	}

	for i := range columns {
		col := columns[i]
		if err := validateColumnName(col.Column); err != nil {
			return nil, fmt.Errorf("filter column '%s': %w", col.Name, err)
		}
		if col.Name == "" {
			return nil, fmt.Errorf("filter column for '%s' has no public name", col.Column)
		}
		if !col.Type.Valid() {
			return nil, fmt.Errorf("filter column '%s' has invalid type '%s'", col.Name, col.Type)
		}
		if _, exists := reg.columns[col.Name]; exists {
			return nil, fmt.Errorf("duplicate filter column '%s'", col.Name)
		}

		col.operations = col.deriveOperations()
		col.validate = validatorFor(col.Type)
		reg.columns[col.Name] = &col
		reg.names = append(reg.names, col.Name)
	}

	return reg, nil
}

func MustFilterRegistry(columns ...FilterColumn) *FilterRegistry {
	reg, err := NewFilterRegistry(columns...)
	if err != nil {
		panic(err)
	}

	return reg
}

// Options enumerates every registered column with its supported operations,
// letting clients discover the search surface.
func (r *FilterRegistry) Options() []FilterOption {
	if r == nil {
		return nil
	}

	out := make([]FilterOption, 0, len(r.names))
	for _, name := range r.names {
		col := r.columns[name]
		out = append(out, FilterOption{
			ColumnName:       col.Name,
			ExpectedType:     string(col.Type),
			SupportedFilters: col.operations,
		})
	}

	return out
}

func (r *FilterRegistry) lookup(name string) (*FilterColumn, bool) {
	if r == nil {
		return nil, false
	}

	col, ok := r.columns[name]
	return col, ok
}

// LengthKind selects the SQL length function used for length-based ordering
// over a column's native representation.
type LengthKind string

const (
	// LengthNone disables length-based ordering for the column.
	LengthNone LengthKind = ""
	// LengthText orders by LENGTH(column), i.e. character count.
	LengthText LengthKind = "text"
	// LengthArray orders by CARDINALITY(column), i.e. element count.
	LengthArray LengthKind = "array"
)

// OrderColumn declares an orderable column. Type drives the re-hydration of
// tie-break values decoded from cursors.
type OrderColumn struct {
	Name   string
	Column string
	Type   ColumnType
	Length LengthKind

	rehydrate valueValidator
}

// expression returns the SQL expression to order and compare by.
func (c *OrderColumn) expression(byLength bool) string {
	if !byLength {
		return c.Column
	}

	switch c.Length {
	case LengthArray:
		return fmt.Sprintf("CARDINALITY(%s)", c.Column)
	default:
		return fmt.Sprintf("LENGTH(%s)", c.Column)
	}
}

// OrderRegistry maps public column names to orderable column definitions.
// Immutable once built; safe for concurrent use.
type OrderRegistry struct {
	columns map[string]*OrderColumn
	names   []string
}

func NewOrderRegistry(columns ...OrderColumn) (*OrderRegistry, error) {
	reg := &OrderRegistry{
		columns: make(map[string]*OrderColumn, len(columns)),
		names:   make([]string, 0, len(columns)),
	}

	for i := range columns {
		col := columns[i]
		if err := validateColumnName(col.Column); err != nil {
			return nil, fmt.Errorf("order column '%s': %w", col.Name, err)
		}
		if col.Name == "" {
			return nil, fmt.Errorf("order column for '%s' has no public name", col.Column)
		}
		if !col.Type.Valid() {
			return nil, fmt.Errorf("order column '%s' has invalid type '%s'", col.Name, col.Type)
		}
		if _, exists := reg.columns[col.Name]; exists {
			return nil, fmt.Errorf("duplicate order column '%s'", col.Name)
		}

		col.rehydrate = validatorFor(col.Type)
		reg.columns[col.Name] = &col
		reg.names = append(reg.names, col.Name)
	}

	return reg, nil
}

func MustOrderRegistry(columns ...OrderColumn) *OrderRegistry {
	reg, err := NewOrderRegistry(columns...)
	if err != nil {
		panic(err)
	}

	return reg
}

// Names enumerates the orderable column names for the order-metadata endpoint.
func (r *OrderRegistry) Names() []string {
	if r == nil {
		return nil
	}

	return append([]string(nil), r.names...)
}

func (r *OrderRegistry) lookup(name string) (*OrderColumn, bool) {
	if r == nil {
		return nil, false
	}

	col, ok := r.columns[name]
	return col, ok
}
