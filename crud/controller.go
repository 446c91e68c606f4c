package crud

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"unicode/utf8"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope is ambient row-level filtering, e.g. "only records visible to the
// authenticated user". Callers inject it through the request context and the
// controller applies it to every query it issues.
type Scope func(*gorm.DB) *gorm.DB

type scopeContextKey struct{}

// WithScope attaches an ambient scope to the request context.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFrom returns the ambient scope attached to the context, or nil.
func ScopeFrom(ctx context.Context) Scope {
	scope, _ := ctx.Value(scopeContextKey{}).(Scope)
	return scope
}

// Getters maps public order column names to value extractors on the row type.
// Every orderable column needs one so a page's next cursor can carry its
// tie-break value.
//
// Example:
//
//	crud.Getters[Alert]{
//		"id":      func(last Alert) any { return last.ID },
//		"message": func(last Alert) any { return last.Message },
//	}
//
// When the value is drawn through a foreign-key relation, the getter must
// return the referenced object's cursor sub-column, not the relation object
// itself.
type Getters[T any] map[string]func(T) any

// Meta is the static per-resource descriptor driving a Controller. Bound at
// setup time and immutable for the life of the controller; multiple
// concurrent requests may safely share it.
type Meta[T any, Out any] struct {
	// Resource names the entity in errors and logs.
	Resource string
	// PrimaryKey is the SQL column used for single-record lookups.
	PrimaryKey string
	// PrimaryKeyType coerces path values into the primary key's type.
	PrimaryKeyType ColumnType
	// CursorColumn is the monotonic SQL column cursors are minted from and
	// used as the final tie-break. May differ from the primary key.
	CursorColumn string
	// CursorType coerces decoded cursor values back into the column's type.
	CursorType ColumnType
	// DefaultOrder is the SQL column queries are ordered by when the client
	// supplies no ordering. Usually the cursor column.
	DefaultOrder string
	// Prefetch lists relations always resolved before serialization.
	Prefetch []string
	// Filters declares the searchable surface.
	Filters *FilterRegistry
	// Orderable declares the orderable surface.
	Orderable *OrderRegistry
	// Transform serializes a row into the output model.
	Transform func(T) Out
	// PrimaryKeyValue extracts the primary key from a row.
	PrimaryKeyValue func(T) any
	// CursorValue extracts the cursor column value from a row.
	CursorValue func(T) any
	// Getters extract tie-break values for custom orderings.
	Getters Getters[T]
}

func (m Meta[T, Out]) validate() error {
	if m.Resource == "" {
		return fmt.Errorf("meta requires a resource name")
	}

	for _, column := range []string{m.PrimaryKey, m.CursorColumn, m.DefaultOrder} {
		if err := validateColumnName(column); err != nil {
			return err
		}
	}

	if !m.PrimaryKeyType.Valid() {
		return fmt.Errorf("invalid primary key type '%s'", m.PrimaryKeyType)
	}
	if !m.CursorType.Valid() {
		return fmt.Errorf("invalid cursor column type '%s'", m.CursorType)
	}
	if m.Transform == nil || m.PrimaryKeyValue == nil || m.CursorValue == nil {
		return fmt.Errorf("meta requires Transform, PrimaryKeyValue and CursorValue")
	}

	// Resolve getter coverage up front so minting a cursor can never fail
	// halfway through a page.
	for _, name := range m.Orderable.Names() {
		if _, ok := m.Getters[name]; !ok {
			return fmt.Errorf("cannot find getter for orderable column '%s'", name)
		}
	}

	return nil
}

// Page is one page of a list or search result. NextCursor is nil on the
// terminal page.
type Page[Out any] struct {
	Data       []Out   `json:"data"`
	NextCursor *string `json:"next_cursor"`
}

// PageParams are the pagination inputs shared by List and Search.
type PageParams struct {
	PageSize   int
	NextCursor string
	OrderBy    *OrderRequest
}

// Controller serves generic CRUD operations for one entity type, configured
// by a Meta descriptor. It keeps no per-request state: all pagination state
// lives in the opaque cursor string.
type Controller[T any, Out any] struct {
	db   *gorm.DB
	meta Meta[T, Out]
	log  *zap.SugaredLogger
}

func NewController[T any, Out any](db *gorm.DB, logger *zap.SugaredLogger, meta Meta[T, Out]) (*Controller[T, Out], error) {
	if db == nil {
		return nil, fmt.Errorf("controller requires a database handle")
	}
	if err := meta.validate(); err != nil {
		return nil, fmt.Errorf("invalid meta for '%s': %w", meta.Resource, err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Controller[T, Out]{db: db, meta: meta, log: logger}, nil
}

// FilterOptions enumerates the searchable surface for self-discovery.
func (c *Controller[T, Out]) FilterOptions() []FilterOption {
	return c.meta.Filters.Options()
}

// OrderOptions enumerates the orderable column names.
func (c *Controller[T, Out]) OrderOptions() []string {
	return c.meta.Orderable.Names()
}

// Count returns the total matching record count after ambient filtering.
func (c *Controller[T, Out]) Count(ctx context.Context) (int64, error) {
	query := c.scoped(ctx, c.base(ctx))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("counting %s: %w", c.meta.Resource, err)
	}

	return total, nil
}

// List returns one page of records under the requested (or default) ordering
// together with the cursor for the next page.
func (c *Controller[T, Out]) List(ctx context.Context, params PageParams) (*Page[Out], error) {
	return c.page(ctx, params, nil)
}

// Search is List with a compiled filter expression applied. Validation
// failures short-circuit before any query execution.
func (c *Controller[T, Out]) Search(ctx context.Context, params PageParams, req SearchRequest) (*Page[Out], error) {
	predicate, err := c.meta.Filters.CompileFilters(req.Filters)
	if err != nil {
		return nil, err
	}

	return c.page(ctx, params, predicate)
}

func (c *Controller[T, Out]) page(ctx context.Context, params PageParams, predicate clause.Expression) (*Page[Out], error) {
	size := NormalizePageSize(params.PageSize)

	resolved, err := c.meta.Orderable.Resolve(params.OrderBy)
	if err != nil {
		return nil, err
	}

	query := c.scoped(ctx, c.prefetched(c.base(ctx)))
	if predicate != nil {
		query = query.Where(predicate)
	}

	// The cursor column is always the final ordering so that rows sharing
	// custom sort values still page deterministically.
	if len(resolved) != 0 {
		query = resolved.Apply(query)
		query = query.Order(fmt.Sprintf("%s %s", c.meta.CursorColumn, DirectionASC))
	} else {
		query = query.Order(fmt.Sprintf("%s %s", c.meta.DefaultOrder, DirectionASC))
	}

	if params.NextCursor != "" {
		decoded, err := decodeCursor(params.NextCursor, params.OrderBy, resolved)
		if err != nil {
			return nil, err
		}

		cursorValue, err := validatorFor(c.meta.CursorType)(decoded.Value)
		if err != nil {
			return nil, NewValidationError("Cursor is malformed")
		}

		cont := newContinuation(decoded, resolved, c.meta.CursorColumn, cursorValue)
		if sql, vars := cont.ToSQL(); sql != "" {
			c.log.Debugw("resuming from cursor", "resource", c.meta.Resource, "sql", sql, "vars", vars)
		}
		query = cont.Apply(query)
	}

	// Fetch one extra row. When it comes back the page is not terminal and
	// the overflow row mints the next cursor.
	var rows []T
	if err := query.Limit(size + 1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing %s: %w", c.meta.Resource, err)
	}

	page := &Page[Out]{}
	if len(rows) > size {
		overflow := rows[size]
		rows = rows[:size]

		token, err := c.mintCursor(overflow, params.OrderBy, resolved)
		if err != nil {
			return nil, err
		}
		page.NextCursor = &token
	}

	page.Data = lo.Map(rows, func(row T, _ int) Out {
		return c.meta.Transform(row)
	})

	return page, nil
}

// mintCursor builds the next page's token from the overflow row: the cursor
// column value, the fingerprint of the ordering in effect and one tie-break
// pair per custom order field.
func (c *Controller[T, Out]) mintCursor(overflow T, req *OrderRequest, resolved orderings) (string, error) {
	tieBreaks := make([]tieBreak, 0, len(resolved))
	for _, ord := range resolved {
		getter := c.meta.Getters[ord.field.ColumnName]
		value := derefValue(getter(overflow))
		if ord.field.ByLength && value != nil {
			length, err := lengthOf(value)
			if err != nil {
				return "", fmt.Errorf("cursor for column '%s': %w", ord.field.ColumnName, err)
			}
			value = length
		}

		tieBreaks = append(tieBreaks, tieBreak{Name: ord.field.ColumnName, Value: value})
	}

	return encodeCursor(
		formatCursorValue(derefValue(c.meta.CursorValue(overflow))),
		req.Fingerprint(),
		tieBreaks,
	), nil
}

// Get fetches a single record by primary key with prefetch relations.
func (c *Controller[T, Out]) Get(ctx context.Context, rawPK string) (*Out, error) {
	pk, err := c.pkValue(rawPK)
	if err != nil {
		return nil, err
	}

	row, err := c.fetchVisible(ctx, pk)
	if err != nil {
		return nil, err
	}

	out := c.meta.Transform(*row)
	return &out, nil
}

// Create persists a new record and re-resolves prefetch relations on it; a
// freshly inserted row does not come back with them attached.
func (c *Controller[T, Out]) Create(ctx context.Context, row *T) (*Out, error) {
	if err := c.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("creating %s: %w", c.meta.Resource, err)
	}

	var fresh T
	err := c.prefetched(c.base(ctx)).
		Where(fmt.Sprintf("%s = ?", c.meta.PrimaryKey), c.meta.PrimaryKeyValue(*row)).
		First(&fresh).Error
	if err != nil {
		return nil, fmt.Errorf("reloading created %s: %w", c.meta.Resource, err)
	}

	out := c.meta.Transform(fresh)
	return &out, nil
}

// Patch applies a partial update to the record with the given primary key.
// Every supplied column is written as-is; anything beyond backend-level
// checks is the caller's concern.
func (c *Controller[T, Out]) Patch(ctx context.Context, rawPK string, fields map[string]any) (*Out, error) {
	pk, err := c.pkValue(rawPK)
	if err != nil {
		return nil, err
	}

	if _, err := c.fetchVisible(ctx, pk); err != nil {
		return nil, err
	}

	if len(fields) != 0 {
		err = c.base(ctx).
			Where(fmt.Sprintf("%s = ?", c.meta.PrimaryKey), pk).
			Updates(fields).Error
		if err != nil {
			return nil, fmt.Errorf("patching %s: %w", c.meta.Resource, err)
		}
	}

	row, err := c.fetchVisible(ctx, pk)
	if err != nil {
		return nil, err
	}

	out := c.meta.Transform(*row)
	return &out, nil
}

// Delete removes the record with the given primary key. A record hidden by
// ambient filtering is reported as not found, same as a missing one.
func (c *Controller[T, Out]) Delete(ctx context.Context, rawPK string) error {
	pk, err := c.pkValue(rawPK)
	if err != nil {
		return err
	}

	if _, err := c.fetchVisible(ctx, pk); err != nil {
		return err
	}

	err = c.db.WithContext(ctx).
		Where(fmt.Sprintf("%s = ?", c.meta.PrimaryKey), pk).
		Delete(new(T)).Error
	if err != nil {
		return fmt.Errorf("deleting %s: %w", c.meta.Resource, err)
	}

	return nil
}

func (c *Controller[T, Out]) base(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx).Model(new(T))
}

func (c *Controller[T, Out]) prefetched(query *gorm.DB) *gorm.DB {
	for _, relation := range c.meta.Prefetch {
		query = query.Preload(relation)
	}

	return query
}

func (c *Controller[T, Out]) scoped(ctx context.Context, query *gorm.DB) *gorm.DB {
	if scope := ScopeFrom(ctx); scope != nil {
		return scope(query)
	}

	return query
}

// fetchVisible loads the row with the given primary key, subject to ambient
// filtering and prefetches.
func (c *Controller[T, Out]) fetchVisible(ctx context.Context, pk any) (*T, error) {
	var row T
	err := c.scoped(ctx, c.prefetched(c.base(ctx))).
		Where(fmt.Sprintf("%s = ?", c.meta.PrimaryKey), pk).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: c.meta.Resource, Key: pk}
	} else if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", c.meta.Resource, err)
	}

	return &row, nil
}

// pkValue turns a path value into the correct type for the primary key.
func (c *Controller[T, Out]) pkValue(raw string) (any, error) {
	pk, err := validatorFor(c.meta.PrimaryKeyType)(raw)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf(
			"Value '%s' not a supported type for the primary key. Expected '%s'",
			raw, c.meta.PrimaryKeyType,
		))
	}

	return pk, nil
}

// derefValue unwraps pointer values so nullable columns encode as the null
// sentinel rather than a pointer address.
func derefValue(v any) any {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}

	return v
}

// lengthOf mirrors the SQL length functions used by length-based ordering:
// character count for text, element count for slices and arrays.
func lengthOf(v any) (int, error) {
	switch vt := v.(type) {
	case string:
		return utf8.RuneCountInString(vt), nil
	case []byte:
		return len(vt), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len(), nil
	default:
		return 0, fmt.Errorf("cannot take the length of %T", v)
	}
}
