package alerts

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Skelmis/Template-Website/crud"
	"github.com/Skelmis/Template-Website/internal/auth"
)

// Filters declares the searchable surface of the alerts table.
var Filters = crud.MustFilterRegistry(
	crud.FilterColumn{
		Name:               "message",
		Column:             "message",
		Type:               crud.ColumnTypeString,
		SupportsEquals:     true,
		SupportsStartsWith: true,
		SupportsEndsWith:   true,
		SupportsContains:   true,
	},
	crud.FilterColumn{
		Name:           "level",
		Column:         "level",
		Type:           crud.ColumnTypeString,
		SupportsEquals: true,
	},
	crud.FilterColumn{
		Name:           "has_been_shown",
		Column:         "has_been_shown",
		Type:           crud.ColumnTypeBool,
		SupportsEquals: true,
	},
	crud.FilterColumn{
		Name:                     "was_shown_at",
		Column:                   "was_shown_at",
		Type:                     crud.ColumnTypeTime,
		SupportsIsNull:           true,
		SupportsGreaterThan:      true,
		SupportsGreaterThanEqual: true,
		SupportsLessThan:         true,
		SupportsLessThanEqual:    true,
	},
	crud.FilterColumn{
		Name:           "target",
		Column:         "target_id",
		Type:           crud.ColumnTypeInt,
		SupportsEquals: true,
	},
)

// Orderable declares the orderable surface of the alerts table.
var Orderable = crud.MustOrderRegistry(
	crud.OrderColumn{Name: "id", Column: "id", Type: crud.ColumnTypeInt},
	crud.OrderColumn{Name: "message", Column: "message", Type: crud.ColumnTypeString, Length: crud.LengthText},
	crud.OrderColumn{Name: "level", Column: "level", Type: crud.ColumnTypeString},
	crud.OrderColumn{Name: "target", Column: "target_id", Type: crud.ColumnTypeInt},
	crud.OrderColumn{Name: "was_shown_at", Column: "was_shown_at", Type: crud.ColumnTypeTime},
)

// NewController binds the generic CRUD controller to the alerts table.
func NewController(db *gorm.DB, logger *zap.SugaredLogger) (*crud.Controller[Alert, AlertOut], error) {
	return crud.NewController(db, logger, crud.Meta[Alert, AlertOut]{
		Resource:       "alert",
		PrimaryKey:     "uuid",
		PrimaryKeyType: crud.ColumnTypeUUID,
		CursorColumn:   "id",
		CursorType:     crud.ColumnTypeInt,
		DefaultOrder:   "id",
		Prefetch:       []string{"Target"},
		Filters:        Filters,
		Orderable:      Orderable,
		Transform:      transform,
		PrimaryKeyValue: func(row Alert) any {
			return row.UUID
		},
		CursorValue: func(row Alert) any {
			return row.ID
		},
		Getters: crud.Getters[Alert]{
			"id":      func(last Alert) any { return last.ID },
			"message": func(last Alert) any { return last.Message },
			"level":   func(last Alert) any { return string(last.Level) },
			// Drawn through the foreign key: the referenced user's id, not
			// the relation object.
			"target":       func(last Alert) any { return last.TargetID },
			"was_shown_at": func(last Alert) any { return last.WasShownAt },
		},
	})
}

// ScopeFor limits alert visibility to the authenticated user. Admins see
// every row.
func ScopeFor(claims *auth.Claims) crud.Scope {
	if claims == nil || claims.Admin {
		return nil
	}

	return func(db *gorm.DB) *gorm.DB {
		return db.Where("target_id = ?", claims.UserID)
	}
}
