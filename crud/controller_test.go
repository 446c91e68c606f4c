package crud

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID   int64
	Name string
}

type widgetOut struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newWidgetMeta() Meta[widget, widgetOut] {
	return Meta[widget, widgetOut]{
		Resource:       "widget",
		PrimaryKey:     "id",
		PrimaryKeyType: ColumnTypeInt,
		CursorColumn:   "id",
		CursorType:     ColumnTypeInt,
		DefaultOrder:   "id",
		Filters: MustFilterRegistry(
			FilterColumn{Name: "name", Column: "name", Type: ColumnTypeString, SupportsEquals: true, SupportsContains: true},
		),
		Orderable: MustOrderRegistry(
			OrderColumn{Name: "name", Column: "name", Type: ColumnTypeString, Length: LengthText},
		),
		Transform:       func(w widget) widgetOut { return widgetOut{ID: w.ID, Name: w.Name} },
		PrimaryKeyValue: func(w widget) any { return w.ID },
		CursorValue:     func(w widget) any { return w.ID },
		Getters: Getters[widget]{
			"name": func(w widget) any { return w.Name },
		},
	}
}

func newWidgetController(t *testing.T) (*Controller[widget, widgetOut], sqlmock.Sqlmock) {
	t.Helper()

	_, db, mock, err := newGORMPostgresMock()
	require.NoError(t, err)

	ctrl, err := NewController(db, nil, newWidgetMeta())
	require.NoError(t, err)

	return ctrl, mock
}

func Test_NewController_ValidatesMeta(t *testing.T) {
	_, db, _, err := newGORMPostgresMock()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Meta[widget, widgetOut])
	}{
		{"missing resource", func(m *Meta[widget, widgetOut]) { m.Resource = "" }},
		{"bad primary key column", func(m *Meta[widget, widgetOut]) { m.PrimaryKey = "id; --" }},
		{"bad cursor type", func(m *Meta[widget, widgetOut]) { m.CursorType = "decimal" }},
		{"missing transform", func(m *Meta[widget, widgetOut]) { m.Transform = nil }},
		{"missing getter", func(m *Meta[widget, widgetOut]) { m.Getters = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := newWidgetMeta()
			tt.mutate(&meta)
			_, err := NewController(db, nil, meta)
			require.Error(t, err)
		})
	}
}

func Test_Controller_List_MintsCursorFromOverflowRow(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	rows := sqlmock.NewRows([]string{"id", "name"})
	for i := 1; i <= 6; i++ {
		rows.AddRow(int64(i), "w")
	}
	mock.ExpectQuery(`SELECT \* FROM "widgets" ORDER BY id ASC LIMIT`).
		WillReturnRows(rows)

	page, err := ctrl.List(context.Background(), PageParams{PageSize: 5})
	require.NoError(t, err)
	require.Len(t, page.Data, 5)
	require.NotNil(t, page.NextCursor)

	// The overflow row, id 6, opens the next page.
	decoded, err := decodeCursor(*page.NextCursor, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "6", decoded.Value)

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_List_TerminalPage(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	mock.ExpectQuery(`SELECT \* FROM "widgets" ORDER BY id ASC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "a").
			AddRow(int64(2), "b"))

	page, err := ctrl.List(context.Background(), PageParams{PageSize: 5})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	require.Nil(t, page.NextCursor)

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_List_ResumesInclusively(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	token := encodeCursor("6", (*OrderRequest)(nil).Fingerprint(), nil)

	mock.ExpectQuery(`SELECT \* FROM "widgets" WHERE id >= \$1 ORDER BY id ASC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(6), "f").
			AddRow(int64(7), "g"))

	page, err := ctrl.List(context.Background(), PageParams{PageSize: 5, NextCursor: token})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	require.Equal(t, int64(6), page.Data[0].ID)
	require.Nil(t, page.NextCursor)

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_List_CustomOrderCarriesTieBreaks(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	order := &OrderRequest{Fields: []OrderField{{ColumnName: "name", Order: DirectionASC}}}

	mock.ExpectQuery(`SELECT \* FROM "widgets" ORDER BY name ASC,id ASC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(3), "apple").
			AddRow(int64(1), "banana").
			AddRow(int64(2), "cherry"))

	page, err := ctrl.List(context.Background(), PageParams{PageSize: 2, OrderBy: order})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	require.NotNil(t, page.NextCursor)

	resolved, err := ctrl.meta.Orderable.Resolve(order)
	require.NoError(t, err)

	decoded, err := decodeCursor(*page.NextCursor, order, resolved)
	require.NoError(t, err)
	require.Equal(t, "2", decoded.Value)
	require.Len(t, decoded.TieBreaks, 1)
	require.Equal(t, "cherry", decoded.TieBreaks[0].Value)

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_Search_InvalidFiltersRunNoQuery(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	_, err := ctrl.Search(context.Background(), PageParams{PageSize: 5}, SearchRequest{
		Filters: []FilterNode{
			{Leaf: &FilterLeaf{ColumnName: "bogus", Operation: OpEquals, SearchValue: "x"}},
		},
	})
	require.True(t, IsValidation(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_Search_AppliesPredicate(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	mock.ExpectQuery(`SELECT \* FROM "widgets" WHERE name ILIKE \$1 ORDER BY id ASC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "gadget"))

	page, err := ctrl.Search(context.Background(), PageParams{PageSize: 5}, SearchRequest{
		Filters: []FilterNode{
			{Leaf: &FilterLeaf{ColumnName: "name", Operation: OpContains, SearchValue: "adge"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_Count_AppliesAmbientScope(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	ctx := WithScope(context.Background(), func(db *gorm.DB) *gorm.DB {
		return db.Where("owner_id = ?", 9)
	})

	mock.ExpectQuery(`SELECT count\(\*\) FROM "widgets" WHERE owner_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	total, err := ctrl.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_Count_MySQL(t *testing.T) {
	_, db, mock, err := newGORMMySQLMock()
	require.NoError(t, err)

	ctrl, err := NewController(db, nil, newWidgetMeta())
	require.NoError(t, err)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `widgets`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))

	total, err := ctrl.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(12), total)

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_Get(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	mock.ExpectQuery(`SELECT \* FROM "widgets" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "gizmo"))

	out, err := ctrl.Get(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, widgetOut{ID: 7, Name: "gizmo"}, *out)

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_Get_NotFound(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	mock.ExpectQuery(`SELECT \* FROM "widgets" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err := ctrl.Get(context.Background(), "404")
	require.True(t, IsNotFound(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_Get_BadPrimaryKey(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	_, err := ctrl.Get(context.Background(), "not-a-number")
	require.True(t, IsValidation(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_Create_ReloadsRow(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "widgets"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectCommit()

	mock.ExpectQuery(`SELECT \* FROM "widgets" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(11), "fresh"))

	out, err := ctrl.Create(context.Background(), &widget{Name: "fresh"})
	require.NoError(t, err)
	require.Equal(t, widgetOut{ID: 11, Name: "fresh"}, *out)

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_Patch(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	mock.ExpectQuery(`SELECT \* FROM "widgets" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "old"))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "widgets" SET "name"=\$1 WHERE id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectQuery(`SELECT \* FROM "widgets" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "new"))

	out, err := ctrl.Patch(context.Background(), "7", map[string]any{"name": "new"})
	require.NoError(t, err)
	require.Equal(t, "new", out.Name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_Patch_EmptyBodyOnlyFetches(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	mock.ExpectQuery(`SELECT \* FROM "widgets" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "same"))
	mock.ExpectQuery(`SELECT \* FROM "widgets" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "same"))

	out, err := ctrl.Patch(context.Background(), "7", nil)
	require.NoError(t, err)
	require.Equal(t, "same", out.Name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_Delete(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	mock.ExpectQuery(`SELECT \* FROM "widgets" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "gone"))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "widgets" WHERE id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, ctrl.Delete(context.Background(), "7"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func Test_Controller_Delete_HiddenRowIsNotFound(t *testing.T) {
	ctrl, mock := newWidgetController(t)

	ctx := WithScope(context.Background(), func(db *gorm.DB) *gorm.DB {
		return db.Where("owner_id = ?", 9)
	})

	mock.ExpectQuery(`SELECT \* FROM "widgets" WHERE owner_id = \$1 AND id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	err := ctrl.Delete(ctx, "7")
	require.True(t, IsNotFound(err))

	require.NoError(t, mock.ExpectationsWereMet())
}
