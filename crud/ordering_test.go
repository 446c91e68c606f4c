package crud

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func Test_Direction_Valid_And_ForOperator(t *testing.T) {
	tests := []struct {
		name     string
		in       Direction
		valid    bool
		operator Operator
	}{
		{"ASC valid maps to GT", DirectionASC, true, OperatorGT},
		{"DESC valid maps to LT", DirectionDESC, true, OperatorLT},
	}
	for _, tt := range tests {
		if got := tt.in.Valid(); got != tt.valid {
			t.Errorf("%s: Valid=%v want %v", tt.name, got, tt.valid)
		}
		if got := tt.in.ForOperator(); got != tt.operator {
			t.Errorf("%s: ForOperator=%v want %v", tt.name, got, tt.operator)
		}
	}
}

func Test_Direction_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Direction
		ok   bool
	}{
		{"asc", `"asc"`, DirectionASC, true},
		{"ascending", `"ascending"`, DirectionASC, true},
		{"desc", `"desc"`, DirectionDESC, true},
		{"descending uppercase", `"DESCENDING"`, DirectionDESC, true},
		{"padded", `" asc "`, DirectionASC, true},
		{"unknown", `"sideways"`, "", false},
		{"non-string", `42`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Direction
			err := json.Unmarshal([]byte(tt.in), &got)
			if (err == nil) != tt.ok {
				t.Fatalf("ok=%v err=%v", tt.ok, err)
			}
			if tt.ok && got != tt.want {
				t.Errorf("got %s want %s", got, tt.want)
			}
		})
	}
}

func Test_Direction_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(OrderField{ColumnName: "id", Order: DirectionDESC})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"descending"`) {
		t.Errorf("expected long form direction, got %s", data)
	}
}

func newTestOrderRegistry(t *testing.T) *OrderRegistry {
	t.Helper()

	reg, err := NewOrderRegistry(
		OrderColumn{Name: "id", Column: "id", Type: ColumnTypeInt},
		OrderColumn{Name: "name", Column: "name", Type: ColumnTypeString, Length: LengthText},
		OrderColumn{Name: "tags", Column: "tags", Type: ColumnTypeString, Length: LengthArray},
		OrderColumn{Name: "created_at", Column: "created_at", Type: ColumnTypeTime},
	)
	if err != nil {
		t.Fatal(err)
	}

	return reg
}

func Test_OrderRegistry_Resolve(t *testing.T) {
	reg := newTestOrderRegistry(t)

	tests := []struct {
		name       string
		req        *OrderRequest
		ok         bool
		wantSQL    string
		wantIssues []string
	}{
		{
			name: "nil request resolves empty",
			req:  nil,
			ok:   true,
		},
		{
			name: "plain columns",
			req: &OrderRequest{Fields: []OrderField{
				{ColumnName: "name", Order: DirectionDESC},
				{ColumnName: "id", Order: DirectionASC},
			}},
			ok:      true,
			wantSQL: "name DESC, id ASC",
		},
		{
			name: "missing direction defaults to ASC",
			req: &OrderRequest{Fields: []OrderField{
				{ColumnName: "id"},
			}},
			ok:      true,
			wantSQL: "id ASC",
		},
		{
			name: "by length uses LENGTH",
			req: &OrderRequest{Fields: []OrderField{
				{ColumnName: "name", Order: DirectionASC, ByLength: true},
			}},
			ok:      true,
			wantSQL: "LENGTH(name) ASC",
		},
		{
			name: "array length uses CARDINALITY",
			req: &OrderRequest{Fields: []OrderField{
				{ColumnName: "tags", Order: DirectionDESC, ByLength: true},
			}},
			ok:      true,
			wantSQL: "CARDINALITY(tags) DESC",
		},
		{
			name: "unknown column suggests closest",
			req: &OrderRequest{Fields: []OrderField{
				{ColumnName: "idx", Order: DirectionASC},
			}},
			ok:         false,
			wantIssues: []string{"Column 'idx' not supported. Closest: 'id'"},
		},
		{
			name: "issues are batched",
			req: &OrderRequest{Fields: []OrderField{
				{ColumnName: "idx", Order: DirectionASC},
				{ColumnName: "id", Order: DirectionASC, ByLength: true},
			}},
			ok: false,
			wantIssues: []string{
				"Column 'idx' not supported. Closest: 'id'",
				"Column 'id' does not support ordering by length",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := reg.Resolve(tt.req)
			if (err == nil) != tt.ok {
				t.Fatalf("ok=%v err=%v", tt.ok, err)
			}

			if tt.ok {
				if got := resolved.ToSQL(); got != tt.wantSQL {
					t.Errorf("ToSQL=%q want %q", got, tt.wantSQL)
				}
				return
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected a validation error, got %v", err)
			}
			if len(vErr.Issues) != len(tt.wantIssues) {
				t.Fatalf("issues=%v want %v", vErr.Issues, tt.wantIssues)
			}
			for i, want := range tt.wantIssues {
				if vErr.Issues[i] != want {
					t.Errorf("issue[%d]=%q want %q", i, vErr.Issues[i], want)
				}
			}
		})
	}
}

func Test_OrderRequest_Fingerprint(t *testing.T) {
	reqA := &OrderRequest{Fields: []OrderField{{ColumnName: "name", Order: DirectionASC}}}
	reqB := &OrderRequest{Fields: []OrderField{{ColumnName: "name", Order: DirectionDESC}}}
	reqC := &OrderRequest{Fields: []OrderField{{ColumnName: "name", Order: DirectionASC, ByLength: true}}}

	if reqA.Fingerprint() != reqA.Fingerprint() {
		t.Error("fingerprint should be stable across calls")
	}
	if reqA.Fingerprint() == reqB.Fingerprint() {
		t.Error("direction change should change the fingerprint")
	}
	if reqA.Fingerprint() == reqC.Fingerprint() {
		t.Error("by_length change should change the fingerprint")
	}

	var zero *OrderRequest
	if zero.Fingerprint() != "null" {
		t.Errorf("zero request fingerprint=%q want null", zero.Fingerprint())
	}
	if (&OrderRequest{}).Fingerprint() != "null" {
		t.Error("empty request should hash to null")
	}
}

func Test_closestName(t *testing.T) {
	names := []string{"id", "name", "created_at"}
	tests := []struct {
		name string
		in   string
		out  string
	}{
		{"closest to id", "idx", "id"},
		{"closest to name", "nme", "name"},
		{"closest to created_at", "createdat", "created_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := closestName(tt.in, names); got != tt.out {
				t.Errorf("%s: got %s want %s", tt.name, got, tt.out)
			}
		})
	}
}
