package crud

import (
	"encoding/base64"
	"testing"
	"time"
)

func Test_Cursor_RoundTrip(t *testing.T) {
	reg := newTestOrderRegistry(t)
	req := &OrderRequest{Fields: []OrderField{
		{ColumnName: "name", Order: DirectionASC},
		{ColumnName: "created_at", Order: DirectionDESC},
	}}
	resolved, err := reg.Resolve(req)
	if err != nil {
		t.Fatal(err)
	}

	minted := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	token := encodeCursor("42", req.Fingerprint(), []tieBreak{
		{Name: "name", Value: "widget"},
		{Name: "created_at", Value: minted},
	})

	decoded, err := decodeCursor(token, req, resolved)
	if err != nil {
		t.Fatal(err)
	}

	if decoded.Value != "42" {
		t.Errorf("value=%q want 42", decoded.Value)
	}
	if len(decoded.TieBreaks) != 2 {
		t.Fatalf("tie breaks=%d want 2", len(decoded.TieBreaks))
	}
	if decoded.TieBreaks[0].Value != "widget" {
		t.Errorf("tie break[0]=%v want widget", decoded.TieBreaks[0].Value)
	}
	if got, ok := decoded.TieBreaks[1].Value.(time.Time); !ok || !got.Equal(minted) {
		t.Errorf("tie break[1]=%v want %v", decoded.TieBreaks[1].Value, minted)
	}
}

func Test_Cursor_NullTieBreakSurvivesRoundTrip(t *testing.T) {
	reg := newTestOrderRegistry(t)
	req := &OrderRequest{Fields: []OrderField{
		{ColumnName: "created_at", Order: DirectionASC},
	}}
	resolved, err := reg.Resolve(req)
	if err != nil {
		t.Fatal(err)
	}

	token := encodeCursor("7", req.Fingerprint(), []tieBreak{
		{Name: "created_at", Value: nil},
	})

	decoded, err := decodeCursor(token, req, resolved)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.TieBreaks[0].Value != nil {
		t.Errorf("expected nil tie break, got %v", decoded.TieBreaks[0].Value)
	}
}

func Test_Cursor_ByLengthTieBreakIsInteger(t *testing.T) {
	reg := newTestOrderRegistry(t)
	req := &OrderRequest{Fields: []OrderField{
		{ColumnName: "name", Order: DirectionASC, ByLength: true},
	}}
	resolved, err := reg.Resolve(req)
	if err != nil {
		t.Fatal(err)
	}

	token := encodeCursor("7", req.Fingerprint(), []tieBreak{
		{Name: "name", Value: 6},
	})

	decoded, err := decodeCursor(token, req, resolved)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.TieBreaks[0].Value != int64(6) {
		t.Errorf("length tie break=%v (%T) want int64(6)",
			decoded.TieBreaks[0].Value, decoded.TieBreaks[0].Value)
	}
}

func Test_Cursor_RejectsChangedOrdering(t *testing.T) {
	reg := newTestOrderRegistry(t)
	reqAsc := &OrderRequest{Fields: []OrderField{{ColumnName: "name", Order: DirectionASC}}}
	reqDesc := &OrderRequest{Fields: []OrderField{{ColumnName: "name", Order: DirectionDESC}}}
	resolvedDesc, err := reg.Resolve(reqDesc)
	if err != nil {
		t.Fatal(err)
	}

	token := encodeCursor("42", reqAsc.Fingerprint(), []tieBreak{
		{Name: "name", Value: "widget"},
	})

	_, err = decodeCursor(token, reqDesc, resolvedDesc)
	if !IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if issues := validationIssues(err); len(issues) != 1 ||
		issues[0] != "Ordering changed between calls, cursor is no longer valid" {
		t.Errorf("unexpected issues %v", issues)
	}
}

func Test_Cursor_Malformed(t *testing.T) {
	reg := newTestOrderRegistry(t)
	req := &OrderRequest{Fields: []OrderField{{ColumnName: "name", Order: DirectionASC}}}
	resolved, err := reg.Resolve(req)
	if err != nil {
		t.Fatal(err)
	}

	pairWithoutComma := base64.RawURLEncoding.EncodeToString(
		[]byte("42" + cursorSeparator + req.Fingerprint() + cursorSeparator + "name-widget"),
	)
	wrongColumn := base64.RawURLEncoding.EncodeToString(
		[]byte("42" + cursorSeparator + req.Fingerprint() + cursorSeparator + "id,42"),
	)
	tooFewPairs := base64.RawURLEncoding.EncodeToString(
		[]byte("42" + cursorSeparator + req.Fingerprint()),
	)

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"single part", base64.RawURLEncoding.EncodeToString([]byte("42"))},
		{"pair without comma", pairWithoutComma},
		{"wrong column name", wrongColumn},
		{"pair count mismatch", tooFewPairs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeCursor(tt.token, req, resolved); !IsValidation(err) {
				t.Errorf("expected a validation error, got %v", err)
			}
		})
	}
}
