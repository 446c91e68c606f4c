package crud

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"
)

const (
	// cursorSeparator joins the token parts before base64 encoding. The unit
	// separator cannot appear in fingerprints or stringified column values.
	cursorSeparator = "\x1f"

	// nullSentinel stands in for SQL NULL in tie-break values so that
	// null-valued order columns survive the round trip.
	nullSentinel = "\x00:null:\x00"
)

// tieBreak is a decoded "column_name,value" cursor pair. A nil Value means
// the order column was NULL on the row the cursor was minted from.
type tieBreak struct {
	Name  string
	Value any
}

// cursor is the decoded form of the opaque pagination token: the cursor
// column value of the first row of the next page, the fingerprint of the
// ordering it was minted under and the tie-break values for that ordering.
type cursor struct {
	Value       string
	Fingerprint string
	TieBreaks   []tieBreak
}

// encodeCursor builds the opaque token: cursor value, order fingerprint and
// zero or more "column_name,value" pairs, separator-joined and base64
// encoded. The format is internal; clients must treat tokens as transient.
func encodeCursor(value string, fingerprint string, tieBreaks []tieBreak) string {
	parts := make([]string, 0, 2+len(tieBreaks))
	parts = append(parts, value, fingerprint)
	for _, tb := range tieBreaks {
		parts = append(parts, fmt.Sprintf("%s,%s", tb.Name, formatCursorValue(tb.Value)))
	}

	return _encoder.EncodeToString([]byte(strings.Join(parts, cursorSeparator)))
}

// decodeCursor parses and validates an opaque token against the ordering
// supplied on the current call. The embedded fingerprint must match the
// fingerprint of that ordering: cursors are single-ordering-use only, and a
// cursor replayed after changing the ordering is a client error. Tie-break
// values are re-hydrated into typed values per the order registry.
func decodeCursor(token string, req *OrderRequest, resolved orderings) (*cursor, error) {
	raw, err := _encoder.DecodeString(token)
	if err != nil {
		return nil, NewValidationError("Cursor is malformed")
	}

	parts := strings.Split(string(raw), cursorSeparator)
	if len(parts) < 2 {
		return nil, NewValidationError("Cursor is malformed")
	}

	decoded := &cursor{
		Value:       parts[0],
		Fingerprint: parts[1],
	}

	expected := req.Fingerprint()
	if subtle.ConstantTimeCompare([]byte(decoded.Fingerprint), []byte(expected)) != 1 {
		return nil, NewValidationError("Ordering changed between calls, cursor is no longer valid")
	}

	pairs := parts[2:]
	if len(pairs) != len(resolved) {
		return nil, NewValidationError("Cursor does not match the requested ordering")
	}

	for i, pair := range pairs {
		name, rawValue, found := strings.Cut(pair, ",")
		if !found {
			return nil, NewValidationError("Cursor is malformed")
		}

		ord := resolved[i]
		if name != ord.field.ColumnName {
			return nil, NewValidationError(fmt.Sprintf("Unexpected cursor column '%s'", name))
		}

		value, err := rehydrateCursorValue(rawValue, ord)
		if err != nil {
			return nil, NewValidationError("Cursor is malformed")
		}

		decoded.TieBreaks = append(decoded.TieBreaks, tieBreak{Name: name, Value: value})
	}

	return decoded, nil
}

// formatCursorValue stringifies a tie-break or cursor column value for
// transport inside a token.
func formatCursorValue(v any) string {
	if v == nil {
		return nullSentinel
	}

	switch vt := v.(type) {
	case time.Time:
		text, err := vt.MarshalText()
		if err != nil {
			return vt.UTC().Format(time.RFC3339Nano)
		}
		return string(text)
	case *time.Time:
		if vt == nil {
			return nullSentinel
		}
		return formatCursorValue(*vt)
	case fmt.Stringer:
		return vt.String()
	default:
		return fmt.Sprint(v)
	}
}

// rehydrateCursorValue turns a transported tie-break string back into a typed
// value. Length-ordered fields always carry the computed length, an integer,
// regardless of the column's own type.
func rehydrateCursorValue(raw string, ord ordering) (any, error) {
	if raw == nullSentinel {
		return nil, nil
	}

	if ord.field.ByLength {
		return validatorFor(ColumnTypeInt)(raw)
	}

	return ord.col.rehydrate(raw)
}
