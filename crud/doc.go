// Package crud provides a generic CRUD controller for GORM with cursor-based
// pagination, dynamic filter compilation and stable multi-column ordering.
//
// Overview
//
// A Controller binds a Meta descriptor (table, primary key, cursor column,
// prefetches, filter and order registries) to the operations Count, List,
// Search, Get, Create, Patch and Delete. Pagination is keyset based: every
// page fetches one extra row and, when it comes back, mints an opaque cursor
// from it. Cursors bind the ordering they were minted under via a fingerprint
// and carry tie-break values so that non-unique sort columns never skip or
// duplicate rows across pages.
//
// Key concepts
//   - FilterRegistry: declares which columns may be searched, for which
//     operations, against which value types.
//   - OrderRegistry: declares which columns may be ordered by, including
//     length-based ordering.
//   - OrderRequest: a client-supplied multi-column ordering.
//   - Scope: ambient row-level filtering injected through the request context.
package crud

import "encoding/base64"

var _encoder = base64.RawURLEncoding
