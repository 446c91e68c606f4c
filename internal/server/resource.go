package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Skelmis/Template-Website/crud"
	"github.com/Skelmis/Template-Website/internal/auth"
)

var validate = validator.New()

// Resource mounts one crud.Controller as a CRUD route group. In is the create
// body; FromInput builds a row from it. Scope derives the ambient row
// visibility from the authenticated token.
type Resource[T any, In any, Out any] struct {
	Controller *crud.Controller[T, Out]
	FromInput  func(In) (*T, error)
	Scope      func(*auth.Claims) crud.Scope
}

// Routes builds the route group:
//
//	GET    /             paged list
//	POST   /             create
//	POST   /search       paged search
//	GET    /meta/count   total record count
//	GET    /meta/filters searchable columns
//	GET    /meta/order   orderable columns
//	GET    /{primaryKey} fetch one
//	PATCH  /{primaryKey} partial update
//	DELETE /{primaryKey} delete
func (res *Resource[T, In, Out]) Routes(logger *zap.SugaredLogger) chi.Router {
	r := chi.NewRouter()
	r.Use(res.scopeMiddleware)

	r.Get("/", res.list(logger))
	r.Post("/", res.create(logger))
	r.Post("/search", res.search(logger))
	r.Get("/meta/count", res.count(logger))
	r.Get("/meta/filters", res.filterOptions())
	r.Get("/meta/order", res.orderOptions())
	r.Get("/{primaryKey}", res.get(logger))
	r.Patch("/{primaryKey}", res.patch(logger))
	r.Delete("/{primaryKey}", res.remove(logger))

	return r
}

// scopeMiddleware turns the authenticated token into the controller's
// ambient filtering for every operation in the group.
func (res *Resource[T, In, Out]) scopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if res.Scope != nil {
			claims, _ := auth.CurrentUser(r.Context())
			if scope := res.Scope(claims); scope != nil {
				r = r.WithContext(crud.WithScope(r.Context(), scope))
			}
		}

		next.ServeHTTP(w, r)
	})
}

// pageParams parses the shared pagination query parameters: _page_size,
// _next_cursor and _order_by (a JSON order request in compact form).
func pageParams(r *http.Request) (crud.PageParams, error) {
	params := crud.PageParams{
		NextCursor: r.URL.Query().Get("_next_cursor"),
	}

	if raw := r.URL.Query().Get("_page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return params, crud.NewValidationError(fmt.Sprintf("Value '%s' is not a valid page size", raw))
		}
		params.PageSize = size
	}

	if raw := r.URL.Query().Get("_order_by"); raw != "" {
		var orderBy crud.OrderRequest
		if err := json.Unmarshal([]byte(raw), &orderBy); err != nil {
			return params, crud.NewValidationError(fmt.Sprintf("Value '%s' is not a valid order request", raw))
		}
		params.OrderBy = &orderBy
	}

	return params, nil
}

func (res *Resource[T, In, Out]) list(logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		page, err := res.Controller.List(r.Context(), params)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		respondJSON(w, http.StatusOK, page)
	}
}

func (res *Resource[T, In, Out]) search(logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		var body crud.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, logger, crud.NewValidationError("Request body is not a valid search request"))
			return
		}

		page, err := res.Controller.Search(r.Context(), params, body)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		respondJSON(w, http.StatusOK, page)
	}
}

func (res *Resource[T, In, Out]) count(logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		total, err := res.Controller.Count(r.Context())
		if err != nil {
			respondError(w, logger, err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]any{"total_records": total})
	}
}

func (res *Resource[T, In, Out]) filterOptions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"filters": res.Controller.FilterOptions(),
		})
	}
}

func (res *Resource[T, In, Out]) orderOptions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"columns": res.Controller.OrderOptions(),
		})
	}
}

func (res *Resource[T, In, Out]) get(logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := res.Controller.Get(r.Context(), chi.URLParam(r, "primaryKey"))
		if err != nil {
			respondError(w, logger, err)
			return
		}

		respondJSON(w, http.StatusOK, out)
	}
}

func (res *Resource[T, In, Out]) create(logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body In
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, logger, crud.NewValidationError("Request body is not valid"))
			return
		}

		if err := validate.Struct(body); err != nil {
			respondError(w, logger, crud.NewValidationError(err.Error()))
			return
		}

		row, err := res.FromInput(body)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		out, err := res.Controller.Create(r.Context(), row)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		respondJSON(w, http.StatusCreated, out)
	}
}

func (res *Resource[T, In, Out]) patch(logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			respondError(w, logger, crud.NewValidationError("Request body is not valid"))
			return
		}

		out, err := res.Controller.Patch(r.Context(), chi.URLParam(r, "primaryKey"), fields)
		if err != nil {
			respondError(w, logger, err)
			return
		}

		respondJSON(w, http.StatusOK, out)
	}
}

func (res *Resource[T, In, Out]) remove(logger *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := res.Controller.Delete(r.Context(), chi.URLParam(r, "primaryKey")); err != nil {
			respondError(w, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
