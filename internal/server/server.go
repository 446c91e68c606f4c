package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Skelmis/Template-Website/internal/alerts"
	"github.com/Skelmis/Template-Website/internal/auth"
	"github.com/Skelmis/Template-Website/internal/config"
)

// Server is the HTTP boundary: it mounts a CRUD route group per resource and
// owns transport concerns (auth, logging, status mapping) so the crud core
// stays transport-free.
type Server struct {
	router chi.Router
	logger *zap.SugaredLogger
	config config.Config
}

func New(cfg config.Config, db *gorm.DB, logger *zap.SugaredLogger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		logger: logger.With("component", "server"),
		config: cfg,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger(s.logger))

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	alertController, err := alerts.NewController(db, s.logger)
	if err != nil {
		return nil, err
	}

	alertResource := &Resource[alerts.Alert, alerts.NewAlert, alerts.AlertOut]{
		Controller: alertController,
		FromInput:  alerts.NewAlert.Row,
		Scope:      alerts.ScopeFor,
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware([]byte(cfg.TokenSecret), s.logger))
		r.Mount("/alerts", alertResource.Routes(s.logger))
	})

	return s, nil
}

// Handler returns the root handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			logger.Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.Status(),
				"bytes", wrapped.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
