package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouteRegistrar is a handler set that mounts its own routes.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// SetupRoutes builds the router. health is mounted at the root and every
// other registrar under /api.
func SetupRoutes(health *HealthChecker, allowedOrigins []string, registrars ...RouteRegistrar) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if health != nil {
		health.RegisterRoutes(r)
	}

	r.Route("/api", func(r chi.Router) {
		for _, reg := range registrars {
			reg.RegisterRoutes(r)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})

	return r
}
