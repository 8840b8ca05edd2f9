package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	apimiddleware "crosslight/internal/api/middleware"
	"crosslight/internal/config"
	"crosslight/pkg/logger"
)

// Router assembles the HTTP surface.
type Router struct {
	config   config.ServerConfig
	handlers *Handlers
	logger   *logger.Logger
}

func NewRouter(cfg config.ServerConfig, h *Handlers, log *logger.Logger) *Router {
	return &Router{
		config:   cfg,
		handlers: h,
		logger:   log.WithComponent("router"),
	}
}

// Setup wires routes and middleware.
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	origins := r.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/healthz", r.handlers.Health)

	router.Route("/api/v1", func(api chi.Router) {
		api.Get("/artifact", r.handlers.Artifact)
		api.Get("/status", r.handlers.Status)
		api.Post("/run", r.handlers.Run)
	})

	return router
}
