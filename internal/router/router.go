package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/leca/image-vault/internal/api"
	"github.com/leca/image-vault/internal/config"
	"github.com/leca/image-vault/internal/database"
	"github.com/leca/image-vault/internal/handler"
	"github.com/leca/image-vault/internal/imagestore"
	"github.com/leca/image-vault/internal/metrics"
	"github.com/leca/image-vault/internal/storage"
)

// Server holds the application dependencies and HTTP router.
type Server struct {
	DB       database.Database
	Images   *imagestore.Store
	Config   *config.Config
	Registry *prometheus.Registry
	Router   chi.Router
}

// New creates a new Server with a fully configured chi router.
func New(db database.Database, objects storage.ObjectStore, cfg *config.Config, logger zerolog.Logger) *Server {
	m := metrics.New()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	images := imagestore.New(db, objects, logger, m)
	s := &Server{DB: db, Images: images, Config: cfg, Registry: reg}

	h := &handler.Handler{
		DB:     db,
		Images: images,
		Config: cfg,
		Logger: logger,
	}

	r := chi.NewRouter()

	// CORS must run first to answer preflight OPTIONS.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.RequestID)
	r.Use(api.RequestLogger(logger, m))
	r.Use(middleware.Recoverer)

	// Health check and metrics (no auth required).
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(api.AuthMiddleware(cfg.AuthToken))

		r.Post("/users", h.CreateUser)

		r.Route("/images", func(r chi.Router) {
			r.Use(api.UserMiddleware(db))

			r.Get("/", h.ListImages)
			r.Post("/", h.UploadImages)

			// Registered before the {id} wildcard so that /images/orphans
			// is not interpreted as id="orphans".
			r.Get("/orphans", h.GetOrphans)

			r.Get("/{id}", h.GetImageBlob)
			r.Delete("/{id}", h.DeleteImage)
			r.Get("/{id}/meta", h.GetImageMeta)
			r.Get("/{id}/versions", h.ListImageVersions)
			r.Post("/{id}/delete", h.DeleteImage)
			r.Post("/{id}/rename", h.RenameImage)
			r.Post("/{id}/revert", h.RevertImage)
			r.Post("/{id}/restore", h.RestoreImage)
		})
	})

	s.Router = r
	return s
}
