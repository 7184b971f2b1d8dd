// Package http provides the HTTP delivery layer for the URL shortener service.
// This package contains the HTTP handlers and related types used for processing
// incoming requests, validating input, and formatting responses.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig holds the settings the router needs beyond its dependencies.
type RouterConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	// FrontendURL is linked from the page served for unknown short codes.
	FrontendURL string
}

// NewRouter initializes and returns a new Chi router configured with middleware and routes for the URL shortener API.
func NewRouter(logger *httplog.Logger, cfg RouterConfig, urlUseCase urlUseCase, qr qrEncoder) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(docs.Swagger)
	})

	h := newURLHandler(urlUseCase, qr, validator.New(), cfg.FrontendURL)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handleHealth)
		r.Post("/shorten", h.shortenURL)
		r.Get("/urls", h.listURLs)
	})

	r.Get("/{shortCode}", h.resolveShortCode)

	return r
}
