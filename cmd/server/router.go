package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/audio2srt/internal/api"
	apiMiddleware "github.com/phrazzld/audio2srt/internal/api/middleware"
)

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition", apiMiddleware.TraceIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	maxUpload := app.config.Server.MaxUploadBytes()
	transcribeHandler := api.NewTranscribeHandler(app.transcriber, maxUpload, app.logger)
	jobHandler := api.NewJobHandler(app.runner, app.jobStore, app.hub, maxUpload, app.logger)

	// Health check endpoint (public)
	r.Get("/health", api.HealthHandler)

	r.Group(func(r chi.Router) {
		if app.config.Auth.Enabled() {
			authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService, app.apiKeys)
			r.Use(authMiddleware.Authenticate)
		}

		r.Post("/transcribe", transcribeHandler.Transcribe)

		r.Post("/jobs", jobHandler.CreateJob)
		r.Get("/jobs/{id}", jobHandler.GetJob)
		r.Get("/jobs/{id}/subtitles", jobHandler.GetSubtitles)
		r.Get("/jobs/{id}/events", jobHandler.StreamEvents)
	})

	return r
}
