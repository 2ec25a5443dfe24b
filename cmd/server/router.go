package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mediagrab/grab-api/internal/api"
	"github.com/mediagrab/grab-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)

	downloadHandler := api.NewDownloadHandler(app.downloadService, app.logger)
	fileHandler := api.NewFileHandler(app.config.Download.Dir, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/downloads", downloadHandler.Start)
		r.Get("/downloads/{id}", downloadHandler.GetProgress)
		r.Post("/downloads/{id}/cancel", downloadHandler.Cancel)
	})

	// Finished files are served outside /api so the path in download_url can
	// be pasted straight into a browser.
	r.Get("/downloads/{filename}", fileHandler.Serve)

	r.Get("/health", api.HealthCheck)

	return r
}
