package server

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"metamorphosis/internal/session"
)

// New constructs the HTTP server with routes and middleware.
func New(port string, h session.Handler) *http.Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Get)
				r.Delete("/", h.Delete)
				r.Post("/upload", h.Upload)
				r.Post("/analyze", h.Analyze)
				r.Post("/render", h.Render)
				r.Get("/concept", h.Concept)
				r.Post("/guide", h.Guide)
				r.Post("/reset", h.Reset)
			})
		})
		r.Route("/designs", func(r chi.Router) {
			r.Get("/", h.ListDesigns)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetDesign)
				r.Delete("/", h.DeleteDesign)
			})
		})
		r.Get("/events", h.StreamEvents)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// Model calls and the event stream outlive any fixed write timeout.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	log.Println("server ready on", srv.Addr)
	return srv
}
