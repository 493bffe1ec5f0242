package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router assembles the chi mux: middleware stack, route execution
// under /x/, and the schema CRUD. The returned RateLimiter owns a
// background sweep; callers stop it on shutdown.
func (s *Server) Router(rps float64, burst int) (http.Handler, *RateLimiter) {
	limiter := NewRateLimiter(rps, burst)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(limiter.Middleware)
	r.Use(middleware.Heartbeat("/ping"))

	r.Post("/x/*", s.ExecuteRoute)

	r.Get("/projects", s.ListProjects)
	r.Post("/projects", s.CreateProject)
	r.Get("/collections", s.ListCollections)
	r.Post("/collections", s.CreateCollection)
	r.Post("/data/{project}/{collection}", s.CreateRecord)

	return r, limiter
}
