package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/soochol/datafiles/internal/metrics"
	"github.com/soochol/datafiles/internal/services"
)

const defaultMaxUploadBytes = 512 << 20 // 512MB

type Server struct {
	dataFiles      *services.DataFileService
	maxUploadBytes int64
	healthCheck    func(ctx context.Context) error
}

func NewServer(dataFiles *services.DataFileService) *Server {
	return &Server{
		dataFiles:      dataFiles,
		maxUploadBytes: defaultMaxUploadBytes,
	}
}

// SetMaxUploadBytes bounds the size of a create-or-update request body.
func (s *Server) SetMaxUploadBytes(n int64) {
	if n > 0 {
		s.maxUploadBytes = n
	}
}

// SetHealthCheck configures the readiness probe behind /healthz,
// typically a database ping.
func (s *Server) SetHealthCheck(fn func(ctx context.Context) error) {
	s.healthCheck = fn
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	}))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1/datafiles", func(r chi.Router) {
		r.Use(noStore)
		r.Get("/ping", s.ping)
		r.Get("/", s.listDataFiles)
		r.Post("/", s.saveDataFile)
		r.Get("/{id}", s.getDataFile)
		r.Put("/{id}", s.saveDataFile)
		r.Delete("/{id}", s.deleteDataFile)
		r.Get("/{id}/content", s.streamContent)
		r.Get("/{id}/content/{offset}/{lines}", s.streamContent)
		r.Get("/{id}/download", s.downloadContent)
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.healthCheck != nil {
		if err := s.healthCheck(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// noStore marks every data file response as uncacheable.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
