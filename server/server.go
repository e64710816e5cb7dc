// Package server exposes an edit session over HTTP for an external editing UI.
package server

import (
	"bytes"
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/ddvk/psdscene/scene"
	"github.com/ddvk/psdscene/source"
)

// Server routes requests to one scene.Session
type Server struct {
	router       chi.Router
	session      *scene.Session
	fetcher      *source.Fetcher
	locator      string
	previewWidth int
}

func NewServer(session *scene.Session, fetcher *source.Fetcher, locator string, previewWidth int) *Server {
	s := &Server{
		session:      session,
		fetcher:      fetcher,
		locator:      locator,
		previewWidth: previewWidth,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/document", s.handleDocument)
		r.Post("/reload", s.handleReload)

		r.Get("/fields", s.handleFields)
		r.Put("/fields/{label}", s.handleSetField)
		r.Post("/commit", s.handleCommit)
		r.Post("/revert", s.handleRevert)

		r.Post("/selection", s.handleSelect)
		r.Delete("/selection", s.handleClearSelection)
		r.Post("/nodes/{id}/position", s.handleMove)

		r.Get("/preview.png", s.handlePreview)
		r.Get("/export.png", s.handleExport)
	})

	s.router = r
}

// Reload fetches the document again and replaces the scene
func (s *Server) Reload(ctx context.Context) error {
	buf, err := s.fetcher.Fetch(ctx, s.locator)
	if err != nil {
		return err
	}
	if err := s.session.Load(ctx, bytes.NewReader(buf)); err != nil {
		return err
	}
	if s.previewWidth > 0 {
		if _, err := s.session.Resize(s.previewWidth); err != nil {
			return err
		}
	}
	for _, problem := range s.session.Problems() {
		log.WithField("source", s.locator).Warn(problem)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
