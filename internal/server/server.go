// Package server serves the insurance portal: HTML pages for browsers and a
// small JSON API for incremental form updates.
package server

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/faciam-dev/formportal/internal/catalog"
	"github.com/faciam-dev/formportal/internal/listing"
	"github.com/faciam-dev/formportal/internal/logger"
	"github.com/faciam-dev/formportal/internal/options"
	"github.com/faciam-dev/formportal/internal/render"
	"github.com/faciam-dev/formportal/internal/server/middleware"
	"github.com/faciam-dev/formportal/internal/session"
	"github.com/faciam-dev/formportal/pkg/client"
	"github.com/faciam-dev/formportal/pkg/formschema"
)

// FormLoadFailed replaces the form when its structure cannot be loaded.
const FormLoadFailed = "Failed to load the application form. Please try again later."

// Server wires the form engine to HTTP.
type Server struct {
	router    chi.Router
	api       huma.API
	backend   client.Client
	catalog   *catalog.Store
	sessions  *session.Manager
	submitter *session.Submitter
	options   *options.Resolver
	loader    *listing.Loader
	renderer  *render.Renderer
}

// New builds the router.
func New(cfg Config, backend client.Client, sessions *session.Manager, cat *catalog.Store) (*Server, error) {
	renderer, err := render.New()
	if err != nil {
		return nil, err
	}
	s := &Server{
		backend:   backend,
		catalog:   cat,
		sessions:  sessions,
		submitter: &session.Submitter{Backend: backend},
		options:   options.New(backend, cfg.Logger),
		loader:    listing.NewLoader(backend),
		renderer:  renderer,
	}

	r := chi.NewRouter()
	r.Use(middleware.Metrics)
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = AllowedOrigins()
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(middleware.Client)

	setupMetrics(r)
	r.Get("/", s.home)
	r.Get("/apply/{type}", s.applyForm)
	r.Post("/apply/{type}", s.applySubmit)
	r.Get("/applications", s.applications)

	s.api = humachi.New(r, huma.DefaultConfig("Insurance Portal API", "1.0.0"))
	s.registerAPI(s.api)
	s.router = r
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// API exposes the JSON API, e.g. for writing its OpenAPI document.
func (s *Server) API() huma.API { return s.api }

func (s *Server) structures(ctx context.Context, insuranceType string) ([]formschema.Structure, error) {
	st, err := s.backend.FetchForms(ctx, insuranceType)
	if err != nil {
		return nil, err
	}
	if _, err := formschema.Index(st...); err != nil {
		return nil, err
	}
	return st, nil
}

// Sweep releases the state of visitors idle for longer than idle: their live
// forms are written to drafts and dropped, and the option and listing
// sequencing state is forgotten.
func (s *Server) Sweep(idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	forms := s.sessions.Sweep(cutoff)
	fields := s.options.Sweep(cutoff)
	listings := s.loader.Sweep(cutoff)
	if forms+fields+listings > 0 {
		logger.L.Info("swept idle visitors", "forms", forms, "optionFields", fields, "listings", listings)
	}
}

func scope(ns, formID string) string { return ns + ":" + formID }

// writeHTML renders into a buffer first so a template error never leaves a
// half written page behind.
func writeHTML(w http.ResponseWriter, status int, fn func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		logger.L.Error("render page", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
