package server

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/faciam-dev/formportal/internal/listing"
	"github.com/faciam-dev/formportal/internal/logger"
	"github.com/faciam-dev/formportal/internal/render"
	"github.com/faciam-dev/formportal/internal/server/middleware"
	"github.com/faciam-dev/formportal/internal/session"
	"github.com/faciam-dev/formportal/pkg/formschema"
)

const columnsCookie = "portal_columns"

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	p := render.HomePage{Catalog: s.catalog.Get()}
	p.Flashes = takeFlash(w, r)
	writeHTML(w, http.StatusOK, func(b *bytes.Buffer) error { return s.renderer.Home(b, p) })
}

func (s *Server) applyPage(r *http.Request) render.ApplyPage {
	t := chi.URLParam(r, "type")
	return render.ApplyPage{Type: t, Name: s.catalog.Get().Name(t)}
}

func (s *Server) loadFailed(w http.ResponseWriter, p render.ApplyPage, err error) {
	logger.L.Error("load form structure", "type", p.Type, "err", err)
	p.LoadError = FormLoadFailed
	p.Flashes = append(p.Flashes, render.Flash{Kind: render.FlashError, Text: FormLoadFailed})
	writeHTML(w, http.StatusBadGateway, func(b *bytes.Buffer) error { return s.renderer.Apply(b, p) })
}

// renderForm resolves dynamic options against the form's current values and
// writes the apply page.
func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, p render.ApplyPage, structures []formschema.Structure, form *session.Form) {
	ns := middleware.ClientFromContext(r.Context())
	values := form.Values()
	ctx := render.Context{
		Values:  values,
		Errors:  form.Errors(),
		Options: s.options.ResolveAll(r.Context(), scope(ns, p.Type), structures, values),
	}
	h, err := render.Form(structures, ctx)
	if err != nil {
		logger.L.Error("render form", "type", p.Type, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	p.Form = h
	p.Busy = form.State() == session.Submitting
	p.Flashes = append(p.Flashes, noticeFlash(form.TakeNotice())...)
	writeHTML(w, status, func(b *bytes.Buffer) error { return s.renderer.Apply(b, p) })
}

func (s *Server) applyForm(w http.ResponseWriter, r *http.Request) {
	p := s.applyPage(r)
	p.Flashes = takeFlash(w, r)
	structures, err := s.structures(r.Context(), p.Type)
	if err != nil {
		s.loadFailed(w, p, err)
		return
	}
	form := s.sessions.Open(r.Context(), middleware.ClientFromContext(r.Context()), p.Type)
	s.renderForm(w, r, http.StatusOK, p, structures, form)
}

func (s *Server) applySubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	p := s.applyPage(r)
	structures, err := s.structures(r.Context(), p.Type)
	if err != nil {
		s.loadFailed(w, p, err)
		return
	}
	ns := middleware.ClientFromContext(r.Context())
	form := s.sessions.Open(r.Context(), ns, p.Type)
	form.Merge(render.DecodeSubmission(structures, r.PostForm))

	if r.PostForm.Get("action") != "submit" {
		s.renderForm(w, r, http.StatusOK, p, structures, form)
		return
	}

	res, err := s.submitter.Submit(r.Context(), form, structures)
	switch {
	case errors.Is(err, session.ErrBusy):
		p.Flashes = append(p.Flashes, render.Flash{Kind: render.FlashInfo, Text: "Your application is already being submitted."})
		s.renderForm(w, r, http.StatusConflict, p, structures, form)
	case res.OK():
		form.TakeNotice()
		s.sessions.Drop(ns, p.Type)
		s.options.Forget(scope(ns, p.Type))
		setFlash(w, render.Flash{Kind: render.FlashSuccess, Text: res.Notice})
		http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
	case !res.Errors.OK():
		p.Summary = res.Summary
		s.renderForm(w, r, http.StatusUnprocessableEntity, p, structures, form)
	default:
		s.renderForm(w, r, http.StatusBadGateway, p, structures, form)
	}
}

func (s *Server) applications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st := listing.FromQuery(q, s.catalog.Get().Columns)
	if q.Has("cols") {
		http.SetCookie(w, &http.Cookie{
			Name:     columnsCookie,
			Value:    q.Get("cols"),
			Path:     "/applications",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	} else if c, err := r.Cookie(columnsCookie); err == nil {
		st.ShowOnly(strings.Split(c.Value, ","))
	}

	view := s.loader.Load(r.Context(), middleware.ClientFromContext(r.Context()), st)
	if view.Stale {
		http.Error(w, "superseded by a newer request", http.StatusConflict)
		return
	}
	p := render.ApplicationsPage{View: view}
	p.Flashes = takeFlash(w, r)
	if view.Notice != "" {
		p.Flashes = append(p.Flashes, render.Flash{Kind: render.FlashError, Text: view.Notice})
	}
	writeHTML(w, http.StatusOK, func(b *bytes.Buffer) error { return s.renderer.Applications(b, p) })
}
