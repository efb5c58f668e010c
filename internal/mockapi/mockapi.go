// Package mockapi is an in-memory stand-in for the insurance backend, used by
// tests and local development.
package mockapi

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/faciam-dev/formportal/internal/logger"
	"github.com/faciam-dev/formportal/pkg/formschema"
)

//go:embed schemas/*.yaml
var schemaFiles embed.FS

// States lists the options served by the states endpoint per country.
var States = map[string][]string{
	"USA":    {"California", "Florida", "New York", "Texas", "Washington"},
	"Canada": {"Alberta", "British Columbia", "Ontario", "Quebec"},
}

// Schemas returns the built-in form structures keyed by insurance type.
func Schemas() (map[string][]formschema.Structure, error) {
	entries, err := schemaFiles.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	out := map[string][]formschema.Structure{}
	for _, e := range entries {
		b, err := schemaFiles.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		s, err := formschema.DecodeYAML(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if _, err := formschema.Index(s...); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), path.Ext(e.Name()))] = s
	}
	return out, nil
}

// Server holds submitted applications in memory.
type Server struct {
	// OmitTotal drops the total count from listing responses, like older
	// backends do.
	OmitTotal bool
	// Now stamps new applications. Defaults to time.Now.
	Now func() time.Time

	schemas map[string][]formschema.Structure

	mu   sync.RWMutex
	apps []formschema.Application
}

// New returns a Server serving the built-in schemas.
func New() (*Server, error) {
	s, err := Schemas()
	if err != nil {
		return nil, err
	}
	return &Server{schemas: s, Now: time.Now}, nil
}

// Handler returns the HTTP routes of the backend.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/insurance/forms", s.forms)
	r.Post("/api/insurance/forms/submit", s.submit)
	r.Get("/api/insurance/forms/submissions", s.submissions)
	r.Get("/api/states", s.states)
	r.Post("/api/states", s.states)
	return r
}

// Applications returns a copy of everything submitted so far.
func (s *Server) Applications() []formschema.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]formschema.Application(nil), s.apps...)
}

// Seed adds applications directly.
func (s *Server) Seed(apps ...formschema.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps = append(s.apps, apps...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) forms(w http.ResponseWriter, r *http.Request) {
	t := r.URL.Query().Get("type")
	st, ok := s.schemas[t]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown insurance type "+strconv.Quote(t))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type submitRequest struct {
	FormID string            `json:"formId"`
	Data   formschema.Values `json:"data"`
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if _, ok := s.schemas[req.FormID]; !ok {
		writeError(w, http.StatusBadRequest, "unknown form "+strconv.Quote(req.FormID))
		return
	}
	now := s.Now().UTC()
	app := formschema.Application{
		ID:        uuid.NewString(),
		Type:      req.FormID,
		Status:    "submitted",
		CreatedAt: now,
		UpdatedAt: now,
		Data:      req.Data,
	}
	s.mu.Lock()
	s.apps = append(s.apps, app)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, app)
}

type listResponse struct {
	Data  []formschema.Application `json:"data"`
	Total *int                     `json:"total,omitempty"`
}

func (s *Server) submissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = 10
	}
	term := strings.ToLower(strings.TrimSpace(q.Get("search")))

	s.mu.RLock()
	var rows []formschema.Application
	for _, a := range s.apps {
		if term == "" || matches(a, term) {
			rows = append(rows, a)
		}
	}
	s.mu.RUnlock()

	if field := q.Get("sort"); field != "" {
		desc := q.Get("order") == "desc"
		sort.SliceStable(rows, func(i, j int) bool {
			c := compare(sortValue(rows[i], field), sortValue(rows[j], field))
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	total := len(rows)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	resp := listResponse{Data: rows[start:end]}
	if resp.Data == nil {
		resp.Data = []formschema.Application{}
	}
	if !s.OmitTotal {
		resp.Total = &total
	}
	writeJSON(w, http.StatusOK, resp)
}

func matches(a formschema.Application, term string) bool {
	if strings.Contains(strings.ToLower(a.Type), term) || strings.Contains(strings.ToLower(a.Status), term) {
		return true
	}
	for k := range a.Data {
		if strings.Contains(strings.ToLower(a.Data.Text(k)), term) {
			return true
		}
	}
	return false
}

func sortValue(a formschema.Application, field string) any {
	switch field {
	case "id":
		return a.ID
	case "type":
		return a.Type
	case "status":
		return a.Status
	case "createdAt":
		return float64(a.CreatedAt.UnixNano())
	case "updatedAt":
		return float64(a.UpdatedAt.UnixNano())
	}
	return a.Data[field]
}

// compare orders numbers numerically, everything else by its text. Missing
// values sort first.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	fa, okA := number(a)
	fb, okB := number(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func (s *Server) states(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if r.Method == http.MethodPost {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		country = body["country"]
	}
	states, ok := States[country]
	if !ok {
		states = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"states": states})
}
