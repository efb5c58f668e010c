package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/formportal/internal/catalog"
	"github.com/faciam-dev/formportal/internal/draft"
	"github.com/faciam-dev/formportal/internal/mockapi"
	"github.com/faciam-dev/formportal/internal/session"
	"github.com/faciam-dev/formportal/pkg/client"
)

type harness struct {
	backend *mockapi.Server
	apiURL  string
	store   *draft.MemoryStore
	clock   *draft.ManualClock
	portal   *httptest.Server
	http     *http.Client
	srv      *Server
	sessions *session.Manager
}

func newHarness(t *testing.T, wrap func(http.Handler) http.Handler) *harness {
	t.Helper()
	backend, err := mockapi.New()
	if err != nil {
		t.Fatal(err)
	}
	var h http.Handler = backend.Handler()
	if wrap != nil {
		h = wrap(h)
	}
	api := httptest.NewServer(h)
	t.Cleanup(api.Close)

	store := draft.NewMemoryStore()
	clock := &draft.ManualClock{}
	sessions := session.NewManager(store, session.WithClock(clock))
	srv, err := New(Config{AllowedOrigins: []string{"http://localhost"}}, client.New(api.URL), sessions, catalog.NewStore("", nil))
	if err != nil {
		t.Fatal(err)
	}
	portal := httptest.NewServer(srv.Handler())
	t.Cleanup(portal.Close)

	jar, _ := cookiejar.New(nil)
	return &harness{backend: backend, apiURL: api.URL, store: store, clock: clock, portal: portal, http: &http.Client{Jar: jar}, srv: srv, sessions: sessions}
}

func (h *harness) do(t *testing.T, method, path string, body io.Reader, contentType string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, h.portal.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.http.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func (h *harness) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	return h.do(t, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (h *harness) drafts(t *testing.T) int {
	t.Helper()
	h.clock.Advance(draft.DefaultDelay)
	return h.store.Len()
}

func TestHomePage(t *testing.T) {
	h := newHarness(t, nil)
	resp, body := h.do(t, http.MethodGet, "/", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	for _, want := range []string{"Health Insurance", "Home Insurance", "Car Insurance", "Life Insurance", `href="/apply/health"`} {
		if !strings.Contains(body, want) {
			t.Errorf("home missing %q", want)
		}
	}
}

func TestSubmitHealthApplication(t *testing.T) {
	h := newHarness(t, nil)

	resp, body := h.do(t, http.MethodGet, "/apply/health", nil, "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Health Insurance Application") {
		t.Fatalf("apply page %d:\n%s", resp.StatusCode, body)
	}
	if strings.Contains(body, "Smoking Habits") {
		t.Fatalf("hidden group rendered")
	}

	resp, _ = h.post(t, "/apply/health", url.Values{"action": {"save"}, "fullName": {"Jane Doe"}, "country": {"USA"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status %d", resp.StatusCode)
	}
	if n := h.drafts(t); n != 1 {
		t.Fatalf("drafts = %d", n)
	}

	_, body = h.do(t, http.MethodGet, "/apply/health", nil, "")
	if !strings.Contains(body, `<option value="Texas">Texas</option>`) {
		t.Fatalf("dynamic options not resolved:\n%s", body)
	}

	resp, body = h.post(t, "/apply/health", url.Values{"action": {"submit"}, "fullName": {"Jane Doe"}, "age": {""}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("invalid submit status %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Age is required") || !strings.Contains(body, "Please fix the errors in the form before submitting.") {
		t.Fatalf("errors not shown:\n%s", body)
	}
	if h.drafts(t) != 1 {
		t.Fatalf("draft removed by failed validation")
	}

	resp, body = h.post(t, "/apply/health", url.Values{"action": {"submit"}, "fullName": {"Jane Doe"}, "age": {"34"}})
	if resp.StatusCode != http.StatusOK || resp.Request.URL.Path != "/applications" {
		t.Fatalf("submit landed on %s (%d)", resp.Request.URL.Path, resp.StatusCode)
	}
	if !strings.Contains(body, "Your application has been submitted successfully.") || !strings.Contains(body, "<td>Jane Doe</td>") {
		t.Fatalf("listing after submit:\n%s", body)
	}
	if n := h.drafts(t); n != 0 {
		t.Fatalf("drafts after submit = %d", n)
	}
	apps := h.backend.Applications()
	if len(apps) != 1 || apps[0].Type != "health" || apps[0].Data.Text("age") != "34" {
		t.Fatalf("backend applications = %+v", apps)
	}

	_, body = h.do(t, http.MethodGet, "/applications", nil, "")
	if strings.Contains(body, "submitted successfully") {
		t.Fatalf("flash shown twice")
	}
}

func TestDraftRestoredAcrossVisits(t *testing.T) {
	h := newHarness(t, nil)
	h.post(t, "/apply/car", url.Values{"action": {"save"}, "fullName": {"Sam"}, "make": {"Volvo"}})
	if h.drafts(t) != 1 {
		t.Fatalf("draft not written")
	}

	// a second portal over the same store stands in for a restart
	srv, err := New(Config{AllowedOrigins: []string{"http://localhost"}}, client.New(h.apiURL), session.NewManager(h.store), catalog.NewStore("", nil))
	if err != nil {
		t.Fatal(err)
	}
	restarted := httptest.NewServer(srv.Handler())
	defer restarted.Close()
	resp, err := h.http.Get(restarted.URL + "/apply/car")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	body := string(b)
	if !strings.Contains(body, session.RestoredNotice) || !strings.Contains(body, `value="Volvo"`) {
		t.Fatalf("draft not restored:\n%s", body)
	}
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	h := newHarness(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/insurance/forms/submit" {
				http.Error(w, "down", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	resp, body := h.post(t, "/apply/health", url.Values{"action": {"submit"}, "fullName": {"Jane Doe"}, "age": {"34"}})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(body, session.FailureNotice) || !strings.Contains(body, `value="Jane Doe"`) {
		t.Fatalf("failure page:\n%s", body)
	}
	if h.drafts(t) != 1 {
		t.Fatalf("draft lost after failed submission")
	}
}

func TestFormLoadFailure(t *testing.T) {
	h := newHarness(t, nil)
	resp, body := h.do(t, http.MethodGet, "/apply/boat", nil, "")
	if resp.StatusCode != http.StatusBadGateway || !strings.Contains(body, FormLoadFailed) || !strings.Contains(body, "Return to Home") {
		t.Fatalf("load failure page %d:\n%s", resp.StatusCode, body)
	}
}

func TestApplicationsListing(t *testing.T) {
	h := newHarness(t, nil)
	for _, name := range []string{"Ann", "Bob", "Cid", "Dee", "Eve", "Fay"} {
		if _, err := client.New(h.apiURL).Submit(context.Background(), "health", map[string]any{"fullName": name, "age": float64(20 + len(name))}); err != nil {
			t.Fatal(err)
		}
	}
	_, body := h.do(t, http.MethodGet, "/applications?limit=5&sort=fullName&order=asc&cols=fullName,age", nil, "")
	if !strings.Contains(body, "Showing 5 of 6 results") || !strings.Contains(body, "Page 1 of 2") {
		t.Fatalf("pager:\n%s", body)
	}
	if strings.Index(body, "<td>Ann</td>") > strings.Index(body, "<td>Bob</td>") || strings.Contains(body, "<td>Fay</td>") {
		t.Fatalf("sorting or paging wrong")
	}
	if strings.Contains(body, "Gender</a></th>") || !strings.Contains(body, "Full Name") {
		t.Fatalf("column selection ignored")
	}

	// the column choice sticks through the cookie
	_, body = h.do(t, http.MethodGet, "/applications?search=fay", nil, "")
	if !strings.Contains(body, "<td>Fay</td>") || strings.Contains(body, "<td>Ann</td>") {
		t.Fatalf("search:\n%s", body)
	}
	if strings.Contains(body, "Gender</a></th>") {
		t.Fatalf("column cookie ignored")
	}
}

func TestApplicationsLoadFailure(t *testing.T) {
	h := newHarness(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/insurance/forms/submissions" {
				http.Error(w, "down", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	resp, body := h.do(t, http.MethodGet, "/applications", nil, "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Failed to load applications. Please try again.") || !strings.Contains(body, "No applications found") {
		t.Fatalf("listing failure %d:\n%s", resp.StatusCode, body)
	}
}

func TestJSONAPI(t *testing.T) {
	h := newHarness(t, nil)

	put := func(id string, v any) map[string]any {
		b, _ := json.Marshal(map[string]any{"value": v})
		resp, body := h.do(t, http.MethodPut, "/v1/forms/health/fields/"+id, strings.NewReader(string(b)), "application/json")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("PUT %s: %d %s", id, resp.StatusCode, body)
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(body), &out); err != nil {
			t.Fatal(err)
		}
		return out
	}

	out := put("smoker", true)
	visible := map[string]bool{}
	for _, id := range out["visible"].([]any) {
		visible[id.(string)] = true
	}
	if !visible["smokingHabits"] || !visible["cigarettesPerDay"] {
		t.Fatalf("visible = %v", out["visible"])
	}
	put("country", "Canada")

	resp, body := h.do(t, http.MethodGet, "/v1/forms/health/fields/state/options", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("options %d %s", resp.StatusCode, body)
	}
	var opts struct{ Options []string }
	_ = json.Unmarshal([]byte(body), &opts)
	if diff := cmp.Diff(mockapi.States["Canada"], opts.Options); diff != "" {
		t.Fatalf("options diff\n%s", diff)
	}

	resp, body = h.do(t, http.MethodPost, "/v1/forms/health/validate", nil, "")
	var v struct {
		Valid  bool
		Errors map[string]string
	}
	_ = json.Unmarshal([]byte(body), &v)
	if resp.StatusCode != http.StatusOK || v.Valid {
		t.Fatalf("validate %d %s", resp.StatusCode, body)
	}
	want := map[string]string{
		"fullName":         "Full Name is required",
		"age":              "Age is required",
		"cigarettesPerDay": "Cigarettes per day is required",
	}
	if diff := cmp.Diff(want, v.Errors); diff != "" {
		t.Fatalf("errors diff\n%s", diff)
	}

	if resp, _ := h.do(t, http.MethodPut, "/v1/forms/health/fields/nope", strings.NewReader(`{"value":1}`), "application/json"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown field status %d", resp.StatusCode)
	}

	if h.drafts(t) != 1 {
		t.Fatalf("draft not written")
	}
	if resp, _ := h.do(t, http.MethodDelete, "/v1/forms/health/draft", nil, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("discard status %d", resp.StatusCode)
	}
	if h.drafts(t) != 0 {
		t.Fatalf("draft survived discard")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	if resp, _ := h.do(t, http.MethodGet, "/", nil, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("home status %d", resp.StatusCode)
	}
	resp, body := h.do(t, http.MethodGet, "/metrics", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", resp.StatusCode)
	}
	if !strings.Contains(body, "portal_http_requests_total") {
		t.Fatalf("request counter missing:\n%s", body)
	}
}

func TestSweepForgetsIdleVisitors(t *testing.T) {
	h := newHarness(t, nil)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(h.portal.URL + "/apply/health")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("apply status %d", resp.StatusCode)
		}
	}
	if n := h.sessions.Len(); n != 3 {
		t.Fatalf("live forms = %d, want 3", n)
	}
	h.srv.Sweep(time.Hour)
	if n := h.sessions.Len(); n != 3 {
		t.Fatalf("fresh visitors swept, %d left", n)
	}
	h.srv.Sweep(-time.Second)
	if h.sessions.Len() != 0 || h.srv.options.Len() != 0 || h.srv.loader.Len() != 0 {
		t.Fatalf("state left after sweep: forms=%d options=%d listings=%d", h.sessions.Len(), h.srv.options.Len(), h.srv.loader.Len())
	}
}
