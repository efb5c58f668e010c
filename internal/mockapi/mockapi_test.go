package mockapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/formportal/pkg/client"
	"github.com/faciam-dev/formportal/pkg/formengine"
	"github.com/faciam-dev/formportal/pkg/formschema"
)

func TestSchemas(t *testing.T) {
	s, err := Schemas()
	if err != nil {
		t.Fatal(err)
	}
	for _, ty := range []string{"health", "home", "car", "life"} {
		if len(s[ty]) == 0 {
			t.Errorf("missing schema %s", ty)
		}
	}
	errs := formengine.Validate(s["health"], formschema.Values{"fullName": "Jane Doe", "age": 34.0})
	if !errs.OK() {
		t.Fatalf("minimal health application rejected: %v", errs)
	}
}

func newClient(t *testing.T) (*Server, client.Client) {
	t.Helper()
	srv, err := New()
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, client.New(ts.URL)
}

func TestRoundTrip(t *testing.T) {
	srv, cli := newClient(t)
	ctx := context.Background()

	forms, err := cli.FetchForms(ctx, "car")
	if err != nil || forms[0].FormID != "car" {
		t.Fatalf("forms: %v %+v", err, forms)
	}
	if _, err := cli.FetchForms(ctx, "boat"); !client.IsStatus(err, 404) {
		t.Fatalf("unknown type err = %v", err)
	}

	states, err := cli.FetchOptions(ctx, http.MethodGet, "/api/states", "country", "Canada")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(States["Canada"], states); diff != "" {
		t.Fatalf("states diff\n%s", diff)
	}
	if none, _ := cli.FetchOptions(ctx, http.MethodGet, "/api/states", "country", "Mars"); len(none) != 0 {
		t.Fatalf("unknown country states = %v", none)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	srv.Now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Hour) }
	for _, v := range []formschema.Values{
		{"fullName": "Ann", "age": 40.0},
		{"fullName": "Bob", "age": 25.0},
		{"fullName": "Cid", "age": "33"},
	} {
		sub, err := cli.Submit(ctx, "health", v)
		if err != nil || sub.ID() == "" {
			t.Fatalf("submit: %v %v", err, sub)
		}
	}
	if _, err := cli.Submit(ctx, "boat", formschema.Values{"x": 1.0}); !client.IsStatus(err, 400) {
		t.Fatalf("unknown form err = %v", err)
	}

	page, err := cli.ListSubmissions(ctx, client.ListQuery{Page: 1, Limit: 2, Sort: "age", Order: "desc"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total == nil || *page.Total != 3 {
		t.Fatalf("total = %v", page.Total)
	}
	var names []string
	for _, a := range page.Data {
		names = append(names, a.Data.Text("fullName"))
	}
	if diff := cmp.Diff([]string{"Ann", "Cid"}, names); diff != "" {
		t.Fatalf("page diff\n%s", diff)
	}

	page, err = cli.ListSubmissions(ctx, client.ListQuery{Page: 2, Limit: 2, Sort: "age", Order: "desc"})
	if err != nil || len(page.Data) != 1 || page.Data[0].Data.Text("fullName") != "Bob" {
		t.Fatalf("page 2: %v %+v", err, page)
	}

	srv.OmitTotal = true
	page, err = cli.ListSubmissions(ctx, client.ListQuery{Page: 1, Limit: 10, Sort: "age", Order: "asc", Search: "bo"})
	if err != nil || page.Total != nil || len(page.Data) != 1 {
		t.Fatalf("search: %v %+v", err, page)
	}
}
