package render

import (
	"bytes"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/faciam-dev/formportal/internal/catalog"
	"github.com/faciam-dev/formportal/internal/listing"
	"github.com/faciam-dev/formportal/pkg/formengine"
	"github.com/faciam-dev/formportal/pkg/formschema"
)

func schema() []formschema.Structure {
	min, max := 18.0, 100.0
	return []formschema.Structure{{
		FormID: "health",
		Title:  "Personal Details",
		Fields: []formschema.Field{
			{ID: "fullName", Type: formschema.TypeText, Label: "Full Name", Required: true, Placeholder: "Jane Doe"},
			{ID: "age", Type: formschema.TypeNumber, Label: "Age", Validation: &formschema.Validation{Min: &min, Max: &max}},
			{ID: "birthDate", Type: formschema.TypeDate, Label: "Birth Date"},
			{ID: "gender", Type: formschema.TypeRadio, Label: "Gender", Options: []string{"Male", "Female"}},
			{ID: "smoker", Type: formschema.TypeCheckbox, Label: "Smoker"},
			{ID: "country", Type: formschema.TypeSelect, Label: "Country", Options: []string{"USA", "Canada"}},
			{ID: "state", Type: formschema.TypeSelect, Label: "State", DynamicOptions: &formschema.DynamicOptions{DependsOn: "country", Endpoint: "/api/states"}},
			{ID: "signature", Type: "signature", Label: "Signature"},
			{
				ID: "smoking", Type: formschema.TypeGroup, Label: "Smoking Habits",
				Visibility: &formschema.VisibilityRule{DependsOn: "smoker", Condition: formschema.ConditionEquals, Value: true},
				Fields: []formschema.Field{
					{ID: "cigarettes", Type: formschema.TypeNumber, Label: "Cigarettes per day"},
				},
			},
		},
	}}
}

func TestControlKinds(t *testing.T) {
	s := schema()
	birth := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
	c := Context{
		Values:  formschema.Values{"fullName": "Jane <Doe>", "age": "34", "birthDate": birth, "gender": "Female", "country": "USA", "state": "Texas"},
		Errors:  formengine.Errors{"fullName": "Full Name is required"},
		Options: map[string][]string{"state": {"California", "Texas"}},
	}
	h, err := Form(s, c)
	if err != nil {
		t.Fatal(err)
	}
	out := string(h)
	for _, want := range []string{
		`<details class="section" id="section-health" open>`,
		`<summary>Personal Details</summary>`,
		`value="Jane &lt;Doe&gt;"`,
		`Full Name*`,
		`<p class="error" id="fullName-error">Full Name is required</p>`,
		`type="number" id="age" name="age" value="34" min="18" max="100"`,
		`type="date" id="birthDate" name="birthDate" value="1990-05-17"`,
		`id="gender-Female" name="gender" value="Female" checked`,
		`<option value="Texas" selected>Texas</option>`,
		`<option value="">Select an option</option>`,
		`Unsupported field type: signature`,
		`<input type="hidden" name="smoker" value="false">`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(out, "Smoking Habits") || strings.Contains(out, "cigarettes") {
		t.Errorf("hidden group rendered")
	}

	c.Values["smoker"] = true
	h, err = Form(s, c)
	if err != nil {
		t.Fatal(err)
	}
	out = string(h)
	if !strings.Contains(out, `<legend>Smoking Habits</legend>`) || !strings.Contains(out, `id="cigarettes"`) {
		t.Errorf("visible group missing")
	}
	if !strings.Contains(out, `value="true" checked`) {
		t.Errorf("checkbox not checked")
	}
}

func TestControlRejectsGroup(t *testing.T) {
	f := &formschema.Field{ID: "g", Type: formschema.TypeGroup}
	if _, err := Control(f, nil, "", nil); err == nil {
		t.Fatalf("group rendered as control")
	}
}

func TestDecodeSubmission(t *testing.T) {
	form := url.Values{
		"fullName":  {"Jane Doe"},
		"age":       {"34"},
		"birthDate": {"1990-05-17"},
		"smoker":    {"false", "true"},
		"country":   {""},
		"smoking":   {"x"},
		"unknown":   {"y"},
	}
	got := DecodeSubmission(schema(), form)
	want := formschema.Values{
		"fullName":  "Jane Doe",
		"age":       "34",
		"birthDate": "1990-05-17",
		"smoker":    true,
		"country":   "",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("decode diff\n%s", diff)
	}
	got = DecodeSubmission(schema(), url.Values{"smoker": {"false"}})
	if got["smoker"] != false {
		t.Fatalf("unchecked checkbox = %v", got["smoker"])
	}
}

func TestPages(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := r.Home(&buf, HomePage{Catalog: catalog.Default(), Page: Page{Flashes: []Flash{{Kind: FlashSuccess, Text: "Hi"}}}}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Smart Insurance Application Portal", `href="/apply/car"`, "Our car insurance provides", `toast-success`, "View My Applications"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("home missing %q", want)
		}
	}

	buf.Reset()
	if err := r.Apply(&buf, ApplyPage{Type: "life", Name: "Life Insurance", LoadError: "Failed to load the application form. Please try again later."}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Life Insurance Application", "Return to Home", "Failed to load the application form"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("apply missing %q", want)
		}
	}
	if strings.Contains(buf.String(), "<form") {
		t.Errorf("form rendered despite load error")
	}

	buf.Reset()
	st := listing.NewState(nil)
	st.Total = 12
	view := listing.View{State: st, Rows: []formschema.Application{{ID: "a1", Type: "health", Data: formschema.Values{"fullName": "Jane Doe", "age": 34.0}}}}
	if err := r.Applications(&buf, ApplicationsPage{View: view}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Insurance Applications", "<td>Jane Doe</td>", "<td>34</td>", "Showing 1 of 12 results", "Page 1 of 2", "&#9660;", `value="50"`} {
		if !strings.Contains(out, want) {
			t.Errorf("applications missing %q", want)
		}
	}

	buf.Reset()
	if err := r.Applications(&buf, ApplicationsPage{View: listing.View{State: listing.NewState(nil), Notice: listing.LoadFailedNotice}}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), listing.EmptyMessage) || !strings.Contains(buf.String(), "Page 1 of 1") {
		t.Errorf("empty listing not rendered")
	}
}
