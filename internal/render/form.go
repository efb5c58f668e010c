// Package render turns form structures and listing state into HTML.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strconv"

	"github.com/faciam-dev/formportal/pkg/formengine"
	"github.com/faciam-dev/formportal/pkg/formschema"
)

//go:embed templates/*.html
var files embed.FS

var controls = template.Must(template.ParseFS(files, "templates/controls.html"))

type option struct {
	Value    string
	Selected bool
}

type controlView struct {
	ID          string
	Type        formschema.FieldType
	Label       string
	Placeholder string
	Required    bool
	Value       string
	Checked     bool
	Min, Max    string
	Options     []option
	Error       string
}

type containerView struct {
	ID, Label, Title string
	Inner            template.HTML
}

// Context is what every control of one form is rendered against.
type Context struct {
	Values formschema.Values
	Errors formengine.Errors
	// Options holds resolved dynamic option lists by field id. Fields without
	// an entry use their static options.
	Options map[string][]string
}

func execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := controls.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// Control renders one leaf field.
func Control(f *formschema.Field, value any, errMsg string, options []string) (template.HTML, error) {
	v := controlView{
		ID:          f.ID,
		Type:        f.Type,
		Label:       f.Label,
		Placeholder: f.Placeholder,
		Required:    f.Required,
		Value:       formschema.Values{f.ID: value}.Text(f.ID),
		Error:       errMsg,
	}
	switch f.Type {
	case formschema.TypeText, formschema.TypeDate:
	case formschema.TypeNumber:
		if f.Validation != nil {
			v.Min = bound(f.Validation.Min)
			v.Max = bound(f.Validation.Max)
		}
	case formschema.TypeSelect, formschema.TypeRadio:
		for _, o := range options {
			v.Options = append(v.Options, option{Value: o, Selected: o == v.Value})
		}
	case formschema.TypeCheckbox:
		v.Checked = checked(value)
	case formschema.TypeGroup:
		return "", fmt.Errorf("render %s: group is not a control", f.ID)
	default:
		return execute("unsupported", v)
	}
	return execute(string(f.Type), v)
}

func bound(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func checked(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	}
	return false
}

// Fields renders fields depth first. Hidden fields and groups are left out
// together with everything inside them.
func Fields(fields []formschema.Field, c Context) (template.HTML, error) {
	var buf bytes.Buffer
	for i := range fields {
		f := &fields[i]
		if !formengine.Visible(f.Visibility, c.Values) {
			continue
		}
		var (
			h   template.HTML
			err error
		)
		if f.IsGroup() {
			var inner template.HTML
			if inner, err = Fields(f.Fields, c); err != nil {
				return "", err
			}
			h, err = execute("group", containerView{ID: f.ID, Label: f.Label, Inner: inner})
		} else {
			opts := f.Options
			if dyn, ok := c.Options[f.ID]; ok {
				opts = dyn
			}
			h, err = Control(f, c.Values[f.ID], c.Errors[f.ID], opts)
		}
		if err != nil {
			return "", err
		}
		buf.WriteString(string(h))
		buf.WriteByte('\n')
	}
	return template.HTML(buf.String()), nil
}

// Form renders every structure as a collapsible section.
func Form(structures []formschema.Structure, c Context) (template.HTML, error) {
	var buf bytes.Buffer
	for _, s := range structures {
		inner, err := Fields(s.Fields, c)
		if err != nil {
			return "", err
		}
		h, err := execute("section", containerView{ID: s.FormID, Title: s.Title, Inner: inner})
		if err != nil {
			return "", err
		}
		buf.WriteString(string(h))
		buf.WriteByte('\n')
	}
	return template.HTML(buf.String()), nil
}

// DecodeSubmission reads posted control values back into form values. Only
// fields that were rendered are posted, so hidden fields are absent from the
// result and keep whatever value the form already had.
func DecodeSubmission(structures []formschema.Structure, form url.Values) formschema.Values {
	out := formschema.Values{}
	for _, f := range formschema.Flatten(structures...) {
		posted, ok := form[f.ID]
		if !ok || len(posted) == 0 {
			continue
		}
		last := posted[len(posted)-1]
		switch f.Type {
		case formschema.TypeCheckbox:
			out[f.ID] = last == "true"
		case formschema.TypeText, formschema.TypeDate, formschema.TypeSelect,
			formschema.TypeRadio, formschema.TypeNumber:
			out[f.ID] = last
		case formschema.TypeGroup:
		}
	}
	return out
}
