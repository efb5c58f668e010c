package render

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/faciam-dev/formportal/internal/catalog"
	"github.com/faciam-dev/formportal/internal/listing"
)

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a one-time message shown at the top of a page.
type Flash struct {
	Kind string
	Text string
}

// Page is the part of every page the layout needs.
type Page struct {
	Title   string
	Flashes []Flash
}

// HomePage lists the insurance products.
type HomePage struct {
	Page
	Catalog *catalog.Catalog
}

// ApplyPage shows one application form.
type ApplyPage struct {
	Page
	Type string
	Name string
	// LoadError replaces the form when its structure could not be loaded.
	LoadError string
	Summary   string
	Form      template.HTML
	Busy      bool
}

// ApplicationsPage shows the listing.
type ApplicationsPage struct {
	Page
	View      listing.View
	PageSizes []int
}

// VisibleIDs is the comma separated list of shown column ids.
func (p ApplicationsPage) VisibleIDs() string {
	var ids []string
	for _, c := range p.View.State.VisibleColumns() {
		ids = append(ids, c.ID)
	}
	return strings.Join(ids, ",")
}

// Colspan spans every visible column plus the actions column.
func (p ApplicationsPage) Colspan() int { return len(p.View.State.VisibleColumns()) + 1 }

// PageCount is the number of pages shown in the pager, at least one.
func (p ApplicationsPage) PageCount() int { return max(p.View.State.TotalPages(), 1) }

// EmptyMessage is shown when there are no rows.
func (p ApplicationsPage) EmptyMessage() string { return listing.EmptyMessage }

var funcs = template.FuncMap{
	"lower": strings.ToLower,
	"cell":  listing.Cell,
}

// Renderer executes the page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every page template.
func New() (*Renderer, error) {
	r := &Renderer{pages: map[string]*template.Template{}}
	for _, name := range []string{"home", "apply", "applications"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

func (r *Renderer) execute(w io.Writer, name string, data any) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

// Home writes the home page.
func (r *Renderer) Home(w io.Writer, p HomePage) error {
	if p.Title == "" {
		p.Title = p.Catalog.Heading
	}
	return r.execute(w, "home", p)
}

// Apply writes an application form page.
func (r *Renderer) Apply(w io.Writer, p ApplyPage) error {
	if p.Title == "" {
		p.Title = p.Name + " Application"
	}
	return r.execute(w, "apply", p)
}

// Applications writes the listing page.
func (r *Renderer) Applications(w io.Writer, p ApplicationsPage) error {
	if p.Title == "" {
		p.Title = "Insurance Applications"
	}
	if len(p.PageSizes) == 0 {
		p.PageSizes = listing.PageSizes
	}
	return r.execute(w, "applications", p)
}
