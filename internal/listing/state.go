// Package listing holds the paging, sorting, search and column state of the
// submitted applications view.
package listing

import (
	"errors"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iancoleman/strcase"

	"github.com/faciam-dev/formportal/pkg/client"
	"github.com/faciam-dev/formportal/pkg/formschema"
)

// Sort directions.
const (
	Asc  = "asc"
	Desc = "desc"
)

const (
	DefaultPageSize = 10
	DefaultSort     = "age"
)

// PageSizes are the page sizes a visitor can pick.
var PageSizes = []int{5, 10, 20, 50}

// ErrPageSize is returned for a page size outside PageSizes.
var ErrPageSize = errors.New("unsupported page size")

// DefaultColumns returns the columns shown on a first visit.
func DefaultColumns() []formschema.Column {
	return []formschema.Column{
		{ID: "fullName", Label: "Full Name", Accessor: "fullName", IsVisible: true},
		{ID: "age", Label: "Age", Accessor: "age", IsVisible: true},
		{ID: "gender", Label: "Gender", Accessor: "gender", IsVisible: true},
		{ID: "type", Label: "Insurance Type", Accessor: "type", IsVisible: true},
		{ID: "city", Label: "City", Accessor: "city", IsVisible: true},
	}
}

// Label derives a display label from a camelCase or snake_case id.
func Label(id string) string {
	words := strings.Fields(strcase.ToDelimited(id, ' '))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// State is the listing view state. Total is the overall number of matching
// applications as last reported.
type State struct {
	Page      int
	PageSize  int
	SortField string
	SortDir   string
	Search    string
	Total     int
	Columns   []formschema.Column
}

// NewState returns the state of a first visit.
func NewState(columns []formschema.Column) State {
	if len(columns) == 0 {
		columns = DefaultColumns()
	}
	cols := make([]formschema.Column, len(columns))
	for i, c := range columns {
		if c.Label == "" {
			c.Label = Label(c.ID)
		}
		if c.Accessor == "" {
			c.Accessor = c.ID
		}
		cols[i] = c
	}
	return State{Page: 1, PageSize: DefaultPageSize, SortField: DefaultSort, SortDir: Desc, Columns: cols}
}

// ToggleSort flips the direction when field is already the sort field and
// otherwise sorts by field ascending.
func (s *State) ToggleSort(field string) {
	if s.SortField == field {
		if s.SortDir == Asc {
			s.SortDir = Desc
		} else {
			s.SortDir = Asc
		}
		return
	}
	s.SortField = field
	s.SortDir = Asc
}

// SetPageSize changes the page size and returns to the first page.
func (s *State) SetPageSize(n int) error {
	if !slices.Contains(PageSizes, n) {
		return ErrPageSize
	}
	s.PageSize = n
	s.Page = 1
	return nil
}

// SetSearch changes the search term and returns to the first page.
func (s *State) SetSearch(term string) {
	s.Search = strings.TrimSpace(term)
	s.Page = 1
}

// Next moves one page forward, never past the last page.
func (s *State) Next() {
	if s.HasNext() {
		s.Page++
	}
}

// Prev moves one page back, never before the first page.
func (s *State) Prev() {
	if s.HasPrev() {
		s.Page--
	}
}

// TotalPages is ceil(Total / PageSize).
func (s State) TotalPages() int {
	if s.PageSize <= 0 {
		return 0
	}
	return (s.Total + s.PageSize - 1) / s.PageSize
}

// HasPrev reports whether a previous page exists.
func (s State) HasPrev() bool { return s.Page > 1 }

// HasNext reports whether a next page exists.
func (s State) HasNext() bool { return s.Page < s.TotalPages() }

// Query returns the backend request for the current state.
func (s State) Query() client.ListQuery {
	return client.ListQuery{Page: s.Page, Limit: s.PageSize, Sort: s.SortField, Order: s.SortDir, Search: s.Search}
}

// ToggleColumn shows or hides a column. It reports whether the column exists.
func (s *State) ToggleColumn(id string, visible bool) bool {
	for i := range s.Columns {
		if s.Columns[i].ID == id {
			s.Columns[i].IsVisible = visible
			return true
		}
	}
	return false
}

// VisibleColumns returns the shown columns in order.
func (s State) VisibleColumns() []formschema.Column {
	var out []formschema.Column
	for _, c := range s.Columns {
		if c.IsVisible {
			out = append(out, c)
		}
	}
	return out
}

// ShowOnly makes exactly the named columns visible.
func (s *State) ShowOnly(ids []string) {
	for i := range s.Columns {
		s.Columns[i].IsVisible = slices.Contains(ids, s.Columns[i].ID)
	}
}

func (s State) visibleIDs() []string {
	var ids []string
	for _, c := range s.VisibleColumns() {
		ids = append(ids, c.ID)
	}
	return ids
}

// FromQuery reads a state from URL parameters, falling back to the defaults
// for anything missing or invalid.
func FromQuery(q url.Values, columns []formschema.Column) State {
	s := NewState(columns)
	if n, err := strconv.Atoi(q.Get("limit")); err == nil {
		_ = s.SetPageSize(n)
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		s.Page = n
	}
	if f := q.Get("sort"); f != "" {
		s.SortField = f
	}
	switch q.Get("order") {
	case Asc:
		s.SortDir = Asc
	case Desc:
		s.SortDir = Desc
	}
	s.Search = strings.TrimSpace(q.Get("search"))
	if q.Has("cols") {
		s.ShowOnly(strings.Split(q.Get("cols"), ","))
	}
	return s
}

// Encode returns the URL parameters that FromQuery reads back into s.
func (s State) Encode() url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(s.Page))
	q.Set("limit", strconv.Itoa(s.PageSize))
	q.Set("sort", s.SortField)
	q.Set("order", s.SortDir)
	if s.Search != "" {
		q.Set("search", s.Search)
	}
	q.Set("cols", strings.Join(s.visibleIDs(), ","))
	return q
}

func (s State) href(mut func(*State)) string {
	c := s
	c.Columns = slices.Clone(s.Columns)
	mut(&c)
	return "?" + c.Encode().Encode()
}

// SortHref is the link that toggles sorting by field.
func (s State) SortHref(field string) string {
	return s.href(func(c *State) { c.ToggleSort(field) })
}

// PrevHref is the link to the previous page.
func (s State) PrevHref() string { return s.href(func(c *State) { c.Prev() }) }

// NextHref is the link to the next page.
func (s State) NextHref() string { return s.href(func(c *State) { c.Next() }) }

// ColumnHref is the link that flips the visibility of column id.
func (s State) ColumnHref(id string, visible bool) string {
	return s.href(func(c *State) { c.ToggleColumn(id, !visible) })
}
