// Package formschema describes insurance application forms declaratively.
//
// A schema is one or more Structures, each an ordered list of Fields. A Field
// is either a leaf input or a group of nested Fields. Field ids share a single
// namespace across all structures of a schema, groups included.
package formschema

import (
	"errors"
	"fmt"
	"net/http"
)

// FieldType enumerates the input kinds the engine knows how to render and
// validate.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeDate     FieldType = "date"
	TypeSelect   FieldType = "select"
	TypeRadio    FieldType = "radio"
	TypeCheckbox FieldType = "checkbox"
	TypeNumber   FieldType = "number"
	TypeGroup    FieldType = "group"
)

// FieldTypes lists every supported FieldType.
var FieldTypes = []FieldType{TypeText, TypeDate, TypeSelect, TypeRadio, TypeCheckbox, TypeNumber, TypeGroup}

// Valid reports whether t is one of the supported field types. Unknown types
// still decode so newer schemas degrade instead of failing.
func (t FieldType) Valid() bool {
	switch t {
	case TypeText, TypeDate, TypeSelect, TypeRadio, TypeCheckbox, TypeNumber, TypeGroup:
		return true
	}
	return false
}

// Condition is the comparison a VisibilityRule applies.
type Condition string

const (
	ConditionEquals    Condition = "equals"
	ConditionNotEquals Condition = "notEquals"
	ConditionContains  Condition = "contains"
)

// VisibilityRule shows a field only when the referenced field's current value
// satisfies Condition against Value.
type VisibilityRule struct {
	DependsOn string    `json:"dependsOn" yaml:"dependsOn"`
	Condition Condition `json:"condition" yaml:"condition"`
	Value     any       `json:"value" yaml:"value"`
}

// Validation holds the optional constraints of a leaf field.
type Validation struct {
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	MinLength *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
}

// DynamicOptions makes a field's option list depend on another field. The
// options are fetched from Endpoint with Method, passing the dependency value
// under the name DependsOn.
type DynamicOptions struct {
	DependsOn string `json:"dependsOn" yaml:"dependsOn"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	Method    string `json:"method,omitempty" yaml:"method,omitempty"`
}

// HTTPMethod returns the request method, GET when unset.
func (d *DynamicOptions) HTTPMethod() string {
	if d == nil || d.Method == "" {
		return http.MethodGet
	}
	return d.Method
}

// Field is a single schema node.
type Field struct {
	ID             string          `json:"id" yaml:"id"`
	Type           FieldType       `json:"type" yaml:"type"`
	Label          string          `json:"label" yaml:"label"`
	Placeholder    string          `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Required       bool            `json:"required,omitempty" yaml:"required,omitempty"`
	Options        []string        `json:"options,omitempty" yaml:"options,omitempty"`
	Validation     *Validation     `json:"validation,omitempty" yaml:"validation,omitempty"`
	Visibility     *VisibilityRule `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	DynamicOptions *DynamicOptions `json:"dynamicOptions,omitempty" yaml:"dynamicOptions,omitempty"`
	// APIEndpoint is the older spelling of DynamicOptions still sent by some
	// backends.
	APIEndpoint *DynamicOptions `json:"apiEndpoint,omitempty" yaml:"apiEndpoint,omitempty"`
	Fields      []Field         `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// IsGroup reports whether the field is a container.
func (f *Field) IsGroup() bool { return f.Type == TypeGroup }

// Dynamic returns the dynamic option descriptor, falling back to APIEndpoint.
func (f *Field) Dynamic() *DynamicOptions {
	if f.DynamicOptions != nil && f.DynamicOptions.Endpoint != "" {
		return f.DynamicOptions
	}
	if f.APIEndpoint != nil && f.APIEndpoint.Endpoint != "" {
		return f.APIEndpoint
	}
	return nil
}

// Structure is one logical form, rendered as a collapsible section.
type Structure struct {
	FormID string  `json:"formId" yaml:"formId"`
	Title  string  `json:"title" yaml:"title"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// ErrDuplicateID is returned by Index when two fields share an id.
var ErrDuplicateID = errors.New("duplicate field id")

// Walk visits every field depth-first in schema order. Returning false from fn
// skips the children of a group.
func Walk(fields []Field, fn func(f *Field) bool) {
	for i := range fields {
		f := &fields[i]
		if !fn(f) {
			continue
		}
		if f.IsGroup() {
			Walk(f.Fields, fn)
		}
	}
}

// Flatten returns every field of the structures, groups included, in
// depth-first order.
func Flatten(structures ...Structure) []*Field {
	var out []*Field
	for i := range structures {
		Walk(structures[i].Fields, func(f *Field) bool {
			out = append(out, f)
			return true
		})
	}
	return out
}

// Index maps field ids to fields across all structures.
func Index(structures ...Structure) (map[string]*Field, error) {
	idx := make(map[string]*Field)
	for _, f := range Flatten(structures...) {
		if f.ID == "" {
			return nil, fmt.Errorf("field %q: empty id", f.Label)
		}
		if _, ok := idx[f.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, f.ID)
		}
		idx[f.ID] = f
	}
	return idx, nil
}

// Lookup finds a field by id.
func Lookup(structures []Structure, id string) (*Field, bool) {
	for _, f := range Flatten(structures...) {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}
