package formschema

import (
	"fmt"
	"time"
)

// Values maps field ids to their current value. A value is a string, a number
// (float64 once decoded from JSON), a bool, a time.Time, a []string, or a
// nested map[string]any.
type Values map[string]any

// Clone returns a copy of v that can be mutated independently.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		switch x := val.(type) {
		case []string:
			out[k] = append([]string(nil), x...)
		case []any:
			out[k] = append([]any(nil), x...)
		case map[string]any:
			m := make(map[string]any, len(x))
			for mk, mv := range x {
				m[mk] = mv
			}
			out[k] = m
		default:
			out[k] = val
		}
	}
	return out
}

// IsEmpty reports whether the value under id is absent or the empty string.
func (v Values) IsEmpty(id string) bool {
	val, ok := v[id]
	if !ok || val == nil {
		return true
	}
	s, isStr := val.(string)
	return isStr && s == ""
}

// Text returns the value under id in its display form.
func (v Values) Text(id string) string {
	val, ok := v[id]
	if !ok || val == nil {
		return ""
	}
	switch x := val.(type) {
	case string:
		return x
	case time.Time:
		return x.Format(time.DateOnly)
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

// Application is a submitted application as reported by the backend.
type Application struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Data      Values    `json:"data"`
}

// Column is a listing display preference.
type Column struct {
	ID        string `json:"id" yaml:"id"`
	Label     string `json:"label" yaml:"label"`
	Accessor  string `json:"accessor" yaml:"accessor"`
	IsVisible bool   `json:"isVisible" yaml:"isVisible"`
}
