// Package formengine interprets form schemas: it decides which fields are
// shown for a given set of values and which visible fields are invalid.
package formengine

import (
	"fmt"
	"time"

	"github.com/faciam-dev/formportal/pkg/formschema"
)

// Visible evaluates rule against values. A nil rule is always visible, and
// any rule the evaluator cannot apply (unknown condition, contains on a
// non-list) fails open.
func Visible(rule *formschema.VisibilityRule, values formschema.Values) bool {
	if rule == nil {
		return true
	}
	dep, present := values[rule.DependsOn]
	switch rule.Condition {
	case formschema.ConditionEquals:
		return present && strictEqual(dep, rule.Value)
	case formschema.ConditionNotEquals:
		return !present || !strictEqual(dep, rule.Value)
	case formschema.ConditionContains:
		if list, ok := asStringList(dep); ok {
			want := fmt.Sprint(rule.Value)
			for _, s := range list {
				if s == want {
					return true
				}
			}
			return false
		}
	}
	return true
}

// VisibleSet returns the ids of every field currently shown. Hidden groups
// hide all of their descendants whatever their own rules say.
func VisibleSet(structures []formschema.Structure, values formschema.Values) map[string]bool {
	out := make(map[string]bool)
	for i := range structures {
		formschema.Walk(structures[i].Fields, func(f *formschema.Field) bool {
			if !Visible(f.Visibility, values) {
				return false
			}
			out[f.ID] = true
			return true
		})
	}
	return out
}

// strictEqual compares two dynamic values without cross-kind coercion.
// Numbers of different Go kinds compare by value.
func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	if fa, ok := asNumber(a); ok {
		fb, ok := asNumber(b)
		return ok && fa == fb
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	return false
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

func asStringList(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			// only string elements can match the stringified rule value
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}
