package formengine

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/faciam-dev/formportal/pkg/formschema"
)

// SummaryMessage is shown once when a submission is blocked by field errors.
const SummaryMessage = "Please fix the errors in the form before submitting."

// Errors maps field ids to the first error found for that field. A missing
// key means the field is valid.
type Errors map[string]string

// OK reports whether no field failed validation.
func (e Errors) OK() bool { return len(e) == 0 }

// IDs returns the invalid field ids in sorted order.
func (e Errors) IDs() []string {
	ids := make([]string, 0, len(e))
	for id := range e {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Error implements error so a failed validation can travel as one.
func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, id := range e.IDs() {
		parts = append(parts, id+": "+e[id])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate checks every visible leaf field of the structures against values.
// Fields inside hidden groups are skipped along with the group.
func Validate(structures []formschema.Structure, values formschema.Values) Errors {
	errs := Errors{}
	for i := range structures {
		formschema.Walk(structures[i].Fields, func(f *formschema.Field) bool {
			if !Visible(f.Visibility, values) {
				return false
			}
			if msg := ValidateField(f, values); msg != "" {
				errs[f.ID] = msg
			}
			return true
		})
	}
	return errs
}

// ValidateField returns the first failing check for a single visible field,
// or "" when the field is valid. Groups never fail on their own.
func ValidateField(f *formschema.Field, values formschema.Values) string {
	if f.IsGroup() {
		return ""
	}
	if f.Required && values.IsEmpty(f.ID) {
		return fmt.Sprintf("%s is required", f.Label)
	}
	if values.IsEmpty(f.ID) {
		return ""
	}
	v := values[f.ID]
	rules := f.Validation
	if rules != nil && rules.Pattern != "" && !falsy(v) {
		re, err := compile(rules.Pattern)
		if err != nil || !re.MatchString(fmt.Sprint(v)) {
			return fmt.Sprintf("%s has an invalid format", f.Label)
		}
	}
	switch f.Type {
	case formschema.TypeNumber:
		return checkRange(f, v)
	case formschema.TypeText:
		return checkLength(f, v)
	case formschema.TypeDate, formschema.TypeSelect, formschema.TypeRadio, formschema.TypeCheckbox, formschema.TypeGroup:
		return ""
	}
	return ""
}

func checkRange(f *formschema.Field, v any) string {
	n, ok := ToNumber(v)
	if !ok {
		return fmt.Sprintf("%s must be a number", f.Label)
	}
	rules := f.Validation
	if rules == nil {
		return ""
	}
	if rules.Min != nil && n < *rules.Min {
		return fmt.Sprintf("%s must be at least %s", f.Label, formatNumber(*rules.Min))
	}
	if rules.Max != nil && n > *rules.Max {
		return fmt.Sprintf("%s must be at most %s", f.Label, formatNumber(*rules.Max))
	}
	return ""
}

func checkLength(f *formschema.Field, v any) string {
	rules := f.Validation
	if rules == nil || falsy(v) {
		return ""
	}
	l := utf8.RuneCountInString(fmt.Sprint(v))
	if rules.MinLength != nil && l < *rules.MinLength {
		return fmt.Sprintf("%s must be at least %d characters", f.Label, *rules.MinLength)
	}
	if rules.MaxLength != nil && l > *rules.MaxLength {
		return fmt.Sprintf("%s must be at most %d characters", f.Label, *rules.MaxLength)
	}
	return ""
}

// ToNumber coerces a form value to a float64. Numeric strings are parsed,
// booleans are not numbers.
func ToNumber(v any) (float64, bool) {
	if n, ok := asNumber(v); ok {
		return n, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func falsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	}
	if n, ok := asNumber(v); ok {
		return n == 0
	}
	return false
}

var (
	patterns sync.Map // string -> compiled
	log      atomic.Pointer[zap.SugaredLogger]
)

type compiled struct {
	re  *regexp.Regexp
	err error
}

// SetLogger sets the logger that reports schema problems found while
// validating, such as patterns that do not compile. Nil discards them.
func SetLogger(l *zap.SugaredLogger) {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	log.Store(l)
}

func logger() *zap.SugaredLogger {
	if l := log.Load(); l != nil {
		return l
	}
	return zap.NewNop().Sugar()
}

// compile caches the outcome per pattern, so a bad pattern is reported once.
func compile(p string) (*regexp.Regexp, error) {
	if c, ok := patterns.Load(p); ok {
		return c.(compiled).re, c.(compiled).err
	}
	re, err := regexp.Compile(p)
	if _, loaded := patterns.LoadOrStore(p, compiled{re, err}); !loaded && err != nil {
		logger().Warnw("invalid validation pattern, field always fails", "pattern", p, "err", err)
	}
	return re, err
}
