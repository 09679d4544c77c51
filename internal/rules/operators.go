// internal/rules/operators.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/packkeeper/internal/types"
)

/*
 * Operator library.
 *
 * Every operator maps (scoped column, rule literal) to a selection over the
 * scope. Operators never fail the evaluation: a literal that cannot be parsed
 * (range, date, regex, number) yields an all-false selection together with an
 * error describing why, which the evaluator logs. A cell that cannot be coerced
 * yields false for that row only.
 *
 * Operator families:
 *   - equals/not_equals: numeric comparison on numeric columns when the literal
 *     parses, exact string equality otherwise
 *   - contains/not_contains/starts_with/ends_with: case-folded substring tests,
 *     Null never matches
 *   - greater_than/less_than/greater_or_equal/less_or_equal: numeric only
 *   - is_empty/is_not_empty: Null or blank text is empty
 *   - in_list/not_in_list: delimiter list membership, trimmed and case-folded;
 *     not_in_list is the exact complement of in_list
 *   - between/not_between: inclusive "start-end" range; reversed ranges select
 *     nothing; text columns compare lexicographically against the bounds
 *   - date_before/date_after/date_equals: day-granularity date comparison
 *   - matches_regex/does_not_match_regex: unanchored search
 *
 * Why a closed enum: an unknown operator name is detected once at compile time
 * (ParseOperator) instead of on every row, and the switch in Match is checked
 * for coverage by the exhaustive tests in operators_test.go.
 */

// Operator is the closed set of condition operators.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEquals
	OpNotEquals
	OpContains
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpGreaterThan
	OpLessThan
	OpGreaterOrEqual
	OpLessOrEqual
	OpIsEmpty
	OpIsNotEmpty
	OpInList
	OpNotInList
	OpBetween
	OpNotBetween
	OpDateBefore
	OpDateAfter
	OpDateEquals
	OpMatchesRegex
	OpDoesNotMatchRegex
)

var operatorNames = map[Operator]string{
	OpEquals:            "equals",
	OpNotEquals:         "not_equals",
	OpContains:          "contains",
	OpNotContains:       "not_contains",
	OpStartsWith:        "starts_with",
	OpEndsWith:          "ends_with",
	OpGreaterThan:       "greater_than",
	OpLessThan:          "less_than",
	OpGreaterOrEqual:    "greater_or_equal",
	OpLessOrEqual:       "less_or_equal",
	OpIsEmpty:           "is_empty",
	OpIsNotEmpty:        "is_not_empty",
	OpInList:            "in_list",
	OpNotInList:         "not_in_list",
	OpBetween:           "between",
	OpNotBetween:        "not_between",
	OpDateBefore:        "date_before",
	OpDateAfter:         "date_after",
	OpDateEquals:        "date_equals",
	OpMatchesRegex:      "matches_regex",
	OpDoesNotMatchRegex: "does_not_match_regex",
}

var operatorsByName = func() map[string]Operator {
	m := make(map[string]Operator, len(operatorNames))
	for op, name := range operatorNames {
		m[name] = op
	}
	return m
}()

// ParseOperator resolves an operator name (case-insensitive, trimmed).
func ParseOperator(name string) (Operator, bool) {
	op, ok := operatorsByName[strings.ToLower(strings.TrimSpace(name))]
	return op, ok
}

// Operators returns every defined operator in declaration order.
func Operators() []Operator {
	out := make([]Operator, 0, len(operatorNames))
	for op := OpEquals; op <= OpDoesNotMatchRegex; op++ {
		out = append(out, op)
	}
	return out
}

// String returns the configuration name of op.
func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return fmt.Sprintf("operator(%d)", int(op))
}

// IsNegative reports whether op excludes values. Order-level membership
// fields evaluate negative operators as "no row matches Positive()".
func (op Operator) IsNegative() bool {
	switch op {
	case OpNotEquals, OpNotContains, OpNotInList, OpNotBetween, OpDoesNotMatchRegex:
		return true
	default:
		return false
	}
}

// Positive returns the operator a negative operator excludes, or op itself.
func (op Operator) Positive() Operator {
	switch op {
	case OpNotEquals:
		return OpEquals
	case OpNotContains:
		return OpContains
	case OpNotInList:
		return OpInList
	case OpNotBetween:
		return OpBetween
	case OpDoesNotMatchRegex:
		return OpMatchesRegex
	default:
		return op
	}
}

// DefaultListSeparator separates in_list/not_in_list elements.
const DefaultListSeparator = ","

// Matcher evaluates operators against columns. It carries the parse caches
// and list separator; a Matcher is safe for concurrent use.
type Matcher struct {
	Regex         *RegexCache
	Dates         *DateCache
	ListSeparator string
}

// NewMatcher returns a matcher backed by the shared caches.
func NewMatcher() *Matcher {
	return &Matcher{
		Regex:         SharedRegexCache(),
		Dates:         SharedDateCache(),
		ListSeparator: DefaultListSeparator,
	}
}

// Match applies op to every value in col against literal.
// The returned selection always has col.Len() entries. A non-nil error means
// the literal itself was unusable and the selection is all-false.
func (m *Matcher) Match(op Operator, col Column, literal types.Value) (types.Selection, error) {
	n := col.Len()
	switch op {
	case OpEquals:
		return m.equals(col, literal), nil
	case OpNotEquals:
		return m.equals(col, literal).Not(), nil
	case OpContains:
		return matchFolded(col, literal, strings.Contains), nil
	case OpNotContains:
		return matchFolded(col, literal, func(s, sub string) bool { return !strings.Contains(s, sub) }), nil
	case OpStartsWith:
		return matchFolded(col, literal, strings.HasPrefix), nil
	case OpEndsWith:
		return matchFolded(col, literal, strings.HasSuffix), nil
	case OpGreaterThan:
		return compareNumeric(col, literal, func(a, b float64) bool { return a > b })
	case OpLessThan:
		return compareNumeric(col, literal, func(a, b float64) bool { return a < b })
	case OpGreaterOrEqual:
		return compareNumeric(col, literal, func(a, b float64) bool { return a >= b })
	case OpLessOrEqual:
		return compareNumeric(col, literal, func(a, b float64) bool { return a <= b })
	case OpIsEmpty:
		return matchEach(col, func(v types.Value) bool { return v.IsEmpty() }), nil
	case OpIsNotEmpty:
		return matchEach(col, func(v types.Value) bool { return !v.IsEmpty() }), nil
	case OpInList:
		return m.inList(col, literal), nil
	case OpNotInList:
		return m.inList(col, literal).Not(), nil
	case OpBetween:
		return between(col, literal, false)
	case OpNotBetween:
		return between(col, literal, true)
	case OpDateBefore:
		return m.compareDates(col, literal, func(c, l int64) bool { return c < l })
	case OpDateAfter:
		return m.compareDates(col, literal, func(c, l int64) bool { return c > l })
	case OpDateEquals:
		return m.compareDates(col, literal, func(c, l int64) bool { return c == l })
	case OpMatchesRegex:
		return m.matchRegex(col, literal, false)
	case OpDoesNotMatchRegex:
		return m.matchRegex(col, literal, true)
	default:
		return types.NewSelection(n, false), fmt.Errorf("%w: %v", types.ErrInvalidOperator, op)
	}
}

func matchEach(col Column, pred func(types.Value) bool) types.Selection {
	out := make(types.Selection, col.Len())
	for i, v := range col.Values {
		out[i] = pred(v)
	}
	return out
}

// equals compares numerically on numeric columns when the literal parses,
// otherwise by exact string. Null cells never equal anything.
func (m *Matcher) equals(col Column, literal types.Value) types.Selection {
	if col.Numeric {
		if want, ok := coerceNumeric(literal); ok {
			return matchEach(col, func(v types.Value) bool {
				got, ok := coerceNumeric(v)
				return ok && got == want
			})
		}
	}
	want := literal.String()
	return matchEach(col, func(v types.Value) bool {
		got, ok := coerceText(v)
		return ok && got == want
	})
}

// matchFolded applies a case-insensitive string predicate; Null never matches.
func matchFolded(col Column, literal types.Value, pred func(s, lit string) bool) types.Selection {
	f := newFolder()
	want := f.fold(literal.String())
	return matchEach(col, func(v types.Value) bool {
		s, ok := coerceText(v)
		return ok && pred(f.fold(s), want)
	})
}

func compareNumeric(col Column, literal types.Value, cmp func(a, b float64) bool) (types.Selection, error) {
	want, ok := coerceNumeric(literal)
	if !ok {
		return types.NewSelection(col.Len(), false), fmt.Errorf("%w: %q is not a number", types.ErrCoercionFailed, literal.String())
	}
	return matchEach(col, func(v types.Value) bool {
		got, ok := coerceNumeric(v)
		return ok && cmp(got, want)
	}), nil
}

func (m *Matcher) inList(col Column, literal types.Value) types.Selection {
	f := newFolder()
	set := make(map[string]struct{})
	for _, item := range splitList(literal.String(), m.ListSeparator) {
		set[f.fold(item)] = struct{}{}
	}
	return matchEach(col, func(v types.Value) bool {
		s, ok := coerceText(v)
		if !ok {
			return false
		}
		_, found := set[f.fold(strings.TrimSpace(s))]
		return found
	})
}

// between tests inclusive range membership. negate selects parseable cells
// outside the range; unparseable cells are excluded either way.
func between(col Column, literal types.Value, negate bool) (types.Selection, error) {
	r, err := ParseRange(literal.String())
	if err != nil {
		return types.NewSelection(col.Len(), false), fmt.Errorf("%w: %q", err, literal.String())
	}
	if r.Reversed() {
		return types.NewSelection(col.Len(), false), fmt.Errorf("%w: %q", types.ErrReversedRange, literal.String())
	}
	if col.Numeric {
		return matchEach(col, func(v types.Value) bool {
			f, ok := coerceNumeric(v)
			return ok && r.ContainsNumber(f) != negate
		}), nil
	}
	return matchEach(col, func(v types.Value) bool {
		s, ok := coerceText(v)
		return ok && r.ContainsText(strings.TrimSpace(s)) != negate
	}), nil
}

func (m *Matcher) compareDates(col Column, literal types.Value, cmp func(cell, lit int64) bool) (types.Selection, error) {
	want, ok := m.Dates.Parse(literal.String())
	if !literal.IsText() || !ok {
		return types.NewSelection(col.Len(), false), fmt.Errorf("%w: %q", types.ErrInvalidDate, literal.String())
	}
	wantDay := want.Unix()
	return matchEach(col, func(v types.Value) bool {
		if !v.IsText() {
			return false
		}
		got, ok := m.Dates.Parse(v.String())
		return ok && cmp(got.Unix(), wantDay)
	}), nil
}

func (m *Matcher) matchRegex(col Column, literal types.Value, negate bool) (types.Selection, error) {
	re, err := m.Regex.Compile(literal.String())
	if err != nil {
		return types.NewSelection(col.Len(), false), err
	}
	return matchEach(col, func(v types.Value) bool {
		s, ok := coerceText(v)
		return ok && re.MatchString(s) != negate
	}), nil
}
