// internal/rules/coercion.go
package rules

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/solatis/packkeeper/internal/types"
)

/*
 * Value coercion for operator evaluation.
 *
 * Cells are types.Value (Number | Text | Null). Each operator family picks one
 * coercion and applies it to both the cell and the rule literal:
 *
 *   - numeric: Number passes through, Text is trimmed and parsed as float,
 *     Null and unparseable Text fail (the row does not match)
 *   - text: Number renders in shortest form ("5", "2.5"), Null fails
 *   - folded text: text, then Unicode case folding for case-insensitive tests
 *   - flag: "true"/"1"/"yes"/"y"/"x"/"ja" (case-insensitive) or a non-zero Number
 *
 * Column numeric-ness is a property of the whole dataset column (no Text cell
 * anywhere), not of the scoped subset being evaluated, so an order-scoped
 * evaluation compares the same way an article-scoped one does.
 */

// Column is a scoped slice of cell values plus the column-level numeric flag.
type Column struct {
	Values  []types.Value
	Numeric bool
}

// Len returns the number of scoped rows.
func (c Column) Len() int { return len(c.Values) }

// scalarColumn wraps a single synthetic value (order-level fields).
func scalarColumn(v types.Value) Column {
	return Column{Values: []types.Value{v}, Numeric: !v.IsText()}
}

// coerceNumeric converts v to float64. Whitespace-only strings are not numbers.
func coerceNumeric(v types.Value) (float64, bool) {
	return v.Float()
}

// coerceText renders v as a string; Null fails.
func coerceText(v types.Value) (string, bool) {
	if v.IsNull() {
		return "", false
	}
	return v.String(), true
}

// folder performs Unicode case folding. A cases.Caser is stateful, so each
// operator evaluation creates its own.
type folder struct {
	c cases.Caser
}

func newFolder() *folder {
	return &folder{c: cases.Fold()}
}

func (f *folder) fold(s string) string {
	return f.c.String(s)
}

// truthy interprets a flag cell. Null and empty text are false.
func truthy(v types.Value) bool {
	switch v.Kind() {
	case types.KindNumber:
		f, _ := v.Float()
		return f != 0
	case types.KindText:
		switch strings.ToLower(strings.TrimSpace(v.String())) {
		case "true", "1", "yes", "y", "x", "ja":
			return true
		}
		return false
	default:
		return false
	}
}
