// internal/rules/parsers.go
package rules

import (
	"strconv"
	"strings"
	"time"

	"github.com/solatis/packkeeper/internal/types"
)

/*
 * Literal parsers shared by the evaluator and the authoring-time validator.
 *
 * Dates: exactly three textual shapes, tried in order, first success wins:
 *   2006-01-02, 02/01/2006, 02.01.2006
 * Results are truncated to midnight UTC so comparisons ignore time of day.
 *
 * Ranges: "start-end" with exactly one '-' and numeric bounds. Reversed ranges
 * (start > end) parse successfully; the between operators reject them at
 * evaluation time while the validator only warns.
 *
 * Lists: delimiter-separated, elements trimmed, empty elements dropped.
 */

// Single-digit day/month layouts also accept zero-padded input.
var dateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"2.1.2006",
}

// ParseDate parses s with the accepted layouts. Returns false if none match.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC().Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}

// Range is a parsed "start-end" literal.
type Range struct {
	Lo, Hi         float64
	LoText, HiText string
}

// Reversed reports whether start exceeds end.
func (r Range) Reversed() bool { return r.Lo > r.Hi }

// ContainsNumber tests lo <= f <= hi.
func (r Range) ContainsNumber(f float64) bool { return r.Lo <= f && f <= r.Hi }

// ContainsText tests lexicographic loText <= s <= hiText.
func (r Range) ContainsText(s string) bool { return r.LoText <= s && s <= r.HiText }

// ParseRange splits s on its single '-' into two numeric bounds.
// Returns types.ErrInvalidRange if s is malformed.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, "-") != 1 {
		return Range{}, types.ErrInvalidRange
	}
	lo, hi, _ := strings.Cut(s, "-")
	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
	loF, err := strconv.ParseFloat(lo, 64)
	if err != nil {
		return Range{}, types.ErrInvalidRange
	}
	hiF, err := strconv.ParseFloat(hi, 64)
	if err != nil {
		return Range{}, types.ErrInvalidRange
	}
	return Range{Lo: loF, Hi: hiF, LoText: lo, HiText: hi}, nil
}

// splitList splits a delimiter-separated literal, trimming elements and
// dropping empty ones.
func splitList(s, sep string) []string {
	if sep == "" {
		sep = DefaultListSeparator
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parsePositiveInt accepts a Number with an integral value or Text holding a
// base-10 integer, and requires it to be > 0.
func parsePositiveInt(v types.Value) (int, error) {
	switch v.Kind() {
	case types.KindNumber:
		f, _ := v.Float()
		if f != float64(int(f)) || f <= 0 {
			return 0, types.ErrInvalidQuantity
		}
		return int(f), nil
	case types.KindText:
		n, err := strconv.Atoi(strings.TrimSpace(v.String()))
		if err != nil || n <= 0 {
			return 0, types.ErrInvalidQuantity
		}
		return n, nil
	default:
		return 0, types.ErrInvalidQuantity
	}
}
