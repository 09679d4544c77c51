package types

// Selection is a boolean vector aligned 1:1 with a row scope.
// Operations that combine two selections require equal length and panic otherwise,
// mirroring slice indexing.
type Selection []bool

// NewSelection returns a selection of n rows all set to v.
func NewSelection(n int, v bool) Selection {
	s := make(Selection, n)
	if v {
		for i := range s {
			s[i] = true
		}
	}
	return s
}

// Clone returns an independent copy.
func (s Selection) Clone() Selection {
	return append(Selection(nil), s...)
}

// And returns s ∧ o as a new selection.
func (s Selection) And(o Selection) Selection {
	out := make(Selection, len(s))
	for i := range s {
		out[i] = s[i] && o[i]
	}
	return out
}

// Or returns s ∨ o as a new selection.
func (s Selection) Or(o Selection) Selection {
	out := make(Selection, len(s))
	for i := range s {
		out[i] = s[i] || o[i]
	}
	return out
}

// Not returns ¬s as a new selection.
func (s Selection) Not() Selection {
	out := make(Selection, len(s))
	for i := range s {
		out[i] = !s[i]
	}
	return out
}

// Count returns the number of selected rows.
func (s Selection) Count() int {
	n := 0
	for _, b := range s {
		if b {
			n++
		}
	}
	return n
}

// Any reports whether at least one row is selected.
func (s Selection) Any() bool {
	for _, b := range s {
		if b {
			return true
		}
	}
	return false
}

// All reports whether every row is selected. An empty selection is all-true.
func (s Selection) All() bool {
	for _, b := range s {
		if !b {
			return false
		}
	}
	return true
}

// Indices returns the positions of selected rows in ascending order.
func (s Selection) Indices() []int {
	out := make([]int, 0, s.Count())
	for i, b := range s {
		if b {
			out = append(out, i)
		}
	}
	return out
}

// Subset reports whether every row selected in s is also selected in o.
func (s Selection) Subset(o Selection) bool {
	for i := range s {
		if s[i] && !o[i] {
			return false
		}
	}
	return true
}
