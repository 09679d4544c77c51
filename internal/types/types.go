// Package types provides domain models shared across packkeeper components.
//
// Zero-dependency design: the value, dataset and rule configuration types use
// only the standard library so that hosts embedding the rule engine do not pull
// in storage or transport dependencies. ID utilities in ids.go import uuid but
// are isolated for selective inclusion.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the three cell value variants.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindText
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "null"
	}
}

// Value is a single dataset cell: Number, Text or Null.
// The zero Value is Null.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Null returns the null value.
func Null() Value { return Value{} }

// Number wraps a float64.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text wraps a string.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Bool encodes a flag as Text "true"/"false"; the value model has no boolean variant.
func Bool(b bool) Value {
	if b {
		return Text("true")
	}
	return Text("false")
}

// ValueOf converts a decoded JSON/YAML scalar into a Value.
// Unsupported composite types are rendered with %v as Text.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return Text(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case uint:
		return Number(float64(x))
	case uint32:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Number(f)
		}
		return Text(x.String())
	case bool:
		return Bool(x)
	default:
		return Text(fmt.Sprintf("%v", x))
	}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNumber reports whether v is a Number.
func (v Value) IsNumber() bool { return v.kind == KindNumber }

// IsText reports whether v is Text.
func (v Value) IsText() bool { return v.kind == KindText }

// IsEmpty reports whether v is Null or a whitespace-only Text.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return strings.TrimSpace(v.text) == ""
	default:
		return false
	}
}

// Float coerces v to float64.
// Numbers pass through, Text is trimmed and parsed, Null and
// whitespace-only Text fail.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		s := strings.TrimSpace(v.text)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String renders the value as text. Null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// Interface returns the plain Go representation (float64, string or nil).
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindText:
		return v.text
	default:
		return nil
	}
}

// Equal reports whether a and b hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	default:
		return true
	}
}

// GoString supports %#v in test failure output.
func (v Value) GoString() string {
	switch v.kind {
	case KindNumber:
		return fmt.Sprintf("Number(%v)", v.num)
	case KindText:
		return fmt.Sprintf("Text(%q)", v.text)
	default:
		return "Null"
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}
