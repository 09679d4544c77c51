package rules

import (
	"testing"

	"github.com/solatis/packkeeper/internal/types"
)

func TestCoerceNumeric(t *testing.T) {
	tests := []struct {
		name   string
		value  types.Value
		want   float64
		wantOK bool
	}{
		{name: "number passthrough", value: types.Number(42.5), want: 42.5, wantOK: true},
		{name: "text integer", value: types.Text("25"), want: 25, wantOK: true},
		{name: "text with whitespace", value: types.Text("  42  "), want: 42, wantOK: true},
		{name: "text negative decimal", value: types.Text("-1.5"), want: -1.5, wantOK: true},
		{name: "text not a number", value: types.Text("abc"), wantOK: false},
		{name: "whitespace only", value: types.Text("   "), wantOK: false},
		{name: "empty text", value: types.Text(""), wantOK: false},
		{name: "null", value: types.Null(), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := coerceNumeric(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("coerceNumeric(%#v) ok = %v, want %v", tt.value, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("coerceNumeric(%#v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestCoerceText(t *testing.T) {
	tests := []struct {
		name   string
		value  types.Value
		want   string
		wantOK bool
	}{
		{name: "text passthrough", value: types.Text("DHL"), want: "DHL", wantOK: true},
		{name: "integral number", value: types.Number(5), want: "5", wantOK: true},
		{name: "fractional number", value: types.Number(2.5), want: "2.5", wantOK: true},
		{name: "empty text", value: types.Text(""), want: "", wantOK: true},
		{name: "null fails", value: types.Null(), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := coerceText(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("coerceText(%#v) ok = %v, want %v", tt.value, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("coerceText(%#v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestFolder(t *testing.T) {
	f := newFolder()
	tests := []struct {
		a, b string
	}{
		{"SHIRT", "shirt"},
		{"Straße", "STRASSE"},
		{"ÄRGER", "ärger"},
	}
	for _, tt := range tests {
		if f.fold(tt.a) != f.fold(tt.b) {
			t.Errorf("fold(%q) = %q, fold(%q) = %q, want equal", tt.a, f.fold(tt.a), tt.b, f.fold(tt.b))
		}
	}
	if f.fold("abc") == f.fold("abd") {
		t.Error("fold() collapsed distinct strings")
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		value types.Value
		want  bool
	}{
		{types.Text("true"), true},
		{types.Text("TRUE"), true},
		{types.Text(" yes "), true},
		{types.Text("x"), true},
		{types.Text("Ja"), true},
		{types.Text("1"), true},
		{types.Number(1), true},
		{types.Number(-2), true},
		{types.Number(0), false},
		{types.Text("false"), false},
		{types.Text("no"), false},
		{types.Text(""), false},
		{types.Null(), false},
	}
	for _, tt := range tests {
		if got := truthy(tt.value); got != tt.want {
			t.Errorf("truthy(%#v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestScalarColumn(t *testing.T) {
	if c := scalarColumn(types.Number(3)); !c.Numeric || c.Len() != 1 {
		t.Errorf("scalarColumn(Number) = %+v, want numeric single value", c)
	}
	if c := scalarColumn(types.Text("true")); c.Numeric {
		t.Errorf("scalarColumn(Text).Numeric = true, want false")
	}
}
