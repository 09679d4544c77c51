package rules

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/solatis/packkeeper/internal/types"
)

func TestParseActionKind(t *testing.T) {
	tests := []struct {
		in   string
		want ActionKind
	}{
		{"ADD_TAG", ActionAddTag},
		{"add_order_tag", ActionAddOrderTag},
		{" ADD_INTERNAL_TAG ", ActionAddInternalTag},
		{"SET_STATUS", ActionSetStatus},
		{"COPY_FIELD", ActionCopyField},
		{"CALCULATE", ActionCalculate},
		{"ADD_PRODUCT", ActionAddProduct},
		{"SET_PRIORITY", ActionDeprecated},
		{"EXCLUDE_FROM_REPORT", ActionDeprecated},
		{"EXCLUDE_SKU", ActionDeprecated},
		{"SEND_EMAIL", ActionUnknown},
	}
	for _, tt := range tests {
		if got := ParseActionKind(tt.in); got != tt.want {
			t.Errorf("ParseActionKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAppendNoteTag(t *testing.T) {
	tests := []struct {
		note types.Value
		tag  string
		want string
	}{
		{types.Text(""), "DHL-SHIP", "DHL-SHIP"},
		{types.Null(), "DHL-SHIP", "DHL-SHIP"},
		{types.Text("fragile"), "DHL-SHIP", "fragile, DHL-SHIP"},
		{types.Text("fragile, DHL-SHIP"), "DHL-SHIP", "fragile, DHL-SHIP"},
		{types.Text("DHL-SHIP,fragile"), "DHL-SHIP", "DHL-SHIP,fragile"},
		{types.Text("a,,b"), "c", "a, b, c"},
	}
	for _, tt := range tests {
		if got := appendNoteTag(tt.note, tt.tag); got != tt.want {
			t.Errorf("appendNoteTag(%#v, %q) = %q, want %q", tt.note, tt.tag, got, tt.want)
		}
	}
}

func TestAppendInternalTag(t *testing.T) {
	tests := []struct {
		cell types.Value
		tag  string
		want string
	}{
		{types.Text("[]"), "gift", `["gift"]`},
		{types.Null(), "gift", `["gift"]`},
		{types.Text(`["gift"]`), "gift", `["gift"]`},
		{types.Text(`["a"]`), "gift", `["a","gift"]`},
		{types.Text("a, b"), "gift", `["a","b","gift"]`},
		{types.Text("a, gift"), "gift", `["a","gift"]`},
	}
	for _, tt := range tests {
		if got := appendInternalTag(tt.cell, tt.tag); got != tt.want {
			t.Errorf("appendInternalTag(%#v, %q) = %q, want %q", tt.cell, tt.tag, got, tt.want)
		}
	}
}

func TestCompileAction_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.ActionConfig
		wantErr error
	}{
		{"add product zero quantity", types.ActionConfig{Type: "ADD_PRODUCT", SKU: "G", Quantity: 0}, types.ErrInvalidQuantity},
		{"add product negative quantity", types.ActionConfig{Type: "ADD_PRODUCT", SKU: "G", Quantity: -2}, types.ErrInvalidQuantity},
		{"add product fractional quantity", types.ActionConfig{Type: "ADD_PRODUCT", SKU: "G", Quantity: 1.5}, types.ErrInvalidQuantity},
		{"add product text quantity", types.ActionConfig{Type: "ADD_PRODUCT", SKU: "G", Quantity: "two"}, types.ErrInvalidQuantity},
		{"add product no sku", types.ActionConfig{Type: "ADD_PRODUCT", Quantity: 1}, types.ErrEmptyField},
		{"copy field no source", types.ActionConfig{Type: "COPY_FIELD", Target: "X"}, types.ErrEmptyField},
		{"calculate no target", types.ActionConfig{Type: "CALCULATE", Operation: "add", Field1: "A", Field2: "B"}, types.ErrEmptyField},
		{"deprecated", types.ActionConfig{Type: "EXCLUDE_SKU"}, types.ErrDeprecatedAction},
		{"unknown", types.ActionConfig{Type: "SEND_EMAIL"}, types.ErrUnknownAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := compileAction(tt.cfg)
			if !errors.Is(a.Err, tt.wantErr) {
				t.Errorf("compileAction() Err = %v, want %v", a.Err, tt.wantErr)
			}
		})
	}

	if a := compileAction(types.ActionConfig{Type: "ADD_PRODUCT", SKU: "G", Quantity: "3"}); a.Err != nil || a.Quantity != 3 {
		t.Errorf("compileAction(quantity \"3\") = %+v, want Quantity 3", a)
	}
	if a := compileAction(types.ActionConfig{Type: "ADD_TAG", Value: "  "}); a.Err == nil {
		t.Error("compileAction(blank tag) Err = nil, want error")
	}
	if a := compileAction(types.ActionConfig{Type: "CALCULATE", Operation: "modulo", Field1: "A", Field2: "B", Target: "C"}); a.Err == nil {
		t.Error("compileAction(unknown operation) Err = nil, want error")
	}
}

func TestExecutor_Calculate(t *testing.T) {
	ds := mustDataset(t, `[
		{"Quantity": 4, "Weight": 2},
		{"Quantity": 3, "Weight": 0},
		{"Quantity": "n/a", "Weight": 1},
		{"Quantity": 5, "Weight": null}
	]`)
	x := newExecutor(ds, DefaultColumns())

	div := compileAction(types.ActionConfig{Type: "CALCULATE", Operation: "divide", Field1: "Quantity", Field2: "Weight", Target: "Ratio"})
	if err := x.execute(div, []int{0, 1, 2, 3}); err != nil {
		t.Fatalf("execute(divide) error = %v, want nil", err)
	}
	want := []any{2.0, nil, nil, nil}
	if diff := cmp.Diff(want, column(t, ds, "Ratio")); diff != "" {
		t.Errorf("Ratio mismatch (-want +got):\n%s", diff)
	}

	mul := compileAction(types.ActionConfig{Type: "CALCULATE", Operation: "multiply", Field1: "Quantity", Field2: 1.5, Target: "Scaled"})
	if err := x.execute(mul, []int{0, 3}); err != nil {
		t.Fatalf("execute(multiply) error = %v, want nil", err)
	}
	want = []any{6.0, nil, nil, 7.5}
	if diff := cmp.Diff(want, column(t, ds, "Scaled")); diff != "" {
		t.Errorf("Scaled mismatch (-want +got):\n%s", diff)
	}

	missing := compileAction(types.ActionConfig{Type: "CALCULATE", Operation: "add", Field1: "Quantity", Field2: "Volume", Target: "Sum"})
	if err := x.execute(missing, []int{0}); !errors.Is(err, types.ErrFieldNotFound) {
		t.Errorf("execute(missing operand) error = %v, want ErrFieldNotFound", err)
	}
	if ds.HasColumn("Sum") {
		t.Error("skipped CALCULATE created its target column")
	}
}

func TestExecutor_CopyField(t *testing.T) {
	ds := mustDataset(t, `[{"SKU": "A", "Carrier": "DHL"}, {"SKU": "B", "Carrier": "UPS"}]`)
	x := newExecutor(ds, DefaultColumns())

	cp := compileAction(types.ActionConfig{Type: "COPY_FIELD", Source: "Carrier", Target: "Carrier_Copy"})
	if err := x.execute(cp, []int{1}); err != nil {
		t.Fatalf("execute(copy) error = %v, want nil", err)
	}
	if diff := cmp.Diff([]any{nil, "UPS"}, column(t, ds, "Carrier_Copy")); diff != "" {
		t.Errorf("Carrier_Copy mismatch (-want +got):\n%s", diff)
	}

	bad := compileAction(types.ActionConfig{Type: "COPY_FIELD", Source: "Missing", Target: "Other"})
	if err := x.execute(bad, []int{0}); !errors.Is(err, types.ErrFieldNotFound) {
		t.Errorf("execute(missing source) error = %v, want ErrFieldNotFound", err)
	}
}

func TestExecutor_AddProduct(t *testing.T) {
	ds := mustDataset(t, `[
		{"Order_Number": "A", "SKU": "S1", "Product_Name": "Shirt", "Quantity": 2, "Stock": 10, "Final_Stock": 8, "Status_Note": "gift", "Order_Fulfillment_Status": "ready", "Internal_Tags": "[\"x\"]"},
		{"Order_Number": "B", "SKU": "GIFT", "Product_Name": "Gift Card", "Quantity": 1, "Stock": 50, "Final_Stock": 49, "Status_Note": "", "Order_Fulfillment_Status": "", "Internal_Tags": "[]"}
	]`)
	x := newExecutor(ds, DefaultColumns())

	known := compileAction(types.ActionConfig{Type: "ADD_PRODUCT", SKU: "GIFT", Quantity: 2})
	unknown := compileAction(types.ActionConfig{Type: "ADD_PRODUCT", SKU: "NEW", Quantity: 1})
	if err := x.execute(known, []int{0}); err != nil {
		t.Fatalf("execute(known sku) error = %v, want nil", err)
	}
	if err := x.execute(unknown, []int{0}); err != nil {
		t.Fatalf("execute(unknown sku) error = %v, want nil", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("dataset grew to %d rows during execution, want buffered rows", ds.Len())
	}
	if len(x.synth) != 2 {
		t.Fatalf("buffered %d rows, want 2", len(x.synth))
	}

	want := map[string]types.Value{
		"Order_Number":             types.Text("A"),
		"SKU":                      types.Text("GIFT"),
		"Product_Name":             types.Text("Gift Card"),
		"Quantity":                 types.Number(2),
		"Stock":                    types.Number(50),
		"Final_Stock":              types.Number(49),
		"Status_Note":              types.Text(""),
		"Order_Fulfillment_Status": types.Text(""),
		"Internal_Tags":            types.Text("[]"),
		"Is_Rule_Generated":        types.Text("true"),
	}
	if diff := cmp.Diff(want, x.synth[0]); diff != "" {
		t.Errorf("synthesized row (known sku) mismatch (-want +got):\n%s", diff)
	}

	got := x.synth[1]
	if !got["Product_Name"].Equal(types.Text("NEW (added by rule)")) {
		t.Errorf("placeholder name = %#v, want %q", got["Product_Name"], "NEW (added by rule)")
	}
	if !got["Stock"].Equal(types.Number(0)) || !got["Final_Stock"].Equal(types.Number(0)) {
		t.Errorf("stock = %#v / %#v, want 0 / 0", got["Stock"], got["Final_Stock"])
	}
}

func TestExecutor_SkippedAction(t *testing.T) {
	ds := mustDataset(t, `[{"SKU": "A"}]`)
	x := newExecutor(ds, DefaultColumns())
	a := compileAction(types.ActionConfig{Type: "ADD_PRODUCT", SKU: "G", Quantity: 0})
	if err := x.execute(a, []int{0}); !errors.Is(err, types.ErrInvalidQuantity) {
		t.Errorf("execute() error = %v, want ErrInvalidQuantity", err)
	}
	if len(x.synth) != 0 {
		t.Errorf("buffered %d rows, want 0", len(x.synth))
	}
}

func TestCalcOp(t *testing.T) {
	tests := []struct {
		op     string
		a, b   float64
		want   float64
		wantOK bool
	}{
		{"add", 2, 3, 5, true},
		{"-", 2, 3, -1, true},
		{"Multiply", 2, 3, 6, true},
		{"divide", 3, 2, 1.5, true},
		{"divide", 3, 0, 0, false},
	}
	for _, tt := range tests {
		op, ok := ParseCalcOp(tt.op)
		if !ok {
			t.Fatalf("ParseCalcOp(%q) ok = false", tt.op)
		}
		got, ok := op.apply(tt.a, tt.b)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("%s(%v, %v) = %v, %v; want %v, %v", tt.op, tt.a, tt.b, got, ok, tt.want, tt.wantOK)
		}
	}
}
