// internal/rules/actions.go
package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/solatis/packkeeper/internal/types"
)

/*
 * Action executor.
 *
 * Actions are a closed variant (ActionKind) with the parameters each kind
 * reads. Execution applies one action to a set of dataset rows and never
 * fails the run: a data error (missing source column, empty tag, bad
 * quantity) skips that action and is logged once, other actions of the same
 * step still run.
 *
 * Kinds:
 *   - ADD_TAG, ADD_ORDER_TAG: append to the note column, ", "-joined,
 *     de-duplicated per row
 *   - ADD_INTERNAL_TAG: append to the JSON-array internal tag column
 *   - SET_STATUS: overwrite the fulfillment status column
 *   - COPY_FIELD: copy source to target for the affected rows
 *   - CALCULATE: target = field1 <op> field2, Null on non-numeric operands or
 *     division by zero
 *   - ADD_PRODUCT: buffer one synthesized row per affected row
 *   - deprecated kinds (SET_PRIORITY, EXCLUDE_FROM_REPORT, EXCLUDE_SKU) and
 *     unknown kinds: logged and ignored
 *
 * Order scope: in order-level rules tag-style kinds apply to every eligible
 * row of the order while the remaining kinds touch the order's first eligible
 * row only, so counts are not multiplied when the order is grouped later.
 *
 * Synthesized rows go to the run's buffer and are appended by the engine
 * after every rule has run; no rule ever sees a row created in the same run.
 */

// ActionKind is the closed set of action types.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionAddTag
	ActionAddOrderTag
	ActionAddInternalTag
	ActionSetStatus
	ActionCopyField
	ActionCalculate
	ActionAddProduct
	ActionDeprecated
)

var actionNames = map[string]ActionKind{
	"ADD_TAG":          ActionAddTag,
	"ADD_ORDER_TAG":    ActionAddOrderTag,
	"ADD_INTERNAL_TAG": ActionAddInternalTag,
	"SET_STATUS":       ActionSetStatus,
	"COPY_FIELD":       ActionCopyField,
	"CALCULATE":        ActionCalculate,
	"ADD_PRODUCT":      ActionAddProduct,

	"SET_PRIORITY":        ActionDeprecated,
	"EXCLUDE_FROM_REPORT": ActionDeprecated,
	"EXCLUDE_SKU":         ActionDeprecated,
}

// ParseActionKind resolves an action type name (case-insensitive).
// Unrecognised names return ActionUnknown.
func ParseActionKind(name string) ActionKind {
	if k, ok := actionNames[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return k
	}
	return ActionUnknown
}

func (k ActionKind) String() string {
	switch k {
	case ActionAddTag:
		return "ADD_TAG"
	case ActionAddOrderTag:
		return "ADD_ORDER_TAG"
	case ActionAddInternalTag:
		return "ADD_INTERNAL_TAG"
	case ActionSetStatus:
		return "SET_STATUS"
	case ActionCopyField:
		return "COPY_FIELD"
	case ActionCalculate:
		return "CALCULATE"
	case ActionAddProduct:
		return "ADD_PRODUCT"
	case ActionDeprecated:
		return "DEPRECATED"
	default:
		return "UNKNOWN"
	}
}

// AppliesToEveryOrderRow reports whether k, inside an order-level rule,
// touches every eligible row of the order rather than only the first.
func (k ActionKind) AppliesToEveryOrderRow() bool {
	switch k {
	case ActionAddTag, ActionAddOrderTag, ActionAddInternalTag:
		return true
	default:
		return false
	}
}

// CalcOp is a CALCULATE arithmetic operation.
type CalcOp int

const (
	CalcInvalid CalcOp = iota
	CalcAdd
	CalcSubtract
	CalcMultiply
	CalcDivide
)

// ParseCalcOp resolves an operation name or symbol.
func ParseCalcOp(s string) (CalcOp, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "+":
		return CalcAdd, true
	case "subtract", "-":
		return CalcSubtract, true
	case "multiply", "*":
		return CalcMultiply, true
	case "divide", "/":
		return CalcDivide, true
	default:
		return CalcInvalid, false
	}
}

// apply returns a <op> b; ok is false for division by zero or a non-finite result.
func (op CalcOp) apply(a, b float64) (float64, bool) {
	var r float64
	switch op {
	case CalcAdd:
		r = a + b
	case CalcSubtract:
		r = a - b
	case CalcMultiply:
		r = a * b
	case CalcDivide:
		if b == 0 {
			return 0, false
		}
		r = a / b
	default:
		return 0, false
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

// Action is a compiled action.
type Action struct {
	Kind ActionKind
	Type string // as authored, for logging

	Value     string // tag or status text
	Source    string
	Target    string
	Operation CalcOp
	Field1    types.Value // column name or numeric constant
	Field2    types.Value
	SKU       string
	Quantity  int

	// Err is set when the action's parameters are unusable; the action is
	// skipped at execution time.
	Err error
}

// compileAction converts an authored action into its typed form.
func compileAction(cfg types.ActionConfig) Action {
	a := Action{Kind: ParseActionKind(cfg.Type), Type: cfg.Type}
	switch a.Kind {
	case ActionAddTag, ActionAddOrderTag, ActionAddInternalTag, ActionSetStatus:
		a.Value = strings.TrimSpace(types.ValueOf(cfg.Value).String())
		if a.Value == "" && a.Kind != ActionSetStatus {
			a.Err = fmt.Errorf("%s: empty tag value", a.Kind)
		}
	case ActionCopyField:
		a.Source, a.Target = strings.TrimSpace(cfg.Source), strings.TrimSpace(cfg.Target)
		if a.Source == "" || a.Target == "" {
			a.Err = fmt.Errorf("%w: COPY_FIELD needs source and target", types.ErrEmptyField)
		}
	case ActionCalculate:
		a.Target = strings.TrimSpace(cfg.Target)
		a.Field1, a.Field2 = types.ValueOf(cfg.Field1), types.ValueOf(cfg.Field2)
		op, ok := ParseCalcOp(cfg.Operation)
		a.Operation = op
		switch {
		case !ok:
			a.Err = fmt.Errorf("CALCULATE: unknown operation %q", cfg.Operation)
		case a.Target == "":
			a.Err = fmt.Errorf("%w: CALCULATE needs a target", types.ErrEmptyField)
		}
	case ActionAddProduct:
		a.SKU = strings.TrimSpace(cfg.SKU)
		q, err := parsePositiveInt(types.ValueOf(cfg.Quantity))
		a.Quantity = q
		switch {
		case a.SKU == "":
			a.Err = fmt.Errorf("%w: ADD_PRODUCT needs a sku", types.ErrEmptyField)
		case err != nil:
			a.Err = fmt.Errorf("%w: %v", err, cfg.Quantity)
		}
	case ActionDeprecated:
		a.Err = fmt.Errorf("%w: %s", types.ErrDeprecatedAction, cfg.Type)
	default:
		a.Err = fmt.Errorf("%w: %q", types.ErrUnknownAction, cfg.Type)
	}
	return a
}

// ensureTarget creates the column a writes, with its default, if absent.
func (a Action) ensureTarget(ds *types.Dataset, cols Columns) {
	if a.Err != nil {
		return
	}
	switch a.Kind {
	case ActionAddTag, ActionAddOrderTag:
		ds.EnsureColumn(cols.Note, types.Text(""))
	case ActionAddInternalTag:
		ds.EnsureColumn(cols.InternalTags, types.Text("[]"))
	case ActionSetStatus:
		ds.EnsureColumn(cols.Status, types.Text(""))
	case ActionCopyField:
		ds.EnsureColumn(a.Target, types.Null())
	case ActionCalculate:
		ds.EnsureColumn(a.Target, types.Number(0))
	case ActionAddProduct:
		ds.EnsureColumn(cols.RuleGenerated, types.Text("false"))
	}
}

// executor applies actions to a dataset during one run.
type executor struct {
	ds    *types.Dataset
	cols  Columns
	base  int // row count before synthesis; lookups never see buffered rows
	synth []map[string]types.Value
	skus  map[string]int
}

func newExecutor(ds *types.Dataset, cols Columns) *executor {
	return &executor{ds: ds, cols: cols, base: ds.Len()}
}

// execute applies a to rows. It returns an error when the action was skipped.
func (x *executor) execute(a Action, rows []int) error {
	if a.Err != nil {
		return a.Err
	}
	switch a.Kind {
	case ActionAddTag, ActionAddOrderTag:
		for _, r := range rows {
			x.ds.Set(r, x.cols.Note, types.Text(appendNoteTag(x.ds.Get(r, x.cols.Note), a.Value)))
		}
	case ActionAddInternalTag:
		for _, r := range rows {
			x.ds.Set(r, x.cols.InternalTags, types.Text(appendInternalTag(x.ds.Get(r, x.cols.InternalTags), a.Value)))
		}
	case ActionSetStatus:
		for _, r := range rows {
			x.ds.Set(r, x.cols.Status, types.Text(a.Value))
		}
	case ActionCopyField:
		if !x.ds.HasColumn(a.Source) {
			return fmt.Errorf("%w: COPY_FIELD source %q", types.ErrFieldNotFound, a.Source)
		}
		for _, r := range rows {
			x.ds.Set(r, a.Target, x.ds.Get(r, a.Source))
		}
	case ActionCalculate:
		return x.calculate(a, rows)
	case ActionAddProduct:
		for _, r := range rows {
			x.synth = append(x.synth, x.synthesize(a, r))
		}
	default:
		return fmt.Errorf("%w: %q", types.ErrUnknownAction, a.Type)
	}
	return nil
}

type operand struct {
	column   string
	constant float64
}

// resolveOperand maps a CALCULATE field to a column, or to a numeric constant
// when no column carries that name.
func (x *executor) resolveOperand(v types.Value) (operand, bool) {
	if v.IsText() && x.ds.HasColumn(v.String()) {
		return operand{column: v.String()}, true
	}
	if f, ok := v.Float(); ok {
		return operand{constant: f}, true
	}
	return operand{}, false
}

func (x *executor) operandValue(o operand, row int) (float64, bool) {
	if o.column == "" {
		return o.constant, true
	}
	return x.ds.Get(row, o.column).Float()
}

func (x *executor) calculate(a Action, rows []int) error {
	lhs, ok := x.resolveOperand(a.Field1)
	if !ok {
		return fmt.Errorf("%w: CALCULATE field1 %q", types.ErrFieldNotFound, a.Field1.String())
	}
	rhs, ok := x.resolveOperand(a.Field2)
	if !ok {
		return fmt.Errorf("%w: CALCULATE field2 %q", types.ErrFieldNotFound, a.Field2.String())
	}
	for _, r := range rows {
		out := types.Null()
		if l, ok := x.operandValue(lhs, r); ok {
			if rv, ok := x.operandValue(rhs, r); ok {
				if res, ok := a.Operation.apply(l, rv); ok {
					out = types.Number(res)
				}
			}
		}
		x.ds.Set(r, a.Target, out)
	}
	return nil
}

// lookupSKU returns the first pre-existing row carrying sku.
func (x *executor) lookupSKU(sku string) (int, bool) {
	if x.skus == nil {
		x.skus = make(map[string]int)
		if vals, ok := x.ds.Column(x.cols.SKU, nil); ok {
			for i := 0; i < x.base && i < len(vals); i++ {
				key := strings.TrimSpace(vals[i].String())
				if _, seen := x.skus[key]; !seen && !vals[i].IsNull() {
					x.skus[key] = i
				}
			}
		}
	}
	r, ok := x.skus[sku]
	return r, ok
}

func (x *executor) synthesize(a Action, from int) map[string]types.Value {
	row := x.ds.Row(from)
	row[x.cols.SKU] = types.Text(a.SKU)
	row[x.cols.Quantity] = types.Number(float64(a.Quantity))
	if src, ok := x.lookupSKU(a.SKU); ok {
		row[x.cols.ProductName] = x.ds.Get(src, x.cols.ProductName)
		row[x.cols.Stock] = x.ds.Get(src, x.cols.Stock)
		if x.ds.HasColumn(x.cols.FinalStock) {
			row[x.cols.FinalStock] = x.ds.Get(src, x.cols.FinalStock)
		}
	} else {
		row[x.cols.ProductName] = types.Text(a.SKU + " (added by rule)")
		row[x.cols.Stock] = types.Number(0)
		if x.ds.HasColumn(x.cols.FinalStock) {
			row[x.cols.FinalStock] = types.Number(0)
		}
	}
	if _, ok := row[x.cols.Note]; ok {
		row[x.cols.Note] = types.Text("")
	}
	if _, ok := row[x.cols.Status]; ok {
		row[x.cols.Status] = types.Text("")
	}
	if _, ok := row[x.cols.InternalTags]; ok {
		row[x.cols.InternalTags] = types.Text("[]")
	}
	row[x.cols.RuleGenerated] = types.Text("true")
	return row
}

// appendNoteTag adds tag to a comma-separated note unless already present.
func appendNoteTag(note types.Value, tag string) string {
	parts := splitList(note.String(), ",")
	for _, p := range parts {
		if p == tag {
			return note.String()
		}
	}
	return strings.Join(append(parts, tag), ", ")
}

// parseTagList reads an internal tag cell: a JSON array, or a legacy
// comma-separated string.
func parseTagList(v types.Value) []string {
	s := strings.TrimSpace(v.String())
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(s), &tags); err == nil {
			return tags
		}
	}
	return splitList(s, ",")
}

// appendInternalTag adds tag to the JSON array unless already present.
func appendInternalTag(cell types.Value, tag string) string {
	tags := parseTagList(cell)
	found := false
	for _, t := range tags {
		if t == tag {
			found = true
			break
		}
	}
	if !found {
		tags = append(tags, tag)
	}
	if tags == nil {
		tags = []string{}
	}
	out, err := json.Marshal(tags)
	if err != nil {
		return cell.String()
	}
	return string(out)
}
