package rules

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/packkeeper/internal/logging"
	"github.com/solatis/packkeeper/internal/types"
)

func compileOne(t *testing.T, cfg types.RuleConfig) *CompiledRule {
	t.Helper()
	rule, err := Compile(Normalize([]types.RuleConfig{cfg})[0])
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	return rule
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

func TestEvaluateStep_InvalidConditionsDropped(t *testing.T) {
	ds := mustDataset(t, `[{"SKU": "A"}, {"SKU": "B"}, {"SKU": "A"}]`)
	r := newRun(ds, DefaultColumns(), NewMatcher(), logging.Discard())
	sc := scope{rows: allRows(ds.Len())}

	tests := []struct {
		name  string
		match string
		conds []types.ConditionConfig
		want  types.Selection
	}{
		{
			name:  "ALL ignores missing column and unknown operator",
			match: "ALL",
			conds: []types.ConditionConfig{
				cond("SKU", "equals", "A"),
				cond("Missing_Col", "equals", "X"),
				cond("SKU", "approximately", "B"),
			},
			want: sel(T, F, T),
		},
		{
			name:  "ANY ignores invalid conditions",
			match: "ANY",
			conds: []types.ConditionConfig{
				cond("Missing_Col", "equals", "X"),
				cond("SKU", "equals", "B"),
			},
			want: sel(F, T, F),
		},
		{
			name:  "only invalid conditions select nothing",
			match: "ANY",
			conds: []types.ConditionConfig{cond("Missing_Col", "is_empty", nil)},
			want:  sel(F, F, F),
		},
		{
			name:  "no conditions select nothing",
			match: "ALL",
			want:  sel(F, F, F),
		},
		{
			name:  "unusable literal still counts toward ANY",
			match: "ANY",
			conds: []types.ConditionConfig{
				cond("SKU", "matches_regex", "(["),
				cond("SKU", "equals", "B"),
			},
			want: sel(F, T, F),
		},
		{
			name:  "unusable literal still counts toward ALL",
			match: "ALL",
			conds: []types.ConditionConfig{
				cond("SKU", "between", "9-1"),
				cond("SKU", "equals", "A"),
			},
			want: sel(F, F, F),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := compileOne(t, types.RuleConfig{
				Name:  tt.name,
				Steps: []types.StepConfig{{Match: tt.match, Conditions: tt.conds}},
			})
			got := r.evaluateStep(rule, 0, rule.Steps[0], sc)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("evaluateStep() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvaluateStep_WarnsOncePerCondition(t *testing.T) {
	ds := mustDataset(t, `[{"SKU": "A"}]`)
	r := newRun(ds, DefaultColumns(), NewMatcher(), logging.Discard())
	rule := compileOne(t, types.RuleConfig{
		Name:       "missing",
		Conditions: []types.ConditionConfig{cond("Missing_Col", "equals", "X")},
	})
	for i := 0; i < 3; i++ {
		r.evaluateStep(rule, 0, rule.Steps[0], scope{rows: []int{0}})
	}
	if r.warnings != 1 {
		t.Errorf("warnings = %d, want 1", r.warnings)
	}
}

// Property-based test: ALL is the AND and ANY the OR of condition selections
func TestEvaluateStep_PropertyCombination(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ALL == AND, ANY == OR", prop.ForAll(
		func(as []int, x, y int) bool {
			rows := make([]string, len(as))
			for i, a := range as {
				rows[i] = fmt.Sprintf(`{"A": %d, "B": %d}`, a, (a*7)%13)
			}
			ds := types.NewDataset()
			if err := ds.UnmarshalJSON([]byte("[" + strings.Join(rows, ",") + "]")); err != nil {
				return false
			}
			r := newRun(ds, DefaultColumns(), NewMatcher(), logging.Discard())
			sc := scope{rows: allRows(ds.Len())}
			conds := []types.ConditionConfig{
				cond("A", "greater_than", x),
				cond("B", "less_or_equal", y),
			}

			for _, match := range []string{"ALL", "ANY"} {
				rule, err := Compile(Normalize([]types.RuleConfig{{
					Name:  match,
					Steps: []types.StepConfig{{Match: match, Conditions: conds}},
				}})[0])
				if err != nil {
					return false
				}
				got := r.evaluateStep(rule, 0, rule.Steps[0], sc)
				for i, a := range as {
					c1, c2 := a > x, (a*7)%13 <= y
					want := c1 && c2
					if match == "ANY" {
						want = c1 || c2
					}
					if got[i] != want {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 30)),
		gen.IntRange(0, 30),
		gen.IntRange(0, 13),
	))

	properties.TestingRun(t)
}

// Property-based test: eligibility never grows across steps
func TestEvaluateRule_PropertyMonotonicNarrowing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("rows tagged by step n+1 were tagged by step n", prop.ForAll(
		func(vals []int, t0, t1, t2 int) bool {
			rows := make([]string, len(vals))
			for i, v := range vals {
				rows[i] = fmt.Sprintf(`{"V": %d}`, v)
			}
			ds := types.NewDataset()
			if err := ds.UnmarshalJSON([]byte("[" + strings.Join(rows, ",") + "]")); err != nil {
				return false
			}
			// Step thresholds are independent, so narrowing is the only
			// reason a later step can select fewer rows.
			rule := types.RuleConfig{
				Name: "narrow",
				Steps: []types.StepConfig{
					{Conditions: []types.ConditionConfig{cond("V", "greater_than", t0)}, Actions: []types.ActionConfig{addTag("S0")}},
					{Conditions: []types.ConditionConfig{cond("V", "less_than", t1)}, Actions: []types.ActionConfig{addTag("S1")}},
					{Conditions: []types.ConditionConfig{cond("V", "greater_or_equal", t2)}, Actions: []types.ActionConfig{addTag("S2")}},
				},
			}
			quietEngine().Apply(ds, []types.RuleConfig{rule})

			for i := 0; i < ds.Len(); i++ {
				note := ds.Get(i, "Status_Note").String()
				has := func(tag string) bool { return strings.Contains(note, tag) }
				if (has("S1") && !has("S0")) || (has("S2") && !has("S1")) {
					return false
				}
				v := vals[i]
				if has("S2") != (v > t0 && v < t1 && v >= t2) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 20)),
		gen.IntRange(0, 20),
		gen.IntRange(0, 20),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

func TestEvaluateRule_StepsSeePriorActions(t *testing.T) {
	ds := mustDataset(t, `[
		{"SKU": "A", "Quantity": 2, "Price": 60},
		{"SKU": "B", "Quantity": 1, "Price": 50},
		{"SKU": "C", "Quantity": 0, "Price": 500}
	]`)
	rule := types.RuleConfig{
		Name: "big orders",
		Steps: []types.StepConfig{
			{
				Conditions: []types.ConditionConfig{cond("Quantity", "greater_than", 0)},
				Actions:    []types.ActionConfig{{Type: "CALCULATE", Operation: "multiply", Field1: "Quantity", Field2: "Price", Target: "Total"}},
			},
			{
				Conditions: []types.ConditionConfig{cond("Total", "greater_or_equal", 100)},
				Actions:    []types.ActionConfig{{Type: "SET_STATUS", Value: "Big"}},
			},
		},
	}

	report := quietEngine().Run(ds, []types.RuleConfig{rule})

	if diff := cmp.Diff([]any{120.0, 50.0, 0.0}, column(t, ds, "Total")); diff != "" {
		t.Errorf("Total mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"Big", "", ""}, column(t, ds, "Order_Fulfillment_Status")); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	if report.Rules[0].Matched != 1 || report.Rules[0].Actions != 2 {
		t.Errorf("rule report = %+v, want Matched 1 Actions 2", report.Rules[0])
	}
}

func TestEvaluateRule_StopsWhenNothingEligible(t *testing.T) {
	ds := mustDataset(t, `[{"SKU": "A", "Quantity": 1}]`)
	rule := types.RuleConfig{
		Name: "never",
		Steps: []types.StepConfig{
			{Conditions: []types.ConditionConfig{cond("SKU", "equals", "Z")}},
			{Conditions: []types.ConditionConfig{cond("Quantity", "is_not_empty", nil)}, Actions: []types.ActionConfig{addTag("X")}},
		},
	}
	report := quietEngine().Run(ds, []types.RuleConfig{rule})
	if got := ds.Get(0, "Status_Note").String(); got != "" {
		t.Errorf("note = %q, want empty", got)
	}
	if report.Rules[0].Matched != 0 || report.Rules[0].Actions != 0 {
		t.Errorf("rule report = %+v, want zero", report.Rules[0])
	}
}
