// internal/rules/evaluate.go
package rules

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/solatis/packkeeper/internal/types"
)

/*
 * Condition and step evaluation.
 *
 * A rule is evaluated over a scope: the dataset rows it may touch (all rows
 * for article rules, one order's rows for order rules) plus, for order rules,
 * the order's Aggregator. Selections are aligned to the scope, not to the
 * whole dataset.
 *
 * Step combination:
 *   - ALL: AND of the valid condition selections
 *   - ANY: OR of the valid condition selections
 *   - no valid condition: all-false (fail-closed)
 *
 * Narrowing: eligible(n+1) = result(n+1) AND eligible(n), starting from
 * all-true. The step's actions run on eligible(n) before step n+1 is
 * evaluated, so later steps see values written by earlier ones. Evaluation of
 * a rule stops as soon as nothing is eligible.
 *
 * Failure handling is fail-open:
 *   - invalid condition or unresolvable field: dropped from the combination
 *   - unusable literal (date, range, regex, number): selects nothing
 *   - skipped action: other actions of the step still run
 * Each distinct problem is logged once per run.
 */

// scope is the row set a rule is evaluated over.
type scope struct {
	rows []int
	agg  *Aggregator
}

// run holds the mutable state of one engine run.
type run struct {
	ds      *types.Dataset
	cols    Columns
	matcher *Matcher
	exec    *executor
	log     *slog.Logger

	warned   map[string]struct{}
	warnings int
}

func newRun(ds *types.Dataset, cols Columns, m *Matcher, log *slog.Logger) *run {
	return &run{
		ds:      ds,
		cols:    cols,
		matcher: m,
		exec:    newExecutor(ds, cols),
		log:     log,
		warned:  make(map[string]struct{}),
	}
}

// warnOnce logs msg at warning level the first time key is seen in this run.
func (r *run) warnOnce(key, msg string, args ...any) {
	if _, ok := r.warned[key]; ok {
		return
	}
	r.warned[key] = struct{}{}
	r.warnings++
	r.log.Warn(msg, args...)
}

// ruleOutcome summarizes one evaluation of a rule over one scope.
type ruleOutcome struct {
	matched int // rows eligible after the last evaluated step
	actions int // action executions that were not skipped
}

// evaluateRule runs the narrowing/action loop of rule over sc.
func (r *run) evaluateRule(rule *CompiledRule, sc scope) ruleOutcome {
	var out ruleOutcome
	eligible := types.NewSelection(len(sc.rows), true)
	for si, step := range rule.Steps {
		result := r.evaluateStep(rule, si, step, sc)
		eligible = result.And(eligible)
		if !eligible.Any() {
			return ruleOutcome{actions: out.actions}
		}
		out.matched = eligible.Count()
		out.actions += r.executeActions(rule, si, step.Actions, eligible, sc)
		if sc.agg != nil {
			sc.agg.Invalidate()
		}
	}
	return out
}

// evaluateStep combines the step's valid condition selections.
func (r *run) evaluateStep(rule *CompiledRule, si int, step CompiledStep, sc scope) types.Selection {
	var combined types.Selection
	for ci, cond := range step.Conditions {
		sel, ok := r.evaluateCondition(rule, si, ci, cond, sc)
		if !ok {
			continue
		}
		switch {
		case combined == nil:
			combined = sel
		case step.Match == types.MatchAny:
			combined = combined.Or(sel)
		default:
			combined = combined.And(sel)
		}
	}
	if combined == nil {
		return types.NewSelection(len(sc.rows), false)
	}
	return combined
}

// evaluateCondition returns the condition's selection over sc, or ok == false
// if the condition is invalid for this dataset.
func (r *run) evaluateCondition(rule *CompiledRule, si, ci int, cond CompiledCondition, sc scope) (types.Selection, bool) {
	key := fmt.Sprintf("%d/%d/%d", rule.seq, si, ci)
	attrs := []any{
		slog.String("rule", rule.Name),
		slog.Int("step", si),
		slog.String("field", cond.Field),
		slog.String("operator", cond.Operator.String()),
	}
	if !cond.Valid() {
		r.warnOnce(key, "invalid condition dropped", append(attrs, slog.Any("error", cond.Err))...)
		return nil, false
	}

	if cond.Order != OrderFieldNone && sc.agg != nil {
		matched, err := sc.agg.Match(cond.Order, cond.Operator, cond.Value)
		if errors.Is(err, types.ErrFieldNotFound) {
			r.warnOnce(key, "order field unavailable, condition dropped", append(attrs, slog.Any("error", err))...)
			return nil, false
		}
		if err != nil {
			r.warnOnce(key, "condition literal unusable, selecting nothing", append(attrs, slog.Any("error", err))...)
		}
		return types.NewSelection(len(sc.rows), matched), true
	}

	values, found := r.ds.Column(cond.Field, sc.rows)
	if !found {
		r.warnOnce(key, "condition field not in dataset, condition dropped", attrs...)
		return nil, false
	}
	sel, err := r.matcher.Match(cond.Operator, Column{Values: values, Numeric: r.ds.IsNumeric(cond.Field)}, cond.Value)
	if err != nil {
		r.warnOnce(key, "condition literal unusable, selecting nothing", append(attrs, slog.Any("error", err))...)
	}
	return sel, true
}

// executeActions applies actions to the eligible rows of sc and returns the
// number of actions that ran.
func (r *run) executeActions(rule *CompiledRule, si int, actions []Action, eligible types.Selection, sc scope) int {
	var all []int
	for _, i := range eligible.Indices() {
		all = append(all, sc.rows[i])
	}
	first := all[:1]

	ran := 0
	for ai, a := range actions {
		rows := all
		if rule.IsOrderLevel() && !a.Kind.AppliesToEveryOrderRow() {
			rows = first
		}
		if err := r.exec.execute(a, rows); err != nil {
			r.warnOnce(fmt.Sprintf("%d/%d/a%d", rule.seq, si, ai), "action skipped",
				slog.String("rule", rule.Name),
				slog.Int("step", si),
				slog.String("action", a.Type),
				slog.Any("error", err))
			continue
		}
		ran++
	}
	return ran
}
