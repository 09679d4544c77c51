// internal/rules/compile.go
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/solatis/packkeeper/internal/types"
)

/*
 * Rule normalization, compilation and scheduling.
 *
 * Normalize is the versioned load-time pass that folds legacy shapes into the
 * current one so the evaluator never branches on configuration shape:
 *   1. flat conditions/actions/match at rule level become a single step; a
 *      rule with neither steps nor flat fields gets one empty step, which
 *      never matches
 *   2. rules without a priority get 1000, 1001, ... in list order
 *   3. missing level defaults to article, missing match to ALL
 *
 * Compile turns one normalized rule into typed conditions and actions.
 * Condition problems (empty field, unknown operator) do not fail the rule:
 * the condition compiles as invalid and contributes nothing to its step.
 * Rule problems (unknown level, no steps) fail compilation of that rule only.
 *
 * Schedule = Normalize + Compile + drop disabled + stable sort by priority.
 *
 * Why stable sort: rules with equal priority keep their authored order so
 * execution order is deterministic across identical inputs.
 */

// DefaultPriorityBase is the first priority assigned to rules without one.
const DefaultPriorityBase = 1000

// CompiledCondition is a condition ready for evaluation.
type CompiledCondition struct {
	Field    string
	Order    OrderField // set only in order-level rules
	Operator Operator
	Value    types.Value

	// Err marks an invalid condition, dropped from its step's combination.
	Err error
}

// Valid reports whether the condition takes part in evaluation.
func (c CompiledCondition) Valid() bool { return c.Err == nil }

// CompiledStep is one condition-then-action stage.
type CompiledStep struct {
	Match      string
	Conditions []CompiledCondition
	Actions    []Action
}

// CompiledRule is fully normalized and ready for evaluation.
type CompiledRule struct {
	Name     string
	Level    string
	Priority int
	Steps    []CompiledStep

	// seq is the rule's position in the schedule. Names need not be unique,
	// so per-run warning keys use seq.
	seq int
}

// IsOrderLevel reports whether the rule is evaluated per order group.
func (r *CompiledRule) IsOrderLevel() bool { return r.Level == types.LevelOrder }

// Normalize returns normalized copies of configs. The input is not modified.
func Normalize(configs []types.RuleConfig) []types.RuleConfig {
	out := make([]types.RuleConfig, len(configs))
	next := DefaultPriorityBase
	for i, cfg := range configs {
		n := cfg

		if len(n.Steps) == 0 {
			n.Steps = []types.StepConfig{{
				Match:      n.Match,
				Conditions: n.Conditions,
				Actions:    n.Actions,
			}}
		} else {
			n.Steps = append([]types.StepConfig(nil), n.Steps...)
		}
		for si := range n.Steps {
			m := strings.ToUpper(strings.TrimSpace(n.Steps[si].Match))
			if m == "" {
				m = strings.ToUpper(strings.TrimSpace(n.Match))
			}
			if m == "" {
				m = types.MatchAll
			}
			n.Steps[si].Match = m
		}
		n.Match, n.Conditions, n.Actions = "", nil, nil

		if n.Priority == nil {
			n.Priority = types.IntPtr(next)
			next++
		} else {
			n.Priority = types.IntPtr(*n.Priority)
		}

		n.Level = strings.ToLower(strings.TrimSpace(n.Level))
		if n.Level == "" {
			n.Level = types.LevelArticle
		}
		out[i] = n
	}
	return out
}

// Compile builds the typed form of a normalized rule.
func Compile(cfg types.RuleConfig) (*CompiledRule, error) {
	if cfg.Level != types.LevelArticle && cfg.Level != types.LevelOrder {
		return nil, fmt.Errorf("rule %q: %w: %q", cfg.Name, types.ErrInvalidLevel, cfg.Level)
	}
	if len(cfg.Steps) == 0 {
		return nil, fmt.Errorf("rule %q: %w", cfg.Name, types.ErrEmptyRule)
	}

	priority := DefaultPriorityBase
	if cfg.Priority != nil {
		priority = *cfg.Priority
	}
	compiled := &CompiledRule{
		Name:     cfg.Name,
		Level:    cfg.Level,
		Priority: priority,
		Steps:    make([]CompiledStep, 0, len(cfg.Steps)),
	}

	for _, step := range cfg.Steps {
		cs := CompiledStep{
			Match:      step.Match,
			Conditions: make([]CompiledCondition, 0, len(step.Conditions)),
			Actions:    make([]Action, 0, len(step.Actions)),
		}
		// Unknown match policies fall back to ALL; Validate reports them.
		if cs.Match != types.MatchAny {
			cs.Match = types.MatchAll
		}
		for _, cond := range step.Conditions {
			cs.Conditions = append(cs.Conditions, compileCondition(cond, compiled.IsOrderLevel()))
		}
		for _, act := range step.Actions {
			cs.Actions = append(cs.Actions, compileAction(act))
		}
		compiled.Steps = append(compiled.Steps, cs)
	}
	return compiled, nil
}

// compileCondition resolves the operator and, in order rules, the order field.
func compileCondition(cond types.ConditionConfig, orderLevel bool) CompiledCondition {
	cc := CompiledCondition{
		Field: strings.TrimSpace(cond.Field),
		Value: types.ValueOf(cond.Value),
	}
	if cc.Field == "" {
		cc.Err = types.ErrEmptyField
		return cc
	}
	op, ok := ParseOperator(cond.Operator)
	if !ok {
		cc.Err = fmt.Errorf("%w: %q", types.ErrInvalidOperator, cond.Operator)
		return cc
	}
	cc.Operator = op
	if orderLevel {
		if f, ok := ParseOrderField(cc.Field); ok {
			cc.Order = f
		}
	}
	return cc
}

// Schedule normalizes, compiles and orders rules for execution.
// Disabled rules are dropped. Rules that fail to compile are dropped and
// their errors returned alongside the runnable rules.
func Schedule(configs []types.RuleConfig) ([]*CompiledRule, []error) {
	normalized := Normalize(configs)
	compiled := make([]*CompiledRule, 0, len(normalized))
	var errs []error
	for _, cfg := range normalized {
		if !cfg.IsEnabled() {
			continue
		}
		rule, err := Compile(cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		compiled = append(compiled, rule)
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority < compiled[j].Priority
	})
	for i, rule := range compiled {
		rule.seq = i
	}
	return compiled, errs
}
