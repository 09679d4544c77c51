// internal/rules/validate.go
package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/packkeeper/internal/types"
)

/*
 * Authoring-time validation.
 *
 * Validate inspects raw rule configurations and reports problems without
 * evaluating anything. It is stricter than the evaluator about shape (unknown
 * operators, levels and match policies are errors) and more lenient about
 * literals: a reversed between range is only a warning here while evaluation
 * treats it as selecting nothing.
 *
 * Severity:
 *   - error: the rule, step or condition will be dropped or ignored at runtime
 *   - warning: the rule runs but likely not as intended
 */

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Step and Condition are -1 when the issue
// concerns the rule (or step) as a whole; Action is -1 unless the finding
// concerns an action.
type Issue struct {
	Rule      string   `json:"rule"`
	Step      int      `json:"step"`
	Condition int      `json:"condition"`
	Action    int      `json:"action"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
}

func (i Issue) String() string {
	loc := fmt.Sprintf("rule %q", i.Rule)
	if i.Step >= 0 {
		loc += fmt.Sprintf(" step %d", i.Step)
	}
	if i.Condition >= 0 {
		loc += fmt.Sprintf(" condition %d", i.Condition)
	}
	if i.Action >= 0 {
		loc += fmt.Sprintf(" action %d", i.Action)
	}
	return fmt.Sprintf("%s: %s: %s", i.Severity, loc, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks configs. columns, if non-nil, lists the dataset columns the
// rules will run against; fields outside it (and outside the order fields for
// order rules) produce a warning.
func Validate(configs []types.RuleConfig, columns []string) []Issue {
	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c] = struct{}{}
	}
	written := writtenColumns(configs)

	var issues []Issue
	for _, cfg := range Normalize(configs) {
		v := ruleValidator{name: cfg.Name, known: known, checkColumns: columns != nil, written: written}
		issues = append(issues, v.validate(cfg)...)
	}
	return issues
}

// writtenColumns collects columns created by COPY_FIELD and CALCULATE so
// conditions on them are not reported as unknown.
func writtenColumns(configs []types.RuleConfig) map[string]struct{} {
	out := make(map[string]struct{})
	for _, cfg := range Normalize(configs) {
		for _, step := range cfg.Steps {
			for _, a := range step.Actions {
				switch ParseActionKind(a.Type) {
				case ActionCopyField, ActionCalculate:
					if t := strings.TrimSpace(a.Target); t != "" {
						out[t] = struct{}{}
					}
				}
			}
		}
	}
	return out
}

type ruleValidator struct {
	name         string
	known        map[string]struct{}
	written      map[string]struct{}
	checkColumns bool
	issues       []Issue
}

func (v *ruleValidator) add(sev Severity, step, cond, action int, format string, args ...any) {
	v.issues = append(v.issues, Issue{
		Rule:      v.name,
		Step:      step,
		Condition: cond,
		Action:    action,
		Severity:  sev,
		Message:   fmt.Sprintf(format, args...),
	})
}

func (v *ruleValidator) validate(cfg types.RuleConfig) []Issue {
	if strings.TrimSpace(cfg.Name) == "" {
		v.add(SeverityWarning, -1, -1, -1, "rule has no name")
	}
	orderLevel := false
	switch cfg.Level {
	case types.LevelArticle:
	case types.LevelOrder:
		orderLevel = true
	default:
		v.add(SeverityError, -1, -1, -1, "%v: %q", types.ErrInvalidLevel, cfg.Level)
	}

	for si, step := range cfg.Steps {
		if step.Match != types.MatchAll && step.Match != types.MatchAny {
			v.add(SeverityError, si, -1, -1, "%v: %q (ALL is used)", types.ErrInvalidMatch, step.Match)
		}
		if len(step.Conditions) == 0 {
			v.add(SeverityWarning, si, -1, -1, "step has no conditions and never matches")
		}
		for ci, cond := range step.Conditions {
			v.validateCondition(si, ci, cond, orderLevel)
		}
		for ai, a := range step.Actions {
			v.validateAction(si, ai, a)
		}
	}
	return v.issues
}

func (v *ruleValidator) validateCondition(si, ci int, cond types.ConditionConfig, orderLevel bool) {
	cc := compileCondition(cond, orderLevel)
	if cc.Err != nil {
		v.add(SeverityError, si, ci, -1, "%v", cc.Err)
		return
	}

	if v.checkColumns && cc.Order == OrderFieldNone {
		_, isKnown := v.known[cc.Field]
		_, isWritten := v.written[cc.Field]
		if !isKnown && !isWritten {
			v.add(SeverityWarning, si, ci, -1, "%v: %q", types.ErrFieldNotFound, cc.Field)
		}
	}

	lit := cc.Value.String()
	switch cc.Operator {
	case OpBetween, OpNotBetween:
		r, err := ParseRange(lit)
		switch {
		case err != nil:
			v.add(SeverityError, si, ci, -1, "%v: %q", err, lit)
		case r.Reversed():
			v.add(SeverityWarning, si, ci, -1, "%v: %q", types.ErrReversedRange, lit)
		}
	case OpDateBefore, OpDateAfter, OpDateEquals:
		if _, ok := ParseDate(lit); !ok {
			v.add(SeverityWarning, si, ci, -1, "%v: %q", types.ErrInvalidDate, lit)
		}
	case OpMatchesRegex, OpDoesNotMatchRegex:
		if _, err := SharedRegexCache().Compile(lit); err != nil {
			v.add(SeverityWarning, si, ci, -1, "%v", err)
		}
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		if _, ok := cc.Value.Float(); !ok {
			v.add(SeverityWarning, si, ci, -1, "%v: %q is not a number", types.ErrCoercionFailed, lit)
		}
	}
}

func (v *ruleValidator) validateAction(si, ai int, cfg types.ActionConfig) {
	a := compileAction(cfg)
	switch {
	case a.Err == nil:
	case a.Kind == ActionDeprecated:
		v.add(SeverityWarning, si, -1, ai, "%v (ignored)", a.Err)
	case a.Kind == ActionUnknown:
		v.add(SeverityError, si, -1, ai, "%v", a.Err)
	default:
		v.add(SeverityWarning, si, -1, ai, "%v (skipped at runtime)", a.Err)
	}
}
