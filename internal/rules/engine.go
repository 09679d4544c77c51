// internal/rules/engine.go
package rules

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/packkeeper/internal/logging"
	"github.com/solatis/packkeeper/internal/types"
)

/*
 * Engine façade.
 *
 * Run orchestrates one evaluation:
 *   1. Schedule: normalize, compile, drop disabled, sort by priority
 *   2. Create every column a configured action writes, with its default
 *   3. Partition rules into article-level and order-level
 *   4. Article rules in priority order over all rows
 *   5. For each order (first-appearance order), order rules in priority order
 *      over that order's rows, order fields served by the order's Aggregator
 *   6. Append buffered synthesized rows once
 *
 * The engine never returns an error and never panics out: every problem is
 * logged and the dataset is returned, possibly unmodified. A panic inside one
 * rule is recovered, logged, and the run continues with the next rule.
 *
 * Concurrency: an Engine is safe for concurrent use on distinct datasets. A
 * single dataset must not be passed to concurrent Run calls.
 */

// Engine evaluates rule configurations against datasets.
type Engine struct {
	cols    Columns
	matcher *Matcher
	log     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithColumns overrides the standard column names. Empty names keep defaults.
func WithColumns(c Columns) Option {
	return func(e *Engine) { e.cols = c.withDefaults() }
}

// WithRegexCache replaces the shared pattern cache.
func WithRegexCache(c *RegexCache) Option {
	return func(e *Engine) { e.matcher.Regex = c }
}

// WithDateCache replaces the shared date cache.
func WithDateCache(c *DateCache) Option {
	return func(e *Engine) { e.matcher.Dates = c }
}

// WithListSeparator sets the in_list/not_in_list element separator.
func WithListSeparator(sep string) Option {
	return func(e *Engine) {
		if sep != "" {
			e.matcher.ListSeparator = sep
		}
	}
}

// WithLogger sets the logger for run warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an engine with default columns and the shared caches.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		cols:    DefaultColumns(),
		matcher: NewMatcher(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.New("rules")
	}
	return e
}

// Columns returns the engine's column names.
func (e *Engine) Columns() Columns { return e.cols }

// RuleReport summarizes one rule's effect in a run.
type RuleReport struct {
	Name     string `json:"name"`
	Level    string `json:"level"`
	Priority int    `json:"priority"`
	// Matched counts rows eligible after the rule's last evaluated step,
	// summed over orders for order-level rules.
	Matched int `json:"matched"`
	Actions int `json:"actions"`
	Panics  int `json:"panics,omitempty"`
}

// RunReport summarizes a run.
type RunReport struct {
	Rules           []RuleReport  `json:"rules"`
	Skipped         []string      `json:"skipped,omitempty"`
	RowsIn          int           `json:"rows_in"`
	RowsOut         int           `json:"rows_out"`
	SynthesizedRows int           `json:"synthesized_rows"`
	Warnings        int           `json:"warnings"`
	Duration        time.Duration `json:"duration_ns"`
}

// Apply runs configs against ds and returns ds.
func (e *Engine) Apply(ds *types.Dataset, configs []types.RuleConfig) *types.Dataset {
	e.Run(ds, configs)
	return ds
}

// Run evaluates configs against ds in place and reports what happened.
func (e *Engine) Run(ds *types.Dataset, configs []types.RuleConfig) *RunReport {
	start := time.Now()
	report := &RunReport{RowsIn: ds.Len()}

	rules, errs := Schedule(configs)
	for _, err := range errs {
		e.log.Warn("rule skipped", slog.Any("error", err))
		report.Skipped = append(report.Skipped, err.Error())
	}

	for _, rule := range rules {
		for _, step := range rule.Steps {
			for _, a := range step.Actions {
				a.ensureTarget(ds, e.cols)
			}
		}
	}

	var article, order []*CompiledRule
	for _, rule := range rules {
		if rule.IsOrderLevel() {
			order = append(order, rule)
		} else {
			article = append(article, rule)
		}
	}

	st := newRun(ds, e.cols, e.matcher, e.log)
	reports := make(map[*CompiledRule]*RuleReport, len(rules))
	for _, rule := range rules {
		report.Rules = append(report.Rules, RuleReport{Name: rule.Name, Level: rule.Level, Priority: rule.Priority})
	}
	for i, rule := range rules {
		reports[rule] = &report.Rules[i]
	}

	all := make([]int, ds.Len())
	for i := range all {
		all[i] = i
	}
	for _, rule := range article {
		e.runGuarded(st, rule, scope{rows: all}, reports[rule])
	}

	if len(order) > 0 {
		for _, group := range GroupOrders(ds, e.cols.Order) {
			agg := NewAggregator(ds, e.cols, e.matcher, group)
			for _, rule := range order {
				e.runGuarded(st, rule, scope{rows: group.Rows, agg: agg}, reports[rule])
			}
		}
	}

	report.SynthesizedRows = len(st.exec.synth)
	if len(st.exec.synth) > 0 {
		ds.AppendRows(st.exec.synth)
	}
	report.RowsOut = ds.Len()
	report.Warnings = st.warnings
	report.Duration = time.Since(start)

	e.log.Debug("run complete",
		slog.Int("rules", len(rules)),
		slog.Int("rows_in", report.RowsIn),
		slog.Int("rows_out", report.RowsOut),
		slog.Int("warnings", report.Warnings),
		slog.Duration("duration", report.Duration))
	return report
}

// runGuarded evaluates rule over sc, recovering from panics so one broken
// rule cannot abort the run.
func (e *Engine) runGuarded(st *run, rule *CompiledRule, sc scope, rr *RuleReport) {
	defer func() {
		if p := recover(); p != nil {
			rr.Panics++
			st.warnOnce(fmt.Sprintf("panic/%d", rule.seq), "rule panicked, continuing with next rule",
				slog.String("rule", rule.Name),
				slog.String("panic", fmt.Sprint(p)))
		}
	}()
	out := st.evaluateRule(rule, sc)
	rr.Matched += out.matched
	rr.Actions += out.actions
}

// Apply runs configs against ds with a default engine.
func Apply(ds *types.Dataset, configs []types.RuleConfig) *types.Dataset {
	return NewEngine().Apply(ds, configs)
}
