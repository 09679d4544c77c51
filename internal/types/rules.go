// internal/types/rules.go
package types

/*
 * Rule configuration types.
 *
 * Plain structs mirroring the stored configuration shape produced by the rule
 * editor. They are consumed by internal/rules for normalization and compilation;
 * nothing here is evaluated directly. Both the current shape (steps) and the
 * legacy flat shape (conditions/actions/match at rule level) decode into the
 * same RuleConfig, and the scheduler's normalization pass folds the legacy shape
 * into steps.
 *
 * Key types:
 *   - RuleSet: versioned list of rules, the unit of storage
 *   - RuleConfig: one rule, either shape
 *   - StepConfig: condition-then-action stage
 *   - ConditionConfig: field/operator/value triple, value is any scalar
 *   - ActionConfig: action type plus the union of all action parameters
 */

// Rule levels.
const (
	LevelArticle = "article"
	LevelOrder   = "order"
)

// Step match policies.
const (
	MatchAll = "ALL"
	MatchAny = "ANY"
)

// RuleSetVersion is the configuration shape version written by this release.
// Version 1 is the legacy flat shape; version 2 uses steps.
const RuleSetVersion = 2

// RuleSet is a versioned, ordered list of rules.
type RuleSet struct {
	Version int          `json:"version" yaml:"version"`
	Rules   []RuleConfig `json:"rules" yaml:"rules"`
}

// RuleConfig is one rule as authored.
type RuleConfig struct {
	Name     string       `json:"name" yaml:"name"`
	Level    string       `json:"level,omitempty" yaml:"level,omitempty"`
	Priority *int         `json:"priority,omitempty" yaml:"priority,omitempty"`
	Enabled  *bool        `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Steps    []StepConfig `json:"steps,omitempty" yaml:"steps,omitempty"`

	// Legacy flat shape, folded into Steps by normalization.
	Match      string            `json:"match,omitempty" yaml:"match,omitempty"`
	Conditions []ConditionConfig `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions    []ActionConfig    `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// IsEnabled reports whether the rule should run. Rules are enabled unless
// explicitly disabled.
func (r RuleConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// StepConfig is one condition-then-action stage.
type StepConfig struct {
	Match      string            `json:"match,omitempty" yaml:"match,omitempty"`
	Conditions []ConditionConfig `json:"conditions" yaml:"conditions"`
	Actions    []ActionConfig    `json:"actions" yaml:"actions"`
}

// ConditionConfig compares a field against a literal.
type ConditionConfig struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// ActionConfig carries the union of parameters used by all action types.
// Only the fields relevant to Type are read.
type ActionConfig struct {
	Type      string `json:"type" yaml:"type"`
	Value     any    `json:"value,omitempty" yaml:"value,omitempty"`
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
	Target    string `json:"target,omitempty" yaml:"target,omitempty"`
	Operation string `json:"operation,omitempty" yaml:"operation,omitempty"`
	Field1    any    `json:"field1,omitempty" yaml:"field1,omitempty"`
	Field2    any    `json:"field2,omitempty" yaml:"field2,omitempty"`
	SKU       string `json:"sku,omitempty" yaml:"sku,omitempty"`
	Quantity  any    `json:"quantity,omitempty" yaml:"quantity,omitempty"`
}

// IntPtr returns a pointer to p, for literal rule construction.
func IntPtr(p int) *int { return &p }

// BoolPtr returns a pointer to b, for literal rule construction.
func BoolPtr(b bool) *bool { return &b }
