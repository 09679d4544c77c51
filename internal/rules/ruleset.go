// internal/rules/ruleset.go
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/solatis/packkeeper/internal/types"
)

/*
 * Rule set documents.
 *
 * Rule files are YAML or JSON (YAML 1.2 accepts JSON documents, so one decoder
 * handles both). Two top-level shapes are accepted:
 *   - a mapping {version, rules}
 *   - a bare list of rules, read as version 1
 *
 * Stored rule sets are always written as JSON in the current shape: Normalize
 * has run, so every rule has steps and a priority.
 */

// ParseRuleSet decodes a YAML or JSON rule set document.
func ParseRuleSet(data []byte) (types.RuleSet, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return types.RuleSet{}, fmt.Errorf("parse rule set: %w", err)
	}
	if len(root.Content) == 0 {
		return types.RuleSet{Version: types.RuleSetVersion}, nil
	}
	doc := root.Content[0]

	var rs types.RuleSet
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&rs.Rules); err != nil {
			return types.RuleSet{}, fmt.Errorf("parse rule set: %w", err)
		}
		rs.Version = 1
	case yaml.MappingNode:
		if err := doc.Decode(&rs); err != nil {
			return types.RuleSet{}, fmt.Errorf("parse rule set: %w", err)
		}
		if rs.Version == 0 {
			rs.Version = 1
		}
	default:
		return types.RuleSet{}, fmt.Errorf("parse rule set: expected list or mapping at top level")
	}
	if rs.Version > types.RuleSetVersion {
		return types.RuleSet{}, fmt.Errorf("parse rule set: unsupported version %d", rs.Version)
	}
	return rs, nil
}

// NormalizeRuleSet returns rs in the current shape and version.
func NormalizeRuleSet(rs types.RuleSet) types.RuleSet {
	return types.RuleSet{Version: types.RuleSetVersion, Rules: Normalize(rs.Rules)}
}

// EncodeRuleSet normalizes rs and encodes it as indented JSON for storage.
func EncodeRuleSet(rs types.RuleSet) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NormalizeRuleSet(rs)); err != nil {
		return nil, fmt.Errorf("encode rule set: %w", err)
	}
	return buf.Bytes(), nil
}
