package rules

import (
	"encoding/json"
	"testing"

	"github.com/solatis/packkeeper/internal/logging"
	"github.com/solatis/packkeeper/internal/types"
)

// mustDataset decodes a JSON array of objects, keeping column order.
func mustDataset(t *testing.T, js string) *types.Dataset {
	t.Helper()
	ds := types.NewDataset()
	if err := json.Unmarshal([]byte(js), ds); err != nil {
		t.Fatalf("json.Unmarshal(dataset) error = %v, want nil", err)
	}
	return ds
}

// quietEngine returns an engine that discards run warnings.
func quietEngine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithLogger(logging.Discard())}, opts...)...)
}

// column returns the plain values of name, failing the test if it is missing.
func column(t *testing.T, ds *types.Dataset, name string) []any {
	t.Helper()
	vals, ok := ds.Column(name, nil)
	if !ok {
		t.Fatalf("column %q missing; have %v", name, ds.Columns())
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v.Interface()
	}
	return out
}

func cond(field, op string, value any) types.ConditionConfig {
	return types.ConditionConfig{Field: field, Operator: op, Value: value}
}

func addTag(tag string) types.ActionConfig {
	return types.ActionConfig{Type: "ADD_TAG", Value: tag}
}
