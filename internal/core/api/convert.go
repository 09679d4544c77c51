package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/packkeeper/internal/rules"
	"github.com/solatis/packkeeper/internal/types"
)

/*
 * Struct <-> domain conversion.
 *
 * Datasets travel as a list of row structs plus an optional "columns" list.
 * Struct fields are unordered, so "columns" fixes column order; columns that
 * appear only in rows follow in sorted order.
 *
 * Rule configurations and reports are converted through their JSON form so
 * the wire shape is exactly the JSON shape accepted by the CLI.
 */

// datasetFromStruct reads req.rows (and req.columns) into a dataset.
// Returns types.ErrTooManyRows when the row count exceeds maxRows.
func datasetFromStruct(req *structpb.Struct, maxRows int) (*types.Dataset, error) {
	rows := req.GetFields()["rows"].GetListValue()
	if rows == nil {
		return nil, fmt.Errorf("rows: expected a list")
	}
	if maxRows > 0 && len(rows.GetValues()) > maxRows {
		return nil, fmt.Errorf("%w: %d > %d", types.ErrTooManyRows, len(rows.GetValues()), maxRows)
	}

	var columns []string
	for _, c := range req.GetFields()["columns"].GetListValue().GetValues() {
		if name := c.GetStringValue(); name != "" {
			columns = append(columns, name)
		}
	}

	ds := types.NewDataset(columns...)
	for i, v := range rows.GetValues() {
		row := v.GetStructValue()
		if row == nil {
			return nil, fmt.Errorf("rows[%d]: expected an object", i)
		}
		rec := make(map[string]types.Value, len(row.GetFields()))
		for k, cell := range row.GetFields() {
			rec[k] = valueFromProto(cell)
		}
		ds.AppendRows([]map[string]types.Value{rec})
	}
	return ds, nil
}

// valueFromProto converts a scalar cell. Nested values are rendered as text.
func valueFromProto(v *structpb.Value) types.Value {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return types.Number(k.NumberValue)
	case *structpb.Value_StringValue:
		return types.Text(k.StringValue)
	case *structpb.Value_BoolValue:
		return types.Bool(k.BoolValue)
	case nil, *structpb.Value_NullValue:
		return types.Null()
	default:
		return types.ValueOf(v.AsInterface())
	}
}

// datasetToFields encodes ds as rows and columns response fields.
func datasetToFields(ds *types.Dataset) (map[string]*structpb.Value, error) {
	records := ds.Records()
	rows := make([]any, len(records))
	for i, r := range records {
		rows[i] = r
	}
	rowList, err := structpb.NewList(rows)
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	cols := make([]any, 0, len(ds.Columns()))
	for _, c := range ds.Columns() {
		cols = append(cols, c)
	}
	colList, err := structpb.NewList(cols)
	if err != nil {
		return nil, fmt.Errorf("encode columns: %w", err)
	}
	return map[string]*structpb.Value{
		"rows":    structpb.NewListValue(rowList),
		"columns": structpb.NewListValue(colList),
	}, nil
}

// ruleSetFromValue decodes a rule set given either as a list of rules or as
// a {version, rules} object.
func ruleSetFromValue(v *structpb.Value) (types.RuleSet, error) {
	data, err := json.Marshal(v.AsInterface())
	if err != nil {
		return types.RuleSet{}, fmt.Errorf("encode rules: %w", err)
	}
	return rules.ParseRuleSet(data)
}

// toStructValue converts any JSON-encodable value to a structpb value.
func toStructValue(v any) (*structpb.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var plain any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, err
	}
	return structpb.NewValue(plain)
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func intField(req *structpb.Struct, name string) int {
	return int(req.GetFields()[name].GetNumberValue())
}
