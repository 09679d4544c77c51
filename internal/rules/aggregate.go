// internal/rules/aggregate.go
package rules

import (
	"fmt"

	"github.com/solatis/packkeeper/internal/types"
)

/*
 * Order aggregation.
 *
 * GroupOrders partitions the dataset by order identifier in first-appearance
 * order. Rows whose order id is Null form one group keyed by Null; a missing
 * order column puts every row into that group.
 *
 * An Aggregator serves the order-level fields of one group. Scalar fields are
 * computed on first use and memoized until Invalidate, which the evaluator
 * calls after every action pass over the order so later steps and rules see
 * the rows as written. Membership fields (has_sku, has_product) depend on the
 * condition's operator and literal and are evaluated per condition:
 *   - positive operators: true if any row of the order matches
 *   - negative operators: true if no row matches the positive counterpart, so
 *     "has_sku not_contains X" means no row contains X, Null rows included
 *
 * Booleans are returned as Text "true"/"false" and compared like any text.
 */

// OrderGroup is the set of dataset rows sharing one order identifier.
type OrderGroup struct {
	ID   types.Value
	Rows []int
}

// GroupOrders groups the first n rows of ds by orderCol.
func GroupOrders(ds *types.Dataset, orderCol string) []OrderGroup {
	n := ds.Len()
	ids, ok := ds.Column(orderCol, nil)
	if !ok {
		ids = make([]types.Value, n)
	}
	var groups []OrderGroup
	pos := make(map[string]int)
	for i, id := range ids {
		key := id.Kind().String() + ":" + id.String()
		gi, seen := pos[key]
		if !seen {
			gi = len(groups)
			pos[key] = gi
			groups = append(groups, OrderGroup{ID: id})
		}
		groups[gi].Rows = append(groups[gi].Rows, i)
	}
	return groups
}

// Aggregator computes order-level fields for one OrderGroup.
type Aggregator struct {
	ds      *types.Dataset
	cols    Columns
	matcher *Matcher
	group   OrderGroup
	memo    map[OrderField]types.Value
}

// NewAggregator returns an aggregator over group.
func NewAggregator(ds *types.Dataset, cols Columns, m *Matcher, group OrderGroup) *Aggregator {
	return &Aggregator{
		ds:      ds,
		cols:    cols.withDefaults(),
		matcher: m,
		group:   group,
		memo:    make(map[OrderField]types.Value),
	}
}

// Group returns the order group served by a.
func (a *Aggregator) Group() OrderGroup { return a.group }

// Match evaluates a condition on an order field and reports whether the order
// as a whole satisfies it. A non-nil error with matched == false and
// errors.Is(err, types.ErrFieldNotFound) means the field cannot be evaluated
// for this dataset; other errors are literal errors from the operator.
func (a *Aggregator) Match(f OrderField, op Operator, literal types.Value) (bool, error) {
	if f.IsMembership() {
		return a.membership(f, op, literal)
	}
	v, err := a.Field(f)
	if err != nil {
		return false, err
	}
	sel, err := a.matcher.Match(op, scalarColumn(v), literal)
	if err != nil {
		return false, err
	}
	return sel[0], nil
}

// Invalidate drops memoized fields after the group's rows were written.
func (a *Aggregator) Invalidate() {
	clear(a.memo)
}

// Field returns the memoized scalar value of f.
func (a *Aggregator) Field(f OrderField) (types.Value, error) {
	if v, ok := a.memo[f]; ok {
		return v, nil
	}
	var v types.Value
	switch f {
	case OrderFieldItemCount:
		v = types.Number(float64(len(a.group.Rows)))
	case OrderFieldTotalQuantity:
		sum := 0.0
		for _, q := range a.values(a.cols.Quantity) {
			if x, ok := q.Float(); ok {
				sum += x
			}
		}
		v = types.Number(sum)
	case OrderFieldMaxQuantity:
		top, seen := 0.0, false
		for _, q := range a.values(a.cols.Quantity) {
			if x, ok := q.Float(); ok && (!seen || x > top) {
				top, seen = x, true
			}
		}
		v = types.Number(top)
	case OrderFieldUniqueSKUCount:
		distinct := make(map[string]struct{})
		for _, s := range a.values(a.cols.SKU) {
			if !s.IsEmpty() {
				distinct[s.String()] = struct{}{}
			}
		}
		v = types.Number(float64(len(distinct)))
	case OrderFieldVolumetricWeight:
		v = types.Number(0)
		for _, w := range a.values(a.cols.VolumetricWeight) {
			if !w.IsNull() {
				v = w
				break
			}
		}
	case OrderFieldAllNoPackaging:
		flags := a.values(a.cols.NoPackaging)
		all := len(flags) > 0
		for _, fl := range flags {
			if !truthy(fl) {
				all = false
				break
			}
		}
		v = types.Bool(all)
	case OrderFieldMinBox:
		v = types.Text("")
		for _, b := range a.values(a.cols.MinBox) {
			if !b.IsEmpty() {
				v = types.Text(b.String())
				break
			}
		}
	default:
		return types.Null(), fmt.Errorf("%w: %v is not a scalar order field", types.ErrFieldNotFound, f)
	}
	a.memo[f] = v
	return v, nil
}

// values returns the column values of the group's rows, or nil if the column
// does not exist.
func (a *Aggregator) values(column string) []types.Value {
	vals, ok := a.ds.Column(column, a.group.Rows)
	if !ok {
		return nil
	}
	return vals
}

func (a *Aggregator) membership(f OrderField, op Operator, literal types.Value) (bool, error) {
	column := a.cols.SKU
	if f == OrderFieldHasProduct {
		column = a.cols.ProductName
	}
	vals, ok := a.ds.Column(column, a.group.Rows)
	if !ok {
		return false, fmt.Errorf("%w: %s needs column %q", types.ErrFieldNotFound, f, column)
	}
	col := Column{Values: vals, Numeric: a.ds.IsNumeric(column)}
	if op.IsNegative() {
		sel, err := a.matcher.Match(op.Positive(), col, literal)
		if err != nil {
			return false, err
		}
		return !sel.Any(), nil
	}
	sel, err := a.matcher.Match(op, col, literal)
	if err != nil {
		return false, err
	}
	return sel.Any(), nil
}
