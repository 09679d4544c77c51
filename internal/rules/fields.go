// internal/rules/fields.go
package rules

import (
	"fmt"
	"strings"
)

/*
 * Field resolution.
 *
 * A condition field names either a dataset column or, for order-level rules
 * only, a synthetic order field computed by the Aggregator. Order fields take
 * precedence over a dataset column of the same name inside order rules; in
 * article rules the name is always a column.
 *
 * Resolution happens at evaluation time, not compile time, because earlier
 * steps may create columns (CALCULATE, COPY_FIELD) that later steps read.
 *
 * Order fields:
 *   - item_count, total_quantity, max_quantity, unique_sku_count: numeric
 *   - has_sku, has_product: membership over the SKU/name column
 *   - order_volumetric_weight, all_no_packaging, order_min_box: read from
 *     pre-populated enrichment columns, neutral default when absent
 */

// OrderField identifies a synthetic order-level field.
type OrderField int

const (
	OrderFieldNone OrderField = iota
	OrderFieldItemCount
	OrderFieldTotalQuantity
	OrderFieldMaxQuantity
	OrderFieldUniqueSKUCount
	OrderFieldHasSKU
	OrderFieldHasProduct
	OrderFieldVolumetricWeight
	OrderFieldAllNoPackaging
	OrderFieldMinBox
)

var orderFieldNames = map[OrderField]string{
	OrderFieldItemCount:        "item_count",
	OrderFieldTotalQuantity:    "total_quantity",
	OrderFieldMaxQuantity:      "max_quantity",
	OrderFieldUniqueSKUCount:   "unique_sku_count",
	OrderFieldHasSKU:           "has_sku",
	OrderFieldHasProduct:       "has_product",
	OrderFieldVolumetricWeight: "order_volumetric_weight",
	OrderFieldAllNoPackaging:   "all_no_packaging",
	OrderFieldMinBox:           "order_min_box",
}

// ParseOrderField resolves an order field name (case-insensitive).
func ParseOrderField(name string) (OrderField, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range orderFieldNames {
		if n == name {
			return f, true
		}
	}
	return OrderFieldNone, false
}

// OrderFields returns all order field names in declaration order.
func OrderFields() []string {
	out := make([]string, 0, len(orderFieldNames))
	for f := OrderFieldItemCount; f <= OrderFieldMinBox; f++ {
		out = append(out, orderFieldNames[f])
	}
	return out
}

func (f OrderField) String() string {
	if n, ok := orderFieldNames[f]; ok {
		return n
	}
	return fmt.Sprintf("order_field(%d)", int(f))
}

// IsMembership reports whether f tests rows individually (has_sku,
// has_product) rather than yielding a scalar.
func (f OrderField) IsMembership() bool {
	return f == OrderFieldHasSKU || f == OrderFieldHasProduct
}

// Columns names the dataset columns the engine reads and writes by role.
type Columns struct {
	Order            string `json:"order"`
	SKU              string `json:"sku"`
	ProductName      string `json:"product_name"`
	Quantity         string `json:"quantity"`
	Stock            string `json:"stock"`
	FinalStock       string `json:"final_stock"`
	Note             string `json:"note"`
	Status           string `json:"status"`
	InternalTags     string `json:"internal_tags"`
	RuleGenerated    string `json:"rule_generated"`
	VolumetricWeight string `json:"volumetric_weight"`
	NoPackaging      string `json:"no_packaging"`
	MinBox           string `json:"min_box"`
}

// DefaultColumns returns the standard export column names.
func DefaultColumns() Columns {
	return Columns{
		Order:            "Order_Number",
		SKU:              "SKU",
		ProductName:      "Product_Name",
		Quantity:         "Quantity",
		Stock:            "Stock",
		FinalStock:       "Final_Stock",
		Note:             "Status_Note",
		Status:           "Order_Fulfillment_Status",
		InternalTags:     "Internal_Tags",
		RuleGenerated:    "Is_Rule_Generated",
		VolumetricWeight: "Order_Volumetric_Weight",
		NoPackaging:      "No_Packaging",
		MinBox:           "Order_Min_Box",
	}
}

// withDefaults fills empty names from DefaultColumns.
func (c Columns) withDefaults() Columns {
	d := DefaultColumns()
	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&c.Order, d.Order)
	fill(&c.SKU, d.SKU)
	fill(&c.ProductName, d.ProductName)
	fill(&c.Quantity, d.Quantity)
	fill(&c.Stock, d.Stock)
	fill(&c.FinalStock, d.FinalStock)
	fill(&c.Note, d.Note)
	fill(&c.Status, d.Status)
	fill(&c.InternalTags, d.InternalTags)
	fill(&c.RuleGenerated, d.RuleGenerated)
	fill(&c.VolumetricWeight, d.VolumetricWeight)
	fill(&c.NoPackaging, d.NoPackaging)
	fill(&c.MinBox, d.MinBox)
	return c
}
