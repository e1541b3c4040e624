package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/takeaway/internal/domain/fault"
)

var hundred = decimal.NewFromInt(100)

// ComputeTotal sums discounted line totals and rounds the result to cents.
func ComputeTotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum.Round(2)
}

// FormatTotal renders an amount with exactly two decimals.
func FormatTotal(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ItemsSummary renders items as the flat string the storefront historically
// passed to the payment page, e.g. "p1 (Durum): 2 x 6.90 €, p2 (Agua): 1 x 1.20 €".
func ItemsSummary(items []Item) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%s (%s): %d x %s €", it.ID, it.Name, it.Quantity, it.UnitPrice().StringFixed(2))
	}
	return strings.Join(parts, ", ")
}

func validateItems(items []Item) error {
	if len(items) == 0 {
		return fault.MissingField("items")
	}
	for i, it := range items {
		switch {
		case it.ID == "":
			return fault.Validation("items[%d]: missing required field: id", i)
		case it.Name == "":
			return fault.Validation("items[%d]: missing required field: name", i)
		case it.Quantity <= 0:
			return fault.Validation("items[%d]: quantity must be greater than 0", i)
		case it.Price.IsNegative():
			return fault.Validation("items[%d]: price must not be negative", i)
		case it.Discount < 0 || it.Discount > 100:
			return fault.Validation("items[%d]: discount must be between 0 and 100", i)
		}
	}
	return nil
}
