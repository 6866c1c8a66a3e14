// Package pricing はカートの金額集計（小計・送料・税）を行う。
package pricing

import "github.com/shopspring/decimal"

var (
	// この金額以上で送料無料
	FreeShippingThreshold = decimal.NewFromInt(500)
	FlatShippingFee       = decimal.NewFromInt(50)
	TaxRate               = decimal.RequireFromString("0.18")
)

// Line は集計対象の1行（現在価格×数量）
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int64
}

type Summary struct {
	ItemCount int64           `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
}

// ComputeSummary は割引前の合計を出す
func ComputeSummary(lines []Line) Summary {
	subtotal := decimal.Zero
	var count int64
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
		count += l.Quantity
	}
	subtotal = subtotal.Round(2)

	shipping := ShippingFor(subtotal)
	tax := TaxFor(subtotal)

	return Summary{
		ItemCount: count,
		Subtotal:  subtotal,
		Shipping:  shipping,
		Tax:       tax,
		Total:     subtotal.Add(shipping).Add(tax).Round(2),
	}
}

func ShippingFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		return decimal.Zero
	}
	return FlatShippingFee
}

func TaxFor(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(TaxRate).Round(2)
}

// OrderTotal = subtotal - discount + shipping + tax
func OrderTotal(s Summary, discount decimal.Decimal) decimal.Decimal {
	return s.Subtotal.Sub(discount).Add(s.Shipping).Add(s.Tax).Round(2)
}
