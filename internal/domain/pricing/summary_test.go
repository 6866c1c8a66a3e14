package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeSummary_FreeShippingAtThreshold(t *testing.T) {
	s := ComputeSummary([]Line{
		{UnitPrice: d("200.00"), Quantity: 2},
		{UnitPrice: d("100.00"), Quantity: 2},
	})

	assert.Equal(t, int64(4), s.ItemCount)
	assert.True(t, d("600").Equal(s.Subtotal))
	assert.True(t, s.Shipping.IsZero())
	assert.True(t, d("108.00").Equal(s.Tax), s.Tax.String())
	assert.True(t, d("708.00").Equal(s.Total), s.Total.String())
}

func TestComputeSummary_FlatShippingBelowThreshold(t *testing.T) {
	s := ComputeSummary([]Line{{UnitPrice: d("300.00"), Quantity: 1}})

	assert.True(t, d("50").Equal(s.Shipping))
	assert.True(t, d("54.00").Equal(s.Tax))
	assert.True(t, d("404.00").Equal(s.Total))
}

func TestComputeSummary_ExactlyFiveHundredIsFree(t *testing.T) {
	s := ComputeSummary([]Line{{UnitPrice: d("500.00"), Quantity: 1}})
	assert.True(t, s.Shipping.IsZero())
}

func TestComputeSummary_TaxRoundsToCents(t *testing.T) {
	// 19.99 * 0.18 = 3.5982
	s := ComputeSummary([]Line{{UnitPrice: d("19.99"), Quantity: 1}})
	assert.Equal(t, "3.6", s.Tax.String())
	assert.True(t, d("73.59").Equal(s.Total), s.Total.String())
}

func TestComputeSummary_Empty(t *testing.T) {
	s := ComputeSummary(nil)
	assert.Equal(t, int64(0), s.ItemCount)
	assert.True(t, s.Subtotal.IsZero())
	// 空カートでも送料計算自体はする（チェックアウトはEmptyCartで弾く）
	assert.True(t, d("50").Equal(s.Total))
}

func TestOrderTotal(t *testing.T) {
	s := ComputeSummary([]Line{{UnitPrice: d("1500"), Quantity: 1}})
	total := OrderTotal(s, d("200"))
	// 1500 - 200 + 0 + 270
	assert.True(t, d("1570").Equal(total), total.String())
}
