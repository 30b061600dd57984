package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSplitFee_FivePercent(t *testing.T) {
	fee, net := SplitFee(decimal.RequireFromString("12500.00"), decimal.RequireFromString("0.05"))

	assert.Equal(t, "625.00", String(fee))
	assert.Equal(t, "11875.00", String(net))
}

func TestSplitFee_RoundsFeeAndKeepsSum(t *testing.T) {
	total := decimal.RequireFromString("10.01")
	fee, net := SplitFee(total, decimal.RequireFromString("0.05"))

	assert.Equal(t, "0.50", String(fee))
	assert.Equal(t, "9.51", String(net))
	assert.True(t, fee.Add(net).Equal(total))
}

func TestTotal(t *testing.T) {
	assert.Equal(t, "12500.00", String(Total(decimal.NewFromInt(50), decimal.RequireFromString("250.00"))))
	assert.Equal(t, "0.35", String(Total(decimal.RequireFromString("0.333"), decimal.RequireFromString("1.05"))))
}

func TestSplitFee_SmallTotals(t *testing.T) {
	tests := []struct {
		total, rate, fee, net string
	}{
		{"0.05", "0.05", "0.00", "0.05"},
		{"0.25", "0.05", "0.01", "0.24"},
		{"0.01", "0.05", "0.00", "0.01"},
		{"0.01", "0.99", "0.00", "0.01"},
		{"0.02", "0.99", "0.01", "0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.total+"@"+tt.rate, func(t *testing.T) {
			total := decimal.RequireFromString(tt.total)
			fee, net := SplitFee(total, decimal.RequireFromString(tt.rate))
			assert.Equal(t, tt.fee, String(fee))
			assert.Equal(t, tt.net, String(net))
			assert.True(t, fee.Add(net).Equal(total))
		})
	}
}

func TestHasCents(t *testing.T) {
	assert.True(t, HasCents(decimal.RequireFromString("3.1")))
	assert.False(t, HasCents(decimal.RequireFromString("3.141")))
}
