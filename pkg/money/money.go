// Package money 金额统一使用两位小数的定点数，禁止 float64 参与计算
package money

import (
	"github.com/shopspring/decimal"
)

// Places 金额小数位数
const Places = 2

var cent = decimal.New(1, -Places)

// Round 四舍五入到分（远离零方向）
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// HasCents 是否是合法的两位小数金额
func HasCents(d decimal.Decimal) bool {
	return d.Equal(Round(d))
}

// Total 数量 × 单价，结果保留两位小数
func Total(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return Round(quantity.Mul(unitPrice))
}

// SplitFee 按费率拆分平台手续费和卖家所得
// 手续费先四舍五入，卖家所得用减法得到，两者之和恒等于 total。
// total 为正时卖家至少得到 0.01
func SplitFee(total, rate decimal.Decimal) (fee, net decimal.Decimal) {
	fee = Round(total.Mul(rate))
	net = total.Sub(fee)
	if total.IsPositive() && net.LessThan(cent) {
		net = cent
		fee = total.Sub(cent)
	}
	return fee, net
}

// String 固定两位小数输出，如 12500.00
func String(d decimal.Decimal) string {
	return d.StringFixed(Places)
}
