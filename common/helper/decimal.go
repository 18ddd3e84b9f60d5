package helper

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces 金额统一保留两位小数
const MoneyPlaces = 2

// TrimDecimal decimal 四舍五入到 2 位小数并格式化
func TrimDecimal(val decimal.Decimal) string {
	return val.StringFixed(MoneyPlaces)
}

// RoundMoney 金额四舍五入到 2 位小数
func RoundMoney(val decimal.Decimal) decimal.Decimal {
	return val.Round(MoneyPlaces)
}
