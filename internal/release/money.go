package release

import "github.com/shopspring/decimal"

// ToMinorUnits converts a currency amount to the gateway's integer minor
// units (cents), rounding half away from zero.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// formatMoney renders whole amounts without decimals ("300") and anything
// else with two ("12.50").
func formatMoney(d decimal.Decimal) string {
	if d.IsInteger() {
		return d.String()
	}
	return d.StringFixed(2)
}
