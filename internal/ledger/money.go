package ledger

import "github.com/shopspring/decimal"

// MaxScale is the number of decimal places a balance or amount may carry.
const MaxScale = 2

// MaxAmount bounds every balance and amount from above, exclusive.
var MaxAmount = decimal.New(1, 12)

// ValidMoney reports whether d has at most MaxScale decimal places and lies strictly below
// MaxAmount in magnitude. The exponent is checked first so inputs like 1e200000 or
// 1e-999999999 are refused without being expanded.
func ValidMoney(d decimal.Decimal) bool {
	if exp := d.Exponent(); exp < -18 || exp > 12 {
		return false
	}
	return d.Equal(d.Truncate(MaxScale)) && d.Abs().LessThan(MaxAmount)
}
