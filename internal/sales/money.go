package sales

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is the canonical 0.00 amount.
var Zero = decimal.New(0, -2)

// MaxAmount is the largest magnitude a NUMERIC(12,2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

const maxAmountInput = 32

var (
	plainAmount   = regexp.MustCompile(`^-?\d*(\.\d+)?$`)
	groupedAmount = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)
)

// RoundMoney rounds to cents, the precision every amount is persisted with.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// InRange reports whether d fits the stored money range. The exponent is
// checked first so that comparing never rescales an enormous value.
func InRange(d decimal.Decimal) bool {
	if exp := d.Exponent(); exp > 12 || exp < -maxAmountInput {
		return false
	}
	return d.Abs().LessThanOrEqual(MaxAmount)
}

// ParseAmount converts user input to a decimal. Blank or unparseable input
// yields zero rather than an error so that partially filled forms still go
// through; negative values are returned as-is and rejected by validation.
// Commas are only accepted as thousands separators ("1,250.75"), so a
// decimal comma such as "1,5" is unparseable. Exponents and values outside
// MaxAmount are unparseable too.
func ParseAmount(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "-$") {
		raw = "-" + raw[2:]
	}
	raw = strings.TrimPrefix(raw, "$")
	if raw == "" || len(raw) > maxAmountInput {
		return Zero
	}
	switch {
	case groupedAmount.MatchString(raw):
		raw = strings.ReplaceAll(raw, ",", "")
	case !plainAmount.MatchString(raw):
		return Zero
	}

	d, err := decimal.NewFromString(raw)
	if err != nil || !InRange(d) {
		return Zero
	}
	return d
}

// FormatMoney renders an amount as "$1,234.56".
func FormatMoney(d decimal.Decimal) string {
	fixed := RoundMoney(d).StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}
