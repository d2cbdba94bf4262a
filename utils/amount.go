package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// BalanceDisplayDecimals is how many fractional digits a formatted balance keeps
const BalanceDisplayDecimals = 4

// ParseAmountWithDecimals parses a decimal amount string and converts it to the
// chain's smallest integer unit. It refuses amounts finer than the unit.
func ParseAmountWithDecimals(amount string, decimals int) (*big.Int, error) {
	dec, err := parsePlainDecimal(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if fractionalDigits(dec) > decimals {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}

	// Multiply by 10^decimals to get the raw integer amount
	return dec.Shift(int32(decimals)).BigInt(), nil
}

// FormatAmountFromBigInt formats a big.Int amount to decimal string with specified decimals
func FormatAmountFromBigInt(amount *big.Int, decimals int) string {
	dec := decimal.NewFromBigInt(amount, -int32(decimals))
	return dec.String()
}

// FormatBalance renders a raw integer balance with at most four fractional
// digits. Extra digits are cut, never rounded; whole values are unchanged.
func FormatBalance(raw *big.Int, decimals int) string {
	formatted := FormatAmountFromBigInt(raw, decimals)

	whole, frac, found := strings.Cut(formatted, ".")
	if !found {
		return formatted
	}

	if len(frac) > BalanceDisplayDecimals {
		frac = frac[:BalanceDisplayDecimals]
	}
	return whole + "." + frac
}
