package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vitwit/walletsession/types"
)

// MaxAmountDecimals is the finest precision a native-currency amount may carry
const MaxAmountDecimals = 18

var (
	addressPattern = regexp.MustCompile(`^0[xX][0-9a-fA-F]{40}$`)
	// Plain positional notation only; exponents are rejected.
	amountPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
)

// Amount validation reasons
const (
	ReasonAmountRequired    = "amount is required"
	ReasonAmountFormat      = "invalid amount format"
	ReasonAmountNotPositive = "amount must be greater than 0"
	ReasonAmountNegative    = "amount cannot be negative"
	ReasonAmountPrecision   = "too many decimal places (max 18)"

	ReasonRecipientRequired = "recipient is required"
	ReasonRecipientFormat   = "invalid address format"
)

// AmountValidation is the outcome of ValidateAmount
type AmountValidation struct {
	Valid  bool
	Reason string
}

// ValidateAddress reports whether s is a 0x-prefixed 20-byte hex account
// identifier. Letter case is not checked.
func ValidateAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// ValidateAmount checks that s is a positive decimal with at most 18
// fractional digits.
func ValidateAmount(s string) AmountValidation {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return AmountValidation{Reason: ReasonAmountRequired}
	}

	dec, err := parsePlainDecimal(trimmed)
	if err != nil {
		return AmountValidation{Reason: ReasonAmountFormat}
	}

	if dec.IsNegative() {
		return AmountValidation{Reason: ReasonAmountNegative}
	}

	if !dec.IsPositive() {
		return AmountValidation{Reason: ReasonAmountNotPositive}
	}

	if fractionalDigits(dec) > MaxAmountDecimals {
		return AmountValidation{Reason: ReasonAmountPrecision}
	}

	return AmountValidation{Valid: true}
}

// ValidateForm validates both transfer form fields independently.
func ValidateForm(recipient, amount string) types.FormErrors {
	var errs types.FormErrors

	switch {
	case strings.TrimSpace(recipient) == "":
		errs.Recipient = &types.ValidationError{Field: "recipient", Reason: ReasonRecipientRequired}
	case !ValidateAddress(strings.TrimSpace(recipient)):
		errs.Recipient = &types.ValidationError{Field: "recipient", Reason: ReasonRecipientFormat}
	}

	if res := ValidateAmount(amount); !res.Valid {
		errs.Amount = &types.ValidationError{Field: "amount", Reason: res.Reason}
	}

	return errs
}

func parsePlainDecimal(s string) (decimal.Decimal, error) {
	if !amountPattern.MatchString(s) {
		return decimal.Decimal{}, fmt.Errorf("%q is not a plain decimal number", s)
	}
	return decimal.NewFromString(s)
}

func fractionalDigits(d decimal.Decimal) int {
	if exp := d.Exponent(); exp < 0 {
		return -int(exp)
	}
	return 0
}
