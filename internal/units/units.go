package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Format renders base units as a decimal string with trailing zeros
// trimmed but at least one fractional digit ("1.0", "0.5", "-2.25").
func Format(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0.0"
	}
	if decimals == 0 {
		return value.String() + ".0"
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := pow10(decimals)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))

	text = strings.TrimRight(text, "0")
	if strings.HasSuffix(text, ".") {
		text += "0"
	}
	if sign < 0 {
		return "-" + text
	}
	return text
}

// Parse converts a decimal string to base units. More fractional digits
// than decimals is an error rather than a silent truncation.
func Parse(text string, decimals uint8) (*big.Int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.ContainsAny(text, "eE") {
		return nil, fmt.Errorf("invalid amount %q", text)
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", text)
	}
	scaled := amount.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q exceeds %d decimals", text, decimals)
	}
	return scaled.BigInt(), nil
}

// Float approximates base units as a float64 for display-only fields.
func Float(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	return f
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
