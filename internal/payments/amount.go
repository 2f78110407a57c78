package payments

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"regexp"
	"strings"
)

const (
	minorUnitsPerMajor = 100

	// MaxChargeAmount is the largest single charge accepted, in minor units.
	MaxChargeAmount = 99_999_999

	basisPointsPerUnit = 10_000
)

var (
	errAmountFormat   = errors.New("amount must be a positive decimal number")
	errAmountTooLarge = errors.New("amount exceeds the maximum charge")

	decimalPattern = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)
)

// AmountText extracts the decimal text of an amount sent either as a JSON
// number or as a JSON string.
func AmountText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errAmountFormat
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", errAmountFormat
		}
		return s, nil
	}
	return string(raw), nil
}

// ToMinorUnits converts a decimal amount in major units to minor units,
// rounding half up. The conversion is exact; no floating point is involved.
func ToMinorUnits(amount string) (int64, error) {
	amount = strings.TrimSpace(amount)
	if !decimalPattern.MatchString(amount) {
		return 0, errAmountFormat
	}

	r, ok := new(big.Rat).SetString(amount)
	if !ok {
		return 0, errAmountFormat
	}
	r.Mul(r, big.NewRat(minorUnitsPerMajor, 1))

	// floor((2n + d) / 2d) rounds a non-negative n/d half up.
	num := new(big.Int).Mul(r.Num(), big.NewInt(2))
	num.Add(num, r.Denom())
	den := new(big.Int).Mul(r.Denom(), big.NewInt(2))
	minor := num.Quo(num, den)

	if !minor.IsInt64() || minor.Int64() > MaxChargeAmount {
		return 0, errAmountTooLarge
	}
	return minor.Int64(), nil
}

// PlatformFee is floor(amount * feeBasisPoints / 10000).
func PlatformFee(amount, feeBasisPoints int64) int64 {
	return amount * feeBasisPoints / basisPointsPerUnit
}
