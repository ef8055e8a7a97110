package common

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

const (
	SOLDecimals = 9 // SOL has 9 decimals (lamports)

	// MaxTokenDecimals is the highest decimals value accepted for a new mint
	MaxTokenDecimals = 9
)

// ErrAmountOverflow is returned when a token amount does not fit into u64 base units
var ErrAmountOverflow = errors.New("amount overflows u64 base units")

// LamportsToSOL converts lamports to SOL string without float precision loss
func LamportsToSOL(lamports uint64) string {
	return formatWithDecimals(lamports, SOLDecimals)
}

// SOLToLamports converts SOL string to lamports without float precision loss
func SOLToLamports(sol string) (uint64, error) {
	return parseWithDecimals(sol, SOLDecimals)
}

// FormatTokenAmount converts base units to a decimal string for a mint with the given decimals
func FormatTokenAmount(baseUnits uint64, decimals uint8) string {
	if decimals == 0 {
		return strconv.FormatUint(baseUnits, 10)
	}
	return formatWithDecimals(baseUnits, int(decimals))
}

// ToBaseUnits returns supply × 10^decimals using checked integer arithmetic.
// Example: ToBaseUnits(100, 9) = 100000000000
func ToBaseUnits(supply uint64, decimals uint8) (uint64, error) {
	if decimals > MaxTokenDecimals {
		return 0, fmt.Errorf("decimals must be between 0 and %d", MaxTokenDecimals)
	}
	result := supply
	for i := uint8(0); i < decimals; i++ {
		hi, lo := bits.Mul64(result, 10)
		if hi != 0 {
			return 0, ErrAmountOverflow
		}
		result = lo
	}
	return result, nil
}

// formatWithDecimals converts integer to decimal string by inserting decimal point
// Example: formatWithDecimals(24981836, 9) = "0.024981836"
func formatWithDecimals(value uint64, decimals int) string {
	s := strconv.FormatUint(value, 10)

	// Pad with leading zeros if needed
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}

	// Insert decimal point
	pos := len(s) - decimals
	return s[:pos] + "." + s[pos:]
}

// parseWithDecimals converts decimal string to integer by removing decimal point
// Example: parseWithDecimals("0.024981836", 9) = 24981836
func parseWithDecimals(s string, decimals int) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}

	parts := strings.Split(s, ".")

	if len(parts) == 1 {
		n, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return 0, err
		}
		return ToBaseUnits(n, uint8(decimals))
	}

	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid decimal format")
	}

	whole := parts[0]
	frac := parts[1]

	// Pad or truncate fractional part to exact decimals
	if len(frac) < decimals {
		frac += strings.Repeat("0", decimals-len(frac))
	} else if len(frac) > decimals {
		frac = frac[:decimals]
	}

	return strconv.ParseUint(whole+frac, 10, 64)
}
