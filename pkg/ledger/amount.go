package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// The ledger exchanges amounts as fixed-precision decimal strings (for
// example "25.0000"). Internally everything is integer minor units, so
// amounts are converted immediately on read and immediately before write.

// ParseAmount converts a decimal amount string to minor units.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	// Ledger amounts carry up to four fractional digits; only the first two
	// are significant minor units, the rest must be zero.
	var cents int64
	if frac != "" {
		if len(frac) > 2 && strings.Trim(frac[2:], "0") != "" {
			return 0, fmt.Errorf("amount %q has sub-cent precision", s)
		}
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", s, err)
		}
	}

	total := units*100 + cents
	if negative {
		total = -total
	}
	return total, nil
}

// FormatAmount converts minor units to the two-decimal string the ledger
// accepts on writes.
func FormatAmount(minorUnits int64) string {
	sign := ""
	if minorUnits < 0 {
		sign = "-"
		minorUnits = -minorUnits
	}
	return fmt.Sprintf("%s%d.%02d", sign, minorUnits/100, minorUnits%100)
}
