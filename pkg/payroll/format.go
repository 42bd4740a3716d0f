package payroll

import (
	"math/big"
	"strings"
	"time"
)

// FormatDateTime renders an RFC 3339 timestamp in local time. Empty input
// renders as "-" and unparseable input is returned unchanged.
func FormatDateTime(value string) string {
	if value == "" {
		return "-"
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// FormatOptional is FormatDateTime for nullable fields.
func FormatOptional(value *string) string {
	if value == nil {
		return "-"
	}
	return FormatDateTime(*value)
}

func FormatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// FormatUnits renders an integer amount of base units with the given number
// of decimals, trimming trailing zeros: FormatUnits(1500000, 6) == "1.5".
func FormatUnits(units int64, decimals int) string {
	if decimals <= 0 {
		return big.NewInt(units).String()
	}
	neg := units < 0
	abs := new(big.Int).Abs(big.NewInt(units))
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)

	whole, frac := new(big.Int).QuoRem(abs, scale, new(big.Int))
	out := whole.String()
	if frac.Sign() != 0 {
		fs := frac.String()
		fs = strings.Repeat("0", decimals-len(fs)) + fs
		out += "." + strings.TrimRight(fs, "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}
