package csvutil

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyInput = errors.New("csv content is empty")
	ErrNoValue    = errors.New("empty value")
)

var numberCleaner = strings.NewReplacer("$", "", ",", "", "@", "", " ", "", "\t", "")

// ParseDecimal parses broker-formatted amounts such as "$1,234.50",
// "@150.25" or accounting negatives like "(12.00)".
func ParseDecimal(s string) (decimal.Decimal, error) {
	v := numberCleaner.Replace(strings.TrimSpace(s))
	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = v[1 : len(v)-1]
	}
	if v == "" {
		return decimal.Zero, ErrNoValue
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// ParseDecimalOrZero is ParseDecimal for optional columns such as fees.
func ParseDecimalOrZero(s string) decimal.Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseTimestamp tries each layout in order. Values without a zone are
// read as UTC.
func ParseTimestamp(value string, layouts []string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, ErrNoValue
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ErrBrokerNotImplemented is returned by adapters that are registered by
// name but cannot parse yet.
var ErrBrokerNotImplemented = errors.New("broker importer not implemented")
