// Package format renders money, numbers and dates the way the console
// displays them. Every formatter accepts its own output and returns it
// unchanged, so cells can be formatted more than once safely.
package format

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/johnwards/dealerhub/internal/domain"
)

// NotAvailable is shown for missing or unparseable values.
const NotAvailable = "N/A"

// CurrencySymbol trails every formatted amount.
const CurrencySymbol = "₫"

// Location is the display time zone (Indochina Time, UTC+7).
var Location = time.FixedZone("ICT", 7*60*60)

const (
	dateLayout     = "02/01/2006"
	dateTimeLayout = "02/01/2006 15:04"
)

var printer = message.NewPrinter(language.Vietnamese)

// Currency renders an amount in whole dong with Vietnamese digit grouping,
// e.g. 1500000 → "1.500.000 ₫". nil and blank values yield "N/A"; strings
// that are not amounts are returned unchanged.
func Currency(v any) string {
	d, ok := toDecimal(v)
	if !ok {
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
			return s
		}
		return NotAvailable
	}
	return printer.Sprintf("%d", d.Round(0).IntPart()) + " " + CurrencySymbol
}

// Number renders a plain quantity with digit grouping, keeping up to two
// decimals: 87.7 → "87,7", 1200 → "1.200".
func Number(v any) string {
	d, ok := toDecimal(v)
	if !ok {
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
			return s
		}
		return NotAvailable
	}
	d = d.Round(2)
	if d.IsInteger() {
		return printer.Sprintf("%d", d.IntPart())
	}
	prec := 0
	if s := d.String(); strings.Contains(s, ".") {
		prec = len(s) - strings.IndexByte(s, '.') - 1
	}
	f, _ := d.Float64()
	return printer.Sprintf(fmt.Sprintf("%%.%df", prec), f)
}

// Percent renders a rate already expressed in percent: 3.5 → "3,5%".
func Percent(v any) string {
	if s, ok := v.(string); ok && strings.HasSuffix(strings.TrimSpace(s), "%") {
		return strings.TrimSpace(s)
	}
	n := Number(v)
	if n == NotAvailable {
		return n
	}
	return n + "%"
}

// Date renders a timestamp as dd/mm/yyyy in the display time zone. Values
// already in that layout are returned unchanged.
func Date(v any) string {
	t, ok := toTime(v)
	if !ok {
		return NotAvailable
	}
	return t.Format(dateLayout)
}

// DateTime renders a timestamp as dd/mm/yyyy hh:mm in the display time zone.
func DateTime(v any) string {
	t, ok := toTime(v)
	if !ok {
		return NotAvailable
	}
	return t.Format(dateTimeLayout)
}

// ParseDisplayDate parses the output of Date, or any timestamp a record
// carries, into the display time zone.
func ParseDisplayDate(s string) (time.Time, bool) {
	return toTime(s)
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.In(Location), true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return toTime(*t)
	}

	s := strings.TrimSpace(domain.Stringify(v))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{dateTimeLayout, dateLayout} {
		if t, err := time.ParseInLocation(layout, s, Location); err == nil {
			return t, true
		}
	}
	// Plain calendar dates name a day, not an instant.
	if t, err := time.ParseInLocation("2006-01-02", s, Location); err == nil {
		return t, true
	}
	if t, ok := domain.ParseTime(s); ok {
		return t.In(Location), true
	}
	return time.Time{}, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return t, true
	case float64:
		return decimal.NewFromFloat(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		return parseAmount(t)
	}
	return decimal.Zero, false
}

// displayAmount matches the grouped forms this package emits. A dot is read
// as a thousands separator only when every group after it has three digits,
// so "87.125" as text means 87125. Record values arrive as numbers.
var displayAmount = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})*(,\d+)?\s*(₫|%)?$`)

// parseAmount accepts the grouped forms this package emits ("1.500.000 ₫",
// "87,7", "3,5%") and plain numbers ("1500000.5").
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if displayAmount.MatchString(s) {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "%"), CurrencySymbol))
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	return d, err == nil
}
