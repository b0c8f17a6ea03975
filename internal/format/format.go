// Package format provides the locale-aware display helpers used by the
// page templates. All functions are pure and never fail; malformed input
// yields degraded output rather than an error.
package format

import (
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// IndiaPrefix is the country calling code handled by PhoneNumber.
	IndiaPrefix = "+91"

	rupeeSymbol = "₹"

	// dateLayout mirrors the en-IN "medium" date and "short" time styles.
	dateLayout = "2 Jan 2006, 3:04 pm"

	phoneBlockLen = 5
	maxInitials   = 2
)

var (
	// Locale is the display locale for numbers.
	Locale = language.MustParse("en-IN")

	// IST is Indian Standard Time. India has no daylight saving, so a
	// fixed zone avoids depending on the host tz database.
	IST = time.FixedZone("IST", 5*60*60+30*60)

	printer = message.NewPrinter(Locale)
)

// Date formats t as an en-IN medium date with a short time in IST,
// e.g. "18 Oct 2026, 11:19 pm". The zero time renders as "".
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(IST).Format(dateLayout)
}

// Currency formats amount as Indian rupees with no fractional digits,
// e.g. 1500 -> "₹1,500". Amounts are rounded half away from zero.
func Currency(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return rupeeSymbol + "NaN"
	}

	rounded := math.Round(amount)
	sign := ""
	if rounded < 0 {
		sign = "-"
		rounded = -rounded
	}

	return sign + rupeeSymbol + printer.Sprintf("%d", int64(rounded))
}

// Initials returns up to two uppercase initials for name.
// The name is split on single spaces, so runs of spaces contribute nothing.
func Initials(name string) string {
	var b strings.Builder
	count := 0
	for _, part := range strings.Split(name, " ") {
		if part == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
		count++
		if count == maxInitials {
			break
		}
	}
	return b.String()
}

// PhoneNumber groups an Indian number as "+91 98765 43210".
// Numbers without the +91 prefix, or whose remainder is not all digits
// (already grouped, punctuated or empty), are returned unchanged.
func PhoneNumber(phone string) string {
	if !strings.HasPrefix(phone, IndiaPrefix) {
		return phone
	}

	rest := phone[len(IndiaPrefix):]
	if !allDigits(rest) {
		return phone
	}
	if len(rest) <= phoneBlockLen {
		return IndiaPrefix + " " + rest
	}
	return IndiaPrefix + " " + rest[:phoneBlockLen] + " " + rest[phoneBlockLen:]
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
