// Package core holds the domain model and the pure aggregation functions the
// rest of the application derives its views from.
//
// This file covers display formatting and parsing of monetary amounts.
package core

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// fallbackSymbols is used when locale-aware formatting is unavailable for a
// code. Unknown codes render with "$".
var fallbackSymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"PLN": "zł",
	"JPY": "¥",
	"CHF": "CHF",
	"CAD": "CA$",
	"AUD": "A$",
	"NZD": "NZ$",
	"SEK": "kr",
	"NOK": "kr",
	"DKK": "kr",
}

// FormatCurrency formats an amount in the given ISO 4217 code for the en-US
// locale. See FormatCurrencyIn.
func FormatCurrency(amount float64, code string) string {
	return FormatCurrencyIn(amount, code, "en-US")
}

// FormatCurrencyIn renders an amount for display. It is deliberately
// defensive: non-finite amounts are coerced to 0, locale-aware formatting is
// only attempted for codes shaped like ISO 4217, and any failure falls back to
// a small symbol table with plain two-decimal formatting. It never fails.
func FormatCurrencyIn(amount float64, code, locale string) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	if code == "" {
		code = "USD"
	}

	if currencyCodeRe.MatchString(code) {
		if s, ok := localeFormat(amount, code, locale); ok {
			return s
		}
	}
	return fallbackFormat(amount, code)
}

func localeFormat(amount float64, code, locale string) (string, bool) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", false
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "", false
	}
	out := message.NewPrinter(tag).Sprint(currency.Symbol(unit.Amount(amount)))
	if strings.TrimSpace(out) == "" {
		return "", false
	}
	return out, true
}

func fallbackFormat(amount float64, code string) string {
	symbol, ok := fallbackSymbols[strings.ToUpper(code)]
	if !ok {
		symbol = "$"
	}
	if amount < 0 {
		return fmt.Sprintf("-%s%.2f", symbol, -amount)
	}
	return fmt.Sprintf("%s%.2f", symbol, amount)
}

// ParseAmount converts a user-entered decimal string to a positive amount.
// Both dot and comma decimal separators are accepted. Used for the editable
// current-asset-value map and mutual fund value entry.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("amount must be positive")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("amount must be positive")
	}
	return v, nil
}
