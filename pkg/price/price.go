// Package price turns free-text price labels into decimal amounts.
//
// The separator heuristic is best effort. "1.234" is read as 1.234 because a
// lone dot is always treated as the decimal separator; a lone comma followed
// by one or two digits is decimal, by three digits it groups thousands.
// Spaces group thousands ("1 234,56 €") and a leading separator is decimal
// ("$.99").
package price

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

var ErrPriceUnparseable = errors.New("price unparseable")

// Amount is a parsed, non-negative price.
type Amount struct {
	Value    decimal.Decimal
	Currency string
}

var isoCodes = []string{"USD", "EUR", "GBP", "JPY", "INR", "RUB", "AUD", "CAD", "CHF", "CNY"}

var isoExpr = regexp.MustCompile(`(?i)(?:^|[^A-Za-z])(` + strings.Join(isoCodes, "|") + `)(?:$|[^A-Za-z])`)

// longest first so "US$" wins over "$"
var prefixedSymbols = []struct {
	symbol string
	code   string
}{
	{"CA$", "CAD"},
	{"AU$", "AUD"},
	{"US$", "USD"},
	{"C$", "CAD"},
	{"A$", "AUD"},
}

// currency words that may sit between a sign and the digits
var currencyWords = append(append([]string{}, isoCodes...), "US", "CA", "AU", "C", "A")

var symbols = map[rune]string{
	'$': "USD",
	'€': "EUR",
	'£': "GBP",
	'¥': "JPY",
	'₹': "INR",
	'₽': "RUB",
}

var displaySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
	"RUB": "₽",
}

// Parse reads text such as "$1,299.00", "US $49.99" or "1.234,56 €".
// defaultCurrency is used when the text carries no currency token; an empty
// value falls back to DefaultCurrency.
func Parse(text, defaultCurrency string) (Amount, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Amount{}, fmt.Errorf("%w: empty text", ErrPriceUnparseable)
	}

	spans := numberSpans(text)
	if len(spans) == 0 {
		return Amount{}, fmt.Errorf("%w: no digits in %q", ErrPriceUnparseable, text)
	}
	s := pick(text, spans)
	if s.err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %v", ErrPriceUnparseable, text, s.err)
	}
	if negative(text[:s.start]) {
		return Amount{}, fmt.Errorf("%w: negative amount in %q", ErrPriceUnparseable, text)
	}

	number := spaceRemover.Replace(text[s.start:s.end])
	var err error
	if s.leading {
		number, err = fraction(number)
	} else {
		number, err = normalizeSeparators(number)
	}
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %v", ErrPriceUnparseable, text, err)
	}

	value, err := decimal.NewFromString(number)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %v", ErrPriceUnparseable, text, err)
	}
	if value.IsNegative() {
		return Amount{}, fmt.Errorf("%w: negative amount in %q", ErrPriceUnparseable, text)
	}

	return Amount{Value: value, Currency: DetectCurrency(text, defaultCurrency)}, nil
}

// DetectCurrency finds an ISO code or currency symbol in text.
func DetectCurrency(text, defaultCurrency string) string {
	if m := isoExpr.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}

	upper := strings.ToUpper(text)
	for _, p := range prefixedSymbols {
		if strings.Contains(upper, p.symbol) {
			return p.code
		}
	}

	for _, r := range text {
		if code, ok := symbols[r]; ok {
			return code
		}
	}

	if defaultCurrency != "" {
		return strings.ToUpper(defaultCurrency)
	}
	return DefaultCurrency
}

// Format renders an amount for display, e.g. "$19.99".
func Format(value decimal.Decimal, currency string) string {
	if sym, ok := displaySymbols[strings.ToUpper(currency)]; ok {
		return sym + value.StringFixed(2)
	}
	return value.StringFixed(2) + " " + strings.ToUpper(currency)
}

type span struct {
	start, end int
	// leading is set when the number opens with its decimal separator (".99").
	leading bool
	spaced  bool
	err     error
}

// numberSpans returns every run of digits in text, allowing embedded
// separators. A space, U+00A0 or U+202F groups thousands only when exactly
// three digits follow it.
func numberSpans(text string) []span {
	var spans []span
	for i := 0; i < len(text); {
		if !isDigit(text[i]) {
			i++
			continue
		}
		s := scanNumber(text, i)
		if i > 0 && (text[i-1] == '.' || text[i-1] == ',') {
			r, _ := utf8.DecodeLastRuneInString(text[:i-1])
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				s.start, s.leading = i-1, true
			}
		}
		spans = append(spans, s)
		i = s.end
	}
	return spans
}

func scanNumber(text string, start int) span {
	s := span{start: start}
	end := start
	for end < len(text) {
		c := text[end]
		if isDigit(c) || c == '.' || c == ',' {
			end++
			continue
		}
		n := spaceWidth(text[end:])
		if n == 0 || !isDigit(text[end-1]) || end+n >= len(text) || !isDigit(text[end+n]) {
			break
		}
		// a bad group still belongs to this number so no fragment of it
		// can be picked on its own
		group := digitRun(text[end+n:])
		if group != 3 || (!s.spaced && !groupHead(text[start:end])) {
			s.err = errors.New("irregular digit grouping")
		}
		s.spaced = true
		end += n + group
	}

	for end > start && (text[end-1] == '.' || text[end-1] == ',') {
		end--
	}
	s.end = end
	return s
}

// pick prefers the first number written next to a currency token, so
// "Save 20% now $15.99" reads 15.99. Without one the first number wins.
func pick(text string, spans []span) span {
	for _, s := range spans {
		if nearCurrency(text[:s.start], text[s.end:]) {
			return s
		}
	}
	return spans[0]
}

func nearCurrency(before, after string) bool {
	before = strings.TrimRightFunc(before, unicode.IsSpace)
	after = strings.TrimLeftFunc(after, unicode.IsSpace)

	if r, _ := utf8.DecodeLastRuneInString(before); isSymbol(r) {
		return true
	}
	if r, n := utf8.DecodeRuneInString(after); isSymbol(r) && !opensNumber(after[n:]) {
		return true
	}
	for _, code := range isoCodes {
		n := len(code)
		if len(before) >= n && strings.EqualFold(before[len(before)-n:], code) {
			r, _ := utf8.DecodeLastRuneInString(before[:len(before)-n])
			if !unicode.IsLetter(r) {
				return true
			}
		}
		if len(after) >= n && strings.EqualFold(after[:n], code) {
			r, _ := utf8.DecodeRuneInString(after[n:])
			if !unicode.IsLetter(r) && !opensNumber(after[n:]) {
				return true
			}
		}
	}
	return false
}

// opensNumber reports whether s starts another amount, in which case a
// currency token in front of it belongs to that amount ("X200 $15").
func opensNumber(s string) bool {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	return s != "" && (isDigit(s[0]) || s[0] == '.' || s[0] == ',')
}

func isSymbol(r rune) bool {
	_, ok := symbols[r]
	return ok
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func digitRun(s string) int {
	n := 0
	for n < len(s) && isDigit(s[n]) {
		n++
	}
	return n
}

var groupSpaces = []string{" ", "\u00a0", "\u202f"}

var spaceRemover = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "")

func spaceWidth(s string) int {
	for _, sp := range groupSpaces {
		if strings.HasPrefix(s, sp) {
			return len(sp)
		}
	}
	return 0
}

// groupHead reports whether s can open a space-grouped number: one to three
// digits and nothing else.
func groupHead(s string) bool {
	return len(s) >= 1 && len(s) <= 3 && digitRun(s) == len(s)
}

// negative looks for a minus sign directly attached to the number, with only
// spaces or currency decoration in between ("-$5", "$ -5", "- USD 5").
func negative(prefix string) bool {
	prefix = trimDecoration(prefix)
	for _, word := range currencyWords {
		n := len(word)
		if len(prefix) >= n && strings.EqualFold(prefix[len(prefix)-n:], word) {
			prefix = trimDecoration(prefix[:len(prefix)-n])
			break
		}
	}
	return strings.HasSuffix(prefix, "-") || strings.HasSuffix(prefix, "−")
}

func trimDecoration(s string) string {
	return strings.TrimRightFunc(s, func(r rune) bool {
		_, sym := symbols[r]
		return sym || unicode.IsSpace(r)
	})
}

func normalizeSeparators(s string) (string, error) {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		lastDot, lastComma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
		decimalSep, groupSep := ".", ","
		if lastComma > lastDot {
			decimalSep, groupSep = ",", "."
		}
		if strings.Count(s, decimalSep) > 1 {
			return "", errors.New("repeated decimal separator")
		}
		intPart, frac, _ := strings.Cut(s, decimalSep)
		if !grouped(intPart, groupSep) {
			return "", errors.New("irregular digit grouping")
		}
		return strings.ReplaceAll(intPart, groupSep, "") + "." + frac, nil

	case commas > 0:
		return resolveSingle(s, ",")

	case dots > 0:
		if dots == 1 {
			return s, nil
		}
		if grouped(s, ".") {
			return strings.ReplaceAll(s, ".", ""), nil
		}
		return "", errors.New("irregular digit grouping")
	}

	return s, nil
}

// fraction reads ".99" or ",50" as a value below one.
func fraction(s string) (string, error) {
	digits := s[1:]
	if strings.ContainsAny(digits, ".,") {
		return "", errors.New("separator after leading decimal")
	}
	return "0." + digits, nil
}

func resolveSingle(s, sep string) (string, error) {
	if strings.Count(s, sep) == 1 {
		_, frac, _ := strings.Cut(s, sep)
		switch len(frac) {
		case 1, 2:
			return strings.Replace(s, sep, ".", 1), nil
		case 3:
			if grouped(s, sep) {
				return strings.Replace(s, sep, "", 1), nil
			}
		}
		return "", errors.New("ambiguous separator")
	}
	if grouped(s, sep) {
		return strings.ReplaceAll(s, sep, ""), nil
	}
	return "", errors.New("irregular digit grouping")
}

// grouped checks "1,234,567" style grouping: a 1-3 digit head followed by
// groups of exactly three digits.
func grouped(s, sep string) bool {
	parts := strings.Split(s, sep)
	if len(parts[0]) == 0 || len(parts[0]) > 3 && len(parts) > 1 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}
