package statement

import (
	"errors"
	"regexp"
	"strings"

	"fjacquet/statement-import/internal/parsererror"

	"github.com/shopspring/decimal"
)

var (
	currencyCodeRe = regexp.MustCompile(`^[A-Za-z]{3}\s*|\s*[A-Za-z]{3}$`)
	digitsRe       = regexp.MustCompile(`^[0-9.,]+$`)
	amountCleaner  = strings.NewReplacer(
		" ", "", " ", "", " ", "", "'", "", "’", "",
		"$", "", "€", "", "£", "", "¥", "", "₣", "", "₹", "",
	)
)

// ParseAmount converts a statement amount cell into a signed decimal.
// Accepted notations include currency symbols or ISO codes, thousands
// separators, European decimal commas ("1.234,56"), a leading or trailing
// minus and accounting parentheses ("(12.34)"). Failures are
// *parsererror.ParseError values.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := parseAmount(raw)
	if err != nil {
		return decimal.Zero, &parsererror.ParseError{Parser: "statement", Field: "amount", Value: raw, Err: err}
	}
	return d, nil
}

var (
	errEmptyAmount = errors.New("empty amount")
	errNotANumber  = errors.New("not a number")
	errAmbiguous   = errors.New("ambiguous separators")
	errNoDigits    = errors.New("no digits")
)

func parseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, errEmptyAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = currencyCodeRe.ReplaceAllString(s, "")
	s = amountCleaner.Replace(s)
	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = !negative
		s = s[:len(s)-1]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	// A symbol may sit between the sign and the digits: "-$12", "CHF -12".
	s = currencyCodeRe.ReplaceAllString(amountCleaner.Replace(s), "")
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}

	if !digitsRe.MatchString(s) {
		return decimal.Zero, errNotANumber
	}

	normalized, err := normalizeSeparators(s)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, errNotANumber
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators rewrites s to use '.' as the only decimal separator.
// When both separators appear the last one is the decimal mark. A lone comma
// is decimal unless exactly three digits follow it and a non-zero integer
// part precedes it; repeated marks are thousands separators.
func normalizeSeparators(s string) (string, error) {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			if commas > 1 {
				return "", errAmbiguous
			}
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			if dots > 1 {
				return "", errAmbiguous
			}
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case commas == 1:
		i := strings.Index(s, ",")
		if intPart := s[:i]; len(s)-i-1 == 3 && intPart != "" && intPart != "0" {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	if s == "" || s == "." {
		return "", errNoDigits
	}
	return s, nil
}
