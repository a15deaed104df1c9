// Package dateutils parses statement dates under an explicit layout and
// converts spreadsheet date serials.
package dateutils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/parsererror"

	"github.com/xuri/excelize/v2"
)

// Common date format constants used throughout the application
const (
	DateLayoutISO  = "2006-01-02"
	DateLayoutFull = "2006-01-02 15:04:05"
)

// Plausible spreadsheet serial range: 20000 is 1954-10-03, 80000 is 2119-01-10.
const (
	DefaultSerialMin = 20000
	DefaultSerialMax = 80000
)

var (
	spaceRe = regexp.MustCompile(`\s+`)
	// day/month layouts accept / - . ; ISO accepts / -
	dayMonthRe = regexp.MustCompile(`^(\d{1,2})([/.\-])(\d{1,2})([/.\-])(\d{2}|\d{4})$`)
	isoRe      = regexp.MustCompile(`^(\d{4})([/\-])(\d{1,2})([/\-])(\d{1,2})$`)
)

// CleanDateString trims s, collapses inner white space and drops a trailing
// clock part ("2024-03-15 10:22:00", "2024-03-15T10:22:00Z").
func CleanDateString(dateStr string) string {
	dateStr = strings.TrimSpace(dateStr)
	dateStr = spaceRe.ReplaceAllString(dateStr, " ")
	if i := strings.IndexAny(dateStr, " T"); i > 0 {
		dateStr = dateStr[:i]
	}
	return dateStr
}

// ParseWithFormat parses dateStr strictly under format. The result is a UTC
// calendar day. Out-of-range days or months, mixed separators and unknown
// layouts are *parsererror.ParseError values.
func ParseWithFormat(dateStr string, format models.DateFormat) (time.Time, error) {
	t, err := parseWithFormat(dateStr, format)
	if err != nil {
		return time.Time{}, &parsererror.ParseError{Parser: string(format), Field: "date", Value: dateStr, Err: err}
	}
	return t, nil
}

func parseWithFormat(dateStr string, format models.DateFormat) (time.Time, error) {
	clean := CleanDateString(dateStr)
	if clean == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	var year, month, day int
	switch format {
	case models.DateFormatISO:
		m := isoRe.FindStringSubmatch(clean)
		if m == nil || m[2] != m[4] {
			return time.Time{}, fmt.Errorf("does not match %s", format)
		}
		year, month, day = atoi(m[1]), atoi(m[3]), atoi(m[5])
	case models.DateFormatDMY, models.DateFormatMDY:
		m := dayMonthRe.FindStringSubmatch(clean)
		if m == nil || m[2] != m[4] {
			return time.Time{}, fmt.Errorf("does not match %s", format)
		}
		first, second := atoi(m[1]), atoi(m[3])
		if format == models.DateFormatDMY {
			day, month = first, second
		} else {
			month, day = first, second
		}
		year = atoi(m[5])
		if len(m[5]) == 2 {
			year += 2000
		}
	default:
		return time.Time{}, fmt.Errorf("unsupported date format %q", format)
	}

	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month %d out of range", month)
	}
	if day < 1 || day > DaysIn(time.Month(month), year) {
		return time.Time{}, fmt.Errorf("day %d out of range", day)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// DaysIn returns the number of days of month in year.
func DaysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DayAndMonth splits a day/month style value without choosing an order.
// ok is false for ISO values and anything unparsable.
func DayAndMonth(dateStr string) (first, second int, ok bool) {
	m := dayMonthRe.FindStringSubmatch(CleanDateString(dateStr))
	if m == nil || m[2] != m[4] {
		return 0, 0, false
	}
	return atoi(m[1]), atoi(m[3]), true
}

// ParseSerial reads a numeric cell value as a spreadsheet date serial.
func ParseSerial(value string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}

// IsPlausibleSerial reports whether value is a number inside [min, max].
func IsPlausibleSerial(value string, min, max float64) bool {
	f, err := ParseSerial(value)
	if err != nil {
		return false
	}
	return f >= min && f <= max
}

// FromExcelSerial converts a spreadsheet date serial (1900 date system) into a
// UTC calendar day.
func FromExcelSerial(value string) (time.Time, error) {
	f, err := ParseSerial(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date serial %q is not a number", value)
	}
	if f <= 0 {
		return time.Time{}, fmt.Errorf("date serial %q out of range", value)
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("date serial %q: %w", value, err)
	}
	return models.DateOnly(t), nil
}

// ToISODate formats a time.Time value as an ISO date (YYYY-MM-DD)
func ToISODate(date time.Time) string {
	return date.Format(DateLayoutISO)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
