// Package dateformat infers the date layout of a statement from a sample of
// its raw date cells.
package dateformat

import (
	"strings"
	"time"

	"fjacquet/statement-import/internal/dateutils"
	"fjacquet/statement-import/internal/models"
)

// DefaultMaxSamples caps how many date cells are inspected.
const DefaultMaxSamples = 20

// Options tunes Detect. Zero values select the defaults.
type Options struct {
	MaxSamples int
	SerialMin  float64
	SerialMax  float64
	// NumericCells is set when the spreadsheet stores the date column as
	// numbers. They still have to fall inside [SerialMin, SerialMax].
	NumericCells bool
	// LocaleDefault is preferred when several layouts read the samples identically.
	LocaleDefault models.DateFormat
}

func (o Options) withDefaults() Options {
	if o.MaxSamples <= 0 {
		o.MaxSamples = DefaultMaxSamples
	}
	if o.SerialMin <= 0 {
		o.SerialMin = dateutils.DefaultSerialMin
	}
	if o.SerialMax <= o.SerialMin {
		o.SerialMax = dateutils.DefaultSerialMax
	}
	if !o.LocaleDefault.IsConcrete() {
		o.LocaleDefault = models.DateFormatDMY
	}
	return o
}

// Detect inspects samples and reports the most likely layout. It is a pure
// function: the same samples and options always give the same answer, and
// failing to decide is reported in the result rather than as an error.
func Detect(samples []string, opts Options) models.DateFormatDetection {
	opts = opts.withDefaults()

	cleaned := make([]string, 0, len(samples))
	for _, s := range samples {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		cleaned = append(cleaned, s)
		if len(cleaned) == opts.MaxSamples {
			break
		}
	}

	result := models.DateFormatDetection{
		Confidence: models.ConfidenceLow,
		Samples:    cleaned,
	}
	if len(cleaned) == 0 {
		return result
	}

	if allSerials(cleaned, opts) {
		if parsed, ok := parseSerials(cleaned); ok {
			result.Detected = true
			result.IsExcelSerial = true
			result.Confidence = models.ConfidenceHigh
			result.ParsedSamples = parsed
			return result
		}
	}
	// Raw numbers outside the serial range match no textual layout either.
	if opts.NumericCells {
		return result
	}

	var valid []models.DateFormat
	parsedBy := make(map[models.DateFormat][]time.Time, len(models.DateFormats))
	for _, format := range models.DateFormats {
		if parsed, ok := parseAll(cleaned, format); ok {
			valid = append(valid, format)
			parsedBy[format] = parsed
		}
	}

	switch {
	case len(valid) == 0:
		return result
	case len(valid) == 1:
		result.Format = valid[0]
		result.Confidence = models.ConfidenceHigh
	case contains(valid, opts.LocaleDefault) && interpretationsCoincide(cleaned):
		result.Format = opts.LocaleDefault
		result.Confidence = models.ConfidenceMedium
	default:
		result.Format = valid[0]
		if contains(valid, opts.LocaleDefault) {
			result.Format = opts.LocaleDefault
		}
		result.Confidence = models.ConfidenceLow
	}

	result.Detected = true
	result.ParsedSamples = parsedBy[result.Format]
	return result
}

func parseAll(samples []string, format models.DateFormat) ([]time.Time, bool) {
	parsed := make([]time.Time, 0, len(samples))
	for _, s := range samples {
		t, err := dateutils.ParseWithFormat(s, format)
		if err != nil {
			return nil, false
		}
		parsed = append(parsed, t)
	}
	return parsed, true
}

func allSerials(samples []string, opts Options) bool {
	for _, s := range samples {
		if !dateutils.IsPlausibleSerial(s, opts.SerialMin, opts.SerialMax) {
			return false
		}
	}
	return true
}

func parseSerials(samples []string) ([]time.Time, bool) {
	parsed := make([]time.Time, 0, len(samples))
	for _, s := range samples {
		t, err := dateutils.FromExcelSerial(s)
		if err != nil {
			return nil, false
		}
		parsed = append(parsed, t)
	}
	return parsed, true
}

// interpretationsCoincide reports whether every sample has equal day and
// month, so DD/MM and MM/DD read the same calendar days.
func interpretationsCoincide(samples []string) bool {
	for _, s := range samples {
		first, second, ok := dateutils.DayAndMonth(s)
		if !ok || first != second {
			return false
		}
	}
	return true
}

func contains(formats []models.DateFormat, f models.DateFormat) bool {
	for _, candidate := range formats {
		if candidate == f {
			return true
		}
	}
	return false
}
