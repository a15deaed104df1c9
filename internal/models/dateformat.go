package models

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat names a textual date layout a statement may use.
type DateFormat string

const (
	// DateFormatAuto asks the pipeline to detect the layout.
	DateFormatAuto DateFormat = "AUTO"
	DateFormatDMY  DateFormat = "DD/MM/YYYY"
	DateFormatMDY  DateFormat = "MM/DD/YYYY"
	DateFormatISO  DateFormat = "YYYY-MM-DD"
)

// DateFormats lists the concrete layouts in detection order.
var DateFormats = []DateFormat{DateFormatISO, DateFormatDMY, DateFormatMDY}

// IsConcrete reports whether f names an actual layout rather than AUTO.
func (f DateFormat) IsConcrete() bool {
	return f == DateFormatDMY || f == DateFormatMDY || f == DateFormatISO
}

// ParseDateFormat accepts the layout names case-insensitively; an empty
// string or "auto" selects DateFormatAuto.
func ParseDateFormat(s string) (DateFormat, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" || v == string(DateFormatAuto) {
		return DateFormatAuto, nil
	}
	f := DateFormat(v)
	if !f.IsConcrete() {
		return "", fmt.Errorf("unknown date format %q (want AUTO, DD/MM/YYYY, MM/DD/YYYY or YYYY-MM-DD)", s)
	}
	return f, nil
}

// Confidence grades a date format detection.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// DateFormatDetection is the outcome of inspecting a file's date samples.
type DateFormatDetection struct {
	Format        DateFormat  `json:"format,omitempty"`
	Detected      bool        `json:"detected"`
	Confidence    Confidence  `json:"confidence"`
	IsExcelSerial bool        `json:"is_excel_serial"`
	Samples       []string    `json:"samples"`
	ParsedSamples []time.Time `json:"parsed_samples"`
}

// NeedsManualChoice reports whether a person has to pick the format before
// parsing can start.
func (d DateFormatDetection) NeedsManualChoice() bool {
	if d.IsExcelSerial {
		return false
	}
	return !d.Detected || d.Confidence == ConfidenceLow
}

// ImportType selects how statement rows map to transaction kinds.
type ImportType string

const (
	// ImportTypeExpenses is a single-direction credit card detail; every row is an expense.
	ImportTypeExpenses ImportType = "expenses"
	// ImportTypeRoundTrip is a bank statement carrying both income and expenses.
	ImportTypeRoundTrip ImportType = "roundTrip"
)

// ParseImportType accepts the type names case-insensitively.
func ParseImportType(s string) (ImportType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expenses", "expense":
		return ImportTypeExpenses, nil
	case "roundtrip", "round-trip", "round_trip":
		return ImportTypeRoundTrip, nil
	case "":
		return "", fmt.Errorf("import type is required")
	}
	return "", fmt.Errorf("unknown import type %q (want expenses or roundTrip)", s)
}
