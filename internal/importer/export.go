package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fjacquet/statement-import/internal/models"

	"github.com/gocarina/gocsv"
)

// ExportRow is the CSV layout of a committed record.
type ExportRow struct {
	Date     string `csv:"Date"`
	Merchant string `csv:"Merchant"`
	Amount   string `csv:"Amount"`
	Kind     string `csv:"Kind"`
	Category string `csv:"Category"`
	Manual   bool   `csv:"ManualCategory"`
	Row      int    `csv:"SourceRow"`
}

func exportRows(records []models.CommitRecord) []ExportRow {
	rows := make([]ExportRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, ExportRow{
			Date:     r.Date,
			Merchant: r.MerchantName,
			Amount:   r.Amount.StringFixed(2),
			Kind:     string(r.Kind),
			Category: r.Category,
			Manual:   r.IsManualCategory,
			Row:      r.RowNumber,
		})
	}
	return rows
}

// WriteRecordsCSV writes records to w with the given delimiter.
func WriteRecordsCSV(w io.Writer, records []models.CommitRecord, delimiter rune) error {
	csvWriter := csv.NewWriter(w)
	if delimiter != 0 {
		csvWriter.Comma = delimiter
	}
	if err := gocsv.MarshalCSV(exportRows(records), gocsv.NewSafeCSVWriter(csvWriter)); err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}
	return nil
}

// ExportRecordsToFile writes records to a CSV file, creating its directory.
func ExportRecordsToFile(path string, records []models.CommitRecord, delimiter rune) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), models.PermissionDirectory); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}
	file, err := os.Create(path) // #nosec G304 -- user-chosen export path
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return WriteRecordsCSV(file, records, delimiter)
}
