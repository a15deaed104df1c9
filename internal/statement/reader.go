package statement

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"fjacquet/statement-import/internal/parsererror"

	"github.com/xuri/excelize/v2"
)

// rawRow is one line of a statement table. Number is the 1-based line of the
// CSV file or row of the sheet.
type rawRow struct {
	Number    int
	Cells     []string
	Malformed bool
}

func (r rawRow) cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[i])
}

func (r rawRow) blank() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// table is the decoded grid of a statement file.
type table struct {
	Rows []rawRow
	// Numeric marks a spreadsheet whose cells were read as raw values, so
	// date columns hold serials rather than formatted text.
	Numeric bool
	// Padded tables may drop trailing empty cells; short rows are not malformed.
	Padded bool
}

// tableReader decodes one container format.
type tableReader interface {
	Read(file File) (*table, error)
}

func readerFor(format Format, cfg Config) (tableReader, error) {
	switch format {
	case FormatCSV:
		return &csvReader{delimiter: cfg.Delimiter}, nil
	case FormatXLSX:
		return &xlsxReader{sheet: cfg.Sheet}, nil
	default:
		return nil, fmt.Errorf("unknown statement format: %s", format)
	}
}

type csvReader struct {
	delimiter rune
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func (c *csvReader) Read(file File) (*table, error) {
	data := bytes.TrimPrefix(file.Data, utf8BOM)
	delim := c.delimiter
	if delim == 0 {
		delim = sniffDelimiter(data)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false

	t := &table{}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				t.Rows = append(t.Rows, rawRow{Number: pe.StartLine, Malformed: true})
				continue
			}
			return nil, &parsererror.InfrastructureError{Op: "read csv statement", Err: err}
		}
		line, _ := r.FieldPos(0)
		t.Rows = append(t.Rows, rawRow{Number: line, Cells: record})
	}
	return t, nil
}

// sniffDelimiter picks the candidate separator occurring most often, outside
// quotes, on the first non-empty line. Comma wins ties.
func sniffDelimiter(data []byte) rune {
	candidates := []rune{',', ';', '\t', '|'}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		best, bestCount := ',', 0
		for _, cand := range candidates {
			if n := countOutsideQuotes(line, cand); n > bestCount {
				best, bestCount = cand, n
			}
		}
		return best
	}
	return ','
}

func countOutsideQuotes(line string, sep rune) int {
	inQuotes := false
	n := 0
	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == sep && !inQuotes:
			n++
		}
	}
	return n
}

type xlsxReader struct {
	sheet string
}

func (x *xlsxReader) Read(file File) (*table, error) {
	xl, err := excelize.OpenReader(bytes.NewReader(file.Data))
	if err != nil {
		return nil, &parsererror.InvalidFormatError{
			FilePath:       file.Name,
			ExpectedFormat: "an xlsx workbook",
			Msg:            fmt.Sprintf("cannot open workbook: %v", err),
		}
	}
	defer func() { _ = xl.Close() }()

	sheet := x.sheet
	if sheet == "" {
		sheet = xl.GetSheetName(0)
	} else if idx, err := xl.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, &parsererror.InvalidFormatError{
			FilePath:       file.Name,
			ExpectedFormat: fmt.Sprintf("a sheet named %q", sheet),
			Msg:            "sheet not found",
		}
	}

	rows, err := xl.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &parsererror.InvalidFormatError{
			FilePath:       file.Name,
			ExpectedFormat: "a readable worksheet",
			Msg:            fmt.Sprintf("cannot read sheet %q: %v", sheet, err),
		}
	}

	t := &table{Numeric: true, Padded: true, Rows: make([]rawRow, 0, len(rows))}
	for i, cells := range rows {
		t.Rows = append(t.Rows, rawRow{Number: i + 1, Cells: cells})
	}
	return t, nil
}
