// Package statement reads CSV and XLSX statement files into parsed
// transactions and per-row errors.
package statement

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fjacquet/statement-import/internal/parsererror"
)

// File is an uploaded statement held in memory.
type File struct {
	Name string
	Data []byte
}

// Open reads a statement file from disk.
func Open(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, &parsererror.InfrastructureError{Op: "read statement file", Err: err}
	}
	return File{Name: filepath.Base(path), Data: data}, nil
}

// Format is the container format of a statement file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat chooses the reader from the file extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", &parsererror.InvalidFormatError{
		FilePath:       name,
		ExpectedFormat: "a .csv, .txt, .xlsx or .xlsm statement",
		Msg:            fmt.Sprintf("unsupported file extension %q", filepath.Ext(name)),
	}
}
