// Package detect implements the detect command, which reports the date
// format of a statement without importing it.
package detect

import (
	"context"
	"fmt"
	"io"

	"fjacquet/statement-import/cmd/root"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/statement"

	"github.com/spf13/cobra"
)

// Detector is the part of the import pipeline the command needs.
type Detector interface {
	DetectDateFormat(ctx context.Context, file statement.File) (models.DateFormatDetection, error)
}

// Cmd represents the detect command
var Cmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Detect the date format of a statement",
	Long:  `Sample the date column of a CSV or XLSX statement and report the detected date format and its confidence.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		c, err := root.NewContainer(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		file, err := statement.Open(args[0])
		if err != nil {
			return err
		}
		return Run(ctx, c.GetImporter(), file, cmd.OutOrStdout())
	},
}

// Run detects the format of file and prints the result on out.
func Run(ctx context.Context, d Detector, file statement.File, out io.Writer) error {
	detection, err := d.DetectDateFormat(ctx, file)
	if err != nil {
		return err
	}

	switch {
	case detection.IsExcelSerial:
		fmt.Fprintf(out, "%s: Excel serial dates (confidence %s)\n", file.Name, detection.Confidence)
	case detection.Detected:
		fmt.Fprintf(out, "%s: %s (confidence %s)\n", file.Name, detection.Format, detection.Confidence)
	default:
		fmt.Fprintf(out, "%s: no date format matches every sample\n", file.Name)
	}
	if detection.NeedsManualChoice() {
		fmt.Fprintln(out, "Choose the format with --date-format when importing.")
	}
	for i, s := range detection.Samples {
		if i < len(detection.ParsedSamples) {
			fmt.Fprintf(out, "  %-12s -> %s\n", s, detection.ParsedSamples[i].Format(models.ISODateLayout))
			continue
		}
		fmt.Fprintf(out, "  %s\n", s)
	}
	return nil
}
