package importcmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fjacquet/statement-import/internal/models"
)

// Prompter asks questions on out and reads one answer per line from in.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewPrompter creates a Prompter.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(in), out: out}
}

// Ask prints question and returns the trimmed answer. io.EOF is returned when
// input runs out.
func (p *Prompter) Ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// AskDateFormat repeats the question until a concrete format is given.
func (p *Prompter) AskDateFormat(d *models.DateFormatDetection) (models.DateFormat, error) {
	if d != nil && len(d.Samples) > 0 {
		fmt.Fprintf(p.out, "Could not determine the date format (confidence %s). Sample dates:\n", d.Confidence)
		for _, s := range d.Samples {
			fmt.Fprintf(p.out, "  %s\n", s)
		}
	}
	for {
		answer, err := p.Ask("Date format [DD/MM/YYYY, MM/DD/YYYY, YYYY-MM-DD]: ")
		if err != nil {
			return "", err
		}
		format, err := models.ParseDateFormat(answer)
		if err == nil && format.IsConcrete() {
			return format, nil
		}
		fmt.Fprintln(p.out, "Please enter one of the three formats.")
	}
}

// AskCategory repeats the question until a category is given.
func (p *Prompter) AskCategory(g models.MerchantGroup, suggestions []string) (string, error) {
	fmt.Fprintf(p.out, "%s: %d %s transaction(s)\n", g.DisplayName, len(g.Members), g.DominantKind)
	question := "Category: "
	if len(suggestions) > 0 {
		question = fmt.Sprintf("Category [%s]: ", strings.Join(suggestions, ", "))
	}
	for {
		answer, err := p.Ask(question)
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
	}
}

// AskDuplicates returns the flagged rows to import anyway. An empty answer
// keeps all of them; "none" drops them all.
func (p *Prompter) AskDuplicates(duplicates []models.DuplicateCandidate) ([]int, error) {
	fmt.Fprintln(p.out, "These transactions look like ones already imported:")
	valid := make(map[int]bool, len(duplicates))
	for _, d := range duplicates {
		valid[d.Incoming.RowNumber] = true
		fmt.Fprintf(p.out, "  row %d: %s %s %s (matches %s %s)\n",
			d.Incoming.RowNumber, d.Incoming.DateString(), d.Incoming.MerchantName,
			d.Incoming.Amount.StringFixed(2), d.ExistingMatch.Description,
			d.ExistingMatch.Date.Format(models.ISODateLayout))
	}
	for {
		answer, err := p.Ask("Rows to import anyway (comma separated, 'none', or empty for all): ")
		if err != nil {
			return nil, err
		}
		rows, ok := parseRows(answer, duplicates, valid)
		if ok {
			return rows, nil
		}
		fmt.Fprintln(p.out, "Please list row numbers from the list above.")
	}
}

func parseRows(answer string, duplicates []models.DuplicateCandidate, valid map[int]bool) ([]int, bool) {
	if strings.EqualFold(answer, "none") {
		return nil, true
	}
	if answer == "" || strings.EqualFold(answer, "all") {
		rows := make([]int, len(duplicates))
		for i, d := range duplicates {
			rows[i] = d.Incoming.RowNumber
		}
		return rows, true
	}
	var rows []int
	for _, part := range strings.Split(answer, ",") {
		row, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || !valid[row] {
			return nil, false
		}
		rows = append(rows, row)
	}
	return rows, true
}
