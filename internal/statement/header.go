package statement

import (
	"strings"

	"fjacquet/statement-import/internal/textutils"
)

// columnRole is the meaning of a statement column.
type columnRole int

const (
	roleDate columnRole = iota
	roleDescription
	roleAmount
	roleDebit
	roleCredit
	roleDirection
)

// Header names are compared after merchant-key folding, so accents and case
// do not matter.
var columnSynonyms = map[columnRole][]string{
	roleDate: {
		"date", "transaction date", "booking date", "posting date", "posted date",
		"trans date", "txn date", "value date", "datum", "buchungsdatum",
		"date operation", "fecha", "data", "completed date", "started date",
	},
	roleDescription: {
		"description", "merchant", "merchant name", "payee", "details",
		"transaction details", "narrative", "memo", "name", "beneficiary",
		"counterparty", "text", "libelle", "buchungstext", "concepto",
		"descrizione",
	},
	roleAmount: {
		"amount", "transaction amount", "value", "montant", "betrag", "importe",
		"importo", "sum",
	},
	roleDebit: {
		"debit", "debit amount", "withdrawal", "withdrawals", "money out",
		"paid out", "out", "belastung", "lastschrift", "charge", "charges",
	},
	roleCredit: {
		"credit", "credit amount", "deposit", "deposits", "money in", "paid in",
		"in", "gutschrift",
	},
	roleDirection: {
		"type", "direction", "dr/cr", "cr/dr", "debit/credit", "credit/debit",
		"transaction type", "kind",
	},
}

var synonymIndex = func() map[string]columnRole {
	idx := make(map[string]columnRole)
	for role, names := range columnSynonyms {
		for _, n := range names {
			idx[n] = role
		}
	}
	return idx
}()

// columns maps roles to zero-based column indexes; -1 means absent.
type columns struct {
	Date        int
	Description int
	Amount      int
	Debit       int
	Credit      int
	Direction   int
}

func (c columns) hasSplit() bool {
	return c.Debit >= 0 || c.Credit >= 0
}

// required returns the smallest cell count a row needs to carry a date,
// description and some amount.
func (c columns) required() int {
	max := c.Date
	if c.Description > max {
		max = c.Description
	}
	amountIdx := c.Amount
	for _, i := range []int{c.Debit, c.Credit} {
		if amountIdx < 0 || (i >= 0 && i < amountIdx) {
			amountIdx = i
		}
	}
	if amountIdx > max {
		max = amountIdx
	}
	return max + 1
}

// matchHeader maps header cells to roles. ok is false unless the row names a
// date, a description and an amount or debit/credit column.
func matchHeader(cells []string) (columns, bool) {
	cols := columns{Date: -1, Description: -1, Amount: -1, Debit: -1, Credit: -1, Direction: -1}
	for i, cell := range cells {
		name := textutils.MerchantKey(strings.Trim(cell, "\"'*:"))
		role, ok := synonymIndex[name]
		if !ok {
			continue
		}
		slot := cols.slot(role)
		if *slot < 0 {
			*slot = i
		}
	}
	ok := cols.Date >= 0 && cols.Description >= 0 && (cols.Amount >= 0 || cols.hasSplit())
	return cols, ok
}

func (c *columns) slot(role columnRole) *int {
	switch role {
	case roleDate:
		return &c.Date
	case roleDescription:
		return &c.Description
	case roleAmount:
		return &c.Amount
	case roleDebit:
		return &c.Debit
	case roleCredit:
		return &c.Credit
	default:
		return &c.Direction
	}
}

// findHeader scans the first limit non-blank rows for a header row.
func findHeader(rows []rawRow, limit int) (int, columns, bool) {
	seen := 0
	for i, row := range rows {
		if row.Malformed || row.blank() {
			continue
		}
		if cols, ok := matchHeader(row.Cells); ok {
			return i, cols, true
		}
		seen++
		if seen >= limit {
			break
		}
	}
	return -1, columns{}, false
}

// parseDirection reads a direction cell. ok is false for values that do not
// name a direction.
func parseDirection(value string) (income bool, ok bool) {
	switch textutils.MerchantKey(value) {
	case "cr", "credit", "c", "income", "in", "deposit", "+":
		return true, true
	case "dr", "debit", "d", "expense", "out", "withdrawal", "-":
		return false, true
	}
	return false, false
}
