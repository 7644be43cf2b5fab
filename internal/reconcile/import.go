package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks-dev/openbooks/internal/money"
)

// ImportError reports the first unusable row of a statement file. The
// whole import is abandoned when any row fails, so a file is either
// ingested completely or not at all.
type ImportError struct {
	Row int
	Err error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("statement row %d: %v", e.Row, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// statementRow is one parsed CSV line.
type statementRow struct {
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	ExternalID  string
}

// Column aliases accepted in statement headers. Banks are not
// consistent about naming, so each logical column carries the variants
// seen in the wild.
var headerAliases = map[string][]string{
	"date":        {"date", "transaction date"},
	"amount":      {"amount", "transaction amount"},
	"description": {"description", "memo"},
	"reference":   {"reference", "transaction id"},
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006"}

// parseStatement reads a CSV statement. Date and Amount columns are
// required; Description and Reference are optional.
func parseStatement(r io.Reader) ([]statementRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, &ImportError{Row: 1, Err: fmt.Errorf("missing header row: %w", err)}
	}

	cols := resolveColumns(header)
	if _, ok := cols["date"]; !ok {
		return nil, &ImportError{Row: 1, Err: fmt.Errorf("no date column found")}
	}
	if _, ok := cols["amount"]; !ok {
		return nil, &ImportError{Row: 1, Err: fmt.Errorf("no amount column found")}
	}

	var rows []statementRow
	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ImportError{Row: rowNum, Err: err}
		}

		row, err := parseRecord(record, cols)
		if err != nil {
			return nil, &ImportError{Row: rowNum, Err: err}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func resolveColumns(header []string) map[string]int {
	cols := make(map[string]int)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		for logical, aliases := range headerAliases {
			if _, seen := cols[logical]; seen {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					cols[logical] = i
				}
			}
		}
	}
	return cols
}

func parseRecord(record []string, cols map[string]int) (statementRow, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var row statementRow
	dateStr := field("date")
	date, err := parseDate(dateStr)
	if err != nil {
		return row, err
	}
	row.Date = date

	row.Amount, err = money.ParseAmount(field("amount"))
	if err != nil {
		return row, err
	}

	row.Description = field("description")
	row.ExternalID = field("reference")
	return row, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
