// Package reports builds the financial statements from posted journal
// lines. Reports never read the denormalized account balances; they
// aggregate the lines themselves, which makes them a cross-check on the
// posting path.
package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks-dev/openbooks/internal/ledger"
)

// Row is one account's contribution to a report, signed for
// presentation according to the report section it appears in.
type Row struct {
	AccountID string          `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// TrialBalanceRow carries an account's gross debit and credit totals
// plus the net of the two. Gross sums survive netting on purpose: an
// account that took 500 in and 500 out still shows its activity.
type TrialBalanceRow struct {
	AccountID  string             `json:"account_id"`
	Code       string             `json:"code"`
	Name       string             `json:"name"`
	Type       ledger.AccountType `json:"type"`
	Debit      decimal.Decimal    `json:"debit"`
	Credit     decimal.Decimal    `json:"credit"`
	NetBalance decimal.Decimal    `json:"net_balance"`
}

// TrialBalance lists every account with posted activity through AsOf.
// Balanced is false only when the books themselves are corrupt; it is
// surfaced rather than corrected.
type TrialBalance struct {
	AsOf        time.Time         `json:"as_of"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
	Balanced    bool              `json:"balanced"`
}

// ProfitAndLoss summarizes revenue and expense activity over a period.
type ProfitAndLoss struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Revenue       []Row           `json:"revenue"`
	Expenses      []Row           `json:"expenses"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetIncome     decimal.Decimal `json:"net_income"`
}

// BalanceSheet is the statement of financial position as of a date.
// RetainedEarnings folds all revenue and expense activity through AsOf
// into the equity section so the accounting equation holds.
type BalanceSheet struct {
	AsOf             time.Time       `json:"as_of"`
	Assets           []Row           `json:"assets"`
	Liabilities      []Row           `json:"liabilities"`
	Equity           []Row           `json:"equity"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
	RetainedEarnings decimal.Decimal `json:"retained_earnings"`
	Balanced         bool            `json:"balanced"`
}
