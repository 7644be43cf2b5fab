package reports

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbooks-dev/openbooks/internal/ledger"
)

type fixture struct {
	reports  *Service
	books    *ledger.Service
	accounts map[string]*ledger.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ls := ledger.NewMemoryStore()
	books := ledger.NewService(ls, nil)
	created, err := books.SeedDefaultAccounts(context.Background(), "org-1")
	require.NoError(t, err)

	accounts := make(map[string]*ledger.Account)
	for _, a := range created {
		accounts[a.Code] = a
	}
	return &fixture{
		reports:  NewService(NewMemoryStore(ls), nil),
		books:    books,
		accounts: accounts,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) post(t *testing.T, date time.Time, debitCode, creditCode, amount string) {
	t.Helper()
	_, err := f.books.PostEntry(context.Background(), ledger.PostEntryRequest{
		OrganizationID: "org-1",
		Date:           date,
		Lines: []ledger.Line{
			{AccountID: f.accounts[debitCode].ID, Debit: dec(amount)},
			{AccountID: f.accounts[creditCode].ID, Credit: dec(amount)},
		},
	})
	require.NoError(t, err)
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func seedActivity(t *testing.T, f *fixture) {
	// Owner puts in 1000, sells 600 for cash, pays 150 in fees.
	f.post(t, day(1), "1000", "3000", "1000.00")
	f.post(t, day(10), "1000", "4000", "600.00")
	f.post(t, day(15), "5100", "1000", "150.00")
}

func TestTrialBalance(t *testing.T) {
	f := newFixture(t)
	seedActivity(t, f)

	tb, err := f.reports.TrialBalance(context.Background(), "org-1", day(31))
	require.NoError(t, err)
	assert.True(t, tb.Balanced)
	assert.True(t, tb.TotalDebit.Equal(tb.TotalCredit))
	assert.True(t, tb.TotalDebit.Equal(dec("1750.00")), "total debit = %s", tb.TotalDebit)

	rows := make(map[string]TrialBalanceRow)
	for _, r := range tb.Rows {
		rows[r.Code] = r
	}
	require.Len(t, rows, 4)

	// Cash moved both ways; the columns stay gross and the net is
	// reported alongside.
	assert.True(t, rows["1000"].Debit.Equal(dec("1600.00")))
	assert.True(t, rows["1000"].Credit.Equal(dec("150.00")))
	assert.True(t, rows["1000"].NetBalance.Equal(dec("1450.00")))
	assert.True(t, rows["3000"].Credit.Equal(dec("1000.00")))
	assert.True(t, rows["3000"].NetBalance.Equal(dec("-1000.00")))
	assert.True(t, rows["4000"].Credit.Equal(dec("600.00")))
	assert.True(t, rows["5100"].Debit.Equal(dec("150.00")))

	// Accounts with no activity are omitted.
	_, hasAR := rows["1100"]
	assert.False(t, hasAR)

	// An asOf before any activity yields an empty, balanced report.
	empty, err := f.reports.TrialBalance(context.Background(), "org-1", day(1).AddDate(0, -1, 0))
	require.NoError(t, err)
	assert.Empty(t, empty.Rows)
	assert.True(t, empty.Balanced)
}

func TestProfitAndLoss(t *testing.T) {
	f := newFixture(t)
	seedActivity(t, f)

	pl, err := f.reports.ProfitAndLoss(context.Background(), "org-1", day(1), day(31))
	require.NoError(t, err)
	assert.True(t, pl.TotalRevenue.Equal(dec("600.00")))
	assert.True(t, pl.TotalExpenses.Equal(dec("150.00")))
	assert.True(t, pl.NetIncome.Equal(dec("450.00")))
	require.Len(t, pl.Revenue, 1)
	assert.Equal(t, "4000", pl.Revenue[0].Code)
	require.Len(t, pl.Expenses, 1)
	assert.Equal(t, "5100", pl.Expenses[0].Code)

	// The owner contribution never shows up in the P&L.
	for _, r := range append(pl.Revenue, pl.Expenses...) {
		assert.NotEqual(t, "3000", r.Code)
	}

	// Period filtering: a window covering only the sale.
	partial, err := f.reports.ProfitAndLoss(context.Background(), "org-1", day(5), day(12))
	require.NoError(t, err)
	assert.True(t, partial.TotalRevenue.Equal(dec("600.00")))
	assert.True(t, partial.TotalExpenses.IsZero())
	assert.True(t, partial.NetIncome.Equal(dec("600.00")))
}

func TestBalanceSheet(t *testing.T) {
	f := newFixture(t)
	seedActivity(t, f)

	bs, err := f.reports.BalanceSheet(context.Background(), "org-1", day(31))
	require.NoError(t, err)
	assert.True(t, bs.Balanced)
	assert.True(t, bs.TotalAssets.Equal(dec("1450.00")), "assets = %s", bs.TotalAssets)
	assert.True(t, bs.TotalLiabilities.IsZero())
	assert.True(t, bs.RetainedEarnings.Equal(dec("450.00")))
	assert.True(t, bs.TotalEquity.Equal(dec("1450.00")))
	assert.True(t, bs.TotalAssets.Equal(bs.TotalLiabilities.Add(bs.TotalEquity)))

	var foundRetained bool
	for _, r := range bs.Equity {
		if r.Name == "Retained Earnings" {
			foundRetained = true
			assert.True(t, r.Amount.Equal(dec("450.00")))
		}
	}
	assert.True(t, foundRetained)
}

func TestBalanceSheet_WithLiabilities(t *testing.T) {
	f := newFixture(t)
	seedActivity(t, f)

	// Accrue a 200 expense payable later.
	f.post(t, day(20), "5000", "2000", "200.00")

	bs, err := f.reports.BalanceSheet(context.Background(), "org-1", day(31))
	require.NoError(t, err)
	assert.True(t, bs.Balanced)
	assert.True(t, bs.TotalLiabilities.Equal(dec("200.00")))
	assert.True(t, bs.RetainedEarnings.Equal(dec("250.00")))
	assert.True(t, bs.TotalAssets.Equal(bs.TotalLiabilities.Add(bs.TotalEquity)))

	// As of a date before the accrual the liability is absent.
	earlier, err := f.reports.BalanceSheet(context.Background(), "org-1", day(16))
	require.NoError(t, err)
	assert.True(t, earlier.Balanced)
	assert.True(t, earlier.TotalLiabilities.IsZero())
}
