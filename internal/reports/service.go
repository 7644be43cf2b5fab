package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbooks-dev/openbooks/internal/ledger"
	"github.com/openbooks-dev/openbooks/internal/money"
)

// Service builds the financial statements.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new report service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// TrialBalance aggregates all posted activity through asOf. Debits and
// credits are summed independently per account, never netted against
// each other. Accounts with no activity are omitted. An imbalance
// between the debit and credit columns is a data integrity fault and is
// logged.
func (s *Service) TrialBalance(ctx context.Context, orgID string, asOf time.Time) (*TrialBalance, error) {
	accounts, err := s.store.Accounts(ctx, orgID)
	if err != nil {
		return nil, err
	}
	totals, err := s.store.GrossTotals(ctx, orgID, nil, &asOf)
	if err != nil {
		return nil, err
	}

	tb := &TrialBalance{AsOf: asOf}
	for _, a := range accounts {
		sums, ok := totals[a.ID]
		if !ok || (sums.Debit.IsZero() && sums.Credit.IsZero()) {
			continue
		}
		tb.Rows = append(tb.Rows, TrialBalanceRow{
			AccountID:  a.ID,
			Code:       a.Code,
			Name:       a.Name,
			Type:       a.Type,
			Debit:      sums.Debit,
			Credit:     sums.Credit,
			NetBalance: sums.Debit.Sub(sums.Credit),
		})
		tb.TotalDebit = tb.TotalDebit.Add(sums.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(sums.Credit)
	}

	tb.Balanced = money.Equal(tb.TotalDebit, tb.TotalCredit)
	if !tb.Balanced {
		s.logger.Error("trial balance out of balance",
			"organization_id", orgID,
			"total_debit", tb.TotalDebit.StringFixed(2),
			"total_credit", tb.TotalCredit.StringFixed(2),
		)
	}
	return tb, nil
}

// ProfitAndLoss reports revenue and expense activity within [from, to].
// Revenue accounts are credit-normal, so their sign flips for
// presentation.
func (s *Service) ProfitAndLoss(ctx context.Context, orgID string, from, to time.Time) (*ProfitAndLoss, error) {
	accounts, totals, err := s.load(ctx, orgID, &from, &to)
	if err != nil {
		return nil, err
	}

	pl := &ProfitAndLoss{From: from, To: to}
	for _, a := range accounts {
		net, ok := totals[a.ID]
		if !ok || net.IsZero() {
			continue
		}
		switch a.Type {
		case ledger.TypeRevenue:
			amount := net.Neg()
			pl.Revenue = append(pl.Revenue, Row{AccountID: a.ID, Code: a.Code, Name: a.Name, Amount: amount})
			pl.TotalRevenue = pl.TotalRevenue.Add(amount)
		case ledger.TypeExpense:
			pl.Expenses = append(pl.Expenses, Row{AccountID: a.ID, Code: a.Code, Name: a.Name, Amount: net})
			pl.TotalExpenses = pl.TotalExpenses.Add(net)
		}
	}
	pl.NetIncome = pl.TotalRevenue.Sub(pl.TotalExpenses)
	return pl, nil
}

// BalanceSheet reports financial position as of a date. All revenue and
// expense activity through asOf collapses into the retained earnings
// line, so Assets = Liabilities + Equity holds whenever the underlying
// books balance.
func (s *Service) BalanceSheet(ctx context.Context, orgID string, asOf time.Time) (*BalanceSheet, error) {
	accounts, totals, err := s.load(ctx, orgID, nil, &asOf)
	if err != nil {
		return nil, err
	}

	bs := &BalanceSheet{AsOf: asOf}
	retained := decimal.Zero
	for _, a := range accounts {
		net, ok := totals[a.ID]
		if !ok || net.IsZero() {
			continue
		}
		switch a.Type {
		case ledger.TypeAsset:
			bs.Assets = append(bs.Assets, Row{AccountID: a.ID, Code: a.Code, Name: a.Name, Amount: net})
			bs.TotalAssets = bs.TotalAssets.Add(net)
		case ledger.TypeLiability:
			amount := net.Neg()
			bs.Liabilities = append(bs.Liabilities, Row{AccountID: a.ID, Code: a.Code, Name: a.Name, Amount: amount})
			bs.TotalLiabilities = bs.TotalLiabilities.Add(amount)
		case ledger.TypeEquity:
			amount := net.Neg()
			bs.Equity = append(bs.Equity, Row{AccountID: a.ID, Code: a.Code, Name: a.Name, Amount: amount})
			bs.TotalEquity = bs.TotalEquity.Add(amount)
		case ledger.TypeRevenue:
			retained = retained.Add(net.Neg())
		case ledger.TypeExpense:
			retained = retained.Sub(net)
		}
	}

	bs.RetainedEarnings = retained
	if !retained.IsZero() {
		bs.Equity = append(bs.Equity, Row{Name: "Retained Earnings", Amount: retained})
	}
	bs.TotalEquity = bs.TotalEquity.Add(retained)

	bs.Balanced = money.Equal(bs.TotalAssets, bs.TotalLiabilities.Add(bs.TotalEquity))
	if !bs.Balanced {
		s.logger.Error("balance sheet violates the accounting equation",
			"organization_id", orgID,
			"total_assets", bs.TotalAssets.StringFixed(2),
			"total_liabilities", bs.TotalLiabilities.StringFixed(2),
			"total_equity", bs.TotalEquity.StringFixed(2),
		)
	}
	return bs, nil
}

func (s *Service) load(ctx context.Context, orgID string, from, to *time.Time) ([]*ledger.Account, map[string]decimal.Decimal, error) {
	accounts, err := s.store.Accounts(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}
	totals, err := s.store.NetTotals(ctx, orgID, from, to)
	if err != nil {
		return nil, nil, err
	}
	return accounts, totals, nil
}
